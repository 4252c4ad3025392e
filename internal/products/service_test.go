package products

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/steepandstone/teahouse-backend/pkg/db/models"
	"github.com/steepandstone/teahouse-backend/pkg/enums"
	pkgerrors "github.com/steepandstone/teahouse-backend/pkg/errors"
)

type fakeRepo struct {
	products map[uuid.UUID]*models.Product
	reviews  map[uuid.UUID][]models.ProductReview

	ratingAverage float64
	ratingCount   int
	ratingCalls   int
}

func newFakeRepo(products ...*models.Product) *fakeRepo {
	repo := &fakeRepo{
		products: make(map[uuid.UUID]*models.Product),
		reviews:  make(map[uuid.UUID][]models.ProductReview),
	}
	for _, p := range products {
		repo.products[p.ID] = p
	}
	return repo
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	product.ID = uuid.New()
	f.products[product.ID] = product
	return product, nil
}

func (f *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if p, ok := f.products[id]; ok {
		clone := *p
		return &clone, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, err := f.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (f *fakeRepo) List(ctx context.Context, filter ListFilter) ([]models.Product, int64, error) {
	rows := []models.Product{}
	for _, p := range f.products {
		if !filter.IncludeInactive && !p.IsActive {
			continue
		}
		rows = append(rows, *p)
	}
	return rows, int64(len(rows)), nil
}

func (f *fakeRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	p := f.products[id]
	if name, ok := updates["name"].(string); ok {
		p.Name = name
	}
	if price, ok := updates["price_cents"].(int); ok {
		p.PriceCents = price
	}
	return nil
}

func (f *fakeRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	f.products[id].IsActive = active
	return nil
}

func (f *fakeRepo) SetStock(ctx context.Context, id uuid.UUID, qty int) error {
	f.products[id].StockQuantity = qty
	f.products[id].InStock = qty > 0
	return nil
}

func (f *fakeRepo) DecrementStock(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	p := f.products[id]
	if p.StockQuantity < qty {
		return false, nil
	}
	p.StockQuantity -= qty
	p.InStock = p.StockQuantity > 0
	return true, nil
}

func (f *fakeRepo) IncrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	p := f.products[id]
	p.StockQuantity += qty
	p.InStock = true
	return nil
}

func (f *fakeRepo) UpsertReview(ctx context.Context, review *models.ProductReview) error {
	rows := f.reviews[review.ProductID]
	for i := range rows {
		if rows[i].UserID == review.UserID {
			rows[i].Rating = review.Rating
			rows[i].Comment = review.Comment
			return nil
		}
	}
	review.ID = uuid.New()
	f.reviews[review.ProductID] = append(rows, *review)
	return nil
}

func (f *fakeRepo) DeleteReview(ctx context.Context, productID, userID uuid.UUID) (bool, error) {
	rows := f.reviews[productID]
	for i := range rows {
		if rows[i].UserID == userID {
			f.reviews[productID] = append(rows[:i:i], rows[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) ListReviews(ctx context.Context, productID uuid.UUID) ([]models.ProductReview, error) {
	return f.reviews[productID], nil
}

func (f *fakeRepo) SetRating(ctx context.Context, productID uuid.UUID, average float64, count int) error {
	f.ratingCalls++
	f.ratingAverage = average
	f.ratingCount = count
	p := f.products[productID]
	p.RatingAverage = average
	p.RatingCount = count
	return nil
}

type fakeTx struct{}

func (fakeTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeGate struct {
	allowed bool
}

func (f fakeGate) HasCompletedOrderWithProduct(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	return f.allowed, nil
}

func activeProduct(price int) *models.Product {
	return &models.Product{
		ID:            uuid.New(),
		Name:          "Assam Black",
		Category:      enums.ProductCategoryBlackTea,
		PriceCents:    price,
		StockQuantity: 10,
		InStock:       true,
		IsActive:      true,
	}
}

func newTestService(t *testing.T, repo *fakeRepo, gate fakeGate) Service {
	t.Helper()
	svc, err := NewService(repo, fakeTx{}, gate)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	appErr := pkgerrors.As(err)
	if appErr == nil {
		t.Fatalf("expected coded error, got %v", err)
	}
	if appErr.Code() != code {
		t.Fatalf("expected code %s, got %s", code, appErr.Code())
	}
}

func TestGetHidesInactiveProduct(t *testing.T) {
	product := activeProduct(500)
	product.IsActive = false
	svc := newTestService(t, newFakeRepo(product), fakeGate{})

	_, err := svc.Get(context.Background(), product.ID)
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestCreateValidations(t *testing.T) {
	svc := newTestService(t, newFakeRepo(), fakeGate{})
	ctx := context.Background()

	cases := []struct {
		name  string
		input CreateProductInput
	}{
		{"empty name", CreateProductInput{Name: "  ", Category: enums.ProductCategoryBlackTea, PriceCents: 100}},
		{"bad category", CreateProductInput{Name: "Tea", Category: "beverages", PriceCents: 100}},
		{"negative price", CreateProductInput{Name: "Tea", Category: enums.ProductCategoryBlackTea, PriceCents: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.input)
			assertCode(t, err, pkgerrors.CodeValidation)
		})
	}
}

func TestCreateRejectsSaleAboveListPrice(t *testing.T) {
	svc := newTestService(t, newFakeRepo(), fakeGate{})
	sale := 1200
	_, err := svc.Create(context.Background(), CreateProductInput{
		Name:           "Tea",
		Category:       enums.ProductCategoryGreenTea,
		PriceCents:     1000,
		SalePriceCents: &sale,
	})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestCreateAndGetSalePricing(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo, fakeGate{})

	sale := 800
	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)
	dto, err := svc.Create(context.Background(), CreateProductInput{
		Name:           "Darjeeling",
		Category:       enums.ProductCategoryBlackTea,
		PriceCents:     1000,
		SalePriceCents: &sale,
		SaleStartsAt:   &start,
		SaleEndsAt:     &end,
		StockQuantity:  5,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if dto.EffectivePriceCents != 800 || !dto.OnSale {
		t.Fatalf("expected active sale price 800, got %d (on_sale=%v)", dto.EffectivePriceCents, dto.OnSale)
	}
}

func TestSaleWindowNotStartedUsesListPrice(t *testing.T) {
	product := activeProduct(1000)
	sale := 700
	start := time.Now().Add(time.Hour)
	product.SalePriceCents = &sale
	product.SaleStartsAt = &start
	svc := newTestService(t, newFakeRepo(product), fakeGate{})

	dto, err := svc.Get(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if dto.EffectivePriceCents != 1000 || dto.OnSale {
		t.Fatalf("expected list price before the window, got %d", dto.EffectivePriceCents)
	}
}

func TestSubmitReviewRequiresCompletedOrder(t *testing.T) {
	product := activeProduct(500)
	repo := newFakeRepo(product)
	svc := newTestService(t, repo, fakeGate{allowed: false})

	_, err := svc.SubmitReview(context.Background(), SubmitReviewInput{
		ProductID: product.ID,
		UserID:    uuid.New(),
		Rating:    5,
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)
	if repo.ratingCalls != 0 {
		t.Fatal("rating aggregate should not change when gate rejects")
	}
}

func TestSubmitReviewAggregatesToOneDecimal(t *testing.T) {
	product := activeProduct(500)
	repo := newFakeRepo(product)
	svc := newTestService(t, repo, fakeGate{allowed: true})
	ctx := context.Background()

	for _, rating := range []int{5, 4, 4} {
		if _, err := svc.SubmitReview(ctx, SubmitReviewInput{
			ProductID: product.ID,
			UserID:    uuid.New(),
			Rating:    rating,
		}); err != nil {
			t.Fatalf("submit review: %v", err)
		}
	}

	if repo.ratingCount != 3 {
		t.Fatalf("expected 3 reviews, got %d", repo.ratingCount)
	}
	// (5+4+4)/3 = 4.333..., stored as 4.3
	if repo.ratingAverage != 4.3 {
		t.Fatalf("expected average 4.3, got %v", repo.ratingAverage)
	}
}

func TestSubmitReviewResubmitReplaces(t *testing.T) {
	product := activeProduct(500)
	repo := newFakeRepo(product)
	svc := newTestService(t, repo, fakeGate{allowed: true})
	ctx := context.Background()
	userID := uuid.New()

	for _, rating := range []int{2, 5} {
		if _, err := svc.SubmitReview(ctx, SubmitReviewInput{
			ProductID: product.ID,
			UserID:    userID,
			Rating:    rating,
		}); err != nil {
			t.Fatalf("submit review: %v", err)
		}
	}

	if repo.ratingCount != 1 {
		t.Fatalf("resubmission should not add a second review, count=%d", repo.ratingCount)
	}
	if repo.ratingAverage != 5 {
		t.Fatalf("expected replaced rating 5, got %v", repo.ratingAverage)
	}
}

func TestSubmitReviewRatingBounds(t *testing.T) {
	product := activeProduct(500)
	svc := newTestService(t, newFakeRepo(product), fakeGate{allowed: true})

	for _, rating := range []int{0, 6, -1} {
		_, err := svc.SubmitReview(context.Background(), SubmitReviewInput{
			ProductID: product.ID,
			UserID:    uuid.New(),
			Rating:    rating,
		})
		assertCode(t, err, pkgerrors.CodeValidation)
	}
}

func TestDeleteReviewRecomputesAggregate(t *testing.T) {
	product := activeProduct(500)
	repo := newFakeRepo(product)
	svc := newTestService(t, repo, fakeGate{allowed: true})
	ctx := context.Background()
	userID := uuid.New()

	for _, review := range []struct {
		user   uuid.UUID
		rating int
	}{
		{userID, 1},
		{uuid.New(), 5},
		{uuid.New(), 5},
	} {
		if _, err := svc.SubmitReview(ctx, SubmitReviewInput{
			ProductID: product.ID,
			UserID:    review.user,
			Rating:    review.rating,
		}); err != nil {
			t.Fatalf("submit review: %v", err)
		}
	}

	if err := svc.DeleteReview(ctx, product.ID, userID); err != nil {
		t.Fatalf("delete review: %v", err)
	}
	if repo.ratingCount != 2 {
		t.Fatalf("expected 2 reviews after delete, got %d", repo.ratingCount)
	}
	if repo.ratingAverage != 5 {
		t.Fatalf("expected average 5 after removing the low rating, got %v", repo.ratingAverage)
	}
}

func TestDeleteReviewMissing(t *testing.T) {
	product := activeProduct(500)
	svc := newTestService(t, newFakeRepo(product), fakeGate{})

	err := svc.DeleteReview(context.Background(), product.ID, uuid.New())
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestSetStockUpdatesAvailability(t *testing.T) {
	product := activeProduct(500)
	repo := newFakeRepo(product)
	svc := newTestService(t, repo, fakeGate{})

	dto, err := svc.SetStock(context.Background(), product.ID, 0)
	if err != nil {
		t.Fatalf("set stock: %v", err)
	}
	if dto.InStock {
		t.Fatal("zero stock should mark the product out of stock")
	}

	if _, err := svc.SetStock(context.Background(), product.ID, -1); err == nil {
		t.Fatal("negative stock must be rejected")
	}
}

func TestDeactivateIsIdempotent(t *testing.T) {
	product := activeProduct(500)
	repo := newFakeRepo(product)
	svc := newTestService(t, repo, fakeGate{})
	ctx := context.Background()

	if err := svc.Deactivate(ctx, product.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := svc.Deactivate(ctx, product.ID); err != nil {
		t.Fatalf("second deactivate should be a no-op: %v", err)
	}
	if repo.products[product.ID].IsActive {
		t.Fatal("product should be inactive")
	}
}
