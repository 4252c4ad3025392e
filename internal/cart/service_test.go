package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/steepandstone/teahouse-backend/pkg/config"
	"github.com/steepandstone/teahouse-backend/pkg/db/models"
	pkgerrors "github.com/steepandstone/teahouse-backend/pkg/errors"
	"github.com/steepandstone/teahouse-backend/pkg/types"
)

type fakeRepo struct {
	carts map[uuid.UUID]*models.Cart

	deleteItemsCalls int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{carts: make(map[uuid.UUID]*models.Cart)}
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	for _, c := range f.carts {
		if c.UserID == userID {
			return c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) Create(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	cart.ID = uuid.New()
	f.carts[cart.ID] = cart
	return cart, nil
}

func (f *fakeRepo) SaveTotals(ctx context.Context, cart *models.Cart) error {
	f.carts[cart.ID] = cart
	return nil
}

func (f *fakeRepo) AddItem(ctx context.Context, item *models.CartItem) error {
	item.ID = uuid.New()
	return nil
}

func (f *fakeRepo) UpdateItem(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return nil
}

func (f *fakeRepo) DeleteItem(ctx context.Context, id uuid.UUID) error { return nil }

func (f *fakeRepo) DeleteItems(ctx context.Context, cartID uuid.UUID) error {
	f.deleteItemsCalls++
	return nil
}

func (f *fakeRepo) DeleteCart(ctx context.Context, id uuid.UUID) error {
	delete(f.carts, id)
	return nil
}

func (f *fakeRepo) FindStale(ctx context.Context, cutoff time.Time, limit int) ([]models.Cart, error) {
	return nil, nil
}

type fakeProducts struct {
	products map[uuid.UUID]*models.Product
}

func newFakeProducts(products ...*models.Product) *fakeProducts {
	f := &fakeProducts{products: make(map[uuid.UUID]*models.Product)}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeProducts) FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if p, ok := f.products[id]; ok && p.IsActive {
		clone := *p
		return &clone, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeTx struct{}

func (fakeTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func greenTea(stock int) *models.Product {
	return &models.Product{
		ID:            uuid.New(),
		Name:          "Sencha",
		PriceCents:    450,
		StockQuantity: stock,
		InStock:       stock > 0,
		IsActive:      true,
	}
}

func newTestService(t *testing.T, repo Repository, products ProductReader) Service {
	t.Helper()
	svc, err := NewService(repo, products, fakeTx{}, config.PricingConfig{DefaultTaxRatePercent: 8.25})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func assertCode(t *testing.T, err error, want pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", want)
	}
	appErr := pkgerrors.As(err)
	if appErr == nil {
		t.Fatalf("expected app error, got %v", err)
	}
	if appErr.Code() != want {
		t.Fatalf("expected code %s, got %s (%v)", want, appErr.Code(), err)
	}
}

func TestGetCartLazyCreate(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo, newFakeProducts())
	userID := uuid.New()

	dto, err := svc.GetCart(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if dto.UserID != userID {
		t.Fatalf("expected cart owned by %s, got %s", userID, dto.UserID)
	}
	if len(dto.Items) != 0 || dto.FinalTotalCents != 0 {
		t.Fatalf("expected empty cart, got %d items final %d", len(dto.Items), dto.FinalTotalCents)
	}
	if dto.TaxRatePercent != 8.25 {
		t.Fatalf("expected default tax rate applied, got %v", dto.TaxRatePercent)
	}
	if len(repo.carts) != 1 {
		t.Fatalf("expected one persisted cart, got %d", len(repo.carts))
	}

	again, err := svc.GetCart(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetCart second call: %v", err)
	}
	if again.ID != dto.ID {
		t.Fatal("expected the same cart on repeat access")
	}
}

func TestAddItem(t *testing.T) {
	oatMilk := types.Customizations{{Option: "milk", Value: "oat", AdditionalPriceCents: 50}}

	t.Run("captures effective price and computes totals", func(t *testing.T) {
		product := greenTea(10)
		svc := newTestService(t, newFakeRepo(), newFakeProducts(product))

		dto, err := svc.AddItem(context.Background(), AddItemInput{
			UserID:         uuid.New(),
			ProductID:      product.ID,
			Quantity:       2,
			Customizations: oatMilk,
		})
		if err != nil {
			t.Fatalf("AddItem: %v", err)
		}
		if len(dto.Items) != 1 {
			t.Fatalf("expected one line, got %d", len(dto.Items))
		}
		line := dto.Items[0]
		if line.UnitPriceCents != 450 {
			t.Fatalf("expected unit price 450, got %d", line.UnitPriceCents)
		}
		if line.LineTotalCents != 1000 {
			t.Fatalf("expected line total (450+50)*2=1000, got %d", line.LineTotalCents)
		}
		if dto.TotalItems != 2 || dto.TotalPriceCents != 1000 {
			t.Fatalf("unexpected totals: items %d price %d", dto.TotalItems, dto.TotalPriceCents)
		}
	})

	t.Run("captures sale price while the window is open", func(t *testing.T) {
		product := greenTea(10)
		sale := 300
		starts := time.Now().Add(-time.Hour)
		ends := time.Now().Add(time.Hour)
		product.SalePriceCents = &sale
		product.SaleStartsAt = &starts
		product.SaleEndsAt = &ends
		svc := newTestService(t, newFakeRepo(), newFakeProducts(product))

		dto, err := svc.AddItem(context.Background(), AddItemInput{
			UserID: uuid.New(), ProductID: product.ID, Quantity: 1,
		})
		if err != nil {
			t.Fatalf("AddItem: %v", err)
		}
		if dto.Items[0].UnitPriceCents != 300 {
			t.Fatalf("expected sale price 300 captured, got %d", dto.Items[0].UnitPriceCents)
		}
	})

	t.Run("merges lines with the same product and customizations", func(t *testing.T) {
		product := greenTea(10)
		svc := newTestService(t, newFakeRepo(), newFakeProducts(product))
		userID := uuid.New()

		if _, err := svc.AddItem(context.Background(), AddItemInput{
			UserID: userID, ProductID: product.ID, Quantity: 2, Customizations: oatMilk,
		}); err != nil {
			t.Fatalf("first AddItem: %v", err)
		}
		dto, err := svc.AddItem(context.Background(), AddItemInput{
			UserID: userID, ProductID: product.ID, Quantity: 3, Customizations: oatMilk,
		})
		if err != nil {
			t.Fatalf("second AddItem: %v", err)
		}
		if len(dto.Items) != 1 {
			t.Fatalf("expected merged single line, got %d", len(dto.Items))
		}
		if dto.Items[0].Quantity != 5 {
			t.Fatalf("expected merged quantity 5, got %d", dto.Items[0].Quantity)
		}
	})

	t.Run("different customizations stay separate lines", func(t *testing.T) {
		product := greenTea(10)
		svc := newTestService(t, newFakeRepo(), newFakeProducts(product))
		userID := uuid.New()

		if _, err := svc.AddItem(context.Background(), AddItemInput{
			UserID: userID, ProductID: product.ID, Quantity: 1, Customizations: oatMilk,
		}); err != nil {
			t.Fatalf("first AddItem: %v", err)
		}
		dto, err := svc.AddItem(context.Background(), AddItemInput{
			UserID: userID, ProductID: product.ID, Quantity: 1,
		})
		if err != nil {
			t.Fatalf("second AddItem: %v", err)
		}
		if len(dto.Items) != 2 {
			t.Fatalf("expected two lines, got %d", len(dto.Items))
		}
	})

	t.Run("non-empty notes overwrite on merge", func(t *testing.T) {
		product := greenTea(10)
		svc := newTestService(t, newFakeRepo(), newFakeProducts(product))
		userID := uuid.New()
		first := "light steep"
		second := "extra hot"
		empty := "  "

		if _, err := svc.AddItem(context.Background(), AddItemInput{
			UserID: userID, ProductID: product.ID, Quantity: 1, Notes: &first,
		}); err != nil {
			t.Fatalf("first AddItem: %v", err)
		}
		dto, err := svc.AddItem(context.Background(), AddItemInput{
			UserID: userID, ProductID: product.ID, Quantity: 1, Notes: &second,
		})
		if err != nil {
			t.Fatalf("second AddItem: %v", err)
		}
		if dto.Items[0].Notes == nil || *dto.Items[0].Notes != "extra hot" {
			t.Fatalf("expected notes overwritten, got %v", dto.Items[0].Notes)
		}

		dto, err = svc.AddItem(context.Background(), AddItemInput{
			UserID: userID, ProductID: product.ID, Quantity: 1, Notes: &empty,
		})
		if err != nil {
			t.Fatalf("third AddItem: %v", err)
		}
		if dto.Items[0].Notes == nil || *dto.Items[0].Notes != "extra hot" {
			t.Fatalf("expected blank notes ignored, got %v", dto.Items[0].Notes)
		}
	})

	t.Run("rejects quantities beyond available stock", func(t *testing.T) {
		product := greenTea(3)
		svc := newTestService(t, newFakeRepo(), newFakeProducts(product))
		userID := uuid.New()

		if _, err := svc.AddItem(context.Background(), AddItemInput{
			UserID: userID, ProductID: product.ID, Quantity: 2,
		}); err != nil {
			t.Fatalf("first AddItem: %v", err)
		}
		_, err := svc.AddItem(context.Background(), AddItemInput{
			UserID: userID, ProductID: product.ID, Quantity: 2,
		})
		assertCode(t, err, pkgerrors.CodeConflict)
	})

	t.Run("unknown or inactive product is not found", func(t *testing.T) {
		inactive := greenTea(10)
		inactive.IsActive = false
		svc := newTestService(t, newFakeRepo(), newFakeProducts(inactive))

		_, err := svc.AddItem(context.Background(), AddItemInput{
			UserID: uuid.New(), ProductID: inactive.ID, Quantity: 1,
		})
		assertCode(t, err, pkgerrors.CodeNotFound)

		_, err = svc.AddItem(context.Background(), AddItemInput{
			UserID: uuid.New(), ProductID: uuid.New(), Quantity: 1,
		})
		assertCode(t, err, pkgerrors.CodeNotFound)
	})

	t.Run("input validation", func(t *testing.T) {
		product := greenTea(10)
		svc := newTestService(t, newFakeRepo(), newFakeProducts(product))

		cases := []struct {
			name  string
			input AddItemInput
			code  pkgerrors.Code
		}{
			{"zero quantity", AddItemInput{UserID: uuid.New(), ProductID: product.ID, Quantity: 0}, pkgerrors.CodeValidation},
			{"over line cap", AddItemInput{UserID: uuid.New(), ProductID: product.ID, Quantity: 51}, pkgerrors.CodeValidation},
			{"missing product", AddItemInput{UserID: uuid.New(), Quantity: 1}, pkgerrors.CodeValidation},
			{"negative customization price", AddItemInput{
				UserID: uuid.New(), ProductID: product.ID, Quantity: 1,
				Customizations: types.Customizations{{Option: "milk", Value: "oat", AdditionalPriceCents: -10}},
			}, pkgerrors.CodeValidation},
			{"missing user", AddItemInput{ProductID: product.ID, Quantity: 1}, pkgerrors.CodeUnauthorized},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := svc.AddItem(context.Background(), tc.input)
				assertCode(t, err, tc.code)
			})
		}
	})
}

func TestUpdateItemQuantity(t *testing.T) {
	t.Run("updates quantity and recomputes totals", func(t *testing.T) {
		product := greenTea(10)
		svc := newTestService(t, newFakeRepo(), newFakeProducts(product))
		userID := uuid.New()

		dto, err := svc.AddItem(context.Background(), AddItemInput{
			UserID: userID, ProductID: product.ID, Quantity: 2,
		})
		if err != nil {
			t.Fatalf("AddItem: %v", err)
		}

		dto, err = svc.UpdateItemQuantity(context.Background(), userID, dto.Items[0].ID, 4)
		if err != nil {
			t.Fatalf("UpdateItemQuantity: %v", err)
		}
		if dto.Items[0].Quantity != 4 || dto.TotalPriceCents != 1800 {
			t.Fatalf("unexpected state: qty %d total %d", dto.Items[0].Quantity, dto.TotalPriceCents)
		}
	})

	t.Run("zero removes the line", func(t *testing.T) {
		product := greenTea(10)
		svc := newTestService(t, newFakeRepo(), newFakeProducts(product))
		userID := uuid.New()

		dto, err := svc.AddItem(context.Background(), AddItemInput{
			UserID: userID, ProductID: product.ID, Quantity: 2,
		})
		if err != nil {
			t.Fatalf("AddItem: %v", err)
		}

		dto, err = svc.UpdateItemQuantity(context.Background(), userID, dto.Items[0].ID, 0)
		if err != nil {
			t.Fatalf("UpdateItemQuantity: %v", err)
		}
		if len(dto.Items) != 0 || dto.FinalTotalCents != 0 {
			t.Fatalf("expected emptied cart, got %d items final %d", len(dto.Items), dto.FinalTotalCents)
		}
	})

	t.Run("missing line is not found", func(t *testing.T) {
		product := greenTea(10)
		svc := newTestService(t, newFakeRepo(), newFakeProducts(product))
		userID := uuid.New()

		if _, err := svc.AddItem(context.Background(), AddItemInput{
			UserID: userID, ProductID: product.ID, Quantity: 1,
		}); err != nil {
			t.Fatalf("AddItem: %v", err)
		}
		_, err := svc.UpdateItemQuantity(context.Background(), userID, uuid.New(), 2)
		assertCode(t, err, pkgerrors.CodeNotFound)
	})

	t.Run("no cart is not found", func(t *testing.T) {
		svc := newTestService(t, newFakeRepo(), newFakeProducts())
		_, err := svc.UpdateItemQuantity(context.Background(), uuid.New(), uuid.New(), 1)
		assertCode(t, err, pkgerrors.CodeNotFound)
	})
}

func TestApplyDiscount(t *testing.T) {
	seed := func(t *testing.T) (Service, uuid.UUID) {
		t.Helper()
		product := greenTea(10)
		product.PriceCents = 500
		svc := newTestService(t, newFakeRepo(), newFakeProducts(product))
		userID := uuid.New()
		if _, err := svc.AddItem(context.Background(), AddItemInput{
			UserID: userID, ProductID: product.ID, Quantity: 2,
		}); err != nil {
			t.Fatalf("AddItem: %v", err)
		}
		return svc, userID
	}

	t.Run("percent wins over flat amount", func(t *testing.T) {
		svc, userID := seed(t)
		code := "WELCOME"
		dto, err := svc.ApplyDiscount(context.Background(), DiscountInput{
			UserID: userID, Code: &code, AmountCents: 150, Percent: 20,
		})
		if err != nil {
			t.Fatalf("ApplyDiscount: %v", err)
		}
		if dto.DiscountAmountCents != 200 {
			t.Fatalf("expected 20%% of 1000 = 200, got %d", dto.DiscountAmountCents)
		}
		if dto.SubtotalCents != 800 {
			t.Fatalf("expected subtotal 800, got %d", dto.SubtotalCents)
		}
	})

	t.Run("flat amount clamped to the cart total", func(t *testing.T) {
		svc, userID := seed(t)
		dto, err := svc.ApplyDiscount(context.Background(), DiscountInput{
			UserID: userID, AmountCents: 5000,
		})
		if err != nil {
			t.Fatalf("ApplyDiscount: %v", err)
		}
		if dto.SubtotalCents != 0 {
			t.Fatalf("expected subtotal clamped to 0, got %d", dto.SubtotalCents)
		}
	})

	t.Run("validation", func(t *testing.T) {
		svc, userID := seed(t)
		_, err := svc.ApplyDiscount(context.Background(), DiscountInput{UserID: userID, AmountCents: -1})
		assertCode(t, err, pkgerrors.CodeValidation)
		_, err = svc.ApplyDiscount(context.Background(), DiscountInput{UserID: userID, Percent: 101})
		assertCode(t, err, pkgerrors.CodeValidation)
	})
}

func TestSetTaxRateAndDeliveryFee(t *testing.T) {
	product := greenTea(10)
	product.PriceCents = 1000
	svc := newTestService(t, newFakeRepo(), newFakeProducts(product))
	userID := uuid.New()

	if _, err := svc.AddItem(context.Background(), AddItemInput{
		UserID: userID, ProductID: product.ID, Quantity: 1,
	}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	dto, err := svc.SetTaxRate(context.Background(), userID, 10)
	if err != nil {
		t.Fatalf("SetTaxRate: %v", err)
	}
	if dto.TaxAmountCents != 100 {
		t.Fatalf("expected tax 100, got %d", dto.TaxAmountCents)
	}

	dto, err = svc.SetDeliveryFee(context.Background(), userID, 299)
	if err != nil {
		t.Fatalf("SetDeliveryFee: %v", err)
	}
	if dto.FinalTotalCents != 1399 {
		t.Fatalf("expected final 1000+100+299=1399, got %d", dto.FinalTotalCents)
	}

	if _, err := svc.SetTaxRate(context.Background(), userID, -1); err == nil {
		t.Fatal("expected negative tax rate rejected")
	}
	if _, err := svc.SetDeliveryFee(context.Background(), userID, -1); err == nil {
		t.Fatal("expected negative delivery fee rejected")
	}
}

func TestClear(t *testing.T) {
	product := greenTea(10)
	repo := newFakeRepo()
	svc := newTestService(t, repo, newFakeProducts(product))
	userID := uuid.New()
	code := "WELCOME"

	if _, err := svc.AddItem(context.Background(), AddItemInput{
		UserID: userID, ProductID: product.ID, Quantity: 2,
	}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := svc.ApplyDiscount(context.Background(), DiscountInput{
		UserID: userID, Code: &code, Percent: 10,
	}); err != nil {
		t.Fatalf("ApplyDiscount: %v", err)
	}
	if _, err := svc.SetDeliveryFee(context.Background(), userID, 500); err != nil {
		t.Fatalf("SetDeliveryFee: %v", err)
	}

	dto, err := svc.Clear(context.Background(), userID)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if len(dto.Items) != 0 || dto.FinalTotalCents != 0 {
		t.Fatalf("expected emptied cart, got %d items final %d", len(dto.Items), dto.FinalTotalCents)
	}
	if dto.DeliveryFeeCents != 0 {
		t.Fatalf("expected delivery fee zeroed on clear, got %d", dto.DeliveryFeeCents)
	}
	if dto.DiscountCode != nil || dto.DiscountPercent != 0 {
		t.Fatal("expected discount reset on clear")
	}
	if repo.deleteItemsCalls != 1 {
		t.Fatalf("expected one DeleteItems call, got %d", repo.deleteItemsCalls)
	}
}
