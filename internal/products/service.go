package products

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/steepandstone/teahouse-backend/pkg/db/models"
	pkgerrors "github.com/steepandstone/teahouse-backend/pkg/errors"
	"github.com/steepandstone/teahouse-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RatingGate reports whether a user is allowed to review a product. Checkout
// history backs the implementation; only buyers with a completed order qualify.
type RatingGate interface {
	HasCompletedOrderWithProduct(ctx context.Context, userID, productID uuid.UUID) (bool, error)
}

// Service defines catalog operations for both the storefront and admin surfaces.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	List(ctx context.Context, filter ListFilter) ([]ProductDTO, pagination.Meta, error)
	Create(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	Reactivate(ctx context.Context, id uuid.UUID) error
	SetStock(ctx context.Context, id uuid.UUID, qty int) (*ProductDTO, error)
	SubmitReview(ctx context.Context, input SubmitReviewInput) (*ReviewDTO, error)
	DeleteReview(ctx context.Context, productID, userID uuid.UUID) error
	ListReviews(ctx context.Context, productID uuid.UUID) ([]ReviewDTO, error)
}

type service struct {
	repo Repository
	tx   txRunner
	gate RatingGate
	now  func() time.Time
}

// NewService builds a catalog service with the required dependencies.
func NewService(repo Repository, tx txRunner, gate RatingGate) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if gate == nil {
		return nil, fmt.Errorf("rating gate required")
	}
	return &service{
		repo: repo,
		tx:   tx,
		gate: gate,
		now:  time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindActiveByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return fromModel(product, s.now()), nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]ProductDTO, pagination.Meta, error) {
	if filter.MinCents != nil && filter.MaxCents != nil && *filter.MinCents > *filter.MaxCents {
		return nil, pagination.Meta{}, pkgerrors.New(pkgerrors.CodeValidation, "min price exceeds max price")
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pagination.Meta{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	now := s.now()
	dtos := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *fromModel(&rows[i], now))
	}
	return dtos, pagination.NewMeta(filter.Pagination, total), nil
}

func (s *service) Create(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name required")
	}
	if !input.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid category %q", input.Category))
	}
	if input.PriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	if input.StockQuantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}
	if err := validateSaleWindow(input.SalePriceCents, input.PriceCents, input.SaleStartsAt, input.SaleEndsAt); err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:           name,
		Description:    input.Description,
		Category:       input.Category,
		PriceCents:     input.PriceCents,
		SalePriceCents: input.SalePriceCents,
		SaleStartsAt:   input.SaleStartsAt,
		SaleEndsAt:     input.SaleEndsAt,
		StockQuantity:  input.StockQuantity,
		InStock:        input.StockQuantity > 0,
		IsActive:       true,
		IsFeatured:     input.IsFeatured,
		ImageURLs:      pq.StringArray(input.ImageURLs),
	}
	created, err := s.repo.Create(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return fromModel(created, s.now()), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	product, err := s.loadProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name required")
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Category != nil {
		if !input.Category.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid category %q", *input.Category))
		}
		updates["category"] = *input.Category
	}

	price := product.PriceCents
	if input.PriceCents != nil {
		if *input.PriceCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
		}
		price = *input.PriceCents
		updates["price_cents"] = price
	}

	if input.ClearSale {
		updates["sale_price_cents"] = nil
		updates["sale_starts_at"] = nil
		updates["sale_ends_at"] = nil
	} else {
		salePrice := product.SalePriceCents
		startsAt := product.SaleStartsAt
		endsAt := product.SaleEndsAt
		if input.SalePriceCents != nil {
			salePrice = input.SalePriceCents
			updates["sale_price_cents"] = *input.SalePriceCents
		}
		if input.SaleStartsAt != nil {
			startsAt = input.SaleStartsAt
			updates["sale_starts_at"] = *input.SaleStartsAt
		}
		if input.SaleEndsAt != nil {
			endsAt = input.SaleEndsAt
			updates["sale_ends_at"] = *input.SaleEndsAt
		}
		if err := validateSaleWindow(salePrice, price, startsAt, endsAt); err != nil {
			return nil, err
		}
	}

	if input.IsFeatured != nil {
		updates["is_featured"] = *input.IsFeatured
	}
	if input.ImageURLs != nil {
		updates["image_urls"] = pq.StringArray(input.ImageURLs)
	}

	if len(updates) == 0 {
		return fromModel(product, s.now()), nil
	}
	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}

	updated, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload product")
	}
	return fromModel(updated, s.now()), nil
}

// Deactivate soft-deletes the listing. The row stays so order snapshots and
// reviews keep their references.
func (s *service) Deactivate(ctx context.Context, id uuid.UUID) error {
	product, err := s.loadProduct(ctx, id)
	if err != nil {
		return err
	}
	if !product.IsActive {
		return nil
	}
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate product")
	}
	return nil
}

func (s *service) Reactivate(ctx context.Context, id uuid.UUID) error {
	product, err := s.loadProduct(ctx, id)
	if err != nil {
		return err
	}
	if product.IsActive {
		return nil
	}
	if err := s.repo.SetActive(ctx, id, true); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reactivate product")
	}
	return nil
}

func (s *service) SetStock(ctx context.Context, id uuid.UUID, qty int) (*ProductDTO, error) {
	if qty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}
	product, err := s.loadProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetStock(ctx, id, qty); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set stock")
	}
	product.StockQuantity = qty
	product.InStock = qty > 0
	return fromModel(product, s.now()), nil
}

// SubmitReview stores one review per (product, user) and refreshes the
// product's denormalized aggregate in the same transaction. Resubmitting
// replaces the previous review rather than double counting.
func (s *service) SubmitReview(ctx context.Context, input SubmitReviewInput) (*ReviewDTO, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Rating < 1 || input.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}

	if _, err := s.loadProduct(ctx, input.ProductID); err != nil {
		return nil, err
	}

	allowed, err := s.gate.HasCompletedOrderWithProduct(ctx, input.UserID, input.ProductID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check purchase history")
	}
	if !allowed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "reviews require a completed order containing this product")
	}

	review := &models.ProductReview{
		ProductID: input.ProductID,
		UserID:    input.UserID,
		Rating:    input.Rating,
		Comment:   input.Comment,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpsertReview(ctx, review); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store review")
		}
		reviews, err := repo.ListReviews(ctx, input.ProductID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload reviews")
		}
		average, count := aggregateRatings(reviews)
		if err := repo.SetRating(ctx, input.ProductID, average, count); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh rating aggregate")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reviewFromModel(review), nil
}

// DeleteReview removes the caller's review and refreshes the aggregate in
// the same transaction.
func (s *service) DeleteReview(ctx context.Context, productID, userID uuid.UUID) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if _, err := s.loadProduct(ctx, productID); err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		deleted, err := repo.DeleteReview(ctx, productID, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete review")
		}
		if !deleted {
			return pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
		}
		reviews, err := repo.ListReviews(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload reviews")
		}
		average, count := aggregateRatings(reviews)
		if err := repo.SetRating(ctx, productID, average, count); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh rating aggregate")
		}
		return nil
	})
}

func (s *service) ListReviews(ctx context.Context, productID uuid.UUID) ([]ReviewDTO, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if _, err := s.loadProduct(ctx, productID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListReviews(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	dtos := make([]ReviewDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *reviewFromModel(&rows[i]))
	}
	return dtos, nil
}

func (s *service) loadProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

// aggregateRatings returns the mean rating rounded to one decimal place.
func aggregateRatings(reviews []models.ProductReview) (float64, int) {
	if len(reviews) == 0 {
		return 0, 0
	}
	sum := 0
	for _, review := range reviews {
		sum += review.Rating
	}
	mean := float64(sum) / float64(len(reviews))
	return math.Round(mean*10) / 10, len(reviews)
}

func validateSaleWindow(salePrice *int, price int, startsAt, endsAt *time.Time) error {
	if salePrice == nil {
		return nil
	}
	if *salePrice < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "sale price cannot be negative")
	}
	if *salePrice >= price {
		return pkgerrors.New(pkgerrors.CodeValidation, "sale price must be below the regular price")
	}
	if startsAt != nil && endsAt != nil && endsAt.Before(*startsAt) {
		return pkgerrors.New(pkgerrors.CodeValidation, "sale window ends before it starts")
	}
	return nil
}
