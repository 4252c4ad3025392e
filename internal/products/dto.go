package products

import (
	"time"

	"github.com/google/uuid"

	"github.com/steepandstone/teahouse-backend/pkg/db/models"
	"github.com/steepandstone/teahouse-backend/pkg/enums"
	"github.com/steepandstone/teahouse-backend/pkg/pagination"
)

// ProductDTO is the catalog transport shape. EffectivePriceCents reflects the
// active sale window at read time.
type ProductDTO struct {
	ID                  uuid.UUID             `json:"id"`
	Name                string                `json:"name"`
	Description         *string               `json:"description,omitempty"`
	Category            enums.ProductCategory `json:"category"`
	PriceCents          int                   `json:"price_cents"`
	EffectivePriceCents int                   `json:"effective_price_cents"`
	OnSale              bool                  `json:"on_sale"`
	SalePriceCents      *int                  `json:"sale_price_cents,omitempty"`
	SaleStartsAt        *time.Time            `json:"sale_starts_at,omitempty"`
	SaleEndsAt          *time.Time            `json:"sale_ends_at,omitempty"`
	StockQuantity       int                   `json:"stock_quantity"`
	InStock             bool                  `json:"in_stock"`
	IsActive            bool                  `json:"is_active"`
	IsFeatured          bool                  `json:"is_featured"`
	ImageURLs           []string              `json:"image_urls"`
	RatingAverage       float64               `json:"rating_average"`
	RatingCount         int                   `json:"rating_count"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
}

// ReviewDTO is one customer's review of a product.
type ReviewDTO struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	UserID    uuid.UUID `json:"user_id"`
	Rating    int       `json:"rating"`
	Comment   *string   `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateProductInput carries admin-supplied fields for a new listing.
type CreateProductInput struct {
	Name           string
	Description    *string
	Category       enums.ProductCategory
	PriceCents     int
	SalePriceCents *int
	SaleStartsAt   *time.Time
	SaleEndsAt     *time.Time
	StockQuantity  int
	IsFeatured     bool
	ImageURLs      []string
}

// UpdateProductInput carries optional admin updates; nil fields are untouched.
type UpdateProductInput struct {
	Name           *string
	Description    *string
	Category       *enums.ProductCategory
	PriceCents     *int
	SalePriceCents *int
	ClearSale      bool
	SaleStartsAt   *time.Time
	SaleEndsAt     *time.Time
	IsFeatured     *bool
	ImageURLs      []string
}

// ListFilter narrows catalog queries.
type ListFilter struct {
	Category   *enums.ProductCategory
	Search     string
	Featured   *bool
	InStock    *bool
	OnSale     *bool
	MinCents   *int
	MaxCents   *int
	SortBy     string
	Pagination pagination.Params
	// IncludeInactive widens results to soft-deleted listings for admin views.
	IncludeInactive bool
}

// SubmitReviewInput carries one rating submission.
type SubmitReviewInput struct {
	ProductID uuid.UUID
	UserID    uuid.UUID
	Rating    int
	Comment   *string
}

func fromModel(p *models.Product, now time.Time) *ProductDTO {
	if p == nil {
		return nil
	}
	effective := p.EffectivePriceCents(now)
	return &ProductDTO{
		ID:                  p.ID,
		Name:                p.Name,
		Description:         p.Description,
		Category:            p.Category,
		PriceCents:          p.PriceCents,
		EffectivePriceCents: effective,
		OnSale:              effective != p.PriceCents,
		SalePriceCents:      p.SalePriceCents,
		SaleStartsAt:        p.SaleStartsAt,
		SaleEndsAt:          p.SaleEndsAt,
		StockQuantity:       p.StockQuantity,
		InStock:             p.InStock && p.StockQuantity > 0,
		IsActive:            p.IsActive,
		IsFeatured:          p.IsFeatured,
		ImageURLs:           append([]string(nil), p.ImageURLs...),
		RatingAverage:       p.RatingAverage,
		RatingCount:         p.RatingCount,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
}

func reviewFromModel(r *models.ProductReview) *ReviewDTO {
	if r == nil {
		return nil
	}
	return &ReviewDTO{
		ID:        r.ID,
		ProductID: r.ProductID,
		UserID:    r.UserID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
	}
}
