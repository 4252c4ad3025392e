package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/steepandstone/teahouse-backend/pkg/enums"
)

// Product is the canonical catalog listing. Rows are soft-deleted via IsActive.
type Product struct {
	ID                 uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name               string                `gorm:"column:name;not null" json:"name"`
	Description        *string               `gorm:"column:description" json:"description,omitempty"`
	Category           enums.ProductCategory `gorm:"column:category;type:product_category;not null" json:"category"`
	PriceCents         int                   `gorm:"column:price_cents;not null" json:"price_cents"`
	OriginalPriceCents *int                  `gorm:"column:original_price_cents" json:"original_price_cents,omitempty"`
	SalePriceCents     *int                  `gorm:"column:sale_price_cents" json:"sale_price_cents,omitempty"`
	SaleStartsAt       *time.Time            `gorm:"column:sale_starts_at" json:"sale_starts_at,omitempty"`
	SaleEndsAt         *time.Time            `gorm:"column:sale_ends_at" json:"sale_ends_at,omitempty"`
	StockQuantity      int                   `gorm:"column:stock_quantity;not null;default:0" json:"stock_quantity"`
	InStock            bool                  `gorm:"column:in_stock;not null;default:true" json:"in_stock"`
	IsActive           bool                  `gorm:"column:is_active;not null;default:true" json:"is_active"`
	IsFeatured         bool                  `gorm:"column:is_featured;not null;default:false" json:"is_featured"`
	ImageURLs          pq.StringArray        `gorm:"column:image_urls;type:text[]" json:"image_urls"`
	RatingAverage      float64               `gorm:"column:rating_average;not null;default:0" json:"rating_average"`
	RatingCount        int                   `gorm:"column:rating_count;not null;default:0" json:"rating_count"`
	Reviews            []ProductReview       `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"reviews,omitempty"`
	CreatedAt          time.Time             `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time             `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// EffectivePriceCents returns the charged price, honoring an active sale window.
func (p Product) EffectivePriceCents(now time.Time) int {
	if p.SalePriceCents == nil {
		return p.PriceCents
	}
	if p.SaleStartsAt != nil && now.Before(*p.SaleStartsAt) {
		return p.PriceCents
	}
	if p.SaleEndsAt != nil && now.After(*p.SaleEndsAt) {
		return p.PriceCents
	}
	return *p.SalePriceCents
}

// Available reports whether the product can currently be ordered at the given quantity.
func (p Product) Available(qty int) bool {
	return p.IsActive && p.InStock && p.StockQuantity >= qty
}
