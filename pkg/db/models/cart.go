package models

import (
	"time"

	"github.com/google/uuid"
)

// Cart is the single mutable cart per user. Every derived field is recomputed
// by the pricing engine before persistence and is never set from a request.
type Cart struct {
	ID                  uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID              uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex" json:"user_id"`
	Items               []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"`
	TotalItems          int        `gorm:"column:total_items;not null;default:0" json:"total_items"`
	TotalPriceCents     int        `gorm:"column:total_price_cents;not null;default:0" json:"total_price_cents"`
	DiscountCode        *string    `gorm:"column:discount_code" json:"discount_code,omitempty"`
	DiscountAmountCents int        `gorm:"column:discount_amount_cents;not null;default:0" json:"discount_amount_cents"`
	DiscountPercent     float64    `gorm:"column:discount_percent;not null;default:0" json:"discount_percent"`
	TaxRatePercent      float64    `gorm:"column:tax_rate_percent;not null;default:0" json:"tax_rate_percent"`
	TaxAmountCents      int        `gorm:"column:tax_amount_cents;not null;default:0" json:"tax_amount_cents"`
	DeliveryFeeCents    int        `gorm:"column:delivery_fee_cents;not null;default:0" json:"delivery_fee_cents"`
	SubtotalCents       int        `gorm:"column:subtotal_cents;not null;default:0" json:"subtotal_cents"`
	FinalTotalCents     int        `gorm:"column:final_total_cents;not null;default:0" json:"final_total_cents"`
	CreatedAt           time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
