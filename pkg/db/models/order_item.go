package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/steepandstone/teahouse-backend/pkg/types"
)

// OrderItem snapshots a cart line at checkout. Name, price, and image are
// copied from the product so later catalog edits never rewrite history.
type OrderItem struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID        uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	ProductID      uuid.UUID            `gorm:"column:product_id;type:uuid;not null" json:"product_id"`
	Name           string               `gorm:"column:name;not null" json:"name"`
	UnitPriceCents int                  `gorm:"column:unit_price_cents;not null" json:"unit_price_cents"`
	ImageURL       *string              `gorm:"column:image_url" json:"image_url,omitempty"`
	Quantity       int                  `gorm:"column:quantity;not null" json:"quantity"`
	Customizations types.Customizations `gorm:"column:customizations;type:jsonb;serializer:json" json:"customizations"`
	Notes          *string              `gorm:"column:notes" json:"notes,omitempty"`
	LineTotalCents int                  `gorm:"column:line_total_cents;not null" json:"line_total_cents"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
