package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/steepandstone/teahouse-backend/pkg/types"
)

// CartItem is one line in a cart. UnitPriceCents is captured at add time;
// line identity is (ProductID, serialized customization list).
type CartItem struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CartID         uuid.UUID            `gorm:"column:cart_id;type:uuid;not null;index" json:"cart_id"`
	ProductID      uuid.UUID            `gorm:"column:product_id;type:uuid;not null" json:"product_id"`
	Quantity       int                  `gorm:"column:quantity;not null" json:"quantity"`
	UnitPriceCents int                  `gorm:"column:unit_price_cents;not null" json:"unit_price_cents"`
	Customizations types.Customizations `gorm:"column:customizations;type:jsonb;serializer:json" json:"customizations"`
	Notes          *string              `gorm:"column:notes" json:"notes,omitempty"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// LineTotalCents is the charged amount for this line.
func (i CartItem) LineTotalCents() int {
	return (i.UnitPriceCents + i.Customizations.AdditionalTotalCents()) * i.Quantity
}

// Matches reports whether the line has the given identity.
func (i CartItem) Matches(productID uuid.UUID, customizations types.Customizations) bool {
	return i.ProductID == productID && i.Customizations.Key() == customizations.Key()
}
