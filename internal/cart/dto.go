package cart

import (
	"time"

	"github.com/google/uuid"

	"github.com/steepandstone/teahouse-backend/pkg/db/models"
	"github.com/steepandstone/teahouse-backend/pkg/types"
)

// CartDTO is the transport shape of a cart with its derived totals.
type CartDTO struct {
	ID                  uuid.UUID     `json:"id"`
	UserID              uuid.UUID     `json:"user_id"`
	Items               []CartItemDTO `json:"items"`
	TotalItems          int           `json:"total_items"`
	TotalPriceCents     int           `json:"total_price_cents"`
	DiscountCode        *string       `json:"discount_code,omitempty"`
	DiscountAmountCents int           `json:"discount_amount_cents"`
	DiscountPercent     float64       `json:"discount_percent"`
	TaxRatePercent      float64       `json:"tax_rate_percent"`
	TaxAmountCents      int           `json:"tax_amount_cents"`
	DeliveryFeeCents    int           `json:"delivery_fee_cents"`
	SubtotalCents       int           `json:"subtotal_cents"`
	FinalTotalCents     int           `json:"final_total_cents"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// CartItemDTO is one line in the cart response.
type CartItemDTO struct {
	ID             uuid.UUID            `json:"id"`
	ProductID      uuid.UUID            `json:"product_id"`
	Quantity       int                  `json:"quantity"`
	UnitPriceCents int                  `json:"unit_price_cents"`
	Customizations types.Customizations `json:"customizations"`
	Notes          *string              `json:"notes,omitempty"`
	LineTotalCents int                  `json:"line_total_cents"`
}

// AddItemInput carries one add-to-cart request.
type AddItemInput struct {
	UserID         uuid.UUID
	ProductID      uuid.UUID
	Quantity       int
	Customizations types.Customizations
	Notes          *string
}

// DiscountInput applies a discount; a positive percent wins over the amount.
type DiscountInput struct {
	UserID      uuid.UUID
	Code        *string
	AmountCents int
	Percent     float64
}

func fromCartModel(c *models.Cart) *CartDTO {
	if c == nil {
		return nil
	}
	items := make([]CartItemDTO, 0, len(c.Items))
	for i := range c.Items {
		items = append(items, fromItemModel(&c.Items[i]))
	}
	return &CartDTO{
		ID:                  c.ID,
		UserID:              c.UserID,
		Items:               items,
		TotalItems:          c.TotalItems,
		TotalPriceCents:     c.TotalPriceCents,
		DiscountCode:        c.DiscountCode,
		DiscountAmountCents: c.DiscountAmountCents,
		DiscountPercent:     c.DiscountPercent,
		TaxRatePercent:      c.TaxRatePercent,
		TaxAmountCents:      c.TaxAmountCents,
		DeliveryFeeCents:    c.DeliveryFeeCents,
		SubtotalCents:       c.SubtotalCents,
		FinalTotalCents:     c.FinalTotalCents,
		UpdatedAt:           c.UpdatedAt,
	}
}

func fromItemModel(item *models.CartItem) CartItemDTO {
	return CartItemDTO{
		ID:             item.ID,
		ProductID:      item.ProductID,
		Quantity:       item.Quantity,
		UnitPriceCents: item.UnitPriceCents,
		Customizations: item.Customizations,
		Notes:          item.Notes,
		LineTotalCents: item.LineTotalCents(),
	}
}
