package cart

import (
	"github.com/shopspring/decimal"

	"github.com/steepandstone/teahouse-backend/pkg/db/models"
)

var hundred = decimal.NewFromInt(100)

// Recompute refreshes every derived field on the cart from its items and the
// applied discount/tax/delivery inputs. It runs before each persist so the
// stored totals are never stale.
func Recompute(cart *models.Cart) {
	totalItems := 0
	totalPrice := 0
	for i := range cart.Items {
		totalItems += cart.Items[i].Quantity
		totalPrice += cart.Items[i].LineTotalCents()
	}
	cart.TotalItems = totalItems
	cart.TotalPriceCents = totalPrice

	// A percentage discount wins over a flat amount.
	discount := cart.DiscountAmountCents
	if cart.DiscountPercent > 0 {
		discount = percentOfCents(totalPrice, cart.DiscountPercent)
	}
	if discount > totalPrice {
		discount = totalPrice
	}
	if discount < 0 {
		discount = 0
	}
	cart.DiscountAmountCents = discount

	subtotal := totalPrice - discount
	cart.SubtotalCents = subtotal

	tax := 0
	if cart.TaxRatePercent > 0 {
		tax = percentOfCents(subtotal, cart.TaxRatePercent)
	}
	cart.TaxAmountCents = tax

	// An empty cart owes nothing, delivery fee included.
	if cart.DeliveryFeeCents < 0 || totalItems == 0 {
		cart.DeliveryFeeCents = 0
	}
	cart.FinalTotalCents = subtotal + tax + cart.DeliveryFeeCents
}

// percentOfCents computes amount × rate/100 with half-up rounding to a cent.
func percentOfCents(amountCents int, ratePercent float64) int {
	amount := decimal.NewFromInt(int64(amountCents))
	rate := decimal.NewFromFloat(ratePercent)
	return int(amount.Mul(rate).Div(hundred).Round(0).IntPart())
}
