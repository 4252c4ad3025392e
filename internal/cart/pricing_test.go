package cart

import (
	"testing"

	"github.com/steepandstone/teahouse-backend/pkg/db/models"
	"github.com/steepandstone/teahouse-backend/pkg/types"
)

func item(unitCents, qty int, adds ...int) models.CartItem {
	customizations := types.Customizations{}
	for i, add := range adds {
		customizations = append(customizations, types.Customization{
			Option:               "extra",
			Value:                string(rune('a' + i)),
			AdditionalPriceCents: add,
		})
	}
	return models.CartItem{
		Quantity:       qty,
		UnitPriceCents: unitCents,
		Customizations: customizations,
	}
}

func TestRecomputeLineAndCartTotals(t *testing.T) {
	cart := &models.Cart{
		Items: []models.CartItem{
			item(450, 2, 50),  // (450+50)*2 = 1000
			item(300, 1),      // 300
		},
	}
	Recompute(cart)

	if cart.TotalItems != 3 {
		t.Fatalf("total items = %d, want 3", cart.TotalItems)
	}
	if cart.TotalPriceCents != 1300 {
		t.Fatalf("total price = %d, want 1300", cart.TotalPriceCents)
	}
	if cart.SubtotalCents != 1300 || cart.FinalTotalCents != 1300 {
		t.Fatalf("no-discount totals mismatch: subtotal=%d final=%d", cart.SubtotalCents, cart.FinalTotalCents)
	}
}

func TestRecomputePercentDiscount(t *testing.T) {
	cart := &models.Cart{
		Items:           []models.CartItem{item(1000, 1)},
		DiscountPercent: 20,
	}
	Recompute(cart)

	if cart.DiscountAmountCents != 200 {
		t.Fatalf("discount = %d, want 200", cart.DiscountAmountCents)
	}
	if cart.SubtotalCents != 800 || cart.FinalTotalCents != 800 {
		t.Fatalf("subtotal=%d final=%d, want 800/800", cart.SubtotalCents, cart.FinalTotalCents)
	}
}

func TestRecomputePercentWinsOverFlatAmount(t *testing.T) {
	cart := &models.Cart{
		Items:               []models.CartItem{item(1000, 1)},
		DiscountAmountCents: 500,
		DiscountPercent:     10,
	}
	Recompute(cart)

	if cart.DiscountAmountCents != 100 {
		t.Fatalf("discount = %d, want percentage-derived 100", cart.DiscountAmountCents)
	}
}

func TestRecomputeDiscountClampedToTotal(t *testing.T) {
	cart := &models.Cart{
		Items:               []models.CartItem{item(300, 1)},
		DiscountAmountCents: 1000,
	}
	Recompute(cart)

	if cart.DiscountAmountCents != 300 || cart.SubtotalCents != 0 {
		t.Fatalf("discount=%d subtotal=%d, want 300/0", cart.DiscountAmountCents, cart.SubtotalCents)
	}
}

func TestRecomputeTaxHalfUpRounding(t *testing.T) {
	// 333 * 8.25% = 27.4725 -> 27; 999 * 7.5% = 74.925 -> 75
	cases := []struct {
		subtotal int
		rate     float64
		wantTax  int
	}{
		{333, 8.25, 27},
		{999, 7.5, 75},
		{1000, 8.875, 89},
	}
	for _, tc := range cases {
		cart := &models.Cart{
			Items:          []models.CartItem{item(tc.subtotal, 1)},
			TaxRatePercent: tc.rate,
		}
		Recompute(cart)
		if cart.TaxAmountCents != tc.wantTax {
			t.Errorf("tax on %d at %v%% = %d, want %d", tc.subtotal, tc.rate, cart.TaxAmountCents, tc.wantTax)
		}
	}
}

func TestRecomputeFinalTotalComposition(t *testing.T) {
	cart := &models.Cart{
		Items:            []models.CartItem{item(2000, 1)},
		DiscountPercent:  25, // -> 500
		TaxRatePercent:   10, // on 1500 -> 150
		DeliveryFeeCents: 299,
	}
	Recompute(cart)

	if cart.FinalTotalCents != 1500+150+299 {
		t.Fatalf("final = %d, want %d", cart.FinalTotalCents, 1500+150+299)
	}
}

func TestRecomputeEmptyCartZeroesEverything(t *testing.T) {
	cart := &models.Cart{
		Items:               nil,
		DiscountAmountCents: 100,
		TaxRatePercent:      10,
		DeliveryFeeCents:    500,
	}
	Recompute(cart)

	if cart.TotalItems != 0 || cart.TotalPriceCents != 0 || cart.SubtotalCents != 0 ||
		cart.DiscountAmountCents != 0 || cart.TaxAmountCents != 0 ||
		cart.DeliveryFeeCents != 0 || cart.FinalTotalCents != 0 {
		t.Fatalf("empty cart should zero all derived fields: %+v", cart)
	}
}
