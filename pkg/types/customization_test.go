package types

import "testing"

func TestCustomizationsKey(t *testing.T) {
	oatMilk := Customization{Option: "milk", Value: "oat", AdditionalPriceCents: 50}
	large := Customization{Option: "size", Value: "large", AdditionalPriceCents: 100}

	a := Customizations{oatMilk, large}
	b := Customizations{oatMilk, large}
	reversed := Customizations{large, oatMilk}

	if a.Key() != b.Key() {
		t.Fatal("identical lists must share a key")
	}
	if a.Key() == reversed.Key() {
		t.Fatal("key is order-sensitive; reordered lists are distinct lines")
	}
	if (Customizations{}).Key() != "" {
		t.Fatal("empty list key must be empty")
	}
}

func TestAdditionalTotalCents(t *testing.T) {
	c := Customizations{
		{Option: "milk", Value: "oat", AdditionalPriceCents: 50},
		{Option: "syrup", Value: "honey", AdditionalPriceCents: 25},
	}
	if got := c.AdditionalTotalCents(); got != 75 {
		t.Fatalf("expected 75, got %d", got)
	}
}
