package types

import (
	"fmt"
	"strings"
)

// Customization is a named option/value pair with a price delta, attached to a line item.
type Customization struct {
	Option               string `json:"option"`
	Value                string `json:"value"`
	AdditionalPriceCents int    `json:"additional_price_cents"`
}

// Customizations is the ordered customization list persisted as jsonb.
type Customizations []Customization

// Key returns the canonical serialized form used for line-item identity.
// Two lines for the same product with different keys stay distinct.
func (c Customizations) Key() string {
	if len(c) == 0 {
		return ""
	}
	parts := make([]string, 0, len(c))
	for _, item := range c {
		parts = append(parts, fmt.Sprintf("%s=%s@%d", item.Option, item.Value, item.AdditionalPriceCents))
	}
	return strings.Join(parts, "|")
}

// AdditionalTotalCents sums the price deltas across the list.
func (c Customizations) AdditionalTotalCents() int {
	total := 0
	for _, item := range c {
		total += item.AdditionalPriceCents
	}
	return total
}
