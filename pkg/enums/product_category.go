package enums

import "fmt"

// ProductCategory classifies catalog listings.
type ProductCategory string

const (
	ProductCategoryBlackTea    ProductCategory = "black_tea"
	ProductCategoryGreenTea    ProductCategory = "green_tea"
	ProductCategoryHerbalTea   ProductCategory = "herbal_tea"
	ProductCategoryOolongTea   ProductCategory = "oolong_tea"
	ProductCategoryChai        ProductCategory = "chai"
	ProductCategoryAccessories ProductCategory = "accessories"
	ProductCategoryGrocery     ProductCategory = "grocery"
	ProductCategorySnacks      ProductCategory = "snacks"
)

var validProductCategories = []ProductCategory{
	ProductCategoryBlackTea,
	ProductCategoryGreenTea,
	ProductCategoryHerbalTea,
	ProductCategoryOolongTea,
	ProductCategoryChai,
	ProductCategoryAccessories,
	ProductCategoryGrocery,
	ProductCategorySnacks,
}

// String implements fmt.Stringer.
func (p ProductCategory) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProductCategory.
func (p ProductCategory) IsValid() bool {
	for _, candidate := range validProductCategories {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProductCategory converts raw input into a ProductCategory.
func ParseProductCategory(value string) (ProductCategory, error) {
	for _, candidate := range validProductCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product category %q", value)
}
