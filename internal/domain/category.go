package domain

import "strings"

// Category is one of the fixed food categories a listing may carry.
type Category string

// Categories lists every accepted category in display order.
var Categories = []Category{
	"Rice", "Bread", "Vegetables", "Curry", "Fruits", "Snacks",
	"Dairy", "Meat", "Seafood", "Desserts", "Beverages", "Other",
}

// ParseCategory matches s case-insensitively against Categories and returns
// the canonical spelling.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return "", false
}
