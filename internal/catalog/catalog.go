// Package catalog flattens the categorized product listing and manages the
// products mapped to each vendor.
package catalog

import (
	"strings"

	"emart_admin/internal/api"
)

const (
	InStock    = "in stock"
	OutOfStock = "out of stock"
)

// Flatten lists every product in category order, tagged with its category.
func Flatten(c api.Catalog) []api.Product {
	var out []api.Product
	for _, category := range c {
		for _, p := range category.Products {
			p.Category = category.Name
			out = append(out, p)
		}
	}
	return out
}

func Categories(c api.Catalog) []string {
	names := make([]string, 0, len(c))
	for _, category := range c {
		names = append(names, category.Name)
	}
	return names
}

// Filter keeps products whose name contains search, case-insensitively, and
// that belong to category when one is given.
func Filter(products []api.Product, search, category string) []api.Product {
	needle := strings.ToLower(strings.TrimSpace(search))
	var out []api.Product
	for _, p := range products {
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Available drops products that are not in stock.
func Available(products []api.Product) []api.Product {
	var out []api.Product
	for _, p := range products {
		if strings.EqualFold(strings.TrimSpace(p.Availability), InStock) {
			out = append(out, p)
		}
	}
	return out
}

// Find looks a product up by id or retailer id.
func Find(products []api.Product, id string) (api.Product, bool) {
	for _, p := range products {
		if p.ID.String() == id || p.RetailerID.String() == id {
			return p, true
		}
	}
	return api.Product{}, false
}

// ToggleAvailability returns the opposite stock state.
func ToggleAvailability(current string) string {
	if strings.EqualFold(strings.TrimSpace(current), InStock) {
		return OutOfStock
	}
	return InStock
}
