package model

// PriceRange is the observed price span across a product's variants.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// UniqueProduct aggregates every variant sharing a BaseSKU.
type UniqueProduct struct {
	BaseSKU      string      `json:"base_sku"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Sizes        []string    `json:"sizes"`
	Colors       []string    `json:"colors"`
	SKUs         []string    `json:"skus"`
	Price        *PriceRange `json:"price,omitempty"`
	VariantCount int         `json:"variant_count"`
	FirstRow     int         `json:"-"`

	// Attributes holds, per remaining canonical field, the distinct variant
	// values in order of first appearance.
	Attributes map[string][]string `json:"attributes,omitempty"`
}
