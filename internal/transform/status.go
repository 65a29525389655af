package transform

// Stock statuses produced by the default mapping.
const (
	StatusInStock    = "in_stock"
	StatusOutOfStock = "out_of_stock"
)

var defaultStatusMapping = map[string]string{
	"enabled":      StatusInStock,
	"active":       StatusInStock,
	"1":            StatusInStock,
	"true":         StatusInStock,
	"in stock":     StatusInStock,
	"available":    StatusInStock,
	"disabled":     StatusOutOfStock,
	"inactive":     StatusOutOfStock,
	"0":            StatusOutOfStock,
	"false":        StatusOutOfStock,
	"out of stock": StatusOutOfStock,
	"unavailable":  StatusOutOfStock,
}

// NormalizeStatus maps a raw stock status through mapping, falling back to
// the mapping's "default" entry and then to the cleaned lowercase input. A
// value that is already a mapping target is kept as is. A nil mapping
// selects the built-in stock vocabulary.
func NormalizeStatus(s string, mapping map[string]string) string {
	key := EnumText(s)
	if key == "" {
		return ""
	}
	if mapping == nil {
		if v, ok := defaultStatusMapping[key]; ok {
			return v
		}
		return key
	}
	if v, ok := mapping[key]; ok {
		return v
	}
	for k, v := range mapping {
		if k != "default" && v == key {
			return key
		}
	}
	if v, ok := mapping["default"]; ok {
		return v
	}
	return key
}
