package dedupe

import (
	"strconv"
	"strings"

	"github.com/sells-group/catalog-cli/internal/model"
	"github.com/sells-group/catalog-cli/internal/transform"
)

// Products table columns that precede the per-field attribute columns.
var productColumns = []string{
	"base_sku", "title", "description", "sizes", "colors", "skus",
	"price_min", "price_max", "variant_count",
}

// Table renders products as a header plus one row per product. Array fields
// are joined with delimiter; the price range becomes price_min and
// price_max. Remaining canonical fields follow in declared order.
func Table(products []model.UniqueProduct, cfg *model.NormalizationConfig, delimiter string) ([]string, [][]string) {
	var attrCols []string
	for _, f := range cfg.Fields {
		if !reserved[f.Name] {
			attrCols = append(attrCols, f.Name)
		}
	}

	header := append(append([]string{}, productColumns...), attrCols...)
	rows := make([][]string, len(products))
	for i, p := range products {
		row := make([]string, 0, len(header))
		minPrice, maxPrice := "", ""
		if p.Price != nil {
			minPrice = transform.FormatNumber(p.Price.Min)
			maxPrice = transform.FormatNumber(p.Price.Max)
		}
		row = append(row,
			p.BaseSKU,
			p.Title,
			p.Description,
			strings.Join(p.Sizes, delimiter),
			strings.Join(p.Colors, delimiter),
			strings.Join(p.SKUs, delimiter),
			minPrice,
			maxPrice,
			strconv.Itoa(p.VariantCount),
		)
		for _, col := range attrCols {
			row = append(row, strings.Join(p.Attributes[col], delimiter))
		}
		rows[i] = row
	}
	return header, rows
}
