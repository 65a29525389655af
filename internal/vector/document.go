// Package vector builds embedding documents from catalog rows and persists
// them in a local vector collection.
package vector

import (
	"strconv"
	"strings"

	"github.com/sells-group/catalog-cli/internal/model"
	"github.com/sells-group/catalog-cli/internal/transform"
)

// Granularity selects whether documents are built per product or per variant.
type Granularity string

const (
	GranularityProduct Granularity = "product"
	GranularityVariant Granularity = "variant"
)

// Valid reports whether g is a known granularity.
func (g Granularity) Valid() bool {
	return g == GranularityProduct || g == GranularityVariant
}

// Document is one indexed item.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]any
	Vector   []float32
}

// DocumentOptions controls how rows become documents.
type DocumentOptions struct {
	// IDColumns are tried in order; the first non-empty value is the id.
	IDColumns []string

	// DocumentColumns form the text, joined by ". ".
	DocumentColumns []string
}

// BuildDocuments turns a table into documents. Metadata holds the values of
// columns the schema can filter on; number_range values are stored as
// float64 parsed the way the normalizer parses prices. Rows whose text is
// empty are skipped. Ids that are missing or repeated fall back to "row-N".
func BuildDocuments(header []string, rows [][]string, schema model.AttributeSchema, opts DocumentOptions) []Document {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		if _, ok := pos[h]; !ok {
			pos[h] = i
		}
	}
	at := func(row []string, col string) string {
		i, ok := pos[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	filterable := schema.Filterable()
	seen := make(map[string]bool, len(rows))
	docs := make([]Document, 0, len(rows))

	for n, row := range rows {
		var parts []string
		for _, col := range opts.DocumentColumns {
			if v := at(row, col); v != "" {
				parts = append(parts, v)
			}
		}
		if len(parts) == 0 {
			continue
		}

		id := ""
		for _, col := range opts.IDColumns {
			if v := at(row, col); v != "" {
				id = v
				break
			}
		}
		if id == "" || seen[id] {
			id = "row-" + strconv.Itoa(n+1)
		}
		seen[id] = true

		meta := make(map[string]any, len(filterable))
		for _, col := range filterable {
			v := at(row, col)
			if v == "" {
				continue
			}
			if schema[col].Type == model.AttrNumberRange {
				f, ok := transform.ParseNumber(v)
				if !ok {
					continue
				}
				meta[col] = f
				continue
			}
			meta[col] = v
		}

		docs = append(docs, Document{
			ID:       id,
			Text:     strings.Join(parts, ". "),
			Metadata: meta,
		})
	}
	return docs
}
