// Package store imports normalized catalog rows into a relational database:
// a products table generated from the normalized columns, a categories table
// and the product_categories junction.
package store

import (
	"context"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Junction and category table names.
const (
	CategoriesTable        = "categories"
	ProductCategoriesTable = "product_categories"
)

// Key columns tried, in order, as the products primary key.
var keyColumns = []string{"product_id", "sku"}

// Category is one distinct category value.
type Category struct {
	ID   string
	Name string
}

// Link ties a product key to a category.
type Link struct {
	ProductID  string
	CategoryID string
}

// Store defines the relational sink for normalized products. Every column
// is stored as text.
type Store interface {
	// EnsureTables creates the products, categories and junction tables and
	// adds any of columns missing from an existing products table.
	EnsureTables(ctx context.Context, table string, columns []string, key string) error
	UpsertProducts(ctx context.Context, table, key string, columns []string, rows [][]string) (int, error)
	UpsertCategories(ctx context.Context, categories []Category) (int, error)
	LinkProductCategories(ctx context.Context, links []Link) (int, error)
	Close() error
}

// ImportOptions configures Import.
type ImportOptions struct {
	Table             string // products table name; default "products"
	CategoryColumn    string // column holding delimited category values; "" disables
	CategoryDelimiter string // default ","
}

// ImportResult summarises one import.
type ImportResult struct {
	Table      string `json:"table"`
	Key        string `json:"key"`
	Products   int    `json:"products"`
	Categories int    `json:"categories"`
	Links      int    `json:"links"`
}

// Import writes a normalized table into s. Rows are keyed by product_id when
// that column exists, else by sku; later rows win over earlier rows with the
// same key and rows with an empty key are skipped.
func Import(ctx context.Context, s Store, columns []string, rows [][]string, opts ImportOptions) (*ImportResult, error) {
	if opts.Table == "" {
		opts.Table = "products"
	}
	if opts.CategoryDelimiter == "" {
		opts.CategoryDelimiter = ","
	}

	keyIdx := -1
	var key string
	for _, k := range keyColumns {
		if i := slices.Index(columns, k); i >= 0 {
			keyIdx, key = i, k
			break
		}
	}
	if keyIdx < 0 {
		return nil, eris.Errorf("store: import: no key column (want one of %v)", keyColumns)
	}

	unique := dedupeByKey(rows, keyIdx)
	if skipped := len(rows) - len(unique); skipped > 0 {
		zap.L().Debug("store: collapsed duplicate or empty keys", zap.Int("rows", skipped))
	}

	if err := s.EnsureTables(ctx, opts.Table, columns, key); err != nil {
		return nil, err
	}

	res := &ImportResult{Table: opts.Table, Key: key}
	n, err := s.UpsertProducts(ctx, opts.Table, key, columns, unique)
	if err != nil {
		return nil, err
	}
	res.Products = n

	catIdx := slices.Index(columns, opts.CategoryColumn)
	if opts.CategoryColumn == "" || catIdx < 0 {
		zap.L().Info("store: import complete", zap.Int("products", res.Products))
		return res, nil
	}

	categories, links := extractCategories(unique, keyIdx, catIdx, opts.CategoryDelimiter)
	if res.Categories, err = s.UpsertCategories(ctx, categories); err != nil {
		return nil, err
	}
	if res.Links, err = s.LinkProductCategories(ctx, links); err != nil {
		return nil, err
	}

	zap.L().Info("store: import complete",
		zap.Int("products", res.Products),
		zap.Int("categories", res.Categories),
		zap.Int("links", res.Links),
	)
	return res, nil
}

// dedupeByKey keeps the last row per non-empty key, in order of each key's
// first appearance.
func dedupeByKey(rows [][]string, keyIdx int) [][]string {
	pos := make(map[string]int, len(rows))
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		if keyIdx >= len(row) {
			continue
		}
		k := strings.TrimSpace(row[keyIdx])
		if k == "" {
			continue
		}
		if i, ok := pos[k]; ok {
			out[i] = row
			continue
		}
		pos[k] = len(out)
		out = append(out, row)
	}
	return out
}

func extractCategories(rows [][]string, keyIdx, catIdx int, delimiter string) ([]Category, []Link) {
	var (
		categories []Category
		links      []Link
	)
	seenCat := make(map[string]bool)
	seenLink := make(map[Link]bool)
	for _, row := range rows {
		if catIdx >= len(row) {
			continue
		}
		for _, raw := range strings.Split(row[catIdx], delimiter) {
			id := strings.TrimSpace(raw)
			if id == "" {
				continue
			}
			if !seenCat[id] {
				seenCat[id] = true
				categories = append(categories, Category{ID: id, Name: categoryName(id)})
			}
			l := Link{ProductID: strings.TrimSpace(row[keyIdx]), CategoryID: id}
			if !seenLink[l] {
				seenLink[l] = true
				links = append(links, l)
			}
		}
	}
	return categories, links
}

// categoryName labels numeric category ids; textual values are their own
// name.
func categoryName(id string) string {
	for _, r := range id {
		if r < '0' || r > '9' {
			return id
		}
	}
	return "Category " + id
}

// Config selects and configures a Store backend.
type Config struct {
	Driver      string // "postgres" or "sqlite"
	DatabaseURL string
	Pool        *PoolConfig
}

// Open connects to the configured backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, cfg.Pool)
	case "sqlite":
		return NewSQLite(strings.TrimPrefix(cfg.DatabaseURL, "sqlite://"))
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

func textArgs(row []string, n int) []any {
	args := make([]any, n)
	for i := 0; i < n; i++ {
		if i < len(row) && row[i] != "" {
			args[i] = row[i]
		}
	}
	return args
}
