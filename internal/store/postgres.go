package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-cli/internal/db"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresCategoryTables = `
CREATE TABLE IF NOT EXISTS categories (
	id         TEXT PRIMARY KEY,
	name       TEXT,
	created_at TIMESTAMPTZ DEFAULT now()
);

CREATE TABLE IF NOT EXISTS product_categories (
	product_id    TEXT NOT NULL,
	category_id   TEXT NOT NULL,
	display_order INTEGER DEFAULT 0,
	created_at    TIMESTAMPTZ DEFAULT now(),
	CONSTRAINT uq_product_category UNIQUE (product_id, category_id)
);

CREATE INDEX IF NOT EXISTS idx_product_categories_product ON product_categories(product_id);
CREATE INDEX IF NOT EXISTS idx_product_categories_category ON product_categories(category_id);
`

// productsDDL returns the CREATE TABLE and ALTER TABLE statements for a text
// products table keyed by key.
func productsDDL(table string, columns []string, key string) (create, alter string) {
	name := sanitizeTable(table)

	defs := make([]string, 0, len(columns)+1)
	adds := make([]string, 0, len(columns))
	for _, c := range columns {
		col := pgx.Identifier{c}.Sanitize()
		if c == key {
			defs = append(defs, col+" TEXT PRIMARY KEY")
		} else {
			defs = append(defs, col+" TEXT")
			adds = append(adds, "ADD COLUMN IF NOT EXISTS "+col+" TEXT")
		}
	}
	defs = append(defs, "imported_at TIMESTAMPTZ DEFAULT now()")

	create = fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", name, strings.Join(defs, ", "))
	if len(adds) > 0 {
		alter = fmt.Sprintf("ALTER TABLE %s %s", name, strings.Join(adds, ", "))
	}
	return create, alter
}

func (s *PostgresStore) EnsureTables(ctx context.Context, table string, columns []string, key string) error {
	create, alter := productsDDL(table, columns, key)
	if _, err := s.pool.Exec(ctx, create); err != nil {
		return eris.Wrapf(err, "postgres: create table %s", table)
	}
	if alter != "" {
		if _, err := s.pool.Exec(ctx, alter); err != nil {
			return eris.Wrapf(err, "postgres: add columns to %s", table)
		}
	}
	if _, err := s.pool.Exec(ctx, postgresCategoryTables); err != nil {
		return eris.Wrap(err, "postgres: create category tables")
	}
	return nil
}

func (s *PostgresStore) UpsertProducts(ctx context.Context, table, key string, columns []string, rows [][]string) (int, error) {
	args := make([][]any, len(rows))
	for i, row := range rows {
		args[i] = textArgs(row, len(columns))
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        table,
		Columns:      columns,
		ConflictKeys: []string{key},
	}, args)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert products")
	}
	return int(n), nil
}

func (s *PostgresStore) UpsertCategories(ctx context.Context, categories []Category) (int, error) {
	rows := make([][]any, len(categories))
	for i, c := range categories {
		rows[i] = []any{c.ID, c.Name}
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        CategoriesTable,
		Columns:      []string{"id", "name"},
		ConflictKeys: []string{"id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert categories")
	}
	return int(n), nil
}

func (s *PostgresStore) LinkProductCategories(ctx context.Context, links []Link) (int, error) {
	rows := make([][]any, len(links))
	for i, l := range links {
		rows[i] = []any{l.ProductID, l.CategoryID}
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        ProductCategoriesTable,
		Columns:      []string{"product_id", "category_id"},
		ConflictKeys: []string{"product_id", "category_id"},
		DoNothing:    true,
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: link product categories")
	}
	return int(n), nil
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// sanitizeTable quotes a table name, splitting an optional schema prefix.
func sanitizeTable(table string) string {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}
