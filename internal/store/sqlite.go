package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteCategoryTables = `
CREATE TABLE IF NOT EXISTS categories (
	id         TEXT PRIMARY KEY,
	name       TEXT,
	created_at DATETIME DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS product_categories (
	product_id    TEXT NOT NULL,
	category_id   TEXT NOT NULL,
	display_order INTEGER DEFAULT 0,
	created_at    DATETIME DEFAULT (datetime('now')),
	UNIQUE (product_id, category_id)
);

CREATE INDEX IF NOT EXISTS idx_product_categories_product ON product_categories(product_id);
CREATE INDEX IF NOT EXISTS idx_product_categories_category ON product_categories(category_id);
`

func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (s *SQLiteStore) EnsureTables(ctx context.Context, table string, columns []string, key string) error {
	defs := make([]string, 0, len(columns)+1)
	for _, c := range columns {
		if c == key {
			defs = append(defs, quote(c)+" TEXT PRIMARY KEY")
		} else {
			defs = append(defs, quote(c)+" TEXT")
		}
	}
	defs = append(defs, "imported_at DATETIME DEFAULT (datetime('now'))")
	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(table), strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return eris.Wrapf(err, "sqlite: create table %s", table)
	}

	existing, err := s.columns(ctx, table)
	if err != nil {
		return err
	}
	for _, c := range columns {
		if existing[c] {
			continue
		}
		alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT", quote(table), quote(c))
		if _, err := s.db.ExecContext(ctx, alter); err != nil {
			return eris.Wrapf(err, "sqlite: add column %s to %s", c, table)
		}
	}

	if _, err := s.db.ExecContext(ctx, sqliteCategoryTables); err != nil {
		return eris.Wrap(err, "sqlite: create category tables")
	}
	return nil
}

func (s *SQLiteStore) columns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quote(table)))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: table info %s", table)
	}
	defer rows.Close() //nolint:errcheck

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan table info")
		}
		cols[name] = true
	}
	return cols, eris.Wrap(rows.Err(), "sqlite: table info rows")
}

// execBatch runs stmt once per argument row inside a single transaction and
// returns the number of rows changed.
func (s *SQLiteStore) execBatch(ctx context.Context, stmt string, rows [][]any) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	prep, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare")
	}
	defer prep.Close() //nolint:errcheck

	total := 0
	for _, args := range rows {
		res, err := prep.ExecContext(ctx, args...)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: exec")
		}
		n, _ := res.RowsAffected()
		total += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit tx")
	}
	return total, nil
}

func (s *SQLiteStore) UpsertProducts(ctx context.Context, table, key string, columns []string, rows [][]string) (int, error) {
	cols := make([]string, len(columns))
	marks := make([]string, len(columns))
	var sets []string
	for i, c := range columns {
		cols[i] = quote(c)
		marks[i] = "?"
		if c != key {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", quote(c), quote(c)))
		}
	}
	action := "DO NOTHING"
	if len(sets) > 0 {
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		quote(table), strings.Join(cols, ", "), strings.Join(marks, ", "), quote(key), action)

	args := make([][]any, len(rows))
	for i, row := range rows {
		args[i] = textArgs(row, len(columns))
	}
	n, err := s.execBatch(ctx, stmt, args)
	return n, eris.Wrap(err, "sqlite: upsert products")
}

func (s *SQLiteStore) UpsertCategories(ctx context.Context, categories []Category) (int, error) {
	args := make([][]any, len(categories))
	for i, c := range categories {
		args[i] = []any{c.ID, c.Name}
	}
	n, err := s.execBatch(ctx,
		`INSERT INTO categories (id, name) VALUES (?, ?) ON CONFLICT (id) DO UPDATE SET name = excluded.name`, args)
	return n, eris.Wrap(err, "sqlite: upsert categories")
}

func (s *SQLiteStore) LinkProductCategories(ctx context.Context, links []Link) (int, error) {
	args := make([][]any, len(links))
	for i, l := range links {
		args[i] = []any{l.ProductID, l.CategoryID}
	}
	n, err := s.execBatch(ctx,
		`INSERT INTO product_categories (product_id, category_id) VALUES (?, ?) ON CONFLICT (product_id, category_id) DO NOTHING`, args)
	return n, eris.Wrap(err, "sqlite: link product categories")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
