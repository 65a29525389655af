package vector

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

const documentsTable = `
CREATE TABLE IF NOT EXISTS documents (
	id       TEXT PRIMARY KEY,
	text     TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	dims     INTEGER NOT NULL,
	vector   BLOB NOT NULL
)`

// SQLiteIndex stores one collection in a SQLite file.
type SQLiteIndex struct {
	db   *sql.DB
	path string
}

// Path returns the database file of a collection under dir.
func Path(dir, collection string) string {
	return filepath.Join(dir, collection+".db")
}

// OpenSQLite opens (creating if needed) the collection database under dir.
func OpenSQLite(ctx context.Context, dir, collection string) (*SQLiteIndex, error) {
	if collection == "" {
		return nil, eris.New("vector: empty collection name")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "vector: create dir %s", dir)
	}
	path := Path(dir, collection)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "vector: open")
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		documentsTable,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "vector: init %s", path)
		}
	}
	return &SQLiteIndex{db: db, path: path}, nil
}

// Replace implements Index. The delete and the inserts share one
// transaction.
func (s *SQLiteIndex) Replace(ctx context.Context, docs []Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "vector: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return eris.Wrap(err, "vector: clear collection")
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO documents (id, text, metadata, dims, vector) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET text = excluded.text, metadata = excluded.metadata,
	dims = excluded.dims, vector = excluded.vector`)
	if err != nil {
		return eris.Wrap(err, "vector: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, d := range docs {
		meta := d.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return eris.Wrapf(err, "vector: marshal metadata for %s", d.ID)
		}
		if _, err := stmt.ExecContext(ctx, d.ID, d.Text, string(metaJSON), len(d.Vector), encodeVector(d.Vector)); err != nil {
			return eris.Wrapf(err, "vector: insert %s", d.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "vector: commit")
}

// Count implements Index.
func (s *SQLiteIndex) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n)
	return n, eris.Wrap(err, "vector: count")
}

// Get returns a stored document by id.
func (s *SQLiteIndex) Get(ctx context.Context, id string) (*Document, error) {
	var (
		d        Document
		metaJSON string
		blob     []byte
		dims     int
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, text, metadata, dims, vector FROM documents WHERE id = ?", id,
	).Scan(&d.ID, &d.Text, &metaJSON, &dims, &blob)
	if err != nil {
		return nil, eris.Wrapf(err, "vector: get %s", id)
	}
	if err := json.Unmarshal([]byte(metaJSON), &d.Metadata); err != nil {
		return nil, eris.Wrapf(err, "vector: decode metadata for %s", id)
	}
	if d.Vector, err = decodeVector(blob, dims); err != nil {
		return nil, eris.Wrapf(err, "vector: decode %s", id)
	}
	return &d, nil
}

// Close implements Index.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte, dims int) ([]float32, error) {
	if len(buf) != 4*dims {
		return nil, eris.Errorf("vector blob is %d bytes, want %d", len(buf), 4*dims)
	}
	v := make([]float32, dims)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, nil
}
