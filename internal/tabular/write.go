package tabular

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// WriteAtomic creates path by writing to a temporary file in the same
// directory and renaming it into place. The temporary file is removed on any
// failure, so path is either the complete new content or untouched.
func WriteAtomic(path string, write func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "tabular: create dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "tabular: create temp file in %s", dir)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return eris.Wrapf(err, "tabular: write %s", path)
	}
	if err = tmp.Sync(); err != nil {
		return eris.Wrapf(err, "tabular: sync %s", path)
	}
	if err = tmp.Close(); err != nil {
		return eris.Wrapf(err, "tabular: close %s", path)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "tabular: rename into %s", path)
	}
	return nil
}

// WriteCSVAtomic writes header and rows as CSV to path.
func WriteCSVAtomic(path string, header []string, rows [][]string) error {
	return WriteAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(header); err != nil {
			return eris.Wrap(err, "write header")
		}
		for _, row := range rows {
			if err := cw.Write(row); err != nil {
				return eris.Wrap(err, "write row")
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// WriteJSONAtomic writes v as indented JSON to path.
func WriteJSONAtomic(path string, v any) error {
	return WriteAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}
