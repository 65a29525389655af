// Package schema infers a filterable attribute schema from a tabular
// dataset.
package schema

import (
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-cli/internal/model"
	"github.com/sells-group/catalog-cli/internal/tabular"
	"github.com/sells-group/catalog-cli/internal/transform"
)

// Defaults used when an Inferencer option is not set.
const (
	DefaultEnumMaxValues = 50
)

// DefaultDocumentColumns are free-text columns left out of the schema.
var DefaultDocumentColumns = []string{"title", "description"}

// Inferencer classifies columns as enum, number_range, date or string.
type Inferencer struct {
	enumMaxValues   int
	enumMaxFraction float64
	documents       map[string]bool
	dates           *transform.DateParser
}

// Option configures an Inferencer.
type Option func(*Inferencer)

// WithEnumMaxValues sets the absolute cap on distinct values for enums.
func WithEnumMaxValues(n int) Option {
	return func(in *Inferencer) {
		if n > 0 {
			in.enumMaxValues = n
		}
	}
}

// WithEnumMaxFraction further caps the enum cutoff at fraction × row count.
// Zero disables the fractional cap.
func WithEnumMaxFraction(f float64) Option {
	return func(in *Inferencer) {
		in.enumMaxFraction = f
	}
}

// WithDocumentColumns replaces the set of free-text columns to exclude.
func WithDocumentColumns(cols []string) Option {
	return func(in *Inferencer) {
		in.documents = make(map[string]bool, len(cols))
		for _, c := range cols {
			in.documents[model.NormalizeHeader(c)] = true
		}
	}
}

// WithDateFormats sets the ordered date layouts used for date detection.
func WithDateFormats(formats []string) Option {
	return func(in *Inferencer) {
		in.dates = transform.NewDateParser(formats)
	}
}

// NewInferencer creates an Inferencer.
func NewInferencer(opts ...Option) *Inferencer {
	in := &Inferencer{
		enumMaxValues: DefaultEnumMaxValues,
		dates:         transform.NewDateParser(nil),
	}
	WithDocumentColumns(DefaultDocumentColumns)(in)
	for _, o := range opts {
		o(in)
	}
	return in
}

// Cutoff returns the largest distinct-value count still classified as enum
// for a dataset of the given row count.
func (in *Inferencer) Cutoff(rows int) int {
	cutoff := in.enumMaxValues
	if in.enumMaxFraction > 0 {
		cutoff = min(cutoff, int(in.enumMaxFraction*float64(rows)))
	}
	return cutoff
}

// Infer builds the AttributeSchema of every non-document column. The result
// depends only on the multiset of values in each column, never on row order.
func (in *Inferencer) Infer(header []string, rows [][]string) model.AttributeSchema {
	out := make(model.AttributeSchema, len(header))
	cutoff := in.Cutoff(len(rows))

	for col, name := range header {
		key := strings.TrimSpace(name)
		if key == "" || in.documents[model.NormalizeHeader(key)] {
			continue
		}

		distinct := make(map[string]struct{})
		for _, row := range rows {
			if col >= len(row) {
				continue
			}
			if v := strings.TrimSpace(row[col]); v != "" {
				distinct[v] = struct{}{}
			}
		}
		out[key] = in.classify(distinct, cutoff)
	}

	zap.L().Debug("schema: inferred",
		zap.Int("columns", len(out)),
		zap.Int("rows", len(rows)),
		zap.Int("enum_cutoff", cutoff),
	)
	return out
}

func (in *Inferencer) classify(distinct map[string]struct{}, cutoff int) model.AttributeDescriptor {
	if len(distinct) == 0 {
		return model.AttributeDescriptor{Type: model.AttrString}
	}

	if d, ok := in.dateRange(distinct); ok {
		return d
	}
	if d, ok := numberRange(distinct); ok {
		return d
	}

	lower := make(map[string]struct{}, len(distinct))
	for v := range distinct {
		lower[transform.EnumText(v)] = struct{}{}
	}
	if len(lower) <= cutoff {
		values := make([]string, 0, len(lower))
		for v := range lower {
			values = append(values, v)
		}
		slices.Sort(values)
		return model.AttributeDescriptor{Type: model.AttrEnum, Values: values}
	}
	return model.AttributeDescriptor{Type: model.AttrString}
}

func (in *Inferencer) dateRange(distinct map[string]struct{}) (model.AttributeDescriptor, bool) {
	var lo, hi time.Time
	first := true
	for v := range distinct {
		t, ok := in.dates.Parse(v)
		if !ok {
			return model.AttributeDescriptor{}, false
		}
		t = model.DateValue(t).Time
		if first || t.Before(lo) {
			lo = t
		}
		if first || t.After(hi) {
			hi = t
		}
		first = false
	}
	return model.AttributeDescriptor{Type: model.AttrDate, MinDate: lo, MaxDate: hi}, true
}

func numberRange(distinct map[string]struct{}) (model.AttributeDescriptor, bool) {
	var lo, hi float64
	first := true
	for v := range distinct {
		n, ok := transform.ParseNumber(v)
		if !ok {
			return model.AttributeDescriptor{}, false
		}
		if first || n < lo {
			lo = n
		}
		if first || n > hi {
			hi = n
		}
		first = false
	}
	return model.AttributeDescriptor{Type: model.AttrNumberRange, Min: lo, Max: hi}, true
}

// Path returns the schema file location for a collection.
func Path(dir, collection string) string {
	return filepath.Join(dir, collection+"_schema.json")
}

// Write persists s as JSON under dir, replacing any previous schema for the
// collection atomically. It returns the written path.
func Write(dir, collection string, s model.AttributeSchema) (string, error) {
	path := Path(dir, collection)
	if err := tabular.WriteJSONAtomic(path, s); err != nil {
		return "", eris.Wrap(err, "schema: write")
	}
	return path, nil
}
