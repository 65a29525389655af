// Package normalize maps raw vendor rows onto the canonical field set,
// coercing each value to its declared type.
package normalize

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/catalog-cli/internal/model"
	"github.com/sells-group/catalog-cli/internal/registry"
	"github.com/sells-group/catalog-cli/internal/transform"
)

const minChunk = 256

// Normalizer converts RawRecords into NormalizedRecords.
type Normalizer struct {
	dates   *transform.DateParser
	workers int
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithWorkers sets the number of parallel row workers.
func WithWorkers(workers int) Option {
	return func(n *Normalizer) {
		if workers > 0 {
			n.workers = workers
		}
	}
}

// WithDateFormats sets the ordered date layouts tried for date fields.
func WithDateFormats(formats []string) Option {
	return func(n *Normalizer) {
		n.dates = transform.NewDateParser(formats)
	}
}

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		dates:   transform.NewDateParser(nil),
		workers: 1,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Result holds the accepted records in input order, the rejected rows and
// per-field fill counts over the accepted records.
type Result struct {
	Records  []model.NormalizedRecord
	Rejected []model.RowError
	Stats    []model.FieldStats
}

type outcome struct {
	values []model.Value
	reject *model.RowError
}

// Normalize converts rows using the field resolutions from a successful
// registry.Validate call. Rows whose critical fields are empty or fail
// coercion are rejected with a RowError; optional failures become missing
// values. Output order matches input order regardless of worker count.
func (n *Normalizer) Normalize(ctx context.Context, rows []model.RawRecord, cfg *model.NormalizationConfig, validation *registry.ValidationResult) (*Result, error) {
	if validation == nil || len(validation.Resolutions) != len(cfg.Fields) {
		return nil, eris.New("normalize: validation result does not match config")
	}

	outcomes := make([]outcome, len(rows))

	chunk := (len(rows) + n.workers - 1) / n.workers
	if chunk < minChunk {
		chunk = minChunk
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(n.workers)
	for start := 0; start < len(rows); start += chunk {
		end := min(start+chunk, len(rows))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gCtx.Err(); err != nil {
					return eris.Wrap(err, "normalize: cancelled")
				}
				outcomes[i] = n.normalizeRow(rows[i], cfg, validation.Resolutions)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Records: make([]model.NormalizedRecord, 0, len(rows))}
	stats := make([]model.FieldStats, len(cfg.Fields))
	for i, f := range cfg.Fields {
		stats[i].Field = f.Name
	}
	for i, o := range outcomes {
		if o.reject != nil {
			res.Rejected = append(res.Rejected, *o.reject)
			zap.L().Warn("normalize: row rejected",
				zap.Int("row", o.reject.Row),
				zap.String("field", o.reject.Field),
				zap.String("reason", o.reject.Reason),
			)
			continue
		}
		for j, v := range o.values {
			if v.Missing {
				stats[j].Missing++
			} else {
				stats[j].Present++
			}
		}
		res.Records = append(res.Records, model.NewNormalizedRecord(cfg, rows[i].Row, o.values))
	}
	res.Stats = stats

	zap.L().Info("normalize: complete",
		zap.Int("rows", len(rows)),
		zap.Int("accepted", len(res.Records)),
		zap.Int("rejected", len(res.Rejected)),
	)
	return res, nil
}

func (n *Normalizer) normalizeRow(row model.RawRecord, cfg *model.NormalizationConfig, resolutions []registry.Resolution) outcome {
	values := make([]model.Value, len(cfg.Fields))
	for i := range cfg.Fields {
		f := &cfg.Fields[i]
		raw := resolve(row, f, resolutions[i])

		if strings.TrimSpace(raw) == "" {
			if f.IsCritical() {
				return outcome{reject: model.NewMissingCriticalRowError(row.Row, f.Name)}
			}
			values[i] = model.MissingValue(f.Type)
			continue
		}

		v, ok := n.coerce(f, raw)
		if ok {
			values[i] = v
			continue
		}
		if f.IsCritical() {
			if f.Type == model.TypeString || f.Type == model.TypeEnum {
				return outcome{reject: model.NewMissingCriticalRowError(row.Row, f.Name)}
			}
			return outcome{reject: model.NewInvalidCriticalRowError(row.Row, f.Name, raw, f.Type)}
		}
		values[i] = model.MissingValue(f.Type)
	}
	return outcome{values: values}
}

// resolve returns the raw value of f for row. The default strategy reads the
// first alias present in the header; first_non_empty reads the first alias
// whose value is non-blank in this row.
func resolve(row model.RawRecord, f *model.FieldMapping, r registry.Resolution) string {
	if f.MergeStrategy != model.MergeFirstNonEmpty {
		return row.At(r.Column())
	}
	for _, col := range r.Columns {
		if v := row.At(col); strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// coerce applies f's transform and type rule to a non-blank raw value. A
// false return means the value could not be represented in f's type.
func (n *Normalizer) coerce(f *model.FieldMapping, raw string) (model.Value, bool) {
	if f.Transform == model.TransformStripHTML {
		raw = transform.StripHTML(raw)
	}

	switch f.Type {
	case model.TypeNumber:
		v, ok := transform.ParseNumber(raw)
		if !ok {
			return model.Value{}, false
		}
		return model.NumberValue(v), true
	case model.TypeDate:
		t, ok := n.dates.Parse(raw)
		if !ok {
			return model.Value{}, false
		}
		return model.DateValue(t), true
	case model.TypeEnum:
		var s string
		switch {
		case f.Transform == model.TransformStatus, f.ValueMapping != nil:
			s = transform.NormalizeStatus(raw, f.ValueMapping)
		default:
			s = transform.EnumText(raw)
		}
		return model.TextValue(model.TypeEnum, s), s != ""
	default:
		s := transform.CleanText(raw)
		if f.Transform == model.TransformStatus {
			s = transform.NormalizeStatus(s, f.ValueMapping)
		}
		return model.TextValue(model.TypeString, s), s != ""
	}
}
