// Package dedupe groups normalized variant rows into unique products keyed by
// a base SKU and aggregates their fields.
package dedupe

import (
	"context"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/catalog-cli/internal/model"
	"github.com/sells-group/catalog-cli/internal/transform"
)

// Canonical field names the deduplicator gives special meaning to.
const (
	FieldSKU         = "sku"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldSize        = "size"
	FieldColor       = "color"
	FieldPrice       = "price"
)

var reserved = map[string]bool{
	FieldSKU: true, FieldTitle: true, FieldDescription: true,
	FieldSize: true, FieldColor: true, FieldPrice: true,
}

// Deduplicator groups variants into UniqueProducts.
type Deduplicator struct {
	vocab   *Vocabulary
	workers int
}

// Option configures a Deduplicator.
type Option func(*Deduplicator)

// WithVocabulary sets the size and color vocabulary.
func WithVocabulary(v *Vocabulary) Option {
	return func(d *Deduplicator) {
		if v != nil {
			d.vocab = v
		}
	}
}

// WithWorkers sets the number of grouping shards.
func WithWorkers(workers int) Option {
	return func(d *Deduplicator) {
		if workers > 0 {
			d.workers = workers
		}
	}
}

// New creates a Deduplicator.
func New(opts ...Option) *Deduplicator {
	d := &Deduplicator{vocab: DefaultVocabulary(), workers: 1}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Result holds the unique products in first-seen order and any variants
// excluded during aggregation.
type Result struct {
	Products []model.UniqueProduct
	Rejected []model.RowError
}

// group is a set of record indices sharing a base SKU. first is the lowest
// index, which fixes both group order and the representative variant.
type group struct {
	base    string
	first   int
	members []int
}

type shard struct {
	order  []string
	groups map[string]*group
}

// Deduplicate groups records by base SKU. Records are sharded across workers
// and partial groups are merged by original row index, so the result does
// not depend on the worker count. Records with an empty base SKU belong to no
// product and are rejected.
func (d *Deduplicator) Deduplicate(ctx context.Context, records []model.NormalizedRecord) (*Result, error) {
	if len(records) == 0 {
		return &Result{}, nil
	}
	cfg := records[0].Config()
	if cfg == nil || cfg.ByName(FieldSKU) == nil {
		return nil, eris.Errorf("dedupe: records have no %q field", FieldSKU)
	}

	bases := make([]variantKey, len(records))
	shards := make([]*shard, d.workers)
	size := (len(records) + d.workers - 1) / d.workers

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for s := 0; s < d.workers; s++ {
		start, end := s*size, min((s+1)*size, len(records))
		g.Go(func() error {
			sh := &shard{groups: make(map[string]*group)}
			for i := start; i < end; i++ {
				if err := gCtx.Err(); err != nil {
					return eris.Wrap(err, "dedupe: cancelled")
				}
				sku, _ := records[i].Get(FieldSKU)
				base, sz, color := d.vocab.BaseSKU(sku.String())
				bases[i] = variantKey{base: base, size: sz, color: color}
				if base == "" {
					continue
				}

				grp, ok := sh.groups[base]
				if !ok {
					grp = &group{base: base, first: i}
					sh.groups[base] = grp
					sh.order = append(sh.order, base)
				}
				grp.members = append(grp.members, i)
			}
			shards[s] = sh
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	groups := mergeShards(shards)

	res := &Result{Products: make([]model.UniqueProduct, 0, len(groups))}
	for i, k := range bases {
		if k.base == "" {
			sku, _ := records[i].Get(FieldSKU)
			res.Rejected = append(res.Rejected, *model.NewMissingGroupKeyRowError(records[i].Row, FieldSKU, sku.String()))
		}
	}
	for _, grp := range groups {
		p, rejected := aggregate(cfg, records, bases, grp)
		res.Rejected = append(res.Rejected, rejected...)
		if p != nil {
			res.Products = append(res.Products, *p)
		}
	}
	slices.SortFunc(res.Rejected, func(a, b model.RowError) int { return a.Row - b.Row })

	zap.L().Info("dedupe: complete",
		zap.Int("variants", len(records)),
		zap.Int("products", len(res.Products)),
		zap.Int("rejected", len(res.Rejected)),
	)
	return res, nil
}

type variantKey struct {
	base, size, color string
}

// mergeShards combines partial groups by base SKU and orders the result by
// each group's lowest record index.
func mergeShards(shards []*shard) []*group {
	merged := make(map[string]*group)
	var out []*group
	for _, sh := range shards {
		if sh == nil {
			continue
		}
		for _, base := range sh.order {
			part := sh.groups[base]
			grp, ok := merged[base]
			if !ok {
				grp = &group{base: base, first: part.first}
				merged[base] = grp
				out = append(out, grp)
			}
			grp.first = min(grp.first, part.first)
			grp.members = append(grp.members, part.members...)
		}
	}
	for _, grp := range out {
		slices.Sort(grp.members)
	}
	slices.SortFunc(out, func(a, b *group) int { return a.first - b.first })
	return out
}

// aggregate builds one UniqueProduct from its variants in input order.
// Variants with a present but non-numeric price are rejected and left out.
func aggregate(cfg *model.NormalizationConfig, records []model.NormalizedRecord, keys []variantKey, grp *group) (*model.UniqueProduct, []model.RowError) {
	var (
		rejected []model.RowError
		accepted []int
	)
	prices := make(map[int]float64)
	hasPrice := cfg.ByName(FieldPrice) != nil
	for _, i := range grp.members {
		if hasPrice {
			v, _ := records[i].Get(FieldPrice)
			if !v.Missing {
				price, ok := priceOf(v)
				if !ok {
					rejected = append(rejected, *model.NewInvalidAggregateRowError(records[i].Row, FieldPrice, v.String()))
					continue
				}
				prices[i] = price
			}
		}
		accepted = append(accepted, i)
	}
	if len(accepted) == 0 {
		return nil, rejected
	}

	first := records[accepted[0]]
	p := &model.UniqueProduct{
		BaseSKU:      grp.base,
		Title:        text(first, FieldTitle),
		Description:  text(first, FieldDescription),
		VariantCount: len(accepted),
		FirstRow:     first.Row,
	}

	var sizes, colors, skus orderedSet
	attrs := make(map[string]*orderedSet)
	for _, i := range accepted {
		r := records[i]
		skus.add(text(r, FieldSKU))

		// Column values win; tokens cut from the SKU keep the SKU's case.
		if s := text(r, FieldSize); s != "" {
			sizes.add(s)
		} else {
			sizes.add(keys[i].size)
		}
		if c := text(r, FieldColor); c != "" {
			colors.add(c)
		} else {
			colors.add(keys[i].color)
		}

		if price, ok := prices[i]; ok {
			if p.Price == nil {
				p.Price = &model.PriceRange{Min: price, Max: price}
			}
			p.Price.Min = min(p.Price.Min, price)
			p.Price.Max = max(p.Price.Max, price)
		}

		for j, f := range cfg.Fields {
			if reserved[f.Name] {
				continue
			}
			set, ok := attrs[f.Name]
			if !ok {
				set = &orderedSet{}
				attrs[f.Name] = set
			}
			set.add(r.Values[j].String())
		}
	}

	p.Sizes = sizes.values()
	p.Colors = colors.values()
	p.SKUs = skus.values()
	if len(attrs) > 0 {
		p.Attributes = make(map[string][]string, len(attrs))
		for name, set := range attrs {
			if vals := set.values(); len(vals) > 0 {
				p.Attributes[name] = vals
			}
		}
	}
	return p, rejected
}

func priceOf(v model.Value) (float64, bool) {
	if v.Type == model.TypeNumber {
		return v.Number, true
	}
	return transform.ParseNumber(v.Text)
}

func text(r model.NormalizedRecord, field string) string {
	v, ok := r.Get(field)
	if !ok {
		return ""
	}
	return v.String()
}

// orderedSet keeps distinct non-empty strings in order of first insertion.
type orderedSet struct {
	seen  map[string]bool
	order []string
}

func (s *orderedSet) add(v string) {
	if v == "" {
		return
	}
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if s.seen[v] {
		return
	}
	s.seen[v] = true
	s.order = append(s.order, v)
}

func (s *orderedSet) values() []string {
	if len(s.order) == 0 {
		return []string{}
	}
	return s.order
}
