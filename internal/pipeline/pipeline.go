// Package pipeline runs the catalog stages in order: config validation,
// normalization, optional deduplication, output files, relational import and
// schema inference with vector indexing.
package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-cli/internal/config"
	"github.com/sells-group/catalog-cli/internal/dedupe"
	"github.com/sells-group/catalog-cli/internal/model"
	"github.com/sells-group/catalog-cli/internal/normalize"
	"github.com/sells-group/catalog-cli/internal/registry"
	"github.com/sells-group/catalog-cli/internal/schema"
	"github.com/sells-group/catalog-cli/internal/store"
	"github.com/sells-group/catalog-cli/internal/tabular"
	"github.com/sells-group/catalog-cli/internal/vector"
)

// Stage names, in execution order.
const (
	StageValidate    = "validate"
	StageNormalize   = "normalize"
	StageDeduplicate = "deduplicate"
	StageWriteOutput = "write_output"
	StageImportDB    = "import_db"
	StageSchema      = "infer_schema"
	StageIndex       = "index_vectors"
)

// Artifact keys in PipelineResult.Artifacts.
const (
	ArtifactNormalized = "normalized"
	ArtifactProducts   = "products"
	ArtifactRejects    = "rejects"
	ArtifactSchema     = "schema"
	ArtifactIndex      = "vector_index"
)

// Options selects the optional stages of a run.
type Options struct {
	Deduplicate bool
	SkipDB      bool
	SkipChroma  bool
}

// Pipeline runs catalog imports.
type Pipeline struct {
	cfg  *config.Config
	deps Deps
}

// New creates a Pipeline.
func New(cfg *config.Config, deps Deps) *Pipeline {
	return &Pipeline{cfg: cfg, deps: deps}
}

// Run processes one input file. A config or header problem returns
// (nil, err) before any file is written. A failed later stage is recorded
// in the result, independent stages still run, and the returned error
// carries a PersistenceError per failed sink.
func (p *Pipeline) Run(ctx context.Context, inputPath, configPath string, opts Options) (*model.PipelineResult, error) {
	runID := uuid.NewString()
	log := zap.L().With(zap.String("run_id", runID), zap.String("input", inputPath))
	log.Info("pipeline: starting run",
		zap.Bool("deduplicate", opts.Deduplicate),
		zap.Bool("skip_db", opts.SkipDB),
		zap.Bool("skip_chroma", opts.SkipChroma),
	)

	result := &model.PipelineResult{
		RunID:     runID,
		InputPath: inputPath,
		Artifacts: make(map[string]string),
	}
	var failures []error

	trackStage := func(name string, fn func() (map[string]any, error)) error {
		start := time.Now()
		meta, err := fn()
		duration := time.Since(start).Milliseconds()

		sr := model.StageResult{Name: name, Status: model.StageCompleted, Duration: duration, Metadata: meta}
		if err != nil {
			sr.Status = model.StageFailed
			sr.Error = err.Error()
			log.Error("pipeline: stage failed",
				zap.String("stage", name),
				zap.Int64("duration_ms", duration),
				zap.Error(err),
			)
		} else {
			log.Info("pipeline: stage complete",
				zap.String("stage", name),
				zap.Int64("duration_ms", duration),
			)
		}
		result.Stages = append(result.Stages, sr)
		return err
	}
	skipStage := func(name, reason string) {
		result.Stages = append(result.Stages, model.StageResult{
			Name:     name,
			Status:   model.StageSkipped,
			Metadata: map[string]any{"reason": reason},
		})
	}

	// Validation has no side effects; any failure aborts the run.
	start := time.Now()
	in, err := p.load(ctx, inputPath, configPath)
	if err != nil {
		log.Error("pipeline: validation failed", zap.Error(err))
		return nil, err
	}
	result.InputRows = len(in.table.Rows)
	result.Warnings = in.validation.Warnings
	result.Stages = append(result.Stages, model.StageResult{
		Name:     StageValidate,
		Status:   model.StageCompleted,
		Duration: time.Since(start).Milliseconds(),
		Metadata: map[string]any{"encoding": in.table.Encoding, "columns": len(in.table.Header)},
	})

	var norm *normalize.Result
	err = trackStage(StageNormalize, func() (map[string]any, error) {
		n := normalize.New(
			normalize.WithWorkers(p.cfg.Pipeline.Workers),
			normalize.WithDateFormats(p.cfg.Pipeline.DateFormats),
		)
		var nerr error
		norm, nerr = n.Normalize(ctx, in.table.Rows, in.cfg, in.validation)
		if nerr != nil {
			return nil, nerr
		}
		return map[string]any{"records": len(norm.Records), "rejected": len(norm.Rejected)}, nil
	})
	if err != nil {
		return result, eris.Wrap(err, "pipeline: normalize")
	}
	result.NormalizedRows = len(norm.Records)
	result.FieldStats = norm.Stats
	result.Rejected = append(result.Rejected, norm.Rejected...)

	out := &outputs{
		header: in.cfg.Names(),
		rows:   make([][]string, len(norm.Records)),
	}
	for i, rec := range norm.Records {
		out.rows[i] = rec.Strings()
	}

	if opts.Deduplicate {
		if err := trackStage(StageDeduplicate, func() (map[string]any, error) {
			products, rejected, derr := p.deduplicate(ctx, norm.Records)
			if derr != nil {
				return nil, derr
			}
			out.products = products
			out.productHeader, out.productRows = dedupe.Table(products, in.cfg, p.cfg.Pipeline.ArrayDelimiter)
			result.UniqueProducts = len(products)
			result.Rejected = append(result.Rejected, rejected...)
			return map[string]any{"products": len(products), "rejected": len(rejected)}, nil
		}); err != nil {
			failures = append(failures, eris.Wrap(err, "pipeline: deduplicate"))
		}
	} else {
		skipStage(StageDeduplicate, "deduplication disabled")
	}

	if err := trackStage(StageWriteOutput, func() (map[string]any, error) {
		return p.writeOutputs(runID, inputPath, out, result)
	}); err != nil {
		failures = append(failures, err)
	}

	if opts.SkipDB {
		skipStage(StageImportDB, "skip_db")
	} else if err := trackStage(StageImportDB, func() (map[string]any, error) {
		return p.importDB(ctx, out)
	}); err != nil {
		failures = append(failures, err)
	}

	if opts.SkipChroma {
		skipStage(StageSchema, "skip_chroma")
		skipStage(StageIndex, "skip_chroma")
	} else {
		header, rows, granularity := p.indexTable(out, log)
		attrs := schema.NewInferencer(
			schema.WithEnumMaxValues(p.cfg.Schema.EnumMaxValues),
			schema.WithEnumMaxFraction(p.cfg.Schema.EnumMaxFraction),
			schema.WithDocumentColumns(p.cfg.Schema.DocumentColumns),
			schema.WithDateFormats(p.cfg.Pipeline.DateFormats),
		).Infer(header, rows)

		if err := trackStage(StageSchema, func() (map[string]any, error) {
			path, werr := schema.Write(p.cfg.Schema.Dir, p.cfg.Vector.Collection, attrs)
			if werr != nil {
				return nil, &model.PersistenceError{Stage: StageSchema, Target: schema.Path(p.cfg.Schema.Dir, p.cfg.Vector.Collection), Err: werr}
			}
			result.Artifacts[ArtifactSchema] = path
			return map[string]any{"columns": len(attrs), "filterable": len(attrs.Filterable())}, nil
		}); err != nil {
			failures = append(failures, err)
		}

		if err := trackStage(StageIndex, func() (map[string]any, error) {
			return p.index(ctx, header, rows, attrs, granularity, result)
		}); err != nil {
			failures = append(failures, err)
		}
	}

	log.Info("pipeline: run complete",
		zap.Int("input_rows", result.InputRows),
		zap.Int("normalized_rows", result.NormalizedRows),
		zap.Int("unique_products", result.UniqueProducts),
		zap.Int("rejected", len(result.Rejected)),
		zap.Bool("succeeded", result.Succeeded()),
	)

	if len(failures) > 0 {
		return result, errors.Join(failures...)
	}
	return result, nil
}

// input is everything the validation stage produces.
type input struct {
	cfg        *model.NormalizationConfig
	table      *tabular.Table
	validation *registry.ValidationResult
}

func (p *Pipeline) load(ctx context.Context, inputPath, configPath string) (*input, error) {
	cfg, err := registry.LoadNormalizationConfig(configPath)
	if err != nil {
		return nil, err
	}
	table, err := tabular.Read(ctx, inputPath, tabular.CSVOptions{
		Delimiter: p.cfg.CSVDelimiterRune(),
		Encodings: p.cfg.Pipeline.Encodings,
	}, p.cfg.XLSXSheet())
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read input %s", inputPath)
	}
	validation, err := registry.Validate(cfg, table.Header)
	if err != nil {
		return nil, err
	}
	return &input{cfg: cfg, table: table, validation: validation}, nil
}

// outputs holds the tables later stages consume.
type outputs struct {
	header []string
	rows   [][]string

	products      []model.UniqueProduct
	productHeader []string
	productRows   [][]string
}

func (p *Pipeline) deduplicate(ctx context.Context, records []model.NormalizedRecord) ([]model.UniqueProduct, []model.RowError, error) {
	vocab, err := dedupe.LoadVocabulary(p.cfg.Vocabulary.Path)
	if err != nil {
		return nil, nil, err
	}
	if p.cfg.Vocabulary.StripColors {
		vocab.StripColors = true
	}
	res, err := dedupe.New(
		dedupe.WithVocabulary(vocab),
		dedupe.WithWorkers(p.cfg.Pipeline.Workers),
	).Deduplicate(ctx, records)
	if err != nil {
		return nil, nil, err
	}
	return res.Products, res.Rejected, nil
}

// rejectionReport is the JSON written next to the normalized output.
type rejectionReport struct {
	RunID       string           `json:"run_id"`
	InputPath   string           `json:"input_path"`
	GeneratedAt time.Time        `json:"generated_at"`
	Count       int              `json:"count"`
	Rejected    []model.RowError `json:"rejected"`
}

func (p *Pipeline) writeOutputs(runID, inputPath string, out *outputs, result *model.PipelineResult) (map[string]any, error) {
	dir := p.cfg.Pipeline.OutputDir
	var errs []error

	normalizedPath := filepath.Join(dir, p.cfg.Pipeline.NormalizedFile)
	if err := tabular.WriteCSVAtomic(normalizedPath, out.header, out.rows); err != nil {
		errs = append(errs, &model.PersistenceError{Stage: StageWriteOutput, Target: normalizedPath, Err: err})
	} else {
		result.Artifacts[ArtifactNormalized] = normalizedPath
	}

	if out.productHeader != nil {
		productsPath := filepath.Join(dir, p.cfg.Pipeline.ProductsFile)
		if err := tabular.WriteCSVAtomic(productsPath, out.productHeader, out.productRows); err != nil {
			errs = append(errs, &model.PersistenceError{Stage: StageWriteOutput, Target: productsPath, Err: err})
		} else {
			result.Artifacts[ArtifactProducts] = productsPath
		}
	}

	rejected := result.Rejected
	if rejected == nil {
		rejected = []model.RowError{}
	}
	rejectsPath := filepath.Join(dir, p.cfg.Pipeline.RejectsFile)
	report := rejectionReport{
		RunID:       runID,
		InputPath:   inputPath,
		GeneratedAt: time.Now().UTC(),
		Count:       len(rejected),
		Rejected:    rejected,
	}
	if err := tabular.WriteJSONAtomic(rejectsPath, report); err != nil {
		errs = append(errs, &model.PersistenceError{Stage: StageWriteOutput, Target: rejectsPath, Err: err})
	} else {
		result.Artifacts[ArtifactRejects] = rejectsPath
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return map[string]any{"normalized_rows": len(out.rows), "product_rows": len(out.productRows), "rejected": len(rejected)}, nil
}

func (p *Pipeline) importDB(ctx context.Context, out *outputs) (map[string]any, error) {
	target := p.cfg.Store.Driver + ":" + p.cfg.Store.ProductsTable
	st, err := p.deps.OpenStore(ctx)
	if err != nil {
		return nil, &model.PersistenceError{Stage: StageImportDB, Target: target, Err: err}
	}
	defer st.Close() //nolint:errcheck

	res, err := store.Import(ctx, st, out.header, out.rows, store.ImportOptions{
		Table:             p.cfg.Store.ProductsTable,
		CategoryColumn:    p.cfg.Store.CategoryColumn,
		CategoryDelimiter: p.cfg.Store.CategoryDelimiter,
	})
	if err != nil {
		return nil, &model.PersistenceError{Stage: StageImportDB, Target: target, Err: err}
	}
	return map[string]any{
		"table":      res.Table,
		"key":        res.Key,
		"products":   res.Products,
		"categories": res.Categories,
		"links":      res.Links,
	}, nil
}

// indexTable picks the table that is indexed. Product granularity needs the
// deduplicated table; without it the variants are indexed instead.
func (p *Pipeline) indexTable(out *outputs, log *zap.Logger) ([]string, [][]string, vector.Granularity) {
	if vector.Granularity(p.cfg.Vector.Granularity) == vector.GranularityProduct {
		if out.productHeader != nil {
			return out.productHeader, out.productRows, vector.GranularityProduct
		}
		log.Warn("pipeline: product granularity needs deduplication, indexing variants")
	}
	return out.header, out.rows, vector.GranularityVariant
}

func (p *Pipeline) index(ctx context.Context, header []string, rows [][]string, attrs model.AttributeSchema, granularity vector.Granularity, result *model.PipelineResult) (map[string]any, error) {
	target := vector.Path(p.cfg.Vector.Dir, p.cfg.Vector.Collection)

	idCols := []string{"product_id", dedupe.FieldSKU}
	if granularity == vector.GranularityProduct {
		idCols = []string{"base_sku"}
	}
	docs := vector.BuildDocuments(header, rows, attrs, vector.DocumentOptions{
		IDColumns:       idCols,
		DocumentColumns: p.cfg.Schema.DocumentColumns,
	})

	idx, err := p.deps.OpenIndex(ctx)
	if err != nil {
		return nil, &model.PersistenceError{Stage: StageIndex, Target: target, Err: err}
	}
	defer idx.Close() //nolint:errcheck

	n, err := vector.Rebuild(ctx, idx, p.deps.Embedder, docs, p.cfg.Embedding.BatchSize)
	if err != nil {
		return nil, &model.PersistenceError{Stage: StageIndex, Target: target, Err: err}
	}
	result.Artifacts[ArtifactIndex] = target
	return map[string]any{"documents": n, "granularity": string(granularity)}, nil
}
