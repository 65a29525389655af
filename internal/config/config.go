package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/catalog-cli/internal/tabular"
	"github.com/sells-group/catalog-cli/internal/transform"
)

// Config holds the full application configuration.
type Config struct {
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Vocabulary VocabularyConfig `yaml:"vocabulary" mapstructure:"vocabulary"`
	Schema     SchemaConfig     `yaml:"schema" mapstructure:"schema"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Vector     VectorConfig     `yaml:"vector" mapstructure:"vector"`
	Embedding  EmbeddingConfig  `yaml:"embedding" mapstructure:"embedding"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// PipelineConfig configures input decoding, normalization and output files.
type PipelineConfig struct {
	OutputDir      string   `yaml:"output_dir" mapstructure:"output_dir"`
	NormalizedFile string   `yaml:"normalized_file" mapstructure:"normalized_file"`
	ProductsFile   string   `yaml:"products_file" mapstructure:"products_file"`
	RejectsFile    string   `yaml:"rejects_file" mapstructure:"rejects_file"`
	Workers        int      `yaml:"workers" mapstructure:"workers"`
	ArrayDelimiter string   `yaml:"array_delimiter" mapstructure:"array_delimiter"`
	CSVDelimiter   string   `yaml:"csv_delimiter" mapstructure:"csv_delimiter"`
	Encodings      []string `yaml:"encodings" mapstructure:"encodings"`
	DateFormats    []string `yaml:"date_formats" mapstructure:"date_formats"`
	Sheet          string   `yaml:"sheet" mapstructure:"sheet"`
}

// VocabularyConfig points at the SKU suffix vocabulary.
type VocabularyConfig struct {
	Path        string `yaml:"path" mapstructure:"path"`
	StripColors bool   `yaml:"strip_colors" mapstructure:"strip_colors"`
}

// SchemaConfig configures attribute schema inference.
type SchemaConfig struct {
	Dir             string   `yaml:"dir" mapstructure:"dir"`
	EnumMaxValues   int      `yaml:"enum_max_values" mapstructure:"enum_max_values"`
	EnumMaxFraction float64  `yaml:"enum_max_fraction" mapstructure:"enum_max_fraction"`
	DocumentColumns []string `yaml:"document_columns" mapstructure:"document_columns"`
}

// StoreConfig configures the relational import target.
type StoreConfig struct {
	Driver            string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL       string `yaml:"database_url" mapstructure:"database_url"`
	ProductsTable     string `yaml:"products_table" mapstructure:"products_table"`
	CategoryColumn    string `yaml:"category_column" mapstructure:"category_column"`
	CategoryDelimiter string `yaml:"category_delimiter" mapstructure:"category_delimiter"`
	MaxConns          int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns          int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// VectorConfig configures the local vector collection.
type VectorConfig struct {
	Dir         string `yaml:"dir" mapstructure:"dir"`
	Collection  string `yaml:"collection" mapstructure:"collection"`
	Granularity string `yaml:"granularity" mapstructure:"granularity"`
}

// EmbeddingConfig holds the embedding endpoint settings.
type EmbeddingConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	BatchSize   int     `yaml:"batch_size" mapstructure:"batch_size"`
}

// RetryConfig bounds retries of store and embedding calls.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// RunMode names the optional stages a run skips; Validate only requires
// settings for stages that will execute.
type RunMode struct {
	SkipDB     bool
	SkipChroma bool
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("pipeline.output_dir", "data/processed_data")
	v.SetDefault("pipeline.normalized_file", "normalized_output.csv")
	v.SetDefault("pipeline.products_file", "unique_products.csv")
	v.SetDefault("pipeline.rejects_file", "rejected_rows.json")
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.array_delimiter", ",")
	v.SetDefault("pipeline.csv_delimiter", ",")
	v.SetDefault("pipeline.encodings", []string{"utf-8", "latin-1"})
	v.SetDefault("pipeline.date_formats", transform.DefaultDateFormats)
	v.SetDefault("pipeline.sheet", "")
	v.SetDefault("vocabulary.path", "")
	v.SetDefault("vocabulary.strip_colors", false)
	v.SetDefault("schema.dir", "data/schema")
	v.SetDefault("schema.enum_max_values", 50)
	v.SetDefault("schema.enum_max_fraction", 0.0)
	v.SetDefault("schema.document_columns", []string{"title", "description"})
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.products_table", "products")
	v.SetDefault("store.category_column", "categories")
	v.SetDefault("store.category_delimiter", ",")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("vector.dir", "data/vector_db")
	v.SetDefault("vector.collection", "product_catalog")
	v.SetDefault("vector.granularity", "product")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.model", "all-MiniLM-L6-v2")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.rate_limit", 10.0)
	v.SetDefault("embedding.timeout_secs", 30)
	v.SetDefault("embedding.batch_size", 32)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings needed by the stages in mode. Every problem
// is reported in one error.
func (c *Config) Validate(mode RunMode) error {
	var problems []string

	if c.Pipeline.Workers < 1 || c.Pipeline.Workers > 64 {
		problems = append(problems, "pipeline.workers must be between 1 and 64")
	}
	if c.Pipeline.OutputDir == "" {
		problems = append(problems, "pipeline.output_dir is required")
	}
	if c.Pipeline.ArrayDelimiter == "" {
		problems = append(problems, "pipeline.array_delimiter is required")
	}
	if len([]rune(c.Pipeline.CSVDelimiter)) > 1 {
		problems = append(problems, "pipeline.csv_delimiter must be a single character")
	}
	if c.Schema.EnumMaxValues < 1 {
		problems = append(problems, "schema.enum_max_values must be > 0")
	}
	if c.Schema.EnumMaxFraction < 0 || c.Schema.EnumMaxFraction > 1 {
		problems = append(problems, "schema.enum_max_fraction must be between 0 and 1")
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		problems = append(problems, "log.format must be json or console")
	}

	if !mode.SkipDB {
		switch c.Store.Driver {
		case "", "postgres", "sqlite":
		default:
			problems = append(problems, "store.driver must be postgres or sqlite")
		}
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
		if c.Store.ProductsTable == "" {
			problems = append(problems, "store.products_table is required")
		}
	}

	if !mode.SkipChroma {
		if c.Vector.Dir == "" {
			problems = append(problems, "vector.dir is required")
		}
		if c.Vector.Collection == "" {
			problems = append(problems, "vector.collection is required")
		}
		switch c.Vector.Granularity {
		case "product", "variant":
		default:
			problems = append(problems, "vector.granularity must be product or variant")
		}
		if c.Embedding.BaseURL == "" {
			problems = append(problems, "embedding.base_url is required")
		}
		if c.Embedding.BatchSize < 1 {
			problems = append(problems, "embedding.batch_size must be > 0")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// XLSXSheet returns the worksheet selection for spreadsheet inputs. An empty
// sheet name reads the first worksheet.
func (c *Config) XLSXSheet() tabular.XLSXOptions {
	return tabular.XLSXOptions{SheetName: c.Pipeline.Sheet}
}

// CSVDelimiterRune returns the configured CSV delimiter, defaulting to ','.
func (c *Config) CSVDelimiterRune() rune {
	for _, r := range c.Pipeline.CSVDelimiter {
		return r
	}
	return ','
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
