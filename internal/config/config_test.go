package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	// Change to temp dir so no stray config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/processed_data", cfg.Pipeline.OutputDir)
	assert.Equal(t, "normalized_output.csv", cfg.Pipeline.NormalizedFile)
	assert.Equal(t, "unique_products.csv", cfg.Pipeline.ProductsFile)
	assert.Equal(t, "rejected_rows.json", cfg.Pipeline.RejectsFile)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, ",", cfg.Pipeline.ArrayDelimiter)
	assert.Equal(t, []string{"utf-8", "latin-1"}, cfg.Pipeline.Encodings)
	assert.Contains(t, cfg.Pipeline.DateFormats, "2006-01-02")
	assert.False(t, cfg.Vocabulary.StripColors)
	assert.Equal(t, "data/schema", cfg.Schema.Dir)
	assert.Equal(t, 50, cfg.Schema.EnumMaxValues)
	assert.InDelta(t, 0.0, cfg.Schema.EnumMaxFraction, 0.0001)
	assert.Equal(t, []string{"title", "description"}, cfg.Schema.DocumentColumns)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "products", cfg.Store.ProductsTable)
	assert.Equal(t, "categories", cfg.Store.CategoryColumn)
	assert.Equal(t, "data/vector_db", cfg.Vector.Dir)
	assert.Equal(t, "product_catalog", cfg.Vector.Collection)
	assert.Equal(t, "product", cfg.Vector.Granularity)
	assert.Equal(t, "all-MiniLM-L6-v2", cfg.Embedding.Model)
	assert.InDelta(t, 10.0, cfg.Embedding.RateLimit, 0.0001)
	assert.Equal(t, 32, cfg.Embedding.BatchSize)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, ',', cfg.CSVDelimiterRune())
	assert.Empty(t, cfg.XLSXSheet().SheetName)
}

func TestXLSXSheet(t *testing.T) {
	cfg := &Config{}
	cfg.Pipeline.Sheet = "Products"
	assert.Equal(t, "Products", cfg.XLSXSheet().SheetName)
	assert.Zero(t, cfg.XLSXSheet().SheetIndex)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  database_url: sqlite://catalog.db
log:
  level: debug
  format: console
pipeline:
  workers: 8
  csv_delimiter: ";"
vector:
  granularity: variant
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "sqlite://catalog.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 8, cfg.Pipeline.Workers)
	assert.Equal(t, ';', cfg.CSVDelimiterRune())
	assert.Equal(t, "variant", cfg.Vector.Granularity)
	// Defaults still apply for unset values
	assert.Equal(t, "product_catalog", cfg.Vector.Collection)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("CATALOG_STORE_DRIVER", "postgres")
	t.Setenv("CATALOG_LOG_LEVEL", "warn")
	t.Setenv("CATALOG_EMBEDDING_BASE_URL", "http://localhost:8000/v1")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "http://localhost:8000/v1", cfg.Embedding.BaseURL)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Pipeline.OutputDir = "out"
	cfg.Pipeline.Workers = 4
	cfg.Pipeline.ArrayDelimiter = ","
	cfg.Schema.EnumMaxValues = 50
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = "postgres://localhost/catalog"
	cfg.Store.ProductsTable = "products"
	cfg.Vector.Dir = "vectors"
	cfg.Vector.Collection = "product_catalog"
	cfg.Vector.Granularity = "product"
	cfg.Embedding.BaseURL = "http://localhost:8000/v1"
	cfg.Embedding.BatchSize = 32
	cfg.Log.Format = "json"
	return cfg
}

func TestValidate_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate(RunMode{}))
}

func TestValidate_StageRequirements(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""
	cfg.Embedding.BaseURL = ""

	err := cfg.Validate(RunMode{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), "embedding.base_url is required")

	err = cfg.Validate(RunMode{SkipDB: true})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "store.database_url")
	assert.Contains(t, err.Error(), "embedding.base_url is required")

	assert.NoError(t, cfg.Validate(RunMode{SkipDB: true, SkipChroma: true}))
}

func TestValidate_Bounds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"workers zero", func(c *Config) { c.Pipeline.Workers = 0 }, "pipeline.workers must be between 1 and 64"},
		{"workers too many", func(c *Config) { c.Pipeline.Workers = 65 }, "pipeline.workers must be between 1 and 64"},
		{"no output dir", func(c *Config) { c.Pipeline.OutputDir = "" }, "pipeline.output_dir is required"},
		{"no array delimiter", func(c *Config) { c.Pipeline.ArrayDelimiter = "" }, "pipeline.array_delimiter is required"},
		{"long csv delimiter", func(c *Config) { c.Pipeline.CSVDelimiter = "||" }, "single character"},
		{"enum max", func(c *Config) { c.Schema.EnumMaxValues = 0 }, "schema.enum_max_values must be > 0"},
		{"enum fraction", func(c *Config) { c.Schema.EnumMaxFraction = 1.5 }, "schema.enum_max_fraction"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format must be json or console"},
		{"driver", func(c *Config) { c.Store.Driver = "mysql" }, "store.driver must be postgres or sqlite"},
		{"granularity", func(c *Config) { c.Vector.Granularity = "sku" }, "vector.granularity must be product or variant"},
		{"batch size", func(c *Config) { c.Embedding.BatchSize = 0 }, "embedding.batch_size must be > 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate(RunMode{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
