package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/catalog-cli/internal/config"
	"github.com/sells-group/catalog-cli/internal/model"
)

const testMapping = `{
	"sku":   {"aliases": ["SKU"], "criticality": "critical"},
	"title": {"aliases": ["Name", "Title"]},
	"price": {"aliases": ["Price"], "type": "number", "criticality": "critical"},
	"color": {"aliases": ["Colour"], "type": "enum"}
}`

func testCommandConfig() *config.Config {
	c := &config.Config{}
	c.Pipeline.Workers = 2
	c.Pipeline.ArrayDelimiter = "|"
	c.Schema.EnumMaxValues = 50
	c.Schema.DocumentColumns = []string{"title", "description"}
	return c
}

func writeTemp(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestRunValidate(t *testing.T) {
	dir := t.TempDir()
	input := writeTemp(t, dir, "in.csv", "sku,NAME,Price\nA-S,Tee,1\n")
	mapping := writeTemp(t, dir, "map.json", testMapping)

	var buf bytes.Buffer
	require.NoError(t, runValidate(context.Background(), &buf, testCommandConfig(), input, mapping))

	out := buf.String()
	assert.Contains(t, out, "1 rows, encoding utf-8")
	assert.Contains(t, out, "critical fields: sku, price")
	assert.Contains(t, out, "<- NAME")
	assert.Contains(t, out, `warning:`)
	assert.Contains(t, out, `"color"`)
}

func TestRunValidate_XLSXSheet(t *testing.T) {
	dir := t.TempDir()
	f := xlsx.NewFile()
	for name, rows := range map[string][][]string{
		"Notes":    {{"memo"}, {"ignore me"}},
		"Products": {{"SKU", "Title", "Price"}, {"A-S", "Tee", "1"}, {"A-M", "Tee", "2"}},
	} {
		sh, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, r := range rows {
			row := sh.AddRow()
			for _, v := range r {
				row.AddCell().SetString(v)
			}
		}
	}
	input := filepath.Join(dir, "catalog.xlsx")
	require.NoError(t, f.Save(input))
	mapping := writeTemp(t, dir, "map.json", testMapping)

	c := testCommandConfig()
	c.Pipeline.Sheet = "Products"
	var buf bytes.Buffer
	require.NoError(t, runValidate(context.Background(), &buf, c, input, mapping))
	assert.Contains(t, buf.String(), "2 rows")

	c.Pipeline.Sheet = "Missing"
	err := runValidate(context.Background(), &bytes.Buffer{}, c, input, mapping)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "Missing" not found`)
}

func TestRunValidate_MissingCritical(t *testing.T) {
	dir := t.TempDir()
	input := writeTemp(t, dir, "in.csv", "sku,Name\nA-S,Tee\n")
	mapping := writeTemp(t, dir, "map.json", testMapping)

	err := runValidate(context.Background(), &bytes.Buffer{}, testCommandConfig(), input, mapping)
	require.Error(t, err)
	assert.True(t, model.IsConfigError(err))
}

func TestRunSchema(t *testing.T) {
	dir := t.TempDir()
	input := writeTemp(t, dir, "products.csv", "title,color,price\nTee,red,10\nMug,blue,4.5\n")

	var buf bytes.Buffer
	require.NoError(t, runSchema(context.Background(), &buf, testCommandConfig(), input, ""))

	var got map[string]map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.NotContains(t, got, "title")
	assert.Equal(t, "enum", got["color"]["type"])
	assert.Equal(t, []any{"blue", "red"}, got["color"]["values"])
	assert.Equal(t, "number_range", got["price"]["type"])
	assert.Equal(t, 4.5, got["price"]["min"])

	outPath := filepath.Join(dir, "schema", "catalog_schema.json")
	require.NoError(t, runSchema(context.Background(), &bytes.Buffer{}, testCommandConfig(), input, outPath))
	assert.FileExists(t, outPath)
}

func TestRunDedupe(t *testing.T) {
	dir := t.TempDir()
	input := writeTemp(t, dir, "normalized.csv", "sku,title,price,color\nTEE-S,Tee,10,red\nTEE-M,Tee,12,blue\nMUG,Mug,4,white\n")
	mapping := writeTemp(t, dir, "map.json", testMapping)
	outPath := filepath.Join(dir, "out", "unique_products.csv")

	var buf bytes.Buffer
	require.NoError(t, runDedupe(context.Background(), &buf, testCommandConfig(), input, mapping, outPath))
	assert.Contains(t, buf.String(), "3 variants -> 2 products (0 rejected)")

	fh, err := os.Open(outPath)
	require.NoError(t, err)
	defer fh.Close()
	rows, err := csv.NewReader(fh).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	header := rows[0]
	col := func(name string) int {
		for i, h := range header {
			if h == name {
				return i
			}
		}
		t.Fatalf("column %q missing", name)
		return -1
	}
	assert.Equal(t, "TEE", rows[1][col("base_sku")])
	assert.Equal(t, "S|M", rows[1][col("sizes")])
	assert.Equal(t, "red|blue", rows[1][col("colors")])
	assert.Equal(t, "10", rows[1][col("price_min")])
	assert.Equal(t, "12", rows[1][col("price_max")])
	assert.Equal(t, "MUG", rows[2][col("base_sku")])
}

func TestWriteRunResult(t *testing.T) {
	var buf bytes.Buffer
	result := &model.PipelineResult{
		RunID:          "run-1",
		InputRows:      4,
		NormalizedRows: 3,
		Stages:         []model.StageResult{{Name: "normalize", Status: model.StageCompleted}},
	}

	require.NoError(t, writeRunResult(&buf, result))

	var decoded model.PipelineResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Equal(t, 3, decoded.NormalizedRows)
	// Should be indented.
	assert.Contains(t, buf.String(), "\n  ")
}
