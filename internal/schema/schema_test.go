package schema

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catalog-cli/internal/model"
)

func column(values ...string) [][]string {
	rows := make([][]string, len(values))
	for i, v := range values {
		rows[i] = []string{v}
	}
	return rows
}

func TestInfer_ColorEnumAndPriceRange(t *testing.T) {
	colors := []string{"red", "blue", "green"}
	rng := rand.New(rand.NewPCG(3, 5))

	header := []string{"color", "price", "title"}
	var rows [][]string
	lo, hi := 1e9, -1e9
	for i := 0; i < 1000; i++ {
		price := float64(rng.IntN(100000)) / 100
		lo, hi = min(lo, price), max(hi, price)
		rows = append(rows, []string{colors[i%3], fmt.Sprintf("%g", price), fmt.Sprintf("Product %d", i)})
	}

	s := NewInferencer().Infer(header, rows)

	assert.Equal(t, model.AttributeDescriptor{Type: model.AttrEnum, Values: []string{"blue", "green", "red"}}, s["color"])
	assert.Equal(t, model.AttrNumberRange, s["price"].Type)
	assert.Equal(t, lo, s["price"].Min)
	assert.Equal(t, hi, s["price"].Max)
	assert.NotContains(t, s, "title", "document columns are excluded")
}

func TestInfer_Date(t *testing.T) {
	s := NewInferencer().Infer([]string{"released"}, column("2024-03-01", "2023/12/31", "", "15-06-2024"))
	d := s["released"]
	assert.Equal(t, model.AttrDate, d.Type)
	assert.Equal(t, "2023-12-31", d.MinDate.Format(model.DateLayout))
	assert.Equal(t, "2024-06-15", d.MaxDate.Format(model.DateLayout))
}

func TestInfer_MixedFallsThrough(t *testing.T) {
	s := NewInferencer().Infer([]string{"mixed"}, column("2024-01-01", "12", "RED", "red "))
	assert.Equal(t, model.AttributeDescriptor{Type: model.AttrEnum, Values: []string{"12", "2024-01-01", "red"}}, s["mixed"])
}

func TestInfer_EmptyColumn(t *testing.T) {
	s := NewInferencer().Infer([]string{"sku", "notes"}, [][]string{{"A"}, {"B", "  "}})
	assert.Equal(t, model.AttributeDescriptor{Type: model.AttrString}, s["notes"])
}

func TestInfer_EnumBoundary(t *testing.T) {
	in := NewInferencer(WithEnumMaxValues(5))
	values := func(n int) [][]string {
		var vals []string
		for i := 0; i < n; i++ {
			vals = append(vals, fmt.Sprintf("v%d", i), fmt.Sprintf("V%d", i))
		}
		return column(vals...)
	}

	at := in.Infer([]string{"c"}, values(5))
	assert.Equal(t, model.AttrEnum, at["c"].Type)
	assert.Len(t, at["c"].Values, 5)

	above := in.Infer([]string{"c"}, values(6))
	assert.Equal(t, model.AttrString, above["c"].Type)
	assert.Empty(t, above["c"].Values)
}

func TestInfer_FractionalCutoff(t *testing.T) {
	in := NewInferencer(WithEnumMaxValues(50), WithEnumMaxFraction(0.1))
	assert.Equal(t, 2, in.Cutoff(20))
	assert.Equal(t, 50, in.Cutoff(10000))

	ab := column("a", "b", "a", "b", "a", "b", "a", "b", "a", "b",
		"a", "b", "a", "b", "a", "b", "a", "b", "a", "b")
	abc := append(column("c"), ab[1:]...)
	assert.Equal(t, model.AttrEnum, in.Infer([]string{"c"}, ab)["c"].Type)
	assert.Equal(t, model.AttrString, in.Infer([]string{"c"}, abc)["c"].Type)
}

func TestInfer_OrderIndependent(t *testing.T) {
	header := []string{"sku", "color", "price", "released", "brand"}
	rng := rand.New(rand.NewPCG(8, 13))
	var rows [][]string
	for i := 0; i < 300; i++ {
		rows = append(rows, []string{
			fmt.Sprintf("SKU-%d", i),
			[]string{"red", "Blue", "green", ""}[rng.IntN(4)],
			fmt.Sprintf("%d.%02d", rng.IntN(500), rng.IntN(100)),
			fmt.Sprintf("2024-%02d-%02d", 1+rng.IntN(12), 1+rng.IntN(28)),
			fmt.Sprintf("brand-%d", rng.IntN(40)),
		})
	}

	in := NewInferencer()
	want := in.Infer(header, rows)
	for i := 0; i < 10; i++ {
		shuffled := append([][]string(nil), rows...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, in.Infer(header, shuffled))
	}
	assert.Equal(t, model.AttrString, want["sku"].Type)
}

func TestInfer_CustomDocumentColumns(t *testing.T) {
	in := NewInferencer(WithDocumentColumns([]string{"Notes"}))
	s := in.Infer([]string{"title", "notes"}, column("x"))
	assert.Contains(t, s, "title")
	assert.NotContains(t, s, "notes")
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	s := NewInferencer().Infer([]string{"color", "price"}, [][]string{{"red", "1"}, {"blue", "3.5"}})

	path, err := Write(dir, "product_catalog", s)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "product_catalog_schema.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"color": {"type": "enum", "values": ["blue", "red"]},
		"price": {"type": "number_range", "min": 1, "max": 3.5, "operators": ["$eq", "$lt", "$gt", "$gte", "$lte"]}
	}`, string(data))

	var back model.AttributeSchema
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, s, back)
}
