package registry

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catalog-cli/internal/model"
)

func testConfig() *model.NormalizationConfig {
	return model.NewNormalizationConfig([]model.FieldMapping{
		{Name: "sku", Aliases: []string{"SKU", "item_sku"}, Criticality: model.Critical},
		{Name: "price", Aliases: []string{"regular_price", "Price"}, Type: model.TypeNumber, Criticality: model.Critical},
		{Name: "color", Aliases: []string{"base_colour", "colour"}, Type: model.TypeEnum},
		{Name: "brand", Aliases: []string{"brand"}},
	})
}

func TestValidate_ResolvesCaseInsensitive(t *testing.T) {
	header := []string{"Item_SKU", " PRICE ", "Colour", "base_colour", "Title"}
	res, err := Validate(testConfig(), header)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Resolution("sku").Column())
	assert.Equal(t, 1, res.Resolution("price").Column())
	// Alias order, not header order, decides precedence.
	assert.Equal(t, []int{3, 2}, res.Resolution("color").Columns)
	assert.Equal(t, -1, res.Resolution("brand").Column())

	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], `field "brand"`)
}

func TestValidate_MissingCriticalIsFatal(t *testing.T) {
	_, err := Validate(testConfig(), []string{"sku", "title"})
	require.Error(t, err)

	var missing *model.MissingCriticalFieldError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "price", missing.Field)
	assert.Contains(t, err.Error(), "title")
	assert.True(t, model.IsConfigError(err))
}

func TestValidate_ReportsEveryMissingCriticalField(t *testing.T) {
	_, err := Validate(testConfig(), []string{"title"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"sku"`)
	assert.Contains(t, err.Error(), `"price"`)
}

func TestHeaderIndex_FirstDuplicateWins(t *testing.T) {
	idx := HeaderIndex([]string{"SKU", "sku", "", "\uFEFFTitle"})
	assert.Equal(t, 0, idx["sku"])
	assert.Equal(t, 3, idx["title"])
	assert.NotContains(t, idx, "")
}

// Validate accepts iff every critical field's alias set intersects the header.
func TestValidate_AcceptsIffCriticalAliasesIntersectHeader(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	pool := make([]string, 12)
	for i := range pool {
		pool[i] = fmt.Sprintf("col_%d", i)
	}
	pick := func(n int) []string {
		perm := rng.Perm(len(pool))
		out := make([]string, n)
		for i := 0; i < n; i++ {
			out[i] = pool[perm[i]]
		}
		return out
	}
	randomCase := func(s string) string {
		if rng.IntN(2) == 0 {
			return s
		}
		b := []byte(s)
		for i := range b {
			if b[i] >= 'a' && b[i] <= 'z' {
				b[i] -= 'a' - 'A'
			}
		}
		return string(b)
	}

	for iter := 0; iter < 500; iter++ {
		var fields []model.FieldMapping
		nFields := 1 + rng.IntN(4)
		for f := 0; f < nFields; f++ {
			crit := model.Optional
			if rng.IntN(2) == 0 {
				crit = model.Critical
			}
			fields = append(fields, model.FieldMapping{
				Name:        fmt.Sprintf("f%d", f),
				Aliases:     pick(1 + rng.IntN(3)),
				Criticality: crit,
			})
		}
		cfg := model.NewNormalizationConfig(fields)

		header := pick(rng.IntN(len(pool) + 1))
		for i := range header {
			header[i] = randomCase(header[i])
		}

		inHeader := make(map[string]bool)
		for _, h := range header {
			inHeader[model.NormalizeHeader(h)] = true
		}
		want := true
		for _, f := range cfg.Critical() {
			hit := false
			for _, a := range f.Aliases {
				if inHeader[a] {
					hit = true
				}
			}
			if !hit {
				want = false
			}
		}

		_, err := Validate(cfg, header)
		assert.Equal(t, want, err == nil, "iteration %d header=%v", iter, header)
	}
}
