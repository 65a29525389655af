package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValueConstructors(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "19.99", NumberValue(19.99).String())
	assert.Equal(t, "20", NumberValue(20).String())
	assert.Equal(t, "2024-03-05", DateValue(time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)).String())
	assert.Equal(t, "", MissingValue(TypeNumber).String())
	assert.Equal(t, "red", TextValue(TypeEnum, "red").String())
}

func TestNormalizedRecord_Get(t *testing.T) {
	t.Parallel()

	cfg := NewNormalizationConfig([]FieldMapping{
		{Name: "sku", Aliases: []string{"sku"}},
		{Name: "price", Aliases: []string{"price"}, Type: TypeNumber},
	})
	rec := NewNormalizedRecord(cfg, 3, []Value{TextValue(TypeString, "A-1"), NumberValue(5)})

	v, ok := rec.Get("price")
	assert.True(t, ok)
	assert.InDelta(t, 5.0, v.Number, 0.0001)

	_, ok = rec.Get("title")
	assert.False(t, ok)

	assert.Equal(t, []string{"A-1", "5"}, rec.Strings())
	assert.Same(t, cfg, rec.Config())
}

func TestRawRecord_At(t *testing.T) {
	t.Parallel()
	r := RawRecord{Header: []string{"a", "b", "c"}, Values: []string{"1", "2"}}
	assert.Equal(t, "2", r.At(1))
	assert.Equal(t, "", r.At(2))
	assert.Equal(t, "", r.At(-1))
}
