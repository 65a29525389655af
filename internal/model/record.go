package model

import (
	"strconv"
	"time"
)

// DateLayout is the canonical layout of normalized date values.
const DateLayout = "2006-01-02"

// RawRecord is one input row keyed by the raw header. Header is shared by all
// records of a file and must not be mutated.
type RawRecord struct {
	Row    int
	Header []string
	Values []string
}

// At returns the raw value at column index i, or "" if the row is short.
func (r RawRecord) At(i int) string {
	if i < 0 || i >= len(r.Values) {
		return ""
	}
	return r.Values[i]
}

// Value is a typed canonical field value.
type Value struct {
	Type    FieldType
	Missing bool
	Text    string
	Number  float64
	Time    time.Time
}

// MissingValue returns the explicit missing marker for a field type.
func MissingValue(t FieldType) Value {
	return Value{Type: t, Missing: true}
}

// TextValue builds a string or enum value.
func TextValue(t FieldType, s string) Value {
	return Value{Type: t, Text: s}
}

// NumberValue builds a number value.
func NumberValue(f float64) Value {
	return Value{Type: TypeNumber, Number: f, Text: strconv.FormatFloat(f, 'f', -1, 64)}
}

// DateValue builds a date value truncated to the day.
func DateValue(t time.Time) Value {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return Value{Type: TypeDate, Time: d, Text: d.Format(DateLayout)}
}

// String returns the canonical text form; missing values render as "".
func (v Value) String() string {
	if v.Missing {
		return ""
	}
	return v.Text
}

// NormalizedRecord is one RawRecord after normalization. Values are aligned
// with the NormalizationConfig's declared field order.
type NormalizedRecord struct {
	Row    int
	Values []Value
	cfg    *NormalizationConfig
}

// NewNormalizedRecord binds values to the config's field order.
func NewNormalizedRecord(cfg *NormalizationConfig, row int, values []Value) NormalizedRecord {
	return NormalizedRecord{Row: row, Values: values, cfg: cfg}
}

// Config returns the NormalizationConfig the record was produced from.
func (r NormalizedRecord) Config() *NormalizationConfig {
	return r.cfg
}

// Get returns the value of a canonical field and whether the field exists.
func (r NormalizedRecord) Get(name string) (Value, bool) {
	if r.cfg == nil {
		return Value{}, false
	}
	i := r.cfg.Index(name)
	if i < 0 || i >= len(r.Values) {
		return Value{}, false
	}
	return r.Values[i], true
}

// Strings renders the record as a row of canonical text values.
func (r NormalizedRecord) Strings() []string {
	out := make([]string, len(r.Values))
	for i, v := range r.Values {
		out[i] = v.String()
	}
	return out
}
