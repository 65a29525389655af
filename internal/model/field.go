package model

import (
	"strings"

	"golang.org/x/text/cases"
)

// FieldType is the declared target type of a canonical field.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeNumber FieldType = "number"
	TypeEnum   FieldType = "enum"
	TypeDate   FieldType = "date"
)

// Valid reports whether t is one of the supported field types.
func (t FieldType) Valid() bool {
	switch t {
	case TypeString, TypeNumber, TypeEnum, TypeDate:
		return true
	}
	return false
}

// Criticality marks whether a canonical field must be present.
type Criticality string

const (
	Critical Criticality = "critical"
	Optional Criticality = "optional"
)

// Valid reports whether c is a known criticality.
func (c Criticality) Valid() bool {
	return c == Critical || c == Optional
}

// Merge strategies for fields that read more than one alias per row.
const (
	MergeFirstAlias    = ""
	MergeFirstNonEmpty = "first_non_empty"
)

// Field transforms applied before type coercion.
const (
	TransformStripHTML = "strip_html"
	TransformStatus    = "status"
)

// FieldMapping associates one canonical field with the raw column aliases it
// may be read from, its target type and its criticality.
type FieldMapping struct {
	Name          string            `json:"name"`
	Aliases       []string          `json:"aliases"`
	Type          FieldType         `json:"type"`
	Criticality   Criticality       `json:"criticality"`
	Transform     string            `json:"transform,omitempty"`
	MergeStrategy string            `json:"merge_strategy,omitempty"`
	ValueMapping  map[string]string `json:"value_mapping,omitempty"`
}

// IsCritical reports whether the field is critical.
func (f FieldMapping) IsCritical() bool {
	return f.Criticality == Critical
}

// NormalizationConfig is the ordered set of FieldMappings for one pipeline
// run. It is read-only once built.
type NormalizationConfig struct {
	Fields   []FieldMapping
	byName   map[string]int
	critical []*FieldMapping
}

// NewNormalizationConfig creates a NormalizationConfig with indexed lookups.
// Missing types default to string and missing criticality to optional.
func NewNormalizationConfig(fields []FieldMapping) *NormalizationConfig {
	c := &NormalizationConfig{
		Fields: fields,
		byName: make(map[string]int, len(fields)),
	}
	for i := range c.Fields {
		f := &c.Fields[i]
		if f.Type == "" {
			f.Type = TypeString
		}
		if f.Criticality == "" {
			f.Criticality = Optional
		}
		c.byName[f.Name] = i
		if f.IsCritical() {
			c.critical = append(c.critical, f)
		}
	}
	return c
}

// ByName returns the mapping for the canonical field, or nil if not found.
func (c *NormalizationConfig) ByName(name string) *FieldMapping {
	i, ok := c.byName[name]
	if !ok {
		return nil
	}
	return &c.Fields[i]
}

// Index returns the declared position of the canonical field, or -1.
func (c *NormalizationConfig) Index(name string) int {
	i, ok := c.byName[name]
	if !ok {
		return -1
	}
	return i
}

// Critical returns the critical field mappings in declared order.
func (c *NormalizationConfig) Critical() []*FieldMapping {
	return c.critical
}

// Names returns the canonical field names in declared order.
func (c *NormalizationConfig) Names() []string {
	names := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		names[i] = f.Name
	}
	return names
}

// Identity returns a config with the same fields where each field's only
// alias is its own canonical name. Used to re-read normalized output.
func (c *NormalizationConfig) Identity() *NormalizationConfig {
	fields := make([]FieldMapping, len(c.Fields))
	for i, f := range c.Fields {
		f.Aliases = []string{f.Name}
		f.MergeStrategy = MergeFirstAlias
		fields[i] = f
	}
	return NewNormalizationConfig(fields)
}

// NormalizeHeader case-folds and trims a raw column name for alias matching.
func NormalizeHeader(s string) string {
	return cases.Fold().String(strings.TrimSpace(strings.TrimPrefix(s, "\uFEFF")))
}
