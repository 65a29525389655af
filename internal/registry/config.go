// Package registry loads NormalizationConfig files and validates them
// against an input header before any row is processed.
package registry

import (
	"bytes"
	"encoding/json"
	"os"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-cli/internal/model"
)

// fieldSpec is the on-disk shape of one canonical field.
type fieldSpec struct {
	Name          string            `json:"name"`
	Aliases       []string          `json:"aliases"`
	Type          model.FieldType   `json:"type"`
	Criticality   model.Criticality `json:"criticality"`
	Transform     string            `json:"transform"`
	MergeStrategy string            `json:"merge_strategy"`
	ValueMapping  map[string]string `json:"value_mapping"`

	hasAliases bool
}

func (f *fieldSpec) UnmarshalJSON(data []byte) error {
	type plain fieldSpec
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	*f = fieldSpec(p)
	_, f.hasAliases = probe["aliases"]
	return nil
}

func (f fieldSpec) mapping() model.FieldMapping {
	return model.FieldMapping{
		Name:          f.Name,
		Aliases:       f.Aliases,
		Type:          f.Type,
		Criticality:   f.Criticality,
		Transform:     f.Transform,
		MergeStrategy: f.MergeStrategy,
		ValueMapping:  f.ValueMapping,
	}
}

// LoadNormalizationConfig reads and parses a NormalizationConfig file. See
// ParseNormalizationConfig for the accepted shapes.
func LoadNormalizationConfig(path string) (*model.NormalizationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &model.ConfigError{Problems: []string{eris.Wrapf(err, "read %s", path).Error()}}
	}
	return ParseNormalizationConfig(data)
}

// ParseNormalizationConfig parses either the object form
//
//	{"sku": {"aliases": ["SKU"], "type": "string", "criticality": "critical"}, ...}
//
// where key order is the declared field order, or the list form
//
//	{"output_schema": [{"name": "sku", "aliases": ["SKU"], ...}]}
//
// and validates its structure. Every structural problem is reported in a
// single ConfigError.
func ParseNormalizationConfig(data []byte) (*model.NormalizationConfig, error) {
	specs, err := decodeSpecs(data)
	if err != nil {
		return nil, &model.ConfigError{Problems: []string{"invalid JSON: " + err.Error()}}
	}
	if err := validateStructure(specs); err != nil {
		return nil, err
	}

	fields := make([]model.FieldMapping, len(specs))
	for i, s := range specs {
		fields[i] = s.mapping()
	}
	return model.NewNormalizationConfig(fields), nil
}

// decodeSpecs walks the top-level object with a token decoder so the
// declared key order survives.
func decodeSpecs(data []byte) ([]fieldSpec, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, eris.New("top level must be an object")
	}

	var specs []fieldSpec
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key := tok.(string)

		if key == "output_schema" {
			var list []fieldSpec
			if err := dec.Decode(&list); err != nil {
				return nil, eris.Wrap(err, "output_schema")
			}
			specs = append(specs, list...)
			continue
		}

		var spec fieldSpec
		if err := dec.Decode(&spec); err != nil {
			return nil, eris.Wrapf(err, "field %q", key)
		}
		spec.Name = key
		specs = append(specs, spec)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return specs, nil
}

// validateStructure checks names, aliases, types, criticality, transforms
// and merge strategies of the decoded fields.
func validateStructure(specs []fieldSpec) error {
	var problems []string
	if len(specs) == 0 {
		problems = append(problems, "no fields defined")
	}

	seen := make(map[string]bool, len(specs))
	for i, s := range specs {
		label := s.Name
		if label == "" {
			label = "#" + strconv.Itoa(i)
			problems = append(problems, "field "+label+": missing name")
		} else if seen[s.Name] {
			problems = append(problems, "field "+label+": duplicate name")
		}
		seen[s.Name] = true

		if !s.hasAliases {
			problems = append(problems, "field "+label+": missing aliases")
		} else if len(s.Aliases) == 0 {
			problems = append(problems, "field "+label+": aliases must not be empty")
		}
		for _, a := range s.Aliases {
			if model.NormalizeHeader(a) == "" {
				problems = append(problems, "field "+label+": blank alias")
				break
			}
		}
		if s.Type != "" && !s.Type.Valid() {
			problems = append(problems, "field "+label+": unknown type "+strconv.Quote(string(s.Type)))
		}
		if s.Criticality != "" && !s.Criticality.Valid() {
			problems = append(problems, "field "+label+": unknown criticality "+strconv.Quote(string(s.Criticality)))
		}
		switch s.Transform {
		case "", model.TransformStripHTML, model.TransformStatus:
		default:
			problems = append(problems, "field "+label+": unknown transform "+strconv.Quote(s.Transform))
		}
		switch s.MergeStrategy {
		case model.MergeFirstAlias, model.MergeFirstNonEmpty:
		default:
			problems = append(problems, "field "+label+": unknown merge_strategy "+strconv.Quote(s.MergeStrategy))
		}
	}

	if len(problems) > 0 {
		return &model.ConfigError{Problems: problems}
	}
	return nil
}
