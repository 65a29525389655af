package model

import (
	"encoding/json"
	"slices"
	"time"
)

// AttributeType is the inferred filter type of a column.
type AttributeType string

const (
	AttrEnum        AttributeType = "enum"
	AttrNumberRange AttributeType = "number_range"
	AttrDate        AttributeType = "date"
	AttrString      AttributeType = "string"
)

// RangeOperators are the filter operators offered for ordered attributes.
var RangeOperators = []string{"$eq", "$lt", "$gt", "$gte", "$lte"}

// AttributeDescriptor describes one inferred attribute column.
type AttributeDescriptor struct {
	Type    AttributeType
	Values  []string
	Min     float64
	Max     float64
	MinDate time.Time
	MaxDate time.Time
}

type descriptorJSON struct {
	Type      AttributeType `json:"type"`
	Values    []string      `json:"values,omitempty"`
	Min       any           `json:"min,omitempty"`
	Max       any           `json:"max,omitempty"`
	Operators []string      `json:"operators,omitempty"`
}

// MarshalJSON writes {type, values?, min?, max?, operators?}. Date bounds are
// written as YYYY-MM-DD strings.
func (d AttributeDescriptor) MarshalJSON() ([]byte, error) {
	out := descriptorJSON{Type: d.Type}
	switch d.Type {
	case AttrEnum:
		out.Values = d.Values
	case AttrNumberRange:
		out.Min, out.Max = d.Min, d.Max
		out.Operators = RangeOperators
	case AttrDate:
		out.Min, out.Max = d.MinDate.Format(DateLayout), d.MaxDate.Format(DateLayout)
		out.Operators = RangeOperators
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the form written by MarshalJSON.
func (d *AttributeDescriptor) UnmarshalJSON(data []byte) error {
	var in struct {
		Type   AttributeType   `json:"type"`
		Values []string        `json:"values"`
		Min    json.RawMessage `json:"min"`
		Max    json.RawMessage `json:"max"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*d = AttributeDescriptor{Type: in.Type, Values: in.Values}
	switch in.Type {
	case AttrNumberRange:
		if len(in.Min) > 0 {
			if err := json.Unmarshal(in.Min, &d.Min); err != nil {
				return err
			}
		}
		if len(in.Max) > 0 {
			if err := json.Unmarshal(in.Max, &d.Max); err != nil {
				return err
			}
		}
	case AttrDate:
		var lo, hi string
		if len(in.Min) > 0 {
			if err := json.Unmarshal(in.Min, &lo); err != nil {
				return err
			}
		}
		if len(in.Max) > 0 {
			if err := json.Unmarshal(in.Max, &hi); err != nil {
				return err
			}
		}
		d.MinDate, _ = time.Parse(DateLayout, lo)
		d.MaxDate, _ = time.Parse(DateLayout, hi)
	}
	return nil
}

// AttributeSchema maps column name to its descriptor.
type AttributeSchema map[string]AttributeDescriptor

// Filterable returns the columns whose type supports structured filters, in
// sorted order.
func (s AttributeSchema) Filterable() []string {
	var cols []string
	for name, d := range s {
		if d.Type != AttrString {
			cols = append(cols, name)
		}
	}
	slices.Sort(cols)
	return cols
}
