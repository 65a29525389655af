package model

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError reports a malformed or incomplete NormalizationConfig. It is
// fatal: the run aborts before any row is read.
type ConfigError struct {
	Field    string
	Problems []string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config: field %q: %s", e.Field, strings.Join(e.Problems, "; "))
	}
	return "config: " + strings.Join(e.Problems, "; ")
}

// MissingCriticalFieldError reports a critical field none of whose aliases
// appear in the input header.
type MissingCriticalFieldError struct {
	Field     string
	Aliases   []string
	Available []string
}

func (e *MissingCriticalFieldError) Error() string {
	avail := e.Available
	if len(avail) > 15 {
		avail = append(avail[:15:15], "...")
	}
	return fmt.Sprintf("config: critical field %q has no matching column (aliases %v; available columns: %s)",
		e.Field, e.Aliases, strings.Join(avail, ", "))
}

// RowError reason codes.
const (
	ReasonMissingCritical  = "missing_critical_field"
	ReasonInvalidCritical  = "invalid_critical_field"
	ReasonInvalidAggregate = "invalid_aggregate_value"
	ReasonMissingGroupKey  = "missing_group_key"
)

// RowError reports a single row excluded from the output. It never aborts
// the run.
type RowError struct {
	Row    int    `json:"row"`
	Field  string `json:"field"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
	Value  string `json:"value,omitempty"`
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// NewMissingCriticalRowError builds the RowError for an empty critical field.
func NewMissingCriticalRowError(row int, field string) *RowError {
	return &RowError{
		Row:    row,
		Field:  field,
		Code:   ReasonMissingCritical,
		Reason: "missing critical field: " + field,
	}
}

// NewInvalidCriticalRowError builds the RowError for a critical field that
// failed type coercion.
func NewInvalidCriticalRowError(row int, field, value string, t FieldType) *RowError {
	return &RowError{
		Row:    row,
		Field:  field,
		Code:   ReasonInvalidCritical,
		Reason: fmt.Sprintf("invalid critical field: %s (%q is not a valid %s)", field, value, t),
		Value:  value,
	}
}

// NewInvalidAggregateRowError builds the RowError for a variant whose value
// cannot take part in its product's aggregate.
func NewInvalidAggregateRowError(row int, field, value string) *RowError {
	return &RowError{
		Row:    row,
		Field:  field,
		Code:   ReasonInvalidAggregate,
		Reason: fmt.Sprintf("invalid aggregate value: %s (%q is not a number)", field, value),
		Value:  value,
	}
}

// NewMissingGroupKeyRowError builds the RowError for a variant whose grouping
// field is empty, so it cannot be assigned to a product.
func NewMissingGroupKeyRowError(row int, field, value string) *RowError {
	return &RowError{
		Row:    row,
		Field:  field,
		Code:   ReasonMissingGroupKey,
		Reason: "missing group key: " + field,
		Value:  value,
	}
}

// PersistenceError reports an unavailable or unwritable sink. It is fatal to
// the stage that raised it only.
type PersistenceError struct {
	Stage  string
	Target string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s unavailable: %v", e.Stage, e.Target, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err carries a ConfigError or a
// MissingCriticalFieldError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	var me *MissingCriticalFieldError
	return errors.As(err, &ce) || errors.As(err, &me)
}

// IsPersistenceError reports whether err carries a PersistenceError.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
