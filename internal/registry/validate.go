package registry

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/catalog-cli/internal/model"
)

// Resolution records which header columns a canonical field reads from.
// Columns holds the header index of every alias present, in alias order.
type Resolution struct {
	Field   string
	Columns []int
}

// Column returns the single column a first-alias field reads, or -1.
func (r Resolution) Column() int {
	if len(r.Columns) == 0 {
		return -1
	}
	return r.Columns[0]
}

// ValidationResult is the outcome of a successful Validate call.
type ValidationResult struct {
	Resolutions []Resolution
	Warnings    []string
}

// Resolution returns the resolution of the named field.
func (v *ValidationResult) Resolution(field string) Resolution {
	for _, r := range v.Resolutions {
		if r.Field == field {
			return r
		}
	}
	return Resolution{Field: field}
}

// HeaderIndex maps case-folded header names to their first column index.
func HeaderIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, col := range header {
		key := model.NormalizeHeader(col)
		if key == "" {
			continue
		}
		if _, ok := idx[key]; !ok {
			idx[key] = i
		}
	}
	return idx
}

// Validate resolves every field's aliases against header (case-insensitive).
// A critical field with no alias present yields a MissingCriticalFieldError;
// all such fields are reported together. Optional fields with no alias
// present produce warnings. Validate has no side effects beyond logging.
func Validate(cfg *model.NormalizationConfig, header []string) (*ValidationResult, error) {
	idx := HeaderIndex(header)
	res := &ValidationResult{Resolutions: make([]Resolution, 0, len(cfg.Fields))}

	var errs []error
	for _, f := range cfg.Fields {
		r := Resolution{Field: f.Name}
		for _, alias := range f.Aliases {
			if col, ok := idx[model.NormalizeHeader(alias)]; ok {
				r.Columns = append(r.Columns, col)
			}
		}
		res.Resolutions = append(res.Resolutions, r)

		if len(r.Columns) > 0 {
			continue
		}
		if f.IsCritical() {
			errs = append(errs, &model.MissingCriticalFieldError{
				Field:     f.Name,
				Aliases:   f.Aliases,
				Available: header,
			})
			continue
		}
		w := fmt.Sprintf("field %q: none of the aliases %v found in input (will be empty)", f.Name, f.Aliases)
		res.Warnings = append(res.Warnings, w)
		zap.L().Warn("registry: optional field not found", zap.String("field", f.Name), zap.Strings("aliases", f.Aliases))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return res, nil
}
