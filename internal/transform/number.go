// Package transform holds the type-specific conversion rules applied to raw
// vendor values: numbers, dates, enum/string text, HTML stripping and
// stock-status mapping.
package transform

import (
	"strconv"
	"strings"
	"unicode"
)

// currencyCodes are ISO codes vendors prepend or append to prices.
var currencyCodes = []string{"USD", "EUR", "GBP", "CAD", "AUD", "INR", "JPY", "CHF"}

// ParseNumber strips currency symbols, ISO currency codes, thousands
// separators and whitespace, then parses a decimal. "(12.50)" parses as
// -12.5. Returns false for empty or non-numeric input.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	for _, code := range currencyCodes {
		n := len(code)
		if len(s) < n {
			continue
		}
		if strings.EqualFold(s[:n], code) {
			s = s[n:]
			break
		}
		if strings.EqualFold(s[len(s)-n:], code) {
			s = s[:len(s)-n]
			break
		}
	}

	neg := false
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-', r == '+', r == 'e', r == 'E':
			b.WriteRune(r)
		case r == ',', unicode.IsSpace(r), unicode.Is(unicode.Sc, r):
			// thousands separator, spacing or currency symbol
		default:
			return 0, false
		}
	}

	cleaned := b.String()
	if cleaned == "" || cleaned == "-" || cleaned == "." {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		v = -v
	}
	return v, true
}

// FormatNumber renders v in its shortest exact decimal form.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
