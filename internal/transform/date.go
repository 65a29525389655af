package transform

import (
	"strings"
	"time"
)

// DefaultDateFormats is the ordered list of layouts tried when parsing
// vendor dates. The first layout that parses wins.
var DefaultDateFormats = []string{
	"2006-01-02",
	"2006/01/02",
	"02-01-2006",
	"02/01/2006",
	"01/02/2006 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// DateParser parses dates against an ordered layout list.
type DateParser struct {
	formats []string
}

// NewDateParser creates a DateParser. An empty list selects
// DefaultDateFormats.
func NewDateParser(formats []string) *DateParser {
	if len(formats) == 0 {
		formats = DefaultDateFormats
	}
	return &DateParser{formats: formats}
}

// Parse tries each layout in order.
func (p *DateParser) Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range p.formats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
