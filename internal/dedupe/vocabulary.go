package dedupe

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

var defaultSizes = []string{
	"XXS", "XS", "S", "M", "L", "XL", "XXL", "XXXL",
	"2XL", "3XL", "4XL", "5XL", "2XS",
	"SM", "MD", "LG",
	"S/M", "M/L", "L/XL",
	"OS", "ONESIZE", "FREESIZE",
	"SMALL", "MEDIUM", "LARGE",
}

var defaultColors = []string{
	"BLACK", "WHITE", "RED", "BLUE", "GREEN", "YELLOW", "ORANGE", "PURPLE",
	"PINK", "BROWN", "GREY", "GRAY", "NAVY", "BEIGE", "CREAM", "IVORY",
	"TAN", "KHAKI", "OLIVE", "MAROON", "TEAL", "GOLD", "SILVER", "CHARCOAL",
	"BLK", "WHT", "RD", "BLU", "GRN", "NVY",
}

// Vocabulary lists the SKU suffix tokens recognised as variant sizes and
// colors. Matching is case-insensitive.
type Vocabulary struct {
	Sizes       []string `yaml:"sizes"`
	Colors      []string `yaml:"colors"`
	StripColors bool     `yaml:"strip_colors"`
	Separators  string   `yaml:"separators"`

	sizes  map[string]bool
	colors map[string]bool
}

// DefaultVocabulary returns the built-in size and color lists. Color
// suffixes are not stripped by default.
func DefaultVocabulary() *Vocabulary {
	v := &Vocabulary{Sizes: defaultSizes, Colors: defaultColors}
	v.index()
	return v
}

// LoadVocabulary reads a YAML vocabulary. Lists left empty in the file keep
// the built-in defaults. An empty path returns DefaultVocabulary.
func LoadVocabulary(path string) (*Vocabulary, error) {
	if path == "" {
		return DefaultVocabulary(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dedupe: read vocabulary %s", path)
	}

	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, eris.Wrap(err, "dedupe: parse vocabulary")
	}
	if len(v.Sizes) == 0 {
		v.Sizes = defaultSizes
	}
	if len(v.Colors) == 0 {
		v.Colors = defaultColors
	}
	v.index()
	return &v, nil
}

func (v *Vocabulary) index() {
	if v.Separators == "" {
		v.Separators = "-_"
	}
	v.sizes = toSet(v.Sizes)
	v.colors = toSet(v.Colors)
}

func toSet(list []string) map[string]bool {
	m := make(map[string]bool, len(list))
	for _, s := range list {
		m[strings.ToUpper(strings.TrimSpace(s))] = true
	}
	return m
}

// IsSize reports whether tok is a known size.
func (v *Vocabulary) IsSize(tok string) bool {
	return v.sizes[strings.ToUpper(tok)]
}

// IsColor reports whether tok is a known color.
func (v *Vocabulary) IsColor(tok string) bool {
	return v.colors[strings.ToUpper(tok)]
}

// BaseSKU strips variant suffixes from sku. At most one trailing size token
// is removed, then, when StripColors is set, at most one trailing color
// token. A token that is both a size and a color is read as a size in the
// size position. The base never becomes empty; a SKU with no recognised
// suffix is its own base.
func (v *Vocabulary) BaseSKU(sku string) (base, size, color string) {
	base = strings.TrimSpace(sku)

	if head, tok, ok := v.cutLast(base); ok && v.IsSize(tok) {
		base, size = head, tok
	}
	if v.StripColors {
		if head, tok, ok := v.cutLast(base); ok && v.IsColor(tok) {
			base, color = head, tok
		}
	}
	return base, size, color
}

// cutLast splits s at its last separator. ok is false when there is no
// separator or either side would be empty.
func (v *Vocabulary) cutLast(s string) (head, tok string, ok bool) {
	i := strings.LastIndexAny(s, v.Separators)
	if i <= 0 || i == len(s)-1 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}
