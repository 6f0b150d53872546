package mood

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Category is one of the fixed mood dimensions.
type Category string

const (
	Happiness Category = "Happiness"
	Bored     Category = "Bored"
	Stress    Category = "Stress"
)

// categories holds the declaration order used for every projection.
var categories = [...]Category{Happiness, Bored, Stress}

// Categories returns all categories in declaration order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories[:])
	return out
}

// Index returns the position of c in declaration order, or -1.
func (c Category) Index() int {
	for i, known := range categories {
		if known == c {
			return i
		}
	}
	return -1
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c.Index() >= 0
}

func (c Category) String() string {
	return string(c)
}

// ParseCategory resolves a category name case-insensitively.
func ParseCategory(s string) (Category, error) {
	for _, c := range categories {
		if strings.EqualFold(string(c), strings.TrimSpace(s)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// UnmarshalJSON implements json.Unmarshaler and rejects unknown categories.
func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed, err := ParseCategory(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Color is an opaque RGB base colour.
type Color struct {
	R, G, B uint8
}

// palette maps each category to its base colour.
var palette = map[Category]Color{
	Happiness: {R: 0x02, G: 0x74, B: 0xBD}, // bright blue
	Bored:     {R: 0x01, G: 0x35, B: 0x57}, // dark blue
	Stress:    {R: 0x00, G: 0x1B, B: 0x2C}, // very dark
}

// Color returns the base colour of the category.
func (c Category) Color() Color {
	return palette[c]
}

// Hex renders the colour as #RRGGBB.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// RGBA renders the colour with the given alpha as a CSS rgba() string.
func (c Color) RGBA(alpha float64) string {
	return fmt.Sprintf("rgba(%d, %d, %d, %g)", c.R, c.G, c.B, alpha)
}
