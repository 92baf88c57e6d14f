// Package sentiment maps article counts onto the five sentiment bands and their colors.
// Every consumer (markers, panel, legend, API) goes through BandFor so that labels and
// colors can never disagree.
package sentiment

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"
)

type Band int

const (
	VeryNegative Band = iota + 1
	Negative
	Neutral
	Positive
	VeryPositive
)

type bandInfo struct {
	min   int
	label string
	title string
	hex   string
	rng   string
}

var bands = map[Band]bandInfo{
	VeryPositive: {50, "very-positive", "Very Positive Sentiment", "#1a5f3d", "50+ articles"},
	Positive:     {30, "positive", "Positive Sentiment", "#4ade80", "30-49 articles"},
	Neutral:      {20, "neutral", "Neutral Sentiment", "#9ca3af", "20-29 articles"},
	Negative:     {10, "negative", "Negative Sentiment", "#f97316", "10-19 articles"},
	VeryNegative: {0, "very-negative", "Very Negative Sentiment", "#dc2626", "0-9 articles"},
}

// Bands lists every band from the most positive to the most negative.
func Bands() []Band {
	return []Band{VeryPositive, Positive, Neutral, Negative, VeryNegative}
}

// BandFor returns the band for an article count. Negative counts count as zero.
func BandFor(count int) Band {
	for _, b := range Bands() {
		if count >= bands[b].min {
			return b
		}
	}
	return VeryNegative
}

func (b Band) info() bandInfo {
	if i, ok := bands[b]; ok {
		return i
	}
	return bands[Neutral]
}

func (b Band) Valid() bool {
	_, ok := bands[b]
	return ok
}

// Label is the machine label, e.g. "very-positive".
func (b Band) Label() string { return b.info().label }

// Title is the display text, e.g. "Very Positive Sentiment".
func (b Band) Title() string { return b.info().title }

// Range describes the counts covered, e.g. "30-49 articles".
func (b Band) Range() string { return b.info().rng }

// Hex is the band color as #rrggbb.
func (b Band) Hex() string { return b.info().hex }

func (b Band) String() string { return b.Label() }

// Color is the band color as a go-colorful value for blending.
func (b Band) Color() colorful.Color {
	c, _ := colorful.Hex(b.Hex())
	return c
}

// TCell is the band color for terminal styles.
func (b Band) TCell() tcell.Color {
	return tcell.GetColor(b.Hex())
}

func (b Band) MarshalText() ([]byte, error) {
	return []byte(b.Label()), nil
}

func (b *Band) UnmarshalText(text []byte) error {
	v, err := ParseLabel(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// ParseLabel accepts the machine labels, case-insensitively, with '_' or ' ' in place of '-'.
func ParseLabel(s string) (Band, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", "-", " ", "-").Replace(norm)
	for _, b := range Bands() {
		if bands[b].label == norm {
			return b, nil
		}
	}
	return 0, fmt.Errorf("unknown sentiment label %q", s)
}

// ColorFor is shorthand for BandFor(count).Hex().
func ColorFor(count int) string { return BandFor(count).Hex() }

// LabelFor is shorthand for BandFor(count).Label().
func LabelFor(count int) string { return BandFor(count).Label() }

// LegendEntry is one row of the map legend.
type LegendEntry struct {
	Band  Band   `json:"band"`
	Title string `json:"title"`
	Range string `json:"range"`
	Color string `json:"color"`
}

func Legend() []LegendEntry {
	out := make([]LegendEntry, 0, len(bands))
	for _, b := range Bands() {
		out = append(out, LegendEntry{Band: b, Title: b.Title(), Range: b.Range(), Color: b.Hex()})
	}
	return out
}

// ParseHex reads a #rgb or #rrggbb color. ok is false for anything else.
func ParseHex(s string) (c colorful.Color, ok bool) {
	s = strings.TrimSpace(s)
	if len(s) == 4 && s[0] == '#' {
		s = string([]byte{'#', s[1], s[1], s[2], s[2], s[3], s[3]})
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{}, false
	}
	return c, true
}

// ToTCell converts a go-colorful color for terminal styles.
func ToTCell(c colorful.Color) tcell.Color {
	r, g, b := c.Clamped().RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}
