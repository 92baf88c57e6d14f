package globe

import (
	"fmt"
	"strings"
)

type Charset int

const (
	CharsetASCII Charset = iota
	CharsetBlocks
	CharsetBraille
)

func ParseCharset(s string) (Charset, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ascii":
		return CharsetASCII, nil
	case "blocks":
		return CharsetBlocks, nil
	case "braille":
		return CharsetBraille, nil
	}
	return CharsetASCII, fmt.Errorf("unknown charset %q", s)
}

func (c Charset) String() string {
	switch c {
	case CharsetBlocks:
		return "blocks"
	case CharsetBraille:
		return "braille"
	}
	return "ascii"
}

type ramp struct {
	min float64
	r   rune
}

var ramps = map[Charset][]ramp{
	CharsetASCII: {
		{1.0, '@'}, {0.8, '#'}, {0.6, '%'}, {0.4, 'o'}, {0.3, '='},
		{0.2, '+'}, {0.15, '-'}, {0.1, '.'}, {0.05, '`'},
	},
	CharsetBlocks: {
		{1.0, '█'}, {0.875, '▓'}, {0.75, '▒'}, {0.625, '░'}, {0.5, '▄'},
		{0.375, '▃'}, {0.25, '▂'}, {0.125, '▁'},
	},
	CharsetBraille: {
		{1.0, '⣿'}, {0.9, '⣾'}, {0.8, '⣶'}, {0.7, '⣦'}, {0.6, '⣤'}, {0.5, '⣀'},
		{0.4, '⡀'}, {0.3, '⠄'}, {0.2, '⠂'}, {0.15, '⠁'},
	},
}

// Glyph maps a density in [0, 1+] to a character of the charset. Zero density is a space.
func (c Charset) Glyph(density float64) rune {
	for _, step := range ramps[c] {
		if density >= step.min {
			return step.r
		}
	}
	return ' '
}

// Marker returns the glyph for a country marker.
func (c Charset) Marker(selected bool) rune {
	switch {
	case c == CharsetASCII && selected:
		return '@'
	case c == CharsetASCII:
		return 'o'
	case selected:
		return '◉'
	}
	return '●'
}
