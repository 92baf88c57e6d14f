// Package canvas is an off-screen grid of styled terminal cells. Views draw into a
// Canvas; the shell copies it onto the tcell screen and the HTTP server prints it.
package canvas

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

type Cell struct {
	Rune  rune
	Style tcell.Style
}

type Canvas struct {
	Width  int
	Height int
	cells  []Cell
}

func New(width, height int) *Canvas {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	c := &Canvas{Width: width, Height: height, cells: make([]Cell, width*height)}
	c.Fill(tcell.StyleDefault)
	return c
}

func (c *Canvas) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < c.Width && y < c.Height
}

func (c *Canvas) Set(x, y int, r rune, style tcell.Style) {
	if !c.In(x, y) {
		return
	}
	c.cells[y*c.Width+x] = Cell{Rune: r, Style: style}
}

func (c *Canvas) Get(x, y int) Cell {
	if !c.In(x, y) {
		return Cell{Rune: ' ', Style: tcell.StyleDefault}
	}
	return c.cells[y*c.Width+x]
}

// SetBackground recolors the cell background and keeps its rune and foreground.
func (c *Canvas) SetBackground(x, y int, bg tcell.Color) {
	if !c.In(x, y) {
		return
	}
	cell := &c.cells[y*c.Width+x]
	cell.Style = cell.Style.Background(bg)
}

func (c *Canvas) Fill(style tcell.Style) {
	for i := range c.cells {
		c.cells[i] = Cell{Rune: ' ', Style: style}
	}
}

// FillRect fills the rectangle [x, x+w) x [y, y+h).
func (c *Canvas) FillRect(x, y, w, h int, style tcell.Style) {
	for yy := y; yy < y+h; yy++ {
		for xx := x; xx < x+w; xx++ {
			c.Set(xx, yy, ' ', style)
		}
	}
}

// Text draws s starting at (x, y) and returns the column after the last cell written.
// Wide runes take two columns; text past the right edge is dropped.
func (c *Canvas) Text(x, y int, s string, style tcell.Style) int {
	if y < 0 || y >= c.Height {
		return x
	}
	for _, r := range s {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		if x+w > c.Width {
			break
		}
		c.Set(x, y, r, style)
		if w == 2 {
			c.Set(x+1, y, 0, style)
		}
		x += w
	}
	return x
}

// Box draws a single-line frame around the rectangle.
func (c *Canvas) Box(x, y, w, h int, style tcell.Style) {
	if w < 2 || h < 2 {
		return
	}
	for xx := x + 1; xx < x+w-1; xx++ {
		c.Set(xx, y, '─', style)
		c.Set(xx, y+h-1, '─', style)
	}
	for yy := y + 1; yy < y+h-1; yy++ {
		c.Set(x, yy, '│', style)
		c.Set(x+w-1, yy, '│', style)
	}
	c.Set(x, y, '┌', style)
	c.Set(x+w-1, y, '┐', style)
	c.Set(x, y+h-1, '└', style)
	c.Set(x+w-1, y+h-1, '┘', style)
}

// Draw copies the canvas onto screen with its top-left corner at (ox, oy).
func (c *Canvas) Draw(screen tcell.Screen, ox, oy int) {
	for y := 0; y < c.Height; y++ {
		for x := 0; x < c.Width; x++ {
			cell := c.cells[y*c.Width+x]
			if cell.Rune == 0 {
				continue
			}
			screen.SetContent(ox+x, oy+y, cell.Rune, nil, cell.Style)
		}
	}
}

// Blit copies src into c at (ox, oy), clipping at the edges.
func (c *Canvas) Blit(src *Canvas, ox, oy int) {
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			cell := src.cells[y*src.Width+x]
			if c.In(ox+x, oy+y) {
				c.cells[(oy+y)*c.Width+ox+x] = cell
			}
		}
	}
}

// Runes returns the characters row by row, for recordings and tests.
func (c *Canvas) Runes() [][]rune {
	out := make([][]rune, c.Height)
	for y := range out {
		row := make([]rune, 0, c.Width)
		for x := 0; x < c.Width; x++ {
			if r := c.cells[y*c.Width+x].Rune; r != 0 {
				row = append(row, r)
			}
		}
		out[y] = row
	}
	return out
}

// String renders the characters with trailing spaces trimmed from each row.
func (c *Canvas) String() string {
	var sb strings.Builder
	for _, row := range c.Runes() {
		sb.WriteString(strings.TrimRight(string(row), " "))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Contains reports whether any row holds s.
func (c *Canvas) Contains(s string) bool {
	for _, row := range c.Runes() {
		if strings.Contains(string(row), s) {
			return true
		}
	}
	return false
}
