package canvas

import (
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestTextClipsAtEdge(t *testing.T) {
	c := New(5, 1)
	end := c.Text(2, 0, "hello", tcell.StyleDefault)
	if end != 5 {
		t.Errorf("end = %d, want 5", end)
	}
	if got := c.String(); got != "  hel\n" {
		t.Errorf("String = %q", got)
	}
}

func TestTextWideRunes(t *testing.T) {
	c := New(6, 1)
	end := c.Text(0, 0, "日本x", tcell.StyleDefault)
	if end != 5 {
		t.Errorf("end = %d, want 5", end)
	}
	if !c.Contains("日本x") {
		t.Errorf("row = %q", c.String())
	}
}

func TestOutOfBoundsIsIgnored(t *testing.T) {
	c := New(2, 2)
	c.Set(-1, 0, 'x', tcell.StyleDefault)
	c.Set(0, 5, 'x', tcell.StyleDefault)
	c.Text(0, 9, "x", tcell.StyleDefault)
	if c.Contains("x") {
		t.Error("out of bounds write landed")
	}
	if got := c.Get(7, 7).Rune; got != ' ' {
		t.Errorf("Get outside = %q", got)
	}
}

func TestBlitAndDraw(t *testing.T) {
	src := New(2, 1)
	src.Text(0, 0, "ab", tcell.StyleDefault.Foreground(tcell.ColorRed))

	dst := New(3, 2)
	dst.Blit(src, 2, 1)
	if got := dst.Get(2, 1).Rune; got != 'a' {
		t.Errorf("blit = %q", got)
	}

	screen := tcell.NewSimulationScreen("")
	if err := screen.Init(); err != nil {
		t.Fatal(err)
	}
	defer screen.Fini()
	screen.SetSize(10, 5)
	dst.Draw(screen, 1, 1)
	mainc, _, style, _ := screen.GetContent(3, 2)
	if mainc != 'a' {
		t.Errorf("screen rune = %q", mainc)
	}
	if fg, _, _ := style.Decompose(); fg != tcell.ColorRed {
		t.Errorf("fg = %v", fg)
	}
}

func TestBox(t *testing.T) {
	c := New(4, 3)
	c.Box(0, 0, 4, 3, tcell.StyleDefault)
	want := "┌──┐\n│  │\n└──┘\n"
	if got := c.String(); got != want {
		t.Errorf("box =\n%s", got)
	}
}
