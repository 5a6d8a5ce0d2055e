package display

import (
	"bytes"
	"image"
	"image/color"
	"strings"
	"testing"
)

type countingPresenter struct {
	frames int
}

func (p *countingPresenter) Present(*image.RGBA) error {
	p.frames++
	return nil
}

func TestCanvas_PrimitivesStayInBounds(t *testing.T) {
	c := NewCanvas(8, 4, nil)

	c.SetPixel(-1, 0, White)
	c.SetPixel(8, 3, White)
	c.DrawRect(6, 2, 10, 10, Red)
	c.DrawLine(-5, -5, 20, 20, Green)
	c.DrawCircle(4, 2, 10, Blue, true)
	c.DrawText(0, 3, White, "overflowing text")

	if got := c.Frame().Bounds(); got != image.Rect(0, 0, 8, 4) {
		t.Fatalf("bounds changed: %v", got)
	}
}

func TestCanvas_RectAndBox(t *testing.T) {
	c := NewCanvas(6, 6, nil)
	c.DrawRect(1, 1, 2, 2, Red)
	c.DrawBox(0, 0, 6, 6, White)

	checks := []struct {
		x, y int
		want color.RGBA
	}{
		{1, 1, Red},
		{2, 2, Red},
		{3, 3, color.RGBA{}},
		{0, 0, White},
		{5, 5, White},
		{5, 2, White},
	}
	for _, ck := range checks {
		if got := c.Frame().RGBAAt(ck.x, ck.y); got != ck.want {
			t.Errorf("pixel (%d,%d) = %v, want %v", ck.x, ck.y, got, ck.want)
		}
	}

	c.Clear()
	if got := c.Frame().RGBAAt(1, 1); got != Black {
		t.Errorf("Clear left %v", got)
	}
}

func TestCanvas_LineEndpoints(t *testing.T) {
	c := NewCanvas(10, 10, nil)
	c.DrawLine(9, 0, 0, 7, Yellow)
	if c.Frame().RGBAAt(9, 0) != Yellow || c.Frame().RGBAAt(0, 7) != Yellow {
		t.Fatalf("line endpoints not drawn")
	}
}

func TestCanvas_TextDrawsSomething(t *testing.T) {
	c := NewCanvas(40, 16, nil)
	c.DrawText(1, 12, White, "Hi")

	lit := 0
	for y := 0; y < 16; y++ {
		for x := 0; x < 40; x++ {
			if c.Frame().RGBAAt(x, y) == White {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Fatalf("DrawText lit no pixels")
	}
	if w, h := c.MeasureText("Hi"); w != 14 || h <= 0 {
		t.Fatalf("MeasureText = %d,%d, want width 14", w, h)
	}
}

func TestCanvas_PresentDelegates(t *testing.T) {
	p := &countingPresenter{}
	c := NewCanvas(2, 2, p)
	_ = c.Present()
	_ = c.Present()
	if p.frames != 2 {
		t.Fatalf("presenter saw %d frames, want 2", p.frames)
	}
}

func TestTerminal_WritesEveryCellScaled(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminal(&out, func() float64 { return 0.5 })

	c := NewCanvas(3, 4, term)
	c.Fill(White)
	if err := c.Present(); err != nil {
		t.Fatalf("Present: %v", err)
	}

	s := out.String()
	if n := strings.Count(s, "▀"); n != 6 {
		t.Fatalf("wrote %d cells, want 6", n)
	}
	if !strings.Contains(s, "38;2;128;128;128") {
		t.Fatalf("brightness not applied: %q", s[:min(len(s), 80)])
	}
	if !strings.Contains(s, "\x1b[2;1H") {
		t.Fatalf("second row not positioned")
	}
}
