package display

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Canvas is an in-memory Display backed by an RGBA image.
type Canvas struct {
	img       *image.RGBA
	face      font.Face
	presenter Presenter
}

// NewCanvas returns a w x h canvas that hands frames to p. A nil p discards
// frames.
func NewCanvas(w, h int, p Presenter) *Canvas {
	if p == nil {
		p = Discard{}
	}
	return &Canvas{
		img:       image.NewRGBA(image.Rect(0, 0, w, h)),
		face:      basicfont.Face7x13,
		presenter: p,
	}
}

func (c *Canvas) Width() int  { return c.img.Bounds().Dx() }
func (c *Canvas) Height() int { return c.img.Bounds().Dy() }

// Frame exposes the backing image.
func (c *Canvas) Frame() *image.RGBA { return c.img }

func (c *Canvas) Clear() { c.Fill(Black) }

func (c *Canvas) Fill(col color.Color) {
	draw.Draw(c.img, c.img.Bounds(), image.NewUniform(col), image.Point{}, draw.Src)
}

// SetPixel ignores coordinates outside the canvas.
func (c *Canvas) SetPixel(x, y int, col color.Color) {
	if !image.Pt(x, y).In(c.img.Bounds()) {
		return
	}
	c.img.Set(x, y, col)
}

func (c *Canvas) DrawRect(x, y, w, h int, col color.Color) {
	r := image.Rect(x, y, x+w, y+h).Intersect(c.img.Bounds())
	draw.Draw(c.img, r, image.NewUniform(col), image.Point{}, draw.Src)
}

func (c *Canvas) DrawBox(x, y, w, h int, col color.Color) {
	if w <= 0 || h <= 0 {
		return
	}
	c.DrawLine(x, y, x+w-1, y, col)
	c.DrawLine(x, y+h-1, x+w-1, y+h-1, col)
	c.DrawLine(x, y, x, y+h-1, col)
	c.DrawLine(x+w-1, y, x+w-1, y+h-1, col)
}

// DrawLine uses Bresenham's algorithm.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int, col color.Color) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		c.SetPixel(x0, y0, col)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// DrawCircle uses the midpoint circle algorithm.
func (c *Canvas) DrawCircle(cx, cy, r int, col color.Color, filled bool) {
	if r < 0 {
		return
	}
	x, y, e := r, 0, 1-r
	for x >= y {
		if filled {
			c.DrawLine(cx-x, cy+y, cx+x, cy+y, col)
			c.DrawLine(cx-x, cy-y, cx+x, cy-y, col)
			c.DrawLine(cx-y, cy+x, cx+y, cy+x, col)
			c.DrawLine(cx-y, cy-x, cx+y, cy-x, col)
		} else {
			for _, p := range [][2]int{{x, y}, {y, x}, {-y, x}, {-x, y}, {-x, -y}, {-y, -x}, {y, -x}, {x, -y}} {
				c.SetPixel(cx+p[0], cy+p[1], col)
			}
		}
		y++
		if e < 0 {
			e += 2*y + 1
		} else {
			x--
			e += 2*(y-x) + 1
		}
	}
}

func (c *Canvas) DrawImage(x, y int, img image.Image) {
	b := img.Bounds()
	r := image.Rect(x, y, x+b.Dx(), y+b.Dy())
	draw.Draw(c.img, r, img, b.Min, draw.Over)
}

func (c *Canvas) DrawText(x, y int, col color.Color, s string) {
	d := font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(col),
		Face: c.face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func (c *Canvas) MeasureText(s string) (int, int) {
	w := font.MeasureString(c.face, s).Ceil()
	return w, c.face.Metrics().Ascent.Ceil()
}

func (c *Canvas) Present() error {
	return c.presenter.Present(c.img)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
