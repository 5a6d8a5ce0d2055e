// Package scenes holds the concrete scenes: the intro, the main and options
// menus, controller assignment and the input tester.
package scenes

import (
	"image/color"
	"math/rand/v2"

	"zed/internal/display"
)

// hsv returns the fully saturated colour for hue (degrees) at value v.
func hsv(hue int, v float64) color.RGBA {
	hue %= 360
	if hue < 0 {
		hue += 360
	}
	ramp := func(deg int) uint8 { return uint8(deg * 255 / 60) }

	var r, g, b uint8
	switch {
	case hue < 60:
		r, g, b = 255, ramp(hue), 0
	case hue < 120:
		r, g, b = ramp(120-hue), 255, 0
	case hue < 180:
		r, g, b = 0, 255, ramp(hue-120)
	case hue < 240:
		r, g, b = 0, ramp(240-hue), 255
	case hue < 300:
		r, g, b = ramp(hue-240), 0, 255
	default:
		r, g, b = 255, 0, ramp(360-hue)
	}
	return color.RGBA{R: scale(r, v), G: scale(g, v), B: scale(b, v), A: 0xff}
}

func scale(c uint8, v float64) uint8 {
	return uint8(float64(c)*v + 0.5)
}

type star struct {
	x, y  int
	c     color.RGBA
	fall  uint64 // frames per pixel down
	drift int    // frames per pixel sideways, sign is the direction
}

// starField is the falling-stars backdrop shared by the menus.
type starField struct {
	w, h  int
	stars []star
}

func newStarField(w, h, n int) *starField {
	f := &starField{w: w, h: h, stars: make([]star, n)}
	for i := range f.stars {
		f.stars[i].c = hsv(rand.IntN(360), 0.6)
		f.reset(&f.stars[i])
	}
	return f
}

func (f *starField) reset(s *star) {
	s.x = rand.IntN(max(f.w, 1))
	s.y = -rand.IntN(30)
	s.fall = uint64(2 + rand.IntN(8))
	s.drift = 30 + rand.IntN(60)
	if rand.IntN(2) == 0 {
		s.drift = -s.drift
	}
}

// Draw plots every star and advances the ones whose turn it is.
func (f *starField) Draw(d display.Display, frame uint64) {
	for i := range f.stars {
		s := &f.stars[i]
		if s.y > f.h {
			f.reset(s)
			continue
		}
		d.SetPixel(s.x, s.y, s.c)

		if frame%uint64(abs(s.drift)) == 0 {
			if s.drift > 0 {
				s.x++
			} else {
				s.x--
			}
		}
		if frame%s.fall == 0 {
			s.y++
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
