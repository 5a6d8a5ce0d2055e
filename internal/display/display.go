// Package display provides the drawing surface scenes render into.
//
// Scenes draw a frame through the Display primitives and the engine calls
// Present exactly once per frame. What Present does with the finished frame
// (drive a terminal, a matrix, nothing) is up to the Presenter.
package display

import (
	"image"
	"image/color"
)

// Display is the drawing capability consumed by scenes.
type Display interface {
	Width() int
	Height() int

	Clear()
	Fill(c color.Color)
	SetPixel(x, y int, c color.Color)
	DrawRect(x, y, w, h int, c color.Color) // filled
	DrawBox(x, y, w, h int, c color.Color)  // outline
	DrawLine(x0, y0, x1, y1 int, c color.Color)
	DrawCircle(cx, cy, r int, c color.Color, filled bool)
	DrawImage(x, y int, img image.Image)
	// DrawText draws s with its baseline at y.
	DrawText(x, y int, c color.Color, s string)
	MeasureText(s string) (w, h int)

	Present() error
}

// Presenter receives each finished frame.
type Presenter interface {
	Present(frame *image.RGBA) error
}

// Discard drops frames. Used for headless runs.
type Discard struct{}

func (Discard) Present(*image.RGBA) error { return nil }

// Common colors.
var (
	Black  = color.RGBA{0, 0, 0, 255}
	White  = color.RGBA{255, 255, 255, 255}
	Red    = color.RGBA{255, 0, 0, 255}
	Green  = color.RGBA{0, 255, 0, 255}
	Blue   = color.RGBA{0, 0, 255, 255}
	Yellow = color.RGBA{255, 255, 0, 255}
	Gray   = color.RGBA{96, 96, 96, 255}
)
