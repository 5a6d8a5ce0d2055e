package display

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"sync"
)

// Terminal renders frames to an ANSI truecolor terminal, two pixel rows per
// character cell using the upper half block.
type Terminal struct {
	// Brightness scales every channel. Nil means full brightness.
	Brightness func() float64

	mu sync.Mutex
	w  *bufio.Writer
}

func NewTerminal(w io.Writer, brightness func() float64) *Terminal {
	return &Terminal{Brightness: brightness, w: bufio.NewWriterSize(w, 64*1024)}
}

func (t *Terminal) scale() float64 {
	if t.Brightness == nil {
		return 1
	}
	return t.Brightness()
}

// Present writes the frame. Every row is positioned explicitly so the output
// does not depend on the terminal's newline translation.
func (t *Terminal) Present(frame *image.RGBA) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := t.scale()
	b := frame.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y += 2 {
		fmt.Fprintf(t.w, "\x1b[%d;1H", (y-b.Min.Y)/2+1)
		for x := b.Min.X; x < b.Max.X; x++ {
			top := frame.RGBAAt(x, y)
			bottom := frame.RGBAAt(x, y+1) // zero outside bounds
			fmt.Fprintf(t.w, "\x1b[38;2;%d;%d;%dm\x1b[48;2;%d;%d;%dm▀",
				dim(top.R, k), dim(top.G, k), dim(top.B, k),
				dim(bottom.R, k), dim(bottom.G, k), dim(bottom.B, k))
		}
		t.w.WriteString("\x1b[0m")
	}
	return t.w.Flush()
}

// Reset clears the screen and shows the cursor again.
func (t *Terminal) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.w.WriteString("\x1b[0m\x1b[2J\x1b[H\x1b[?25h")
	return t.w.Flush()
}

func dim(v uint8, k float64) uint8 {
	return uint8(float64(v)*k + 0.5)
}
