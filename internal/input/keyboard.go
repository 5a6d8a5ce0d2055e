package input

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"
)

// KeyboardID is the device id of the keyboard.
const KeyboardID = "keyboard"

// Key names a physical key independent of the host surface.
type Key string

const (
	KeyUp     Key = "up"
	KeyDown   Key = "down"
	KeyLeft   Key = "left"
	KeyRight  Key = "right"
	KeySpace  Key = "space"
	KeyEnter  Key = "enter"
	KeyEscape Key = "escape"
	KeyTab    Key = "tab"
)

// KeyPress is a key with its shift state.
type KeyPress struct {
	Key   Key
	Shift bool
}

type axisBinding struct {
	axis  Axis
	value int16
}

var keyAxes = map[Key]axisBinding{
	KeyUp:    {AxisVertical, -AxisMax},
	"w":      {AxisVertical, -AxisMax},
	KeyDown:  {AxisVertical, AxisMax},
	"s":      {AxisVertical, AxisMax},
	KeyLeft:  {AxisHorizontal, -AxisMax},
	"a":      {AxisHorizontal, -AxisMax},
	KeyRight: {AxisHorizontal, AxisMax},
	"d":      {AxisHorizontal, AxisMax},
}

var keyButtons = map[Key]Button{
	KeySpace:  ButtonA,
	KeyEnter:  ButtonA,
	"b":       ButtonB,
	"x":       ButtonX,
	"y":       ButtonY,
	KeyEscape: ButtonStart,
	KeyTab:    ButtonSelect,
}

// Keyboard turns key notifications from a host surface into input events.
//
// Shift+Q never reaches the binding table: it calls the quit callback.
type Keyboard struct {
	*queue
	onQuit func()
}

// NewKeyboard returns a keyboard device. onQuit may be nil.
func NewKeyboard(onQuit func(), logger *slog.Logger) *Keyboard {
	return &Keyboard{
		queue:  newQueue(KeyboardID, defaultQueueSize, logger),
		onQuit: onQuit,
	}
}

func isQuit(k KeyPress) bool {
	return k.Shift && k.Key == "q"
}

// KeyDown handles a key press.
func (k *Keyboard) KeyDown(kp KeyPress) {
	if isQuit(kp) {
		k.logger.Info("exit requested from keyboard")
		if k.onQuit != nil {
			k.onQuit()
		}
		return
	}
	if b, ok := keyAxes[kp.Key]; ok {
		_ = k.push(AxisEvent{Device: k.id, Axis: b.axis, Value: b.value})
		return
	}
	if b, ok := keyButtons[kp.Key]; ok {
		_ = k.push(ButtonEvent{Device: k.id, Button: b, Pressed: true})
	}
}

// KeyUp handles a key release. Axis keys recenter their axis.
func (k *Keyboard) KeyUp(kp KeyPress) {
	if isQuit(kp) {
		return
	}
	if b, ok := keyAxes[kp.Key]; ok {
		_ = k.push(AxisEvent{Device: k.id, Axis: b.axis, Value: 0})
		return
	}
	if b, ok := keyButtons[kp.Key]; ok {
		_ = k.push(ButtonEvent{Device: k.id, Button: b, Pressed: false})
	}
}

// ============================================================================
// Console polling
// ============================================================================
// A raw-mode terminal delivers bytes, not key transitions. Each decoded key
// is reported as a tap (down immediately followed by up).
// ============================================================================

const ctrlC = 0x03

// parseKeys decodes one chunk of raw terminal input.
func parseKeys(b []byte) []KeyPress {
	var keys []KeyPress
	for i := 0; i < len(b); i++ {
		c := b[i]
		switch {
		case c == 0x1b:
			if i+2 < len(b) && b[i+1] == '[' {
				switch b[i+2] {
				case 'A':
					keys = append(keys, KeyPress{Key: KeyUp})
				case 'B':
					keys = append(keys, KeyPress{Key: KeyDown})
				case 'C':
					keys = append(keys, KeyPress{Key: KeyRight})
				case 'D':
					keys = append(keys, KeyPress{Key: KeyLeft})
				}
				i += 2
				continue
			}
			keys = append(keys, KeyPress{Key: KeyEscape})
		case c == ctrlC:
			keys = append(keys, KeyPress{Key: "q", Shift: true})
		case c == '\r' || c == '\n':
			keys = append(keys, KeyPress{Key: KeyEnter})
		case c == '\t':
			keys = append(keys, KeyPress{Key: KeyTab})
		case c == ' ':
			keys = append(keys, KeyPress{Key: KeySpace})
		case c >= 'a' && c <= 'z':
			keys = append(keys, KeyPress{Key: Key(string(c))})
		case c >= 'A' && c <= 'Z':
			keys = append(keys, KeyPress{Key: Key(string(c + ('a' - 'A'))), Shift: true})
		}
	}
	return keys
}

// idleBackoff throttles the loop when the terminal reports no data.
const idleBackoff = 20 * time.Millisecond

// RunConsole polls tty until ctx is cancelled or tty fails. tty is expected
// to be a raw-mode terminal with a short read timeout so that each Read
// returns regularly even when no key is pressed.
func (k *Keyboard) RunConsole(ctx context.Context, tty io.Reader) error {
	buf := make([]byte, 32)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := tty.Read(buf)
		for _, kp := range parseKeys(buf[:n]) {
			k.KeyDown(kp)
			k.KeyUp(kp)
		}
		if err != nil && !errors.Is(err, io.EOF) {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if n == 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(idleBackoff):
			}
		}
	}
}
