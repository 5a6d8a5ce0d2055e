package input

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"zed/internal/joystick"
	"zed/internal/lifecycle"
)

// GamepadBindings maps joystick control indices to logical controls.
type GamepadBindings struct {
	Buttons map[uint8]Button
	Axes    map[uint8]Axis
}

// DefaultGamepadBindings returns the layout of the common USB SNES-style pads
// the cabinet ships with.
func DefaultGamepadBindings() GamepadBindings {
	return GamepadBindings{
		Buttons: map[uint8]Button{
			0: ButtonX,
			1: ButtonA,
			2: ButtonB,
			3: ButtonY,
			4: ButtonLeftTrigger,
			5: ButtonRightTrigger,
			8: ButtonSelect,
			9: ButtonStart,
		},
		Axes: map[uint8]Axis{
			0: AxisHorizontal,
			1: AxisVertical,
		},
	}
}

// GamepadOptions configures OpenGamepad.
type GamepadOptions struct {
	Bindings GamepadBindings
	Logger   *slog.Logger
	Flags    *lifecycle.Flags

	// QueueSize bounds the reader's outbound channel. Zero uses the default.
	QueueSize int
}

// closeWait bounds how long Close waits for the reader to notice.
const closeWait = 500 * time.Millisecond

// Gamepad reads a Linux joystick device on its own goroutine and emits an
// event whenever a control changes value.
type Gamepad struct {
	id       string
	bindings GamepadBindings
	logger   *slog.Logger
	flags    *lifecycle.Flags

	src io.ReadCloser

	mu      sync.Mutex
	buttons map[uint8]bool
	axes    map[uint8]int16

	events    chan Event
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// OpenGamepad opens the joystick node at path and starts reading it.
func OpenGamepad(path string, opts GamepadOptions) (*Gamepad, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, path, err)
	}
	return NewGamepad(path, f, opts), nil
}

// NewGamepad starts a gamepad over an already opened record stream.
// The gamepad takes ownership of src.
func NewGamepad(id string, src io.ReadCloser, opts GamepadOptions) *Gamepad {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bindings := opts.Bindings
	if bindings.Buttons == nil && bindings.Axes == nil {
		bindings = DefaultGamepadBindings()
	}
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	g := &Gamepad{
		id:       id,
		bindings: bindings,
		logger:   logger.With("device", id),
		flags:    opts.Flags,
		src:      src,
		buttons:  make(map[uint8]bool),
		axes:     make(map[uint8]int16),
		events:   make(chan Event, size),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go g.read(ctx)
	return g
}

func (g *Gamepad) ID() string { return g.id }

func (g *Gamepad) Events() <-chan Event { return g.events }

// Close stops the reader and releases the device handle. It may be called
// from any goroutine and more than once.
func (g *Gamepad) Close() error {
	var err error
	g.closeOnce.Do(func() {
		g.cancel()
		err = g.src.Close()

		select {
		case <-g.done:
		case <-time.After(closeWait):
			g.logger.Warn("gamepad reader did not stop in time")
		}
	})
	return err
}

func (g *Gamepad) stopping(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return g.flags != nil && g.flags.Closing()
}

// read is the per-device reader loop. Events leave in the order records
// were read.
func (g *Gamepad) read(ctx context.Context) {
	defer close(g.done)
	defer close(g.events)

	for {
		rec, err := joystick.ReadRecord(g.src)
		if err != nil {
			if g.stopping(ctx) || errors.Is(err, os.ErrClosed) {
				g.logger.Debug("gamepad reader stopped")
				return
			}
			g.logger.Error("gamepad read failed", "error", fmt.Errorf("%w: %v", ErrDeviceRead, err))
			if g.flags != nil {
				g.flags.SetError()
			}
			return
		}
		if g.stopping(ctx) {
			return
		}

		ev, ok := g.process(rec)
		if !ok {
			continue
		}
		select {
		case g.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// process applies change detection to one record. It reports whether the
// record produced an event.
func (g *Gamepad) process(rec joystick.Record) (Event, bool) {
	addr := rec.Address

	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case rec.IsButton():
		if rec.IsConfiguration() {
			if _, known := g.buttons[addr]; !known {
				g.buttons[addr] = false
			}
			return nil, false
		}
		pressed := rec.IsButtonPressed()
		if g.buttons[addr] == pressed {
			return nil, false
		}
		g.buttons[addr] = pressed
		return ButtonEvent{Device: g.id, Button: g.bindings.Buttons[addr], Pressed: pressed}, true

	case rec.IsAxis():
		if rec.IsConfiguration() {
			if _, known := g.axes[addr]; !known {
				g.axes[addr] = 0
			}
			return nil, false
		}
		value := rec.AxisValue()
		if g.axes[addr] == value {
			return nil, false
		}
		g.axes[addr] = value
		return AxisEvent{Device: g.id, Axis: g.bindings.Axes[addr], Value: value}, true
	}
	return nil, false
}
