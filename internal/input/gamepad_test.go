package input

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"zed/internal/joystick"
	"zed/internal/lifecycle"
)

func newTestGamepad(t *testing.T) (*Gamepad, *io.PipeWriter, *lifecycle.Flags) {
	t.Helper()
	r, w := io.Pipe()
	flags := lifecycle.New()
	g := NewGamepad("/dev/input/js0", r, GamepadOptions{Logger: slog.Default(), Flags: flags})
	t.Cleanup(func() {
		_ = g.Close()
		_ = w.Close()
	})
	return g, w, flags
}

func writeRecord(t *testing.T, w io.Writer, rec joystick.Record) {
	t.Helper()
	if _, err := w.Write(rec.Encode()); err != nil {
		t.Fatalf("write record: %v", err)
	}
}

func expectEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatalf("event channel closed")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for event")
	}
	return nil
}

func expectNoEvent(t *testing.T, ch <-chan Event) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %#v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestGamepad_ConfigurationThenPress(t *testing.T) {
	g, w, _ := newTestGamepad(t)

	writeRecord(t, w, joystick.Record{Type: joystick.TypeButton | joystick.TypeInit, Address: 1})
	writeRecord(t, w, joystick.Record{Type: joystick.TypeButton, Address: 1, Value: 1})

	ev := expectEvent(t, g.Events())
	want := ButtonEvent{Device: "/dev/input/js0", Button: ButtonA, Pressed: true}
	if ev != want {
		t.Fatalf("event = %#v, want %#v", ev, want)
	}
	expectNoEvent(t, g.Events())
}

func TestGamepad_EventsInReadOrder(t *testing.T) {
	g, w, _ := newTestGamepad(t)

	go func() {
		w.Write(joystick.Record{Type: joystick.TypeAxis, Address: 1, Value: 100}.Encode())
		w.Write(joystick.Record{Type: joystick.TypeButton, Address: 9, Value: 1}.Encode())
		w.Write(joystick.Record{Type: joystick.TypeAxis, Address: 1, Value: -5}.Encode())
	}()

	want := []Event{
		AxisEvent{Device: g.ID(), Axis: AxisVertical, Value: 100},
		ButtonEvent{Device: g.ID(), Button: ButtonStart, Pressed: true},
		AxisEvent{Device: g.ID(), Axis: AxisVertical, Value: -5},
	}
	for i, exp := range want {
		if got := expectEvent(t, g.Events()); got != exp {
			t.Fatalf("event %d = %#v, want %#v", i, got, exp)
		}
	}
}

func TestGamepad_ProcessIsIdempotent(t *testing.T) {
	g, _, _ := newTestGamepad(t)

	cases := []joystick.Record{
		{Type: joystick.TypeButton, Address: 2, Value: 1},
		{Type: joystick.TypeAxis, Address: 0, Value: 32767},
	}
	for _, rec := range cases {
		if _, ok := g.process(rec); !ok {
			t.Fatalf("first %+v produced no event", rec)
		}
		if ev, ok := g.process(rec); ok {
			t.Fatalf("repeated %+v produced %#v", rec, ev)
		}
	}
}

func TestGamepad_ConfigurationNeverEmits(t *testing.T) {
	g, _, _ := newTestGamepad(t)

	for _, typ := range []uint8{joystick.TypeButton, joystick.TypeAxis} {
		for _, v := range []int16{0, 1, -32767} {
			rec := joystick.Record{Type: typ | joystick.TypeInit, Address: 3, Value: v}
			if ev, ok := g.process(rec); ok {
				t.Fatalf("configuration record %+v produced %#v", rec, ev)
			}
		}
	}
}

func TestGamepad_UnboundControlIsUndefined(t *testing.T) {
	g, _, _ := newTestGamepad(t)

	ev, ok := g.process(joystick.Record{Type: joystick.TypeButton, Address: 42, Value: 1})
	if !ok {
		t.Fatalf("unbound button produced no event")
	}
	if be := ev.(ButtonEvent); be.Button != ButtonUndefined || !be.Pressed {
		t.Fatalf("event = %#v, want undefined press", be)
	}

	ev, ok = g.process(joystick.Record{Type: joystick.TypeAxis, Address: 7, Value: -3})
	if !ok {
		t.Fatalf("unbound axis produced no event")
	}
	if ae := ev.(AxisEvent); ae.Axis != AxisUndefined || ae.Value != -3 {
		t.Fatalf("event = %#v, want undefined axis -3", ae)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("device unplugged") }
func (failingReader) Close() error             { return nil }

func TestGamepad_ReadFailureSetsErrorFlag(t *testing.T) {
	flags := lifecycle.New()
	g := NewGamepad("/dev/input/js1", failingReader{}, GamepadOptions{Flags: flags})
	defer g.Close()

	select {
	case _, ok := <-g.Events():
		if ok {
			t.Fatalf("unexpected event from failing device")
		}
	case <-time.After(time.Second):
		t.Fatalf("reader did not stop after read failure")
	}
	if !flags.ErrorOccurred() {
		t.Fatalf("error flag not set after read failure")
	}
}

func TestGamepad_CloseIsQuietAndBounded(t *testing.T) {
	g, _, flags := newTestGamepad(t)

	start := time.Now()
	if err := g.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if d := time.Since(start); d > closeWait+100*time.Millisecond {
		t.Fatalf("Close took %v", d)
	}
	if flags.ErrorOccurred() {
		t.Fatalf("normal cancellation set the error flag")
	}
	if err := g.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestOpenGamepad_MissingPath(t *testing.T) {
	_, err := OpenGamepad(t.TempDir()+"/js9", GamepadOptions{})
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("error = %v, want ErrDeviceUnavailable", err)
	}
}
