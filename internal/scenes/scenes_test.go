package scenes

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"zed/internal/display"
	"zed/internal/input"
	"zed/internal/lifecycle"
	"zed/internal/scene"
	"zed/internal/settings"
)

// ============================================================================
// Helpers
// ============================================================================

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time        { return c.t }
func (c *fakeClock) Sleep(d time.Duration) { c.t = c.t.Add(d) }

type stackRecorder struct {
	mu     sync.Mutex
	stacks [][]string
}

func (r *stackRecorder) Notify(kind string, data any) {
	if kind != "scene_stack" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stacks = append(r.stacks, data.([]string))
}

func (r *stackRecorder) saw(names ...string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
outer:
	for _, s := range r.stacks {
		if len(s) != len(names) {
			continue
		}
		for i := range s {
			if s[i] != names[i] {
				continue outer
			}
		}
		return true
	}
	return false
}

// quitScene quits the process on its first frame.
type quitScene struct {
	scene.Base
	ran bool
}

func (q *quitScene) Update(rt *scene.Runtime) error {
	q.ran = true
	rt.Quit()
	return nil
}

type harness struct {
	engine   *scene.Engine
	events   chan input.Event
	flags    *lifecycle.Flags
	settings *settings.Store
	stacks   *stackRecorder
	clock    *fakeClock
}

func newHarness(t *testing.T, m *input.Manager) *harness {
	t.Helper()
	h := &harness{
		events:   make(chan input.Event, 32),
		flags:    lifecycle.New(),
		settings: settings.New(settings.Values{Brightness: 0.5, TargetFPS: 60, LockFPS: true}),
		stacks:   &stackRecorder{},
		clock:    &fakeClock{t: time.Unix(1_700_000_000, 0)},
	}
	e, err := scene.New(scene.Options{
		Display:   display.NewCanvas(192, 64, nil),
		Input:     m,
		Settings:  h.settings,
		Flags:     h.flags,
		Logger:    discard,
		Notifier:  h.stacks,
		Events:    h.events,
		MainMenu:  NewMainMenu,
		PauseMenu: NewOptionsMenu,
		Now:       h.clock.Now,
		Sleep:     h.clock.Sleep,
	})
	if err != nil {
		t.Fatalf("scene.New: %v", err)
	}
	h.engine = e
	return h
}

func (h *harness) send(evs ...input.Event) {
	for _, ev := range evs {
		h.events <- ev
	}
}

func (h *harness) run(t *testing.T, first scene.Scene) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- h.engine.Run(context.Background(), first) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("engine did not stop")
	}
}

func press(dev string, b input.Button) input.ButtonEvent {
	return input.ButtonEvent{Device: dev, Button: b, Pressed: true}
}

func release(dev string, b input.Button) input.ButtonEvent {
	return input.ButtonEvent{Device: dev, Button: b}
}

func stick(a input.Axis, v int16) input.AxisEvent {
	return input.AxisEvent{Device: "test", Axis: a, Value: v}
}

var (
	down  = stick(input.AxisVertical, input.AxisMax)
	up    = stick(input.AxisVertical, -input.AxisMax)
	right = stick(input.AxisHorizontal, input.AxisMax)
	left  = stick(input.AxisHorizontal, -input.AxisMax)
)

func newManager(t *testing.T) *input.Manager {
	t.Helper()
	m, err := input.NewManager(input.ManagerOptions{
		Logger: discard,
		Exists: func(string) bool { return false },
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func runtimeFor(m *input.Manager) *scene.Runtime {
	return &scene.Runtime{
		Display:  display.NewCanvas(192, 64, nil),
		Input:    m,
		Settings: settings.New(settings.Values{Brightness: 0.5}),
		Flags:    lifecycle.New(),
		Logger:   discard,
	}
}

// ============================================================================
// Intro
// ============================================================================

func TestIntro_FadesThenHandsOver(t *testing.T) {
	h := newHarness(t, nil)
	next := &quitScene{}
	intro := NewIntro(func() scene.Scene { return next })

	start := h.clock.Now()
	h.run(t, intro)

	if !next.ran {
		t.Fatalf("next scene never ran")
	}
	if played := h.clock.Now().Sub(start); played < 2500*time.Millisecond {
		t.Fatalf("intro ended after %v, want the full fade", played)
	}
	if intro.level != 0 {
		t.Fatalf("title level = %v at hand-over, want faded out", intro.level)
	}
}

func TestIntro_AnyButtonSkips(t *testing.T) {
	h := newHarness(t, nil)
	next := &quitScene{}
	intro := NewIntro(func() scene.Scene { return next })

	h.send(press("test", input.ButtonX))
	h.run(t, intro)

	if !next.ran {
		t.Fatalf("next scene never ran")
	}
	if intro.FrameCount() != 0 {
		t.Fatalf("intro drew %d frames after skip", intro.FrameCount())
	}
}

// ============================================================================
// Main menu and options
// ============================================================================

func TestMainMenu_QuitFromMainPage(t *testing.T) {
	h := newHarness(t, nil)
	h.send(up, press("test", input.ButtonA))
	h.run(t, NewMainMenu())

	if !h.flags.Closing() {
		t.Fatalf("quit did not close the process")
	}
}

func TestOptions_QuitFromMainMenuQuitsProcess(t *testing.T) {
	h := newHarness(t, nil)
	// options -> pause menu -> wrap up to quit -> press.
	h.send(down, press("test", input.ButtonA), up, press("test", input.ButtonA))
	h.run(t, NewMainMenu())

	if !h.stacks.saw(MainMenuName, "Options Menu") {
		t.Fatalf("options menu was not nested: %v", h.stacks.stacks)
	}
	if !h.flags.Closing() {
		t.Fatalf("quit from the main menu's options did not close the process")
	}
}

func TestOptions_QuitElsewhereReturnsToMainMenu(t *testing.T) {
	h := newHarness(t, nil)
	h.send(
		press("test", input.ButtonStart), // pause the tester
		up, press("test", input.ButtonA), // options: quit
		up, press("test", input.ButtonA), // fresh main menu: quit
	)
	h.run(t, NewInputTester())

	if !h.stacks.saw("Input Tester", "Options Menu") {
		t.Fatalf("tester was not paused: %v", h.stacks.stacks)
	}
	if !h.stacks.saw(MainMenuName) {
		t.Fatalf("did not return to the main menu: %v", h.stacks.stacks)
	}
}

func TestOptions_StartDoesNotNestAndBCloses(t *testing.T) {
	h := newHarness(t, nil)
	h.send(
		down, press("test", input.ButtonA), // main menu: options
		press("test", input.ButtonStart),   // ignored by the pause menu
		press("test", input.ButtonB),       // close the pause menu
		down, press("test", input.ButtonA), // main menu: quit
	)
	h.run(t, NewMainMenu())

	for _, s := range h.stacks.stacks {
		if len(s) > 2 {
			t.Fatalf("pause menu nested into itself: %v", s)
		}
	}
	if !h.flags.Closing() {
		t.Fatalf("main menu did not get input back after the pause menu closed")
	}
}

func TestOptions_AdjustsBrightnessAndFPS(t *testing.T) {
	rt := runtimeFor(nil)
	o := NewOptionsMenu(&quitScene{}).(*OptionsMenu)
	if err := o.Setup(rt); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	o.OnAxisChanged(down)
	o.OnAxisChanged(down)
	o.OnAxisChanged(right)
	if got := rt.Settings.Brightness(); got != 0.55 {
		t.Fatalf("brightness = %v, want 0.55", got)
	}
	for range 30 {
		o.OnAxisChanged(left)
	}
	if got := rt.Settings.Brightness(); got != settings.MinBrightness {
		t.Fatalf("brightness = %v, want clamp at %v", got, settings.MinBrightness)
	}
	if got := o.CurrentPage().Selected().Text(); got != "brightness 10%" {
		t.Fatalf("label = %q", got)
	}

	o.OnAxisChanged(down)
	o.OnButtonDown(press("test", input.ButtonA))
	if !rt.Settings.ShowFPS() {
		t.Fatalf("show fps not toggled")
	}
	if o.Closing() {
		t.Fatalf("toggling closed the menu")
	}
}

func TestOptions_ControlsPageBackThenClose(t *testing.T) {
	rt := runtimeFor(nil)
	o := NewOptionsMenu(&quitScene{}).(*OptionsMenu)
	if err := o.Setup(rt); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	o.OnAxisChanged(down)
	o.OnButtonDown(press("test", input.ButtonA))
	if o.CurrentPage().Name != "controls" {
		t.Fatalf("page = %q, want controls", o.CurrentPage().Name)
	}
	o.OnButtonDown(press("test", input.ButtonB))
	if o.Closing() || o.CurrentPage() != o.MainPage() {
		t.Fatalf("B on the controls page should go back, not close")
	}
	o.OnButtonDown(press("test", input.ButtonB))
	if !o.Closing() {
		t.Fatalf("B on the main page should close")
	}
	if rt.Flags.Closing() {
		t.Fatalf("closing the menu quit the process")
	}
}

// ============================================================================
// Controller assignment and input tester
// ============================================================================

func TestControllerAssignment_ClearsThenAssigns(t *testing.T) {
	m := newManager(t)
	kb := input.NewKeyboard(nil, discard)
	remote := input.NewRemote(discard)
	m.AddDevice(kb)
	m.AddDevice(remote)
	m.SetDeviceForPlayer(input.PlayerOne, remote)

	rt := runtimeFor(m)
	c := NewControllerAssignment()
	if err := c.Setup(rt); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if m.NextUnassignedPlayer() != input.PlayerOne {
		t.Fatalf("Setup left slots assigned: %v", m.Slots())
	}

	c.OnButtonDown(press(input.KeyboardID, input.ButtonA))
	c.OnButtonDown(press(input.KeyboardID, input.ButtonB))
	c.OnButtonDown(press(input.RemoteID, input.ButtonX))
	c.OnButtonDown(press("ghost", input.ButtonX))

	want := [input.MaxPlayers]string{input.KeyboardID, input.RemoteID, "", ""}
	if got := m.Slots(); got != want {
		t.Fatalf("slots = %v, want %v", got, want)
	}

	if err := c.Update(rt); err != nil {
		t.Fatalf("Update: %v", err)
	}
	c.OnButtonDown(press(input.KeyboardID, input.ButtonSelect))
	if !c.Closing() {
		t.Fatalf("select did not close")
	}
	if m.Slots() != want {
		t.Fatalf("select changed the slots")
	}
}

func TestInputTester_RecordsPerSlot(t *testing.T) {
	m := newManager(t)
	kb := input.NewKeyboard(nil, discard)
	m.SetDeviceForPlayer(input.PlayerTwo, kb)

	rt := runtimeFor(m)
	tester := NewInputTester()
	if err := tester.Setup(rt); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	tester.OnButtonDown(press(input.KeyboardID, input.ButtonA))
	tester.OnAxisChanged(input.AxisEvent{Device: "/dev/input/js3", Axis: input.AxisHorizontal, Value: -12})
	tester.OnButtonUp(release(input.KeyboardID, input.ButtonY))

	if got := tester.LastInput(1); got != "keyboard y up" {
		t.Fatalf("player two row = %q", got)
	}
	if got := tester.LastInput(input.MaxPlayers); got != "/dev/input/js3 horizontal -12" {
		t.Fatalf("unassigned row = %q", got)
	}
	if tester.LastInput(0) != "" {
		t.Fatalf("player one row should be empty")
	}
	if err := tester.Update(rt); err != nil {
		t.Fatalf("Update: %v", err)
	}

	tester.OnButtonDown(press(input.KeyboardID, input.ButtonSelect))
	if !tester.Closing() || tester.Next() == nil || tester.Next().Name() != MainMenuName {
		t.Fatalf("select should close the tester towards the main menu")
	}
}
