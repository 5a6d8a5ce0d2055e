// Package scene runs scenes: one phase of the experience at a time, with
// its own setup, per-frame update and teardown, on a single render goroutine.
//
// Scenes embed Base and override the hooks they care about. The Engine keeps
// the active scenes on an explicit stack: pausing or calling RunNested pushes
// a child that owns input and the display until it closes, then the parent
// resumes where it left off.
package scene

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"zed/internal/display"
	"zed/internal/input"
	"zed/internal/lifecycle"
	"zed/internal/settings"
)

// Scene is the contract between a scene and the Engine.
type Scene interface {
	Name() string
	Pausable() bool

	// Setup runs once before the first frame.
	Setup(rt *Runtime) error
	// Update runs once per frame, before the engine's own overlay and Present.
	Update(rt *Runtime) error

	OnButtonDown(ev input.ButtonEvent)
	OnButtonUp(ev input.ButtonEvent)
	OnAxisChanged(ev input.AxisEvent)
	// OnNestedSceneClosed runs when a child pushed by this scene has finished.
	OnNestedSceneClosed() error

	base() *Base
}

// Runtime is what a running scene can reach. It replaces process globals:
// there is exactly one per Engine.
type Runtime struct {
	Display  display.Display
	Input    *input.Manager // nil when running without devices
	Settings *settings.Store
	Flags    *lifecycle.Flags
	Logger   *slog.Logger

	engine *Engine
}

// Quit asks the whole application to shut down.
func (rt *Runtime) Quit() {
	rt.Logger.Info("quit requested")
	rt.Flags.Close()
}

// ReturnToMainMenu closes every running scene and starts a fresh main menu.
func (rt *Runtime) ReturnToMainMenu() {
	if rt.engine != nil {
		rt.engine.toMainMenu.Store(true)
	}
}

// InvariantViolation is the panic value for programming errors. The engine
// never absorbs it.
type InvariantViolation struct {
	Msg string
}

func (v InvariantViolation) Error() string { return "invariant violation: " + v.Msg }

// SceneError reports a failure in a scene's Setup or Update.
type SceneError struct {
	Scene string
	Phase string
	Err   error
}

func (e *SceneError) Error() string {
	return fmt.Sprintf("scene %q failed in %s: %v", e.Scene, e.Phase, e.Err)
}

func (e *SceneError) Unwrap() error { return e.Err }

// ============================================================================
// Base
// ============================================================================

const unnamed = "Unknown Scene"

// Base carries the lifecycle state every scene shares. Embed it by value.
//
// Pause and Close may be called from any goroutine; everything else is
// called on the render goroutine.
type Base struct {
	name        string
	notPausable bool
	next        Scene
	nested      Scene
	rt          *Runtime
	frameCount  uint64
	lastFrame   time.Duration
	clock       stopwatch // total elapsed since Setup, frozen while suspended
	frameClock  stopwatch // time since the previous Draw
	workStart   time.Time
	menuOpen    bool // the nested scene is the pause menu

	mu      sync.Mutex
	paused  bool
	closing bool
}

func (b *Base) base() *Base { return b }

func (b *Base) SetName(name string) { b.name = name }

func (b *Base) Name() string {
	if b.name == "" {
		return unnamed
	}
	return b.name
}

// SetPausable controls whether Start opens the pause menu. Scenes are
// pausable by default.
func (b *Base) SetPausable(p bool) { b.notPausable = !p }

func (b *Base) Pausable() bool { return !b.notPausable }

// SetNext sets the scene that replaces this one when it closes.
func (b *Base) SetNext(s Scene) { b.next = s }

func (b *Base) Next() Scene { return b.next }

// Runtime returns the runtime the scene was started with.
func (b *Base) Runtime() *Runtime { return b.rt }

func (b *Base) FrameCount() uint64 { return b.frameCount }

// Elapsed is the running time since Setup, excluding time spent suspended
// under a nested scene.
func (b *Base) Elapsed() time.Duration { return b.clock.Elapsed() }

// LastFrame is the duration of the previous frame.
func (b *Base) LastFrame() time.Duration { return b.lastFrame }

// Pause requests the pause menu. It is a no-op when the scene is not
// pausable or is already paused.
func (b *Base) Pause() {
	if !b.Pausable() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paused = true
}

func (b *Base) Paused() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.paused
}

// Close ends the scene after the current frame. Repeated calls are harmless.
func (b *Base) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closing = true
}

func (b *Base) Closing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closing
}

// RunNested requests that s run on top of this scene starting with the next
// frame. The request is ignored while another one is pending.
func (b *Base) RunNested(s Scene) {
	if b.nested == nil {
		b.nested = s
	}
}

// Default hooks.

func (b *Base) Setup(*Runtime) error  { return nil }
func (b *Base) Update(*Runtime) error { return nil }

// OnButtonDown opens the pause menu on Start.
func (b *Base) OnButtonDown(ev input.ButtonEvent) {
	if ev.Button == input.ButtonStart {
		b.Pause()
	}
}

func (b *Base) OnButtonUp(input.ButtonEvent)  {}
func (b *Base) OnAxisChanged(input.AxisEvent) {}
func (b *Base) OnNestedSceneClosed() error    { return nil }

// interrupted reports whether input should stop flowing to this scene for the
// rest of the frame.
func (b *Base) interrupted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closing || b.paused || b.nested != nil
}

func (b *Base) attach(rt *Runtime, now func() time.Time) {
	b.rt = rt
	b.clock = stopwatch{now: now}
	b.frameClock = stopwatch{now: now}
	b.clock.Start()
	b.frameClock.Start()
	b.workStart = now()

	if rt.Flags != nil && rt.Flags.Closing() {
		b.Close()
	}
}

func (b *Base) suspend() {
	b.clock.Stop()
	b.frameClock.Stop()
}

// resume restarts the clocks after a nested scene returns. A pause request
// survives any nested scene other than the pause menu itself.
func (b *Base) resume() {
	if b.menuOpen {
		b.menuOpen = false
		b.unpause()
	}
	b.clock.Start()
	b.frameClock.Start()
	b.workStart = b.clock.now()
}

func (b *Base) unpause() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paused = false
}

// ============================================================================
// stopwatch
// ============================================================================

type stopwatch struct {
	now     func() time.Time
	running bool
	started time.Time
	acc     time.Duration
}

func (s *stopwatch) Start() {
	if s.running {
		return
	}
	s.running = true
	s.started = s.now()
}

func (s *stopwatch) Stop() {
	if !s.running {
		return
	}
	s.acc += s.now().Sub(s.started)
	s.running = false
}

func (s *stopwatch) Elapsed() time.Duration {
	if s.running {
		return s.acc + s.now().Sub(s.started)
	}
	return s.acc
}

// Restart returns the elapsed time and starts counting again from zero.
func (s *stopwatch) Restart() time.Duration {
	d := s.Elapsed()
	s.acc = 0
	s.running = true
	s.started = s.now()
	return d
}
