package scene

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"zed/internal/display"
	"zed/internal/input"
	"zed/internal/lifecycle"
	"zed/internal/settings"
)

// ============================================================================
// Engine - single owner of the render loop
// ============================================================================
// One goroutine runs Engine.Run. Device readers never call into scenes:
// their events land on one bounded channel that the engine drains at the
// start of every frame and dispatches to the scene on top of the stack.
//
//   push    parent suspended (clocks frozen, no input), child set up
//   frame   dispatch input -> Update -> overlay -> Present -> pace
//   pop     next scene takes the slot, or the parent resumes
// ============================================================================

// Notifier receives state changes for diagnostics.
type Notifier interface {
	Notify(kind string, data any)
}

// Options configures New.
type Options struct {
	Display  display.Display
	Input    *input.Manager
	Settings *settings.Store
	Flags    *lifecycle.Flags
	Logger   *slog.Logger
	Notifier Notifier

	// Events overrides the subscription taken from Input.
	Events <-chan input.Event

	// MainMenu builds the scene every failure falls back to. Required.
	MainMenu func() Scene
	// PauseMenu builds the scene pushed when parent is paused.
	PauseMenu func(parent Scene) Scene

	Now   func() time.Time
	Sleep func(time.Duration)
}

const (
	eventQueueSize    = 256
	maxEventsPerFrame = 64
)

type Engine struct {
	opts   Options
	rt     *Runtime
	logger *slog.Logger

	events <-chan input.Event
	sub    *input.Subscription

	mainMenuName string
	toMainMenu   atomic.Bool
	presentErr   bool

	mu    sync.Mutex
	stack []Scene
}

// New validates opts and builds an engine.
func New(opts Options) (*Engine, error) {
	if opts.Display == nil {
		return nil, errors.New("scene engine: display is required")
	}
	if opts.MainMenu == nil {
		return nil, errors.New("scene engine: main menu factory is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Flags == nil {
		opts.Flags = lifecycle.New()
	}
	if opts.Settings == nil {
		opts.Settings = settings.New(settings.Values{Brightness: 1, TargetFPS: 60, LockFPS: true})
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}

	e := &Engine{
		opts:         opts,
		logger:       opts.Logger,
		mainMenuName: opts.MainMenu().Name(),
	}
	e.rt = &Runtime{
		Display:  opts.Display,
		Input:    opts.Input,
		Settings: opts.Settings,
		Flags:    opts.Flags,
		Logger:   opts.Logger,
		engine:   e,
	}

	switch {
	case opts.Events != nil:
		e.events = opts.Events
	case opts.Input != nil:
		e.sub = opts.Input.Subscribe(eventQueueSize)
		e.events = e.sub.Events()
	}
	return e, nil
}

// Runtime returns the runtime handed to scenes.
func (e *Engine) Runtime() *Runtime { return e.rt }

// Stack returns the names of the running scenes, bottom first.
func (e *Engine) Stack() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, len(e.stack))
	for i, s := range e.stack {
		names[i] = s.Name()
	}
	return names
}

// Run runs first and whatever follows it until the stack is empty, ctx is
// cancelled or the process starts closing. It returns an error only when the
// main menu itself fails.
func (e *Engine) Run(ctx context.Context, first Scene) error {
	if e.sub != nil {
		defer e.sub.Close()
	}

	if err := e.contain(e.push(first)); err != nil {
		return err
	}

	for {
		top := e.top()
		if top == nil {
			e.logger.Info("no scene left to run")
			return nil
		}
		if ctx.Err() != nil || e.rt.Flags.Closing() {
			e.logger.Info("closing all scenes")
			e.unwind()
			return nil
		}
		if e.toMainMenu.CompareAndSwap(true, false) {
			e.logger.Info("returning to main menu")
			e.unwind()
			if err := e.contain(e.push(e.opts.MainMenu())); err != nil {
				return err
			}
			continue
		}

		var err error
		if top.base().Closing() {
			err = e.finish(top)
		} else {
			err = e.frame(top)
		}
		if err := e.contain(err); err != nil {
			return err
		}
	}
}

// contain applies the recovery policy to a scene failure: log it, then
// restart from a fresh main menu. A failing main menu is returned to the
// caller.
func (e *Engine) contain(err error) error {
	if err == nil {
		return nil
	}
	e.rt.Flags.SetError()
	if e.opts.Notifier != nil {
		e.opts.Notifier.Notify("error", map[string]string{"error": err.Error()})
	}

	var se *SceneError
	if !errors.As(err, &se) || se.Scene == e.mainMenuName {
		e.logger.Error("main menu failed", "error", err)
		e.unwind()
		return err
	}

	e.logger.Error("scene failed, falling back to main menu", "scene", se.Scene, "phase", se.Phase, "error", se.Err)
	e.unwind()
	return e.contain(e.push(e.opts.MainMenu()))
}

func (e *Engine) top() Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.stack) == 0 {
		return nil
	}
	return e.stack[len(e.stack)-1]
}

func (e *Engine) notifyStack() {
	if e.opts.Notifier != nil {
		e.opts.Notifier.Notify("scene_stack", e.Stack())
	}
}

// push suspends the current top and starts s above it.
func (e *Engine) push(s Scene) error {
	e.mu.Lock()
	if n := len(e.stack); n > 0 {
		e.stack[n-1].base().suspend()
	}
	e.stack = append(e.stack, s)
	e.mu.Unlock()
	return e.start(s)
}

func (e *Engine) start(s Scene) error {
	b := s.base()
	b.attach(e.rt, e.opts.Now)

	e.logger.Info("running scene", "scene", s.Name(), "depth", len(e.Stack()))
	e.notifyStack()

	if b.Closing() {
		return nil
	}
	return e.guard(s, "setup", func() error { return s.Setup(e.rt) })
}

// finish pops a closed scene. Its next scene, if any, takes the same slot;
// otherwise the scene below resumes.
func (e *Engine) finish(s Scene) error {
	b := s.base()
	e.mu.Lock()
	e.stack = e.stack[:len(e.stack)-1]
	e.mu.Unlock()

	e.logger.Info("exiting scene", "scene", s.Name(), "frames", b.FrameCount(), "elapsed", b.Elapsed().Round(time.Millisecond))

	if next := b.Next(); next != nil && !e.rt.Flags.Closing() {
		e.mu.Lock()
		e.stack = append(e.stack, next)
		e.mu.Unlock()
		return e.start(next)
	}

	e.notifyStack()
	parent := e.top()
	if parent == nil {
		return nil
	}
	parent.base().resume()
	e.logger.Debug("resuming scene", "scene", parent.Name())
	return e.guard(parent, "resume", parent.OnNestedSceneClosed)
}

// unwind closes every running scene, top first.
func (e *Engine) unwind() {
	e.mu.Lock()
	stack := e.stack
	e.stack = nil
	e.mu.Unlock()

	for i := len(stack) - 1; i >= 0; i-- {
		stack[i].base().Close()
		e.logger.Debug("closed scene", "scene", stack[i].Name())
	}
	if len(stack) > 0 {
		e.notifyStack()
	}
}

// guard runs one scene hook and turns an error or panic into a SceneError.
func (e *Engine) guard(s Scene, phase string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if iv, ok := r.(InvariantViolation); ok {
				panic(iv)
			}
			err = &SceneError{Scene: s.Name(), Phase: phase, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err := fn(); err != nil {
		return &SceneError{Scene: s.Name(), Phase: phase, Err: err}
	}
	return nil
}

// ============================================================================
// Frame
// ============================================================================

func (e *Engine) frame(s Scene) error {
	e.dispatch(s)
	if s.base().Closing() {
		return nil
	}
	if err := e.guard(s, "update", func() error { return s.Update(e.rt) }); err != nil {
		return err
	}
	return e.draw(s)
}

// dispatch delivers queued input to s. It stops as soon as s closes, pauses
// or asks for a nested scene so that the remaining events reach whichever
// scene is on top next frame.
func (e *Engine) dispatch(s Scene) {
	if e.events == nil {
		return
	}
	b := s.base()
	for i := 0; i < maxEventsPerFrame && !b.interrupted(); i++ {
		select {
		case ev, ok := <-e.events:
			if !ok {
				e.events = nil
				return
			}
			e.deliver(s, ev)
		default:
			return
		}
	}
}

// deliver calls one input hook. A panicking handler is logged and the event
// dropped; the loop carries on.
func (e *Engine) deliver(s Scene, ev input.Event) {
	defer func() {
		if r := recover(); r != nil {
			if iv, ok := r.(InvariantViolation); ok {
				panic(iv)
			}
			e.rt.Flags.SetError()
			e.logger.Error("scene input handler panicked", "scene", s.Name(), "device", ev.Source(), "panic", r)
		}
	}()

	switch ev := ev.(type) {
	case input.ButtonEvent:
		if ev.Pressed {
			s.OnButtonDown(ev)
		} else {
			s.OnButtonUp(ev)
		}
	case input.AxisEvent:
		s.OnAxisChanged(ev)
	}
}

// FrameDelay returns how long to sleep after a frame that took work to hit
// target frames per second.
func FrameDelay(target int, work time.Duration) time.Duration {
	if target <= 0 {
		return 0
	}
	d := time.Second/time.Duration(target) - work
	if d < 0 {
		return 0
	}
	return d
}

func (e *Engine) draw(s Scene) error {
	b := s.base()
	d := e.rt.Display

	b.lastFrame = b.frameClock.Restart()

	if e.rt.Settings.ShowFPS() {
		drawFPS(d, b)
	}
	if e.rt.Flags.ErrorOccurred() {
		drawErrorGlyph(d)
	}
	if err := d.Present(); err != nil {
		if !e.presentErr {
			e.logger.Warn("display present failed", "error", err)
		}
		e.presentErr = true
	} else {
		e.presentErr = false
	}

	var delay time.Duration
	if target, lock := e.rt.Settings.FrameRate(); lock {
		delay = FrameDelay(target, e.opts.Now().Sub(b.workStart))
	}

	if b.Paused() && b.nested == nil {
		var menu Scene
		if s.Pausable() && e.opts.PauseMenu != nil {
			menu = e.opts.PauseMenu(s)
		}
		if menu != nil {
			b.nested = menu
			b.menuOpen = true
		} else {
			b.unpause()
		}
	}
	nested := b.nested
	b.nested = nil

	if delay > 0 {
		e.opts.Sleep(delay)
	}
	b.frameCount++
	b.workStart = e.opts.Now()

	if nested != nil {
		return e.push(nested)
	}
	return nil
}

// drawFPS draws the frame counter in the top-left corner.
func drawFPS(d display.Display, b *Base) {
	fps := float64(b.FrameCount()) / math.Max(b.Elapsed().Seconds(), 1)
	text := fmt.Sprintf("%.0f", fps)
	w, h := d.MeasureText(text)
	d.DrawRect(1, 1, w+2, h+2, display.Black)
	d.DrawText(2, h+1, display.Green, text)
}

// drawErrorGlyph draws a red "!" tile in the top-right corner.
func drawErrorGlyph(d display.Display) {
	x := d.Width() - 6
	d.DrawRect(x, 1, 5, 9, display.Red)
	d.DrawLine(x+2, 2, x+2, 6, display.White)
	d.SetPixel(x+2, 8, display.White)
}
