// Package lifecycle holds the process-wide signals shared by the render loop,
// the device readers and the discovery loop.
package lifecycle

import (
	"sync"
	"sync/atomic"
)

// Flags carries the "closing" and "error occurred" signals.
//
// A single Flags value is created in main and handed to every component that
// needs it. The zero value is not usable; call New.
type Flags struct {
	closing atomic.Bool
	errored atomic.Bool

	once sync.Once
	done chan struct{}
}

func New() *Flags {
	return &Flags{done: make(chan struct{})}
}

// Close marks the process as shutting down. Safe to call repeatedly.
func (f *Flags) Close() {
	f.closing.Store(true)
	f.once.Do(func() { close(f.done) })
}

func (f *Flags) Closing() bool { return f.closing.Load() }

// Done is closed once Close has been called.
func (f *Flags) Done() <-chan struct{} { return f.done }

// SetError records that some component hit an unexpected failure. The flag is
// sticky until the process restarts.
func (f *Flags) SetError() { f.errored.Store(true) }

func (f *Flags) ErrorOccurred() bool { return f.errored.Load() }
