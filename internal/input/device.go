// Package input owns the controllers: the joystick reader, the keyboard and
// remote devices, and the Manager that assigns devices to player slots and
// fans their events in.
package input

import (
	"errors"
	"log/slog"
	"sync"
)

var (
	// ErrDeviceUnavailable is returned when a device node is missing or cannot be opened.
	ErrDeviceUnavailable = errors.New("input device unavailable")
	// ErrDeviceRead wraps I/O failures of a running reader.
	ErrDeviceRead = errors.New("input device read failed")
	// ErrDeviceClosed is returned when pushing into a closed device.
	ErrDeviceClosed = errors.New("input device closed")
	// ErrQueueFull is returned when a device queue cannot take another event.
	ErrQueueFull = errors.New("input device queue full")
)

// Device is one physical or virtual controller.
//
// Events is closed when the device stops producing (closed or failed).
type Device interface {
	ID() string
	Events() <-chan Event
	Close() error
}

// defaultQueueSize is the per-device event buffer.
const defaultQueueSize = 64

// queue is the non-blocking event buffer shared by devices that are fed from
// callbacks (keyboard, remote) rather than from their own reader goroutine.
type queue struct {
	id     string
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	events chan Event
}

func newQueue(id string, size int, logger *slog.Logger) *queue {
	if size <= 0 {
		size = defaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &queue{
		id:     id,
		logger: logger,
		events: make(chan Event, size),
	}
}

func (q *queue) ID() string { return q.id }

func (q *queue) Events() <-chan Event { return q.events }

// push enqueues ev without blocking. The caller's thread is a UI callback or a
// socket handler, neither of which may stall on a slow consumer.
func (q *queue) push(ev Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrDeviceClosed
	}
	select {
	case q.events <- ev:
		return nil
	default:
		q.logger.Warn("input queue full, dropping event", "device", q.id)
		return ErrQueueFull
	}
}

func (q *queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.events)
	}
	return nil
}
