package input

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"zed/internal/lifecycle"
)

// ============================================================================
// Player slots
// ============================================================================

// PlayerID names a logical player. PlayerNone is the "no slot" sentinel.
type PlayerID int

const (
	PlayerNone PlayerID = iota
	PlayerOne
	PlayerTwo
	PlayerThree
	PlayerFour
)

// MaxPlayers is the number of player slots.
const MaxPlayers = 4

func (p PlayerID) String() string {
	if p < PlayerOne || p > PlayerFour {
		return "none"
	}
	return fmt.Sprintf("player%d", int(p))
}

// ErrManagerExists is returned by NewManager while another Manager is open.
var ErrManagerExists = errors.New("input manager already exists")

var managerActive atomic.Bool

// Notifier receives state changes for diagnostics.
type Notifier interface {
	Notify(kind string, data any)
}

// ManagerOptions configures NewManager.
type ManagerOptions struct {
	// PathTemplate is formatted with the joystick index, e.g. "/dev/input/js%d".
	PathTemplate string
	ScanInterval time.Duration
	Gamepad      GamepadOptions

	Logger   *slog.Logger
	Flags    *lifecycle.Flags
	Notifier Notifier

	// Open and Exists are replaced in tests. Defaults use the filesystem.
	Open   func(path string) (Device, error)
	Exists func(path string) bool
}

const (
	DefaultPathTemplate = "/dev/input/js%d"
	DefaultScanInterval = 2 * time.Second
)

// Subscription is one consumer of the aggregate event stream.
type Subscription struct {
	m  *Manager
	ch chan Event
}

// Events returns the subscription's channel. It is closed by Close or when
// the Manager closes.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Close detaches the subscription. Safe to call concurrently with publishing.
func (s *Subscription) Close() {
	s.m.subMu.Lock()
	defer s.m.subMu.Unlock()
	if _, ok := s.m.subs[s]; ok {
		delete(s.m.subs, s)
		close(s.ch)
	}
}

// Manager owns every input device, maps devices to player slots and relays
// device events to subscribers.
type Manager struct {
	opts   ManagerOptions
	logger *slog.Logger

	mu      sync.RWMutex
	devices []Device
	byID    map[string]Device
	slots   [MaxPlayers]Device

	subMu sync.Mutex
	subs  map[*Subscription]struct{}

	relays    sync.WaitGroup
	closeOnce sync.Once
}

// NewManager creates the process's input manager.
func NewManager(opts ManagerOptions) (*Manager, error) {
	if !managerActive.CompareAndSwap(false, true) {
		return nil, ErrManagerExists
	}
	if opts.PathTemplate == "" {
		opts.PathTemplate = DefaultPathTemplate
	}
	if opts.ScanInterval <= 0 {
		opts.ScanInterval = DefaultScanInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Gamepad.Logger == nil {
		opts.Gamepad.Logger = opts.Logger
	}
	if opts.Gamepad.Flags == nil {
		opts.Gamepad.Flags = opts.Flags
	}
	if opts.Exists == nil {
		opts.Exists = func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		}
	}
	if opts.Open == nil {
		gp := opts.Gamepad
		opts.Open = func(path string) (Device, error) {
			return OpenGamepad(path, gp)
		}
	}
	return &Manager{
		opts:   opts,
		logger: opts.Logger,
		byID:   make(map[string]Device),
		subs:   make(map[*Subscription]struct{}),
	}, nil
}

func (m *Manager) notify(kind string, data any) {
	if m.opts.Notifier != nil {
		m.opts.Notifier.Notify(kind, data)
	}
}

// NextUnassignedPlayer returns the first free slot, or PlayerNone.
func (m *Manager) NextUnassignedPlayer() PlayerID {
	return m.PlayerForDevice(nil)
}

// PlayerForDevice returns the first slot holding d. A nil d finds the first
// empty slot.
func (m *Manager) PlayerForDevice(d Device) PlayerID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i, slot := range m.slots {
		if sameDevice(slot, d) {
			return PlayerID(i + 1)
		}
	}
	return PlayerNone
}

func sameDevice(a, b Device) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID() == b.ID()
}

// DeviceForPlayer returns the device in slot id, or nil.
func (m *Manager) DeviceForPlayer(id PlayerID) Device {
	if id < PlayerOne || id > PlayerFour {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.slots[id-1]
}

// SetDeviceForPlayer puts d into slot id, replacing the previous occupant.
// A device already sitting in another slot keeps that slot too. A device the
// manager has never seen is tracked and relayed.
func (m *Manager) SetDeviceForPlayer(id PlayerID, d Device) {
	if id < PlayerOne || id > PlayerFour {
		m.logger.Warn("ignoring assignment to invalid player slot", "player", int(id))
		return
	}
	if d != nil {
		m.AddDevice(d)
	}

	m.mu.Lock()
	m.slots[id-1] = d
	m.mu.Unlock()

	if d != nil {
		m.logger.Info("assigned device to player", "player", id.String(), "device", d.ID())
	} else {
		m.logger.Debug("cleared player slot", "player", id.String())
	}
	m.notify("player_slots", m.Slots())
}

// Slots returns the device id in each slot ("" when empty).
func (m *Manager) Slots() [MaxPlayers]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids [MaxPlayers]string
	for i, d := range m.slots {
		if d != nil {
			ids[i] = d.ID()
		}
	}
	return ids
}

// Device returns the tracked device with the given id, or nil.
func (m *Manager) Device(id string) Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byID[id]
}

// Devices returns the tracked devices in the order they were added.
func (m *Manager) Devices() []Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Device, len(m.devices))
	copy(out, m.devices)
	return out
}

// AddDevice tracks d and starts relaying its events. It reports false if a
// device with the same id is already tracked.
func (m *Manager) AddDevice(d Device) bool {
	m.mu.Lock()
	if _, ok := m.byID[d.ID()]; ok {
		m.mu.Unlock()
		return false
	}
	m.devices = append(m.devices, d)
	m.byID[d.ID()] = d
	m.relays.Add(1)
	m.mu.Unlock()

	go m.relay(d)

	m.logger.Info("input device added", "device", d.ID())
	m.notify("device_added", map[string]string{"device": d.ID()})
	return true
}

func (m *Manager) tracked(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byID[id]
	return ok
}

// ============================================================================
// Fan-in
// ============================================================================

// Subscribe registers a consumer of every device's events. buf bounds the
// consumer's queue; events that do not fit are dropped.
func (m *Manager) Subscribe(buf int) *Subscription {
	if buf <= 0 {
		buf = defaultQueueSize
	}
	s := &Subscription{m: m, ch: make(chan Event, buf)}
	m.subMu.Lock()
	m.subs[s] = struct{}{}
	m.subMu.Unlock()
	return s
}

func (m *Manager) publish(ev Event) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for s := range m.subs {
		select {
		case s.ch <- ev:
		default:
			m.logger.Warn("subscriber queue full, dropping event", "device", ev.Source())
		}
	}
}

// relay forwards one device's events in order until the device stops.
func (m *Manager) relay(d Device) {
	defer m.relays.Done()
	for ev := range d.Events() {
		m.publish(ev)
	}
	m.logger.Debug("input relay stopped", "device", d.ID())
}

// ============================================================================
// Discovery
// ============================================================================

// Scan probes the joystick paths once and adds every new device. New devices
// take the first free player slot when there is one.
func (m *Manager) Scan() {
	for i := 0; i < MaxPlayers; i++ {
		path := fmt.Sprintf(m.opts.PathTemplate, i)
		if m.tracked(path) || !m.opts.Exists(path) {
			continue
		}

		dev, err := m.opts.Open(path)
		if err != nil {
			m.logger.Warn("failed to open joystick", "path", path, "error", err)
			continue
		}
		m.AddDevice(dev)

		if id := m.NextUnassignedPlayer(); id != PlayerNone {
			m.SetDeviceForPlayer(id, dev)
		} else {
			m.logger.Info("no free player slot, device left unassigned", "device", path)
		}
	}
}

// Run scans immediately, then on every ScanInterval tick and whenever the
// device directory reports a new joystick node. It returns when ctx is
// cancelled or the process starts closing.
func (m *Manager) Run(ctx context.Context) error {
	hotplug, err := watchHotplug(ctx, filepath.Dir(fmt.Sprintf(m.opts.PathTemplate, 0)))
	if err != nil {
		m.logger.Warn("hot-plug watch unavailable, relying on periodic scan", "error", err)
	}

	ticker := time.NewTicker(m.opts.ScanInterval)
	defer ticker.Stop()

	var done <-chan struct{}
	if m.opts.Flags != nil {
		done = m.opts.Flags.Done()
	}

	m.Scan()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-done:
			return nil
		case <-ticker.C:
			m.Scan()
		case _, ok := <-hotplug:
			if !ok {
				hotplug = nil
				continue
			}
			m.logger.Debug("joystick node appeared, scanning")
			m.Scan()
		}
	}
}

// Close closes every device and subscription and releases the process-wide
// manager slot.
func (m *Manager) Close() error {
	var errs []error
	m.closeOnce.Do(func() {
		for _, d := range m.Devices() {
			if err := d.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", d.ID(), err))
			}
		}

		waited := make(chan struct{})
		go func() {
			m.relays.Wait()
			close(waited)
		}()
		select {
		case <-waited:
		case <-time.After(closeWait):
			m.logger.Warn("input relays did not stop in time")
		}

		m.subMu.Lock()
		for s := range m.subs {
			delete(m.subs, s)
			close(s.ch)
		}
		m.subMu.Unlock()

		managerActive.Store(false)
	})
	return errors.Join(errs...)
}
