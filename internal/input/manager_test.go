package input

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeDevice is a Device whose events are fed by the test.
type fakeDevice struct {
	*queue
}

func newFakeDevice(id string) *fakeDevice {
	return &fakeDevice{queue: newQueue(id, 16, nil)}
}

func newTestManager(t *testing.T, opts ManagerOptions) *Manager {
	t.Helper()
	m, err := NewManager(opts)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// waitUntil polls cond until it returns true or the timeout expires.
func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}

func TestManager_SingleInstance(t *testing.T) {
	m := newTestManager(t, ManagerOptions{})
	if _, err := NewManager(ManagerOptions{}); !errors.Is(err, ErrManagerExists) {
		t.Fatalf("second NewManager error = %v, want ErrManagerExists", err)
	}
	_ = m.Close()

	again, err := NewManager(ManagerOptions{})
	if err != nil {
		t.Fatalf("NewManager after Close: %v", err)
	}
	_ = again.Close()
}

func TestManager_ScanAssignsInPathOrder(t *testing.T) {
	present := map[string]bool{"/dev/input/js0": true, "/dev/input/js1": true}
	var opened []string

	m := newTestManager(t, ManagerOptions{
		Exists: func(p string) bool { return present[p] },
		Open: func(p string) (Device, error) {
			opened = append(opened, p)
			return newFakeDevice(p), nil
		},
	})

	m.Scan()

	if got := m.DeviceForPlayer(PlayerOne); got == nil || got.ID() != "/dev/input/js0" {
		t.Fatalf("player one = %v, want js0", got)
	}
	if got := m.DeviceForPlayer(PlayerTwo); got == nil || got.ID() != "/dev/input/js1" {
		t.Fatalf("player two = %v, want js1", got)
	}
	if m.NextUnassignedPlayer() != PlayerThree {
		t.Fatalf("next unassigned = %v, want player3", m.NextUnassignedPlayer())
	}

	// A second scan must not reopen tracked paths.
	m.Scan()
	if len(opened) != 2 {
		t.Fatalf("opened %v, want exactly js0 and js1 once", opened)
	}
}

func TestManager_ScanWithoutFreeSlotKeepsDeviceUnassigned(t *testing.T) {
	m := newTestManager(t, ManagerOptions{
		Exists: func(p string) bool { return p == "/dev/input/js2" },
		Open:   func(p string) (Device, error) { return newFakeDevice(p), nil },
	})
	for id := PlayerOne; id <= PlayerFour; id++ {
		m.SetDeviceForPlayer(id, newFakeDevice(fmt.Sprintf("other%d", id)))
	}

	m.Scan()

	d := m.Device("/dev/input/js2")
	if d == nil {
		t.Fatalf("js2 not tracked")
	}
	if got := m.PlayerForDevice(d); got != PlayerNone {
		t.Fatalf("js2 assigned to %v, want none", got)
	}
	if m.NextUnassignedPlayer() != PlayerNone {
		t.Fatalf("next unassigned = %v, want none", m.NextUnassignedPlayer())
	}
}

func TestManager_ScanRetriesFailedOpen(t *testing.T) {
	fail := true
	m := newTestManager(t, ManagerOptions{
		Exists: func(p string) bool { return p == "/dev/input/js0" },
		Open: func(p string) (Device, error) {
			if fail {
				return nil, ErrDeviceUnavailable
			}
			return newFakeDevice(p), nil
		},
	})

	m.Scan()
	if m.Device("/dev/input/js0") != nil {
		t.Fatalf("failed open should not be tracked")
	}
	fail = false
	m.Scan()
	if m.DeviceForPlayer(PlayerOne) == nil {
		t.Fatalf("js0 not assigned after retry")
	}
}

func TestManager_SlotInvariant(t *testing.T) {
	m := newTestManager(t, ManagerOptions{})
	a, b := newFakeDevice("a"), newFakeDevice("b")

	m.SetDeviceForPlayer(PlayerTwo, a)
	if got := m.PlayerForDevice(a); got != PlayerTwo {
		t.Fatalf("PlayerForDevice(a) = %v, want player2", got)
	}

	// Overwriting the slot drops a's mapping.
	m.SetDeviceForPlayer(PlayerTwo, b)
	if got := m.PlayerForDevice(a); got != PlayerNone {
		t.Fatalf("PlayerForDevice(a) after overwrite = %v, want none", got)
	}
	if got := m.PlayerForDevice(b); got != PlayerTwo {
		t.Fatalf("PlayerForDevice(b) = %v, want player2", got)
	}

	m.SetDeviceForPlayer(PlayerFour, a)
	want := [MaxPlayers]string{"", "b", "", "a"}
	if got := m.Slots(); got != want {
		t.Fatalf("Slots() = %v, want %v", got, want)
	}
	for id := PlayerOne; id <= PlayerFour; id++ {
		d := m.DeviceForPlayer(id)
		if (d == nil && want[id-1] != "") || (d != nil && d.ID() != want[id-1]) {
			t.Fatalf("DeviceForPlayer(%v) = %v, want %q", id, d, want[id-1])
		}
	}

	m.SetDeviceForPlayer(PlayerFour, nil)
	if got := m.PlayerForDevice(a); got != PlayerNone {
		t.Fatalf("PlayerForDevice(a) after clear = %v, want none", got)
	}
	if got := m.NextUnassignedPlayer(); got != PlayerOne {
		t.Fatalf("NextUnassignedPlayer() = %v, want player1", got)
	}

	// Invalid slots are ignored.
	m.SetDeviceForPlayer(PlayerNone, a)
	m.SetDeviceForPlayer(PlayerID(9), a)
	if m.DeviceForPlayer(PlayerNone) != nil {
		t.Fatalf("PlayerNone must never hold a device")
	}
}

func TestManager_DeviceMayHoldSeveralSlots(t *testing.T) {
	m := newTestManager(t, ManagerOptions{})
	d := newFakeDevice("pad")

	m.SetDeviceForPlayer(PlayerOne, d)
	m.SetDeviceForPlayer(PlayerThree, d)

	if m.DeviceForPlayer(PlayerOne) == nil || m.DeviceForPlayer(PlayerThree) == nil {
		t.Fatalf("device should occupy both slots: %v", m.Slots())
	}
	if got := m.PlayerForDevice(d); got != PlayerOne {
		t.Fatalf("PlayerForDevice = %v, want first matching slot player1", got)
	}
	if n := len(m.Devices()); n != 1 {
		t.Fatalf("tracked %d devices, want 1", n)
	}
}

func TestManager_RelaysToAllSubscribers(t *testing.T) {
	m := newTestManager(t, ManagerOptions{})
	s1, s2 := m.Subscribe(8), m.Subscribe(8)

	d := newFakeDevice("pad")
	m.SetDeviceForPlayer(PlayerOne, d)
	m.SetDeviceForPlayer(PlayerTwo, d) // tracked once, relayed once

	want := []Event{
		ButtonEvent{Device: "pad", Button: ButtonA, Pressed: true},
		AxisEvent{Device: "pad", Axis: AxisVertical, Value: 9},
		ButtonEvent{Device: "pad", Button: ButtonA, Pressed: false},
	}
	for _, ev := range want {
		if err := d.push(ev); err != nil {
			t.Fatalf("push: %v", err)
		}
	}

	for _, s := range []*Subscription{s1, s2} {
		for i, exp := range want {
			if got := expectEvent(t, s.Events()); got != exp {
				t.Fatalf("event %d = %#v, want %#v", i, got, exp)
			}
		}
		expectNoEvent(t, s.Events())
	}
}

func TestManager_SubscribeUnsubscribeWhilePublishing(t *testing.T) {
	m := newTestManager(t, ManagerOptions{})
	d := newFakeDevice("pad")
	m.AddDevice(d)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_ = d.push(AxisEvent{Device: "pad", Axis: AxisHorizontal, Value: 1})
			}
		}
	}()

	for i := 0; i < 200; i++ {
		s := m.Subscribe(1)
		s.Close()
		s.Close()
	}
	close(stop)
	wg.Wait()
}

func TestManager_CloseClosesDevicesAndSubscriptions(t *testing.T) {
	m := newTestManager(t, ManagerOptions{})
	s := m.Subscribe(4)
	d := newFakeDevice("pad")
	m.AddDevice(d)

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	waitUntil(t, time.Second, func() bool {
		_, ok := <-s.Events()
		return !ok
	}, "subscription not closed")
	if err := d.push(ButtonEvent{}); !errors.Is(err, ErrDeviceClosed) {
		t.Fatalf("device still open after manager Close: %v", err)
	}
}
