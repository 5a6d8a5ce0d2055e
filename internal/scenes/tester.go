package scenes

import (
	"fmt"

	"zed/internal/display"
	"zed/internal/input"
	"zed/internal/scene"
)

// InputTester shows the last input seen from each player slot. Devices that
// hold no slot share the last row. Select leaves for the main menu.
type InputTester struct {
	scene.Base

	rt   *scene.Runtime
	last [input.MaxPlayers + 1]string
}

func NewInputTester() *InputTester {
	t := &InputTester{}
	t.SetName("Input Tester")
	return t
}

func (t *InputTester) Setup(rt *scene.Runtime) error {
	t.rt = rt
	t.SetNext(NewMainMenu())
	return nil
}

// row maps a device to its display row: the player slot, or the shared row
// for unassigned devices.
func (t *InputTester) row(device string) int {
	if m := t.rt.Input; m != nil {
		if d := m.Device(device); d != nil {
			if id := m.PlayerForDevice(d); id != input.PlayerNone {
				return int(id) - 1
			}
		}
	}
	return input.MaxPlayers
}

// LastInput returns the description shown on row i.
func (t *InputTester) LastInput(i int) string {
	if i < 0 || i >= len(t.last) {
		return ""
	}
	return t.last[i]
}

func (t *InputTester) OnButtonDown(ev input.ButtonEvent) {
	t.last[t.row(ev.Device)] = fmt.Sprintf("%s %s down", ev.Device, ev.Button)
	if ev.Button == input.ButtonSelect {
		t.Close()
		return
	}
	t.Base.OnButtonDown(ev)
}

func (t *InputTester) OnButtonUp(ev input.ButtonEvent) {
	t.last[t.row(ev.Device)] = fmt.Sprintf("%s %s up", ev.Device, ev.Button)
}

func (t *InputTester) OnAxisChanged(ev input.AxisEvent) {
	t.last[t.row(ev.Device)] = fmt.Sprintf("%s %s %d", ev.Device, ev.Axis, ev.Value)
}

const testerLineHeight = 12

func (t *InputTester) Update(rt *scene.Runtime) error {
	d := rt.Display
	d.Clear()

	y := 11
	for i, s := range t.last {
		label := "--"
		if i < input.MaxPlayers {
			label = fmt.Sprintf("P%d", i+1)
		}
		d.DrawText(1, y, hsv(i*90, 1), label)
		if s != "" {
			d.DrawText(22, y, display.White, s)
		}
		y += testerLineHeight
	}
	return nil
}
