package scenes

import (
	"fmt"
	"image/color"

	"zed/internal/display"
	"zed/internal/input"
	"zed/internal/scene"
)

// ControllerAssignment lets players claim slots by pressing any button.
// Select finishes.
type ControllerAssignment struct {
	scene.Base

	rt    *scene.Runtime
	stars *starField
}

func NewControllerAssignment() *ControllerAssignment {
	c := &ControllerAssignment{}
	c.SetName("Controller Assignment")
	return c
}

// Setup empties every player slot.
func (c *ControllerAssignment) Setup(rt *scene.Runtime) error {
	c.rt = rt
	c.stars = newStarField(rt.Display.Width(), rt.Display.Height(), menuStars)
	if rt.Input == nil {
		rt.Logger.Warn("no input manager, controllers cannot be assigned")
		return nil
	}
	for id := input.PlayerOne; id <= input.PlayerFour; id++ {
		rt.Input.SetDeviceForPlayer(id, nil)
	}
	return nil
}

func (c *ControllerAssignment) OnButtonDown(ev input.ButtonEvent) {
	if ev.Button == input.ButtonSelect {
		c.Close()
		return
	}
	m := c.rt.Input
	if m == nil {
		return
	}
	dev := m.Device(ev.Device)
	if dev == nil {
		c.rt.Logger.Debug("button from untracked device", "device", ev.Device)
		return
	}
	if m.PlayerForDevice(dev) != input.PlayerNone {
		return
	}
	if id := m.NextUnassignedPlayer(); id != input.PlayerNone {
		m.SetDeviceForPlayer(id, dev)
	}
}

const slotSize = 14

func (c *ControllerAssignment) Update(rt *scene.Runtime) error {
	d := rt.Display
	d.Clear()
	c.stars.Draw(d, c.FrameCount())

	hue := int(c.FrameCount() / 10)
	drawCentred(d, 11, hsv(hue+180, 1), "- assign controllers -")
	drawCentred(d, 23, hsv(hue, 0.8), "press any button")
	drawCentred(d, 35, hsv(hue, 0.8), "select to finish")

	var slots [input.MaxPlayers]string
	if rt.Input != nil {
		slots = rt.Input.Slots()
	}
	c.drawSlots(d, slots)
	return nil
}

// drawSlots draws one box per player along the bottom edge, filled when the
// slot holds a device.
func (c *ControllerAssignment) drawSlots(d display.Display, slots [input.MaxPlayers]string) {
	const gap = 4
	total := len(slots)*slotSize + (len(slots)-1)*gap
	x := (d.Width() - total) / 2
	y := d.Height() - slotSize - 2
	for i, id := range slots {
		col := hsv(i*90, 1)
		if id != "" {
			d.DrawRect(x, y, slotSize, slotSize, col)
		} else {
			d.DrawBox(x, y, slotSize, slotSize, col)
			label := fmt.Sprint(i + 1)
			w, h := d.MeasureText(label)
			d.DrawText(x+(slotSize-w)/2, y+(slotSize+h)/2, display.Gray, label)
		}
		x += slotSize + gap
	}
}

func drawCentred(d display.Display, baseline int, c color.Color, s string) {
	w, _ := d.MeasureText(s)
	d.DrawText((d.Width()-w)/2, baseline, c, s)
}
