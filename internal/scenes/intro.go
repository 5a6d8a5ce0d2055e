package scenes

import (
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"

	"zed/internal/display"
	"zed/internal/input"
	"zed/internal/scene"
)

const introTitle = "ZED"

// Intro fades the title in, holds it, fades it out and hands over to the
// next scene. Any button skips it.
type Intro struct {
	scene.Base

	next  func() scene.Scene
	fade  *gween.Sequence
	level float32
}

// NewIntro returns an intro followed by the scene next builds.
func NewIntro(next func() scene.Scene) *Intro {
	i := &Intro{next: next}
	i.SetName("Intro")
	i.SetPausable(false)
	return i
}

func (i *Intro) Setup(*scene.Runtime) error {
	if i.next != nil {
		i.SetNext(i.next())
	}
	i.fade = gween.NewSequence()
	i.fade.Add(
		gween.New(0, 1, 0.8, ease.OutQuad),
		gween.New(1, 1, 1.2, ease.Linear),
		gween.New(1, 0, 0.8, ease.InQuad),
	)
	return nil
}

func (i *Intro) OnButtonDown(input.ButtonEvent) {
	i.Close()
}

func (i *Intro) Update(rt *scene.Runtime) error {
	v, _, done := i.fade.Update(float32(i.LastFrame().Seconds()))
	i.level = v
	if done {
		i.Close()
	}

	d := rt.Display
	d.Clear()
	i.drawTitles(d)
	return nil
}

// drawTitles tiles the title across the display, each copy a different hue.
func (i *Intro) drawTitles(d display.Display) {
	tw, th := d.MeasureText(introTitle)
	if tw == 0 || th == 0 {
		return
	}
	hue := int(i.FrameCount())
	for y := th; y < d.Height()+th; y += th + 2 {
		for x := 0; x < d.Width(); x += tw * 2 {
			d.DrawText(x, y, hsv(hue+x+2*y, float64(i.level)), introTitle)
		}
	}
}
