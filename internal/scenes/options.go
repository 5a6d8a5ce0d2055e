package scenes

import (
	"fmt"

	"zed/internal/input"
	"zed/internal/scene"
	"zed/internal/settings"
)

// OptionsMenu is the pause menu. It is opened on top of the scene that was
// paused and is never pausable itself.
type OptionsMenu struct {
	scene.Menu

	from  scene.Scene
	rt    *scene.Runtime
	stars *starField
}

// NewOptionsMenu returns the pause menu for from. It satisfies the engine's
// pause menu factory signature.
func NewOptionsMenu(from scene.Scene) scene.Scene {
	o := &OptionsMenu{from: from}
	o.SetName("Options Menu")
	o.SetPausable(false)
	return o
}

func (o *OptionsMenu) Setup(rt *scene.Runtime) error {
	o.rt = rt
	o.stars = newStarField(rt.Display.Width(), rt.Display.Height(), menuStars)

	options := scene.NewPage("options", "- options -")
	controls := scene.NewPage("controls", "- controls -")

	options.Add(&scene.Option{Label: "resume", OnPress: o.close})
	options.Add(&scene.Option{Label: "controls", OnPress: func() { o.GotoPage(controls) }})
	options.Add(&scene.Option{
		LabelFunc: func() string {
			return fmt.Sprintf("brightness %d%%", int(rt.Settings.Brightness()*100+0.5))
		},
		OnLeft:  func() { rt.Settings.AdjustBrightness(-settings.BrightnessStep) },
		OnRight: func() { rt.Settings.AdjustBrightness(settings.BrightnessStep) },
	})
	options.Add(&scene.Option{
		LabelFunc: func() string {
			if rt.Settings.ShowFPS() {
				return "show fps: on"
			}
			return "show fps: off"
		},
		OnPress: func() { rt.Settings.ToggleShowFPS() },
	})
	options.Add(&scene.Option{Label: "quit", OnPress: o.quit})

	controls.Add(&scene.Option{Label: "assign controllers", OnPress: func() {
		o.RunNested(NewControllerAssignment())
	}})
	controls.Add(&scene.Option{Label: "back", OnPress: func() { o.GotoPage(options) }})

	o.AddPage(options)
	o.AddPage(controls)
	return nil
}

// quit ends the process when the menu was opened from the main menu and
// returns to the main menu otherwise.
func (o *OptionsMenu) quit() {
	if o.from != nil && o.from.Name() == MainMenuName {
		o.rt.Quit()
	} else {
		o.rt.ReturnToMainMenu()
	}
	o.close()
}

func (o *OptionsMenu) close() {
	if err := o.rt.Settings.Save(); err != nil {
		o.rt.Logger.Warn("failed to save settings", "error", err)
	}
	o.Close()
}

// OnButtonDown closes the menu on B from the main page. Everywhere else B
// goes back a page.
func (o *OptionsMenu) OnButtonDown(ev input.ButtonEvent) {
	if ev.Button == input.ButtonB && o.CurrentPage() == o.MainPage() {
		o.close()
		return
	}
	o.Menu.OnButtonDown(ev)
}

func (o *OptionsMenu) Update(rt *scene.Runtime) error {
	d := rt.Display
	d.Clear()
	o.stars.Draw(d, o.FrameCount())
	o.DrawPage(d)
	return nil
}
