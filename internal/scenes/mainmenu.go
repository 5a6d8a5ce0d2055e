package scenes

import (
	"zed/internal/scene"
)

// MainMenuName is the name every main menu carries. The options menu and the
// engine use it to recognise the root of the experience.
const MainMenuName = "Main Menu"

const menuStars = 24

// MainMenu is the root scene. Start opens the scene list, options opens the
// pause menu and quit ends the process.
type MainMenu struct {
	scene.Menu

	stars *starField
}

// NewMainMenu returns a main menu. It satisfies the engine's main menu
// factory signature.
func NewMainMenu() scene.Scene {
	m := &MainMenu{}
	m.SetName(MainMenuName)
	return m
}

func (m *MainMenu) Setup(rt *scene.Runtime) error {
	m.stars = newStarField(rt.Display.Width(), rt.Display.Height(), menuStars)

	main := scene.NewPage("main", "- main menu -")
	scenes := scene.NewPage("scenes", "- scenes -")

	main.Add(&scene.Option{Label: "start", OnPress: func() { m.GotoPage(scenes) }})
	main.Add(&scene.Option{Label: "options", OnPress: m.Pause})
	main.Add(&scene.Option{Label: "quit", OnPress: func() {
		rt.Quit()
		m.Close()
	}})

	scenes.Add(&scene.Option{Label: "input tester", OnPress: func() {
		m.SetNext(NewInputTester())
		m.Close()
	}})
	scenes.Add(&scene.Option{Label: "assign controllers", OnPress: func() {
		m.RunNested(NewControllerAssignment())
	}})
	scenes.Add(&scene.Option{Label: "back", OnPress: func() { m.GotoPage(main) }})

	m.AddPage(main)
	m.AddPage(scenes)
	return nil
}

func (m *MainMenu) Update(rt *scene.Runtime) error {
	d := rt.Display
	d.Clear()
	m.stars.Draw(d, m.FrameCount())
	m.DrawPage(d)
	return nil
}
