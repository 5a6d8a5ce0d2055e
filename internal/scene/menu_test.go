package scene

import (
	"strings"
	"testing"

	"zed/internal/display"
	"zed/internal/input"
)

func axis(a input.Axis, v int16) input.AxisEvent {
	return input.AxisEvent{Device: "test", Axis: a, Value: v}
}

func TestPage_SelectionWraps(t *testing.T) {
	p := NewPage("main", "", &Option{Label: "a"}, &Option{Label: "b"}, &Option{Label: "c"})

	p.SelectPrevious()
	if p.SelectedIndex() != 2 {
		t.Fatalf("previous from first = %d, want 2", p.SelectedIndex())
	}
	p.SelectNext()
	if p.SelectedIndex() != 0 {
		t.Fatalf("next from last = %d, want 0", p.SelectedIndex())
	}

	empty := NewPage("empty", "")
	empty.SelectNext()
	empty.SelectPrevious()
	if empty.Selected() != nil {
		t.Fatalf("empty page has a selection")
	}
}

func TestMenu_AxisMovesCursorAndAdjusts(t *testing.T) {
	var left, right int
	m := &Menu{}
	m.AddPage(NewPage("main", "Header",
		&Option{Label: "first"},
		&Option{Label: "second", OnLeft: func() { left++ }, OnRight: func() { right++ }},
	))

	m.OnAxisChanged(axis(input.AxisVertical, input.AxisMax))
	if m.CurrentPage().SelectedIndex() != 1 {
		t.Fatalf("down did not move the cursor")
	}
	m.OnAxisChanged(axis(input.AxisHorizontal, input.AxisMax))
	m.OnAxisChanged(axis(input.AxisHorizontal, -input.AxisMax))
	m.OnAxisChanged(axis(input.AxisHorizontal, 0))
	if left != 1 || right != 1 {
		t.Fatalf("left=%d right=%d, want 1 and 1", left, right)
	}

	m.OnAxisChanged(axis(input.AxisVertical, 0))
	if m.CurrentPage().SelectedIndex() != 1 {
		t.Fatalf("centred axis moved the cursor")
	}
	m.OnAxisChanged(axis(input.AxisVertical, -input.AxisMax))
	if m.CurrentPage().SelectedIndex() != 0 {
		t.Fatalf("up did not move the cursor")
	}
}

func TestMenu_PagesAndBack(t *testing.T) {
	m := &Menu{}
	main := m.AddPage(NewPage("main", ""))
	sub := m.AddPage(NewPage("sub", "", &Option{Label: "x"}, &Option{Label: "y"}))
	main.Add(&Option{Label: "go", OnPress: func() { m.GotoPage(sub) }})

	if m.MainPage() != main || m.CurrentPage() != main {
		t.Fatalf("first page is not the main page")
	}

	m.OnButtonDown(press(input.ButtonA))
	if m.CurrentPage() != sub {
		t.Fatalf("A did not follow the option")
	}
	sub.SelectNext()

	m.OnButtonDown(press(input.ButtonB))
	if m.CurrentPage() != main {
		t.Fatalf("B did not return to the main page")
	}
	if m.Back() {
		t.Fatalf("Back on the main page reported true")
	}

	m.GotoPage(sub)
	if sub.SelectedIndex() != 0 {
		t.Fatalf("GotoPage did not reset the cursor")
	}
	if m.Closing() {
		t.Fatalf("menu closed on navigation")
	}
}

func TestMenu_GotoUnknownPagePanics(t *testing.T) {
	m := &Menu{}
	m.SetName("Test Menu")
	m.AddPage(NewPage("main", ""))

	defer func() {
		iv, ok := recover().(InvariantViolation)
		if !ok {
			t.Fatalf("expected InvariantViolation")
		}
		if !strings.Contains(iv.Msg, "stray") {
			t.Fatalf("message %q does not name the page", iv.Msg)
		}
	}()
	m.GotoPage(NewPage("stray", ""))
}

func TestMenu_StartPausesByDefault(t *testing.T) {
	m := &Menu{}
	m.AddPage(NewPage("main", ""))
	m.OnButtonDown(press(input.ButtonStart))
	if !m.Paused() {
		t.Fatalf("start did not pause a pausable menu")
	}

	np := &Menu{}
	np.SetPausable(false)
	np.OnButtonDown(press(input.ButtonStart))
	if np.Paused() {
		t.Fatalf("start paused a non-pausable menu")
	}
}

func TestMenu_DrawPageMarksSelection(t *testing.T) {
	brightness := 5
	m := &Menu{}
	m.AddPage(NewPage("main", "Options",
		&Option{Label: "Resume"},
		&Option{LabelFunc: func() string { return "Level " + string(rune('0'+brightness)) }},
	))
	m.CurrentPage().SelectNext()

	d := &recordingDisplay{Canvas: display.NewCanvas(192, 64, nil)}
	m.DrawPage(d)

	want := []string{"Options", "Resume", "< Level 5 >"}
	if strings.Join(d.texts, "|") != strings.Join(want, "|") {
		t.Fatalf("drew %q, want %q", d.texts, want)
	}
}

func TestMenu_DrawPageScrollsToSelection(t *testing.T) {
	m := &Menu{}
	p := m.AddPage(NewPage("main", "Long"))
	for _, l := range []string{"one", "two", "three", "four", "five", "six"} {
		p.Add(&Option{Label: l})
	}
	for range 5 {
		p.SelectNext()
	}

	d := &recordingDisplay{Canvas: display.NewCanvas(192, 64, nil)}
	m.DrawPage(d)

	last := d.texts[len(d.texts)-1]
	if last != "< six >" {
		t.Fatalf("last drawn option = %q, want the selection", last)
	}
	for _, s := range d.texts {
		if s == "one" {
			t.Fatalf("first option drawn although scrolled off: %q", d.texts)
		}
	}
}
