package scene

import (
	"image/color"

	"zed/internal/display"
	"zed/internal/input"
)

// Option is one selectable line of a menu page.
type Option struct {
	Label string
	// LabelFunc, when set, is evaluated every frame instead of Label.
	LabelFunc func() string

	OnPress func()
	OnLeft  func()
	OnRight func()
}

// Text returns the label to draw.
func (o *Option) Text() string {
	if o.LabelFunc != nil {
		return o.LabelFunc()
	}
	return o.Label
}

// Page is a named list of options with a cursor.
type Page struct {
	Name    string
	Header  string
	Options []*Option

	selected int
}

func NewPage(name, header string, opts ...*Option) *Page {
	return &Page{Name: name, Header: header, Options: opts}
}

// Add appends an option and returns the page for chaining.
func (p *Page) Add(o *Option) *Page {
	p.Options = append(p.Options, o)
	return p
}

func (p *Page) SelectNext() {
	if n := len(p.Options); n > 0 {
		p.selected = (p.selected + 1) % n
	}
}

func (p *Page) SelectPrevious() {
	if n := len(p.Options); n > 0 {
		p.selected = (p.selected - 1 + n) % n
	}
}

func (p *Page) ResetSelection() { p.selected = 0 }

func (p *Page) SelectedIndex() int { return p.selected }

// Selected returns the highlighted option, or nil for an empty page.
func (p *Page) Selected() *Option {
	if p.selected < 0 || p.selected >= len(p.Options) {
		return nil
	}
	return p.Options[p.selected]
}

// ============================================================================
// Menu
// ============================================================================

// Menu is a scene that shows one Page at a time. The first page added is
// the main page; B returns to the page shown before the current one.
type Menu struct {
	Base

	pages    []*Page
	current  *Page
	previous *Page
	main     *Page
}

// AddPage registers p. The first registered page becomes the main page.
func (m *Menu) AddPage(p *Page) *Page {
	m.pages = append(m.pages, p)
	if m.main == nil {
		m.main = p
		m.current = p
	}
	return p
}

func (m *Menu) CurrentPage() *Page { return m.current }

func (m *Menu) MainPage() *Page { return m.main }

// GotoPage shows p with its cursor on the first option. p must have been
// added with AddPage.
func (m *Menu) GotoPage(p *Page) {
	if !m.registered(p) {
		name := "<nil>"
		if p != nil {
			name = p.Name
		}
		panic(InvariantViolation{Msg: "menu " + m.Name() + " has no page " + name})
	}
	m.previous = m.current
	m.current = p
	p.ResetSelection()
}

// Back returns to the previous page. It reports false when already on the
// main page.
func (m *Menu) Back() bool {
	if m.current == m.main {
		return false
	}
	target := m.previous
	if target == nil || target == m.current {
		target = m.main
	}
	m.previous = m.main
	m.current = target
	target.ResetSelection()
	return true
}

func (m *Menu) registered(p *Page) bool {
	for _, q := range m.pages {
		if q == p {
			return true
		}
	}
	return false
}

func (m *Menu) OnAxisChanged(ev input.AxisEvent) {
	if m.current == nil {
		return
	}
	switch ev.Axis {
	case input.AxisVertical:
		switch {
		case ev.Value > 0:
			m.current.SelectNext()
		case ev.Value < 0:
			m.current.SelectPrevious()
		}
	case input.AxisHorizontal:
		o := m.current.Selected()
		if o == nil {
			return
		}
		switch {
		case ev.Value > 0 && o.OnRight != nil:
			o.OnRight()
		case ev.Value < 0 && o.OnLeft != nil:
			o.OnLeft()
		}
	}
}

// OnButtonDown presses the selected option on A and goes back on B. Other
// buttons get the default handling.
func (m *Menu) OnButtonDown(ev input.ButtonEvent) {
	switch ev.Button {
	case input.ButtonA:
		if m.current == nil {
			return
		}
		if o := m.current.Selected(); o != nil && o.OnPress != nil {
			o.OnPress()
		}
	case input.ButtonB:
		m.Back()
	default:
		m.Base.OnButtonDown(ev)
	}
}

const menuLineHeight = 11

// DrawPage draws the current page: the header on top, then as many options
// as fit, centred, the selected one wrapped in angle brackets.
func (m *Menu) DrawPage(d display.Display) {
	p := m.current
	if p == nil {
		return
	}
	y := menuLineHeight
	if p.Header != "" {
		drawCentred(d, y, display.Yellow, p.Header)
		y += menuLineHeight + 2
	}

	// Scroll so the selected option stays on screen.
	rows := max((d.Height()-1-y)/menuLineHeight+1, 1)
	first := 0
	if p.selected >= rows {
		first = p.selected - rows + 1
	}
	for i := first; i < len(p.Options) && i < first+rows; i++ {
		text := p.Options[i].Text()
		c := display.Gray
		if i == p.selected {
			text = "< " + text + " >"
			c = display.White
		}
		drawCentred(d, y, c, text)
		y += menuLineHeight
	}
}

func drawCentred(d display.Display, baseline int, c color.Color, s string) {
	w, _ := d.MeasureText(s)
	d.DrawText((d.Width()-w)/2, baseline, c, s)
}
