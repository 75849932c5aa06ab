package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/servotrack/internal/loop"
)

const historyLen = 120

// Controls is the subset of operator actions the monitor can issue.
// *loop.Signals implements it.
type Controls interface {
	Reset()
	Quit()
}

// SampleMsg carries one loop sample into the program.
type SampleMsg loop.Sample

// DoneMsg reports that the loop has returned.
type DoneMsg struct {
	Result *loop.Result
	Err    error
}

type Monitor struct {
	controls Controls
	title    string

	last    loop.Sample
	seen    bool
	samples int
	tx      int
	resets  int

	histX, histY []float64
	axisY        bool

	width  int
	done   bool
	result *loop.Result
	err    error
}

func NewMonitor(title string, controls Controls) Monitor {
	return Monitor{title: title, controls: controls, width: 80}
}

func (m Monitor) Init() tea.Cmd { return nil }

func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.controls != nil {
				m.controls.Quit()
			}
			if m.done {
				return m, tea.Quit
			}
		case "r":
			if m.controls != nil {
				m.controls.Reset()
			}
			m.seen = false
			m.histX, m.histY = nil, nil
			m.resets++
		case "x":
			m.axisY = false
		case "y":
			m.axisY = true
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case SampleMsg:
		s := loop.Sample(msg)
		m.last, m.seen = s, true
		m.samples++
		if s.Transmitted {
			m.tx++
		}
		m.histX = push(m.histX, s.ErrX)
		m.histY = push(m.histY, s.ErrY)
	case DoneMsg:
		m.done, m.result, m.err = true, msg.Result, msg.Err
		return m, tea.Quit
	}
	return m, nil
}

func push(h []float64, v float64) []float64 {
	h = append(h, v)
	if len(h) > historyLen {
		h = h[len(h)-historyLen:]
	}
	return h
}

func (m Monitor) View() string {
	var b strings.Builder
	b.WriteString(Title.Render(m.title))
	b.WriteString("  ")
	switch {
	case m.err != nil:
		b.WriteString(StatusError.Render("error: " + m.err.Error()))
	case m.done:
		b.WriteString(Subtle.Render("stopped"))
	case m.seen:
		b.WriteString(StatusTracking.Render(loop.StateTracking.String()))
	default:
		b.WriteString(StatusWaiting.Render(loop.StateWaitingForTarget.String()))
	}
	b.WriteString("\n\n")

	if m.seen {
		s := m.last
		fmt.Fprintf(&b, "%s  %s\n",
			Metric("object", fmt.Sprint(s.Object)),
			Metric("box", fmt.Sprintf("%.0f,%.0f %.0fx%.0f", s.Box.X, s.Box.Y, s.Box.Width, s.Box.Height)))
		fmt.Fprintf(&b, "%s  %s\n",
			Metric("error", fmt.Sprintf("%+.0f, %+.0f px", s.ErrX, s.ErrY)),
			Metric("correction", fmt.Sprintf("%+.2f, %+.2f°", s.AngleX, s.AngleY)))
		fmt.Fprintf(&b, "pan  %3d° %s\n", s.Pan, Gauge(s.Pan, 36))
		fmt.Fprintf(&b, "tilt %3d° %s\n", s.Tilt, Gauge(s.Tilt, 36))
	}
	fmt.Fprintf(&b, "%s  %s  %s\n",
		Metric("samples", fmt.Sprint(m.samples)),
		Metric("sent", fmt.Sprint(m.tx)),
		Metric("resets", fmt.Sprint(m.resets)))

	hist, axis := m.histX, "x"
	if m.axisY {
		hist, axis = m.histY, "y"
	}
	if len(hist) > 1 {
		w := m.width - 12
		if w < 20 {
			w = 20
		}
		b.WriteString("\n")
		b.WriteString(asciigraph.Plot(hist,
			asciigraph.Height(6),
			asciigraph.Width(w),
			asciigraph.Caption("centring error "+axis+" (px)"),
		))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(KeyHint.Render("r reset · x/y axis · q quit"))
	return Panel.Render(b.String())
}

// Result returns what the loop reported once it stopped.
func (m Monitor) Result() (*loop.Result, error) { return m.result, m.err }

// Feed forwards loop samples to a running program.
type Feed struct {
	send func(tea.Msg)
}

func NewFeed(p *tea.Program) *Feed {
	return &Feed{send: p.Send}
}

func (f *Feed) OnSample(s loop.Sample) { f.send(SampleMsg(s)) }
