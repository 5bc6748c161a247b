package ui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/0xlemi/tunesuite/internal/pipeline"
	"github.com/0xlemi/tunesuite/internal/pitch"
)

// Constants for UI behavior
const (
	// How long to keep displaying the last note after the pitch is lost
	noteHoldDuration = 500 * time.Millisecond

	tickInterval = 100 * time.Millisecond

	// Half width of the cents meter in cells
	meterHalfWidth = 20
)

var (
	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			PaddingLeft(2).
			PaddingRight(2).
			MarginBottom(1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CCCCCC"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F"))

	inTuneStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FF00"))
	closeStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFF00"))
	offStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF0000"))

	// Note colors
	noteColors = map[string]string{
		"C": "#E8D6B0", // Beige
		"D": "#A020F0", // Purple
		"E": "#FFFF00", // Yellow
		"F": "#FFA500", // Orange
		"G": "#00FF00", // Green
		"A": "#FF0000", // Red
		"B": "#0000FF", // Blue
	}
)

// Controller applies user commands to the running pipeline.
type Controller interface {
	SetMode(ctx context.Context, m pitch.Mode) error
	SetInstrument(ctx context.Context, name string) error
	SetDisplay(ctx context.Context, d pitch.DisplayMode) error
	Calibrate(ctx context.Context) error
	Reset(ctx context.Context) error
}

// TickMsg represents a timer tick
type TickMsg time.Time

// UpdateMsg carries one pipeline update.
type UpdateMsg pipeline.Update

// controlMsg reports the outcome of a Controller call. apply updates the
// model once the call has succeeded.
type controlMsg struct {
	status string
	err    error
	apply  func(*Model)
}

// Model represents the UI state
type Model struct {
	ctrl Controller

	modes       []pitch.Mode
	instruments []pitch.Instrument
	mode        int
	instrument  int
	display     pitch.DisplayMode
	a4          float64

	last      pitch.Result // Last result with a pitch
	lastSeen  time.Time
	showing   bool
	update    pipeline.Update
	status    string
	statusErr bool

	width  int
	height int
}

// NewModel returns a model driving ctrl, starting from the settings in cfg.
func NewModel(ctrl Controller, cfg pitch.Config) Model {
	m := Model{
		ctrl:        ctrl,
		modes:       pitch.Modes,
		instruments: pitch.Instruments(),
		display:     cfg.Display,
		a4:          cfg.A4,
	}
	for i, mode := range m.modes {
		if mode == cfg.Mode {
			m.mode = i
		}
	}
	for i, in := range m.instruments {
		if strings.EqualFold(in.Name, cfg.Instrument) {
			m.instrument = i
		}
	}
	return m
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Init initializes the UI model
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update updates the UI model based on messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		if m.showing && time.Time(msg).Sub(m.lastSeen) > noteHoldDuration {
			m.showing = false
		}
		return m, tick()

	case UpdateMsg:
		m.update = pipeline.Update(msg)
		if m.update.Result.HasPitch() {
			m.last = m.update.Result
			m.lastSeen = time.Now()
			m.showing = true
		}

	case controlMsg:
		m.status = msg.status
		m.statusErr = msg.err != nil
		if msg.err != nil {
			m.status = msg.err.Error()
		} else if msg.apply != nil {
			msg.apply(&m)
		}
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "c":
		m.showing = false
		return m, m.control("calibrating: keep quiet", func(ctx context.Context) error {
			return m.ctrl.Calibrate(ctx)
		}, nil)

	case "m":
		next := (m.mode + 1) % len(m.modes)
		mode := m.modes[next]
		return m, m.control("mode: "+string(mode), func(ctx context.Context) error {
			return m.ctrl.SetMode(ctx, mode)
		}, func(m *Model) { m.mode = next })

	case "i":
		next := (m.instrument + 1) % len(m.instruments)
		in := m.instruments[next]
		return m, m.control("instrument: "+in.Label, func(ctx context.Context) error {
			return m.ctrl.SetInstrument(ctx, in.Name)
		}, func(m *Model) { m.instrument = next })

	case "d":
		d := pitch.DisplayGraph
		if m.display == pitch.DisplayGraph {
			d = pitch.DisplayTuner
		}
		return m, m.control("display: "+string(d), func(ctx context.Context) error {
			return m.ctrl.SetDisplay(ctx, d)
		}, func(m *Model) { m.display = d })

	case "r":
		m.showing = false
		return m, m.control("reset", func(ctx context.Context) error {
			return m.ctrl.Reset(ctx)
		}, nil)
	}
	return m, nil
}

// control runs fn off the UI goroutine and reports back with a controlMsg
// carrying apply.
func (m Model) control(status string, fn func(context.Context) error, apply func(*Model)) tea.Cmd {
	if m.ctrl == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return controlMsg{status: status, err: fn(ctx), apply: apply}
	}
}

// Get the next note in the scale (for sharp note colors)
func getNextNote(note string) string {
	switch note {
	case "C":
		return "D"
	case "D":
		return "E"
	case "E":
		return "F"
	case "F":
		return "G"
	case "G":
		return "A"
	case "A":
		return "B"
	default:
		return "C"
	}
}

// renderNote draws the note box; sharps are split between the colors of
// their neighbours.
func renderNote(name string, octave int) string {
	box := func(color string) lipgloss.Style {
		return lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color(color)).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333333")).
			PaddingTop(2).
			PaddingBottom(2)
	}

	if !strings.HasSuffix(name, "#") {
		return box(noteColors[name]).
			PaddingLeft(4).
			PaddingRight(4).
			Render(fmt.Sprintf("%s%d", name, octave))
	}

	base := name[:1]
	left := box(noteColors[base]).
		BorderTop(true).
		BorderBottom(true).
		BorderLeft(true).
		BorderRight(false).
		PaddingLeft(2).
		PaddingRight(1)
	right := box(noteColors[getNextNote(base)]).
		BorderTop(true).
		BorderBottom(true).
		BorderLeft(false).
		BorderRight(true).
		PaddingLeft(1).
		PaddingRight(2)

	return lipgloss.JoinHorizontal(lipgloss.Top,
		left.Render(base),
		right.Render(fmt.Sprintf("#%d", octave)))
}

// renderMeter draws a cents needle between -50 and +50.
func renderMeter(cents float64) string {
	pos := meterHalfWidth + int(math.Round(cents/50*meterHalfWidth))
	pos = max(0, min(2*meterHalfWidth, pos))

	style := offStyle
	switch a := math.Abs(cents); {
	case a <= 5:
		style = inTuneStyle
	case a <= 15:
		style = closeStyle
	}

	var b strings.Builder
	b.WriteString("-50 ")
	for i := 0; i <= 2*meterHalfWidth; i++ {
		switch {
		case i == pos:
			b.WriteString(style.Render("●"))
		case i == meterHalfWidth:
			b.WriteString("|")
		default:
			b.WriteString("─")
		}
	}
	b.WriteString(" +50")
	return b.String()
}

func renderProgress(p float64, width int) string {
	filled := int(math.Round(p * float64(width)))
	filled = max(0, min(width, filled))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

// View renders the UI
func (m Model) View() string {
	in := m.instruments[m.instrument]
	title := fmt.Sprintf("TuneSuite - %s | %s | A=%.0f Hz", in.Label, m.modes[m.mode], m.a4)

	var s strings.Builder
	s.WriteString(titleStyle.Render(title))
	s.WriteString("\n")

	switch {
	case m.update.Calibrating:
		s.WriteString(infoStyle.Render(fmt.Sprintf("Calibrating noise floor %s %3.0f%%",
			renderProgress(m.update.CalibrationProgress, 20), m.update.CalibrationProgress*100)))

	case m.showing:
		r := m.last
		s.WriteString(renderNote(r.Note, r.Octave))
		s.WriteString("\n")
		s.WriteString(renderMeter(r.Cents))
		s.WriteString("\n\n")

		info := fmt.Sprintf("Frequency: %.2f Hz | Cents: %+.1f | Confidence: %3.0f%% | Stability: %3.0f%%",
			r.Frequency, r.Cents, r.Confidence*100, r.Stability*100)
		s.WriteString(infoStyle.Render(info))

		if r.Vibrato.Detected {
			s.WriteString("\n")
			s.WriteString(infoStyle.Render(fmt.Sprintf("Vibrato: %.1f Hz, ±%.0f cents",
				r.Vibrato.RateHz, r.Vibrato.DepthCents)))
		}

	default:
		s.WriteString(infoStyle.Render("Listening for audio..."))
	}

	s.WriteString("\n\n")
	var flags []string
	if m.update.Calibrated {
		flags = append(flags, "noise profile on")
	}
	flags = append(flags, "display: "+string(m.display))
	if m.update.Dropped > 0 {
		flags = append(flags, fmt.Sprintf("dropped frames: %d", m.update.Dropped))
	}
	s.WriteString(infoStyle.Render(strings.Join(flags, " | ")))

	if m.status != "" {
		s.WriteString("\n")
		if m.statusErr {
			s.WriteString(errorStyle.Render(m.status))
		} else {
			s.WriteString(infoStyle.Render(m.status))
		}
	}

	s.WriteString("\n\n")
	s.WriteString(infoStyle.Render("q quit | c calibrate | m mode | i instrument | d display | r reset"))

	return s.String()
}
