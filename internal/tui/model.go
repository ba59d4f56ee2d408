package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"resizer/internal/processor"
)

const recentLines = 6

type Model struct {
	events  <-chan processor.Event
	cancel  func()
	started time.Time
	bar     progress.Model
	width   int

	total       int
	completed   int
	transformed int
	skipped     int
	failed      int
	bytesSaved  int64
	lines       []string

	cancelling bool
	finished   bool
	abandoned  bool
	quitting   bool
}

type doneMsg struct{}

type eventMsg processor.Event

// NewModel returns a view that drains events until the run finishes or the
// channel closes. cancel is called on the first q or ctrl+c; a second press
// closes the view without waiting.
func NewModel(events <-chan processor.Event, cancel func()) Model {
	return Model{
		events:  events,
		cancel:  cancel,
		started: time.Now(),
		bar:     progress.New(progress.WithGradient(string(ColorAccentAlt), string(ColorSuccess))),
	}
}

func (m Model) Init() tea.Cmd {
	return listenForEvents(m.events)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		return m.apply(processor.Event(msg))
	case doneMsg:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.cancelling || m.finished {
				m.abandoned = !m.finished
				m.quitting = true
				return m, tea.Quit
			}
			m.cancelling = true
			m.pushLine("Cancelling, waiting for in-flight files... (press again to leave)")
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(60, max(20, msg.Width-20))
		return m, nil
	default:
		return m, nil
	}
}

func (m Model) apply(ev processor.Event) (tea.Model, tea.Cmd) {
	switch ev.Kind {
	case processor.EventLog:
		m.pushLine(ev.Line)
	case processor.EventProgress:
		m.completed = ev.Completed
		m.total = ev.Total
	case processor.EventOutcome:
		switch ev.Result.Kind {
		case processor.KindTransformed:
			m.transformed++
			if !ev.Result.Planned {
				m.bytesSaved += ev.Result.BytesBefore - ev.Result.BytesAfter
			}
		case processor.KindSkipped:
			m.skipped++
		case processor.KindFailed:
			m.failed++
		}
	case processor.EventFinished:
		m.finished = true
		m.quitting = true
		return m, tea.Quit
	}
	return m, listenForEvents(m.events)
}

func (m *Model) pushLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > recentLines {
		m.lines = m.lines[len(m.lines)-recentLines:]
	}
}

// Abandoned reports whether the user left the view while a cancelled run
// was still finishing its in-flight files.
func (m Model) Abandoned() bool {
	return m.abandoned
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	ratio := 0.0
	if m.total > 0 {
		ratio = min(1, float64(m.completed)/float64(m.total))
	}
	elapsed := time.Since(m.started).Round(time.Second)

	lines := []string{
		titleStyle.Render("resizer"),
		labelStyle.Render(fmt.Sprintf("Files: %d/%d", m.completed, m.total)) + "  " +
			OutcomeStyle(processor.KindTransformed.String()).Render(fmt.Sprintf("resized:%d", m.transformed)) + " " +
			OutcomeStyle(processor.KindSkipped.String()).Render(fmt.Sprintf("skipped:%d", m.skipped)) + " " +
			OutcomeStyle(processor.KindFailed.String()).Render(fmt.Sprintf("failed:%d", m.failed)),
		labelStyle.Render("Space saved: "+FormatBytes(m.bytesSaved)),
		dimStyle.Render(fmt.Sprintf("Elapsed: %s", elapsed)),
		m.bar.ViewAs(ratio),
		"",
	}
	for _, line := range m.lines {
		lines = append(lines, logStyle.Render(line))
	}

	hint := "q: cancel"
	if m.cancelling {
		hint = "q: leave now"
	}
	lines = append(lines, "", dimStyle.Render(hint))

	return strings.Join(lines, "\n")
}

func listenForEvents(events <-chan processor.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	labelStyle = lipgloss.NewStyle().Foreground(ColorInk)
	dimStyle   = lipgloss.NewStyle().Foreground(ColorDim)
	logStyle   = lipgloss.NewStyle().Foreground(ColorInk)
)
