// Package tui provides the terminal status dashboard for the pilot.
package tui

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/xonecas/zoea-pilot/internal/core"
)

const maxLogEntries = 200

// Controller is the part of the pilot the dashboard reads and drives.
type Controller interface {
	Status() core.Status
	SetInjectorEnabled(enabled bool)
	SetEmergencySuppressed(suppressed bool)
	ResetInefficiencyCounters()
	ClearCooldowns()
}

// Model is the dashboard: the latest status plus a rolling event log.
type Model struct {
	pilot   Controller
	eventCh <-chan core.Event
	now     func() time.Time

	width    int
	height   int
	showHelp bool

	status  core.Status
	logs    []LogEntry
	spinner spinner.Model

	err error
}

// EventMsg carries one pilot event into Update.
type EventMsg struct {
	Event core.Event
}

// New builds the dashboard over pilot, fed by eventCh.
func New(pilot Controller, eventCh <-chan core.Event) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"⬡", "⬢", "⬡", "⬢", "⬦", "⬥", "⬦", "⬥"},
		FPS:    time.Second / 8,
	}
	sp.Style = lipgloss.NewStyle().Foreground(colorBrand)

	return Model{
		pilot:   pilot,
		eventCh: eventCh,
		now:     time.Now,
		status:  pilot.Status(),
		spinner: sp,
	}
}

// Init starts the spinner and the event listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.listenForEvents(),
	)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		if key.Matches(msg, keys.Help) {
			m.showHelp = !m.showHelp
			return m, nil
		}
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}
		return m.handleKey(msg)

	case EventMsg:
		m.handleEvent(msg.Event)
		return m, m.listenForEvents()

	case eventsClosedMsg:
		m.err = errors.New("pilot stopped")
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the dashboard, or the key reference while help is open.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	if m.showHelp {
		return RenderHelp(m.width, m.height)
	}

	content := RenderDashboard(m.status, m.logs, m.width, m.height-1, m.spinner.View(), m.now())
	if m.err != nil {
		content += "\n" + errorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	}
	return content
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Suppress):
		m.pilot.SetEmergencySuppressed(!m.status.EmergencySuppressed)

	case key.Matches(msg, keys.Injector):
		m.pilot.SetInjectorEnabled(!m.status.InjectorEnabled)

	case key.Matches(msg, keys.Reset):
		m.pilot.ResetInefficiencyCounters()

	case key.Matches(msg, keys.Cooldowns):
		m.pilot.ClearCooldowns()

	default:
		return m, nil
	}

	m.status = m.pilot.Status()
	return m, nil
}

func (m *Model) handleEvent(event core.Event) {
	if event.Type == core.EventTick {
		if s, ok := event.Data.(core.Status); ok {
			m.status = s
		}
		m.err = nil
		return
	}

	if entry, ok := LogEntryFromEvent(event); ok {
		m.logs = append(m.logs, entry)
		if len(m.logs) > maxLogEntries {
			m.logs = m.logs[len(m.logs)-maxLogEntries:]
		}
	}
}

type eventsClosedMsg struct{}

func (m Model) listenForEvents() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-m.eventCh
		if !ok {
			return eventsClosedMsg{}
		}
		return EventMsg{Event: event}
	}
}
