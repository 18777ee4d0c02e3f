package tui

import (
	"regexp"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/xonecas/zoea-pilot/internal/activity"
	"github.com/xonecas/zoea-pilot/internal/core"
	"github.com/xonecas/zoea-pilot/internal/humanize"
	"github.com/xonecas/zoea-pilot/internal/quest"
)

const (
	testWidth  = 120
	testHeight = 40
)

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// setupPlainOutput forces colorless output so views can be matched as text.
func setupPlainOutput(t *testing.T) func() {
	t.Helper()
	lipgloss.SetColorProfile(termenv.Ascii)
	return func() {}
}

type fakePilot struct {
	status core.Status
	resets int
	clears int
}

func (f *fakePilot) Status() core.Status             { return f.status }
func (f *fakePilot) SetInjectorEnabled(enabled bool) { f.status.InjectorEnabled = enabled }
func (f *fakePilot) SetEmergencySuppressed(s bool)   { f.status.EmergencySuppressed = s }
func (f *fakePilot) ResetInefficiencyCounters()      { f.resets++ }
func (f *fakePilot) ClearCooldowns()                 { f.clears++ }

func testTime() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, time.Local)
}

func newTestModel(p *fakePilot) Model {
	m := New(p, make(chan core.Event))
	m.now = testTime
	updated, _ := m.Update(tea.WindowSizeMsg{Width: testWidth, Height: testHeight})
	return updated.(Model)
}

func press(m Model, k string) (Model, tea.Cmd) {
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)})
	return updated.(Model), cmd
}

func TestModel_AdminKeys(t *testing.T) {
	p := &fakePilot{status: core.Status{InjectorEnabled: true}}
	m := newTestModel(p)

	m, _ = press(m, "s")
	if !p.status.EmergencySuppressed || !m.status.EmergencySuppressed {
		t.Error("expected s to suppress emergencies")
	}
	m, _ = press(m, "s")
	if p.status.EmergencySuppressed {
		t.Error("expected second s to re-arm emergencies")
	}

	m, _ = press(m, "i")
	if p.status.InjectorEnabled || m.status.InjectorEnabled {
		t.Error("expected i to disable the injector")
	}

	m, _ = press(m, "r")
	m, _ = press(m, "c")
	if p.resets != 1 || p.clears != 1 {
		t.Errorf("expected one reset and one clear, got %d/%d", p.resets, p.clears)
	}
}

func TestModel_Quit(t *testing.T) {
	m := newTestModel(&fakePilot{})
	_, cmd := press(m, "q")
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestModel_HelpToggle(t *testing.T) {
	defer setupPlainOutput(t)()
	p := &fakePilot{}
	m := newTestModel(p)

	m, _ = press(m, "?")
	view := stripANSI(m.View())
	if !strings.Contains(view, "clear cooldowns") || !strings.Contains(view, "toggle injector") {
		t.Errorf("expected help overlay, got\n%s", view)
	}

	// Any key closes help without acting.
	m, _ = press(m, "s")
	if m.showHelp || p.status.EmergencySuppressed {
		t.Error("expected help to close without suppressing")
	}
}

func TestModel_Events(t *testing.T) {
	m := newTestModel(&fakePilot{})

	tick := core.Status{Tick: 42, Hitpoints: 50, MaxHitpoints: 99}
	updated, cmd := m.Update(EventMsg{Event: core.Event{Type: core.EventTick, Tick: 42, Data: tick}})
	m = updated.(Model)
	if cmd == nil {
		t.Error("expected to keep listening for events")
	}
	if m.status.Tick != 42 || len(m.logs) != 0 {
		t.Errorf("tick should update status only, got tick %d and %d logs", m.status.Tick, len(m.logs))
	}

	updated, _ = m.Update(EventMsg{Event: core.Event{
		Type: core.EventEmergency,
		Tick: 43,
		Data: core.EmergencyData{Condition: "low_health", Response: "eat shark"},
	}})
	m = updated.(Model)
	if len(m.logs) != 1 || m.logs[0].Kind != "emergency" {
		t.Fatalf("expected one emergency log entry, got %+v", m.logs)
	}

	for i := 0; i < maxLogEntries+10; i++ {
		updated, _ = m.Update(EventMsg{Event: core.Event{Type: core.EventAdmin, Data: core.AdminData{Control: "clear_cooldowns"}}})
		m = updated.(Model)
	}
	if len(m.logs) != maxLogEntries {
		t.Errorf("expected log capped at %d, got %d", maxLogEntries, len(m.logs))
	}
}

func TestModel_EventsClosed(t *testing.T) {
	ch := make(chan core.Event)
	close(ch)
	m := New(&fakePilot{}, ch)

	msg := m.listenForEvents()()
	updated, _ := m.Update(msg)
	if updated.(Model).err == nil {
		t.Error("expected error once the event stream ends")
	}
}

func TestLogEntryFromEvent(t *testing.T) {
	tests := []struct {
		name  string
		event core.Event
		kind  string
		text  string
	}{
		{"task started", core.Event{Type: core.EventTaskStarted, Data: core.TaskData{Description: "walk to bank", Priority: "normal"}}, "task", "started walk to bank [normal]"},
		{"task failed", core.Event{Type: core.EventTaskFinished, Data: core.TaskData{Description: "eat shark", State: "failed", Error: "timeout"}}, "task", "eat shark failed: timeout"},
		{"emergency done", core.Event{Type: core.EventEmergencyDone, Data: core.EmergencyData{Condition: "low_health", Outcome: "completed"}}, "emergency", "low_health response completed"},
		{"random event", core.Event{Type: core.EventRandomEvent, Data: core.RandomEventData{Source: "Genie", Response: "dismiss Genie"}}, "random_event", "Genie → dismiss Genie"},
		{"quest", core.Event{Type: core.EventQuestChanged, Data: quest.Status{Quest: "Cook's Assistant", State: quest.StateStepRunning, Step: "fetch flour"}}, "quest", "Cook's Assistant: step_running (fetch flour)"},
		{"session end", core.Event{Type: core.EventSession, Data: core.SessionData{Ended: true, Ticks: 12000}}, "session", "session ended after 12,000 ticks"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, ok := LogEntryFromEvent(tt.event)
			if !ok {
				t.Fatal("expected a log entry")
			}
			if entry.Kind != tt.kind || entry.Text != tt.text {
				t.Errorf("expected %s %q, got %s %q", tt.kind, tt.text, entry.Kind, entry.Text)
			}
		})
	}

	if _, ok := LogEntryFromEvent(core.Event{Type: core.EventTick, Data: core.Status{}}); ok {
		t.Error("tick events should not produce log entries")
	}
}

func TestRenderDashboard(t *testing.T) {
	defer setupPlainOutput(t)()

	s := core.Status{
		Tick:                1234,
		Hitpoints:           37,
		MaxHitpoints:        99,
		Activity:            activity.Medium,
		ActiveTask:          "eat shark",
		ActivePriority:      "urgent",
		Pending:             2,
		CommandsSent:        1500,
		Quest:               quest.Status{Quest: "Cook's Assistant", State: quest.StateAwaitingAdvance, Step: "hand in", Progress: 1},
		ActiveEmergency:     "low_health",
		EmergencySuppressed: true,
		Conditions:          1,
		InjectorEnabled:     true,
		Inefficiencies:      humanize.Counts{Backtrack: 1, Hesitation: 3},
		Fatigue:             0.25,
		DroppedEvents:       3,
	}
	logs := []LogEntry{{Tick: 1200, Time: testTime().Add(-time.Minute), Kind: "emergency", Text: "low_health → eat shark"}}

	out := stripANSI(RenderDashboard(s, logs, testWidth, testHeight, "*", testTime()))
	for _, want := range []string{
		"Z O E A   P I L O T",
		"T1234",
		"HP 37/99",
		"fatigue 25.0%",
		"eat shark [urgent]",
		"1,500",
		"Cook's Assistant",
		"hand in (progress 1)",
		"suppressed",
		"low_health",
		"hesitation 3",
		"total 4",
		"1 minute ago",
		"RECENT (3 missed)",
		"s suppress emergencies",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dashboard missing %q\n%s", want, out)
		}
	}
}

func TestRenderDashboard_Empty(t *testing.T) {
	defer setupPlainOutput(t)()

	out := stripANSI(RenderDashboard(core.Status{}, nil, 20, 10, "", testTime()))
	if !strings.Contains(out, "no events yet") || !strings.Contains(out, "none") {
		t.Errorf("expected empty placeholders, got\n%s", out)
	}
}

func TestView_Loading(t *testing.T) {
	m := New(&fakePilot{}, make(chan core.Event))
	if m.View() != "Loading..." {
		t.Errorf("expected loading view before the first resize, got %q", m.View())
	}
}

func TestRenderHitpoints(t *testing.T) {
	defer setupPlainOutput(t)()

	tests := []struct {
		cur, max int
		want     string
	}{
		{99, 99, "HP 99/99 ██████████"},
		{37, 99, "HP 37/99 ███░░░░░░░"},
		{0, 99, "HP 0/99 ░░░░░░░░░░"},
		{150, 99, "HP 150/99 ██████████"},
		{10, 0, "HP 10/0"},
	}
	for _, tt := range tests {
		if got := stripANSI(renderHitpoints(tt.cur, tt.max, 10)); got != tt.want {
			t.Errorf("renderHitpoints(%d, %d) = %q, want %q", tt.cur, tt.max, got, tt.want)
		}
	}
}
