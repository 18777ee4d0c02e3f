package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/xonecas/zoea-pilot/internal/core"
	"github.com/xonecas/zoea-pilot/internal/quest"
)

// LogEntry is one line of the recent events panel.
type LogEntry struct {
	Tick int64
	Time time.Time
	Kind string
	Text string
}

// LogEntryFromEvent converts a bus event. Tick events carry no log line.
func LogEntryFromEvent(e core.Event) (LogEntry, bool) {
	entry := LogEntry{Tick: e.Tick, Time: e.Timestamp}

	switch data := e.Data.(type) {
	case core.TaskData:
		if e.Type == core.EventTaskStarted {
			entry.Kind, entry.Text = "task", fmt.Sprintf("started %s [%s]", data.Description, data.Priority)
			break
		}
		entry.Kind, entry.Text = "task", fmt.Sprintf("%s %s", data.Description, data.State)
		if data.Error != "" {
			entry.Text += ": " + data.Error
		}
	case core.EmergencyData:
		entry.Kind = "emergency"
		if e.Type == core.EventEmergencyDone {
			entry.Text = fmt.Sprintf("%s response %s", data.Condition, data.Outcome)
		} else {
			entry.Text = fmt.Sprintf("%s → %s", data.Condition, data.Response)
		}
	case core.RandomEventData:
		entry.Kind, entry.Text = "random_event", fmt.Sprintf("%s → %s", data.Source, data.Response)
	case quest.Status:
		entry.Kind, entry.Text = "quest", fmt.Sprintf("%s: %s", data.Quest, data.State)
		if data.Step != "" {
			entry.Text += fmt.Sprintf(" (%s)", data.Step)
		}
	case core.SessionData:
		entry.Kind = "session"
		if data.Ended {
			entry.Text = fmt.Sprintf("session ended after %s ticks", humanize.Comma(data.Ticks))
		} else {
			entry.Text = "session started"
		}
	case core.AdminData:
		entry.Kind, entry.Text = "admin", strings.TrimSpace(data.Control+" "+data.Value)
	default:
		return LogEntry{}, false
	}
	return entry, true
}

// RenderDashboard renders the status dashboard.
func RenderDashboard(s core.Status, logs []LogEntry, width, height int, spinnerView string, now time.Time) string {
	if width < 40 {
		width = 40
	}
	var sections []string

	topLine := "◆" + strings.Repeat("═", width-2) + "◆"
	titleText := " ⬡ Z O E A   P I L O T ⬡ "
	pad := (width - lipgloss.Width(titleText)) / 2
	if pad < 0 {
		pad = 0
	}
	titleLine := strings.Repeat(" ", pad) + titleText
	if w := lipgloss.Width(titleLine); w < width {
		titleLine += strings.Repeat(" ", width-w)
	}
	sections = append(sections, headerStyle.Width(width).Render(topLine+"\n"+titleLine+"\n"+topLine))

	stats := fmt.Sprintf("%s  %s  %s  %s  fatigue %.1f%%",
		spinnerView,
		formatTickTimestamp(s.Tick, now),
		renderHitpoints(s.Hitpoints, s.MaxHitpoints, 10),
		string(s.Activity),
		s.Fatigue*100,
	)
	sections = append(sections, statusBarStyle.Width(width).Render(stats))

	sections = append(sections, renderSectionTitle("TASKS", width))
	active := s.ActiveTask
	if active == "" {
		active = dimmedStyle.Render("none")
	} else {
		active = valueStyle.Render(truncateWithEllipsis(active, width-30)) + dimmedStyle.Render(" ["+s.ActivePriority+"]")
	}
	sections = append(sections,
		field("Active", active),
		field("Queued", humanize.Comma(int64(s.Pending))),
		field("Sent", humanize.Comma(s.CommandsSent)+dimmedStyle.Render(fmt.Sprintf("  throttled %s", humanize.Comma(s.Throttled)))),
	)

	sections = append(sections, renderSectionTitle("QUEST", width))
	if s.Quest.Quest == "" {
		sections = append(sections, field("Quest", dimmedStyle.Render("none")))
	} else {
		step := s.Quest.Step
		if step == "" {
			step = "-"
		}
		sections = append(sections,
			field("Quest", valueStyle.Render(s.Quest.Quest)),
			field("State", string(s.Quest.State)),
			field("Step", fmt.Sprintf("%s (progress %d)", step, s.Quest.Progress)),
		)
	}

	sections = append(sections, renderSectionTitle("EMERGENCIES", width))
	activeEmergency := dimmedStyle.Render("none")
	if s.ActiveEmergency != "" {
		activeEmergency = errorStyle.Render(s.ActiveEmergency)
	}
	sections = append(sections,
		field("Handling", onOff(!s.EmergencySuppressed, "armed", "suppressed")),
		field("Active", activeEmergency),
		field("Conditions", fmt.Sprint(s.Conditions)),
	)

	sections = append(sections, renderSectionTitle("INEFFICIENCIES", width))
	c := s.Inefficiencies
	sections = append(sections,
		field("Injector", onOff(s.InjectorEnabled, "enabled", "disabled")),
		field("Counts", fmt.Sprintf("backtrack %s  redundant %s  hesitation %s  cancel %s  total %s",
			humanize.Comma(c.Backtrack), humanize.Comma(c.RedundantAction),
			humanize.Comma(c.Hesitation), humanize.Comma(c.ActionCancel), humanize.Comma(c.Total()))),
	)

	recent := "RECENT"
	if s.DroppedEvents > 0 {
		recent = fmt.Sprintf("RECENT (%s missed)", humanize.Comma(s.DroppedEvents))
	}
	sections = append(sections, renderSectionTitle(recent, width))
	used := lipgloss.Height(strings.Join(sections, "\n")) + 1
	room := height - used
	if room < 1 {
		room = 1
	}
	start := 0
	if len(logs) > room {
		start = len(logs) - room
	}
	if len(logs) == 0 {
		sections = append(sections, dimmedStyle.Render("no events yet"))
	}
	for _, l := range logs[start:] {
		when := dimmedStyle.Render(humanize.RelTime(l.Time, now, "ago", "from now"))
		text := EventStyle(l.Kind).Render(truncateWithEllipsis(l.Text, width-24))
		sections = append(sections, fmt.Sprintf("T%-6d %s  %s", l.Tick, text, when))
	}

	sections = append(sections, renderFooter(width))
	return strings.Join(sections, "\n")
}

func field(label, value string) string {
	return labelStyle.Render(fmt.Sprintf("  %-11s", label)) + value
}
