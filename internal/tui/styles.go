package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Palette
var (
	colorBrand   = lipgloss.Color("#9D00FF")
	colorTeal    = lipgloss.Color("#00FFCC")
	colorMuted   = lipgloss.Color("#5555AA")
	colorOK      = lipgloss.Color("#00FF66")
	colorWarning = lipgloss.Color("#FF6600")
	colorDanger  = lipgloss.Color("#FF3366")
	colorBar     = lipgloss.Color("#101018")
	colorPanel   = lipgloss.Color("#14141F")
)

var (
	headerStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorBrand).Background(colorBar).MarginBottom(1)
	titleStyle      = lipgloss.NewStyle().Bold(true).Foreground(colorBrand)
	statusBarStyle  = lipgloss.NewStyle().Foreground(colorTeal).Background(colorBar).Padding(0, 1)
	panelTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorTeal)
	labelStyle      = lipgloss.NewStyle().Foreground(colorMuted)
	valueStyle      = lipgloss.NewStyle().Bold(true).Foreground(colorBrand)
	dimmedStyle     = lipgloss.NewStyle().Foreground(colorMuted)
	onStyle         = lipgloss.NewStyle().Bold(true).Foreground(colorOK)
	warnStyle       = lipgloss.NewStyle().Bold(true).Foreground(colorWarning)
	errorStyle      = lipgloss.NewStyle().Bold(true).Foreground(colorDanger)

	helpStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(colorBrand).
			Background(colorPanel).
			Padding(1, 2)
	helpKeyStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorTeal)
	helpDescStyle = lipgloss.NewStyle().Foreground(colorMuted)
)

var eventStyles = map[string]lipgloss.Style{
	"emergency":    errorStyle,
	"random_event": warnStyle,
	"quest":        onStyle,
	"admin":        valueStyle,
}

// EventStyle returns the style for an event kind in the log.
func EventStyle(kind string) lipgloss.Style {
	if s, ok := eventStyles[kind]; ok {
		return s
	}
	return dimmedStyle
}

// renderSectionTitle renders "⬧── TITLE ──⬧" across width.
func renderSectionTitle(title string, width int) string {
	label := " " + title + " "
	fill := width - lipgloss.Width(label) - 4
	if fill < 2 {
		fill = 2
	}
	line := "⬧─" + strings.Repeat("─", fill/2) + label + strings.Repeat("─", fill-fill/2) + "─⬧"
	return panelTitleStyle.Width(width).Render(line)
}

func truncateWithEllipsis(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	return ansi.Truncate(s, maxWidth, "...")
}

func formatTickTimestamp(tick int64, ts time.Time) string {
	return lipgloss.NewStyle().Foreground(colorTeal).Render(fmt.Sprintf("T%d", tick)) + " " +
		titleStyle.Render("⬡") + " " +
		dimmedStyle.Render(ts.Local().Format("[15:04:05]"))
}

// renderHitpoints draws "HP cur/max" with a bar coloured by the ratio.
func renderHitpoints(current, max, barWidth int) string {
	text := fmt.Sprintf("HP %d/%d", current, max)
	if max <= 0 || barWidth <= 0 {
		return text
	}
	filled := current * barWidth / max
	if filled < 0 {
		filled = 0
	}
	if filled > barWidth {
		filled = barWidth
	}

	style := onStyle
	switch ratio := float64(current) / float64(max); {
	case ratio < 0.4:
		style = errorStyle
	case ratio < 0.7:
		style = warnStyle
	}
	bar := style.Render(strings.Repeat("█", filled)) + dimmedStyle.Render(strings.Repeat("░", barWidth-filled))
	return text + " " + bar
}

func onOff(v bool, on, off string) string {
	if v {
		return onStyle.Render(on)
	}
	return dimmedStyle.Render(off)
}
