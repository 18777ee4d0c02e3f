package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

type keyMap struct {
	Quit      key.Binding
	Help      key.Binding
	Suppress  key.Binding
	Injector  key.Binding
	Reset     key.Binding
	Cooldowns key.Binding
}

var keys = keyMap{
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Suppress:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "suppress emergencies")),
	Injector:  key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "toggle injector")),
	Reset:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset counters")),
	Cooldowns: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear cooldowns")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Suppress, k.Injector, k.Reset, k.Cooldowns, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Suppress, k.Cooldowns},
		{k.Injector, k.Reset},
		{k.Help, k.Quit},
	}
}

func newHelp(width int) help.Model {
	h := help.New()
	h.Width = width
	h.ShortSeparator = " · "
	h.Styles.ShortKey = helpKeyStyle
	h.Styles.ShortDesc = dimmedStyle
	h.Styles.ShortSeparator = dimmedStyle
	h.Styles.FullKey = helpKeyStyle
	h.Styles.FullDesc = helpDescStyle
	h.Styles.FullSeparator = dimmedStyle
	return h
}

// renderFooter renders the one-line key hints.
func renderFooter(width int) string {
	return newHelp(width).ShortHelpView(keys.ShortHelp())
}

// RenderHelp renders the full key reference centered in the window.
func RenderHelp(width, height int) string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Keys"),
		"",
		newHelp(0).FullHelpView(keys.FullHelp()),
	)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, helpStyle.Render(body))
}
