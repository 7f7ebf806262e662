package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the dashboard controls.
type keyMap struct {
	Next        key.Binding
	Prev        key.Binding
	MoreLevels  key.Binding
	FewerLevels key.Binding
	Refresh     key.Binding
	Quit        key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Next: key.NewBinding(
			key.WithKeys("n", "right"),
			key.WithHelp("n/→", "next volume"),
		),
		Prev: key.NewBinding(
			key.WithKeys("p", "left"),
			key.WithHelp("p/←", "previous volume"),
		),
		MoreLevels: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "more levels"),
		),
		FewerLevels: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "fewer levels"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh this volume"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
