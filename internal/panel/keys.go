package panel

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Toggle key.Binding
	Level  key.Binding
	Quit   key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Level, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Toggle, k.Level, k.Quit}}
}

func defaultKeys() keyMap {
	return keyMap{
		Toggle: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "enable/disable"),
		),
		Level: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "log level"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c", "esc"),
			key.WithHelp("q", "quit"),
		),
	}
}
