package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the review screen shortcuts.
type KeyMap struct {
	Up        key.Binding
	Down      key.Binding
	Accept    key.Binding
	Reject    key.Binding
	Clear     key.Binding
	AcceptAll key.Binding
	Done      key.Binding
	Help      key.Binding
	Quit      key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("↓/j", "down"),
		),
		Accept: key.NewBinding(
			key.WithKeys("a", "y"),
			key.WithHelp("a/y", "track"),
		),
		Reject: key.NewBinding(
			key.WithKeys("r", "n"),
			key.WithHelp("r/n", "ignore"),
		),
		Clear: key.NewBinding(
			key.WithKeys("s", " "),
			key.WithHelp("s/space", "undecide"),
		),
		AcceptAll: key.NewBinding(
			key.WithKeys("A"),
			key.WithHelp("A", "track all"),
		),
		Done: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "save"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q/esc", "quit without saving"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Accept, k.Reject, k.Done, k.Help, k.Quit}
}

// FullHelp returns all key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Accept, k.Reject, k.Clear, k.AcceptAll},
		{k.Done, k.Help, k.Quit},
	}
}
