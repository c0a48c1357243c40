package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up      key.Binding
	down    key.Binding
	nextTab key.Binding
	prevTab key.Binding
	approve key.Binding
	reject  key.Binding
	reset   key.Binding
	play    key.Binding
	next    key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		nextTab: key.NewBinding(key.WithKeys("tab", "right", "l"), key.WithHelp("tab", "next tab")),
		prevTab: key.NewBinding(key.WithKeys("shift+tab", "left", "h"), key.WithHelp("shift+tab", "prev tab")),
		approve: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "approve")),
		reject:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "reject")),
		reset:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset")),
		play:    key.NewBinding(key.WithKeys("p", "enter"), key.WithHelp("p", "play")),
		next:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next song")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// forView returns the bindings that act on the given tab.
func (k keyMap) forView(v ViewState) []key.Binding {
	switch v {
	case PendingView:
		return []key.Binding{k.approve, k.reject, k.nextTab, k.quit}
	case RejectedView:
		return []key.Binding{k.reset, k.approve, k.nextTab, k.quit}
	default:
		return []key.Binding{k.play, k.next, k.reject, k.nextTab, k.quit}
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.nextTab, k.prevTab},
		{k.approve, k.reject, k.reset},
		{k.play, k.next, k.quit},
	}
}
