package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap lists every binding; ShortHelp and FullHelp feed bubbles/help.
type keyMap struct {
	Up, Down, Top, Bottom key.Binding
	Focus                 key.Binding
	Enter                 key.Binding
	Dismiss               key.Binding
	NotInterested         key.Binding
	Done, Skip            key.Binding
	Craving               key.Binding
	Surprise              key.Binding
	Break                 key.Binding
	Command               key.Binding
	Debug                 key.Binding
	Help                  key.Binding
	Quit                  key.Binding
}

var keys = keyMap{
	Up:            key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
	Down:          key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
	Top:           key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
	Bottom:        key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
	Focus:         key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "inbox/picks")),
	Enter:         key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "go")),
	Dismiss:       key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "dismiss")),
	NotInterested: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "not for me")),
	Done:          key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "done")),
	Skip:          key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "skip")),
	Craving:       key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "craving")),
	Surprise:      key.NewBinding(key.WithKeys("z"), key.WithHelp("z", "surprise")),
	Break:         key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "took a break")),
	Command:       key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "modes")),
	Debug:         key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "events")),
	Help:          key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Enter, k.Focus, k.Dismiss, k.Craving, k.Surprise, k.Command, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom, k.Focus},
		{k.Enter, k.Dismiss, k.NotInterested, k.Done, k.Skip},
		{k.Craving, k.Surprise, k.Break, k.Command},
		{k.Debug, k.Help, k.Quit},
	}
}
