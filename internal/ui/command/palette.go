// Package command is the "/" palette for switching what the companion is
// doing: sub-modes, a surprise pick, a break, or back to planning.
package command

import (
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Command is one palette entry.
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Key         string // shortcut outside the palette, if any
	// Active is true when the command only makes sense during a trip.
	Active bool
}

// Command names. Sub-mode commands share their sub-mode's name.
const (
	Start       = "start"
	Plan        = "plan"
	Choice      = "choice"
	Craving     = "craving"
	Serendipity = "serendipity"
	Rest        = "rest"
	Nearby      = "nearby"
	Chat        = "chat"
	Break       = "break"
	Quit        = "quit"
)

// DefaultCommands lists every command in display order.
func DefaultCommands() []Command {
	return []Command{
		{Name: Start, Aliases: []string{"activate", "go"}, Description: "Start today's trip day"},
		{Name: Choice, Aliases: []string{"recommend"}, Description: "Best picks for right now", Active: true},
		{Name: Craving, Aliases: []string{"hungry", "want"}, Description: "Find something specific", Key: "c", Active: true},
		{Name: Serendipity, Aliases: []string{"surprise", "random"}, Description: "Surprise me", Key: "z", Active: true},
		{Name: Nearby, Aliases: []string{"around"}, Description: "What's close", Active: true},
		{Name: Rest, Aliases: []string{"pause"}, Description: "Quiet mode while resting", Active: true},
		{Name: Chat, Description: "Talk it through", Active: true},
		{Name: Break, Aliases: []string{"coffee"}, Description: "I just took a break", Key: "b", Active: true},
		{Name: Plan, Aliases: []string{"stop", "deactivate"}, Description: "Back to planning", Active: true},
		{Name: Quit, Aliases: []string{"exit", "q"}, Description: "Exit", Key: "q"},
	}
}

// offered reports whether c belongs in the palette for the trip state.
func (c Command) offered(onTrip bool) bool {
	return c.Name == Quit || c.Active == onTrip
}

// rank scores how well c answers query; 0 means no match. Exact beats
// prefix beats substring, and the name beats an alias.
func (c Command) rank(query string) int {
	if query == "" {
		return 1
	}
	best := matchRank(c.Name, query) * 2
	for _, a := range c.Aliases {
		if r := matchRank(a, query) * 2; r > 1 {
			best = max(best, r-1)
		}
	}
	return best
}

func matchRank(s, query string) int {
	s = strings.ToLower(s)
	switch {
	case s == query:
		return 3
	case strings.HasPrefix(s, query):
		return 2
	case strings.Contains(s, query):
		return 1
	default:
		return 0
	}
}

var paletteBox = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("#30363d")).
	Background(lipgloss.Color("#161b22")).
	Padding(0, 1)

var paletteItem = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#c9d1d9")).
	Padding(0, 1)

var paletteSelected = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#58a6ff")).
	Background(lipgloss.Color("#21262d")).
	Bold(true).
	Padding(0, 1)

var paletteKey = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#484f58")).
	Background(lipgloss.Color("#21262d")).
	Padding(0, 1)

var (
	paletteDesc    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8b949e"))
	paletteCurrent = lipgloss.NewStyle().Foreground(lipgloss.Color("#3fb950")).Italic(true)
	paletteRule    = lipgloss.NewStyle().Foreground(lipgloss.Color("#30363d"))
)

// Palette is the command picker. It is a value type; Update returns the
// next state.
type Palette struct {
	input    textinput.Model
	commands []Command
	shown    []Command
	cursor   int
	width    int
	open     bool
	onTrip   bool
	current  string // sub-mode in effect when opened
}

// New returns a closed palette.
func New() Palette {
	ti := textinput.New()
	ti.Placeholder = "Type a command..."
	ti.Prompt = "/ "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#58a6ff")).Bold(true)
	ti.TextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#c9d1d9"))
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#58a6ff"))
	ti.CharLimit = 32

	p := Palette{input: ti, commands: DefaultCommands()}
	p.refilter()
	return p
}

// Activate opens the palette. onTrip selects which commands are offered and
// current names the sub-mode to mark, if any.
func (p *Palette) Activate(onTrip bool, current string) tea.Cmd {
	p.open = true
	p.onTrip = onTrip
	p.current = current
	p.cursor = 0
	p.input.SetValue("")
	p.input.Focus()
	p.refilter()
	return textinput.Blink
}

// Deactivate closes the palette.
func (p *Palette) Deactivate() {
	p.open = false
	p.input.Blur()
}

func (p Palette) IsActive() bool { return p.open }

func (p *Palette) SetWidth(w int) {
	p.width = w
	p.input.Width = w - 10
}

// Filtered returns the commands currently on offer, best match first.
func (p Palette) Filtered() []Command { return p.shown }

// SelectedCommand returns the highlighted command name, or "" when nothing
// matches.
func (p Palette) SelectedCommand() string {
	if p.cursor < len(p.shown) {
		return p.shown[p.cursor].Name
	}
	return ""
}

// Update handles input. The returned string is the chosen command, set only
// when the user pressed enter.
func (p Palette) Update(msg tea.Msg) (Palette, tea.Cmd, string) {
	if !p.open {
		return p, nil, ""
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			p.Deactivate()
			return p, nil, ""
		case "enter":
			chosen := p.SelectedCommand()
			p.Deactivate()
			return p, nil, chosen
		case "up", "ctrl+p":
			p.cursor = max(p.cursor-1, 0)
			return p, nil, ""
		case "down", "ctrl+n":
			p.cursor = min(p.cursor+1, max(len(p.shown)-1, 0))
			return p, nil, ""
		case "tab":
			if name := p.SelectedCommand(); name != "" {
				p.input.SetValue(name)
				p.input.CursorEnd()
				p.refilter()
			}
			return p, nil, ""
		}
	}

	before := p.input.Value()
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	if p.input.Value() != before {
		p.refilter()
	}
	return p, cmd, ""
}

// refilter rebuilds the offered list for the current query. The sort is
// stable so equal ranks keep display order.
func (p *Palette) refilter() {
	query := strings.ToLower(strings.TrimSpace(p.input.Value()))

	type ranked struct {
		cmd  Command
		rank int
	}
	var hits []ranked
	for _, c := range p.commands {
		if !c.offered(p.onTrip) {
			continue
		}
		if r := c.rank(query); r > 0 {
			hits = append(hits, ranked{c, r})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].rank > hits[j].rank })

	shown := make([]Command, 0, len(hits))
	for _, h := range hits {
		shown = append(shown, h.cmd)
	}
	p.shown = shown
	p.cursor = min(p.cursor, max(len(p.shown)-1, 0))
}

// View renders the palette, or "" when closed.
func (p Palette) View() string {
	if !p.open {
		return ""
	}

	var b strings.Builder
	b.WriteString(p.input.View())
	b.WriteString("\n")
	b.WriteString(paletteRule.Render(strings.Repeat("─", max(p.width-8, 0))))
	b.WriteString("\n")

	if len(p.shown) == 0 {
		b.WriteString(paletteDesc.Render("  no matching command"))
	}
	for i, c := range p.shown {
		line := c.Name + "  " + paletteDesc.Render(c.Description)
		if c.Key != "" {
			line += " " + paletteKey.Render(c.Key)
		}
		if c.Name == p.current {
			line += " " + paletteCurrent.Render("current")
		}
		if i == p.cursor {
			b.WriteString(paletteSelected.Render("▸ " + line))
		} else {
			b.WriteString(paletteItem.Render("  " + line))
		}
		if i < len(p.shown)-1 {
			b.WriteString("\n")
		}
	}
	return paletteBox.Width(max(p.width-4, 20)).Render(b.String())
}
