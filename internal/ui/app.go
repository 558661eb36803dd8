package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/companion/internal/companion"
	"github.com/abelbrown/companion/internal/mode"
	"github.com/abelbrown/companion/internal/model"
	"github.com/abelbrown/companion/internal/otel"
	"github.com/abelbrown/companion/internal/ui/command"
)

// Config wires the App to the engine.
type Config struct {
	// Post hands an event to the engine queue. It must not block.
	Post   func(companion.Event) bool
	TripID string

	Ring    *otel.RingBuffer // optional, feeds the debug overlay
	TopN    int              // picks shown; 0 shows all the engine sends
	Compact bool             // one line per item
}

type pane int

const (
	panePicks pane = iota
	paneInbox
)

// App is the root Bubble Tea model.
// IMPORTANT: App does NOT hold the engine. It posts events and receives
// snapshots via messages.
type App struct {
	post    func(companion.Event) bool
	tripID  string
	ring    *otel.RingBuffer
	topN    int
	compact bool

	snap   companion.Snapshot
	loaded bool

	focus  pane
	cursor [2]int

	palette   command.Palette
	prompt    textinput.Model
	prompting bool
	help      help.Model
	debug     bool

	notice string
	err    error
	width  int
	height int
	ready  bool
}

// NewApp creates a new App.
func NewApp(cfg Config) App {
	ti := textinput.New()
	ti.Placeholder = "ramen, rooftop bar, bookshop..."
	ti.Prompt = "craving: "
	ti.CharLimit = 64

	return App{
		post:    cfg.Post,
		tripID:  cfg.TripID,
		ring:    cfg.Ring,
		topN:    cfg.TopN,
		compact: cfg.Compact,
		palette: command.New(),
		prompt:  ti,
		help:    help.New(),
	}
}

// Init asks the engine for a first snapshot.
func (a App) Init() tea.Cmd {
	return a.send(companion.Tick{})
}

// send posts ev from a command so Update never blocks on the engine.
func (a App) send(ev companion.Event) tea.Cmd {
	if a.post == nil {
		return nil
	}
	post := a.post
	return func() tea.Msg {
		return posted{Event: ev.Name(), Queued: post(ev)}
	}
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.palette.SetWidth(msg.Width)
		a.prompt.Width = max(msg.Width-16, 10)
		a.help.Width = msg.Width
		return a, nil

	case SnapshotMsg:
		a.applySnapshot(msg.Snapshot)
		return a, nil

	case EventFailed:
		a.err = fmt.Errorf("%s: %w", msg.Event, msg.Err)
		return a, nil

	case posted:
		if !msg.Queued {
			a.err = fmt.Errorf("companion is busy, %s was dropped", msg.Event)
		}
		return a, nil
	}

	if a.palette.IsActive() {
		var cmd tea.Cmd
		var chosen string
		a.palette, cmd, chosen = a.palette.Update(msg)
		if chosen != "" {
			return a.runCommand(chosen)
		}
		return a, cmd
	}

	if a.prompting {
		return a.updatePrompt(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		return a.handleKeyMsg(msg)
	}
	return a, nil
}

func (a *App) applySnapshot(s companion.Snapshot) {
	a.snap = s
	a.loaded = true
	a.cursor[panePicks] = clamp(a.cursor[panePicks], len(a.picks()))
	a.cursor[paneInbox] = clamp(a.cursor[paneInbox], len(s.Messages))

	if s.Selected == "" {
		return
	}
	for _, r := range s.Ranked {
		if r.Activity.ID == s.Selected {
			a.notice = "Heading to " + r.Activity.Name
			return
		}
	}
}

func clamp(i, n int) int {
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a.err = nil
	a.notice = ""

	if a.debug {
		switch {
		case key.Matches(msg, keys.Debug):
			a.debug = false
		case key.Matches(msg, keys.Quit):
			return a, tea.Quit
		}
		return a, nil
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return a, tea.Quit

	case key.Matches(msg, keys.Help):
		a.help.ShowAll = !a.help.ShowAll

	case key.Matches(msg, keys.Debug):
		a.debug = true

	case key.Matches(msg, keys.Command):
		cmd := a.palette.Activate(a.onTrip(), string(a.snap.Mode.SubMode))
		return a, cmd

	case key.Matches(msg, keys.Focus):
		if a.focus == panePicks {
			a.focus = paneInbox
		} else {
			a.focus = panePicks
		}

	case key.Matches(msg, keys.Down):
		if a.cursor[a.focus] < a.paneLen()-1 {
			a.cursor[a.focus]++
		}

	case key.Matches(msg, keys.Up):
		if a.cursor[a.focus] > 0 {
			a.cursor[a.focus]--
		}

	case key.Matches(msg, keys.Top):
		a.cursor[a.focus] = 0

	case key.Matches(msg, keys.Bottom):
		a.cursor[a.focus] = max(a.paneLen()-1, 0)

	case key.Matches(msg, keys.Enter):
		if m, ok := a.currentMessage(); ok {
			return a, a.send(companion.Act{MessageID: m.ID})
		}
		if p, ok := a.currentPick(); ok {
			return a, a.send(companion.Select{ActivityID: p.Activity.ID})
		}

	case key.Matches(msg, keys.Dismiss):
		if m, ok := a.currentMessage(); ok {
			return a, a.send(companion.Dismiss{MessageID: m.ID})
		}

	case key.Matches(msg, keys.NotInterested):
		if p, ok := a.currentPick(); ok {
			a.notice = "Won't suggest " + p.Activity.Name + " again"
			return a, a.send(companion.NotInterested{ActivityID: p.Activity.ID})
		}

	case key.Matches(msg, keys.Done):
		if p, ok := a.currentPick(); ok {
			return a, a.send(companion.SetStatus{ActivityID: p.Activity.ID, Status: model.StatusCompleted})
		}

	case key.Matches(msg, keys.Skip):
		if p, ok := a.currentPick(); ok {
			return a, a.send(companion.SetStatus{ActivityID: p.Activity.ID, Status: model.StatusSkipped})
		}

	case key.Matches(msg, keys.Craving):
		if a.onTrip() {
			return a.openPrompt()
		}

	case key.Matches(msg, keys.Surprise):
		if a.onTrip() {
			return a, a.send(companion.Surprise{})
		}

	case key.Matches(msg, keys.Break):
		if a.onTrip() {
			a.notice = "Break noted"
			return a, a.send(companion.TakeBreak{})
		}
	}

	return a, nil
}

// runCommand performs a palette choice.
func (a App) runCommand(name string) (tea.Model, tea.Cmd) {
	switch name {
	case command.Start:
		return a, a.send(companion.Activate{TripID: a.tripID})
	case command.Plan:
		return a, a.send(companion.Deactivate{})
	case command.Craving:
		return a.openPrompt()
	case command.Serendipity:
		return a, a.send(companion.Surprise{})
	case command.Break:
		a.notice = "Break noted"
		return a, a.send(companion.TakeBreak{})
	case command.Quit:
		return a, tea.Quit
	default:
		return a, a.send(companion.SwitchMode{To: mode.SubMode(name)})
	}
}

func (a App) openPrompt() (tea.Model, tea.Cmd) {
	a.prompting = true
	a.prompt.SetValue(a.snap.Transient.CravingQuery)
	a.prompt.CursorEnd()
	cmd := a.prompt.Focus()
	return a, cmd
}

func (a App) updatePrompt(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "esc":
			a.prompting = false
			a.prompt.Blur()
			return a, nil
		case "enter":
			a.prompting = false
			a.prompt.Blur()
			q := strings.TrimSpace(a.prompt.Value())
			if q == "" {
				return a, nil
			}
			a.focus = panePicks
			a.cursor[panePicks] = 0
			return a, a.send(companion.Craving{Query: q})
		}
	}
	var cmd tea.Cmd
	a.prompt, cmd = a.prompt.Update(msg)
	return a, cmd
}

func (a App) onTrip() bool {
	return a.snap.Mode.Mode == mode.Active
}

// picks is what the picks pane lists for the current sub-mode.
func (a App) picks() []model.EnrichedActivity {
	var out []model.EnrichedActivity
	switch a.snap.Mode.SubMode {
	case mode.Craving:
		out = a.snap.Transient.CravingMatches
	case mode.Serendipity:
		if a.snap.Transient.Serendipity != nil {
			out = []model.EnrichedActivity{*a.snap.Transient.Serendipity}
		}
	default:
		out = a.snap.Recommendations
	}
	if a.topN > 0 && len(out) > a.topN {
		out = out[:a.topN]
	}
	return out
}

func (a App) paneLen() int {
	if a.focus == paneInbox {
		return len(a.snap.Messages)
	}
	return len(a.picks())
}

func (a App) currentPick() (model.EnrichedActivity, bool) {
	picks := a.picks()
	i := a.cursor[panePicks]
	if a.focus != panePicks || i >= len(picks) {
		return model.EnrichedActivity{}, false
	}
	return picks[i], true
}

func (a App) currentMessage() (model.ProactiveMessage, bool) {
	i := a.cursor[paneInbox]
	if a.focus != paneInbox || i >= len(a.snap.Messages) {
		return model.ProactiveMessage{}, false
	}
	return a.snap.Messages[i], true
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}
	if a.debug {
		return debugOverlay(a.ring, a.width, a.height) + "\n" + debugStatusBar(a.width)
	}

	var b strings.Builder
	b.WriteString(RenderHeader(a.snap, a.width))
	b.WriteString("\n")

	if a.palette.IsActive() {
		b.WriteString(a.palette.View())
		b.WriteString("\n")
	} else {
		b.WriteString(RenderPicks(a.picksTitle(), a.picks(), a.cursor[panePicks], a.focus == panePicks, a.compact))
		if a.snap.Explanation != "" {
			b.WriteString(WhyNowText.Render(a.snap.Explanation))
			b.WriteString("\n")
		}
		b.WriteString(RenderInbox(a.snap.Messages, a.cursor[paneInbox], a.focus == paneInbox, a.compact))
	}

	switch {
	case a.prompting:
		b.WriteString(PromptBar.Width(a.width).Render(a.prompt.View()))
		b.WriteString("\n")
	case a.err != nil:
		b.WriteString(ErrorStyle.Width(a.width).Render("Error: " + a.err.Error() + " (press any key to dismiss)"))
		b.WriteString("\n")
	case a.notice != "":
		b.WriteString(NoticeStyle.Render(a.notice))
		b.WriteString("\n")
	}

	b.WriteString(StatusBar.Width(a.width).Render(a.help.View(keys)))
	return b.String()
}

func (a App) picksTitle() string {
	if !a.loaded {
		return "Waiting for the companion..."
	}
	switch a.snap.Mode.SubMode {
	case mode.Craving:
		return fmt.Sprintf("Craving %q", a.snap.Transient.CravingQuery)
	case mode.Serendipity:
		return "Surprise"
	case mode.Nearby:
		return "Close by"
	case mode.Rest:
		return "When you're ready"
	}
	if !a.onTrip() {
		return fmt.Sprintf("Day %d plan", a.snap.Day)
	}
	return "Right now"
}

// Focused reports which pane has the cursor (for testing).
func (a App) Focused() string {
	if a.focus == paneInbox {
		return "inbox"
	}
	return "picks"
}

// Cursor returns the cursor of the focused pane (for testing).
func (a App) Cursor() int {
	return a.cursor[a.focus]
}
