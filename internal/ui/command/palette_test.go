package command

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func names(cmds []Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.Name
	}
	return out
}

func typeText(p Palette, s string) Palette {
	for _, r := range s {
		p, _, _ = p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return p
}

func TestPaletteOffersCommandsForMode(t *testing.T) {
	p := New()

	p.Activate(false, "")
	got := names(p.Filtered())
	if len(got) != 2 || got[0] != Start || got[1] != Quit {
		t.Errorf("planning commands = %v, want [start quit]", got)
	}

	p.Activate(true, "")
	for _, c := range p.Filtered() {
		if c.Name == Start {
			t.Error("start should not be offered during a trip")
		}
	}
	if len(p.Filtered()) != 9 {
		t.Errorf("trip commands = %d, want 9", len(p.Filtered()))
	}
}

func TestPaletteFilterMatchesAliases(t *testing.T) {
	p := New()
	p.Activate(true, "")
	p = typeText(p, "surp")

	got := names(p.Filtered())
	if len(got) != 1 || got[0] != Serendipity {
		t.Fatalf("filtered = %v, want [serendipity]", got)
	}

	p, _, chosen := p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if chosen != Serendipity {
		t.Errorf("chosen = %q, want serendipity", chosen)
	}
	if p.IsActive() {
		t.Error("enter should close the palette")
	}
}

func TestPaletteEscapeCancels(t *testing.T) {
	p := New()
	p.Activate(true, "")
	p, _, chosen := p.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if chosen != "" || p.IsActive() {
		t.Errorf("esc: chosen=%q active=%v", chosen, p.IsActive())
	}
}

func TestPaletteCursorStaysInRange(t *testing.T) {
	p := New()
	p.Activate(true, "")
	for i := 0; i < 20; i++ {
		p, _, _ = p.Update(tea.KeyMsg{Type: tea.KeyDown})
	}
	if p.SelectedCommand() != Quit {
		t.Errorf("selected = %q, want the last command", p.SelectedCommand())
	}
	p = typeText(p, "zzz")
	if p.SelectedCommand() != "" {
		t.Errorf("no match should select nothing, got %q", p.SelectedCommand())
	}
	if p.View() == "" {
		t.Error("active palette should render")
	}
}

func TestInactivePaletteIgnoresInput(t *testing.T) {
	p := New()
	p, _, chosen := p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if chosen != "" || p.View() != "" {
		t.Error("inactive palette should do nothing")
	}
}

func TestPaletteRanksPrefixAndNameFirst(t *testing.T) {
	p := New()
	p.Activate(true, "")
	p = typeText(p, "re")

	got := names(p.Filtered())
	want := []string{Rest, Choice, Serendipity, Break}
	if len(got) != len(want) {
		t.Fatalf("filtered = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("filtered = %v, want %v", got, want)
			break
		}
	}
}

func TestPaletteMarksCurrentSubMode(t *testing.T) {
	p := New()
	p.SetWidth(80)
	p.Activate(true, Craving)
	if !strings.Contains(p.View(), "current") {
		t.Error("the active sub-mode should be marked")
	}

	p.Activate(true, "")
	if strings.Contains(p.View(), "current") {
		t.Error("nothing to mark without a sub-mode")
	}
}

func TestPaletteTabCompletes(t *testing.T) {
	p := New()
	p.Activate(true, "")
	p = typeText(p, "hun")
	p, _, _ = p.Update(tea.KeyMsg{Type: tea.KeyTab})

	got := names(p.Filtered())
	if len(got) != 1 || got[0] != Craving {
		t.Errorf("after tab filtered = %v, want [craving]", got)
	}
}
