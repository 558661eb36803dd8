package ui

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/companion/internal/companion"
	"github.com/abelbrown/companion/internal/mode"
	"github.com/abelbrown/companion/internal/model"
)

// RenderHeader renders the mode badge, trip day, place and weather.
func RenderHeader(s companion.Snapshot, width int) string {
	label := strings.ToUpper(string(s.Mode.Mode))
	if label == "" {
		label = strings.ToUpper(string(mode.Planning))
	}
	if s.Mode.SubMode != "" {
		label += " · " + string(s.Mode.SubMode)
	}

	parts := []string{ModeBadge.Render(label)}
	if s.Day > 0 {
		parts = append(parts, ContextText.Render(fmt.Sprintf("Day %d", s.Day)))
	}
	if l := s.Location; l != nil {
		place := l.City
		if place == "" {
			place = l.Coordinates.Key()
		}
		if l.IsMoving {
			place += " (moving)"
		}
		parts = append(parts, ContextText.Render(place))
		if !s.At.IsZero() {
			parts = append(parts, ContextText.Render(s.At.In(l.Location()).Format("15:04")))
		}
	}
	if w := s.Weather; w != nil {
		parts = append(parts, ContextText.Render(FormatWeather(w)))
	}

	return lipgloss.NewStyle().MaxWidth(max(width, 1)).Render(strings.Join(parts, "  "))
}

// FormatWeather renders "18°C sunny" with a rain chance when it matters.
func FormatWeather(w *model.WeatherContext) string {
	s := fmt.Sprintf("%.0f°C %s", w.Temperature, w.Condition)
	if w.PrecipitationChance >= 30 {
		s += fmt.Sprintf(", %.0f%% rain", w.PrecipitationChance)
	}
	return s
}

// FormatDistance renders meters as "350 m" or "1.2 km".
func FormatDistance(m float64) string {
	if m < 1000 {
		return fmt.Sprintf("%.0f m", m)
	}
	return fmt.Sprintf("%.1f km", m/1000)
}

func header(title string, focused bool) string {
	if focused {
		return FocusedHeader.Render(title)
	}
	return SectionHeader.Render(title)
}

// RenderPicks renders ranked activities with their why-now reason.
func RenderPicks(title string, picks []model.EnrichedActivity, cursor int, focused, compact bool) string {
	var b strings.Builder
	b.WriteString(header(title, focused))
	b.WriteString("\n")

	if len(picks) == 0 {
		b.WriteString(HelpStyle.Render("Nothing to suggest right now."))
		b.WriteString("\n")
		return b.String()
	}

	for i := range picks {
		p := &picks[i]
		line := p.Activity.Name
		if p.DistanceMeters != nil {
			line += "  " + FormatDistance(*p.DistanceMeters)
		}
		if !compact {
			line = ScoreBadge.Render(fmt.Sprintf("%.2f", p.Score)) + line
		}

		style := NormalItem
		switch {
		case focused && i == cursor:
			style = SelectedItem
		case p.Activity.Done():
			style = DoneItem
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")

		if !compact && p.WhyNow.Primary.Text != "" {
			b.WriteString(WhyNowText.Render(truncateRunes(p.WhyNow.Primary.Text, 72)))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// RenderInbox renders proactive messages, highest priority first as given.
func RenderInbox(msgs []model.ProactiveMessage, cursor int, focused, compact bool) string {
	var b strings.Builder
	b.WriteString(header(fmt.Sprintf("Inbox (%d)", len(msgs)), focused))
	b.WriteString("\n")

	if len(msgs) == 0 {
		b.WriteString(HelpStyle.Render("All quiet."))
		b.WriteString("\n")
		return b.String()
	}

	for i := range msgs {
		m := &msgs[i]
		line := priorityMark(m.Priority) + " " + m.Message
		if m.Action != nil && m.Action.Label != "" {
			line += "  [" + m.Action.Label + "]"
		}
		style := NormalItem
		if focused && i == cursor {
			style = SelectedItem
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")

		if !compact && m.Detail != "" {
			b.WriteString(WhyNowText.Render(truncateRunes(m.Detail, 72)))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func priorityMark(p model.Priority) string {
	switch p {
	case model.PriorityUrgent:
		return PriorityUrgent.Render("!!")
	case model.PriorityHigh:
		return PriorityHigh.Render("! ")
	case model.PriorityMedium:
		return PriorityMedium.Render("• ")
	default:
		return PriorityLow.Render("· ")
	}
}

// truncateRunes shortens s to at most n runes, ending in "…" when cut.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

// formatAge formats a duration as a compact human string.
// Handles negative durations from clock skew by clamping to "0ms".
func formatAge(d time.Duration) string {
	if d < 0 {
		return "0ms"
	}
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
}
