package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/abelbrown/companion/internal/otel"
)

// debugPanelChrome is the number of terminal lines consumed by DebugPanel's
// border (top + bottom = 2) and vertical padding (top + bottom = 2).
// Must be updated if DebugPanel style changes.
const debugPanelChrome = 4

// debugOverlay renders the debug panel showing engine stats and recent events.
// Pure function with no side effects. Returns empty string if ring is nil.
func debugOverlay(ring *otel.RingBuffer, width, height int) string {
	if ring == nil {
		return ""
	}

	stats := ring.Stats()
	recent := ring.Last(20)

	var lines []string
	lines = append(lines, DebugHeaderStyle.Render("Engine Stats"))
	lines = append(lines, fmt.Sprintf("  Recomputes: %d, %d mode changes",
		stats[otel.KindRecompute], stats[otel.KindModeChange]))
	lines = append(lines, fmt.Sprintf("  Triggers:   %d fired, %d errors",
		stats[otel.KindTriggerFired], stats[otel.KindTriggerError]))
	lines = append(lines, fmt.Sprintf("  Inbox:      %d acted, %d dismissed",
		stats[otel.KindInboxAct], stats[otel.KindInboxDismiss]))
	lines = append(lines, fmt.Sprintf("  Context:    %d fixes, %d forecasts, %d errors",
		stats[otel.KindLocationFix], stats[otel.KindWeatherFetch],
		stats[otel.KindLocationErr]+stats[otel.KindWeatherError]))
	lines = append(lines, fmt.Sprintf("  Buffer:     %d / %d events (%d seen)", ring.Len(), ring.Cap(), ring.Seen()))
	if e, ok := ring.LastError(); ok {
		lines = append(lines, fmt.Sprintf("  Last error: %s %s, %s ago", e.Kind, truncateRunes(e.Err, 30), formatAge(time.Since(e.Time))))
	}
	lines = append(lines, "")

	lines = append(lines, DebugHeaderStyle.Render("Recent Events"))
	for _, e := range recent {
		line := fmt.Sprintf("  %6s  %-22s", formatAge(time.Since(e.Time)), string(e.Kind))
		if e.Trigger != "" {
			line += "  " + e.Trigger
		}
		if e.Msg != "" {
			line += "  " + truncateRunes(e.Msg, 40)
		}
		if e.Err != "" {
			line += "  ERR:" + truncateRunes(e.Err, 30)
		}
		lines = append(lines, line)
	}

	// Truncate to fit terminal height (subtract chrome added by DebugPanel border/padding)
	maxHeight := height - debugPanelChrome
	if maxHeight < 1 {
		maxHeight = 1
	}
	if len(lines) > maxHeight {
		lines = lines[:maxHeight]
	}

	panelWidth := 76
	if panelWidth > width-4 {
		panelWidth = width - 4
	}
	if panelWidth < 20 {
		panelWidth = 20
	}

	content := strings.Join(lines, "\n")
	return DebugPanel.Width(panelWidth).Render(content)
}

// debugStatusBar renders the status bar for the debug overlay.
func debugStatusBar(width int) string {
	hint := StatusBarKey.Render("D") + StatusBarText.Render(":close")
	return StatusBar.Width(width).Render("  [DEBUG]  " + hint)
}
