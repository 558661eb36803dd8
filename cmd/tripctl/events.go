package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/companion/internal/app"
	"github.com/abelbrown/companion/internal/otel"
)

// eventFilter selects log lines. Empty fields match everything.
type eventFilter struct {
	Kind    string // kind prefix, e.g. "trigger"
	Level   string // minimum level
	Comp    string
	TripID  string
	Trigger string
}

func (f eventFilter) match(ev otel.Event) bool {
	if f.Kind != "" && !strings.HasPrefix(string(ev.Kind), f.Kind) {
		return false
	}
	if f.Level != "" && ev.Level.Rank() < otel.Level(f.Level).Rank() {
		return false
	}
	if f.Comp != "" && ev.Comp != f.Comp {
		return false
	}
	if f.TripID != "" && ev.TripID != f.TripID {
		return false
	}
	if f.Trigger != "" && ev.Trigger != f.Trigger {
		return false
	}
	return true
}

type eventLine struct {
	ev  otel.Event
	raw []byte
}

// decodeLine parses one JSONL record, restoring Dur from dur_ms.
func decodeLine(raw []byte) (otel.Event, bool) {
	var ev otel.Event
	if json.Unmarshal(raw, &ev) != nil {
		return ev, false
	}
	if ev.DurMs > 0 {
		ev.Dur = time.Duration(ev.DurMs * float64(time.Millisecond))
	}
	return ev, true
}

// tailEvents returns the last n matching records. Malformed lines are skipped.
func tailEvents(r io.Reader, n int, f eventFilter) ([]eventLine, error) {
	scanner := bufio.NewScanner(r)
	// Allow large lines (some events may have big Extra maps)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var ring []eventLine
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		ev, ok := decodeLine(raw)
		if !ok || !f.match(ev) {
			continue
		}
		line := eventLine{ev: ev, raw: append([]byte(nil), raw...)}
		if n > 0 && len(ring) == n {
			copy(ring, ring[1:])
			ring[n-1] = line
			continue
		}
		ring = append(ring, line)
	}
	return ring, scanner.Err()
}

func formatEvent(ev otel.Event) string {
	ts := ev.Time.Local().Format("15:04:05.000")
	lvl := strings.ToUpper(string(ev.Level))
	if lvl == "" {
		lvl = "?"
	}

	parts := []string{fmt.Sprintf("%s %-5s [%-9s] %-22s", ts, lvl, ev.Comp, ev.Kind)}

	if ev.Msg != "" {
		parts = append(parts, "- "+ev.Msg)
	}
	if ev.Dur > 0 {
		ms := float64(ev.Dur) / float64(time.Millisecond)
		parts = append(parts, fmt.Sprintf("(%.*fms)", durPrecision(ms), ms))
	}
	if ev.Count > 0 {
		parts = append(parts, fmt.Sprintf("n=%d", ev.Count))
	}
	if ev.Trigger != "" {
		parts = append(parts, "trigger="+ev.Trigger)
	}
	if ev.ActivityID != "" {
		parts = append(parts, "activity="+ev.ActivityID)
	}
	if ev.Category != "" {
		parts = append(parts, "cat="+ev.Category)
	}
	if ev.Err != "" {
		parts = append(parts, "err="+ev.Err)
	}
	return strings.Join(parts, " ")
}

func durPrecision(ms float64) int {
	if ms >= 100 {
		return 0
	}
	if ms >= 1 {
		return 1
	}
	return 2
}

func newEventsCmd() *cobra.Command {
	var (
		filter  eventFilter
		path    string
		tail    int
		follow  bool
		rawJSON bool
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "View the JSONL event log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				if _, err := loadConfig(); err != nil {
					return err
				}
				path = app.EventLogPath()
			}
			f, err := os.Open(path)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("event log not found at %s; run the companion first", path)
				}
				return err
			}
			defer f.Close()

			w := cmd.OutOrStdout()
			show := func(l eventLine) {
				if rawJSON {
					fmt.Fprintln(w, string(l.raw))
					return
				}
				fmt.Fprintln(w, formatEvent(l.ev))
			}

			lines, err := tailEvents(f, tail, filter)
			if err != nil {
				return err
			}
			for _, l := range lines {
				show(l)
			}
			if !follow {
				return nil
			}
			return followEvents(cmd.Context(), f, filter, show)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&path, "file", "", "Event log path (default ~/.companion/companion.events.jsonl)")
	fl.IntVarP(&tail, "tail", "n", 50, "Number of recent lines to show (0 = all)")
	fl.BoolVarP(&follow, "follow", "f", false, "Follow mode (like tail -f)")
	fl.StringVar(&filter.Kind, "kind", "", "Filter by event kind prefix (e.g. 'trigger')")
	fl.StringVar(&filter.Level, "level", "", "Minimum level: debug, info, warn, error")
	fl.StringVar(&filter.Comp, "comp", "", "Filter by component name")
	fl.StringVar(&filter.TripID, "trip", "", "Filter by trip ID")
	fl.StringVar(&filter.Trigger, "trigger", "", "Filter by trigger name")
	fl.BoolVar(&rawJSON, "json", false, "Output raw JSON lines")
	return cmd
}

// followEvents polls r for appended lines until ctx is cancelled.
func followEvents(ctx context.Context, r io.Reader, f eventFilter, show func(eventLine)) error {
	reader := bufio.NewReader(r)
	var pending []byte
	for {
		chunk, err := reader.ReadBytes('\n')
		pending = append(pending, chunk...)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return err
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		raw := []byte(strings.TrimRight(string(pending), "\r\n"))
		pending = pending[:0]
		if len(raw) == 0 {
			continue
		}
		if ev, ok := decodeLine(raw); ok && f.match(ev) {
			show(eventLine{ev: ev, raw: raw})
		}
	}
}
