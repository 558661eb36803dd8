package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/companion/internal/app"
	"github.com/abelbrown/companion/internal/config"
	"github.com/abelbrown/companion/internal/learning"
	"github.com/abelbrown/companion/internal/otel"
)

func newLearningCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "learning",
		Short: "Show per-category suggestion counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			kv, closeKV, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeKV()

			ls := learning.New(kv, cfg.LearningPolicy())
			data := ls.Snapshot()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(data)
			}
			printLearning(cmd.OutOrStdout(), data, ls)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw learning record")
	return cmd
}

func printLearning(w io.Writer, data learning.Data, ls *learning.Store) {
	fmt.Fprintf(w, "Shown:          %d\n", data.TotalShown)
	fmt.Fprintf(w, "Clicked:        %d\n", data.TotalClicked)
	fmt.Fprintf(w, "Dismissed:      %d\n", data.TotalDismissed)
	if !data.LastSuggestion.IsZero() {
		fmt.Fprintf(w, "Last nudge:     %s\n", data.LastSuggestion.Local().Format("Jan 2 15:04"))
	}
	fmt.Fprintf(w, "Not interested: %d\n", len(data.NotInterested))

	if len(data.Categories) == 0 {
		fmt.Fprintln(w, "\nNo categories yet.")
		return
	}

	names := make([]string, 0, len(data.Categories))
	for name := range data.Categories {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(w, "\n%-16s %6s %8s %10s %9s\n", "CATEGORY", "SHOWN", "CLICKED", "DISMISSED", "INTEREST")
	for _, name := range names {
		c := data.Categories[name]
		mark := ""
		if ls.ShouldSuppress(name) {
			mark = "  suppressed"
		}
		fmt.Fprintf(w, "%-16s %6d %8d %10d %9.2f%s\n",
			truncate(name, 16), c.Shown, c.Clicked, c.Dismissed, ls.InterestLevel(name), mark)
	}
}

func newCooldownsCmd() *cobra.Command {
	var prune time.Duration
	cmd := &cobra.Command{
		Use:   "cooldowns",
		Short: "List trigger cooldown stamps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			kv, closeKV, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeKV()

			cd := learning.NewCooldowns(kv)
			now := time.Now()
			w := cmd.OutOrStdout()
			if prune > 0 {
				n := cd.Prune(now, prune)
				fmt.Fprintf(w, "Pruned %d stamps older than %s\n", n, prune)
			}
			printCooldowns(w, cd.List(), now)
			return nil
		},
	}
	cmd.Flags().DurationVar(&prune, "prune", 0, "Drop stamps older than this before listing")
	return cmd
}

func printCooldowns(w io.Writer, entries []learning.Entry, now time.Time) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No cooldowns recorded.")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%-40s %s  (%s ago)\n", truncate(e.Key, 40),
			e.LastFired.Local().Format("Jan 2 15:04"), now.Sub(e.LastFired).Round(time.Minute))
	}
}

func newResetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget learned preferences and trigger cooldowns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("reset erases all learning; pass --yes to confirm")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			kv, closeKV, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeKV()

			learning.New(kv, cfg.LearningPolicy()).Reset()
			learning.NewCooldowns(kv).Reset()
			recordReset(cfg)

			fmt.Fprintln(cmd.OutOrStdout(), "Learning and cooldowns cleared.")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the reset")
	return cmd
}

// recordReset appends a learning.reset event so the log explains the gap.
func recordReset(cfg *config.Config) {
	if !cfg.Engine.EventLog {
		return
	}
	f, err := os.OpenFile(app.EventLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return
	}
	defer f.Close()
	l := otel.NewLogger(f)
	l.Emit(otel.Event{Kind: otel.KindLearningReset, Comp: "tripctl"})
	l.Close()
}

// truncate shortens a string to max runes, appending "..." if truncated.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
