// Command tripctl is the maintenance CLI for the companion: it scores a trip
// day without the TUI, inspects and resets what the companion has learned,
// and reads the event log.
//
// Usage:
//
//	tripctl score trip.json --day 2 --lat 48.86 --lng 2.33   Rank a day from a position
//	tripctl learning                                          Category counters
//	tripctl cooldowns --prune 72h                             Trigger cooldown stamps
//	tripctl reset                                             Forget learning and cooldowns
//	tripctl events --tail 100 --kind trigger                  JSONL event log viewer
//	tripctl store keys                                        Raw store contents
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abelbrown/companion/internal/app"
	"github.com/abelbrown/companion/internal/config"
	"github.com/abelbrown/companion/internal/store"
)

var configPath string

func main() {
	if err := newRoot().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "tripctl:", err)
		os.Exit(1)
	}
}

func newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:          "tripctl",
		Short:        "Companion debug and maintenance CLI",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ~/.companion/config.json)")

	root.AddCommand(
		newScoreCmd(),
		newLearningCmd(),
		newCooldownsCmd(),
		newResetCmd(),
		newEventsCmd(),
		newStoreCmd(),
	)
	return root
}

// loadConfig reads .env and the config file the same way the TUI does.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if configPath != "" {
		return config.LoadFrom(configPath)
	}
	return config.Load()
}

// openStore opens the configured store. Callers must call the returned closer.
func openStore(ctx context.Context, cfg *config.Config) (store.KV, func() error, error) {
	kv, closeKV, err := app.OpenStore(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return kv, closeKV, nil
}
