// Command companion is the terminal trip companion. It loads a trip,
// follows the traveler's location and weather, and shows what to do right
// now alongside proactive nudges.
//
// Usage:
//
//	companion trip.json                     Plan view; start the day from the "/" palette
//	companion trip.json --start             Start today's trip day immediately
//	companion trip.json --replay walk.json  Replay recorded GPS fixes
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/abelbrown/companion/internal/app"
	"github.com/abelbrown/companion/internal/companion"
	"github.com/abelbrown/companion/internal/config"
	"github.com/abelbrown/companion/internal/itinerary"
	"github.com/abelbrown/companion/internal/location"
	"github.com/abelbrown/companion/internal/logging"
	"github.com/abelbrown/companion/internal/ui"
)

type options struct {
	configPath     string
	replayPath     string
	replayInterval time.Duration
	start          bool
	day            int
	metricsAddr    string
}

func main() {
	var opts options
	root := &cobra.Command{
		Use:          "companion <trip.json>",
		Short:        "Proactive companion for an active trip",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], opts)
		},
	}
	f := root.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "Config file (default ~/.companion/config.json)")
	f.StringVarP(&opts.replayPath, "replay", "r", "", "JSON file of recorded location fixes to replay")
	f.DurationVar(&opts.replayInterval, "replay-interval", 30*time.Second, "Delay between replayed fixes")
	f.BoolVarP(&opts.start, "start", "s", false, "Start the trip day right away")
	f.IntVarP(&opts.day, "day", "d", 0, "Trip day to start (0 = today)")
	f.StringVar(&opts.metricsAddr, "metrics", "", "Serve Prometheus metrics on this address (overrides config)")

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, tripPath string, opts options) error {
	if err := config.LoadDotEnv(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}

	var cfg *config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.LoadFrom(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if opts.metricsAddr != "" {
		cfg.Engine.MetricsAddr = opts.metricsAddr
	}

	if err := logging.Init(config.Dir()); err != nil {
		return err
	}
	defer logging.Close()

	trip, err := itinerary.Load(tripPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := app.New(ctx, cfg, trip)
	if err != nil {
		return err
	}
	defer a.Close()

	var src location.Source
	if opts.replayPath != "" {
		replay, err := location.LoadReplay(opts.replayPath, opts.replayInterval)
		if err != nil {
			return err
		}
		src = replay.Restamp(time.Now)
	}

	if addr := cfg.Engine.MetricsAddr; addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           metricsMux(a),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("metrics server stopped", "addr", addr, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logging.Info("serving metrics", "addr", addr)
	}

	model := ui.NewApp(ui.Config{
		Post:    a.Engine.Post,
		TripID:  trip.ID,
		Ring:    a.Ring,
		TopN:    cfg.UI.TopN,
		Compact: cfg.UI.Compact,
	})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	a.Engine.OnSnapshot(func(s companion.Snapshot) {
		program.Send(ui.SnapshotMsg{Snapshot: s})
	})
	a.Engine.OnError(func(ev companion.Event, err error) {
		program.Send(ui.EventFailed{Event: ev.Name(), Err: err})
	})

	engineDone := make(chan error, 1)
	go func() {
		engineDone <- a.Engine.Run(ctx, a.Sources(src))
	}()

	if opts.start {
		a.Engine.Post(companion.Activate{TripID: trip.ID, Day: opts.day})
	}

	_, runErr := program.Run()

	// Graceful shutdown
	cancel()
	if err := <-engineDone; err != nil {
		logging.Error("engine stopped", "error", err)
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("run ui: %w", runErr)
	}
	return nil
}

func metricsMux(a *app.App) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
