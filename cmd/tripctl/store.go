package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/companion/internal/store"
)

// Optional KV capabilities. Only the SQLite store has them.
type keyLister interface {
	Keys() ([]store.Entry, error)
}

type keyDeleter interface {
	Delete(key string) error
}

func newStoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect the companion's key/value store",
	}
	cmd.AddCommand(newStoreKeysCmd(), newStoreShowCmd(), newStoreRmCmd())
	return cmd
}

func newStoreKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List stored keys, newest first",
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

			l, ok := kv.(keyLister)
			if !ok {
				return fmt.Errorf("storage driver %q cannot list keys", cfg.Storage.Driver)
			}
			entries, err := l.Keys()
			if err != nil {
				return err
			}
			printKeys(cmd.OutOrStdout(), entries, time.Now())
			return nil
		},
	}
}

func printKeys(w io.Writer, entries []store.Entry, now time.Time) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "Store is empty.")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%-40s %7d B  %s ago\n", truncate(e.Key, 40), e.Size,
			now.Sub(e.UpdatedAt).Round(time.Second))
	}
}

func newStoreShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <key>",
		Short: "Print the raw value stored under key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			kv, closeKV, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeKV()

			v, ok, err := kv.Get(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s: %w", args[0], store.ErrNotFound)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(v))
			return nil
		},
	}
}

func newStoreRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <key>...",
		Short: "Delete keys, e.g. a set-aside corrupt record",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			kv, closeKV, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeKV()

			d, ok := kv.(keyDeleter)
			if !ok {
				return fmt.Errorf("storage driver %q cannot delete keys", cfg.Storage.Driver)
			}
			w := cmd.OutOrStdout()
			for _, key := range args {
				switch err := d.Delete(key); {
				case errors.Is(err, store.ErrNotFound):
					fmt.Fprintf(w, "%s: not found\n", key)
				case err != nil:
					return err
				default:
					fmt.Fprintf(w, "Deleted %s\n", key)
				}
			}
			return nil
		},
	}
}
