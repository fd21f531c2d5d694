package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/feed"
	"github.com/spf13/cobra"
)

var (
	fetchPages   int
	fetchFilters []string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <feed>",
	Short: "Load pages of a feed and print the merged state as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runFetch,
}

func init() {
	fetchCmd.Flags().IntVar(&fetchPages, "pages", 1, "number of pages to load")
	fetchCmd.Flags().StringArrayVar(&fetchFilters, "filter", nil, "filter as key=value (repeatable)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	if fetchPages < 1 {
		return fmt.Errorf("--pages must be at least 1, got %d", fetchPages)
	}
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	changed := make(chan struct{}, 1)
	f, err := app.NewFeed(args[0], func(Snapshot) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}
	defer f.Close()

	snap, err := loadPages(cmd.Context(), f, fetchPages, fetchFilters, changed)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap.State); err != nil {
		return fmt.Errorf("encode feed state: %w", err)
	}
	if snap.Status == feed.StatusError {
		return fmt.Errorf("feed %s: %s", snap.Feed, snap.Err)
	}
	return nil
}

// loadPages starts f and asks for more pages until pages are loaded, the
// feed runs out or a request fails. changed must be signalled on every
// feed change.
func loadPages(ctx context.Context, f Feed, pages int, filters []string, changed <-chan struct{}) (Snapshot, error) {
	if err := startWithFilters(f, filters); err != nil {
		return Snapshot{}, err
	}
	for {
		snap, err := waitSettled(ctx, f, changed)
		if err != nil {
			return snap, err
		}
		if snap.Status == feed.StatusError || !snap.HasNextPage || snap.Page >= pages {
			return snap, nil
		}
		f.NearEnd()
	}
}

func waitSettled(ctx context.Context, f Feed, changed <-chan struct{}) (Snapshot, error) {
	for {
		snap := f.Snapshot()
		if !snap.InFlight() {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return snap, errors.Join(errors.New("interrupted while loading"), ctx.Err())
		case <-changed:
		}
	}
}
