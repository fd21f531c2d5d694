package cli

import (
	"context"
	"time"

	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/platform/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var watchCmd = &cobra.Command{
	Use:   "watch [feed...]",
	Short: "Keep feeds refreshed and serve their state, health and metrics",
	Long: "watch starts the given feeds (all configured feeds by default), refreshes " +
		"each one every feed.refresh_interval and serves /feeds/{name}, /healthz and " +
		"/metrics on metrics.port until interrupted.",
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	names := args
	if len(names) == 0 {
		names = app.cfg.FeedNames()
	}

	feeds := make(map[string]Feed, len(names))
	defer func() {
		for _, f := range feeds {
			f.Close()
		}
	}()
	for _, name := range names {
		f, err := app.NewFeed(name, nil)
		if err != nil {
			return err
		}
		feeds[name] = f
	}

	g, ctx := errgroup.WithContext(cmd.Context())

	router := metrics.NewRouter(app.metrics.Registry, lookupFeeds(feeds), app.logger)
	srv := metrics.NewServer(app.cfg.Metrics.Port, router, app.logger)
	g.Go(func() error { return srv.Run(ctx) })

	for name, f := range feeds {
		f := f
		f.Start()
		app.logger.Info("Watching feed", zap.String("feed", name), zap.Duration("refresh_interval", app.cfg.Feed.RefreshInterval))
		g.Go(func() error {
			refreshLoop(ctx, f, app.cfg.Feed.RefreshInterval)
			return nil
		})
	}

	return g.Wait()
}

// lookupFeeds serves typed feed states. feeds is not modified once serving
// starts.
func lookupFeeds(feeds map[string]Feed) metrics.FeedLookup {
	return func(name string) (any, bool) {
		f, ok := feeds[name]
		if !ok {
			return nil, false
		}
		return f.Snapshot().State, true
	}
}

// refreshLoop reloads f from page 1 on every tick until ctx is done.
func refreshLoop(ctx context.Context, f Feed, interval time.Duration) {
	if interval <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.Refresh()
		}
	}
}
