package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/feed"
	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/port/cache"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errNoCache = errors.New("no page cache configured (cache.backend is none)")

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the page cache",
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge [feed...]",
	Short: "Drop cached pages of the given feeds (all configured feeds by default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		names := args
		if len(names) == 0 {
			names = app.cfg.FeedNames()
		}
		return app.purgeFeeds(cmd.Context(), names, cmd.OutOrStdout())
	},
}

func init() {
	cacheCmd.AddCommand(cachePurgeCmd)
}

func (a *App) purgeFeeds(ctx context.Context, names []string, out io.Writer) error {
	if a.cache == nil {
		return errNoCache
	}
	for _, name := range names {
		if _, ok := a.cfg.Feeds[name]; !ok {
			return fmt.Errorf("unknown feed %q (configured: %v)", name, a.cfg.FeedNames())
		}
		n, err := cache.Purge(ctx, a.cache, feed.PageCachePrefix(name))
		if err != nil {
			return fmt.Errorf("purge %s: %w", name, err)
		}
		a.logger.Info("Feed cache purged", zap.String("feed", name), zap.Int("pages", n))
		fmt.Fprintf(out, "%s: %d cached pages dropped\n", name, n)
	}
	return nil
}
