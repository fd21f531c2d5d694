package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/config"
	"github.com/spf13/cobra"
)

const browseHelp = `commands:
  n, more        load the next page
  r              refresh from page 1
  f k=v ...      change filters (k= clears a key)
  d              dismiss the current error
  s              show the feed again
  q              quit
`

var browseFilters []string

var browseCmd = &cobra.Command{
	Use:   "browse <feed>",
	Short: "Browse a feed interactively",
	Long: "browse starts a feed and reads commands from stdin. The view is redrawn " +
		"whenever the feed changes.",
	Args: cobra.ExactArgs(1),
	RunE: runBrowse,
}

func init() {
	browseCmd.Flags().StringArrayVar(&browseFilters, "filter", nil, "initial filter as key=value (repeatable)")
}

func runBrowse(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	out := &lockedWriter{w: cmd.OutOrStdout()}
	f, err := app.NewFeed(args[0], func(s Snapshot) {
		out.Write([]byte(renderSnapshot(s)))
	})
	if err != nil {
		return err
	}
	defer f.Close()

	if err := startWithFilters(f, browseFilters); err != nil {
		return err
	}
	fmt.Fprint(out, browseHelp)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(cmd.InOrStdin())
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := handleCommand(f, line, out)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			if quit {
				return nil
			}
		}
	}
}

// handleCommand applies one browse command to f.
func handleCommand(f Feed, line string, out io.Writer) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	switch fields[0] {
	case "n", "more":
		f.NearEnd()
	case "r":
		f.Refresh()
	case "f":
		if len(fields) < 2 {
			return false, errors.New("usage: f key=value ...")
		}
		next, err := config.ParseFilters(fields[1:])
		if err != nil {
			return false, err
		}
		if !f.SetFilters(mergeFilters(f.Snapshot().Filters, next)) {
			fmt.Fprintln(out, "filters unchanged")
		}
	case "d":
		f.Dismiss()
	case "s":
		fmt.Fprint(out, renderSnapshot(f.Snapshot()))
	case "q", "quit":
		return true, nil
	case "h", "help", "?":
		fmt.Fprint(out, browseHelp)
	default:
		return false, fmt.Errorf("unknown command %q", fields[0])
	}
	return false, nil
}

// startWithFilters loads page 1, applying extra key=value filters first.
// A filter change already requests page 1, so Start is only needed otherwise.
func startWithFilters(f Feed, pairs []string) error {
	if len(pairs) > 0 {
		filters, err := config.ParseFilters(pairs)
		if err != nil {
			return err
		}
		if f.SetFilters(mergeFilters(f.Snapshot().Filters, filters)) {
			return nil
		}
	}
	f.Start()
	return nil
}

// mergeFilters applies next over current. An empty value removes the key.
func mergeFilters(current, next map[string]string) map[string]string {
	merged := make(map[string]string, len(current)+len(next))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range next {
		if v == "" {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	return merged
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
