package cli

import (
	"fmt"
	"strings"

	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/entity"
	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/feed"
	"github.com/dustin/go-humanize"
)

// Feed is a synchronizer with its item type erased, so commands can drive
// any configured feed.
type Feed interface {
	Name() string
	Start()
	SetFilters(filters map[string]string) bool
	NearEnd()
	Refresh()
	Dismiss()
	Snapshot() Snapshot
	Close()
}

// Snapshot is a rendered feed state.
type Snapshot struct {
	Feed        string
	Status      feed.Status
	Filters     map[string]string
	Page        int
	Items       int
	TotalCount  int
	HasNextPage bool
	Err         string
	Generation  uint64
	// Fresh is set when the current page was requested within the cache
	// freshness window.
	Fresh bool
	// User is the session owner, when the token names one.
	User string
	Rows []string
	// State is the typed feed.State, for JSON output.
	State any
}

func (s Snapshot) InFlight() bool {
	return s.Status == feed.StatusFetchingFirstPage || s.Status == feed.StatusFetchingNextPage
}

type runner[T feed.Item] struct {
	*feed.Synchronizer[T]
	render func(T) string
	// fresh and user are optional.
	fresh func(feed.Query) bool
	user  func() string
}

func (r *runner[T]) Snapshot() Snapshot {
	return r.snapshot(r.State())
}

func (r *runner[T]) snapshot(st feed.State[T]) Snapshot {
	rows := make([]string, 0, len(st.Items))
	for _, it := range st.Items {
		rows = append(rows, r.render(it))
	}
	snap := Snapshot{
		Feed:        r.Name(),
		Status:      st.Status,
		Filters:     st.Query.Filters,
		Page:        st.Page,
		Items:       len(st.Items),
		TotalCount:  st.TotalCount,
		HasNextPage: st.HasNextPage,
		Err:         st.Err,
		Generation:  st.Generation,
		Rows:        rows,
		State:       st,
	}
	if r.fresh != nil && st.Page > 0 {
		snap.Fresh = r.fresh(st.Query.WithPage(st.Page))
	}
	if r.user != nil {
		snap.User = r.user()
	}
	return snap
}

func renderListing(l entity.Listing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s · %d rooms · %s", l.Title, l.Rooms, humanize.CommafWithDigits(l.Price, 2))
	if l.City != "" {
		b.WriteString(" · " + l.City)
	}
	if l.Distance > 0 {
		fmt.Fprintf(&b, " · %s km", humanize.FtoaWithDigits(l.Distance, 1))
	}
	return b.String()
}

func renderMatch(m entity.Match) string {
	s := fmt.Sprintf("%s · %.0f%% match", m.Title, m.Score*100)
	if !m.MatchedAt.IsZero() {
		s += " · " + humanize.Time(m.MatchedAt)
	}
	return s
}

func renderOffer(o entity.Offer) string {
	s := fmt.Sprintf("%s %s · %s", humanize.CommafWithDigits(o.Amount, 2), o.Currency, o.Status)
	if !o.CreatedAt.IsZero() {
		s += " · " + humanize.Time(o.CreatedAt)
	}
	return strings.Join(strings.Fields(s), " ")
}

// renderSnapshot prints a screen-like view of the feed.
func renderSnapshot(s Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s · page %d · %d of %s items", s.Feed, s.Status, s.Page, s.Items, humanize.Comma(int64(s.TotalCount)))
	if s.HasNextPage {
		b.WriteString(" · more available")
	}
	if s.Fresh {
		b.WriteString(" · fresh")
	}
	if s.User != "" {
		b.WriteString(" · as " + s.User)
	}
	b.WriteString("\n")
	for i, row := range s.Rows {
		fmt.Fprintf(&b, "%4d. %s\n", i+1, row)
	}
	switch {
	case s.Err != "":
		fmt.Fprintf(&b, "! %s (r = retry, d = dismiss)\n", s.Err)
	case s.Status == feed.StatusFetchingFirstPage:
		b.WriteString("… loading\n")
	case s.Status == feed.StatusFetchingNextPage:
		b.WriteString("… loading more\n")
	case s.Items == 0:
		b.WriteString("(empty)\n")
	}
	return b.String()
}
