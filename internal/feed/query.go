package feed

import (
	"net/url"
	"strconv"
)

// DefaultPageSize is used when a query does not specify one.
const DefaultPageSize = 20

// Well-known filter keys. Filters are free-form, these are the ones the
// marketplace feeds understand.
const (
	FilterLocation      = "location"
	FilterRadius        = "radius"
	FilterSortBy        = "sortBy"
	FilterSortDirection = "sortDirection"
	FilterMatchOnly     = "matchOnly"
	FilterSearch        = "search"
)

// Query is the parameter set identifying one paginated request.
type Query struct {
	Filters  map[string]string `json:"filters,omitempty"`
	Page     int               `json:"page"`
	PageSize int               `json:"pageSize"`
}

// NewQuery builds a page-1 query with a copy of filters.
func NewQuery(filters map[string]string, pageSize int) Query {
	return Query{Filters: cloneFilters(filters), Page: 1, PageSize: pageSize}.Normalize(DefaultPageSize)
}

// Normalize clamps the page to 1 and fills in the page size.
func (q Query) Normalize(defaultPageSize int) Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		if defaultPageSize <= 0 {
			defaultPageSize = DefaultPageSize
		}
		q.PageSize = defaultPageSize
	}
	return q
}

// WithPage returns a copy of q pointing at page.
func (q Query) WithPage(page int) Query {
	out := q.Clone()
	if page < 1 {
		page = 1
	}
	out.Page = page
	return out
}

// WithFilters returns a copy of q with filters replaced. The page drops back
// to 1 whenever the identity changes.
func (q Query) WithFilters(filters map[string]string) Query {
	out := q.Clone()
	out.Filters = cloneFilters(filters)
	if out.Identity() != q.Identity() {
		out.Page = 1
	}
	return out
}

// Clone returns a deep copy.
func (q Query) Clone() Query {
	q.Filters = cloneFilters(q.Filters)
	return q
}

// Identity renders every field except the page number. Empty filter values
// count as absent and key order does not matter.
func (q Query) Identity() string {
	return q.values(false).Encode()
}

// SameIdentity reports whether q and other differ only by page number.
func (q Query) SameIdentity(other Query) bool {
	return q.Identity() == other.Identity()
}

// Values renders the full query, page included, as URL parameters.
func (q Query) Values() url.Values {
	return q.values(true)
}

func (q Query) values(withPage bool) url.Values {
	v := make(url.Values, len(q.Filters)+2)
	for k, val := range q.Filters {
		if k == "" || val == "" {
			continue
		}
		v.Set(k, val)
	}
	v.Set("pageSize", strconv.Itoa(q.PageSize))
	if withPage {
		v.Set("page", strconv.Itoa(q.Page))
	}
	return v
}

func cloneFilters(in map[string]string) map[string]string {
	if len(in) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		if v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// Tracker remembers the last observed filters and bumps a generation counter
// every time the feed has to start over from page 1. Responses carry the
// generation they were issued for so late arrivals can be recognised.
//
// Tracker is not safe for concurrent use; Synchronizer guards it.
type Tracker struct {
	current    Query
	generation uint64
}

// NewTracker starts tracking from initial (normalized to page 1).
func NewTracker(initial Query) *Tracker {
	q := initial.Clone()
	q.Page = 1
	return &Tracker{current: q.Normalize(DefaultPageSize)}
}

// Observe compares filters against the last observed set. On a material
// change it adopts them, resets the page to 1, bumps the generation and
// returns true.
func (t *Tracker) Observe(filters map[string]string) bool {
	next := t.current.WithFilters(filters)
	if next.SameIdentity(t.current) {
		return false
	}
	next.Page = 1
	t.current = next
	t.generation++
	return true
}

// Reset starts a new generation without changing filters (manual refresh or mount).
func (t *Tracker) Reset() uint64 {
	t.current.Page = 1
	t.generation++
	return t.generation
}

// Current returns a copy of the tracked query.
func (t *Tracker) Current() Query {
	return t.current.Clone()
}

// Generation returns the current generation.
func (t *Tracker) Generation() uint64 {
	return t.generation
}

// IsCurrent reports whether gen is still the live generation.
func (t *Tracker) IsCurrent(gen uint64) bool {
	return gen == t.generation
}
