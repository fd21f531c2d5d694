package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Abdurahmanit/GroupProject/feed-sync/internal/platform/logger"
	"go.uber.org/zap"
)

// Status is the fetch coordinator state.
type Status string

const (
	StatusIdle              Status = "idle"
	StatusFetchingFirstPage Status = "fetching_first_page"
	StatusFetchingNextPage  Status = "fetching_next_page"
	StatusError             Status = "error"
)

func (k FetchKind) status() Status {
	if k == FetchFirstPage {
		return StatusFetchingFirstPage
	}
	return StatusFetchingNextPage
}

// State is a snapshot of one feed as a screen would render it.
type State[T any] struct {
	Query       Query  `json:"query"`
	Items       []T    `json:"items"`
	HasNextPage bool   `json:"hasNextPage"`
	Status      Status `json:"status"`
	Page        int    `json:"page"`
	TotalCount  int    `json:"totalCount"`
	TotalPages  int    `json:"totalPages"`
	Err         string `json:"error,omitempty"`
	Generation  uint64 `json:"generation"`
}

// InFlight reports whether a request is outstanding.
func (s State[T]) InFlight() bool {
	return s.Status == StatusFetchingFirstPage || s.Status == StatusFetchingNextPage
}

// Resetting reports whether the feed is reloading from page 1.
func (s State[T]) Resetting() bool {
	return s.Status == StatusFetchingFirstPage
}

// Options configures a Synchronizer. Zero values are usable.
type Options[T any] struct {
	Name           string
	Filters        map[string]string
	PageSize       int
	RequestTimeout time.Duration
	Logger         *logger.Logger
	Publisher      Publisher
	Metrics        Metrics
	// OnChange receives every new snapshot, in order. It must not call back
	// into the Synchronizer synchronously.
	OnChange func(State[T])
}

type request struct {
	kind    FetchKind
	query   Query
	gen     uint64
	ctx     context.Context
	cancel  context.CancelFunc
	started time.Time
}

// Synchronizer keeps one paginated feed in sync with its source. All events
// (filter changes, near-end signals, refreshes and network completions) are
// applied one at a time; requests run on their own goroutine so no method
// blocks on the network.
type Synchronizer[T Item] struct {
	name      string
	source    Source[T]
	timeout   time.Duration
	log       *logger.Logger
	publisher Publisher
	metrics   Metrics
	onChange  func(State[T])

	mu         sync.Mutex
	notifyMu   sync.Mutex
	tracker    *Tracker
	items      []T
	hasNext    bool
	status     Status
	page       int
	totalCount int
	totalPages int
	errMsg     string
	inflight   *request
	closed     bool
	// bypass holds for every page of a generation started by Refresh.
	bypass bool

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

// New creates an idle synchronizer. Call Start to load the first page.
func New[T Item](source Source[T], opts Options[T]) *Synchronizer[T] {
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	pub := opts.Publisher
	if pub == nil {
		pub = nopPublisher{}
	}
	m := opts.Metrics
	if m == nil {
		m = nopMetrics{}
	}
	name := opts.Name
	if name == "" {
		name = "feed"
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Synchronizer[T]{
		name:      name,
		source:    source,
		timeout:   opts.RequestTimeout,
		log:       log.Named("feed").With(zap.String("feed", name)),
		publisher: pub,
		metrics:   m,
		onChange:  opts.OnChange,
		tracker:   NewTracker(Query{Filters: cloneFilters(opts.Filters), PageSize: opts.PageSize}.Normalize(DefaultPageSize)),
		items:     []T{},
		hasNext:   true,
		status:    StatusIdle,
		ctx:       ctx,
		stop:      stop,
	}
}

// Name returns the feed name.
func (s *Synchronizer[T]) Name() string { return s.name }

// Start loads page 1 for the current filters (screen mount).
func (s *Synchronizer[T]) Start() {
	s.reset("start", false)
}

// Refresh forces a reload from page 1 whatever the current state is
// (pull-to-refresh and the retry affordance). The cache is bypassed for
// every page loaded until the next reset.
func (s *Synchronizer[T]) Refresh() {
	s.reset("refresh", true)
}

func (s *Synchronizer[T]) reset(reason string, bypass bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.tracker.Reset()
	req := s.beginFirstPageLocked(bypass)
	snap := s.snapshotLocked()
	s.notifyMu.Lock()
	s.mu.Unlock()

	s.log.Debug("Feed reset", zap.String("reason", reason), zap.Uint64("generation", req.gen))
	s.emit(snap)
	s.notifyMu.Unlock()

	s.publish(Event{Type: EventReset, Kind: FetchFirstPage, Generation: req.gen, Page: 1, HasNextPage: true})
	s.dispatch(req)
}

// SetFilters feeds new filter values to the tracker. When they differ from the
// previous ones the feed is cleared and page 1 is requested; it returns
// whether that happened.
func (s *Synchronizer[T]) SetFilters(filters map[string]string) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if !s.tracker.Observe(filters) {
		s.mu.Unlock()
		return false
	}
	req := s.beginFirstPageLocked(false)
	snap := s.snapshotLocked()
	s.notifyMu.Lock()
	s.mu.Unlock()

	s.log.Debug("Filters changed", zap.String("identity", req.query.Identity()), zap.Uint64("generation", req.gen))
	s.emit(snap)
	s.notifyMu.Unlock()

	s.publish(Event{Type: EventReset, Kind: FetchFirstPage, Generation: req.gen, Page: 1, HasNextPage: true})
	s.dispatch(req)
	return true
}

// NearEnd signals that the list was scrolled close to its end. It requests
// the next page only when idle and more pages exist. In the error state it
// acknowledges the error and returns to idle without fetching.
func (s *Synchronizer[T]) NearEnd() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	switch s.status {
	case StatusFetchingFirstPage, StatusFetchingNextPage:
		s.mu.Unlock()
		return
	case StatusError:
		s.status = StatusIdle
		s.errMsg = ""
		snap := s.snapshotLocked()
		s.notifyMu.Lock()
		s.mu.Unlock()
		s.emit(snap)
		s.notifyMu.Unlock()
		return
	}
	if !s.hasNext {
		s.mu.Unlock()
		return
	}

	q := s.tracker.Current().WithPage(s.page + 1)
	req := s.newRequestLocked(FetchNextPage, q, s.bypass)
	s.status = StatusFetchingNextPage
	snap := s.snapshotLocked()
	s.notifyMu.Lock()
	s.mu.Unlock()

	s.log.Debug("Requesting next page", zap.Int("page", q.Page), zap.Uint64("generation", req.gen))
	s.emit(snap)
	s.notifyMu.Unlock()
	s.dispatch(req)
}

// Dismiss acknowledges an error and returns to idle. The failed page is not
// retried.
func (s *Synchronizer[T]) Dismiss() {
	s.mu.Lock()
	if s.closed || s.status != StatusError {
		s.mu.Unlock()
		return
	}
	s.status = StatusIdle
	s.errMsg = ""
	snap := s.snapshotLocked()
	s.notifyMu.Lock()
	s.mu.Unlock()
	s.emit(snap)
	s.notifyMu.Unlock()
}

// State returns the current snapshot.
func (s *Synchronizer[T]) State() State[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Close cancels the outstanding request and waits for it to finish.
// Later events are ignored.
func (s *Synchronizer[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.inflight = nil
	s.mu.Unlock()

	s.stop()
	s.wg.Wait()
	s.log.Debug("Feed closed")
}

func (s *Synchronizer[T]) beginFirstPageLocked(bypass bool) *request {
	if s.inflight != nil {
		s.inflight.cancel()
		s.inflight = nil
	}
	s.items = []T{}
	s.hasNext = true
	s.page = 0
	s.totalCount = 0
	s.totalPages = 0
	s.errMsg = ""
	s.status = StatusFetchingFirstPage
	s.bypass = bypass
	return s.newRequestLocked(FetchFirstPage, s.tracker.Current().WithPage(1), bypass)
}

func (s *Synchronizer[T]) newRequestLocked(kind FetchKind, q Query, bypass bool) *request {
	ctx := s.ctx
	if bypass {
		ctx = WithBypass(ctx)
	}
	var cancel context.CancelFunc
	if s.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	req := &request{
		kind:    kind,
		query:   q,
		gen:     s.tracker.Generation(),
		ctx:     ctx,
		cancel:  cancel,
		started: time.Now(),
	}
	s.inflight = req
	s.wg.Add(1)
	return req
}

func (s *Synchronizer[T]) dispatch(req *request) {
	go func() {
		defer s.wg.Done()
		defer req.cancel()
		page, err := s.source.Fetch(req.ctx, req.query)
		s.complete(req, page, err)
	}()
}

func (s *Synchronizer[T]) complete(req *request, page Page[T], err error) {
	elapsed := time.Since(req.started)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.inflight != req || !s.tracker.IsCurrent(req.gen) || s.status != req.kind.status() {
		current := s.tracker.Generation()
		s.mu.Unlock()

		s.log.Debug("Discarding late response",
			zap.Uint64("response_generation", req.gen),
			zap.Uint64("current_generation", current),
			zap.Int("page", req.query.Page),
		)
		s.publish(Event{Type: EventResponseDiscarded, Kind: req.kind, Generation: req.gen, Page: req.query.Page})
		s.metrics.ResponseDiscarded(s.name)
		return
	}
	s.inflight = nil

	var (
		malformed *MalformedResponseError
		outcome   string
		ev        Event
	)
	err = Classify(err)
	switch {
	case err != nil && !errors.As(err, &malformed):
		s.status = StatusError
		s.errMsg = UserMessage(err)
		outcome = OutcomeError
		ev = Event{Type: EventFetchFailed, Kind: req.kind, Generation: req.gen, Page: req.query.Page, Error: err.Error()}
	default:
		if malformed != nil {
			page.Data = nil
			outcome = OutcomeMalformed
		} else {
			outcome = OutcomeSuccess
		}
		s.items, s.hasNext = Merge(s.items, page, req.kind == FetchFirstPage)
		s.page = req.query.Page
		s.totalCount = page.TotalCount
		s.totalPages = page.TotalPages
		s.status = StatusIdle
		s.errMsg = ""
		ev = Event{Type: EventPageLoaded, Kind: req.kind, Generation: req.gen, Page: req.query.Page, Items: len(s.items), HasNextPage: s.hasNext}
	}
	n := len(s.items)
	snap := s.snapshotLocked()
	s.notifyMu.Lock()
	s.mu.Unlock()

	switch outcome {
	case OutcomeError:
		s.log.Warn("Feed fetch failed", zap.String("kind", string(req.kind)), zap.Int("page", req.query.Page), zap.Error(err))
	case OutcomeMalformed:
		s.log.Warn("Malformed page treated as empty", zap.Int("page", req.query.Page), zap.Error(malformed))
	default:
		s.log.Debug("Page merged", zap.Int("page", req.query.Page), zap.Int("items", n), zap.Bool("has_next_page", snap.HasNextPage))
	}
	s.emit(snap)
	s.notifyMu.Unlock()

	s.metrics.ObserveFetch(s.name, req.kind, outcome, elapsed)
	s.metrics.SetItems(s.name, n)
	s.publish(ev)
}

func (s *Synchronizer[T]) snapshotLocked() State[T] {
	items := make([]T, len(s.items))
	copy(items, s.items)
	q := s.tracker.Current()
	if s.page > 0 {
		q.Page = s.page
	}
	return State[T]{
		Query:       q,
		Items:       items,
		HasNextPage: s.hasNext,
		Status:      s.status,
		Page:        s.page,
		TotalCount:  s.totalCount,
		TotalPages:  s.totalPages,
		Err:         s.errMsg,
		Generation:  s.tracker.Generation(),
	}
}

// emit must be called with notifyMu held so snapshots arrive in order.
func (s *Synchronizer[T]) emit(snap State[T]) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}

func (s *Synchronizer[T]) publish(ev Event) {
	ev.Feed = s.name
	ev.At = time.Now().UTC()
	if err := s.publisher.Publish(context.Background(), ev); err != nil {
		s.log.Warn("Failed to publish feed event", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}
