package feed

import (
	"sync"
	"time"
)

// DefaultFreshnessWindow is how long a repeated call counts as fresh.
const DefaultFreshnessWindow = 10 * time.Second

// Freshness remembers when each key was last requested. It holds no data;
// callers use it to tell rapid repeats from genuinely new requests.
type Freshness struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

func NewFreshness(window time.Duration) *Freshness {
	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	return &Freshness{
		window: window,
		now:    time.Now,
		last:   make(map[string]time.Time),
	}
}

// Touch records a call for key and reports whether the previous call happened
// within the window.
func (f *Freshness) Touch(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	prev, ok := f.last[key]
	f.last[key] = now
	f.pruneLocked(now)
	return ok && now.Sub(prev) < f.window
}

// Fresh reports whether key was touched within the window without recording
// a call.
func (f *Freshness) Fresh(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, ok := f.last[key]
	return ok && f.now().Sub(prev) < f.window
}

func (f *Freshness) pruneLocked(now time.Time) {
	for k, t := range f.last {
		if now.Sub(t) >= f.window {
			delete(f.last, k)
		}
	}
}
