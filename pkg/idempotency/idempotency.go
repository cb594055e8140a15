package idempotency

import (
	"sync"
	"time"

	"parley/pkg/apperr"
	"parley/pkg/ids"
)

// Guard deduplicates client retries inside a sliding window. Keys are
// remembered until the window passes; a second consume inside the
// window is rejected.
type Guard struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	window time.Duration
	now    func() time.Time
}

// NewGuard creates a guard with the given retry window.
func NewGuard(window time.Duration) *Guard {
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &Guard{
		seen:   make(map[string]time.Time),
		window: window,
		now:    time.Now,
	}
}

// Key normalizes a client-supplied idempotency key. An absent key gets
// a fresh ULID, which never collides with a remembered one.
func Key(provided string) string {
	if provided != "" {
		return provided
	}
	return ids.New()
}

// Consume claims key for the current window. A key seen within the
// window is a duplicate request.
func (g *Guard) Consume(key string) error {
	if key == "" {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if at, ok := g.seen[key]; ok && now.Sub(at) < g.window {
		return apperr.New(apperr.KindDuplicateRequest)
	}
	g.seen[key] = now

	// opportunistic cleanup once the table gets roomy
	if len(g.seen) > 4096 {
		g.sweepLocked(now)
	}
	return nil
}

// Sweep drops expired keys and reports how many were removed.
func (g *Guard) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sweepLocked(g.now())
}

func (g *Guard) sweepLocked(now time.Time) int {
	removed := 0
	for key, at := range g.seen {
		if now.Sub(at) >= g.window {
			delete(g.seen, key)
			removed++
		}
	}
	return removed
}

// Len reports how many keys are currently remembered.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}
