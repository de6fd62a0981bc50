package session

import (
	"sync"
	"time"
)

// pruneThreshold is the map size past which stale throttle entries are
// swept on the next accepted call.
const pruneThreshold = 256

// ThrottleGuard drops repeated invocations of a keyed operation that arrive
// faster than the configured interval. Rejection is silent; it is a UI
// debounce, not an error. Each guard owns its own bookkeeping so independent
// stores never share throttle state.
type ThrottleGuard struct {
	mu       sync.Mutex
	interval time.Duration
	last     map[string]time.Time
	now      func() time.Time
}

func NewThrottleGuard(interval time.Duration) *ThrottleGuard {
	return &ThrottleGuard{
		interval: interval,
		last:     make(map[string]time.Time),
		now:      time.Now,
	}
}

// Allow reports whether a call for key may proceed, and records it if so.
func (g *ThrottleGuard) Allow(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if prev, ok := g.last[key]; ok && now.Sub(prev) < g.interval {
		return false
	}

	if len(g.last) >= pruneThreshold {
		g.prune(now)
	}

	g.last[key] = now
	return true
}

// prune discards entries old enough that they can no longer throttle
// anything. Caller holds the lock.
func (g *ThrottleGuard) prune(now time.Time) {
	for key, at := range g.last {
		if now.Sub(at) >= g.interval {
			delete(g.last, key)
		}
	}
}
