package service

import (
	"sync"
	"time"
)

// DefaultDedupWindow is the cool-down between two accepted detections of
// the same key.
const DefaultDedupWindow = 60 * time.Second

// DedupGate suppresses repeated detections of the same key within a fixed
// window.  State lives only in memory and resets on restart.  Each detection
// channel owns its own gate.
type DedupGate struct {
	window time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

func NewDedupGate(window time.Duration) *DedupGate {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &DedupGate{
		window: window,
		last:   make(map[string]time.Time),
	}
}

func (g *DedupGate) Window() time.Duration { return g.window }

// Accept reports whether key may pass at now and, if so, records now as its
// last accepted instant.
func (g *DedupGate) Accept(key string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.allowLocked(key, now) {
		return false
	}
	g.last[key] = now
	return true
}

// Allow is Accept without recording.  The router checks Allow first and
// calls Mark only after the event is safely stored, so a failed write does
// not start the cool-down.
func (g *DedupGate) Allow(key string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.allowLocked(key, now)
}

// Mark records now as the last accepted instant for key.
func (g *DedupGate) Mark(key string, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last[key] = now
}

// Len returns the number of keys ever accepted.
func (g *DedupGate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.last)
}

func (g *DedupGate) allowLocked(key string, now time.Time) bool {
	last, seen := g.last[key]
	return !seen || now.Sub(last) >= g.window
}
