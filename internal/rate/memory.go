// Package rate is a fixed-window, in-process request limiter for the auth
// endpoints. State is per instance.
package rate

import (
	"sync"
	"time"
)

const gcEvery = time.Minute

type window struct {
	count int
	start time.Time
}

type Limiter struct {
	mu      sync.Mutex
	windows map[string]window
	lastGC  time.Time
	now     func() time.Time
}

func NewLimiter() *Limiter {
	return newLimiter(time.Now)
}

func newLimiter(now func() time.Time) *Limiter {
	return &Limiter{windows: map[string]window{}, lastGC: now(), now: now}
}

// Allow counts one hit for key and reports whether it is within limit for the
// current window.
func (l *Limiter) Allow(key string, limit int, span time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.lastGC) > gcEvery {
		for k, w := range l.windows {
			if now.Sub(w.start) > 3*span {
				delete(l.windows, k)
			}
		}
		l.lastGC = now
	}
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= span {
		l.windows[key] = window{count: 1, start: now}
		return true
	}
	if w.count >= limit {
		return false
	}
	w.count++
	l.windows[key] = w
	return true
}

// Len reports how many keys are tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
