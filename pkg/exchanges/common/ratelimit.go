package common

import (
	"log"
	"strconv"
	"sync"
	"time"
)

// WeightTracker mirrors the venue's request-weight accounting from response
// headers so the client can warn before the venue starts rejecting calls.
type WeightTracker struct {
	mu       sync.RWMutex
	used     int
	limit    int
	window   time.Duration
	windowAt time.Time
}

// NewWeightTracker creates a tracker for the given weight budget per window
// (e.g. 2400/min for Binance futures).
func NewWeightTracker(limit int, window time.Duration) *WeightTracker {
	return &WeightTracker{
		limit:    limit,
		window:   window,
		windowAt: time.Now(),
	}
}

// Observe records the used weight reported by a response header.
func (w *WeightTracker) Observe(header string) {
	if header == "" {
		return
	}
	used, err := strconv.Atoi(header)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if time.Since(w.windowAt) >= w.window {
		w.windowAt = time.Now()
	}
	w.used = used

	pct := float64(w.used) / float64(w.limit) * 100
	if pct >= 90 {
		log.Printf("gateway: request weight %d/%d (%.0f%%), backing off advised", w.used, w.limit, pct)
	}
}

// Saturated reports whether the next request should be delayed.
func (w *WeightTracker) Saturated() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if time.Since(w.windowAt) >= w.window {
		return false
	}
	return float64(w.used) >= float64(w.limit)*0.9
}
