package common

import (
	"context"
	"log"
	"sync"
	"time"
)

// TimeSync keeps a millisecond offset against the venue's server clock so
// signed request timestamps stay inside the venue's receive window.
type TimeSync struct {
	serverTime func() (int64, error)
	interval   time.Duration

	mu     sync.RWMutex
	offset int64 // server - local, ms
}

// NewTimeSync creates a sync manager polling the given server-time source.
func NewTimeSync(serverTime func() (int64, error)) *TimeSync {
	return &TimeSync{
		serverTime: serverTime,
		interval:   30 * time.Minute,
	}
}

// Start performs an initial sync and keeps resyncing until ctx is done.
func (ts *TimeSync) Start(ctx context.Context) {
	if err := ts.Sync(); err != nil {
		log.Printf("time sync: initial sync failed: %v", err)
	}
	go func() {
		ticker := time.NewTicker(ts.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ts.Sync(); err != nil {
					log.Printf("time sync: %v", err)
				}
			}
		}
	}()
}

// Sync fetches server time once and updates the offset, assuming symmetric
// network latency.
func (ts *TimeSync) Sync() error {
	before := time.Now().UnixMilli()
	server, err := ts.serverTime()
	if err != nil {
		return err
	}
	after := time.Now().UnixMilli()
	local := before + (after-before)/2

	ts.mu.Lock()
	ts.offset = server - local
	ts.mu.Unlock()
	return nil
}

// Now returns the current time in ms adjusted for the server offset.
func (ts *TimeSync) Now() int64 {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return time.Now().UnixMilli() + ts.offset
}
