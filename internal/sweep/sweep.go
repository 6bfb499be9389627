// Package sweep reconciles resting orders against live positions: a
// symbol with open orders but no position has orphaned protective legs,
// and they are cancelled.
package sweep

import (
	"context"
	"log"
	"time"

	"tradehook/internal/events"
	"tradehook/internal/profile"
	"tradehook/pkg/exchanges/common"
)

// Sweeper periodically cancels orders on position-less symbols.
type Sweeper struct {
	gateway common.Gateway
	profile profile.Profile
	bus     *events.Bus

	interval time.Duration
	offset   time.Duration
	symbols  []string
}

// New wires a sweeper over a fixed watch list of canonical symbols.
// offset shifts each run past the interval boundary so sweeps do not
// race the venue's own order-state settlement at round minutes.
func New(gw common.Gateway, prof profile.Profile, bus *events.Bus, symbols []string, interval, offset time.Duration) *Sweeper {
	return &Sweeper{
		gateway:  gw,
		profile:  prof,
		bus:      bus,
		interval: interval,
		offset:   offset,
		symbols:  symbols,
	}
}

// Run sweeps on the configured schedule until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	if len(s.symbols) == 0 {
		log.Printf("sweep: no symbols configured, sweeper idle")
		return
	}
	timer := time.NewTimer(time.Until(s.nextRun(time.Now())))
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.RunOnce(ctx)
			timer.Reset(time.Until(s.nextRun(time.Now())))
		}
	}
}

// nextRun returns the next instant aligned to the interval plus offset.
func (s *Sweeper) nextRun(now time.Time) time.Time {
	next := now.Truncate(s.interval).Add(s.offset)
	for !next.After(now) {
		next = next.Add(s.interval)
	}
	return next
}

// RunOnce performs one sweep over the watch list. Every symbol is
// attempted regardless of failures on the others; a partial sweep is
// retried on the next tick anyway.
func (s *Sweeper) RunOnce(ctx context.Context) {
	positions, err := s.gateway.FetchPositions(ctx)
	if err != nil {
		log.Printf("sweep: fetch positions: %v", err)
		return
	}
	open := make(map[string]bool, len(positions))
	for _, p := range positions {
		if p.Qty != 0 {
			open[p.NativeSymbol] = true
			open[p.Symbol] = true
		}
	}

	for _, sym := range s.symbols {
		native := s.profile.NativeSymbol(sym)
		if open[native] || open[s.profile.GatewaySymbol(sym)] {
			continue
		}
		if err := s.gateway.CancelAllOrders(ctx, native); err != nil {
			log.Printf("sweep: cancel orders for %s: %v", native, err)
			continue
		}
		log.Printf("sweep: cancelled resting orders on position-less %s", native)
		if s.bus != nil {
			s.bus.Publish(events.EventSweepCancelled, sym)
		}
	}
}
