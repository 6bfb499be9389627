// Package metadata caches per-instrument trading metadata (tick size,
// contract size) fetched in batch from the venue, with time-based expiry
// and a stale-serve fallback when the venue is unreachable.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"tradehook/internal/profile"
	"tradehook/pkg/exchanges/common"
)

// ErrUnavailable means no usable metadata exists, fresh or cached.
var ErrUnavailable = errors.New("market metadata unavailable")

// DefaultTTL is the snapshot expiry window.
const DefaultTTL = 10 * time.Minute

// Metadata is the resolved view for one canonical symbol.
type Metadata struct {
	Canonical    string
	Native       string
	TickSize     float64
	ContractSize float64
	RefreshedAt  time.Time
}

// MarketSource is the slice of the gateway the cache consumes.
type MarketSource interface {
	FetchMarkets(ctx context.Context) ([]common.Market, error)
}

// snapshot is immutable once published; refreshes swap in a new one so
// readers never block on an in-flight fetch.
type snapshot struct {
	markets   map[string]common.Market // keyed by native symbol
	fetchedAt time.Time
}

// Cache resolves canonical symbols to instrument metadata.
type Cache struct {
	source  MarketSource
	profile profile.Profile
	ttl     time.Duration

	snap      atomic.Pointer[snapshot]
	refreshMu sync.Mutex
}

// New creates a cache over the given market source. ttl <= 0 uses
// DefaultTTL.
func New(source MarketSource, prof profile.Profile, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{source: source, profile: prof, ttl: ttl}
}

// Resolve returns metadata for a canonical symbol, refreshing the whole
// snapshot when it is missing or expired. A failed refresh falls back to
// the previous snapshot when one exists.
func (c *Cache) Resolve(ctx context.Context, canonical string) (Metadata, error) {
	snap := c.snap.Load()
	if snap == nil || time.Since(snap.fetchedAt) > c.ttl {
		var err error
		snap, err = c.refresh(ctx)
		if err != nil {
			return Metadata{}, err
		}
	}

	native := c.profile.NativeSymbol(canonical)
	market, ok := snap.markets[native]
	if !ok {
		return Metadata{}, fmt.Errorf("%w: no market for %s (%s)", ErrUnavailable, canonical, native)
	}

	return Metadata{
		Canonical:    canonical,
		Native:       native,
		TickSize:     c.tickSize(canonical, market),
		ContractSize: c.contractSize(market),
		RefreshedAt:  snap.fetchedAt,
	}, nil
}

// tickSize prefers the explicit filter value, then price precision, then
// the minimum price limit, then the profile's hardcoded default.
func (c *Cache) tickSize(canonical string, m common.Market) float64 {
	if m.TickSize > 0 {
		return m.TickSize
	}
	if m.PricePrecision > 0 {
		return math.Pow(10, -float64(m.PricePrecision))
	}
	if m.MinPrice > 0 {
		return m.MinPrice
	}
	return c.profile.DefaultTickSize(canonical)
}

func (c *Cache) contractSize(m common.Market) float64 {
	if m.ContractSize > 0 {
		return m.ContractSize
	}
	return c.profile.DefaultContractSize()
}

// refresh fetches the full instrument list once. Concurrent callers
// serialize on refreshMu; readers of the old snapshot are unaffected.
func (c *Cache) refresh(ctx context.Context) (*snapshot, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	if snap := c.snap.Load(); snap != nil && time.Since(snap.fetchedAt) <= c.ttl {
		return snap, nil
	}

	markets, err := c.source.FetchMarkets(ctx)
	if err != nil {
		if prev := c.snap.Load(); prev != nil {
			log.Printf("metadata: refresh failed, serving stale snapshot (age %s): %v",
				time.Since(prev.fetchedAt).Round(time.Second), err)
			return prev, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	byNative := make(map[string]common.Market, len(markets))
	for _, m := range markets {
		byNative[m.NativeSymbol] = m
	}
	snap := &snapshot{markets: byNative, fetchedAt: time.Now()}
	c.snap.Store(snap)
	log.Printf("metadata: refreshed %d markets", len(byNative))
	return snap, nil
}
