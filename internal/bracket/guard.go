package bracket

import (
	"context"
	"sync"

	"tradehook/internal/profile"
	"tradehook/pkg/exchanges/common"
)

// PositionSource is the slice of the gateway the guard consumes.
type PositionSource interface {
	FetchPositions(ctx context.Context) ([]common.Position, error)
}

// Guard enforces at most one open position per symbol before a new bracket
// is accepted. The exchange snapshot is the ground truth; an additional
// in-process reservation serializes concurrent requests for the same
// symbol. The cross-process read-then-act race against the exchange
// remains and is accepted.
type Guard struct {
	source  PositionSource
	profile profile.Profile

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewGuard creates a guard over the given position source.
func NewGuard(source PositionSource, prof profile.Profile) *Guard {
	return &Guard{
		source:   source,
		profile:  prof,
		inFlight: make(map[string]struct{}),
	}
}

// acquire reserves the symbol for one in-flight bracket. The returned
// release must be called when the bracket run finishes.
func (g *Guard) acquire(symbol string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inFlight[symbol]; busy {
		return nil, &PositionExistsError{Symbol: symbol, InFlight: true}
	}
	g.inFlight[symbol] = struct{}{}
	release := func() {
		g.mu.Lock()
		delete(g.inFlight, symbol)
		g.mu.Unlock()
	}
	return release, nil
}

// AssertNoPosition fetches the live snapshot and vetoes when any non-zero
// quantity exists for the symbol.
func (g *Guard) AssertNoPosition(ctx context.Context, symbol string) error {
	pos, found, err := g.Position(ctx, symbol)
	if err != nil {
		return err
	}
	if found {
		return &PositionExistsError{Symbol: symbol, Position: *pos}
	}
	return nil
}

// Position returns the current position snapshot for a canonical symbol,
// if any. Never cached.
func (g *Guard) Position(ctx context.Context, symbol string) (*common.Position, bool, error) {
	native := g.profile.NativeSymbol(symbol)
	gateway := g.profile.GatewaySymbol(symbol)

	positions, err := g.source.FetchPositions(ctx)
	if err != nil {
		return nil, false, newGatewayError("fetch positions", err)
	}
	for i := range positions {
		p := &positions[i]
		if p.Qty == 0 {
			continue
		}
		if p.NativeSymbol == native || p.Symbol == gateway {
			return p, true, nil
		}
	}
	return nil, false, nil
}
