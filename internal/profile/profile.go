// Package profile captures the per-exchange variation points: symbol
// mapping tables, quantity floors, metadata defaults and the shape of
// protective orders. One Profile instance is injected into the engine in
// place of per-exchange engine subclasses.
package profile

import (
	"fmt"

	"tradehook/pkg/config"
	"tradehook/pkg/exchanges/common"
)

// Profile is implemented once per supported exchange.
type Profile interface {
	Name() string

	// NativeSymbol maps a canonical symbol to the venue identifier used for
	// order placement and cancellation. Unmapped symbols pass through
	// unchanged so that venues without an explicit table still work.
	NativeSymbol(canonical string) string
	// GatewaySymbol maps a canonical symbol to the identifier reported by
	// the venue's position endpoint. Identity fallback as above.
	GatewaySymbol(canonical string) string

	// DefaultTickSize is the hardcoded fallback when metadata reports no
	// usable tick for the symbol.
	DefaultTickSize(canonical string) float64
	// DefaultContractSize is the venue fallback for native units per lot.
	DefaultContractSize() float64

	// Quantity converts a lot count into the venue's native order quantity,
	// applying the venue's floor/cap. refPrice is consulted by venues whose
	// contracts are notional-denominated.
	Quantity(lots, contractSize, refPrice float64) float64

	// RequiresLeverage reports whether leverage must be set on the
	// instrument before the entry order.
	RequiresLeverage() bool
	// RequiresIsolatedMargin reports whether the margin mode should be
	// forced to isolated before trading a symbol.
	RequiresIsolatedMargin() bool

	// ProtectiveOrder shapes the venue-specific request for a protective
	// leg triggered at price.
	ProtectiveOrder(symbol string, side common.Side, qty, price float64, clientID string, takeProfit bool) common.OrderRequest
}

// New returns the profile for an exchange name, with any universe-file
// overrides layered on top of the built-in tables.
func New(name string, overrides config.ExchangeOverrides) (Profile, error) {
	switch name {
	case "binance":
		return newBinance(overrides), nil
	case "bitmex":
		return newBitmex(overrides), nil
	default:
		return nil, fmt.Errorf("unsupported exchange %q", name)
	}
}

// mergeTables layers override entries onto a copy of the built-in table.
func mergeTables(builtin, override map[string]string) map[string]string {
	out := make(map[string]string, len(builtin)+len(override))
	for k, v := range builtin {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

func lookup(table map[string]string, symbol string) string {
	if native, ok := table[symbol]; ok {
		return native
	}
	return symbol
}
