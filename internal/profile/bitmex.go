package profile

import (
	"math"

	"tradehook/pkg/config"
	"tradehook/pkg/exchanges/common"
)

// Quantity limits for BitMEX inverse contracts (1 contract = 1 USD).
const (
	bitmexMinOrderQty = 100
	bitmexMaxOrderQty = 10_000_000
	// Lots are normalized to the Binance convention of 0.001 base units,
	// then converted to notional contracts at the reference price.
	bitmexCoinPerLot = 0.001
)

// bitmexProfile targets BitMEX inverse perpetuals. No wire client is
// bundled for it; a Gateway must be injected.
type bitmexProfile struct {
	native       map[string]string
	gateway      map[string]string
	tickDefaults map[string]float64
}

func newBitmex(ov config.ExchangeOverrides) *bitmexProfile {
	p := &bitmexProfile{
		native: mergeTables(map[string]string{
			"BTCUSD": "XBTUSD",
			"ETHUSD": "ETHUSD",
		}, ov.NativeSymbols),
		gateway: mergeTables(map[string]string{
			"BTCUSD": "BTC/USD:BTC",
		}, ov.GatewaySymbols),
		tickDefaults: map[string]float64{
			"BTCUSD": 0.5,
			"ETHUSD": 0.05,
		},
	}
	for k, v := range ov.TickDefaults {
		p.tickDefaults[k] = v
	}
	return p
}

func (p *bitmexProfile) Name() string { return "bitmex" }

func (p *bitmexProfile) NativeSymbol(canonical string) string {
	return lookup(p.native, canonical)
}

func (p *bitmexProfile) GatewaySymbol(canonical string) string {
	return lookup(p.gateway, canonical)
}

func (p *bitmexProfile) DefaultTickSize(canonical string) float64 {
	if t, ok := p.tickDefaults[canonical]; ok {
		return t
	}
	return 0.001
}

func (p *bitmexProfile) DefaultContractSize() float64 { return 1 }

// Quantity converts lots to USD-denominated contracts at the reference
// price, clamped to the venue's order-size limits.
func (p *bitmexProfile) Quantity(lots, contractSize, refPrice float64) float64 {
	coins := lots * bitmexCoinPerLot
	contracts := math.Round(coins * refPrice)
	if contracts < bitmexMinOrderQty {
		return bitmexMinOrderQty
	}
	if contracts > bitmexMaxOrderQty {
		return bitmexMaxOrderQty
	}
	return math.Floor(contracts)
}

func (p *bitmexProfile) RequiresLeverage() bool       { return false }
func (p *bitmexProfile) RequiresIsolatedMargin() bool { return false }

func (p *bitmexProfile) ProtectiveOrder(symbol string, side common.Side, qty, price float64, clientID string, takeProfit bool) common.OrderRequest {
	typ := common.OrderTypeStopMarket
	if takeProfit {
		typ = common.OrderTypeTakeProfitMarket
	}
	return common.OrderRequest{
		Symbol:     symbol,
		Side:       side,
		Type:       typ,
		Qty:        qty,
		StopPrice:  price,
		ClientID:   clientID,
		ReduceOnly: true,
	}
}
