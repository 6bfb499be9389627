package profile

import (
	"tradehook/pkg/config"
	"tradehook/pkg/exchanges/common"
)

// binanceProfile targets Binance USDT-M futures. One lot is 0.001 of the
// base asset; there is no quantity floor beyond the venue's own filters.
type binanceProfile struct {
	native       map[string]string
	gateway      map[string]string
	tickDefaults map[string]float64
}

func newBinance(ov config.ExchangeOverrides) *binanceProfile {
	p := &binanceProfile{
		native: mergeTables(map[string]string{
			"BTCUSD": "BTCUSDT",
			"ETHUSD": "ETHUSDT",
		}, ov.NativeSymbols),
		gateway: mergeTables(map[string]string{
			"BTCUSD": "BTCUSDT",
			"ETHUSD": "ETHUSDT",
		}, ov.GatewaySymbols),
		tickDefaults: map[string]float64{
			"BTCUSD": 0.1,
			"ETHUSD": 0.01,
		},
	}
	for k, v := range ov.TickDefaults {
		p.tickDefaults[k] = v
	}
	return p
}

func (p *binanceProfile) Name() string { return "binance" }

func (p *binanceProfile) NativeSymbol(canonical string) string {
	return lookup(p.native, canonical)
}

func (p *binanceProfile) GatewaySymbol(canonical string) string {
	return lookup(p.gateway, canonical)
}

func (p *binanceProfile) DefaultTickSize(canonical string) float64 {
	if t, ok := p.tickDefaults[canonical]; ok {
		return t
	}
	return 0.001
}

func (p *binanceProfile) DefaultContractSize() float64 { return 0.001 }

func (p *binanceProfile) Quantity(lots, contractSize, refPrice float64) float64 {
	if contractSize == 0 {
		contractSize = p.DefaultContractSize()
	}
	return lots * contractSize
}

func (p *binanceProfile) RequiresLeverage() bool       { return true }
func (p *binanceProfile) RequiresIsolatedMargin() bool { return true }

func (p *binanceProfile) ProtectiveOrder(symbol string, side common.Side, qty, price float64, clientID string, takeProfit bool) common.OrderRequest {
	typ := common.OrderTypeStopMarket
	if takeProfit {
		typ = common.OrderTypeTakeProfitMarket
	}
	return common.OrderRequest{
		Symbol:      symbol,
		Side:        side,
		Type:        typ,
		Qty:         qty,
		StopPrice:   price,
		ClientID:    clientID,
		ReduceOnly:  true,
		WorkingType: "CONTRACT_PRICE",
	}
}
