package common

import "time"

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the inverse side, used for protective legs.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType denotes the order types the engine submits.
type OrderType string

const (
	OrderTypeMarket           OrderType = "MARKET"
	OrderTypeLimit            OrderType = "LIMIT"
	OrderTypeStop             OrderType = "STOP"
	OrderTypeStopMarket       OrderType = "STOP_MARKET"
	OrderTypeTakeProfit       OrderType = "TAKE_PROFIT"
	OrderTypeTakeProfitMarket OrderType = "TAKE_PROFIT_MARKET"
)

// OrderStatus normalizes exchange status into a small set.
type OrderStatus string

const (
	StatusNew      OrderStatus = "NEW"
	StatusPartial  OrderStatus = "PARTIAL"
	StatusFilled   OrderStatus = "FILLED"
	StatusCanceled OrderStatus = "CANCELED"
	StatusRejected OrderStatus = "REJECTED"
	StatusExpired  OrderStatus = "EXPIRED"
	StatusUnknown  OrderStatus = "UNKNOWN"
)

// Market is one tradable instrument as reported by the venue's batch
// metadata endpoint.
type Market struct {
	NativeSymbol   string  // venue identifier used for order placement
	TickSize       float64 // minimum price increment, 0 when not reported
	PricePrecision int     // decimal places, -1 when not reported
	MinPrice       float64 // lower price limit, 0 when not reported
	ContractSize   float64 // native units per contract, 0 when not reported
	Active         bool
}

// OrderRequest captures an order intent to be sent to a venue.
type OrderRequest struct {
	Symbol      string // native symbol
	Side        Side
	Type        OrderType
	Qty         float64
	Price       float64 // required for LIMIT
	StopPrice   float64 // required for STOP/TAKE_PROFIT variants
	TimeInForce string
	ClientID    string // client order id, carries the bracket leg prefix
	ReduceOnly  bool
	WorkingType string // trigger price source where the venue distinguishes
}

// Order is the venue's ack for a submitted order.
type Order struct {
	ExchangeOrderID string
	ClientID        string
	Symbol          string
	Side            Side
	Status          OrderStatus
	Price           float64
	StopPrice       float64
	Qty             float64
	ExecutedQty     float64 // venue may adjust the requested quantity
}

// Position is a read-only snapshot of one open position. Never cached;
// the guard and the sweep treat it as ground truth.
type Position struct {
	Symbol        string  // gateway symbol used for the position lookup
	NativeSymbol  string  // venue identifier
	Qty           float64 // signed contract quantity
	EntryPrice    float64
	MarkPrice     float64
	UnrealizedPnL float64
	Leverage      int
	Timestamp     time.Time
}

// Balance is one asset's account balance.
type Balance struct {
	Asset     string
	Total     float64
	Available float64
}
