package bracket

import (
	"strings"

	"tradehook/pkg/exchanges/common"
)

// Client order ID prefixes shared with the fill listener. Protective legs
// are recognized on the fill feed by these prefixes.
const (
	EntryPrefix      = "entry-"
	TakeProfitPrefix = "tp-"
	StopLossPrefix   = "sl-"
)

// IsProtectiveClientID reports whether a client order ID belongs to a
// bracket's protective leg.
func IsProtectiveClientID(id string) bool {
	return strings.HasPrefix(id, TakeProfitPrefix) || strings.HasPrefix(id, StopLossPrefix)
}

// ProtectiveSpec describes one protective leg's offset from the reference
// price, in price points or percent.
type ProtectiveSpec struct {
	Offset       float64 `json:"points"`
	IsPercentage bool    `json:"is_percentage"`
}

// OrderRequest is one inbound trade signal asking for an entry order with
// a protective bracket. Immutable once validated.
type OrderRequest struct {
	Exchange   string         `json:"exchange"`
	Interval   string         `json:"interval"`
	SignalTime string         `json:"now"`
	Action     string         `json:"action"` // buy | sell
	Symbol     string         `json:"symbol"` // canonical symbol
	Qty        float64        `json:"qty"`    // lots
	Price      float64        `json:"price"`  // reference price
	LimitPrice float64        `json:"limit_price,omitempty"`
	Leverage   int            `json:"leverage,omitempty"`
	TakeProfit ProtectiveSpec `json:"take_profit"`
	StopLoss   ProtectiveSpec `json:"stop_loss"`
}

// Side returns the normalized entry side. Callers must Validate first.
func (r *OrderRequest) Side() common.Side {
	if strings.EqualFold(r.Action, "sell") {
		return common.SideSell
	}
	return common.SideBuy
}

// Validate rejects malformed requests before any exchange call.
func (r *OrderRequest) Validate() error {
	action := strings.ToLower(r.Action)
	if action != "buy" && action != "sell" {
		return &ValidationError{Field: "action", Reason: `must be "buy" or "sell"`}
	}
	if r.Symbol == "" {
		return &ValidationError{Field: "symbol", Reason: "required"}
	}
	if r.Qty <= 0 {
		return &ValidationError{Field: "qty", Reason: "must be positive"}
	}
	if r.Price <= 0 {
		return &ValidationError{Field: "price", Reason: "must be positive"}
	}
	if r.TakeProfit.Offset == 0 {
		return &ValidationError{Field: "take_profit.points", Reason: "must be non-zero"}
	}
	if r.StopLoss.Offset == 0 {
		return &ValidationError{Field: "stop_loss.points", Reason: "must be non-zero"}
	}
	if r.Leverage < 0 {
		return &ValidationError{Field: "leverage", Reason: "must not be negative"}
	}
	return nil
}

// Result reports the orders placed for one bracket. On a partial failure
// it carries whatever was accepted before the rollback.
type Result struct {
	Success     bool          `json:"success"`
	Correlation string        `json:"correlation"`
	Entry       *common.Order `json:"entry,omitempty"`
	TakeProfit  *common.Order `json:"take_profit,omitempty"`
	StopLoss    *common.Order `json:"stop_loss,omitempty"`
	Error       string        `json:"error,omitempty"`
}
