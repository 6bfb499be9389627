// Package bracket sequences an entry order and its protective take-profit
// and stop-loss legs as one unit of work, with compensation-based rollback
// when a protective leg is rejected after the entry was accepted.
package bracket

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"

	"tradehook/internal/calc"
	"tradehook/internal/events"
	"tradehook/internal/metadata"
	"tradehook/internal/profile"
	"tradehook/pkg/exchanges/common"
)

// Engine is the bracket orchestrator. One CreateBracket run is strictly
// sequential; runs for different symbols proceed concurrently and share
// only the metadata cache.
type Engine struct {
	gateway common.Gateway
	profile profile.Profile
	cache   *metadata.Cache
	guard   *Guard
	bus     *events.Bus

	defaultLeverage int
}

// NewEngine wires the orchestrator. defaultLeverage applies when a
// signal omits leverage on venues that require it.
func NewEngine(gw common.Gateway, prof profile.Profile, cache *metadata.Cache, bus *events.Bus, defaultLeverage int) *Engine {
	if defaultLeverage <= 0 {
		defaultLeverage = 1
	}
	return &Engine{
		gateway:         gw,
		profile:         prof,
		cache:           cache,
		guard:           NewGuard(gw, prof),
		bus:             bus,
		defaultLeverage: defaultLeverage,
	}
}

// Guard exposes the position guard for read-only position lookups.
func (e *Engine) Guard() *Guard { return e.guard }

// PrepareMargin forces isolated margin on the traded symbols when the
// profile requires it. Called once at startup; an error on one symbol
// does not stop the rest.
func (e *Engine) PrepareMargin(ctx context.Context, symbols []string) {
	if !e.profile.RequiresIsolatedMargin() {
		return
	}
	for _, sym := range symbols {
		native := e.profile.NativeSymbol(sym)
		if err := e.gateway.SetMarginType(ctx, native, "ISOLATED"); err != nil {
			log.Printf("bracket: set isolated margin for %s: %v", native, err)
		}
	}
}

// CreateBracket validates the request, applies the position guard, and
// sequences entry -> take-profit -> stop-loss. Entry rejection has no side
// effect; a protective-leg rejection flattens all account positions
// because a naked entry without a stop is treated as worse than closing
// out.
func (e *Engine) CreateBracket(ctx context.Context, req OrderRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	release, err := e.guard.acquire(req.Symbol)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := e.guard.AssertNoPosition(ctx, req.Symbol); err != nil {
		return nil, err
	}

	meta, err := e.cache.Resolve(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}

	side := req.Side()
	qty := e.profile.Quantity(req.Qty, meta.ContractSize, req.Price)
	correlation := uuid.NewString()
	log.Printf("bracket %s: %s %s qty=%v (lots=%v, tick=%v)",
		correlation, side, meta.Native, qty, req.Qty, meta.TickSize)

	// Leverage is set before the entry; a failure here aborts with nothing
	// to roll back.
	if e.profile.RequiresLeverage() {
		leverage := req.Leverage
		if leverage <= 0 {
			leverage = e.defaultLeverage
		}
		if err := e.gateway.SetLeverage(ctx, meta.Native, leverage); err != nil {
			return nil, newGatewayError("set leverage", err)
		}
	}

	entry, err := e.submitEntry(ctx, req, meta.Native, side, qty, correlation)
	if err != nil {
		return nil, err
	}

	// Protective quantity follows what the venue actually executed; the
	// ack may adjust the requested quantity.
	executedQty := entry.ExecutedQty
	if executedQty == 0 {
		executedQty = entry.Qty
	}
	if executedQty == 0 {
		executedQty = qty
	}
	if entry.ExecutedQty != 0 && entry.ExecutedQty != qty {
		log.Printf("bracket %s: venue adjusted quantity %v -> %v", correlation, qty, entry.ExecutedQty)
	}

	// Trigger prices come from the requested reference price, not a polled
	// fill price: the entry ack may not carry one promptly.
	gainPrice := calc.PriceForOffset(req.Price, req.TakeProfit.Offset, req.TakeProfit.IsPercentage, true, side, meta.TickSize)
	lossPrice := calc.PriceForOffset(req.Price, req.StopLoss.Offset, req.StopLoss.IsPercentage, false, side, meta.TickSize)

	result := &Result{Correlation: correlation, Entry: &entry}
	protSide := side.Opposite()

	tpReq := e.profile.ProtectiveOrder(meta.Native, protSide, executedQty, gainPrice, TakeProfitPrefix+correlation, true)
	tp, err := e.gateway.CreateOrder(ctx, tpReq)
	if err != nil {
		return result, e.rollback(ctx, correlation, req.Symbol, "take_profit", err)
	}
	result.TakeProfit = &tp

	slReq := e.profile.ProtectiveOrder(meta.Native, protSide, executedQty, lossPrice, StopLossPrefix+correlation, false)
	sl, err := e.gateway.CreateOrder(ctx, slReq)
	if err != nil {
		return result, e.rollback(ctx, correlation, req.Symbol, "stop_loss", err)
	}
	result.StopLoss = &sl

	result.Success = true
	log.Printf("bracket %s: completed entry=%s tp=%s@%v sl=%s@%v",
		correlation, entry.ExchangeOrderID, tp.ExchangeOrderID, gainPrice, sl.ExchangeOrderID, lossPrice)
	if e.bus != nil {
		e.bus.Publish(events.EventBracketPlaced, events.BracketRef{Correlation: correlation, Symbol: req.Symbol})
	}
	return result, nil
}

// submitEntry places the entry order: limit when a limit price was
// supplied, market otherwise.
func (e *Engine) submitEntry(ctx context.Context, req OrderRequest, native string, side common.Side, qty float64, correlation string) (common.Order, error) {
	orderReq := common.OrderRequest{
		Symbol:   native,
		Side:     side,
		Type:     common.OrderTypeMarket,
		Qty:      qty,
		ClientID: EntryPrefix + correlation,
	}
	if req.LimitPrice > 0 {
		orderReq.Type = common.OrderTypeLimit
		orderReq.Price = req.LimitPrice
	}
	entry, err := e.gateway.CreateOrder(ctx, orderReq)
	if err != nil {
		return common.Order{}, newGatewayError("entry order", err)
	}
	log.Printf("bracket %s: entry accepted id=%s status=%s", correlation, entry.ExchangeOrderID, entry.Status)
	return entry, nil
}

// rollback compensates a partial bracket by flattening every position on
// the account. Account-wide on purpose: no unprotected exposure wins over
// minimizing blast radius, and the failures are rare.
func (e *Engine) rollback(ctx context.Context, correlation, symbol, leg string, cause error) error {
	log.Printf("bracket %s: %s leg rejected, flattening all positions: %v", correlation, leg, cause)
	flattenErr := e.FlattenAll(ctx)
	if e.bus != nil {
		e.bus.Publish(events.EventBracketRolledBack, events.BracketRef{Correlation: correlation, Symbol: symbol})
	}
	return &PartialBracketFailure{
		Leg:        leg,
		Flattened:  flattenErr == nil,
		FlattenErr: flattenErr,
		Err:        newGatewayError(leg+" order", cause),
	}
}

// FlattenAll closes every open position on the account.
func (e *Engine) FlattenAll(ctx context.Context) error {
	positions, err := e.gateway.FetchPositions(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, p := range positions {
		if p.Qty == 0 {
			continue
		}
		if err := e.gateway.ClosePosition(ctx, p.NativeSymbol); err != nil {
			errs = append(errs, err)
			log.Printf("bracket: flatten %s failed: %v", p.NativeSymbol, err)
		} else {
			log.Printf("bracket: flattened %s (qty %v)", p.NativeSymbol, p.Qty)
		}
	}
	return errors.Join(errs...)
}

// GetPosition returns the live snapshot for a canonical symbol.
func (e *Engine) GetPosition(ctx context.Context, symbol string) (*common.Position, bool, error) {
	return e.guard.Position(ctx, symbol)
}

// ClosePosition flattens one symbol's position.
func (e *Engine) ClosePosition(ctx context.Context, symbol string) error {
	return e.gateway.ClosePosition(ctx, e.profile.NativeSymbol(symbol))
}

// CancelAllOrders cancels every outstanding order for a canonical symbol.
func (e *Engine) CancelAllOrders(ctx context.Context, symbol string) error {
	return e.gateway.CancelAllOrders(ctx, e.profile.NativeSymbol(symbol))
}

// Balance returns the account balances.
func (e *Engine) Balance(ctx context.Context) ([]common.Balance, error) {
	return e.gateway.FetchBalance(ctx)
}
