package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"testing"
	"time"

	"tradehook/internal/bracket"
	"tradehook/internal/events"
	"tradehook/internal/feed"
	"tradehook/internal/metadata"
	"tradehook/internal/profile"
	"tradehook/internal/sweep"
	"tradehook/pkg/config"
	"tradehook/pkg/exchanges/common"
)

// venueSim is an in-memory stand-in for the exchange: accepted orders rest
// until cancelled, entries open positions, close orders flatten them.
type venueSim struct {
	markets   []common.Market
	positions map[string]float64 // native symbol -> qty
	resting   map[string][]common.OrderRequest

	rejectPrefix string
}

func newVenueSim() *venueSim {
	return &venueSim{
		markets: []common.Market{
			{NativeSymbol: "BTCUSDT", TickSize: 0.5, ContractSize: 1, Active: true},
			{NativeSymbol: "ETHUSDT", TickSize: 0.01, ContractSize: 1, Active: true},
		},
		positions: make(map[string]float64),
		resting:   make(map[string][]common.OrderRequest),
	}
}

func (v *venueSim) FetchMarkets(ctx context.Context) ([]common.Market, error) {
	return v.markets, nil
}

func (v *venueSim) FetchPositions(ctx context.Context) ([]common.Position, error) {
	out := make([]common.Position, 0, len(v.positions))
	for sym, qty := range v.positions {
		out = append(out, common.Position{Symbol: sym, NativeSymbol: sym, Qty: qty})
	}
	return out, nil
}

func (v *venueSim) FetchBalance(ctx context.Context) ([]common.Balance, error) {
	return []common.Balance{{Asset: "USDT", Total: 10000, Available: 10000}}, nil
}

func (v *venueSim) CreateOrder(ctx context.Context, req common.OrderRequest) (common.Order, error) {
	if v.rejectPrefix != "" && strings.HasPrefix(req.ClientID, v.rejectPrefix) {
		return common.Order{}, errors.New("venue rejected order")
	}
	status := common.StatusNew
	if req.Type == common.OrderTypeMarket {
		status = common.StatusFilled
		if req.Side == common.SideBuy {
			v.positions[req.Symbol] += req.Qty
		} else {
			v.positions[req.Symbol] -= req.Qty
		}
	} else {
		v.resting[req.Symbol] = append(v.resting[req.Symbol], req)
	}
	return common.Order{
		ExchangeOrderID: fmt.Sprintf("sim-%d", len(v.resting[req.Symbol])),
		ClientID:        req.ClientID,
		Symbol:          req.Symbol,
		Side:            req.Side,
		Status:          status,
		Qty:             req.Qty,
		ExecutedQty:     req.Qty,
	}, nil
}

func (v *venueSim) CancelAllOrders(ctx context.Context, symbol string) error {
	delete(v.resting, symbol)
	return nil
}

func (v *venueSim) ClosePosition(ctx context.Context, symbol string) error {
	delete(v.positions, symbol)
	return nil
}

func (v *venueSim) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return nil
}

func (v *venueSim) SetMarginType(ctx context.Context, symbol, marginType string) error {
	return nil
}

// fillProtective simulates the venue filling one resting protective leg.
func (v *venueSim) fillProtective(symbol, prefix string) (string, bool) {
	for i, o := range v.resting[symbol] {
		if strings.HasPrefix(o.ClientID, prefix) {
			v.resting[symbol] = append(v.resting[symbol][:i], v.resting[symbol][i+1:]...)
			if o.Side == common.SideBuy {
				v.positions[symbol] += o.Qty
			} else {
				v.positions[symbol] -= o.Qty
			}
			return o.ClientID, true
		}
	}
	return "", false
}

// TestBracketWorkflow runs the full bracket lifecycle against the venue
// simulator: entry, protective legs, take-profit fill, sibling cancel,
// then a reconciliation sweep over the flat symbol.
func TestBracketWorkflow(t *testing.T) {
	log.Println("starting bracket workflow test")

	ctx := context.Background()
	venue := newVenueSim()
	bus := events.NewBus()

	prof, err := profile.New("binance", config.ExchangeOverrides{})
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	cache := metadata.New(venue, prof, time.Minute)
	engine := bracket.NewEngine(venue, prof, cache, bus, 1)
	listener := feed.NewListener(venue, nil, engine, bus, time.Hour)
	sweeper := sweep.New(venue, prof, bus, []string{"BTCUSD", "ETHUSD"}, 5*time.Minute, 4*time.Minute)

	signal := bracket.OrderRequest{
		Action:     "buy",
		Symbol:     "BTCUSD",
		Qty:        1,
		Price:      35000,
		Leverage:   5,
		TakeProfit: bracket.ProtectiveSpec{Offset: 500},
		StopLoss:   bracket.ProtectiveSpec{Offset: 300},
	}

	t.Run("PlaceBracket", func(t *testing.T) {
		result, err := engine.CreateBracket(ctx, signal)
		if err != nil {
			t.Fatalf("CreateBracket: %v", err)
		}
		if !result.Success {
			t.Fatal("bracket not completed")
		}
		if venue.positions["BTCUSDT"] != 1 {
			t.Fatalf("position = %v, want 1", venue.positions["BTCUSDT"])
		}
		if len(venue.resting["BTCUSDT"]) != 2 {
			t.Fatalf("expected 2 resting protective legs, got %d", len(venue.resting["BTCUSDT"]))
		}
	})

	t.Run("DuplicateSignalVetoed", func(t *testing.T) {
		if _, err := engine.CreateBracket(ctx, signal); !errors.Is(err, bracket.ErrPositionExists) {
			t.Fatalf("expected position veto, got %v", err)
		}
	})

	t.Run("TakeProfitFillCancelsSibling", func(t *testing.T) {
		clientID, ok := venue.fillProtective("BTCUSDT", bracket.TakeProfitPrefix)
		if !ok {
			t.Fatal("no take-profit leg to fill")
		}
		listener.HandleOrderUpdate(ctx, "BTCUSDT", clientID, "SELL", "FILLED")
		if len(venue.resting["BTCUSDT"]) != 0 {
			t.Fatalf("sibling stop-loss not cancelled: %+v", venue.resting["BTCUSDT"])
		}
	})

	t.Run("SweepCancelsOrphans", func(t *testing.T) {
		// Leave an orphaned order on a flat symbol.
		venue.resting["ETHUSDT"] = []common.OrderRequest{{Symbol: "ETHUSDT", ClientID: "sl-orphan"}}
		delete(venue.positions, "ETHUSDT")

		sweeper.RunOnce(ctx)

		if len(venue.resting["ETHUSDT"]) != 0 {
			t.Fatalf("orphaned orders survived the sweep: %+v", venue.resting["ETHUSDT"])
		}
	})

	t.Run("ProtectiveFailureRollsBack", func(t *testing.T) {
		venue.positions = map[string]float64{}
		venue.resting = map[string][]common.OrderRequest{}
		venue.rejectPrefix = bracket.StopLossPrefix

		_, err := engine.CreateBracket(ctx, signal)
		var partial *bracket.PartialBracketFailure
		if !errors.As(err, &partial) {
			t.Fatalf("expected PartialBracketFailure, got %v", err)
		}
		if len(venue.positions) != 0 {
			t.Fatalf("rollback left positions open: %+v", venue.positions)
		}
	})
}
