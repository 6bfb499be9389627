// Package feed maintains the authenticated user data stream and reacts to
// protective-leg fills by cancelling the sibling leg.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"tradehook/internal/bracket"
	"tradehook/internal/events"
	"tradehook/pkg/exchanges/common"
)

// Flattener closes every open position. Used as the last resort when the
// stream cannot be kept alive and fills could go unseen.
type Flattener interface {
	FlattenAll(ctx context.Context) error
}

const (
	// maxConsecutiveFailures is the reconnect budget. Exceeding it means
	// protective fills may be missed, so the account is flattened and the
	// process terminates rather than trade blind.
	maxConsecutiveFailures = 3

	reconnectDelay = 5 * time.Second

	// The venue pings every few minutes; pings and data frames both push
	// the read deadline forward, so a healthy but quiet stream stays up.
	readTimeout = 5 * time.Minute
)

// Listener owns one websocket session to the venue's user data stream.
type Listener struct {
	gateway   common.Gateway
	stream    common.StreamGateway
	flattener Flattener
	bus       *events.Bus

	refreshInterval time.Duration
	retryDelay      time.Duration
	readTimeout     time.Duration

	// fatal terminates the process; replaced in tests.
	fatal func()
}

// NewListener wires a fill listener. refreshInterval is how often the
// listen key is renewed; the venue expires keys after 60 minutes.
func NewListener(gw common.Gateway, stream common.StreamGateway, flattener Flattener, bus *events.Bus, refreshInterval time.Duration) *Listener {
	return &Listener{
		gateway:         gw,
		stream:          stream,
		flattener:       flattener,
		bus:             bus,
		refreshInterval: refreshInterval,
		retryDelay:      reconnectDelay,
		readTimeout:     readTimeout,
		fatal:           func() { os.Exit(1) },
	}
}

// Run connects and reads until ctx is done. An established session that
// drops resets the failure streak and reconnects immediately; after
// maxConsecutiveFailures failed connection attempts in a row all positions
// are flattened and the process terminates.
func (l *Listener) Run(ctx context.Context) {
	failures := 0
	for {
		if ctx.Err() != nil {
			return
		}
		connected, err := l.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if connected {
			failures = 0
			log.Printf("feed: stream dropped, reconnecting: %v", err)
			continue
		}
		failures++
		log.Printf("feed: stream connect failed (%d/%d): %v", failures, maxConsecutiveFailures, err)
		if failures >= maxConsecutiveFailures {
			l.terminate(ctx)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(l.retryDelay):
		}
	}
}

// session establishes one websocket connection and reads events until it
// drops. The returned bool reports whether the connection was established
// at all; a session that connected resets the caller's failure streak.
func (l *Listener) session(ctx context.Context) (bool, error) {
	key, err := l.stream.CreateListenKey(ctx)
	if err != nil {
		return false, fmt.Errorf("create listen key: %w", err)
	}

	url := l.stream.StreamHost() + "/ws/" + key
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", l.stream.StreamHost(), err)
	}
	defer conn.Close()
	log.Printf("feed: connected to user data stream")

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go l.keepAlive(sessionCtx, key)
	go func() {
		// Unblocks ReadMessage when ctx is cancelled.
		<-sessionCtx.Done()
		conn.Close()
	}()

	extend := func() { conn.SetReadDeadline(time.Now().Add(l.readTimeout)) }
	extend()
	conn.SetPingHandler(func(appData string) error {
		extend()
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(10*time.Second))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})
	conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read: %w", err)
		}
		extend()
		l.handleMessage(ctx, msg)
	}
}

// keepAlive renews the listen key on a fixed interval until the session
// ends. A failed renewal is logged; the stream itself will drop if the
// key actually expires and the reconnect path takes over.
func (l *Listener) keepAlive(ctx context.Context, key string) {
	ticker := time.NewTicker(l.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.stream.KeepAliveListenKey(ctx, key); err != nil {
				log.Printf("feed: listen key keepalive failed: %v", err)
			} else {
				log.Printf("feed: listen key renewed")
			}
		}
	}
}

// streamEvent is the envelope of a user data stream message. Only order
// updates carry the nested payload.
type streamEvent struct {
	Type  string `json:"e"`
	Order struct {
		Symbol   string `json:"s"`
		ClientID string `json:"c"`
		Side     string `json:"S"`
		Status   string `json:"X"`
	} `json:"o"`
}

func (l *Listener) handleMessage(ctx context.Context, msg []byte) {
	var ev streamEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		log.Printf("feed: malformed stream message: %v", err)
		return
	}
	if ev.Type != "ORDER_TRADE_UPDATE" {
		return
	}
	l.HandleOrderUpdate(ctx, ev.Order.Symbol, ev.Order.ClientID, ev.Order.Side, ev.Order.Status)
}

// HandleOrderUpdate applies the sibling-cancel rule: a filled protective
// leg cancels every remaining order on its symbol, which removes the
// sibling leg. Cancelling all orders is idempotent, so a duplicate update
// is harmless.
func (l *Listener) HandleOrderUpdate(ctx context.Context, symbol, clientID, side, status string) {
	if status != string(common.StatusFilled) {
		return
	}
	if !bracket.IsProtectiveClientID(clientID) {
		return
	}
	log.Printf("feed: protective order %s filled on %s, cancelling sibling", clientID, symbol)
	if err := l.gateway.CancelAllOrders(ctx, symbol); err != nil {
		log.Printf("feed: cancel open orders for %s: %v", symbol, err)
		return
	}
	if l.bus != nil {
		l.bus.Publish(events.EventProtectiveFilled, events.ProtectiveFill{
			Symbol:        symbol,
			ClientOrderID: clientID,
			Side:          side,
		})
	}
}

// terminate flattens every position and stops the process. Running
// without the fill listener would leave filled protective legs with a
// live sibling order, so trading halts entirely.
func (l *Listener) terminate(ctx context.Context) {
	log.Printf("feed: reconnect budget exhausted, flattening all positions and terminating")
	flattenCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := l.flattener.FlattenAll(flattenCtx); err != nil {
		log.Printf("feed: flatten during termination failed: %v", err)
	}
	if l.bus != nil {
		l.bus.Publish(events.EventFeedFatal, nil)
	}
	l.fatal()
}
