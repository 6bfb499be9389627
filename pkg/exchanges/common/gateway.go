package common

import "context"

// Gateway abstracts a derivatives venue. All calls are network-bound and
// honor the passed context.
type Gateway interface {
	// FetchMarkets returns the full instrument list in one batch call.
	FetchMarkets(ctx context.Context) ([]Market, error)
	// FetchPositions returns all open positions for the account.
	FetchPositions(ctx context.Context) ([]Position, error)
	// FetchBalance returns account balances.
	FetchBalance(ctx context.Context) ([]Balance, error)
	// CreateOrder submits one order and returns the venue ack.
	CreateOrder(ctx context.Context, req OrderRequest) (Order, error)
	// CancelAllOrders cancels every outstanding order for a native symbol.
	CancelAllOrders(ctx context.Context, symbol string) error
	// ClosePosition flattens the position for a native symbol at market.
	ClosePosition(ctx context.Context, symbol string) error
	// SetLeverage sets leverage for a native symbol.
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	// SetMarginType sets the margin mode (ISOLATED or CROSSED) for a symbol.
	SetMarginType(ctx context.Context, symbol, marginType string) error
}

// StreamGateway issues and renews the session key for the venue's
// push feed of order/fill events.
type StreamGateway interface {
	CreateListenKey(ctx context.Context) (string, error)
	KeepAliveListenKey(ctx context.Context, listenKey string) error
	// StreamHost returns the websocket base URL serving the user data stream.
	StreamHost() string
}
