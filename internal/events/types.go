package events

// Event identifies a bus topic.
type Event string

const (
	// EventBracketPlaced fires when an entry plus both protective legs are
	// accepted by the venue.
	EventBracketPlaced Event = "bracket.placed"
	// EventBracketRolledBack fires after a partial-bracket failure is
	// compensated by flattening.
	EventBracketRolledBack Event = "bracket.rolled_back"
	// EventProtectiveFilled fires when the fill listener sees a protective
	// leg fill and cancels its sibling.
	EventProtectiveFilled Event = "protective.filled"
	// EventSweepCancelled fires when the reconciliation sweep cancels
	// orphaned orders for a symbol.
	EventSweepCancelled Event = "sweep.cancelled"
	// EventFeedFatal fires when the fill listener exhausts its reconnect
	// budget.
	EventFeedFatal Event = "feed.fatal"
)

// ProtectiveFill is the payload for EventProtectiveFilled.
type ProtectiveFill struct {
	Symbol        string
	ClientOrderID string
	Side          string
}

// BracketRef is the payload for bracket lifecycle events.
type BracketRef struct {
	Correlation string
	Symbol      string
}
