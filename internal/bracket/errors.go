package bracket

import (
	"errors"
	"fmt"
	"strings"

	"tradehook/pkg/exchanges/common"
)

// ErrPositionExists is matched via errors.Is against PositionExistsError.
var ErrPositionExists = errors.New("position already exists")

// ValidationError rejects a malformed request before any exchange call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

// PositionExistsError is the Position Guard veto. It carries the live
// snapshot for caller inspection; InFlight marks a local reservation hit
// rather than an exchange-side position.
type PositionExistsError struct {
	Symbol   string
	Position common.Position
	InFlight bool
}

func (e *PositionExistsError) Error() string {
	if e.InFlight {
		return fmt.Sprintf("bracket already in flight for %s", e.Symbol)
	}
	return fmt.Sprintf("position already exists for %s (qty %v)", e.Symbol, e.Position.Qty)
}

func (e *PositionExistsError) Is(target error) bool { return target == ErrPositionExists }

// RejectReason classifies a venue rejection for diagnostics. All reasons
// are handled uniformly.
type RejectReason string

const (
	ReasonInsufficientBalance RejectReason = "insufficient_balance"
	ReasonInvalidPrice        RejectReason = "invalid_price"
	ReasonRateLimited         RejectReason = "rate_limited"
	ReasonBelowMinSize        RejectReason = "below_min_size"
	ReasonUnknown             RejectReason = "unknown"
)

// classifyReject derives a RejectReason from the venue error text.
func classifyReject(err error) RejectReason {
	if err == nil {
		return ReasonUnknown
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient"):
		return ReasonInsufficientBalance
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
		return ReasonRateLimited
	case strings.Contains(msg, "invalid price") || strings.Contains(msg, "price"):
		return ReasonInvalidPrice
	case strings.Contains(msg, "min size") || strings.Contains(msg, "minimum") || strings.Contains(msg, "lot size"):
		return ReasonBelowMinSize
	default:
		return ReasonUnknown
	}
}

// GatewayError wraps a venue rejection with its operation and classified
// reason.
type GatewayError struct {
	Op     string
	Reason RejectReason
	Err    error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway rejected %s (%s): %v", e.Op, e.Reason, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func newGatewayError(op string, err error) *GatewayError {
	return &GatewayError{Op: op, Reason: classifyReject(err), Err: err}
}

// PartialBracketFailure means the entry was accepted but a protective leg
// was not. The position is flattened account-wide as compensation; the
// flatten outcome travels with the error.
type PartialBracketFailure struct {
	Leg        string // "take_profit" or "stop_loss"
	Flattened  bool
	FlattenErr error
	Err        error
}

func (e *PartialBracketFailure) Error() string {
	outcome := "all positions flattened"
	if !e.Flattened {
		outcome = fmt.Sprintf("flatten failed: %v", e.FlattenErr)
	}
	return fmt.Sprintf("%s leg failed, %s: %v", e.Leg, outcome, e.Err)
}

func (e *PartialBracketFailure) Unwrap() error { return e.Err }
