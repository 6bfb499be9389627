package bracket

import (
	"errors"
	"testing"
)

func TestClassifyReject(t *testing.T) {
	tests := []struct {
		msg  string
		want RejectReason
	}{
		{"Margin is insufficient.", ReasonInsufficientBalance},
		{"Too many requests; current limit is 300", ReasonRateLimited},
		{"Order would trigger immediately: invalid price", ReasonInvalidPrice},
		{"Filter failure: LOT_SIZE minimum not met", ReasonBelowMinSize},
		{"something exotic", ReasonUnknown},
	}
	for _, tt := range tests {
		if got := classifyReject(errors.New(tt.msg)); got != tt.want {
			t.Fatalf("classifyReject(%q) = %s, want %s", tt.msg, got, tt.want)
		}
	}
	if classifyReject(nil) != ReasonUnknown {
		t.Fatal("nil error must classify as unknown")
	}
}

func TestPositionExistsErrorIs(t *testing.T) {
	err := error(&PositionExistsError{Symbol: "BTCUSD"})
	if !errors.Is(err, ErrPositionExists) {
		t.Fatal("PositionExistsError must match ErrPositionExists")
	}
	wrapped := &GatewayError{Op: "test", Err: err}
	if !errors.Is(wrapped, ErrPositionExists) {
		t.Fatal("wrapped veto must still match")
	}
}

func TestPartialBracketFailureUnwrap(t *testing.T) {
	cause := newGatewayError("take_profit order", errors.New("insufficient margin"))
	err := &PartialBracketFailure{Leg: "take_profit", Flattened: true, Err: cause}

	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatal("expected to unwrap to GatewayError")
	}
	if gwErr.Reason != ReasonInsufficientBalance {
		t.Fatalf("reason = %s", gwErr.Reason)
	}
}
