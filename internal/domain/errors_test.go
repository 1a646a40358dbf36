package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{NewInputError("bad field", nil), KindInput},
		{NewResolutionError("not found"), KindResolution},
		{NewRejectionError("110007", "insufficient balance"), KindVenueRejection},
		{NewTransportError("timeout", nil), KindTransport},
		{NewAmbiguousError("unconfirmed"), KindSettlementAmbiguous},
		// Wrapped classification survives.
		{fmt.Errorf("submit: %w", NewRejectionError("1", "no")), KindVenueRejection},
		// Unclassified errors default to transport.
		{errors.New("plain"), KindTransport},
	}

	for _, c := range cases {
		if got := KindOf(c.err); got != c.want {
			t.Errorf("KindOf(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestExecErrorMessage(t *testing.T) {
	err := NewRejectionError("110043", "leverage not modified")
	msg := err.Error()
	if !strings.Contains(msg, "110043") {
		t.Errorf("venue code missing from message: %s", msg)
	}
	if !strings.Contains(msg, "venue_rejection") {
		t.Errorf("kind missing from message: %s", msg)
	}

	inner := errors.New("dial tcp: refused")
	wrapped := NewTransportError("submit", inner)
	if !errors.Is(wrapped, inner) {
		t.Error("wrapped cause not reachable through errors.Is")
	}
}

func TestSettlementStates(t *testing.T) {
	if !StateConfirmed.Terminal() || !StateFailed.Terminal() || !StateTimedOut.Terminal() {
		t.Error("terminal states misclassified")
	}
	if StatePending.Terminal() {
		t.Error("pending must not be terminal")
	}
	if StateFailed.Retryable() {
		t.Error("failed must not be retryable")
	}
	if !StateTimedOut.Retryable() {
		t.Error("timed out is the retryable ambiguous outcome")
	}
}
