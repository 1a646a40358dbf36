// Package venue defines the capability interface every execution venue
// implements. Shared logic never branches on venue name; the per-venue
// differences (HMAC vs. action-hash signing vs. transaction signing) live
// entirely behind this interface.
package venue

import (
	"context"

	"tradexec/internal/domain"
)

// Adapter drives one trade intent through a single venue. An adapter instance
// is scoped to one execution: credentials and resolved market metadata are
// not shared across intents.
//
// The stage order is fixed: ResolveMarket -> BuildOrder -> Sign -> Submit ->
// Confirm. BuildOrder may perform venue reads (leverage set, quote fetch);
// Sign must fail before any network call if key material is malformed.
type Adapter interface {
	// Name returns the venue identifier.
	Name() domain.Venue

	// ResolveMarket maps the intent's human symbol to venue market identity.
	ResolveMarket(ctx context.Context, intent domain.TradeIntent) (domain.MarketRef, error)

	// BuildOrder produces the unsigned venue payload. It may return
	// domain.ErrNoPosition to signal a successful no-op.
	BuildOrder(ctx context.Context, intent domain.TradeIntent, market domain.MarketRef) (domain.UnsignedOrder, error)

	// Sign attaches the venue-appropriate signature. No network calls.
	Sign(intent domain.TradeIntent, order domain.UnsignedOrder) (domain.SignedOrder, error)

	// Submit sends the signed order. The signed payload is consumed exactly
	// once; Submit is never retried with the same signature by callers.
	Submit(ctx context.Context, signed domain.SignedOrder) (domain.Submission, error)

	// Confirm awaits settlement with a bounded wait and returns the terminal
	// state. A confirmation timeout yields StateTimedOut, never a hang.
	Confirm(ctx context.Context, sub domain.Submission) (domain.Settlement, error)
}

// Stage names used by the coordinator for failure context.
const (
	StageResolve = "resolve_market"
	StageBuild   = "build_order"
	StageSign    = "sign"
	StageSubmit  = "submit"
	StageConfirm = "confirm"
)
