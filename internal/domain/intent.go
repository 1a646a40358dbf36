package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide normalizes a user-supplied side string.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "long":
		return SideBuy, nil
	case "sell", "short":
		return SideSell, nil
	default:
		return "", NewInputError(fmt.Sprintf("invalid side: %q", s), nil)
	}
}

// Venue identifies an execution venue.
type Venue string

const (
	VenueBybit       Venue = "bybit"
	VenueHyperliquid Venue = "hyperliquid"
	VenueSolana      Venue = "solana"
)

// ParseVenue normalizes a user-supplied venue string.
func ParseVenue(s string) (Venue, error) {
	switch Venue(strings.ToLower(strings.TrimSpace(s))) {
	case VenueBybit:
		return VenueBybit, nil
	case VenueHyperliquid:
		return VenueHyperliquid, nil
	case VenueSolana, "jupiter":
		return VenueSolana, nil
	default:
		return "", NewInputError(fmt.Sprintf("unknown venue: %q", s), nil)
	}
}

// Constraints bound an execution attempt.
type Constraints struct {
	MaxSlippageBps int             // slippage tolerance in basis points (0 = venue default)
	TimeLimit      time.Duration   // confirmation wait bound (0 = venue default)
	MinLiquidity   decimal.Decimal // minimum acceptable output, venue units
}

// TradeIntent is a venue-agnostic instruction to execute one trade.
// Immutable once handed to an adapter.
type TradeIntent struct {
	ID          string
	Symbol      string
	Side        Side
	Amount      decimal.Decimal
	Leverage    int
	Venue       Venue
	Constraints Constraints
	Credentials VenueCredentials
}

// NewTradeIntent assigns a fresh correlation ID to an intent.
func NewTradeIntent(symbol string, side Side, amount decimal.Decimal, venue Venue) TradeIntent {
	return TradeIntent{
		ID:     uuid.NewString(),
		Symbol: symbol,
		Side:   side,
		Amount: amount,
		Venue:  venue,
	}
}

// Validate performs presence checks. Callers are expected to have validated
// the business content upstream; this is the last line before signing.
func (i TradeIntent) Validate() error {
	if i.ID == "" {
		return NewInputError("intent has no ID", nil)
	}
	if i.Symbol == "" {
		return NewInputError("intent has no symbol", nil)
	}
	if i.Side != SideBuy && i.Side != SideSell {
		return NewInputError(fmt.Sprintf("invalid side: %q", i.Side), nil)
	}
	if i.Amount.LessThanOrEqual(decimal.Zero) {
		return NewInputError(fmt.Sprintf("amount must be positive, got %s", i.Amount), nil)
	}
	if i.Leverage < 0 {
		return NewInputError(fmt.Sprintf("leverage must be non-negative, got %d", i.Leverage), nil)
	}
	return nil
}
