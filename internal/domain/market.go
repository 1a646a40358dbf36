package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// MarketRef is venue-specific market identity resolved from a human symbol.
// Only the fields relevant to the owning venue are populated. Resolution is
// a read against venue metadata, cached within one execution, never persisted.
type MarketRef struct {
	Venue      Venue
	Symbol     string // venue-formatted instrument (e.g. "BTCUSDT", "BTC")
	AssetIndex int    // Hyperliquid numeric asset index
	SzDecimals int    // Hyperliquid size precision
	Mint       string // Solana token mint address
}

// UnsignedOrder is a venue-specific order payload before signing.
// Payload is opaque to shared logic; only the owning adapter interprets it.
type UnsignedOrder struct {
	Market  MarketRef
	Payload any
}

// SignedOrder is an opaque signed payload, consumed exactly once by submission.
type SignedOrder struct {
	Market  MarketRef
	Payload any
}

// Submission is the venue's acknowledgement of a submitted order.
type Submission struct {
	Market  MarketRef
	OrderID string // CEX order identifier
	TxHash  string // on-chain transaction signature/hash
	Raw     json.RawMessage
}

// Settlement is the terminal outcome of one submission.
type Settlement struct {
	State          SettlementState
	OrderID        string
	TxHash         string
	ExecutedAmount decimal.Decimal
	ExecutedPrice  decimal.Decimal
	Fees           decimal.Decimal
	SlippageBps    int64
	Raw            json.RawMessage
}
