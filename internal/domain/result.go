package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ExecutionResult is the single cross-venue output contract. Exactly one is
// created per execution attempt, success or failure, and appended to the
// ledger. Immutable once created.
type ExecutionResult struct {
	IntentID       string          `json:"intentId"`
	Venue          Venue           `json:"venue"`
	Success        bool            `json:"success"`
	OrderID        string          `json:"orderId,omitempty"`
	TxHash         string          `json:"txHash,omitempty"`
	ExecutedAmount decimal.Decimal `json:"executedAmount"`
	ExecutedPrice  decimal.Decimal `json:"executedPrice"`
	Fees           decimal.Decimal `json:"fees"`
	SlippageBps    int64           `json:"slippageBps,omitempty"`
	State          string          `json:"state,omitempty"`
	Stage          string          `json:"stage,omitempty"`
	Message        string          `json:"message,omitempty"`
	Error          string          `json:"error,omitempty"`
	ErrorKind      string          `json:"errorKind,omitempty"`
	ExecutionTime  time.Duration   `json:"executionTimeNs,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// SuccessResult builds the result for a settled execution.
func SuccessResult(intent TradeIntent, st Settlement, elapsed time.Duration) ExecutionResult {
	return ExecutionResult{
		IntentID:       intent.ID,
		Venue:          intent.Venue,
		Success:        true,
		OrderID:        st.OrderID,
		TxHash:         st.TxHash,
		ExecutedAmount: st.ExecutedAmount,
		ExecutedPrice:  st.ExecutedPrice,
		Fees:           st.Fees,
		SlippageBps:    st.SlippageBps,
		State:          st.State.String(),
		ExecutionTime:  elapsed,
		Timestamp:      time.Now().UTC(),
	}
}

// NoopResult builds the result for an attempt that had nothing to do
// (e.g. closing a position that does not exist).
func NoopResult(intent TradeIntent, message string, elapsed time.Duration) ExecutionResult {
	return ExecutionResult{
		IntentID:      intent.ID,
		Venue:         intent.Venue,
		Success:       true,
		Message:       message,
		State:         StateConfirmed.String(),
		ExecutionTime: elapsed,
		Timestamp:     time.Now().UTC(),
	}
}

// FailureResult builds the result for a failed attempt. The stage records how
// far the pipeline got before the error.
func FailureResult(intent TradeIntent, stage string, err error, elapsed time.Duration) ExecutionResult {
	res := ExecutionResult{
		IntentID:      intent.ID,
		Venue:         intent.Venue,
		Success:       false,
		Stage:         stage,
		Error:         err.Error(),
		ErrorKind:     KindOf(err).String(),
		State:         StateFailed.String(),
		ExecutionTime: elapsed,
		Timestamp:     time.Now().UTC(),
	}
	var ee *ExecError
	if errors.As(err, &ee) && ee.Kind == KindSettlementAmbiguous {
		res.State = StateTimedOut.String()
	}
	return res
}
