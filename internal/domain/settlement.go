package domain

// SettlementState tracks an order through the on-chain submission lifecycle:
// Built -> Signed -> Broadcast -> Pending -> {Confirmed | Failed | TimedOut}.
// Pending is the only state with an external wait.
type SettlementState int

const (
	StateBuilt SettlementState = iota
	StateSigned
	StateBroadcast
	StatePending
	StateConfirmed
	StateFailed
	StateTimedOut
)

func (s SettlementState) String() string {
	switch s {
	case StateBuilt:
		return "BUILT"
	case StateSigned:
		return "SIGNED"
	case StateBroadcast:
		return "BROADCAST"
	case StatePending:
		return "PENDING"
	case StateConfirmed:
		return "CONFIRMED"
	case StateFailed:
		return "FAILED"
	case StateTimedOut:
		return "TIMED_OUT"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the state is final.
func (s SettlementState) Terminal() bool {
	return s == StateConfirmed || s == StateFailed || s == StateTimedOut
}

// Retryable distinguishes TimedOut (the transaction may still land; a caller
// may re-attempt with a fresh intent) from a hard Failed rejection.
func (s SettlementState) Retryable() bool {
	return s == StateTimedOut
}
