package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies execution failures. The kind decides whether an error
// is retryable and how it is surfaced in the ExecutionResult.
type ErrorKind int

const (
	// KindInput: missing or malformed intent fields, unparsable credentials.
	// Fails fast, before any network call.
	KindInput ErrorKind = iota
	// KindResolution: symbol or market not found. Fatal per attempt.
	KindResolution
	// KindVenueRejection: transport accepted the request, venue logic rejected
	// it (bad signature, insufficient margin, quote expired). Not retryable
	// within this attempt.
	KindVenueRejection
	// KindTransport: network errors and timeouts. Retried only at the
	// broadcast layer for on-chain venues.
	KindTransport
	// KindSettlementAmbiguous: broadcast succeeded but confirmation timed
	// out. The transaction may still land; never coerced to success or failure.
	KindSettlementAmbiguous
)

func (k ErrorKind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindResolution:
		return "resolution"
	case KindVenueRejection:
		return "venue_rejection"
	case KindTransport:
		return "transport"
	case KindSettlementAmbiguous:
		return "settlement_ambiguous"
	default:
		return "unknown"
	}
}

// ExecError is a classified execution failure carrying the venue's own error
// code when one exists.
type ExecError struct {
	Kind      ErrorKind
	VenueCode string // venue-reported code, if any
	Msg       string
	Err       error
}

func (e *ExecError) Error() string {
	if e.VenueCode != "" {
		return fmt.Sprintf("%s: %s (venue code %s)", e.Kind, e.Msg, e.VenueCode)
	}
	if e.Err != nil && e.Msg != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *ExecError) Unwrap() error { return e.Err }

func NewInputError(msg string, err error) *ExecError {
	return &ExecError{Kind: KindInput, Msg: msg, Err: err}
}

func NewResolutionError(msg string) *ExecError {
	return &ExecError{Kind: KindResolution, Msg: msg}
}

func NewRejectionError(code, msg string) *ExecError {
	return &ExecError{Kind: KindVenueRejection, VenueCode: code, Msg: msg}
}

func NewTransportError(msg string, err error) *ExecError {
	return &ExecError{Kind: KindTransport, Msg: msg, Err: err}
}

func NewAmbiguousError(msg string) *ExecError {
	return &ExecError{Kind: KindSettlementAmbiguous, Msg: msg}
}

// KindOf extracts the classification of err. Unclassified errors default to
// transport, the most conservative non-retryable bucket for this attempt.
func KindOf(err error) ErrorKind {
	var ee *ExecError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return KindTransport
}

// ErrNoPosition signals a close request against a zero balance. It is a
// successful no-op, not a failure.
var ErrNoPosition = errors.New("no position to close")
