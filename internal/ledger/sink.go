package ledger

import (
	"context"
	"sync"

	"tradexec/internal/domain"
)

// Sink receives one record per execution attempt. Implementations must treat
// Append as best-effort from the caller's point of view: the Coordinator
// swallows append errors, a logging fault never aborts an execution.
type Sink interface {
	Append(ctx context.Context, rec domain.ExecutionResult) error
}

// Tracer receives the high-verbosity per-venue debug trace, one entry per
// request/response pair. Implementations never return errors; trace faults
// are silently dropped.
type Tracer interface {
	Trace(venue domain.Venue, label string, payload []byte)
}

// NopTracer discards all trace entries.
type NopTracer struct{}

func (NopTracer) Trace(domain.Venue, string, []byte) {}

// MemorySink is an in-memory Sink and Tracer for tests and dry runs.
type MemorySink struct {
	mu      sync.Mutex
	records []domain.ExecutionResult
	traces  []TraceEntry
	failErr error
}

// TraceEntry is one captured trace line.
type TraceEntry struct {
	Venue   domain.Venue
	Label   string
	Payload []byte
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// FailWith makes subsequent Appends return err, for fault-injection tests.
func (m *MemorySink) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

func (m *MemorySink) Append(_ context.Context, rec domain.ExecutionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *MemorySink) Trace(venue domain.Venue, label string, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := make([]byte, len(payload))
	copy(p, payload)
	m.traces = append(m.traces, TraceEntry{Venue: venue, Label: label, Payload: p})
}

// Records returns a copy of all appended results.
func (m *MemorySink) Records() []domain.ExecutionResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ExecutionResult, len(m.records))
	copy(out, m.records)
	return out
}

// Traces returns a copy of all captured trace entries.
func (m *MemorySink) Traces() []TraceEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TraceEntry, len(m.traces))
	copy(out, m.traces)
	return out
}
