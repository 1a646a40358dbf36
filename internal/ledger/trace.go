package ledger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tradexec/internal/domain"
)

// TraceWriter appends per-venue request/response pairs as JSON lines, one
// file per venue. Write failures are swallowed: the trace exists to debug
// executions, it must never break one.
type TraceWriter struct {
	dir string
	mu  sync.Mutex
}

// NewTraceWriter creates the trace directory if needed.
func NewTraceWriter(dir string) (*TraceWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create trace dir: %w", err)
	}
	return &TraceWriter{dir: dir}, nil
}

type traceLine struct {
	Ts      string          `json:"ts"`
	Label   string          `json:"label"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Text    string          `json:"text,omitempty"`
}

// Trace appends one entry to the venue's trace file.
func (w *TraceWriter) Trace(venue domain.Venue, label string, payload []byte) {
	line := traceLine{
		Ts:    time.Now().UTC().Format(time.RFC3339Nano),
		Label: label,
	}
	if json.Valid(payload) {
		line.Payload = json.RawMessage(payload)
	} else {
		line.Text = string(payload)
	}

	data, err := json.Marshal(line)
	if err != nil {
		return
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	path := filepath.Join(w.dir, fmt.Sprintf("%s.trace.jsonl", venue))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		slog.Debug("trace open failed", slog.Any("error", err))
		return
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		slog.Debug("trace write failed", slog.Any("error", err))
	}
}
