package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tradexec/internal/domain"
)

func TestTraceWriterAppendsPerVenueFiles(t *testing.T) {
	dir := t.TempDir()
	tw, err := NewTraceWriter(dir)
	if err != nil {
		t.Fatal(err)
	}

	tw.Trace(domain.VenueBybit, "request /v5/order/create", []byte(`{"symbol":"BTCUSDT"}`))
	tw.Trace(domain.VenueBybit, "response /v5/order/create", []byte(`{"retCode":0}`))
	tw.Trace(domain.VenueSolana, "quote response", []byte("not json at all"))

	bybitData, err := os.ReadFile(filepath.Join(dir, "bybit.trace.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(bybitData)), "\n")
	if len(lines) != 2 {
		t.Fatalf("%d bybit trace lines, want 2", len(lines))
	}
	var entry struct {
		Ts      string          `json:"ts"`
		Label   string          `json:"label"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("trace line is not JSON: %v", err)
	}
	if entry.Label != "request /v5/order/create" || entry.Ts == "" {
		t.Errorf("unexpected trace entry: %+v", entry)
	}

	// Non-JSON payloads land in the text field, still one valid JSON line.
	solData, err := os.ReadFile(filepath.Join(dir, "solana.trace.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	var textEntry struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(solData))), &textEntry); err != nil {
		t.Fatal(err)
	}
	if textEntry.Text != "not json at all" {
		t.Errorf("text payload %q", textEntry.Text)
	}
}

// A trace fault is swallowed; it must never surface to the execution.
func TestTraceWriterSwallowsWriteFailure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "traces")
	tw, err := NewTraceWriter(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dir, []byte("now a file"), 0644); err != nil {
		t.Fatal(err)
	}

	// Must not panic or error.
	tw.Trace(domain.VenueBybit, "request", []byte(`{}`))
}
