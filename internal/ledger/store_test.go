package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradexec/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreAppendAndRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	success := domain.ExecutionResult{
		IntentID:       "intent-1",
		Venue:          domain.VenueBybit,
		Success:        true,
		OrderID:        "ord-1",
		ExecutedAmount: decimal.NewFromInt(10),
		ExecutedPrice:  decimal.RequireFromString("3250.5"),
		State:          "CONFIRMED",
		ExecutionTime:  120 * time.Millisecond,
		Timestamp:      time.Now().UTC(),
	}
	failure := domain.ExecutionResult{
		IntentID:  "intent-2",
		Venue:     domain.VenueSolana,
		Success:   false,
		TxHash:    "sig-abc",
		State:     "TIMED_OUT",
		Stage:     "confirm",
		Error:     "unconfirmed after 60s",
		ErrorKind: "settlement_ambiguous",
		Timestamp: time.Now().UTC(),
	}

	if err := store.Append(ctx, success); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(ctx, failure); err != nil {
		t.Fatal(err)
	}

	recent, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("%d rows, want 2", len(recent))
	}

	// Newest first.
	if recent[0].IntentID != "intent-2" || recent[1].IntentID != "intent-1" {
		t.Errorf("unexpected order: %s, %s", recent[0].IntentID, recent[1].IntentID)
	}
	if recent[0].Success || !recent[1].Success {
		t.Error("success flags did not round-trip")
	}
	if recent[0].State != "TIMED_OUT" || recent[0].ErrorKind != "settlement_ambiguous" {
		t.Errorf("ambiguous outcome did not round-trip: %+v", recent[0])
	}
	if recent[0].Venue != domain.VenueSolana {
		t.Errorf("venue %q, want solana", recent[0].Venue)
	}
}

// Rows survive closing and reopening the database file.
func TestStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	store, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	rec := domain.ExecutionResult{IntentID: "intent-9", Venue: domain.VenueBybit, Success: true, Timestamp: time.Now()}
	if err := store.Append(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	n, err := reopened.Count(ctx, "intent-9")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("count %d after reopen, want 1", n)
	}
}

func TestStoreCountPerIntent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec := domain.ExecutionResult{IntentID: "intent-7", Venue: domain.VenueHyperliquid, Timestamp: time.Now()}
	if err := store.Append(ctx, rec); err != nil {
		t.Fatal(err)
	}

	n, err := store.Count(ctx, "intent-7")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("count %d, want exactly 1 row per attempt", n)
	}

	n, err = store.Count(ctx, "unseen-intent")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("count %d for unseen intent, want 0", n)
	}
}
