package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"tradexec/internal/domain"
)

// Store is the durable cross-venue trade ledger, one row per completed or
// failed execution attempt, backed by SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the ledger database with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			intent_id TEXT NOT NULL,
			venue TEXT NOT NULL,
			success INTEGER NOT NULL,
			order_id TEXT,
			tx_hash TEXT,
			executed_amount TEXT,
			executed_price TEXT,
			fees TEXT,
			slippage_bps INTEGER,
			state TEXT,
			stage TEXT,
			message TEXT,
			error TEXT,
			error_kind TEXT,
			execution_time_ms INTEGER,
			ts INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create trades table: %w", err)
	}

	return &Store{db: db}, nil
}

// Append writes one execution attempt to the ledger.
func (s *Store) Append(ctx context.Context, rec domain.ExecutionResult) error {
	success := 0
	if rec.Success {
		success = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (
			intent_id, venue, success, order_id, tx_hash,
			executed_amount, executed_price, fees, slippage_bps,
			state, stage, message, error, error_kind, execution_time_ms, ts
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.IntentID, string(rec.Venue), success, rec.OrderID, rec.TxHash,
		rec.ExecutedAmount.String(), rec.ExecutedPrice.String(), rec.Fees.String(),
		rec.SlippageBps, rec.State, rec.Stage, rec.Message, rec.Error, rec.ErrorKind,
		rec.ExecutionTime.Milliseconds(), rec.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}

// Count returns the number of ledger rows for an intent.
func (s *Store) Count(ctx context.Context, intentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM trades WHERE intent_id = ?", intentID).Scan(&n)
	return n, err
}

// Recent loads the most recent attempts, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]domain.ExecutionResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT intent_id, venue, success, order_id, tx_hash, state, stage,
		       message, error, error_kind, ts
		FROM trades ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var out []domain.ExecutionResult
	for rows.Next() {
		var rec domain.ExecutionResult
		var venue string
		var success int
		var ts int64
		if err := rows.Scan(&rec.IntentID, &venue, &success, &rec.OrderID,
			&rec.TxHash, &rec.State, &rec.Stage, &rec.Message, &rec.Error,
			&rec.ErrorKind, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		rec.Venue = domain.Venue(venue)
		rec.Success = success == 1
		rec.Timestamp = time.UnixMilli(ts).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
