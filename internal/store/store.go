// Package store persists one encrypted prediction per (user_id, date),
// matching spec.md §6.3 and the teacher's cmd/server/main.go MySQL wiring
// (sql.Open("mysql", dsn), db.Ping()).
package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/tuneinsight/lattigo/v6/core/rlwe"
)

// PredictionStore is the out-of-scope repository collaborator the
// inference engine's result flows into; the engine never imports this
// package directly.
type PredictionStore struct {
	db *sql.DB
}

// Open connects to MySQL using dsn (the go-sql-driver/mysql DSN format) and
// verifies connectivity.
func Open(dsn string) (*PredictionStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("store: pinging database: %w", err)
	}
	return &PredictionStore{db: db}, nil
}

// EnsureSchema creates the predictions table if it does not already exist.
// A real deployment would run this through a migration tool; it is kept
// inline here since none of the retrieved examples wire one up.
func (s *PredictionStore) EnsureSchema(ctx context.Context) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS predictions (
	user_id VARCHAR(64) NOT NULL,
	prediction_date DATE NOT NULL,
	ciphertext_b64 LONGTEXT NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (user_id, prediction_date)
)`
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("store: ensuring schema: %w", err)
	}
	return nil
}

// UpsertPrediction stores the encrypted result ciphertext for userID on
// date, replacing any previous entry for the same (user_id, date) pair —
// spec.md §3 names this as a unique-constrained upsert, not an append-only
// history.
func (s *PredictionStore) UpsertPrediction(ctx context.Context, userID string, date time.Time, result *rlwe.Ciphertext) error {
	data, err := result.MarshalBinary()
	if err != nil {
		return fmt.Errorf("store: marshaling result: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(data)

	const stmt = `
INSERT INTO predictions (user_id, prediction_date, ciphertext_b64, updated_at)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE ciphertext_b64 = VALUES(ciphertext_b64), updated_at = VALUES(updated_at)`

	if _, err := s.db.ExecContext(ctx, stmt, userID, date.Format("2006-01-02"), encoded, time.Now().UTC()); err != nil {
		return fmt.Errorf("store: upserting prediction for %s: %w", userID, err)
	}
	return nil
}

// GetPrediction returns the stored ciphertext for userID on date, or
// sql.ErrNoRows if none exists. Multi-day aggregation over several rows is
// explicitly out of scope (spec.md §9 open question); callers only ever
// fetch a single day.
func (s *PredictionStore) GetPrediction(ctx context.Context, userID string, date time.Time) (*rlwe.Ciphertext, error) {
	const stmt = `SELECT ciphertext_b64 FROM predictions WHERE user_id = ? AND prediction_date = ?`

	var encoded string
	row := s.db.QueryRowContext(ctx, stmt, userID, date.Format("2006-01-02"))
	if err := row.Scan(&encoded); err != nil {
		return nil, err
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("store: decoding stored ciphertext: %w", err)
	}

	ct := new(rlwe.Ciphertext)
	if err := ct.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("store: unmarshaling stored ciphertext: %w", err)
	}
	return ct, nil
}

// Close releases the underlying database connection.
func (s *PredictionStore) Close() error {
	return s.db.Close()
}
