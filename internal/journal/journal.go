// Package journal keeps a local audit trail of successful charges and manual
// adjustments in SQLite.
//
// DESIGN: Insert-only. The journal is advisory: a failed insert is logged and
// billing continues, so the ledger store remains the single source of truth.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS charges (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	ts      INTEGER NOT NULL,
	call_id TEXT    NOT NULL,
	account TEXT    NOT NULL,
	kind    TEXT    NOT NULL,
	amount  REAL    NOT NULL,
	total   REAL    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_charges_call ON charges(call_id);
`

// Kind values for journal entries.
const (
	KindCharge     = "charge"
	KindAdjustment = "adjust"
)

// Entry is one journal row.
type Entry struct {
	ID      int64
	At      time.Time
	CallID  string
	Account string
	Kind    string
	Amount  float64
	Total   float64
}

// Journal is a SQLite-backed charge log.
type Journal struct {
	db *sql.DB
}

// Open creates (or opens) the journal database at path.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// SQLite serializes writers; a single connection avoids lock contention.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// RecordCharge appends a successful metering charge.
func (j *Journal) RecordCharge(ctx context.Context, callID, account string, amount, total float64) error {
	return j.insert(ctx, callID, account, KindCharge, amount, total)
}

// RecordAdjustment appends a manual ledger adjustment. Positive amounts are
// credits, matching the adjust command's sign convention.
func (j *Journal) RecordAdjustment(ctx context.Context, callID, account string, amount float64) error {
	return j.insert(ctx, callID, account, KindAdjustment, amount, 0)
}

func (j *Journal) insert(ctx context.Context, callID, account, kind string, amount, total float64) error {
	if j == nil {
		return nil
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO charges (ts, call_id, account, kind, amount, total) VALUES (?, ?, ?, ?, ?, ?)`,
		time.Now().UnixMilli(), callID, account, kind, amount, total)
	if err != nil {
		return fmt.Errorf("journal insert: %w", err)
	}
	return nil
}

// Recent returns the newest n entries, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]Entry, error) {
	if j == nil {
		return nil, nil
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, ts, call_id, account, kind, amount, total FROM charges ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("journal query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ms int64
		if err := rows.Scan(&e.ID, &ms, &e.CallID, &e.Account, &e.Kind, &e.Amount, &e.Total); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		e.At = time.UnixMilli(ms)
		out = append(out, e)
	}
	return out, rows.Err()
}

// CallTotal returns the sum of charged amounts journaled for one call.
func (j *Journal) CallTotal(ctx context.Context, callID string) (float64, error) {
	if j == nil {
		return 0, nil
	}
	var total sql.NullFloat64
	err := j.db.QueryRowContext(ctx,
		`SELECT SUM(amount) FROM charges WHERE call_id = ? AND kind = ?`, callID, KindCharge).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("journal sum: %w", err)
	}
	return total.Float64, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}
