package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// OutcomeOK marks a successful invocation. Failures store their error kind.
const OutcomeOK = "ok"

const (
	defaultLimit = 50
	maxLimit     = 1000
)

// Entry is one recorded invocation.
type Entry struct {
	ID        string        `json:"id"`
	Time      time.Time     `json:"time"`
	Caller    string        `json:"caller"`
	Operation string        `json:"operation"`
	Path      string        `json:"path"`
	Outcome   string        `json:"outcome"`
	Message   string        `json:"message,omitempty"`
	Bytes     int           `json:"bytes"`
	Digest    string        `json:"digest,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Limit     int
	Operation string
	Outcome   string
	Caller    string
}

// Record inserts e, assigning an ID and timestamp when missing.
func (db *DB) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = ulid.Make().String()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	e.Time = e.Time.UTC()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO entries (id, at, caller, operation, path, outcome, message, bytes, digest, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Time, e.Caller, e.Operation, e.Path, e.Outcome, e.Message, e.Bytes, e.Digest, int64(e.Duration))
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// List returns entries matching f, newest first.
func (db *DB) List(ctx context.Context, f Filter) ([]Entry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	var (
		where []string
		args  []any
	)
	if f.Operation != "" {
		where = append(where, "operation = ?")
		args = append(args, f.Operation)
	}
	if f.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, f.Outcome)
	}
	if f.Caller != "" {
		where = append(where, "caller = ?")
		args = append(args, f.Caller)
	}

	q := `SELECT id, at, caller, operation, path, outcome, message, bytes, digest, duration_ns FROM entries`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var (
			e  Entry
			ns int64
		)
		if err := rows.Scan(&e.ID, &e.Time, &e.Caller, &e.Operation, &e.Path, &e.Outcome, &e.Message, &e.Bytes, &e.Digest, &ns); err != nil {
			return nil, err
		}
		e.Duration = time.Duration(ns)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes entries recorded before cutoff and returns how many were removed.
func (db *DB) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM entries WHERE at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("audit: prune: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the total number of stored entries.
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("audit: count: %w", err)
	}
	return n, nil
}
