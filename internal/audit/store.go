// Package audit records every game mode property push.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDisabled is returned when audit history is requested but no store is configured.
var ErrDisabled = errors.New("audit: disabled")

// Entry is one recorded push.
type Entry struct {
	EventID   string
	EventType string
	Property  string
	Value     string
	Error     string // empty on success
	At        time.Time
}

// Recorder persists entries.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

const schema = `
CREATE TABLE IF NOT EXISTS pioverride_audit (
	id          BIGSERIAL PRIMARY KEY,
	event_id    TEXT NOT NULL DEFAULT '',
	event_type  TEXT NOT NULL DEFAULT '',
	property    TEXT NOT NULL,
	value       TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Store is a PostgreSQL-backed Recorder.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn, verifies the connection and ensures the table exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect audit database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}
	store := &Store{pool: pool}
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// EnsureSchema creates the audit table if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create audit table: %w", err)
	}
	return nil
}

// Record inserts entry.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	at := entry.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pioverride_audit (event_id, event_type, property, value, error, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.EventID, entry.EventType, entry.Property, entry.Value, entry.Error, at,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT event_id, event_type, property, value, error, recorded_at
		FROM pioverride_audit
		ORDER BY id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.EventID, &e.EventType, &e.Property, &e.Value, &e.Error, &e.At); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
