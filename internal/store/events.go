// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// events.go records greeting, background and export events in the database
// for auditing fallback rates. Recording is best-effort: a failed insert is
// logged and never surfaces to the visitor.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"newyearcard/internal/models"
)

// EventStore handles card event log operations. A nil *EventStore or one
// without a database is valid and records nothing.
type EventStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewEventStore creates a new EventStore. db may be nil.
func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db, now: time.Now}
}

// Enabled reports whether events are persisted.
func (s *EventStore) Enabled() bool {
	return s != nil && s.db != nil
}

// Record stores an event. Missing ID and CreatedAt are filled in.
func (s *EventStore) Record(ctx context.Context, e models.Event) {
	if !s.Enabled() {
		return
	}
	if !e.Kind.Valid() {
		slog.Warn("event record: unknown kind", "kind", e.Kind)
		return
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO card_events (id, kind, source, fallback, detail, name_hash, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.Kind, e.Source, e.Fallback, e.Detail, e.NameHash, e.DurationMS, e.CreatedAt)
	if err != nil {
		slog.Warn("failed to record card event",
			"kind", e.Kind,
			"source", e.Source,
			"error", err,
		)
		return
	}
	slog.Debug("card event recorded", "kind", e.Kind, "source", e.Source, "fallback", e.Fallback)
}

// Recent returns the most recent events, newest first. An empty kind
// matches every kind.
func (s *EventStore) Recent(ctx context.Context, kind models.EventKind, limit int) ([]models.Event, error) {
	if !s.Enabled() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, source, fallback, detail, name_hash, duration_ms, created_at
		FROM card_events
		WHERE ($1 = '' OR kind = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("query card events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.Kind, &e.Source, &e.Fallback, &e.Detail, &e.NameHash, &e.DurationMS, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan card event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// FallbackRate returns the share of events of kind that used a fallback
// since the given time. It returns 0 when there are no events.
func (s *EventStore) FallbackRate(ctx context.Context, kind models.EventKind, since time.Time) (float64, error) {
	if !s.Enabled() {
		return 0, nil
	}
	var total, fallbacks int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE fallback)
		FROM card_events
		WHERE kind = $1 AND created_at >= $2
	`, kind, since).Scan(&total, &fallbacks)
	if err != nil {
		return 0, fmt.Errorf("fallback rate: %w", err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(fallbacks) / float64(total), nil
}
