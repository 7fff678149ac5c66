package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"energy_console/internal/models"

	"github.com/google/uuid"
)

type EventSQLite struct {
	db         *sql.DB
	maxEntries int
}

func NewEventSQLite(db *sql.DB, maxEntries int) *EventSQLite {
	return &EventSQLite{db: db, maxEntries: maxEntries}
}

const (
	insertEventQuery = `INSERT INTO console_events (id, occurred_ms, type, message, meta) VALUES (?, ?, ?, ?, ?)`
	pruneEventsQuery = `DELETE FROM console_events WHERE rowid <= (SELECT MAX(rowid) FROM console_events) - ?`
	selectEvents     = `SELECT id, occurred_ms, type, message, meta FROM console_events`
)

// Append inserts a new event and trims the journal to its retention bound.
// Missing EventID or OccurredAt are filled in.
func (r *EventSQLite) Append(ctx context.Context, e models.Event) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	var metaPtr *string
	if e.Metadata != nil {
		if b, err := json.Marshal(e.Metadata); err == nil {
			s := string(b)
			metaPtr = &s
		}
	}

	if _, err := r.db.ExecContext(ctx, insertEventQuery,
		e.EventID,
		e.OccurredAt.UTC().UnixMilli(),
		strings.ToUpper(strings.TrimSpace(e.Type)),
		e.Description,
		metaPtr,
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	if r.maxEntries <= 0 {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, pruneEventsQuery, r.maxEntries); err != nil {
		return fmt.Errorf("prune events: %w", err)
	}
	return nil
}

// List returns events filtered by [from, to] (inclusive) and/or type, oldest first.
func (r *EventSQLite) List(ctx context.Context, from, to time.Time, typ string) ([]models.Event, error) {
	var (
		conds []string
		args  []any
	)

	if !from.IsZero() {
		conds = append(conds, "occurred_ms >= ?")
		args = append(args, from.UTC().UnixMilli())
	}
	if !to.IsZero() {
		conds = append(conds, "occurred_ms <= ?")
		args = append(args, to.UTC().UnixMilli())
	}
	if typ = strings.ToUpper(strings.TrimSpace(typ)); typ != "" {
		conds = append(conds, "type = ?")
		args = append(args, typ)
	}

	q := selectEvents
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY occurred_ms ASC, rowid ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := make([]models.Event, 0, 64)
	for rows.Next() {
		var (
			ev         models.Event
			occurredMs int64
			metaStr    sql.NullString
		)
		if err := rows.Scan(&ev.EventID, &occurredMs, &ev.Type, &ev.Description, &metaStr); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.OccurredAt = time.UnixMilli(occurredMs).UTC()

		if metaStr.Valid && metaStr.String != "" {
			var v any
			if err := json.Unmarshal([]byte(metaStr.String), &v); err == nil {
				ev.Metadata = v
			} else {
				ev.Metadata = metaStr.String // keep raw if malformed
			}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
