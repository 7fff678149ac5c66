package repository

import (
	"context"
	"database/sql"
	"time"

	"energy_console/internal/models"
)

// EventRepo is the append-only journal of authority transitions and command outcomes.
type EventRepo interface {
	Append(ctx context.Context, e models.Event) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.Event, error)
}

type Repository struct {
	EventRepo EventRepo
}

// NewRepository wires the journal tables. maxEntries <= 0 keeps every entry.
func NewRepository(db *sql.DB, maxEntries int) *Repository {
	return &Repository{
		EventRepo: NewEventSQLite(db, maxEntries),
	}
}
