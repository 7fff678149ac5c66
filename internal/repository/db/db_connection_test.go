package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"energy_console/internal/models"
	"energy_console/internal/repository"
)

func TestInitDB_InMemoryJournalRoundTrip(t *testing.T) {
	conn, err := InitDB(MemoryPath)
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	defer conn.Close()

	repo := repository.NewEventSQLite(conn, 2)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	for i, typ := range []string{models.EventModeChange, models.EventCommand, models.EventOverride} {
		err := repo.Append(ctx, models.Event{
			OccurredAt:  base.Add(time.Duration(i) * time.Minute),
			Type:        typ,
			Description: typ,
			Metadata:    map[string]any{"i": i},
		})
		if err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	all, err := repo.List(ctx, time.Time{}, time.Time{}, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("journal not pruned: got %d entries", len(all))
	}
	if all[0].Type != models.EventCommand || all[1].Type != models.EventOverride {
		t.Fatalf("unexpected order: %s, %s", all[0].Type, all[1].Type)
	}

	only, err := repo.List(ctx, base.Add(2*time.Minute), time.Time{}, "override")
	if err != nil {
		t.Fatalf("List filtered: %v", err)
	}
	if len(only) != 1 || only[0].Type != models.EventOverride {
		t.Fatalf("unexpected filter result: %+v", only)
	}
}

func TestInitDB_FileIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	for i := 0; i < 2; i++ {
		conn, err := InitDB(path)
		if err != nil {
			t.Fatalf("InitDB #%d: %v", i+1, err)
		}
		_ = conn.Close()
	}
}
