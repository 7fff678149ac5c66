package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"energy_console/internal/console"
	"energy_console/internal/models"
)

var ErrUnknownSeries = errors.New("unknown series")

type MonitoringService struct {
	loop *Loop
}

func NewMonitoringService(loop *Loop) *MonitoringService {
	return &MonitoringService{loop: loop}
}

// GetState returns a copy of the whole console state.
func (s *MonitoringService) GetState(ctx context.Context) (models.Snapshot, error) {
	var snap models.Snapshot
	err := s.loop.Do(ctx, func(_ context.Context, c *console.Console) {
		snap = c.Snapshot()
	})
	if err != nil {
		return models.Snapshot{}, err
	}
	snap.GeneratedAt = toUTC(snap.GeneratedAt)
	return snap, nil
}

// GetSeries returns a snapshot of one named series.
func (s *MonitoringService) GetSeries(ctx context.Context, name string) (models.SeriesSnapshot, error) {
	var (
		out   models.SeriesSnapshot
		found bool
	)
	err := s.loop.Do(ctx, func(_ context.Context, c *console.Console) {
		v, ok := c.Series(name)
		if !ok {
			return
		}
		found = true
		out = models.SeriesSnapshot{Name: v.Name, Components: v.Components, Points: v.Points()}
	})
	if err != nil {
		return models.SeriesSnapshot{}, err
	}
	if !found {
		return models.SeriesSnapshot{}, fmt.Errorf("%w: %q", ErrUnknownSeries, name)
	}
	return out, nil
}

// GetAlerts returns the alert feed, newest first.
func (s *MonitoringService) GetAlerts(ctx context.Context) ([]models.Alert, error) {
	var out []models.Alert
	err := s.loop.Do(ctx, func(_ context.Context, c *console.Console) {
		out = c.Alerts()
	})
	return out, err
}

// toUTC normalizes non-zero time to UTC, preserving zero values.
func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
