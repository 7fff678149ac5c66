package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"energy_console/internal/models"
	"energy_console/internal/repository"
)

type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

var (
	ErrInvalidTimeRange = errors.New("invalid time range: from must be <= to")
	ErrUnknownEventType = errors.New("unknown event type")
)

var knownEventTypes = map[string]struct{}{
	models.EventModeChange:       {},
	models.EventModeEcho:         {},
	models.EventOverride:         {},
	models.EventCommand:          {},
	models.EventCommandRejected:  {},
	models.EventDeviceEcho:       {},
	models.EventConnectivity:     {},
	models.EventAnomaly:          {},
	models.EventPriceUnavailable: {},
	models.EventPublishFailed:    {},
}

// normalizeEventType trims spaces and uppercases the event type filter.
func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// normalizeAndValidateFilter prepares query parameters and validates them.
func normalizeAndValidateFilter(f LogFilter) (time.Time, time.Time, string, error) {
	from := toUTC(f.From)
	to := toUTC(f.To)

	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, "", ErrInvalidTimeRange
	}

	eventType := normalizeEventType(f.Type)
	if eventType != "" {
		if _, ok := knownEventTypes[eventType]; !ok {
			return time.Time{}, time.Time{}, "", ErrUnknownEventType
		}
	}
	return from, to, eventType, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.Event, error) {
	from, to, typ, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, from, to, typ)
}
