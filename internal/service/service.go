package service

import (
	"context"
	"time"

	"energy_console/internal/console"
	"energy_console/internal/logger"
	"energy_console/internal/models"
	"energy_console/internal/repository"
)

// Control exposes user intent: mode, override and device commands.
type Control interface {
	SetMode(ctx context.Context, mode string) error
	ToggleOverride(ctx context.Context) (bool, error)
	Command(ctx context.Context, room, device, action string) error
	ToggleDevice(ctx context.Context, room, device string) (models.Action, error)
	ClearAlerts(ctx context.Context) error
}

// Monitoring exposes read-only console state.
type Monitoring interface {
	GetState(ctx context.Context) (models.Snapshot, error)
	GetSeries(ctx context.Context, name string) (models.SeriesSnapshot, error)
	GetAlerts(ctx context.Context) ([]models.Alert, error)
}

// EventLog exposes the journal with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.Event, error)
}

// Pricing polls the pricing collaborator until ctx is canceled.
type Pricing interface {
	Run(ctx context.Context, interval time.Duration)
	Refresh(ctx context.Context) error
}

// Ingest receives transport callbacks. Implementations must not block on the console.
type Ingest interface {
	Handle(in console.Inbound)
	SetConnected(connected bool)
	PublishFailed(topic string, err error)
}

// Metrics receives service-level counters. May be nil.
type Metrics interface {
	CommandRejected(reason string)
	PriceFetch(ok bool)
}

// LogFilter supports journal filtering by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", "MODE_CHANGE", "COMMAND", "OVERRIDE", ...
}

// Service aggregates all sub-services.
type Service struct {
	Control
	Monitoring
	EventLog
	Pricing
	Ingest
}

// Deps are the collaborators shared by the sub-services.
type Deps struct {
	Loop    *Loop
	Repos   *repository.Repository
	Prices  PriceSource
	Pricing PricingOptions
	Metrics Metrics
	Log     *logger.Logger
}

// NewService wires the console loop and repositories into concrete services.
func NewService(d Deps) *Service {
	return &Service{
		Control:    NewControlService(d.Loop, d.Metrics),
		Monitoring: NewMonitoringService(d.Loop),
		EventLog:   NewEventLogService(d.Repos.EventRepo),
		Pricing:    NewPricingService(d.Loop, d.Prices, d.Pricing, d.Metrics, d.Log),
		Ingest:     NewIngestService(d.Loop, d.Log),
	}
}
