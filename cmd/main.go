package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"energy_console/internal/config"
	"energy_console/internal/console"
	"energy_console/internal/handlers"
	"energy_console/internal/logger"
	"energy_console/internal/metrics"
	"energy_console/internal/pricing"
	"energy_console/internal/repository"
	"energy_console/internal/repository/db"
	"energy_console/internal/server"
	"energy_console/internal/service"
	"energy_console/internal/transport"

	"github.com/spf13/pflag"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config file (default: configs/config.yml)")
	pflag.Parse()

	// load config before the logger so the level applies from the first line
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Get(logger.InfoLevel, logger.FormatConsole).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(cfg.Log.Level, cfg.Log.Format)

	// open journal
	sqlDB, err := db.InitDB(cfg.Journal.Path)
	if err != nil {
		log.Fatalw("failed to init journal", "err", err, "path", cfg.Journal.Path)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close journal", "err", cerr)
		}
	}()

	schedule, err := cfg.Schedule()
	if err != nil {
		log.Fatalw("invalid tariff", "err", err)
	}

	// wire dependencies
	repos := repository.NewRepository(sqlDB, cfg.Journal.MaxEntries)
	m := metrics.New()

	// the broker client and the loop depend on each other; the relay is bound once both exist
	relay := &ingestRelay{}
	broker := transport.NewClient(cfg.Transport(), relay, log.Component("mqtt"))

	state := console.New(console.Config{
		Rooms:        cfg.Rooms,
		MeteringRoom: cfg.MeteringRoom,
		MaxPoints:    cfg.Series.MaxPoints,
		AlertCap:     cfg.Alerts.Capacity,
		Schedule:     schedule,
		PriceMaxAge:  cfg.Pricing.MaxAge,
	}, broker, m, time.Now)
	loop := service.NewLoop(state, repos.EventRepo, m, log.Component("loop"))

	deps := service.Deps{
		Loop:  loop,
		Repos: repos,
		Pricing: service.PricingOptions{
			Timeout:      cfg.Pricing.Timeout,
			HistoryHours: cfg.Pricing.HistoryHours,
			StatsHours:   cfg.Pricing.StatsHours,
		},
		Metrics: m,
		Log:     log,
	}
	if cfg.Pricing.Enabled {
		deps.Prices = pricing.NewClient(cfg.Pricing.BaseURL, cfg.Pricing.Timeout, log.Component("pricing"))
	}
	services := service.NewService(deps)
	relay.bind(services.Ingest)
	apiHandler := handlers.NewHandler(services, log.Component("http"), m)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go loop.Run(ctx)

	if err := broker.Connect(ctx); err != nil {
		log.Fatalw("failed to start mqtt client", "err", err, "broker", cfg.MQTT.Broker)
	}
	defer broker.Disconnect()

	if cfg.Pricing.Enabled {
		go services.Pricing.Run(ctx, cfg.Pricing.Interval)
	}

	// start HTTP server
	srv := &server.Server{}
	if err := srv.Listen(cfg.Port, apiHandler.InitRoutes()); err != nil {
		log.Fatalw("error starting server", "err", err, "port", cfg.Port)
	}
	go func() {
		if err := srv.Serve(); err != nil {
			log.Errorw("http server stopped", "err", err)
			cancel()
		}
	}()
	log.Infow("energy console started",
		"addr", srv.Addr(), "rooms", cfg.Rooms, "metering_room", cfg.MeteringRoom,
		"broker", cfg.MQTT.Broker, "pricing", cfg.Pricing.Enabled, "journal", cfg.Journal.Path)

	// graceful shutdown
	waitForShutdown(ctx, cancel, srv, log)
}

// ingestRelay forwards broker callbacks to the ingest service once it exists.
// paho only invokes callbacks after Connect, which runs after bind.
type ingestRelay struct {
	target service.Ingest
}

func (r *ingestRelay) bind(t service.Ingest) { r.target = t }

func (r *ingestRelay) Handle(in console.Inbound) {
	if r.target != nil {
		r.target.Handle(in)
	}
}

func (r *ingestRelay) PublishFailed(topic string, err error) {
	if r.target != nil {
		r.target.PublishFailed(topic, err)
	}
}

func (r *ingestRelay) SetConnected(connected bool) {
	if r.target != nil {
		r.target.SetConnected(connected)
	}
}

// waitForShutdown blocks until a termination signal or a fatal background error, then stops the server.
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Infow("shutting down server...", "signal", sig.String())
	case <-ctx.Done():
		log.Infow("shutting down server...", "reason", "background failure")
	}

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	sctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(sctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
