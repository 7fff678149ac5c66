package service

import (
	"context"
	"fmt"
	"time"

	"energy_console/internal/console"
	"energy_console/internal/logger"
	"energy_console/internal/models"
)

// PriceSource is the pricing collaborator.
type PriceSource interface {
	Current(ctx context.Context) (models.PriceQuote, error)
	History(ctx context.Context, hours int) ([]models.PricePoint, error)
	Stats(ctx context.Context, hours int) (models.PriceStats, error)
}

// PricingOptions tune the polling loop.
type PricingOptions struct {
	Timeout      time.Duration
	HistoryHours int
	StatsHours   int
}

const (
	defaultPriceInterval = 5 * time.Minute
	defaultPriceTimeout  = 10 * time.Second
	defaultHistoryHours  = 24
)

// PricingService fetches prices off the loop and applies results in one step.
type PricingService struct {
	loop    *Loop
	source  PriceSource
	opts    PricingOptions
	metrics Metrics
	log     *logger.Logger
}

func NewPricingService(loop *Loop, source PriceSource, opts PricingOptions, m Metrics, log *logger.Logger) *PricingService {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultPriceTimeout
	}
	if opts.HistoryHours <= 0 {
		opts.HistoryHours = defaultHistoryHours
	}
	if opts.StatsHours <= 0 {
		opts.StatsHours = defaultHistoryHours
	}
	return &PricingService{loop: loop, source: source, opts: opts, metrics: m, log: log}
}

// Run loads the price history once, then refreshes the current price at the
// given interval until ctx is canceled. A nil source disables the loop.
func (s *PricingService) Run(ctx context.Context, interval time.Duration) {
	if s.source == nil {
		return
	}
	if interval <= 0 {
		interval = defaultPriceInterval
	}
	if err := s.loadHistory(ctx); err != nil {
		s.warn("price_history_failed", err)
	}
	_ = s.Refresh(ctx)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_ = s.Refresh(ctx)
		}
	}
}

// Refresh fetches the current price and stats. On failure the console keeps
// whatever price it had and falls back to the schedule once that goes stale.
func (s *PricingService) Refresh(ctx context.Context) error {
	if s.source == nil {
		return nil
	}
	fctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	quote, err := s.source.Current(fctx)
	if err != nil {
		s.observe(false)
		s.warn("price_fetch_failed", err)
		s.loop.Submit(func(_ context.Context, c *console.Console) {
			c.NotePriceUnavailable(err)
		})
		return fmt.Errorf("fetch current price: %w", err)
	}
	if quote.FetchedAt.IsZero() {
		quote.FetchedAt = time.Now()
	}

	var stats *models.PriceStats
	if st, serr := s.source.Stats(fctx, s.opts.StatsHours); serr != nil {
		s.warn("price_stats_failed", serr)
	} else {
		stats = &st
	}

	s.observe(true)
	return s.loop.Do(ctx, func(_ context.Context, c *console.Console) {
		c.ApplyPrice(quote, stats)
	})
}

func (s *PricingService) loadHistory(ctx context.Context) error {
	fctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	points, err := s.source.History(fctx, s.opts.HistoryHours)
	if err != nil {
		return err
	}
	return s.loop.Do(ctx, func(_ context.Context, c *console.Console) {
		c.ApplyPriceHistory(points)
	})
}

func (s *PricingService) observe(ok bool) {
	if s.metrics != nil {
		s.metrics.PriceFetch(ok)
	}
}

func (s *PricingService) warn(event string, err error) {
	if s.log != nil {
		s.log.Warnw(event, "err", err)
	}
}
