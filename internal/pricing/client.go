// Package pricing talks to the live electricity price service.
package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"energy_console/internal/logger"
	"energy_console/internal/models"

	"github.com/go-resty/resty/v2"
)

// ErrUnavailable covers every way the price service can fail to answer usefully.
var ErrUnavailable = errors.New("pricing service unavailable")

const (
	currentPath = "/api/price/current"
	historyPath = "/api/price/history"
	statsPath   = "/api/price/stats"

	statusActive   = "active"
	defaultTimeout = 10 * time.Second
)

type currentResponse struct {
	CentsPerKWh    *float64        `json:"price_cents_per_kwh"`
	Tier           string          `json:"tier"`
	Status         string          `json:"status"`
	Timestamp      string          `json:"timestamp"`
	Recommendation json.RawMessage `json:"recommendation"`
}

type historyResponse struct {
	Count int                 `json:"count"`
	Hours int                 `json:"hours"`
	Data  []models.PricePoint `json:"data"`
}

// Client is a resty-backed price service client.
type Client struct {
	httpClient *resty.Client
	log        *logger.Logger
	now        func() time.Time
}

// NewClient builds a client for baseURL.
func NewClient(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(1).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Accept", "application/json")

	return &Client{httpClient: client, log: log, now: time.Now}
}

// Current returns the latest price. A service that reports any status other
// than active (initializing, error) counts as unavailable; no status is fine.
func (c *Client) Current(ctx context.Context) (models.PriceQuote, error) {
	var body currentResponse
	if err := c.get(ctx, currentPath, nil, &body); err != nil {
		return models.PriceQuote{}, err
	}
	if body.Status != "" && !strings.EqualFold(body.Status, statusActive) {
		return models.PriceQuote{}, fmt.Errorf("%w: status %q", ErrUnavailable, body.Status)
	}
	if body.CentsPerKWh == nil || !finite(*body.CentsPerKWh) {
		return models.PriceQuote{}, fmt.Errorf("%w: missing price", ErrUnavailable)
	}
	return models.PriceQuote{
		CentsPerKWh:    *body.CentsPerKWh,
		Tier:           body.Tier,
		Recommendation: decodeRecommendation(body.Recommendation),
		Timestamp:      body.Timestamp,
		FetchedAt:      c.now(),
	}, nil
}

// History returns up to hours of prices, oldest first.
func (c *Client) History(ctx context.Context, hours int) ([]models.PricePoint, error) {
	var body historyResponse
	if err := c.get(ctx, historyPath, hoursParam(hours), &body); err != nil {
		return nil, err
	}
	points := slices.Clone(body.Data)
	// the service answers newest first
	slices.Reverse(points)
	return points, nil
}

// Stats returns the average and range over the last hours.
func (c *Client) Stats(ctx context.Context, hours int) (models.PriceStats, error) {
	var body models.PriceStats
	if err := c.get(ctx, statsPath, hoursParam(hours), &body); err != nil {
		return models.PriceStats{}, err
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, path string, query map[string]string, out any) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetResult(out).
		Get(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: %s: status %d", ErrUnavailable, path, resp.StatusCode())
	}
	if c.log != nil {
		c.log.Debugw("price_api_call", "path", path, "status", resp.StatusCode(), "elapsed", resp.Time())
	}
	return nil
}

func decodeRecommendation(raw json.RawMessage) models.Recommendation {
	var rec models.Recommendation
	if len(raw) == 0 {
		return rec
	}
	if err := json.Unmarshal(raw, &rec); err == nil {
		return rec
	}
	var action string
	if err := json.Unmarshal(raw, &action); err == nil {
		rec.Action = action
	}
	return rec
}

func hoursParam(hours int) map[string]string {
	if hours <= 0 {
		return nil
	}
	return map[string]string{"hours": strconv.Itoa(hours)}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
