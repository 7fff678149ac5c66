package models

import "time"

// Recommendation is the pricing service's usage advice.
type Recommendation struct {
	Action  string `json:"action"`
	Message string `json:"message"`
}

// PriceQuote is the live price reported by the pricing service.
type PriceQuote struct {
	CentsPerKWh    float64        `json:"price_cents_per_kwh"`
	Tier           string         `json:"tier"`
	Recommendation Recommendation `json:"recommendation"`
	Timestamp      string         `json:"timestamp"`
	FetchedAt      time.Time      `json:"fetched_at"`
}

// PricePoint is one historical price sample.
type PricePoint struct {
	MillisUTC   int64   `json:"millisUTC"`
	CentsPerKWh float64 `json:"price_cents_per_kwh"`
}

// PriceStats summarizes prices over a window.
type PriceStats struct {
	Avg float64 `json:"avg_price"`
	Min float64 `json:"min_price"`
	Max float64 `json:"max_price"`
}
