// Package tariff converts consumed energy into cost.
package tariff

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptySchedule = errors.New("tariff schedule has no tiers")
	ErrInvalidTier   = errors.New("invalid tariff tier")
)

var centsPerUnit = decimal.NewFromInt(100)

// Tier is one block of a block-rate schedule. An unbounded tier absorbs all
// remaining consumption and may only appear last.
type Tier struct {
	BlockKWh  decimal.Decimal
	Rate      decimal.Decimal // currency per kWh
	Unbounded bool
}

// Schedule is an ordered, validated list of tiers.
type Schedule struct {
	tiers []Tier
}

// NewSchedule validates tiers: every tier but the last needs a positive block,
// the last is always treated as unbounded, and rates must not be negative.
func NewSchedule(tiers ...Tier) (Schedule, error) {
	if len(tiers) == 0 {
		return Schedule{}, ErrEmptySchedule
	}
	out := make([]Tier, len(tiers))
	for i, t := range tiers {
		last := i == len(tiers)-1
		if t.Rate.IsNegative() {
			return Schedule{}, fmt.Errorf("%w: tier %d has negative rate %s", ErrInvalidTier, i+1, t.Rate)
		}
		if !last && (t.Unbounded || !t.BlockKWh.IsPositive()) {
			return Schedule{}, fmt.Errorf("%w: tier %d needs a positive block size", ErrInvalidTier, i+1)
		}
		if last {
			t.Unbounded = true
		}
		out[i] = t
	}
	return Schedule{tiers: out}, nil
}

// DefaultSchedule is the fallback residential block schedule.
func DefaultSchedule() Schedule {
	s, _ := NewSchedule(
		Tier{BlockKWh: decimal.NewFromInt(250), Rate: decimal.RequireFromString("0.110")},
		Tier{BlockKWh: decimal.NewFromInt(500), Rate: decimal.RequireFromString("0.145")},
		Tier{Rate: decimal.RequireFromString("0.185"), Unbounded: true},
	)
	return s
}

// Tiers returns a copy of the schedule's tiers.
func (s Schedule) Tiers() []Tier {
	return append([]Tier(nil), s.tiers...)
}

// Cost allocates kWh into tiers in order. It is pure and monotone in kWh.
func Cost(kwh float64, s Schedule) decimal.Decimal {
	remaining := usableKWh(kwh)
	cost := decimal.Zero
	for _, t := range s.tiers {
		if !remaining.IsPositive() {
			break
		}
		used := remaining
		if !t.Unbounded {
			used = decimal.Min(remaining, t.BlockKWh)
		}
		cost = cost.Add(used.Mul(t.Rate))
		remaining = remaining.Sub(used)
	}
	return cost
}

// CostWithLivePrice prices all consumption at a single rate.
func CostWithLivePrice(kwh float64, pricePerKWh decimal.Decimal) decimal.Decimal {
	return usableKWh(kwh).Mul(pricePerKWh)
}

// CentsToRate converts a price in cents/kWh to currency/kWh.
func CentsToRate(centsPerKWh float64) decimal.Decimal {
	return decimal.NewFromFloat(centsPerKWh).Div(centsPerUnit)
}

func usableKWh(kwh float64) decimal.Decimal {
	if math.IsNaN(kwh) || math.IsInf(kwh, 0) || kwh <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(kwh)
}

// LivePrice is an externally supplied price and when it was obtained.
type LivePrice struct {
	CentsPerKWh float64
	FetchedAt   time.Time
}

// Fresh reports whether the price may still be used at now.
func (p *LivePrice) Fresh(now time.Time, maxAge time.Duration) bool {
	if p == nil || math.IsNaN(p.CentsPerKWh) || math.IsInf(p.CentsPerKWh, 0) || p.CentsPerKWh < 0 {
		return false
	}
	return maxAge <= 0 || now.Sub(p.FetchedAt) <= maxAge
}

// Source labels which pricing path produced a projection.
const (
	SourceLive     = "live"
	SourceSchedule = "schedule"
)

// Projection is the cost of accumulated consumption.
type Projection struct {
	Cost       decimal.Decimal
	Source     string
	RatePerKWh decimal.Decimal // zero for schedule projections
}

// Project prefers a fresh live price and falls back to the static schedule.
func Project(kwh float64, s Schedule, live *LivePrice, now time.Time, maxAge time.Duration) Projection {
	if live.Fresh(now, maxAge) {
		rate := CentsToRate(live.CentsPerKWh)
		return Projection{Cost: CostWithLivePrice(kwh, rate), Source: SourceLive, RatePerKWh: rate}
	}
	return Projection{Cost: Cost(kwh, s), Source: SourceSchedule}
}

const monthHours = 30 * 24

// MonthlyEstimate scales a session cost to a 30-day month. Sessions shorter
// than minElapsed are too noisy to extrapolate and yield zero.
func MonthlyEstimate(cost decimal.Decimal, elapsed time.Duration) decimal.Decimal {
	const minElapsed = time.Minute
	if elapsed < minElapsed {
		return decimal.Zero
	}
	hours := decimal.NewFromFloat(elapsed.Hours())
	return cost.Mul(decimal.NewFromInt(monthHours)).Div(hours).Round(2)
}
