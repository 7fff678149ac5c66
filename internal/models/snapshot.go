package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CostProjection is the projected cost of the accumulated energy.
type CostProjection struct {
	Cost            decimal.Decimal `json:"cost"`
	MonthlyEstimate decimal.Decimal `json:"monthly_estimate"`
	Source          string          `json:"source"` // live | schedule
	RatePerKWh      decimal.Decimal `json:"rate_per_kwh,omitempty"`
}

// RoomStatus is the latest view of one room.
type RoomStatus struct {
	Room       string   `json:"room"`
	TempC      *float64 `json:"temp_c,omitempty"`
	Humidity   *float64 `json:"humidity,omitempty"`
	Occupied   bool     `json:"occupied"`
	PowerW     float64  `json:"power_w"`
	LastSeenMs int64    `json:"last_seen_ms,omitempty"`
}

// Snapshot is a read-only copy of the whole console state.
type Snapshot struct {
	Mode        Mode           `json:"mode"`
	Override    bool           `json:"override"`
	Connected   bool           `json:"connected"`
	Devices     []DeviceState  `json:"devices"`
	Rooms       []RoomStatus   `json:"rooms"`
	EnergyWh    float64        `json:"energy_wh"`
	EnergyKWh   float64        `json:"energy_kwh"`
	Cost        CostProjection `json:"cost"`
	Price       *PriceQuote    `json:"price,omitempty"`
	PriceStats  *PriceStats    `json:"price_stats,omitempty"`
	Alerts      []Alert        `json:"alerts"`
	GeneratedAt time.Time      `json:"generated_at"`
}
