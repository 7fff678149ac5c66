// Package energy integrates instantaneous power into cumulative energy.
package energy

import "math"

const msPerHour = 3_600_000.0

// State is the accumulator value. The zero value has no baseline yet.
type State struct {
	WattHours float64 `json:"watt_hours"`
	// LastTsMs is the timestamp of the latest sample; nil until the first sample.
	LastTsMs *int64 `json:"last_ts_ms,omitempty"`
}

// Accumulate integrates powerW over the time since the previous sample.
// Energy only advances for a strictly newer timestamp, so a stale or duplicate
// sample contributes nothing. The watermark always moves to sampleTsMs.
func Accumulate(s State, powerW float64, sampleTsMs int64) State {
	if s.LastTsMs != nil {
		last := *s.LastTsMs
		// dt > 0 also rejects a difference that overflowed int64
		if dt := sampleTsMs - last; sampleTsMs > last && dt > 0 {
			if p := usablePower(powerW); p > 0 {
				s.WattHours += p * float64(dt) / msPerHour
			}
		}
	}
	ts := sampleTsMs
	s.LastTsMs = &ts
	return s
}

// KWh converts for reporting only.
func (s State) KWh() float64 {
	return s.WattHours / 1000
}

func usablePower(p float64) float64 {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
		return 0
	}
	return p
}
