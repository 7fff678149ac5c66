// Package telemetry turns raw sensor payloads into canonical readings.
package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"energy_console/internal/models"

	"github.com/spf13/cast"
)

// Defaults substituted for absent or non-finite fields.
const (
	DefaultVoltage = 120.0
	DefaultAmps    = 0.0

	// secondsCutoff separates epoch seconds from epoch milliseconds.
	secondsCutoff = 1e10
	// maxEpochMs is 9999-12-31T23:59:59.999Z; anything later is not a usable sample time.
	maxEpochMs = 253_402_300_799_999
)

var (
	ErrMalformedPayload = errors.New("malformed telemetry payload")
	ErrMissingRoom      = errors.New("telemetry without room id")
)

// Field aliases in lookup order. Each alias is tried room-specific first.
var (
	timestampKeys   = []string{"ts", "timestamp"}
	temperatureKeys = []string{"tC", "temp", "temperature"}
	humidityKeys    = []string{"rh", "humidity"}
	presenceKeys    = []string{"pir", "presence", "occupied"}
	voltageKeys     = []string{"voltage", "v"}
	ampsKeys        = []string{"amps", "current"}
	ecoModeKeys     = []string{"ecoMode"}
	fanKeys         = []string{"fan"}
	lampKeys        = []string{"lamp"}
)

// Decode parses a payload into a loose key/value map.
func Decode(payload []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Join(ErrMalformedPayload, err)
	}
	if raw == nil {
		return nil, ErrMalformedPayload
	}
	return raw, nil
}

// Normalize builds a Reading for room from raw. Fields degrade one at a time to
// their defaults; only a missing room is an error.
func Normalize(raw map[string]any, room string, receivedAt time.Time) (models.Reading, error) {
	room = strings.TrimSpace(room)
	if room == "" {
		return models.Reading{}, ErrMissingRoom
	}
	l := lookup{raw: raw, room: room}

	r := models.Reading{
		Room:        room,
		TimestampMs: normalizeTimestamp(l, receivedAt),
		Voltage:     DefaultVoltage,
		Amps:        DefaultAmps,
	}
	if v, ok := l.number(temperatureKeys); ok {
		r.TempC = &v
	}
	if v, ok := l.number(humidityKeys); ok {
		r.Humidity = &v
	}
	if v, ok := l.flag(presenceKeys); ok {
		r.Occupied = v
	}
	if v, ok := l.number(voltageKeys); ok {
		r.Voltage = v
	}
	if v, ok := l.number(ampsKeys); ok {
		r.Amps = v
	}
	r.PowerW = roundTenth(r.Voltage * r.Amps)

	if v, ok := l.flag(ecoModeKeys); ok {
		r.EcoMode = &v
	}
	if v, ok := l.flag(fanKeys); ok {
		r.Fan = &v
	}
	if v, ok := l.flag(lampKeys); ok {
		r.Lamp = &v
	}
	return r, nil
}

func normalizeTimestamp(l lookup, receivedAt time.Time) int64 {
	ts, ok := l.number(timestampKeys)
	if !ok || ts <= 0 {
		return receivedAt.UnixMilli()
	}
	if ts < secondsCutoff {
		ts *= 1000
	}
	if ts > maxEpochMs {
		return receivedAt.UnixMilli()
	}
	return int64(ts)
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

// lookup resolves logical fields against a raw payload.
type lookup struct {
	raw  map[string]any
	room string
}

// candidates yields room-specific keys before generic ones.
func (l lookup) candidates(aliases []string) []string {
	out := make([]string, 0, len(aliases)*2)
	for _, a := range aliases {
		out = append(out, a+"_"+l.room)
	}
	return append(out, aliases...)
}

func (l lookup) number(aliases []string) (float64, bool) {
	for _, key := range l.candidates(aliases) {
		v, present := l.raw[key]
		if !present || v == nil {
			continue
		}
		if _, isBool := v.(bool); isBool {
			continue
		}
		var (
			f   float64
			err error
		)
		if n, isNum := v.(json.Number); isNum {
			f, err = n.Float64()
		} else {
			f, err = cast.ToFloat64E(v)
		}
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		return f, true
	}
	return 0, false
}

func (l lookup) flag(aliases []string) (bool, bool) {
	for _, key := range l.candidates(aliases) {
		v, present := l.raw[key]
		if !present || v == nil {
			continue
		}
		switch t := v.(type) {
		case bool:
			return t, true
		case json.Number:
			if f, err := t.Float64(); err == nil && !math.IsNaN(f) {
				return f != 0, true
			}
		case string:
			if b, err := cast.ToBoolE(strings.TrimSpace(t)); err == nil {
				return b, true
			}
		default:
			if f, err := cast.ToFloat64E(t); err == nil && !math.IsNaN(f) {
				return f != 0, true
			}
		}
	}
	return false, false
}
