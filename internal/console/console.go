// Package console holds the reconciliation core: every piece of mutable client
// state lives in one Console value, mutated by one goroutine at a time.
package console

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"energy_console/internal/alerts"
	"energy_console/internal/control"
	"energy_console/internal/energy"
	"energy_console/internal/models"
	"energy_console/internal/series"
	"energy_console/internal/tariff"
	"energy_console/internal/telemetry"

	"github.com/google/uuid"
	"github.com/spf13/cast"
)

const labelLayout = "15:04:05"

var (
	ErrUnknownChannel = errors.New("unknown inbound channel")
	ErrUnknownRoom    = errors.New("unknown room")
	ErrMissingField   = errors.New("required field missing")
)

// Config fixes the deployment shape of a console.
type Config struct {
	Rooms        []string
	MeteringRoom string // the only room feeding the power series and accumulator
	MaxPoints    int
	AlertCap     int
	Schedule     tariff.Schedule
	PriceMaxAge  time.Duration
}

// Console is the client state. It is not safe for concurrent use.
type Console struct {
	cfg       Config
	authority *control.Authority
	series    *series.Store
	feed      *alerts.Feed
	energy    energy.State
	firstTsMs *int64
	rooms     map[string]*models.RoomStatus
	connected bool

	price *models.PriceQuote
	stats *models.PriceStats
	live  *tariff.LivePrice

	journal  []models.Event
	observer Observer
	clock    func() time.Time
}

// New builds a console. pub may be nil for a console that never publishes.
func New(cfg Config, pub control.Publisher, obs Observer, clock func() time.Time) *Console {
	if clock == nil {
		clock = time.Now
	}
	if cfg.MeteringRoom == "" && len(cfg.Rooms) > 0 {
		cfg.MeteringRoom = cfg.Rooms[0]
	}
	if len(cfg.Schedule.Tiers()) == 0 {
		cfg.Schedule = tariff.DefaultSchedule()
	}
	c := &Console{
		cfg:      cfg,
		series:   series.NewStore(cfg.MaxPoints),
		feed:     alerts.NewFeed(cfg.AlertCap, clock),
		rooms:    make(map[string]*models.RoomStatus, len(cfg.Rooms)),
		observer: obs,
		clock:    clock,
	}
	for _, r := range cfg.Rooms {
		c.rooms[r] = &models.RoomStatus{Room: r}
	}
	c.series.Define(series.Power, "power_w")
	c.series.Define(series.Temperature, cfg.Rooms...)
	c.series.Define(series.Humidity, cfg.Rooms...)
	c.series.Define(series.Price, "cents_per_kwh")
	c.authority = control.New(cfg.Rooms, models.DeviceKinds, pub, c.feed, c, clock)
	return c
}

// Dispatch routes one inbound message. Returned errors describe dropped
// messages; they are never surfaced as alerts.
func (c *Console) Dispatch(in Inbound) error {
	if in.ReceivedAt.IsZero() {
		in.ReceivedAt = c.clock()
	}
	var err error
	switch in.Channel {
	case ChannelTelemetry:
		err = c.onTelemetry(in)
	case ChannelAlert:
		err = c.onAlert(in)
	case ChannelDeviceState:
		err = c.onDeviceState(in)
	case ChannelMode:
		err = c.onMode(in)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownChannel, in.Channel)
	}
	if c.observer != nil {
		if err != nil {
			c.observer.MessageDropped(string(in.Channel), dropReason(err))
		} else {
			c.observer.MessageHandled(string(in.Channel))
		}
	}
	return err
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, telemetry.ErrMalformedPayload):
		return "malformed"
	case errors.Is(err, ErrUnknownRoom), errors.Is(err, control.ErrUnknownDevice):
		return "unknown_target"
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	default:
		return "other"
	}
}

func (c *Console) onTelemetry(in Inbound) error {
	room, ok := c.rooms[in.Room]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRoom, in.Room)
	}
	raw, err := telemetry.Decode(in.Payload)
	if err != nil {
		return err
	}
	r, err := telemetry.Normalize(raw, in.Room, in.ReceivedAt)
	if err != nil {
		return err
	}

	if r.TempC != nil {
		room.TempC = r.TempC
	}
	if r.Humidity != nil {
		room.Humidity = r.Humidity
	}
	room.Occupied = r.Occupied
	room.PowerW = r.PowerW
	room.LastSeenMs = r.TimestampMs

	if r.EcoMode != nil {
		c.authority.OnModeEcho(modeFromEco(*r.EcoMode))
	}
	// Automatic control reports actuator state through telemetry while in eco.
	if c.authority.Mode() == models.ModeEco {
		for _, kind := range models.DeviceKinds {
			if on, ok := r.Device(kind); ok {
				_ = c.authority.OnDeviceEcho(r.Room, kind, on)
			}
		}
	}

	if r.Room != c.cfg.MeteringRoom {
		return nil
	}
	label := time.UnixMilli(r.TimestampMs).Format(labelLayout)
	c.series.Append(series.Power, label, r.PowerW)
	if temps, ok := c.roomValues(func(s *models.RoomStatus) *float64 { return s.TempC }); ok {
		c.series.Append(series.Temperature, label, temps...)
	}
	if hums, ok := c.roomValues(func(s *models.RoomStatus) *float64 { return s.Humidity }); ok {
		c.series.Append(series.Humidity, label, hums...)
	}

	if c.firstTsMs == nil {
		ts := r.TimestampMs
		c.firstTsMs = &ts
	}
	c.energy = energy.Accumulate(c.energy, r.PowerW, r.TimestampMs)
	return nil
}

// roomValues collects one value per room; ok is false until every room has reported.
func (c *Console) roomValues(get func(*models.RoomStatus) *float64) ([]float64, bool) {
	out := make([]float64, 0, len(c.cfg.Rooms))
	for _, name := range c.cfg.Rooms {
		v := get(c.rooms[name])
		if v == nil {
			return nil, false
		}
		out = append(out, *v)
	}
	return out, true
}

func (c *Console) onAlert(in Inbound) error {
	raw, err := telemetry.Decode(in.Payload)
	if err != nil {
		return err
	}
	msg := cast.ToString(raw["message"])
	if msg == "" {
		msg = "Anomaly detected"
	}
	if in.Room != "" {
		msg = "Room " + in.Room + ": " + msg
	}
	c.feed.Add(models.SeverityWarning, msg)
	c.Record(models.EventAnomaly, msg, map[string]any{"room": in.Room})
	return nil
}

func (c *Console) onDeviceState(in Inbound) error {
	raw, err := telemetry.Decode(in.Payload)
	if err != nil {
		return err
	}
	v, present := raw["on"]
	if !present || v == nil {
		return fmt.Errorf("%w: on", ErrMissingField)
	}
	on, err := cast.ToBoolE(v)
	if err != nil {
		return errors.Join(telemetry.ErrMalformedPayload, err)
	}
	return c.authority.OnDeviceEcho(in.Room, in.Device, on)
}

func (c *Console) onMode(in Inbound) error {
	raw, err := telemetry.Decode(in.Payload)
	if err != nil {
		return err
	}
	mode, ok := models.ParseMode(cast.ToString(raw["mode"]))
	if !ok {
		return fmt.Errorf("%w: mode", ErrMissingField)
	}
	c.authority.OnModeEcho(mode)
	return nil
}

func modeFromEco(eco bool) models.Mode {
	if eco {
		return models.ModeEco
	}
	return models.ModeManual
}

// SetMode forwards a user mode change to the authority.
func (c *Console) SetMode(ctx context.Context, mode models.Mode) error {
	return c.authority.SetMode(ctx, mode)
}

// ToggleOverride flips the emergency override and returns its new state.
func (c *Console) ToggleOverride(ctx context.Context) bool {
	return c.authority.ToggleOverride(ctx)
}

// RequestCommand forwards a user device command to the authority gate.
func (c *Console) RequestCommand(ctx context.Context, room string, kind models.DeviceKind, action models.Action) error {
	return c.authority.RequestCommand(ctx, room, kind, action)
}

// ToggleDevice flips one device through the authority gate.
func (c *Console) ToggleDevice(ctx context.Context, room string, kind models.DeviceKind) (models.Action, error) {
	return c.authority.ToggleDevice(ctx, room, kind)
}

// SetConnected updates the connectivity indicator. Core state is untouched;
// on connect the current mode is re-announced for late peers.
func (c *Console) SetConnected(ctx context.Context, connected bool) {
	if c.connected == connected {
		return
	}
	c.connected = connected
	c.Record(models.EventConnectivity, connectivityText(connected), map[string]any{"connected": connected})
	if connected {
		c.feed.Add(models.SeverityInfo, "Connected to broker")
		c.authority.AnnounceMode(ctx)
	}
}

func connectivityText(connected bool) string {
	if connected {
		return "broker connected"
	}
	return "broker connection lost"
}

// Connected reports the connectivity indicator.
func (c *Console) Connected() bool { return c.connected }

// ApplyPrice installs a successfully fetched live price in one step.
func (c *Console) ApplyPrice(q models.PriceQuote, stats *models.PriceStats) {
	if math.IsNaN(q.CentsPerKWh) || math.IsInf(q.CentsPerKWh, 0) {
		return
	}
	if q.FetchedAt.IsZero() {
		q.FetchedAt = c.clock()
	}
	c.price = &q
	c.live = &tariff.LivePrice{CentsPerKWh: q.CentsPerKWh, FetchedAt: q.FetchedAt}
	if stats != nil {
		s := *stats
		c.stats = &s
	}
	c.series.Append(series.Price, q.FetchedAt.Format(labelLayout), q.CentsPerKWh)
}

// ApplyPriceHistory replaces the price series; points must be oldest-first.
func (c *Console) ApplyPriceHistory(points []models.PricePoint) {
	sp := make([]models.SeriesPoint, 0, len(points))
	for _, p := range points {
		if math.IsNaN(p.CentsPerKWh) || math.IsInf(p.CentsPerKWh, 0) {
			continue
		}
		sp = append(sp, models.SeriesPoint{
			Label:  time.UnixMilli(p.MillisUTC).Format(labelLayout),
			Values: []float64{p.CentsPerKWh},
		})
	}
	c.series.Replace(series.Price, sp)
}

// NotePriceUnavailable journals a failed fetch; state stays as it was.
func (c *Console) NotePriceUnavailable(err error) {
	c.Record(models.EventPriceUnavailable, err.Error(), nil)
}

// NotePublishFailed reports a message the broker never acknowledged. Device
// state is left to the next echo.
func (c *Console) NotePublishFailed(topic string, err error) {
	c.feed.Add(models.SeverityWarning, "Not delivered: "+err.Error())
	c.Record(models.EventPublishFailed, err.Error(), map[string]any{"topic": topic})
}

// ClearAlerts empties the alert feed.
func (c *Console) ClearAlerts() { c.feed.Clear() }

// Alerts returns the alert feed, newest first.
func (c *Console) Alerts() []models.Alert { return c.feed.List() }

// Series returns a snapshot of a named series.
func (c *Console) Series(name string) (series.View, bool) { return c.series.Get(name) }

// SeriesNames lists the available series.
func (c *Console) SeriesNames() []string { return c.series.Names() }

// Energy returns the accumulator state.
func (c *Console) Energy() energy.State { return c.energy }

// Cost projects the accumulated energy under the live price or the schedule.
func (c *Console) Cost() models.CostProjection {
	kwh := c.energy.KWh()
	p := tariff.Project(kwh, c.cfg.Schedule, c.live, c.clock(), c.cfg.PriceMaxAge)
	out := models.CostProjection{Cost: p.Cost.Round(2), Source: p.Source, RatePerKWh: p.RatePerKWh}
	if c.firstTsMs != nil && c.energy.LastTsMs != nil {
		elapsed := time.Duration(*c.energy.LastTsMs-*c.firstTsMs) * time.Millisecond
		out.MonthlyEstimate = tariff.MonthlyEstimate(p.Cost, elapsed)
	}
	return out
}

// Snapshot copies the full console state for readers.
func (c *Console) Snapshot() models.Snapshot {
	auth := c.authority.Snapshot()
	rooms := make([]models.RoomStatus, 0, len(c.cfg.Rooms))
	for _, name := range c.cfg.Rooms {
		rooms = append(rooms, copyRoom(*c.rooms[name]))
	}
	snap := models.Snapshot{
		Mode:        auth.Mode,
		Override:    auth.Override,
		Connected:   c.connected,
		Devices:     auth.Devices,
		Rooms:       rooms,
		EnergyWh:    c.energy.WattHours,
		EnergyKWh:   c.energy.KWh(),
		Cost:        c.Cost(),
		Alerts:      c.feed.List(),
		GeneratedAt: c.clock(),
	}
	if c.price != nil {
		p := *c.price
		snap.Price = &p
	}
	if c.stats != nil {
		s := *c.stats
		snap.PriceStats = &s
	}
	return snap
}

func copyRoom(r models.RoomStatus) models.RoomStatus {
	if r.TempC != nil {
		v := *r.TempC
		r.TempC = &v
	}
	if r.Humidity != nil {
		v := *r.Humidity
		r.Humidity = &v
	}
	return r
}

// Rooms lists the configured rooms.
func (c *Console) Rooms() []string { return slices.Clone(c.cfg.Rooms) }

// Record implements control.Recorder by queueing a journal entry.
func (c *Console) Record(typ, description string, meta map[string]any) {
	e := models.Event{
		EventID:     uuid.NewString(),
		OccurredAt:  c.clock().UTC(),
		Type:        typ,
		Description: description,
	}
	if len(meta) > 0 {
		e.Metadata = meta
	}
	c.journal = append(c.journal, e)
}

// DrainJournal hands over queued journal entries.
func (c *Console) DrainJournal() []models.Event {
	out := c.journal
	c.journal = nil
	return out
}
