// Package control gates user commands under the eco/manual/override authority model.
package control

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"energy_console/internal/models"
)

var (
	ErrOverrideActive = errors.New("emergency override is active")
	ErrEcoMode        = errors.New("eco mode is active")
	ErrDisconnected   = errors.New("not connected to broker")
	ErrUnknownDevice  = errors.New("unknown device")
	ErrInvalidMode    = errors.New("invalid mode: must be eco or manual")
	ErrPublish        = errors.New("publish failed")
)

// Publisher delivers outbound messages to the transport.
type Publisher interface {
	PublishCommand(ctx context.Context, room string, cmd models.Command) error
	PublishMode(ctx context.Context, msg models.ModeMessage) error
	Connected() bool
}

// AlertSink receives user-visible notifications.
type AlertSink interface {
	Add(sev models.Severity, message string) models.Alert
}

// Recorder receives journal entries for authority transitions. May be nil.
type Recorder interface {
	Record(typ, description string, meta map[string]any)
}

// State is a copy of the authority record.
type State struct {
	Mode     models.Mode
	Override bool
	Devices  []models.DeviceState
}

// Authority owns mode, override and per-device state. Not safe for concurrent
// use; callers serialize access.
type Authority struct {
	mode     models.Mode
	override bool
	keys     []models.DeviceKey
	devices  map[models.DeviceKey]bool
	// pending holds the last optimistic value per device until its echo arrives.
	pending map[models.DeviceKey]bool

	pub   Publisher
	sink  AlertSink
	rec   Recorder
	clock func() time.Time
}

// New tracks every kind in each room, all off, in eco mode with override inactive.
func New(rooms []string, kinds []models.DeviceKind, pub Publisher, sink AlertSink, rec Recorder, clock func() time.Time) *Authority {
	if clock == nil {
		clock = time.Now
	}
	a := &Authority{
		mode:    models.ModeEco,
		devices: make(map[models.DeviceKey]bool),
		pending: make(map[models.DeviceKey]bool),
		pub:     pub,
		sink:    sink,
		rec:     rec,
		clock:   clock,
	}
	for _, room := range rooms {
		for _, kind := range kinds {
			k := models.DeviceKey{Room: room, Kind: kind}
			a.keys = append(a.keys, k)
			a.devices[k] = false
		}
	}
	return a
}

// Mode returns the current operating mode.
func (a *Authority) Mode() models.Mode { return a.mode }

// Override reports whether the emergency override is active.
func (a *Authority) Override() bool { return a.override }

// CanCommand reports whether user commands are currently accepted.
func (a *Authority) CanCommand() bool {
	return !a.override && a.mode == models.ModeManual
}

// Device returns the local state of one device.
func (a *Authority) Device(room string, kind models.DeviceKind) (bool, error) {
	on, ok := a.devices[models.DeviceKey{Room: room, Kind: kind}]
	if !ok {
		return false, fmt.Errorf("%w: %s/%s", ErrUnknownDevice, room, kind)
	}
	return on, nil
}

// Snapshot copies the authority record.
func (a *Authority) Snapshot() State {
	devs := make([]models.DeviceState, 0, len(a.keys))
	for _, k := range a.keys {
		devs = append(devs, models.DeviceState{DeviceKey: k, On: a.devices[k]})
	}
	return State{Mode: a.mode, Override: a.override, Devices: devs}
}

// SetMode switches between eco and manual and announces the mode to peers.
// It is refused while the override is active.
func (a *Authority) SetMode(ctx context.Context, mode models.Mode) error {
	if mode != models.ModeEco && mode != models.ModeManual {
		return ErrInvalidMode
	}
	if a.override {
		a.alert(models.SeverityWarning, "Emergency override is active: deactivate it before changing mode")
		a.record(models.EventCommandRejected, "mode change rejected: override active", map[string]any{"mode": mode})
		return ErrOverrideActive
	}
	prev := a.mode
	a.mode = mode
	a.record(models.EventModeChange, "Mode changed to "+string(mode), map[string]any{"from": prev, "to": mode})
	a.alert(models.SeverityInfo, "Switched to "+titleMode(mode)+" mode")
	a.AnnounceMode(ctx)
	return nil
}

// AnnounceMode publishes the current mode on the global channel when connected.
func (a *Authority) AnnounceMode(ctx context.Context) {
	if a.pub == nil || !a.pub.Connected() {
		return
	}
	msg := models.ModeMessage{Mode: a.mode, Timestamp: a.clock().UnixMilli()}
	if a.mode == models.ModeEco {
		msg.EcoMode = 1
	}
	if err := a.pub.PublishMode(ctx, msg); err != nil {
		a.alert(models.SeverityWarning, "Mode change not published: "+err.Error())
	}
}

// ToggleOverride flips the emergency override. Activation forces every
// tracked device off and publishes an off command for each; deactivation
// leaves devices untouched. Returns the new override state.
func (a *Authority) ToggleOverride(ctx context.Context) bool {
	a.override = !a.override
	if !a.override {
		a.record(models.EventOverride, "Emergency override deactivated", map[string]any{"active": false, "mode": a.mode})
		a.alert(models.SeverityInfo, "Emergency override deactivated")
		return false
	}

	var failed []string
	for _, k := range a.keys {
		a.devices[k] = false
		delete(a.pending, k)
		if err := a.publish(ctx, k, models.ActionOff, models.ReasonOverride); err != nil {
			failed = append(failed, k.Room+"/"+string(k.Kind))
		}
	}
	a.record(models.EventOverride, "Emergency override activated", map[string]any{"active": true, "mode": a.mode, "unpublished": failed})
	a.alert(models.SeverityDanger, "Emergency override activated: all devices switched off")
	if len(failed) > 0 {
		a.alert(models.SeverityWarning, "Override off command not delivered to "+strings.Join(failed, ", "))
	}
	return true
}

// RequestCommand gates a user command and, when allowed, publishes it and
// optimistically applies it until the device echoes its real state.
func (a *Authority) RequestCommand(ctx context.Context, room string, kind models.DeviceKind, action models.Action) error {
	k := models.DeviceKey{Room: room, Kind: kind}
	if _, ok := a.devices[k]; !ok {
		return fmt.Errorf("%w: %s/%s", ErrUnknownDevice, room, kind)
	}

	switch {
	case a.override:
		return a.reject(k, action, ErrOverrideActive, "Emergency override is active: deactivate it before controlling devices")
	case a.mode == models.ModeEco:
		return a.reject(k, action, ErrEcoMode, "Switch to Manual mode to control devices directly")
	case a.pub == nil || !a.pub.Connected():
		return a.reject(k, action, ErrDisconnected, "Not connected to broker")
	}

	if err := a.publish(ctx, k, action, models.ReasonManual); err != nil {
		return a.reject(k, action, fmt.Errorf("%w: %w", ErrPublish, err), "Command not delivered: "+err.Error())
	}

	a.devices[k] = action.On()
	a.pending[k] = action.On()
	a.record(models.EventCommand, fmt.Sprintf("%s %s turned %s", room, kind, action), map[string]any{"room": room, "device": kind, "action": action})
	a.alert(models.SeverityInfo, fmt.Sprintf("Room %s %s turned %s", room, kind, strings.ToUpper(string(action))))
	return nil
}

// ToggleDevice requests the opposite of the device's current local state.
func (a *Authority) ToggleDevice(ctx context.Context, room string, kind models.DeviceKind) (models.Action, error) {
	on, err := a.Device(room, kind)
	if err != nil {
		return "", err
	}
	action := models.ActionFor(!on)
	return action, a.RequestCommand(ctx, room, kind, action)
}

// OnModeEcho applies a mode announced by a peer or the device. It is ground
// truth and is never gated.
func (a *Authority) OnModeEcho(mode models.Mode) {
	if mode != models.ModeEco && mode != models.ModeManual {
		return
	}
	if mode == a.mode {
		return
	}
	prev := a.mode
	a.mode = mode
	a.record(models.EventModeEcho, "Mode changed to "+string(mode)+" by another device", map[string]any{"from": prev, "to": mode})
	a.alert(models.SeverityInfo, "Mode changed to "+string(mode)+" by another device")
}

// OnDeviceEcho applies a device-reported state. The echo always wins over the
// optimistic value, even when it contradicts the last command.
func (a *Authority) OnDeviceEcho(room string, kind models.DeviceKind, on bool) error {
	k := models.DeviceKey{Room: room, Kind: kind}
	if _, ok := a.devices[k]; !ok {
		return fmt.Errorf("%w: %s/%s", ErrUnknownDevice, room, kind)
	}
	expected, wasPending := a.pending[k]
	delete(a.pending, k)
	prev := a.devices[k]
	a.devices[k] = on
	if prev != on {
		a.record(models.EventDeviceEcho, fmt.Sprintf("%s %s reported %s", room, kind, models.ActionFor(on)), map[string]any{"room": room, "device": kind, "on": on})
	}
	if wasPending && expected != on {
		a.alert(models.SeverityWarning, fmt.Sprintf("Room %s %s reported %s after command", room, kind, strings.ToUpper(string(models.ActionFor(on)))))
	}
	return nil
}

func (a *Authority) publish(ctx context.Context, k models.DeviceKey, action models.Action, reason string) error {
	if a.pub == nil || !a.pub.Connected() {
		return ErrDisconnected
	}
	return a.pub.PublishCommand(ctx, k.Room, models.Command{
		Device: k.Kind,
		Action: action,
		Reason: reason,
		Mode:   a.mode,
	})
}

func (a *Authority) reject(k models.DeviceKey, action models.Action, err error, message string) error {
	a.alert(models.SeverityWarning, message)
	a.record(models.EventCommandRejected, err.Error(), map[string]any{"room": k.Room, "device": k.Kind, "action": action})
	return err
}

func (a *Authority) alert(sev models.Severity, message string) {
	if a.sink != nil {
		a.sink.Add(sev, message)
	}
}

func (a *Authority) record(typ, description string, meta map[string]any) {
	if a.rec != nil {
		a.rec.Record(typ, description, meta)
	}
}

func titleMode(m models.Mode) string {
	s := string(m)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
