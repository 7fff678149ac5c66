package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"energy_console/internal/console"
	"energy_console/internal/control"
	"energy_console/internal/models"
)

var ErrInvalidAction = errors.New("invalid action: must be on or off")

type ControlService struct {
	loop    *Loop
	metrics Metrics
}

func NewControlService(loop *Loop, m Metrics) *ControlService {
	return &ControlService{loop: loop, metrics: m}
}

// SetMode validates mode and hands it to the authority.
func (s *ControlService) SetMode(ctx context.Context, mode string) error {
	m, ok := models.ParseMode(mode)
	if !ok {
		return control.ErrInvalidMode
	}
	var err error
	if lerr := s.loop.Do(ctx, func(ctx context.Context, c *console.Console) {
		err = c.SetMode(ctx, m)
	}); lerr != nil {
		return lerr
	}
	s.countRejection(err)
	return err
}

// ToggleOverride flips the emergency override and returns its new state.
func (s *ControlService) ToggleOverride(ctx context.Context) (bool, error) {
	var active bool
	if err := s.loop.Do(ctx, func(ctx context.Context, c *console.Console) {
		active = c.ToggleOverride(ctx)
	}); err != nil {
		// the step may still run later and must not race this read
		return false, err
	}
	return active, nil
}

// Command requests an explicit on/off for one device.
func (s *ControlService) Command(ctx context.Context, room, device, action string) error {
	kind, err := parseDevice(room, device)
	if err != nil {
		return err
	}
	act, ok := models.ParseAction(action)
	if !ok {
		return ErrInvalidAction
	}
	var cerr error
	if lerr := s.loop.Do(ctx, func(ctx context.Context, c *console.Console) {
		cerr = c.RequestCommand(ctx, room, kind, act)
	}); lerr != nil {
		return lerr
	}
	s.countRejection(cerr)
	return cerr
}

// ToggleDevice requests the opposite of the device's local state.
func (s *ControlService) ToggleDevice(ctx context.Context, room, device string) (models.Action, error) {
	kind, err := parseDevice(room, device)
	if err != nil {
		return "", err
	}
	var (
		act  models.Action
		terr error
	)
	if lerr := s.loop.Do(ctx, func(ctx context.Context, c *console.Console) {
		act, terr = c.ToggleDevice(ctx, room, kind)
	}); lerr != nil {
		return "", lerr
	}
	s.countRejection(terr)
	return act, terr
}

// ClearAlerts empties the alert feed.
func (s *ControlService) ClearAlerts(ctx context.Context) error {
	return s.loop.Do(ctx, func(_ context.Context, c *console.Console) {
		c.ClearAlerts()
	})
}

func (s *ControlService) countRejection(err error) {
	if err == nil || s.metrics == nil {
		return
	}
	s.metrics.CommandRejected(RejectionReason(err))
}

// RejectionReason names the gate that refused a command.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, control.ErrOverrideActive):
		return "override"
	case errors.Is(err, control.ErrEcoMode):
		return "eco_mode"
	case errors.Is(err, control.ErrDisconnected):
		return "disconnected"
	case errors.Is(err, control.ErrPublish):
		return "publish"
	case errors.Is(err, control.ErrUnknownDevice):
		return "unknown_device"
	default:
		return "other"
	}
}

func parseDevice(room, device string) (models.DeviceKind, error) {
	kind, ok := models.ParseDeviceKind(device)
	if !ok || strings.TrimSpace(room) == "" {
		return "", fmt.Errorf("%w: %s/%s", control.ErrUnknownDevice, room, device)
	}
	return kind, nil
}
