package models

import "strings"

// Mode is the global operating mode shared by every room.
type Mode string

const (
	ModeEco    Mode = "eco"
	ModeManual Mode = "manual"
)

// ParseMode normalizes a textual mode. ok is false for anything but eco/manual.
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeEco:
		return ModeEco, true
	case ModeManual:
		return ModeManual, true
	default:
		return "", false
	}
}

// DeviceKind identifies an actuator inside a room.
type DeviceKind string

const (
	DeviceFan  DeviceKind = "fan"
	DeviceLamp DeviceKind = "lamp"
)

// DeviceKinds lists every actuator kind tracked per room, in display order.
var DeviceKinds = []DeviceKind{DeviceFan, DeviceLamp}

// ParseDeviceKind normalizes a textual device kind.
func ParseDeviceKind(s string) (DeviceKind, bool) {
	k := DeviceKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range DeviceKinds {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// Action is the requested on/off transition for a device.
type Action string

const (
	ActionOn  Action = "on"
	ActionOff Action = "off"
)

// ParseAction normalizes a textual action.
func ParseAction(s string) (Action, bool) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionOn:
		return ActionOn, true
	case ActionOff:
		return ActionOff, true
	default:
		return "", false
	}
}

// On reports whether the action switches the device on.
func (a Action) On() bool { return a == ActionOn }

// ActionFor returns the action that drives a device to the given state.
func ActionFor(on bool) Action {
	if on {
		return ActionOn
	}
	return ActionOff
}

// DeviceKey addresses one actuator.
type DeviceKey struct {
	Room string     `json:"room"`
	Kind DeviceKind `json:"device"`
}

// DeviceState is the last known on/off flag of one actuator.
type DeviceState struct {
	DeviceKey
	On bool `json:"on"`
}

// Command is the payload published on a room's control channel.
type Command struct {
	Device DeviceKind `json:"device"`
	Action Action     `json:"action"`
	Reason string     `json:"reason"`
	Mode   Mode       `json:"mode"`
}

// Command reasons.
const (
	ReasonManual   = "manual_dashboard"
	ReasonOverride = "override"
)

// ModeMessage is the payload of the global mode channel.
type ModeMessage struct {
	Mode      Mode  `json:"mode"`
	EcoMode   int   `json:"ecoMode"`
	Timestamp int64 `json:"timestamp"`
}
