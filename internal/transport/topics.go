package transport

import (
	"strings"

	"energy_console/internal/console"
	"energy_console/internal/models"
)

const (
	roomVar   = "{room}"
	deviceVar = "{device}"
)

// Topics holds the topic patterns. {room} and {device} are single-level placeholders.
type Topics struct {
	Telemetry   string `mapstructure:"telemetry"`
	Anomaly     string `mapstructure:"anomaly"`
	DeviceState string `mapstructure:"device_state"`
	Command     string `mapstructure:"command"`
	Mode        string `mapstructure:"mode"`
}

// DefaultTopics matches the deployed devices.
func DefaultTopics() Topics {
	return Topics{
		Telemetry:   "sensors/{room}/telemetry",
		Anomaly:     "alerts/{room}/anomaly",
		DeviceState: "control/{room}/state/{device}",
		Command:     "control/{room}/cmd",
		Mode:        "control/mode",
	}
}

func (t Topics) withDefaults() Topics {
	d := DefaultTopics()
	if t.Telemetry == "" {
		t.Telemetry = d.Telemetry
	}
	if t.Anomaly == "" {
		t.Anomaly = d.Anomaly
	}
	if t.DeviceState == "" {
		t.DeviceState = d.DeviceState
	}
	if t.Command == "" {
		t.Command = d.Command
	}
	if t.Mode == "" {
		t.Mode = d.Mode
	}
	return t
}

// inbound lists the subscribed patterns with their channel.
func (t Topics) inbound() []struct {
	pattern string
	channel console.Channel
} {
	return []struct {
		pattern string
		channel console.Channel
	}{
		{t.Telemetry, console.ChannelTelemetry},
		{t.Anomaly, console.ChannelAlert},
		{t.DeviceState, console.ChannelDeviceState},
		{t.Mode, console.ChannelMode},
	}
}

// Filters returns the MQTT subscription filters for every inbound channel.
func (t Topics) Filters(qos byte) map[string]byte {
	out := make(map[string]byte, 4)
	for _, in := range t.inbound() {
		f := strings.ReplaceAll(in.pattern, roomVar, "+")
		f = strings.ReplaceAll(f, deviceVar, "+")
		out[f] = qos
	}
	return out
}

// CommandTopic is the outbound command topic for room.
func (t Topics) CommandTopic(room string) string {
	return strings.ReplaceAll(t.Command, roomVar, room)
}

// Parse maps a concrete topic back to its channel and placeholders.
func (t Topics) Parse(topic string) (ch console.Channel, room string, device models.DeviceKind, ok bool) {
	for _, in := range t.inbound() {
		r, d, matched := match(in.pattern, topic)
		if matched {
			return in.channel, r, models.DeviceKind(d), true
		}
	}
	return "", "", "", false
}

func match(pattern, topic string) (room, device string, ok bool) {
	ps := strings.Split(pattern, "/")
	ts := strings.Split(topic, "/")
	if len(ps) != len(ts) {
		return "", "", false
	}
	for i, p := range ps {
		switch p {
		case roomVar:
			if ts[i] == "" {
				return "", "", false
			}
			room = ts[i]
		case deviceVar:
			if ts[i] == "" {
				return "", "", false
			}
			device = ts[i]
		default:
			if p != ts[i] {
				return "", "", false
			}
		}
	}
	return room, device, true
}
