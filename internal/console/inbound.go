package console

import (
	"time"

	"energy_console/internal/models"
)

// Channel tags the origin of an inbound message.
type Channel string

const (
	ChannelTelemetry   Channel = "telemetry"
	ChannelAlert       Channel = "alert"
	ChannelDeviceState Channel = "device_state"
	ChannelMode        Channel = "mode"
)

// Inbound is every message the transport hands to the console.
type Inbound struct {
	Channel    Channel
	Room       string            // empty for the global mode channel
	Device     models.DeviceKind // set for device-state echoes
	Payload    []byte
	ReceivedAt time.Time
}

// Observer is notified about message handling outcomes. May be nil.
type Observer interface {
	MessageHandled(channel string)
	MessageDropped(channel, reason string)
}
