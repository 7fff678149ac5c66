package models

import "time"

// Journal event types.
const (
	EventModeChange       = "MODE_CHANGE"
	EventModeEcho         = "MODE_ECHO"
	EventOverride         = "OVERRIDE"
	EventCommand          = "COMMAND"
	EventCommandRejected  = "COMMAND_REJECTED"
	EventDeviceEcho       = "DEVICE_ECHO"
	EventConnectivity     = "CONNECTIVITY"
	EventAnomaly          = "ANOMALY"
	EventPriceUnavailable = "PRICE_UNAVAILABLE"
	EventPublishFailed    = "PUBLISH_FAILED"
)

// Event is a single journal entry describing an authority transition or command outcome.
type Event struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}
