package models

import "time"

// Severity classifies an alert entry.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

// Alert is a single entry of the alert feed.
type Alert struct {
	Severity   Severity  `json:"severity"`
	Message    string    `json:"message"`
	ReceivedAt time.Time `json:"received_at"`
}
