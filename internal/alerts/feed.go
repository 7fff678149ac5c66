// Package alerts keeps the bounded, newest-first alert feed.
package alerts

import (
	"time"

	"energy_console/internal/models"
)

// DefaultCapacity is the number of alerts retained.
const DefaultCapacity = 10

// Feed is a fixed-size ring of alerts. Not safe for concurrent use.
type Feed struct {
	buf   []models.Alert
	head  int // index of the newest entry
	size  int
	clock func() time.Time
}

// NewFeed returns a feed retaining at most capacity entries.
func NewFeed(capacity int, clock func() time.Time) *Feed {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if clock == nil {
		clock = time.Now
	}
	return &Feed{buf: make([]models.Alert, capacity), head: -1, clock: clock}
}

// Add records an alert at the head, discarding the oldest beyond capacity.
func (f *Feed) Add(sev models.Severity, message string) models.Alert {
	a := models.Alert{Severity: sev, Message: message, ReceivedAt: f.clock()}
	f.head = (f.head + 1) % len(f.buf)
	f.buf[f.head] = a
	if f.size < len(f.buf) {
		f.size++
	}
	return a
}

// List returns the retained alerts, newest first.
func (f *Feed) List() []models.Alert {
	out := make([]models.Alert, 0, f.size)
	for i := 0; i < f.size; i++ {
		idx := (f.head - i + len(f.buf)) % len(f.buf)
		out = append(out, f.buf[idx])
	}
	return out
}

// Len returns how many alerts are retained.
func (f *Feed) Len() int { return f.size }

// Clear drops every entry and leaves a single note that it happened.
func (f *Feed) Clear() {
	for i := range f.buf {
		f.buf[i] = models.Alert{}
	}
	f.head, f.size = -1, 0
	f.Add(models.SeverityInfo, "Alerts cleared")
}
