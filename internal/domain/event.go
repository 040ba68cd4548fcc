package domain

import "time"

// EventType defines the type of event that occurred.
type EventType string

const (
	EventSitesChanged EventType = "sites.changed"
	EventManualReload EventType = "manual.reload"
)

// Event represents a domain event that occurred in the system.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Data      any
}

// SitesChangedPayload contains data for sites.changed events.
type SitesChangedPayload struct {
	Path string
	Op   string
}

// ReloadPayload contains data for manual.reload events.
type ReloadPayload struct {
	Source string // "signal" or "cli"
}
