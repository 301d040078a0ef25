// Package queue defines message payloads exchanged over the message broker.
package queue

import "time"

// SpaceReservedEvent is published when a reservation is successfully
// confirmed.  It carries enough for downstream consumers to log or notify
// without querying the primary database.
type SpaceReservedEvent struct {
	SpaceID    int    `json:"space_id"`
	ReservedAt string `json:"reserved_at"`
	Source     string `json:"source"`
}

// NewSpaceReservedEvent builds the event for one confirmed reservation,
// stamped with the current UTC time.
func NewSpaceReservedEvent(spaceID int) SpaceReservedEvent {
	return SpaceReservedEvent{
		SpaceID:    spaceID,
		ReservedAt: time.Now().UTC().Format(time.RFC3339),
		Source:     "api",
	}
}
