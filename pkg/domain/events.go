package domain

import (
	"context"
	"time"
)

// EventKind names a ledger notification.
type EventKind string

// Notifications emitted after a mutation commits.
const (
	EventRegistered      EventKind = "Registered"
	EventUnregistered    EventKind = "Unregistered"
	EventApproved        EventKind = "Approved"
	EventHold            EventKind = "Hold"
	EventManufactured    EventKind = "Manufactured"
	EventMftrDispatched  EventKind = "MftrDispatched"
	EventDistrReceived   EventKind = "DistrReceived"
	EventDistrDispatched EventKind = "DistrDispatched"
	EventPharReceived    EventKind = "PharReceived"
	EventDispensed       EventKind = "Dispensed"
)

// Event is a notification for external observers. Registry events carry
// Identity; custody events carry ItemCode.
type Event struct {
	ID         string    `json:"id"`
	Kind       EventKind `json:"kind"`
	ItemCode   ItemCode  `json:"item_code,omitempty"`
	Identity   Identity  `json:"identity"`
	Actor      Identity  `json:"actor"`
	Price      uint64    `json:"price,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventSink receives ledger notifications.
type EventSink interface {
	Publish(ctx context.Context, event Event) error
}
