package enums

import "fmt"

// OutboxEventType maps to the outbox event_type enum in Postgres. The string
// values are wire-stable: consumers match on them and the dispatcher derives
// routing keys from them.
type OutboxEventType string

const (
	EventInventoryAllocated OutboxEventType = "InventoryAllocated"
	EventInventoryReleased  OutboxEventType = "InventoryReleased"
	EventInventoryAdjusted  OutboxEventType = "InventoryAdjusted"
	EventForceWmsSync       OutboxEventType = "ForceWmsSync"
)

var validOutboxEventTypes = []OutboxEventType{
	EventInventoryAllocated,
	EventInventoryReleased,
	EventInventoryAdjusted,
	EventForceWmsSync,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// IsCommand reports whether the event routes to the command topic rather
// than the domain-events topic.
func (e OutboxEventType) IsCommand() bool {
	return e == EventForceWmsSync
}

// RoutingKey returns the stable routing key attribute attached to published
// messages: inventory.<type> for domain events, wms.forceSync for commands.
func (e OutboxEventType) RoutingKey() string {
	if e == EventForceWmsSync {
		return "wms.forceSync"
	}
	return "inventory." + string(e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxStatus maps to the outbox_status enum in Postgres.
type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "PENDING"
	OutboxStatusSent    OutboxStatus = "SENT"
	OutboxStatusFailed  OutboxStatus = "FAILED"
)

var validOutboxStatuses = []OutboxStatus{
	OutboxStatusPending,
	OutboxStatusSent,
	OutboxStatusFailed,
}

// IsValid reports whether the value matches the canonical outbox_status enum.
func (s OutboxStatus) IsValid() bool {
	for _, candidate := range validOutboxStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}
