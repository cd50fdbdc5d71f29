package payloads

import (
	"time"

	"github.com/google/uuid"
)

// InventoryAllocatedEvent is emitted when a reservation decrements a batch.
type InventoryAllocatedEvent struct {
	OrderID   string    `json:"orderId"`
	BatchID   int64     `json:"batchId"`
	Quantity  int       `json:"quantity"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// InventoryReleasedEvent is emitted when a release returns quantity to a batch.
type InventoryReleasedEvent struct {
	OrderID   string    `json:"orderId"`
	BatchID   int64     `json:"batchId"`
	Quantity  int       `json:"quantity"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// InventoryAdjustedEvent is emitted on manual adjustments and WMS
// reconciliation corrections.
type InventoryAdjustedEvent struct {
	BatchID       int64     `json:"batchId"`
	QuantityDelta int       `json:"quantityDelta"`
	NewAvailable  int       `json:"newAvailable"`
	Source        string    `json:"source"`
	Reason        string    `json:"reason"`
	Timestamp     time.Time `json:"timestamp"`
}

// ForceWmsSyncCommand asks the reconcile worker to run one sync request.
type ForceWmsSyncCommand struct {
	SyncRequestID uuid.UUID `json:"syncRequestId"`
	BatchID       *int64    `json:"batchId,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
