package enums

// SyncRequestStatus maps to the sync_request_status enum in Postgres.
// Transitions are irreversible: PENDING -> IN_PROGRESS -> {DONE, FAILED}.
type SyncRequestStatus string

const (
	SyncRequestStatusPending    SyncRequestStatus = "PENDING"
	SyncRequestStatusInProgress SyncRequestStatus = "IN_PROGRESS"
	SyncRequestStatusDone       SyncRequestStatus = "DONE"
	SyncRequestStatusFailed     SyncRequestStatus = "FAILED"
)

var validSyncRequestStatuses = []SyncRequestStatus{
	SyncRequestStatusPending,
	SyncRequestStatusInProgress,
	SyncRequestStatusDone,
	SyncRequestStatusFailed,
}

// IsValid reports whether the value matches the canonical sync_request_status enum.
func (s SyncRequestStatus) IsValid() bool {
	for _, candidate := range validSyncRequestStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether the state machine allows moving to next.
func (s SyncRequestStatus) CanTransitionTo(next SyncRequestStatus) bool {
	switch s {
	case SyncRequestStatusPending:
		return next == SyncRequestStatusInProgress
	case SyncRequestStatusInProgress:
		return next == SyncRequestStatusDone || next == SyncRequestStatusFailed
	default:
		return false
	}
}
