package types

import "time"

// RequestType enumerates the mutations a field worker may propose
type RequestType string

const (
	RequestTypeUpdate RequestType = "update"
	RequestTypeDelete RequestType = "delete"
)

// RequestStatus captures the workflow state of a change request
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusDenied   RequestStatus = "denied"
)

// IsTerminal reports whether the status permits no further transitions
func (s RequestStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusDenied
}

// Requestion is a proposed update or delete against a canonical record,
// held until an administrator decides it. RequestData is a full snapshot
// of the proposed fields for updates (approval applies it as a complete
// overwrite) and display metadata only for deletes. The payload is
// immutable after creation; amendments require a new Requestion.
type Requestion struct {
	ID             string                 `json:"id" db:"id"`
	WorkerID       string                 `json:"worker_id" db:"worker_id"`
	RequestType    RequestType            `json:"request_type" db:"request_type"`
	TargetTable    RecordTable            `json:"target_table" db:"target_table"`
	TargetRecordID string                 `json:"target_record_id" db:"target_record_id"`
	RequestData    map[string]interface{} `json:"request_data" db:"request_data"`
	Status         RequestStatus          `json:"status" db:"status"`
	DecidedBy      *string                `json:"decided_by,omitempty" db:"decided_by"`
	DecidedAt      *time.Time             `json:"decided_at,omitempty" db:"decided_at"`
	DenialReason   string                 `json:"denial_reason,omitempty" db:"denial_reason"`
	CreatedAt      time.Time              `json:"created_at" db:"created_at"`
}

// PendingRequestion is a Requestion enriched with the proposing
// worker's display identity for the review queue.
type PendingRequestion struct {
	Requestion
	WorkerName string   `json:"worker_name"`
	WorkerRole UserRole `json:"worker_role"`
}
