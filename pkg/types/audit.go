package types

import "time"

// Audit action labels written by the workflow. Details strings carry the
// target record's display name so history lookups can find them later.
const (
	ActionUpdateRequestSubmitted = "Update Request Submitted"
	ActionDeleteRequestSubmitted = "Delete Request Submitted"
	ActionRequestApproved        = "Change Request Approved"
	ActionRequestDenied          = "Change Request Denied"
	ActionRecordCreated          = "Record Created"
	ActionRecordUpdated          = "Record Updated"
	ActionRecordDeleted          = "Record Deleted"
)

// AuditLogEntry is one append-only history row. UserID is nil for
// system-generated events. There is no foreign key to the record or
// requestion it describes; linkage is by substring match on Details.
type AuditLogEntry struct {
	ID        string    `json:"id" db:"id"`
	UserID    *string   `json:"user_id,omitempty" db:"user_id"`
	Action    string    `json:"action" db:"action"`
	Details   string    `json:"details" db:"details"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// HistoryEntry is an AuditLogEntry joined with the actor's display
// identity for the history view.
type HistoryEntry struct {
	AuditLogEntry
	ActorName string   `json:"actor_name"`
	ActorRole UserRole `json:"actor_role,omitempty"`
}
