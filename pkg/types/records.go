package types

import "time"

// RecordTable identifies which canonical record collection is targeted
type RecordTable string

const (
	TablePatients     RecordTable = "patients"
	TableChildRecords RecordTable = "child_records"
)

// Valid reports whether the table is one of the known record collections
func (t RecordTable) Valid() bool {
	return t == TablePatients || t == TableChildRecords
}

// HealthRecord is a canonical patient or child record. The domain
// attributes live in Fields as an open map; the workflow only cares
// about identity and the soft-delete flag.
type HealthRecord struct {
	ID        string                 `json:"id" db:"id"`
	Table     RecordTable            `json:"table" db:"-"`
	Fields    map[string]interface{} `json:"fields" db:"fields"`
	IsDeleted bool                   `json:"is_deleted" db:"is_deleted"`
	DeletedAt *time.Time             `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt time.Time              `json:"updated_at" db:"updated_at"`
	CreatedBy string                 `json:"created_by" db:"created_by"`
	UpdatedBy string                 `json:"updated_by" db:"updated_by"`
}

// DisplayName derives a human-readable label from the record fields,
// used when composing audit log details.
func (r *HealthRecord) DisplayName() string {
	for _, key := range []string{"full_name", "name", "child_name", "patient_name"} {
		if v, ok := r.Fields[key].(string); ok && v != "" {
			return v
		}
	}
	return r.ID
}

// RecordFilters constrains record listing queries
type RecordFilters struct {
	IncludeDeleted bool   `json:"include_deleted,omitempty"`
	CreatedBy      string `json:"created_by,omitempty"`
	Limit          int    `json:"limit,omitempty"`
	Offset         int    `json:"offset,omitempty"`
}
