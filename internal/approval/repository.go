package approval

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brgyhealth/records-portal/internal/audit"
	"github.com/brgyhealth/records-portal/internal/records"
	"github.com/brgyhealth/records-portal/pkg/database"
	"github.com/brgyhealth/records-portal/pkg/logger"
	"github.com/brgyhealth/records-portal/pkg/types"
)

// Decision carries the admin's verdict on a pending requestion
type Decision struct {
	RequestionID string
	Status       types.RequestStatus
	DecidedBy    string
	DecidedAt    time.Time
	Reason       string
}

// RequestionRepository defines the storage contract for the workflow.
// CreateWithAudit and Decide are transactional: the requestion write,
// the conditional entity mutation, and the audit entry commit together
// or not at all.
type RequestionRepository interface {
	CreateWithAudit(ctx context.Context, req *types.Requestion, entry *types.AuditLogEntry) (string, error)
	GetByID(ctx context.Context, id string) (*types.Requestion, error)
	ListPending(ctx context.Context) ([]*types.PendingRequestion, error)
	Decide(ctx context.Context, d Decision, entry *types.AuditLogEntry) error
}

// Repository implements RequestionRepository against PostgreSQL
type Repository struct {
	db         *database.DB
	recordRepo records.RecordRepository
	auditRepo  audit.AuditRepository
	logger     *logger.Logger
}

// NewRepository creates a new requestion repository
func NewRepository(db *database.DB, recordRepo records.RecordRepository, auditRepo audit.AuditRepository, log *logger.Logger) *Repository {
	return &Repository{
		db:         db,
		recordRepo: recordRepo,
		auditRepo:  auditRepo,
		logger:     log,
	}
}

// CreateWithAudit inserts a pending requestion and its paired audit
// entry in a single transaction.
func (r *Repository) CreateWithAudit(ctx context.Context, req *types.Requestion, entry *types.AuditLogEntry) (string, error) {
	req.ID = uuid.New().String()
	req.Status = types.StatusPending
	req.CreatedAt = time.Now()

	dataJSON, err := json.Marshal(req.RequestData)
	if err != nil {
		return "", types.NewValidationError(types.ErrCodeInvalidInput, "failed to encode request data", nil)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", types.NewPersistenceError(types.ErrCodeWriteFailed, "failed to begin transaction", err)
	}

	query := `
		INSERT INTO requestions (id, worker_id, request_type, target_table, target_record_id, request_data, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = tx.ExecContext(ctx, query,
		req.ID,
		req.WorkerID,
		req.RequestType,
		req.TargetTable,
		req.TargetRecordID,
		dataJSON,
		req.Status,
		req.CreatedAt,
	)
	if err != nil {
		tx.Rollback()
		r.logger.WithError(err).Error("Failed to insert requestion")
		return "", types.NewPersistenceError(types.ErrCodeWriteFailed, "failed to insert requestion", err)
	}

	if err := r.auditRepo.AppendTx(ctx, tx, entry); err != nil {
		tx.Rollback()
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", types.NewPersistenceError(types.ErrCodeWriteFailed, "failed to commit requestion", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"requestion_id": req.ID,
		"request_type":  req.RequestType,
		"target_table":  req.TargetTable,
	}).Info("Created requestion")

	return req.ID, nil
}

// GetByID retrieves a requestion by ID
func (r *Repository) GetByID(ctx context.Context, id string) (*types.Requestion, error) {
	query := `
		SELECT id, worker_id, request_type, target_table, target_record_id, request_data,
			   status, decided_by, decided_at, COALESCE(denial_reason, ''), created_at
		FROM requestions
		WHERE id = $1`

	req := &types.Requestion{}
	var dataJSON []byte

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&req.ID,
		&req.WorkerID,
		&req.RequestType,
		&req.TargetTable,
		&req.TargetRecordID,
		&dataJSON,
		&req.Status,
		&req.DecidedBy,
		&req.DecidedAt,
		&req.DenialReason,
		&req.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("requestion not found: %s", id))
		}
		r.logger.WithError(err).Error("Failed to get requestion")
		return nil, types.NewPersistenceError(types.ErrCodeInternalError, "failed to get requestion", err)
	}

	if err := json.Unmarshal(dataJSON, &req.RequestData); err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to decode request data", err)
	}

	return req, nil
}

// ListPending returns all pending requestions joined with the proposing
// worker's display identity, newest-first. The read reflects every
// creation committed before it begins.
func (r *Repository) ListPending(ctx context.Context) ([]*types.PendingRequestion, error) {
	query := `
		SELECT r.id, r.worker_id, r.request_type, r.target_table, r.target_record_id,
			   r.request_data, r.status, r.created_at, u.full_name, u.role
		FROM requestions r
		JOIN users u ON u.id = r.worker_id
		WHERE r.status = 'pending'
		ORDER BY r.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.WithError(err).Error("Failed to list pending requestions")
		return nil, types.NewPersistenceError(types.ErrCodeInternalError, "failed to list pending requestions", err)
	}
	defer rows.Close()

	pending := []*types.PendingRequestion{}
	for rows.Next() {
		p := &types.PendingRequestion{}
		var dataJSON []byte

		err := rows.Scan(
			&p.ID,
			&p.WorkerID,
			&p.RequestType,
			&p.TargetTable,
			&p.TargetRecordID,
			&dataJSON,
			&p.Status,
			&p.CreatedAt,
			&p.WorkerName,
			&p.WorkerRole,
		)
		if err != nil {
			return nil, types.NewPersistenceError(types.ErrCodeInternalError, "failed to scan requestion row", err)
		}

		if err := json.Unmarshal(dataJSON, &p.RequestData); err != nil {
			return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to decode request data", err)
		}

		pending = append(pending, p)
	}

	if err := rows.Err(); err != nil {
		return nil, types.NewPersistenceError(types.ErrCodeInternalError, "error iterating requestion rows", err)
	}

	return pending, nil
}

// Decide moves a pending requestion to a terminal state, applies the
// approved mutation to the target record, and appends the audit entry,
// all in one transaction. The status change is guarded by a
// compare-and-swap on status = 'pending': of two concurrent decisions
// on the same requestion exactly one commits, the other gets an
// invalid-state error.
func (r *Repository) Decide(ctx context.Context, d Decision, entry *types.AuditLogEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.NewPersistenceError(types.ErrCodeWriteFailed, "failed to begin transaction", err)
	}

	var (
		requestType    types.RequestType
		targetTable    types.RecordTable
		targetRecordID string
		dataJSON       []byte
	)

	// Lock the row for the duration of the decision.
	err = tx.QueryRowContext(ctx, `
		SELECT request_type, target_table, target_record_id, request_data
		FROM requestions
		WHERE id = $1
		FOR UPDATE`, d.RequestionID).Scan(&requestType, &targetTable, &targetRecordID, &dataJSON)
	if err != nil {
		tx.Rollback()
		if err == sql.ErrNoRows {
			return types.NewNotFoundError(types.ErrCodeNotFound,
				fmt.Sprintf("requestion not found: %s", d.RequestionID))
		}
		return types.NewPersistenceError(types.ErrCodeInternalError, "failed to read requestion", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE requestions
		SET status = $1, decided_by = $2, decided_at = $3, denial_reason = NULLIF($4, '')
		WHERE id = $5 AND status = 'pending'`,
		d.Status, d.DecidedBy, d.DecidedAt, d.Reason, d.RequestionID)
	if err != nil {
		tx.Rollback()
		return types.NewPersistenceError(types.ErrCodeWriteFailed, "failed to update requestion status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		tx.Rollback()
		return types.NewPersistenceError(types.ErrCodeInternalError, "failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		tx.Rollback()
		return types.NewInvalidStateError(types.ErrCodeAlreadyDecided,
			fmt.Sprintf("requestion already decided: %s", d.RequestionID))
	}

	if d.Status == types.StatusApproved {
		if err := r.applyApproval(ctx, tx, requestType, targetTable, targetRecordID, dataJSON, d.DecidedBy); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := r.auditRepo.AppendTx(ctx, tx, entry); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return types.NewPersistenceError(types.ErrCodeWriteFailed, "failed to commit decision", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"requestion_id": d.RequestionID,
		"status":        d.Status,
		"decided_by":    d.DecidedBy,
	}).Info("Decided requestion")

	return nil
}

// applyApproval performs the approved mutation against the target
// record. A target that no longer exists or was already soft-deleted
// makes the write a no-op; the approval itself still stands.
func (r *Repository) applyApproval(ctx context.Context, tx *sql.Tx, requestType types.RequestType, table types.RecordTable, recordID string, dataJSON []byte, decidedBy string) error {
	switch requestType {
	case types.RequestTypeUpdate:
		var fields map[string]interface{}
		if err := json.Unmarshal(dataJSON, &fields); err != nil {
			return types.NewInternalError(types.ErrCodeInternalError, "failed to decode request data", err)
		}

		rows, err := r.recordRepo.OverwriteTx(ctx, tx, table, recordID, fields, decidedBy)
		if err != nil {
			return err
		}
		if rows == 0 {
			r.logger.WithField("record_id", recordID).Warn("Approved update had no target; treating as no-op")
		}

	case types.RequestTypeDelete:
		rows, err := r.recordRepo.SoftDeleteTx(ctx, tx, table, recordID, decidedBy)
		if err != nil {
			return err
		}
		if rows == 0 {
			r.logger.WithField("record_id", recordID).Warn("Approved delete had no target; treating as no-op")
		}

	default:
		return types.NewInternalError(types.ErrCodeInternalError,
			fmt.Sprintf("unknown request type: %s", requestType), nil)
	}

	return nil
}
