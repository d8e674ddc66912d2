package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brgyhealth/records-portal/internal/audit"
	"github.com/brgyhealth/records-portal/pkg/database"
	"github.com/brgyhealth/records-portal/pkg/logger"
	"github.com/brgyhealth/records-portal/pkg/types"
)

// RecordRepository defines the interface for canonical record operations.
// Direct mutations commit together with their audit entry; the Tx
// variants run inside a caller-managed transaction so the decision
// engine can pair an entity write with the requestion status change.
type RecordRepository interface {
	Create(ctx context.Context, record *types.HealthRecord) (*types.HealthRecord, error)
	GetByID(ctx context.Context, table types.RecordTable, id string) (*types.HealthRecord, error)
	OverwriteWithAudit(ctx context.Context, table types.RecordTable, id string, fields map[string]interface{}, updatedBy string, entry *types.AuditLogEntry) error
	SoftDeleteWithAudit(ctx context.Context, table types.RecordTable, id string, deletedBy string, entry *types.AuditLogEntry) error
	OverwriteTx(ctx context.Context, tx *sql.Tx, table types.RecordTable, id string, fields map[string]interface{}, updatedBy string) (int64, error)
	SoftDeleteTx(ctx context.Context, tx *sql.Tx, table types.RecordTable, id string, deletedBy string) (int64, error)
	List(ctx context.Context, table types.RecordTable, filters *types.RecordFilters) ([]*types.HealthRecord, error)
}

// Repository implements RecordRepository against PostgreSQL
type Repository struct {
	db        *database.DB
	auditRepo audit.AuditRepository
	logger    *logger.Logger
}

// NewRepository creates a new record repository
func NewRepository(db *database.DB, auditRepo audit.AuditRepository, log *logger.Logger) *Repository {
	return &Repository{
		db:        db,
		auditRepo: auditRepo,
		logger:    log,
	}
}

// tableName maps the RecordTable enum to a SQL identifier. Only known
// collections pass; everything else is rejected before query assembly.
func tableName(table types.RecordTable) (string, error) {
	if !table.Valid() {
		return "", types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("unknown record table: %s", table), nil)
	}
	return string(table), nil
}

// Create inserts a new canonical record
func (r *Repository) Create(ctx context.Context, record *types.HealthRecord) (*types.HealthRecord, error) {
	name, err := tableName(record.Table)
	if err != nil {
		return nil, err
	}

	record.ID = uuid.New().String()
	record.CreatedAt = time.Now()
	record.UpdatedAt = record.CreatedAt

	fieldsJSON, err := json.Marshal(record.Fields)
	if err != nil {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "failed to encode record fields", nil)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, fields, is_deleted, created_at, updated_at, created_by, updated_by)
		VALUES ($1, $2, FALSE, $3, $4, $5, $6)`, name)

	_, err = r.db.ExecContext(ctx, query,
		record.ID,
		fieldsJSON,
		record.CreatedAt,
		record.UpdatedAt,
		record.CreatedBy,
		record.UpdatedBy,
	)
	if err != nil {
		r.logger.WithError(err).WithField("table", name).Error("Failed to create record")
		return nil, types.NewPersistenceError(types.ErrCodeWriteFailed, "failed to create record", err)
	}

	r.logger.WithFields(map[string]interface{}{"table": name, "record_id": record.ID}).Info("Created record")
	return record, nil
}

// GetByID retrieves a record by ID, including soft-deleted rows
func (r *Repository) GetByID(ctx context.Context, table types.RecordTable, id string) (*types.HealthRecord, error) {
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, fields, is_deleted, deleted_at, created_at, updated_at, created_by, updated_by
		FROM %s
		WHERE id = $1`, name)

	record := &types.HealthRecord{Table: table}
	var fieldsJSON []byte

	err = r.db.QueryRowContext(ctx, query, id).Scan(
		&record.ID,
		&fieldsJSON,
		&record.IsDeleted,
		&record.DeletedAt,
		&record.CreatedAt,
		&record.UpdatedAt,
		&record.CreatedBy,
		&record.UpdatedBy,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError(types.ErrCodeNotFound,
				fmt.Sprintf("record not found: %s/%s", name, id))
		}
		r.logger.WithError(err).WithField("table", name).Error("Failed to get record")
		return nil, types.NewPersistenceError(types.ErrCodeInternalError, "failed to get record", err)
	}

	if err := json.Unmarshal(fieldsJSON, &record.Fields); err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to decode record fields", err)
	}

	return record, nil
}

// OverwriteWithAudit replaces the record's field map in full and appends
// the audit entry in the same transaction.
func (r *Repository) OverwriteWithAudit(ctx context.Context, table types.RecordTable, id string, fields map[string]interface{}, updatedBy string, entry *types.AuditLogEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.NewPersistenceError(types.ErrCodeWriteFailed, "failed to begin transaction", err)
	}

	rows, err := r.OverwriteTx(ctx, tx, table, id, fields, updatedBy)
	if err != nil {
		tx.Rollback()
		return err
	}
	if rows == 0 {
		tx.Rollback()
		return types.NewNotFoundError(types.ErrCodeNotFound,
			fmt.Sprintf("record not found: %s/%s", table, id))
	}

	if err := r.auditRepo.AppendTx(ctx, tx, entry); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return types.NewPersistenceError(types.ErrCodeWriteFailed, "failed to commit record update", err)
	}
	return nil
}

// OverwriteTx replaces the record's field map in full within a transaction.
// Returns the number of rows touched; zero means the target is gone.
func (r *Repository) OverwriteTx(ctx context.Context, tx *sql.Tx, table types.RecordTable, id string, fields map[string]interface{}, updatedBy string) (int64, error) {
	name, err := tableName(table)
	if err != nil {
		return 0, err
	}

	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return 0, types.NewValidationError(types.ErrCodeInvalidInput, "failed to encode record fields", nil)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET fields = $1, updated_at = $2, updated_by = $3
		WHERE id = $4 AND is_deleted = FALSE`, name)

	result, err := tx.ExecContext(ctx, query, fieldsJSON, time.Now(), updatedBy, id)
	if err != nil {
		r.logger.WithError(err).WithField("table", name).Error("Failed to overwrite record")
		return 0, types.NewPersistenceError(types.ErrCodeWriteFailed, "failed to overwrite record", err)
	}

	return result.RowsAffected()
}

// SoftDeleteWithAudit marks the record deleted and appends the audit
// entry in the same transaction.
func (r *Repository) SoftDeleteWithAudit(ctx context.Context, table types.RecordTable, id string, deletedBy string, entry *types.AuditLogEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.NewPersistenceError(types.ErrCodeWriteFailed, "failed to begin transaction", err)
	}

	rows, err := r.SoftDeleteTx(ctx, tx, table, id, deletedBy)
	if err != nil {
		tx.Rollback()
		return err
	}
	if rows == 0 {
		tx.Rollback()
		return types.NewNotFoundError(types.ErrCodeNotFound,
			fmt.Sprintf("record not found: %s/%s", table, id))
	}

	if err := r.auditRepo.AppendTx(ctx, tx, entry); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return types.NewPersistenceError(types.ErrCodeWriteFailed, "failed to commit record delete", err)
	}
	return nil
}

// SoftDeleteTx marks the record deleted within a transaction. Rows already
// deleted are not touched again, so DeletedAt keeps its original value.
func (r *Repository) SoftDeleteTx(ctx context.Context, tx *sql.Tx, table types.RecordTable, id string, deletedBy string) (int64, error) {
	name, err := tableName(table)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	query := fmt.Sprintf(`
		UPDATE %s
		SET is_deleted = TRUE, deleted_at = $1, updated_at = $1, updated_by = $2
		WHERE id = $3 AND is_deleted = FALSE`, name)

	result, err := tx.ExecContext(ctx, query, now, deletedBy, id)
	if err != nil {
		r.logger.WithError(err).WithField("table", name).Error("Failed to soft delete record")
		return 0, types.NewPersistenceError(types.ErrCodeWriteFailed, "failed to soft delete record", err)
	}

	return result.RowsAffected()
}

// List retrieves records, excluding soft-deleted rows unless asked
func (r *Repository) List(ctx context.Context, table types.RecordTable, filters *types.RecordFilters) ([]*types.HealthRecord, error) {
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, fields, is_deleted, deleted_at, created_at, updated_at, created_by, updated_by
		FROM %s
		WHERE 1=1`, name)

	args := []interface{}{}
	argIndex := 1

	if !filters.IncludeDeleted {
		query += " AND is_deleted = FALSE"
	}

	if filters.CreatedBy != "" {
		query += fmt.Sprintf(" AND created_by = $%d", argIndex)
		args = append(args, filters.CreatedBy)
		argIndex++
	}

	query += " ORDER BY created_at DESC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filters.Limit)
		argIndex++
	}

	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, filters.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.WithError(err).WithField("table", name).Error("Failed to list records")
		return nil, types.NewPersistenceError(types.ErrCodeInternalError, "failed to list records", err)
	}
	defer rows.Close()

	results := []*types.HealthRecord{}
	for rows.Next() {
		record := &types.HealthRecord{Table: table}
		var fieldsJSON []byte

		err := rows.Scan(
			&record.ID,
			&fieldsJSON,
			&record.IsDeleted,
			&record.DeletedAt,
			&record.CreatedAt,
			&record.UpdatedAt,
			&record.CreatedBy,
			&record.UpdatedBy,
		)
		if err != nil {
			return nil, types.NewPersistenceError(types.ErrCodeInternalError, "failed to scan record row", err)
		}

		if err := json.Unmarshal(fieldsJSON, &record.Fields); err != nil {
			return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to decode record fields", err)
		}

		results = append(results, record)
	}

	if err := rows.Err(); err != nil {
		return nil, types.NewPersistenceError(types.ErrCodeInternalError, "error iterating record rows", err)
	}

	return results, nil
}
