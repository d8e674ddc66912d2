package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/brgyhealth/records-portal/pkg/database"
	"github.com/brgyhealth/records-portal/pkg/logger"
	"github.com/brgyhealth/records-portal/pkg/types"
)

// AuditRepository defines the append-only audit log contract. There is
// deliberately no update or delete operation.
type AuditRepository interface {
	Append(ctx context.Context, entry *types.AuditLogEntry) error
	AppendTx(ctx context.Context, tx *sql.Tx, entry *types.AuditLogEntry) error
	Query(ctx context.Context, term string) ([]*types.HistoryEntry, error)
}

// Repository implements AuditRepository against PostgreSQL
type Repository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewRepository creates a new audit log repository
func NewRepository(db *database.DB, log *logger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: log,
	}
}

const insertEntryQuery = `
	INSERT INTO audit_logs (id, user_id, action, details, created_at)
	VALUES ($1, $2, $3, $4, $5)`

// Append writes a new audit log entry
func (r *Repository) Append(ctx context.Context, entry *types.AuditLogEntry) error {
	r.prepare(entry)

	_, err := r.db.ExecContext(ctx, insertEntryQuery,
		entry.ID, entry.UserID, entry.Action, entry.Details, entry.CreatedAt)
	if err != nil {
		r.logger.WithError(err).Error("Failed to append audit log entry")
		return types.NewPersistenceError(types.ErrCodeWriteFailed, "failed to append audit log entry", err)
	}

	return nil
}

// AppendTx writes a new audit log entry within a caller-managed
// transaction, so workflow writes and their audit entry commit together.
func (r *Repository) AppendTx(ctx context.Context, tx *sql.Tx, entry *types.AuditLogEntry) error {
	r.prepare(entry)

	_, err := tx.ExecContext(ctx, insertEntryQuery,
		entry.ID, entry.UserID, entry.Action, entry.Details, entry.CreatedAt)
	if err != nil {
		r.logger.WithError(err).Error("Failed to append audit log entry")
		return types.NewPersistenceError(types.ErrCodeWriteFailed, "failed to append audit log entry", err)
	}

	return nil
}

func (r *Repository) prepare(entry *types.AuditLogEntry) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
}

// Query returns entries whose details contain term as a case-insensitive
// substring, joined with the actor's display identity, newest-first.
func (r *Repository) Query(ctx context.Context, term string) ([]*types.HistoryEntry, error) {
	query := `
		SELECT a.id, a.user_id, a.action, a.details, a.created_at,
			   COALESCE(u.full_name, 'System'), COALESCE(u.role, '')
		FROM audit_logs a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE a.details ILIKE '%' || $1 || '%'
		ORDER BY a.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, term)
	if err != nil {
		r.logger.WithError(err).Error("Failed to query audit log")
		return nil, types.NewPersistenceError(types.ErrCodeInternalError, "failed to query audit log", err)
	}
	defer rows.Close()

	entries := []*types.HistoryEntry{}
	for rows.Next() {
		entry := &types.HistoryEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Action,
			&entry.Details,
			&entry.CreatedAt,
			&entry.ActorName,
			&entry.ActorRole,
		)
		if err != nil {
			return nil, types.NewPersistenceError(types.ErrCodeInternalError, "failed to scan audit log row", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, types.NewPersistenceError(types.ErrCodeInternalError, "error iterating audit log rows", err)
	}

	return entries, nil
}
