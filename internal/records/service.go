package records

import (
	"context"
	"fmt"

	"github.com/brgyhealth/records-portal/internal/audit"
	"github.com/brgyhealth/records-portal/pkg/logger"
	"github.com/brgyhealth/records-portal/pkg/types"
)

// Service owns direct access to canonical records: creation by any
// staff role, and update/delete by administrators who bypass the
// approval workflow. Field-worker mutations go through the approval
// service instead.
type Service struct {
	logger *logger.Logger
	repo   RecordRepository
	audit  *audit.Service
}

// NewService creates a new records service
func NewService(log *logger.Logger, repo RecordRepository, auditSvc *audit.Service) *Service {
	return &Service{
		logger: log,
		repo:   repo,
		audit:  auditSvc,
	}
}

// CreateRecord creates a canonical record directly. Creation needs no
// approval; only updates and deletes are delegated.
func (s *Service) CreateRecord(ctx context.Context, actor *types.Actor, table types.RecordTable, fields map[string]interface{}) (*types.HealthRecord, error) {
	if actor == nil || actor.UserID == "" {
		return nil, types.NewAuthenticationError(types.ErrCodeUnauthorized, "acting user identity is required")
	}
	if actor.Role == types.RoleMother {
		return nil, types.NewAuthorizationError(types.ErrCodeForbidden, "guardians cannot create records")
	}
	if len(fields) == 0 {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "record fields are required", nil)
	}

	record := &types.HealthRecord{
		Table:     table,
		Fields:    fields,
		CreatedBy: actor.UserID,
		UpdatedBy: actor.UserID,
	}

	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return nil, err
	}

	err = s.audit.Record(ctx, &actor.UserID, types.ActionRecordCreated,
		fmt.Sprintf("%s created %s %q (%s)", actor.DisplayName(), label(table), created.DisplayName(), created.ID))
	if err != nil {
		// The record landed but its audit entry did not; surface the
		// failure rather than passing as success.
		s.logger.WithError(err).Error("Record created but audit append failed")
		return nil, err
	}

	return created, nil
}

// GetRecord retrieves a record by ID
func (s *Service) GetRecord(ctx context.Context, table types.RecordTable, id string) (*types.HealthRecord, error) {
	return s.repo.GetByID(ctx, table, id)
}

// ListRecords lists records, excluding soft-deleted rows unless asked
func (s *Service) ListRecords(ctx context.Context, table types.RecordTable, filters *types.RecordFilters) ([]*types.HealthRecord, error) {
	if filters == nil {
		filters = &types.RecordFilters{}
	}
	return s.repo.List(ctx, table, filters)
}

// DirectUpdate overwrites a record's fields outside the approval
// workflow, committing the mutation and its audit entry together.
// Admin only; the workflow does not lock records while a requestion is
// pending, so a later approval can overwrite this edit (accepted
// last-writer-wins behavior).
func (s *Service) DirectUpdate(ctx context.Context, actor *types.Actor, table types.RecordTable, id string, fields map[string]interface{}) error {
	if err := s.requireAdmin(actor); err != nil {
		return err
	}
	if len(fields) == 0 {
		return types.NewValidationError(types.ErrCodeInvalidInput, "record fields are required", nil)
	}

	existing, err := s.repo.GetByID(ctx, table, id)
	if err != nil {
		return err
	}

	entry := &types.AuditLogEntry{
		UserID: &actor.UserID,
		Action: types.ActionRecordUpdated,
		Details: fmt.Sprintf("Admin %s updated %s %q (%s)",
			actor.DisplayName(), label(table), existing.DisplayName(), id),
	}

	return s.repo.OverwriteWithAudit(ctx, table, id, fields, actor.UserID, entry)
}

// DirectDelete soft-deletes a record outside the approval workflow,
// committing the mutation and its audit entry together.
func (s *Service) DirectDelete(ctx context.Context, actor *types.Actor, table types.RecordTable, id string) error {
	if err := s.requireAdmin(actor); err != nil {
		return err
	}

	existing, err := s.repo.GetByID(ctx, table, id)
	if err != nil {
		return err
	}

	entry := &types.AuditLogEntry{
		UserID: &actor.UserID,
		Action: types.ActionRecordDeleted,
		Details: fmt.Sprintf("Admin %s deleted %s %q (%s)",
			actor.DisplayName(), label(table), existing.DisplayName(), id),
	}

	return s.repo.SoftDeleteWithAudit(ctx, table, id, actor.UserID, entry)
}

func (s *Service) requireAdmin(actor *types.Actor) error {
	if actor == nil || actor.UserID == "" {
		return types.NewAuthenticationError(types.ErrCodeUnauthorized, "acting user identity is required")
	}
	if actor.Role != types.RoleAdmin {
		return types.NewInvalidStateError(types.ErrCodeForbidden,
			"direct record mutation requires the admin role; submit a change request instead")
	}
	return nil
}

func label(table types.RecordTable) string {
	switch table {
	case types.TablePatients:
		return "patient"
	case types.TableChildRecords:
		return "child record"
	default:
		return string(table)
	}
}
