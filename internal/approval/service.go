package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/brgyhealth/records-portal/internal/records"
	"github.com/brgyhealth/records-portal/pkg/logger"
	"github.com/brgyhealth/records-portal/pkg/monitoring"
	"github.com/brgyhealth/records-portal/pkg/types"
)

// Service implements the delegated-mutation approval workflow. Field
// workers submit proposed changes as requestions; only an administrator
// moves a requestion out of pending, and an approval is the only path
// (besides direct admin edits) that mutates a canonical record on a
// worker's behalf.
type Service struct {
	logger     *logger.Logger
	repo       RequestionRepository
	recordRepo records.RecordRepository
	metrics    *monitoring.MetricsCollector
}

// NewService creates a new approval workflow service
func NewService(log *logger.Logger, repo RequestionRepository, recordRepo records.RecordRepository, metrics *monitoring.MetricsCollector) *Service {
	return &Service{
		logger:     log,
		repo:       repo,
		recordRepo: recordRepo,
		metrics:    metrics,
	}
}

// SubmitUpdate records a worker's proposed field overwrite as a pending
// requestion. proposedFields is the full form snapshot, not a diff:
// approval applies it verbatim over the record. The canonical record is
// not touched here.
func (s *Service) SubmitUpdate(ctx context.Context, actor *types.Actor, targetTable types.RecordTable, targetRecordID string, proposedFields map[string]interface{}) (string, error) {
	if err := s.validateSubmission(actor, targetTable, targetRecordID); err != nil {
		return "", err
	}

	displayName, ok := displayNameFromFields(proposedFields)
	if !ok {
		return "", types.NewValidationError(types.ErrCodeValidationFailed,
			"proposed fields are missing an identifying name", map[string]interface{}{
				"target_record_id": targetRecordID,
			})
	}

	// The target must have existed at submission time. A record deleted
	// since the worker loaded the form is still accepted; the conflict
	// surfaces at decision time as a no-op approval.
	if _, err := s.recordRepo.GetByID(ctx, targetTable, targetRecordID); err != nil {
		return "", err
	}

	req := &types.Requestion{
		WorkerID:       actor.UserID,
		RequestType:    types.RequestTypeUpdate,
		TargetTable:    targetTable,
		TargetRecordID: targetRecordID,
		RequestData:    proposedFields,
	}

	entry := &types.AuditLogEntry{
		UserID: &actor.UserID,
		Action: types.ActionUpdateRequestSubmitted,
		Details: fmt.Sprintf("%s %s submitted an update request for %s %q (%s)",
			roleLabel(actor.Role), actor.DisplayName(), recordLabel(targetTable), displayName, targetRecordID),
	}

	id, err := s.repo.CreateWithAudit(ctx, req, entry)
	if err != nil {
		return "", err
	}

	if s.metrics != nil {
		s.metrics.RecordRequestionSubmitted(string(types.RequestTypeUpdate), string(targetTable))
		s.metrics.RecordAuditEvent(entry.Action, true)
	}

	return id, nil
}

// SubmitDelete records a worker's proposed soft delete as a pending
// requestion. No field payload is needed; request data holds display
// metadata only.
func (s *Service) SubmitDelete(ctx context.Context, actor *types.Actor, targetTable types.RecordTable, targetRecordID string, summary string) (string, error) {
	if err := s.validateSubmission(actor, targetTable, targetRecordID); err != nil {
		return "", err
	}

	target, err := s.recordRepo.GetByID(ctx, targetTable, targetRecordID)
	if err != nil {
		return "", err
	}

	displayName := target.DisplayName()
	if summary == "" {
		summary = fmt.Sprintf("Delete %s %q", recordLabel(targetTable), displayName)
	}

	req := &types.Requestion{
		WorkerID:       actor.UserID,
		RequestType:    types.RequestTypeDelete,
		TargetTable:    targetTable,
		TargetRecordID: targetRecordID,
		RequestData: map[string]interface{}{
			"summary":      summary,
			"display_name": displayName,
			"record_id":    targetRecordID,
		},
	}

	entry := &types.AuditLogEntry{
		UserID: &actor.UserID,
		Action: types.ActionDeleteRequestSubmitted,
		Details: fmt.Sprintf("%s %s submitted a delete request for %s %q (%s): %s",
			roleLabel(actor.Role), actor.DisplayName(), recordLabel(targetTable), displayName, targetRecordID, summary),
	}

	id, err := s.repo.CreateWithAudit(ctx, req, entry)
	if err != nil {
		return "", err
	}

	if s.metrics != nil {
		s.metrics.RecordRequestionSubmitted(string(types.RequestTypeDelete), string(targetTable))
		s.metrics.RecordAuditEvent(entry.Action, true)
	}

	return id, nil
}

// ListPending returns the review queue, newest-first, with the
// proposing worker's display identity. Pure read.
func (s *Service) ListPending(ctx context.Context) ([]*types.PendingRequestion, error) {
	return s.repo.ListPending(ctx)
}

// Approve applies a pending requestion: a full field overwrite for
// updates, a soft delete for deletes. A target that disappeared since
// submission makes the write a no-op, but the requestion is still
// approved. A requestion already decided fails with an invalid-state
// error; retried approvals are rejected, never silently absorbed.
func (s *Service) Approve(ctx context.Context, requestionID string, actor *types.Actor) error {
	return s.decide(ctx, requestionID, actor, types.StatusApproved, "")
}

// Deny closes a pending requestion without touching the target record
func (s *Service) Deny(ctx context.Context, requestionID string, actor *types.Actor, reason string) error {
	return s.decide(ctx, requestionID, actor, types.StatusDenied, reason)
}

func (s *Service) decide(ctx context.Context, requestionID string, actor *types.Actor, status types.RequestStatus, reason string) error {
	if actor == nil || actor.UserID == "" {
		return types.NewAuthenticationError(types.ErrCodeUnauthorized, "deciding actor identity is required")
	}
	if actor.Role != types.RoleAdmin {
		return types.NewInvalidStateError(types.ErrCodeForbidden,
			"only administrators may decide change requests")
	}

	req, err := s.repo.GetByID(ctx, requestionID)
	if err != nil {
		return err
	}
	if req.Status.IsTerminal() {
		return types.NewInvalidStateError(types.ErrCodeAlreadyDecided,
			fmt.Sprintf("requestion already decided: %s", requestionID))
	}

	verb := "approved"
	action := types.ActionRequestApproved
	if status == types.StatusDenied {
		verb = "denied"
		action = types.ActionRequestDenied
	}

	details := fmt.Sprintf("Admin %s %s the %s request for %s %q (%s)",
		actor.DisplayName(), verb, req.RequestType, recordLabel(req.TargetTable),
		requestionDisplayName(req), req.TargetRecordID)
	if reason != "" {
		details += ": " + reason
	}

	entry := &types.AuditLogEntry{
		UserID:  &actor.UserID,
		Action:  action,
		Details: details,
	}

	err = s.repo.Decide(ctx, Decision{
		RequestionID: requestionID,
		Status:       status,
		DecidedBy:    actor.UserID,
		DecidedAt:    time.Now(),
		Reason:       reason,
	}, entry)
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordRequestionDecided(string(status), string(req.RequestType))
		s.metrics.RecordAuditEvent(entry.Action, true)
	}

	s.logger.Audit(actor.UserID, action, string(req.TargetTable), true, map[string]interface{}{
		"requestion_id": requestionID,
	})

	return nil
}

func (s *Service) validateSubmission(actor *types.Actor, targetTable types.RecordTable, targetRecordID string) error {
	if actor == nil || actor.UserID == "" {
		return types.NewAuthenticationError(types.ErrCodeUnauthorized, "submitting actor identity is required")
	}
	if !actor.Role.IsFieldWorker() {
		return types.NewInvalidStateError(types.ErrCodeForbidden,
			"only field workers submit change requests; administrators edit records directly")
	}
	if !targetTable.Valid() {
		return types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("unknown record table: %s", targetTable), nil)
	}
	if targetRecordID == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "target record id is required", nil)
	}
	return nil
}

// displayNameFromFields pulls the record's human-readable name out of a
// proposed field snapshot. Audit details must carry it so the history
// view can find the entry later by substring search.
func displayNameFromFields(fields map[string]interface{}) (string, bool) {
	for _, key := range []string{"full_name", "name", "child_name", "patient_name"} {
		if v, ok := fields[key].(string); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func requestionDisplayName(req *types.Requestion) string {
	if name, ok := displayNameFromFields(req.RequestData); ok {
		return name
	}
	if v, ok := req.RequestData["display_name"].(string); ok && v != "" {
		return v
	}
	return req.TargetRecordID
}

func roleLabel(role types.UserRole) string {
	switch role {
	case types.RoleBHW:
		return "BHW"
	case types.RoleBNS:
		return "BNS"
	case types.RoleMidwife:
		return "Midwife"
	case types.RoleAdmin:
		return "Admin"
	default:
		return "User"
	}
}

func recordLabel(table types.RecordTable) string {
	switch table {
	case types.TablePatients:
		return "patient"
	case types.TableChildRecords:
		return "child record"
	default:
		return string(table)
	}
}
