package audit

import (
	"context"
	"strings"

	"github.com/brgyhealth/records-portal/pkg/logger"
	"github.com/brgyhealth/records-portal/pkg/monitoring"
	"github.com/brgyhealth/records-portal/pkg/types"
)

// Service answers history queries against the audit log. Lookup is a
// substring scan on the free-text details field; the log carries no
// typed reference to the record or requestion an entry describes, so a
// record rename makes older history unreachable by the new name.
type Service struct {
	logger  *logger.Logger
	repo    AuditRepository
	metrics *monitoring.MetricsCollector
}

// NewService creates a new audit query service
func NewService(log *logger.Logger, repo AuditRepository, metrics *monitoring.MetricsCollector) *Service {
	return &Service{
		logger:  log,
		repo:    repo,
		metrics: metrics,
	}
}

// QueryHistory returns all entries touching the search term,
// newest-first. An empty result is a valid answer, not an error.
func (s *Service) QueryHistory(ctx context.Context, term string) ([]*types.HistoryEntry, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "search term is required", nil)
	}

	entries, err := s.repo.Query(ctx, term)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"term":    term,
		"matches": len(entries),
	}).Debug("Audit history queried")

	return entries, nil
}

// Record appends a workflow audit entry and bumps the event metric
func (s *Service) Record(ctx context.Context, userID *string, action, details string) error {
	err := s.repo.Append(ctx, &types.AuditLogEntry{
		UserID:  userID,
		Action:  action,
		Details: details,
	})
	if s.metrics != nil {
		s.metrics.RecordAuditEvent(action, err == nil)
	}
	return err
}
