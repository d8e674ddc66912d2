package audit

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/brgyhealth/records-portal/pkg/logger"
	"github.com/brgyhealth/records-portal/pkg/types"
)

// MockAuditRepository is a mock implementation of AuditRepository
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Append(ctx context.Context, entry *types.AuditLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditRepository) AppendTx(ctx context.Context, tx *sql.Tx, entry *types.AuditLogEntry) error {
	args := m.Called(ctx, tx, entry)
	return args.Error(0)
}

func (m *MockAuditRepository) Query(ctx context.Context, term string) ([]*types.HistoryEntry, error) {
	args := m.Called(ctx, term)
	return args.Get(0).([]*types.HistoryEntry), args.Error(1)
}

func setupTestService() (*Service, *MockAuditRepository) {
	mockRepo := &MockAuditRepository{}
	return NewService(logger.New("debug"), mockRepo, nil), mockRepo
}

func TestQueryHistory_TrimsTerm(t *testing.T) {
	service, mockRepo := setupTestService()

	mockRepo.On("Query", mock.Anything, "Ana Santos").
		Return([]*types.HistoryEntry{{AuditLogEntry: types.AuditLogEntry{ID: "log-1"}}}, nil)

	entries, err := service.QueryHistory(context.Background(), "  Ana Santos  ")

	assert.NoError(t, err)
	assert.Len(t, entries, 1)
	mockRepo.AssertExpectations(t)
}

func TestQueryHistory_EmptyTermRejected(t *testing.T) {
	service, mockRepo := setupTestService()

	_, err := service.QueryHistory(context.Background(), "   ")

	assert.Error(t, err)
	assert.True(t, types.IsErrorType(err, types.ErrorTypeValidation))
	mockRepo.AssertNotCalled(t, "Query", mock.Anything, mock.Anything)
}

func TestQueryHistory_EmptyResultIsNotAnError(t *testing.T) {
	service, mockRepo := setupTestService()

	mockRepo.On("Query", mock.Anything, "nobody").Return([]*types.HistoryEntry{}, nil)

	entries, err := service.QueryHistory(context.Background(), "nobody")

	assert.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecord_AppendsEntry(t *testing.T) {
	service, mockRepo := setupTestService()

	userID := "admin-1"
	mockRepo.On("Append", mock.Anything, mock.MatchedBy(func(entry *types.AuditLogEntry) bool {
		return entry.Action == types.ActionRecordDeleted && entry.UserID != nil && *entry.UserID == userID
	})).Return(nil)

	err := service.Record(context.Background(), &userID, types.ActionRecordDeleted, "Admin deleted patient")

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}
