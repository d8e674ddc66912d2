package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brgyhealth/records-portal/pkg/database"
	"github.com/brgyhealth/records-portal/pkg/logger"
	"github.com/brgyhealth/records-portal/pkg/types"
)

func newTestRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	return NewRepository(&database.DB{DB: sqlDB}, logger.New("debug")), mock
}

func TestAppend_FillsIDAndTimestamp(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(sqlmock.AnyArg(), nil, types.ActionRecordCreated, "System created patient", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := &types.AuditLogEntry{
		Action:  types.ActionRecordCreated,
		Details: "System created patient",
	}

	err := repo.Append(context.Background(), entry)

	assert.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppend_WriteFailure(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnError(sql.ErrConnDone)

	err := repo.Append(context.Background(), &types.AuditLogEntry{Action: types.ActionRecordCreated})

	assert.Error(t, err)
	assert.True(t, types.IsErrorType(err, types.ErrorTypePersistence))
}

func TestQuery_MatchesSubstring(t *testing.T) {
	repo, mock := newTestRepo(t)

	userID := "worker-1"
	mock.ExpectQuery("WHERE a.details ILIKE").
		WithArgs("Ana Santos").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "action", "details", "created_at", "full_name", "role",
		}).AddRow("log-2", userID, types.ActionRequestApproved,
			`Admin Jose Reyes approved the update request for patient "Ana Santos" (rec-1)`,
			time.Now(), "Jose Reyes", "admin").
			AddRow("log-1", userID, types.ActionUpdateRequestSubmitted,
				`BHW Maria Cruz submitted an update request for patient "Ana Santos" (rec-1)`,
				time.Now().Add(-time.Minute), "Maria Cruz", "bhw"))

	entries, err := repo.Query(context.Background(), "Ana Santos")

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, types.ActionRequestApproved, entries[0].Action)
	assert.Equal(t, "Jose Reyes", entries[0].ActorName)
	assert.Equal(t, "Maria Cruz", entries[1].ActorName)
}

func TestQuery_SystemEntriesHaveNoActor(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("WHERE a.details ILIKE").
		WithArgs("migration").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "action", "details", "created_at", "full_name", "role",
		}).AddRow("log-1", nil, "System Migration", "Initial data migration", time.Now(), "System", ""))

	entries, err := repo.Query(context.Background(), "migration")

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].UserID)
	assert.Equal(t, "System", entries[0].ActorName)
}

func TestQuery_NoMatchesReturnsEmptySlice(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("WHERE a.details ILIKE").
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "action", "details", "created_at", "full_name", "role",
		}))

	entries, err := repo.Query(context.Background(), "nobody")

	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}
