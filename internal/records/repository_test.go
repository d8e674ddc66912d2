package records

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brgyhealth/records-portal/internal/audit"
	"github.com/brgyhealth/records-portal/pkg/database"
	"github.com/brgyhealth/records-portal/pkg/logger"
	"github.com/brgyhealth/records-portal/pkg/types"
)

func newTestRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	log := logger.New("debug")
	db := &database.DB{DB: sqlDB}
	return NewRepository(db, audit.NewRepository(db, log), log), mock
}

func auditEntry(action string) *types.AuditLogEntry {
	userID := "admin-1"
	return &types.AuditLogEntry{UserID: &userID, Action: action, Details: "details"}
}

func TestCreate_InsertsRecord(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec("INSERT INTO patients").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "worker-1", "worker-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	record, err := repo.Create(context.Background(), &types.HealthRecord{
		Table:     types.TablePatients,
		Fields:    map[string]interface{}{"full_name": "Ana Santos"},
		CreatedBy: "worker-1",
		UpdatedBy: "worker-1",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_UnknownTableRejected(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.Create(context.Background(), &types.HealthRecord{
		Table:  types.RecordTable("users; DROP TABLE users"),
		Fields: map[string]interface{}{},
	})

	assert.Error(t, err)
	assert.True(t, types.IsErrorType(err, types.ErrorTypeValidation))
}

func TestGetByID_IncludesSoftDeleted(t *testing.T) {
	repo, mock := newTestRepo(t)

	deletedAt := time.Now()
	mock.ExpectQuery("SELECT id, fields, is_deleted").
		WithArgs("rec-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "fields", "is_deleted", "deleted_at", "created_at", "updated_at", "created_by", "updated_by",
		}).AddRow("rec-1", []byte(`{"full_name":"Ana Santos"}`), true, deletedAt,
			time.Now(), time.Now(), "worker-1", "admin-1"))

	record, err := repo.GetByID(context.Background(), types.TablePatients, "rec-1")

	require.NoError(t, err)
	assert.True(t, record.IsDeleted)
	require.NotNil(t, record.DeletedAt)
	assert.Equal(t, "Ana Santos", record.Fields["full_name"])
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("SELECT id, fields, is_deleted").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), types.TablePatients, "missing")

	assert.Error(t, err)
	assert.True(t, types.IsErrorType(err, types.ErrorTypeNotFound))
}

func TestOverwriteWithAudit_CommitsBothWrites(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE patients").
		WithArgs([]byte(`{"full_name":"Ana Santos"}`), sqlmock.AnyArg(), "admin-1", "rec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.OverwriteWithAudit(context.Background(), types.TablePatients, "rec-1",
		map[string]interface{}{"full_name": "Ana Santos"}, "admin-1", auditEntry(types.ActionRecordUpdated))

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOverwriteWithAudit_MissingRowRollsBack(t *testing.T) {
	repo, mock := newTestRepo(t)

	// No audit entry may land for a mutation that touched nothing.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE patients").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.OverwriteWithAudit(context.Background(), types.TablePatients, "gone",
		map[string]interface{}{"full_name": "Ana Santos"}, "admin-1", auditEntry(types.ActionRecordUpdated))

	assert.Error(t, err)
	assert.True(t, types.IsErrorType(err, types.ErrorTypeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOverwriteWithAudit_AuditFailureRollsBack(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE patients").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.OverwriteWithAudit(context.Background(), types.TablePatients, "rec-1",
		map[string]interface{}{"full_name": "Ana Santos"}, "admin-1", auditEntry(types.ActionRecordUpdated))

	assert.Error(t, err)
	assert.True(t, types.IsErrorType(err, types.ErrorTypePersistence))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSoftDeleteWithAudit_CommitsBothWrites(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE child_records").
		WithArgs(sqlmock.AnyArg(), "admin-1", "child-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.SoftDeleteWithAudit(context.Background(), types.TableChildRecords, "child-1",
		"admin-1", auditEntry(types.ActionRecordDeleted))

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSoftDeleteWithAudit_SkipsAlreadyDeletedRows(t *testing.T) {
	repo, mock := newTestRepo(t)

	// The guard on is_deleted means a second delete touches nothing
	// and surfaces as not found.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE child_records").
		WithArgs(sqlmock.AnyArg(), "admin-1", "child-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.SoftDeleteWithAudit(context.Background(), types.TableChildRecords, "child-1",
		"admin-1", auditEntry(types.ActionRecordDeleted))

	assert.Error(t, err)
	assert.True(t, types.IsErrorType(err, types.ErrorTypeNotFound))
}

func TestList_ExcludesDeletedByDefault(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("AND is_deleted = FALSE").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "fields", "is_deleted", "deleted_at", "created_at", "updated_at", "created_by", "updated_by",
		}).AddRow("rec-1", []byte(`{"full_name":"Ana Santos"}`), false, nil,
			time.Now(), time.Now(), "worker-1", "worker-1"))

	results, err := repo.List(context.Background(), types.TablePatients, &types.RecordFilters{})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "rec-1", results[0].ID)
}

func TestList_NoMatchesReturnsEmptySlice(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("AND created_by =").
		WithArgs("worker-1", 10).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "fields", "is_deleted", "deleted_at", "created_at", "updated_at", "created_by", "updated_by",
		}))

	results, err := repo.List(context.Background(), types.TablePatients, &types.RecordFilters{
		CreatedBy: "worker-1",
		Limit:     10,
	})

	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.NoError(t, mock.ExpectationsWereMet())
}
