package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edudesk/school-records-api/internal/models"
)

func newRecordRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestRecordRepositoryCreateAssignsIdentity(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectExec("INSERT INTO records").
		WithArgs(sqlmock.AnyArg(), "teacher-1", "leave_application", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	record := &models.Record{
		OwnerID: "teacher-1",
		Kind:    models.KindLeaveApplication,
		Payload: []byte(`{"reason":"medical"}`),
	}
	require.NoError(t, repo.Create(context.Background(), record))

	assert.NotEmpty(t, record.ID)
	assert.False(t, record.CreatedAt.IsZero())
	assert.Equal(t, record.CreatedAt, record.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	rows := sqlmock.NewRows([]string{"id", "owner_id", "kind", "payload", "created_at", "updated_at"}).
		AddRow("r1", "teacher-1", "class", []byte(`{"class_name":"Math"}`), time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, owner_id, kind, payload, created_at, updated_at FROM records WHERE id = $1")).
		WithArgs("r1").
		WillReturnRows(rows)

	record, err := repo.FindByID(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, models.KindClass, record.Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryListWithFilters(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	rows := sqlmock.NewRows([]string{"id", "owner_id", "kind", "payload", "created_at", "updated_at"}).
		AddRow("r1", "teacher-1", "leave_application", []byte(`{"status":"Pending"}`), time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, owner_id, kind, payload, created_at, updated_at FROM records WHERE 1=1 AND owner_id = $1 AND kind = $2 AND payload->>'status' = $3 ORDER BY created_at ASC, id ASC")).
		WithArgs("teacher-1", "leave_application", "Pending").
		WillReturnRows(rows)

	records, err := repo.List(context.Background(), models.RecordFilter{
		OwnerID: "teacher-1",
		Kind:    models.KindLeaveApplication,
		Status:  "Pending",
	})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryListNoMatchYieldsEmptySlice(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectQuery("SELECT id, owner_id, kind, payload, created_at, updated_at FROM records").
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "kind", "payload", "created_at", "updated_at"}))

	records, err := repo.List(context.Background(), models.RecordFilter{OwnerID: "nobody"})
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryUpdatePayloadMissingRow(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectExec("UPDATE records SET payload").
		WillReturnResult(sqlmock.NewResult(0, 0))

	record := &models.Record{ID: "missing", Payload: []byte(`{}`)}
	err := repo.UpdatePayload(context.Background(), record)
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryUpdatePayloadBumpsUpdatedAt(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectExec("UPDATE records SET payload").
		WillReturnResult(sqlmock.NewResult(0, 1))

	created := time.Now().UTC().Add(-time.Minute)
	record := &models.Record{ID: "r1", CreatedAt: created, UpdatedAt: created, Payload: []byte(`{}`)}
	require.NoError(t, repo.UpdatePayload(context.Background(), record))
	assert.True(t, record.UpdatedAt.After(created))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryExistsClassCode(t *testing.T) {
	db, mock, cleanup := newRecordRepoMock(t)
	defer cleanup()
	repo := NewRecordRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM records WHERE kind = 'class' AND payload->>'class_code' = $1 LIMIT 1")).
		WithArgs("teMA").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	exists, err := repo.ExistsClassCode(context.Background(), "teMA")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM records WHERE kind = 'class' AND payload->>'class_code' = $1 LIMIT 1")).
		WithArgs("none").
		WillReturnError(sql.ErrNoRows)

	exists, err = repo.ExistsClassCode(context.Background(), "none")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
