package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edudesk/school-records-api/internal/models"
	appErrors "github.com/edudesk/school-records-api/pkg/errors"
)

type mockRecordRepo struct {
	records []*models.Record
	codes   map[string]bool
}

func newMockRecordRepo() *mockRecordRepo {
	return &mockRecordRepo{codes: map[string]bool{}}
}

func (m *mockRecordRepo) Create(ctx context.Context, record *models.Record) error {
	record.ID = fmt.Sprintf("r%d", len(m.records)+1)
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	cp := *record
	m.records = append(m.records, &cp)
	return nil
}

func (m *mockRecordRepo) FindByID(ctx context.Context, id string) (*models.Record, error) {
	for _, record := range m.records {
		if record.ID == id {
			cp := *record
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockRecordRepo) List(ctx context.Context, filter models.RecordFilter) ([]models.Record, error) {
	var result []models.Record
	for _, record := range m.records {
		if filter.OwnerID != "" && record.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Kind != "" && record.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" {
			var body map[string]interface{}
			if err := json.Unmarshal(record.Payload, &body); err != nil {
				return nil, err
			}
			if body["status"] != filter.Status {
				continue
			}
		}
		result = append(result, *record)
	}
	return result, nil
}

func (m *mockRecordRepo) UpdatePayload(ctx context.Context, record *models.Record) error {
	for _, stored := range m.records {
		if stored.ID == record.ID {
			stored.Payload = record.Payload
			stored.UpdatedAt = time.Now().UTC()
			record.UpdatedAt = stored.UpdatedAt
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *mockRecordRepo) ExistsClassCode(ctx context.Context, code string) (bool, error) {
	return m.codes[code], nil
}

type mockRecordCache struct {
	store       map[string][]byte
	invalidated []string
}

func newMockRecordCache() *mockRecordCache {
	return &mockRecordCache{store: map[string][]byte{}}
}

func (m *mockRecordCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, ok := m.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (m *mockRecordCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.store[key] = data
	return nil
}

func (m *mockRecordCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.invalidated = append(m.invalidated, pattern)
	m.store = map[string][]byte{}
	return nil
}

func newRecordServiceForTest(repo *mockRecordRepo, cache *mockRecordCache) *RecordService {
	if cache == nil {
		return NewRecordService(repo, nil, time.Minute, validator.New(), zap.NewNop())
	}
	return NewRecordService(repo, cache, time.Minute, validator.New(), zap.NewNop())
}

func leaveBody(start, end time.Time) json.RawMessage {
	body, _ := json.Marshal(map[string]interface{}{
		"start_date": start,
		"end_date":   end,
		"reason":     "medical",
	})
	return body
}

func TestRecordServiceCreateLeaveDefaults(t *testing.T) {
	repo := newMockRecordRepo()
	svc := newRecordServiceForTest(repo, nil)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	record, err := svc.Create(context.Background(), "teacher-1", models.KindLeaveApplication, leaveBody(start, start.AddDate(0, 0, 2)))
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, models.KindLeaveApplication, record.Kind)

	var leave models.LeavePayload
	require.NoError(t, json.Unmarshal(record.Payload, &leave))
	assert.Equal(t, models.LeaveStatusPending, leave.Status)
	assert.False(t, leave.AppliedDate.IsZero())
}

func TestRecordServiceCreateLeaveRejectsInvertedDates(t *testing.T) {
	repo := newMockRecordRepo()
	svc := newRecordServiceForTest(repo, nil)

	start := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	_, err := svc.Create(context.Background(), "teacher-1", models.KindLeaveApplication, leaveBody(start, start.AddDate(0, 0, -1)))
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))
	assert.Empty(t, repo.records)
}

func TestRecordServiceCreateUnknownKind(t *testing.T) {
	svc := newRecordServiceForTest(newMockRecordRepo(), nil)

	_, err := svc.Create(context.Background(), "teacher-1", "homework", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))
}

func TestRecordServiceCreateClassDerivesCode(t *testing.T) {
	repo := newMockRecordRepo()
	svc := newRecordServiceForTest(repo, nil)

	record, err := svc.Create(context.Background(), "teacher-1", models.KindClass, json.RawMessage(`{"class_name":"Math","section":"A"}`))
	require.NoError(t, err)

	var class models.ClassPayload
	require.NoError(t, json.Unmarshal(record.Payload, &class))
	assert.Equal(t, "teMA", class.ClassCode)
	assert.NotNil(t, class.Students)
	assert.Empty(t, class.Students)
}

func TestRecordServiceCreateClassDuplicateCode(t *testing.T) {
	repo := newMockRecordRepo()
	repo.codes["teMA"] = true
	svc := newRecordServiceForTest(repo, nil)

	_, err := svc.Create(context.Background(), "teacher-1", models.KindClass, json.RawMessage(`{"class_name":"Math","section":"A"}`))
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrConflict.Code))
}

func TestRecordServiceCreateAssignmentMissingTitle(t *testing.T) {
	svc := newRecordServiceForTest(newMockRecordRepo(), nil)

	_, err := svc.Create(context.Background(), "teacher-1", models.KindAssignment, json.RawMessage(`{"class_id":"c1","due_date":"2024-03-01T00:00:00Z"}`))
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))
}

func TestRecordServiceGetNotFound(t *testing.T) {
	svc := newRecordServiceForTest(newMockRecordRepo(), nil)

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrNotFound.Code))
}

func TestRecordServiceQueryEmpty(t *testing.T) {
	svc := newRecordServiceForTest(newMockRecordRepo(), nil)

	records, err := svc.Query(context.Background(), models.RecordFilter{OwnerID: "teacher-1"})
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestRecordServiceQueryFiltersByStatus(t *testing.T) {
	repo := newMockRecordRepo()
	svc := newRecordServiceForTest(repo, nil)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	leave, err := svc.Create(context.Background(), "teacher-1", models.KindLeaveApplication, leaveBody(start, start))
	require.NoError(t, err)
	_, err = svc.SetLeaveStatus(context.Background(), leave.ID, models.LeaveStatusApproved)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "teacher-1", models.KindLeaveApplication, leaveBody(start, start))
	require.NoError(t, err)

	records, err := svc.Query(context.Background(), models.RecordFilter{
		OwnerID: "teacher-1",
		Kind:    models.KindLeaveApplication,
		Status:  models.LeaveStatusApproved,
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, leave.ID, records[0].ID)
}

func TestRecordServiceAppendReturnsFullSequence(t *testing.T) {
	repo := newMockRecordRepo()
	svc := newRecordServiceForTest(repo, nil)

	note := json.RawMessage(`{"student_id":"s1","note_type":"Academic","content":"doing well"}`)
	first, err := svc.Append(context.Background(), "teacher-1", models.KindTeacherNote, note)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.Append(context.Background(), "teacher-1", models.KindTeacherNote, note)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.True(t, !second[1].CreatedAt.Before(second[0].CreatedAt))
}

func TestRecordServiceAppendRejectsNonSequenceKind(t *testing.T) {
	svc := newRecordServiceForTest(newMockRecordRepo(), nil)

	_, err := svc.Append(context.Background(), "teacher-1", models.KindClass, json.RawMessage(`{"class_name":"Math","section":"A"}`))
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))
}

func TestRecordServiceSetLeaveStatus(t *testing.T) {
	repo := newMockRecordRepo()
	svc := newRecordServiceForTest(repo, nil)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	record, err := svc.Create(context.Background(), "teacher-1", models.KindLeaveApplication, leaveBody(start, start))
	require.NoError(t, err)

	updated, err := svc.SetLeaveStatus(context.Background(), record.ID, models.LeaveStatusApproved)
	require.NoError(t, err)

	var leave models.LeavePayload
	require.NoError(t, json.Unmarshal(updated.Payload, &leave))
	assert.Equal(t, models.LeaveStatusApproved, leave.Status)
	assert.True(t, updated.UpdatedAt.After(record.CreatedAt))
}

func TestRecordServiceSetLeaveStatusRejectsUnknown(t *testing.T) {
	svc := newRecordServiceForTest(newMockRecordRepo(), nil)

	_, err := svc.SetLeaveStatus(context.Background(), "r1", "Maybe")
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))
}

func TestRecordServiceSetLeaveStatusWrongKind(t *testing.T) {
	repo := newMockRecordRepo()
	svc := newRecordServiceForTest(repo, nil)

	record, err := svc.Create(context.Background(), "teacher-1", models.KindClass, json.RawMessage(`{"class_name":"Math","section":"A"}`))
	require.NoError(t, err)

	_, err = svc.SetLeaveStatus(context.Background(), record.ID, models.LeaveStatusApproved)
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))
}

func TestRecordServiceEnrollStudentPreservesOrder(t *testing.T) {
	repo := newMockRecordRepo()
	svc := newRecordServiceForTest(repo, nil)

	record, err := svc.Create(context.Background(), "teacher-1", models.KindClass, json.RawMessage(`{"class_name":"Math","section":"A"}`))
	require.NoError(t, err)

	for _, student := range []string{"s1", "s2", "s3"} {
		record, err = svc.EnrollStudent(context.Background(), record.ID, student)
		require.NoError(t, err)
	}

	var class models.ClassPayload
	require.NoError(t, json.Unmarshal(record.Payload, &class))
	assert.Equal(t, []string{"s1", "s2", "s3"}, class.Students)
}

func TestRecordServiceEnrollStudentDuplicate(t *testing.T) {
	repo := newMockRecordRepo()
	svc := newRecordServiceForTest(repo, nil)

	record, err := svc.Create(context.Background(), "teacher-1", models.KindClass, json.RawMessage(`{"class_name":"Math","section":"A"}`))
	require.NoError(t, err)

	_, err = svc.EnrollStudent(context.Background(), record.ID, "s1")
	require.NoError(t, err)
	_, err = svc.EnrollStudent(context.Background(), record.ID, "s1")
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrConflict.Code))
}

func TestRecordServiceQueryUsesCache(t *testing.T) {
	repo := newMockRecordRepo()
	cache := newMockRecordCache()
	svc := newRecordServiceForTest(repo, cache)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Create(context.Background(), "teacher-1", models.KindLeaveApplication, leaveBody(start, start))
	require.NoError(t, err)

	filter := models.RecordFilter{OwnerID: "teacher-1", Kind: models.KindLeaveApplication}
	first, err := svc.Query(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Bypass the service so the repo and cache diverge; a second query must be
	// served from the cache.
	repo.records = nil
	second, err := svc.Query(context.Background(), filter)
	require.NoError(t, err)
	assert.Len(t, second, 1)
}

func TestRecordServiceCreateInvalidatesCache(t *testing.T) {
	repo := newMockRecordRepo()
	cache := newMockRecordCache()
	svc := newRecordServiceForTest(repo, cache)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	filter := models.RecordFilter{OwnerID: "teacher-1", Kind: models.KindLeaveApplication}
	_, err := svc.Query(context.Background(), filter)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), "teacher-1", models.KindLeaveApplication, leaveBody(start, start))
	require.NoError(t, err)
	assert.Contains(t, cache.invalidated, "records:teacher-1:*")

	records, err := svc.Query(context.Background(), filter)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
