package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/edudesk/school-records-api/internal/models"
	appErrors "github.com/edudesk/school-records-api/pkg/errors"
)

type recordRepository interface {
	Create(ctx context.Context, record *models.Record) error
	FindByID(ctx context.Context, id string) (*models.Record, error)
	List(ctx context.Context, filter models.RecordFilter) ([]models.Record, error)
	UpdatePayload(ctx context.Context, record *models.Record) error
	ExistsClassCode(ctx context.Context, code string) (bool, error)
}

type recordCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// RecordService orchestrates operations over the polymorphic record store.
type RecordService struct {
	repo      recordRepository
	cache     recordCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewRecordService constructs a RecordService. The cache is optional.
func NewRecordService(repo recordRepository, cache recordCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *RecordService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordService{
		repo:      repo,
		cache:     cache,
		cacheTTL:  cacheTTL,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Create validates the variant payload and persists a new record. Validation
// failures never reach storage.
func (s *RecordService) Create(ctx context.Context, ownerID string, kind models.RecordKind, payload json.RawMessage) (*models.Record, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "owner id is required")
	}
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown record kind %q", kind))
	}

	canonical, err := s.buildPayload(ctx, ownerID, kind, payload)
	if err != nil {
		return nil, err
	}

	record := &models.Record{
		OwnerID: ownerID,
		Kind:    kind,
		Payload: canonical,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		if appErrors.IsCode(err, appErrors.ErrDuplicateKey.Code) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to create record")
	}
	s.invalidateOwner(ctx, ownerID)
	return record, nil
}

// Get returns a record by id.
func (s *RecordService) Get(ctx context.Context, id string) (*models.Record, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load record")
	}
	return record, nil
}

// Query returns records matching the filter in insertion order. No match
// yields an empty slice. Results are cached per filter when a cache is wired.
func (s *RecordService) Query(ctx context.Context, filter models.RecordFilter) ([]models.Record, error) {
	key := recordCacheKey(filter)
	if s.cache != nil {
		var cached []models.Record
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to query records")
	}
	if records == nil {
		records = []models.Record{}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, records, s.cacheTTL); err != nil {
			s.logger.Warn("record cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return records, nil
}

// Append adds an item to the owner's ordered sequence of the given kind and
// returns the full updated sequence.
func (s *RecordService) Append(ctx context.Context, ownerID string, kind models.RecordKind, payload json.RawMessage) ([]models.Record, error) {
	if !kind.Sequenced() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("record kind %q is not appendable", kind))
	}
	if _, err := s.Create(ctx, ownerID, kind, payload); err != nil {
		return nil, err
	}
	return s.Query(ctx, models.RecordFilter{OwnerID: ownerID, Kind: kind})
}

// SetLeaveStatus transitions a leave application between its closed statuses.
func (s *RecordService) SetLeaveStatus(ctx context.Context, id, status string) (*models.Record, error) {
	switch status {
	case models.LeaveStatusPending, models.LeaveStatusApproved, models.LeaveStatusRejected:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid leave status %q", status))
	}

	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Kind != models.KindLeaveApplication {
		return nil, appErrors.Clone(appErrors.ErrValidation, "record is not a leave application")
	}

	var leave models.LeavePayload
	if err := json.Unmarshal(record.Payload, &leave); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode leave payload")
	}
	leave.Status = status

	if err := s.rewritePayload(ctx, record, leave); err != nil {
		return nil, err
	}
	return record, nil
}

// EnrollStudent appends a student to a class record's roster, preserving
// enrolment order.
func (s *RecordService) EnrollStudent(ctx context.Context, id, studentID string) (*models.Record, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}

	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Kind != models.KindClass {
		return nil, appErrors.Clone(appErrors.ErrValidation, "record is not a class")
	}

	var class models.ClassPayload
	if err := json.Unmarshal(record.Payload, &class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode class payload")
	}
	for _, existing := range class.Students {
		if existing == studentID {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled")
		}
	}
	class.Students = append(class.Students, studentID)

	if err := s.rewritePayload(ctx, record, class); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *RecordService) rewritePayload(ctx context.Context, record *models.Record, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode payload")
	}
	record.Payload = types.JSONText(data)

	if err := s.repo.UpdatePayload(ctx, record); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "record not found")
		}
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to update record")
	}
	s.invalidateOwner(ctx, record.OwnerID)
	return nil
}

// buildPayload decodes, validates and canonicalises a variant body. Defaults
// (leave status, applied/interaction dates) are applied here so stored
// payloads are always complete.
func (s *RecordService) buildPayload(ctx context.Context, ownerID string, kind models.RecordKind, payload json.RawMessage) (types.JSONText, error) {
	var body interface{}

	switch kind {
	case models.KindClass:
		var class models.ClassPayload
		if err := unmarshalStrict(payload, &class); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "malformed class payload")
		}
		class.ClassName = strings.TrimSpace(class.ClassName)
		class.Section = strings.TrimSpace(class.Section)
		if err := s.validator.Struct(class); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
		}
		if class.Students == nil {
			class.Students = []string{}
		}
		class.ClassCode = deriveClassCode(ownerID, class.ClassName, class.Section)
		exists, err := s.repo.ExistsClassCode(ctx, class.ClassCode)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to check class code")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "class with this code already exists")
		}
		body = class

	case models.KindAssignment:
		var assignment models.AssignmentPayload
		if err := unmarshalStrict(payload, &assignment); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "malformed assignment payload")
		}
		assignment.Title = strings.TrimSpace(assignment.Title)
		if err := s.validator.Struct(assignment); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
		}
		body = assignment

	case models.KindLeaveApplication:
		var leave models.LeavePayload
		if err := unmarshalStrict(payload, &leave); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "malformed leave payload")
		}
		leave.Reason = strings.TrimSpace(leave.Reason)
		if err := s.validator.Struct(leave); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid leave payload")
		}
		if leave.EndDate.Before(leave.StartDate) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "start date must not be after end date")
		}
		if leave.Status == "" {
			leave.Status = models.LeaveStatusPending
		}
		if leave.AppliedDate.IsZero() {
			leave.AppliedDate = s.now().UTC()
		}
		body = leave

	case models.KindParentInteraction:
		var interaction models.ParentInteractionPayload
		if err := unmarshalStrict(payload, &interaction); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "malformed interaction payload")
		}
		interaction.Content = strings.TrimSpace(interaction.Content)
		if err := s.validator.Struct(interaction); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid interaction payload")
		}
		if interaction.Date.IsZero() {
			interaction.Date = s.now().UTC()
		}
		body = interaction

	case models.KindTeacherNote:
		var note models.TeacherNotePayload
		if err := unmarshalStrict(payload, &note); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "malformed note payload")
		}
		note.Content = strings.TrimSpace(note.Content)
		if err := s.validator.Struct(note); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid note payload")
		}
		if note.Date.IsZero() {
			note.Date = s.now().UTC()
		}
		body = note

	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown record kind %q", kind))
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode payload")
	}
	return types.JSONText(data), nil
}

func (s *RecordService) invalidateOwner(ctx context.Context, ownerID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "records:"+ownerID+":*"); err != nil {
		s.logger.Warn("record cache invalidation failed", zap.String("owner_id", ownerID), zap.Error(err))
	}
}

func recordCacheKey(filter models.RecordFilter) string {
	owner := filter.OwnerID
	if owner == "" {
		owner = "_"
	}
	return fmt.Sprintf("records:%s:%s:%s", owner, filter.Kind, filter.Status)
}

// deriveClassCode mirrors the legacy code scheme: two characters of the owner
// id, the class name initial and the section.
func deriveClassCode(ownerID, className, section string) string {
	owner := ownerID
	if len(owner) > 2 {
		owner = owner[:2]
	}
	name := className
	if len(name) > 1 {
		name = name[:1]
	}
	return owner + name + section
}

func unmarshalStrict(data json.RawMessage, dest interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("empty payload")
	}
	return json.Unmarshal(data, dest)
}
