package service

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edudesk/school-records-api/internal/models"
	appErrors "github.com/edudesk/school-records-api/pkg/errors"
)

const (
	meetingIDInfix    = "MTG"
	meetingDateLayout = "20060102"
)

type meetingRepository interface {
	Create(ctx context.Context, meeting *models.Meeting) error
	FindByID(ctx context.Context, id string) (*models.Meeting, error)
	FindByMeetingID(ctx context.Context, meetingID string) (*models.Meeting, error)
	List(ctx context.Context, filter models.MeetingFilter) ([]models.Meeting, error)
	LastMeetingID(ctx context.Context, prefix string) (string, error)
	UpdateStatus(ctx context.Context, id, status string, remarks *string) error
}

// ScheduleMeetingRequest represents payload for scheduling meetings.
type ScheduleMeetingRequest struct {
	Title           string    `json:"title" validate:"required"`
	Description     string    `json:"description" validate:"required"`
	Date            time.Time `json:"date" validate:"required"`
	StartTime       string    `json:"start_time" validate:"required"`
	EndTime         string    `json:"end_time" validate:"required"`
	Location        string    `json:"location" validate:"required"`
	ParticipantType string    `json:"participant_type" validate:"required,oneof=Parents Teachers School DistrictHead"`
	Agenda          *string   `json:"agenda"`
	Remarks         *string   `json:"remarks"`
}

// MeetingService mints meeting identifiers and orchestrates meeting
// persistence. Identifier generation is read-max-then-increment and is not
// atomic with the insert: the unique constraint on meeting_id is the only
// backstop, so Schedule retries with a fresh identifier on collision.
type MeetingService struct {
	repo      meetingRepository
	validator *validator.Validate
	logger    *zap.Logger
	attempts  int
	now       func() time.Time
}

// NewMeetingService constructs a MeetingService. attempts bounds the
// regenerate-and-retry cycles on duplicate meeting ids.
func NewMeetingService(repo meetingRepository, validate *validator.Validate, logger *zap.Logger, attempts int) *MeetingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if attempts < 1 {
		attempts = 1
	}
	return &MeetingService{
		repo:      repo,
		validator: validate,
		logger:    logger,
		attempts:  attempts,
		now:       time.Now,
	}
}

// NextMeetingID produces the next identifier in the (school, day) bucket:
// 3-char uppercased school prefix, the MTG infix, the UTC day stamp and a
// zero-padded ordinal one past the highest stored identifier. Absent
// concurrent writers the ordinals are gap-free; concurrent safety is
// delegated to the meeting_id unique constraint.
func (s *MeetingService) NextMeetingID(ctx context.Context, schoolID string, now time.Time) (string, error) {
	schoolID = strings.TrimSpace(schoolID)
	if schoolID == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "school id is required")
	}

	prefix := schoolID
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	prefix = strings.ToUpper(prefix)

	bucket := fmt.Sprintf("%s-%s-%s-", prefix, meetingIDInfix, now.UTC().Format(meetingDateLayout))

	last, err := s.repo.LastMeetingID(ctx, bucket)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to read last meeting id")
	}

	seq := 1
	if last != "" {
		suffix := last[strings.LastIndex(last, "-")+1:]
		n, err := strconv.Atoi(suffix)
		if err != nil {
			// A stored id with a non-numeric ordinal means the sequence
			// is corrupt; restarting at 1 could reissue a used ordinal.
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status,
				fmt.Sprintf("malformed meeting id %q in sequence", last))
		}
		seq = n + 1
	}

	return fmt.Sprintf("%s%03d", bucket, seq), nil
}

// Schedule validates the payload, mints an identifier and persists the
// meeting, regenerating on duplicate-key collisions up to the configured
// attempt count.
func (s *MeetingService) Schedule(ctx context.Context, schoolID, createdBy string, req ScheduleMeetingRequest) (*models.Meeting, error) {
	if strings.TrimSpace(schoolID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "school id is required")
	}
	if strings.TrimSpace(createdBy) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "creator id is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid meeting payload")
	}

	var lastErr error
	for attempt := 0; attempt < s.attempts; attempt++ {
		meetingID, err := s.NextMeetingID(ctx, schoolID, s.now())
		if err != nil {
			return nil, err
		}

		meeting := &models.Meeting{
			SchoolID:        schoolID,
			MeetingID:       meetingID,
			Title:           strings.TrimSpace(req.Title),
			Description:     strings.TrimSpace(req.Description),
			Date:            req.Date,
			StartTime:       req.StartTime,
			EndTime:         req.EndTime,
			Location:        strings.TrimSpace(req.Location),
			ParticipantType: req.ParticipantType,
			Status:          models.MeetingStatusScheduled,
			Agenda:          req.Agenda,
			Remarks:         req.Remarks,
			CreatedBy:       createdBy,
		}

		err = s.repo.Create(ctx, meeting)
		if err == nil {
			return meeting, nil
		}
		if appErrors.IsCode(err, appErrors.ErrDuplicateKey.Code) {
			s.logger.Warn("meeting id collision, regenerating",
				zap.String("meeting_id", meetingID),
				zap.Int("attempt", attempt+1))
			lastErr = err
			continue
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to create meeting")
	}
	return nil, lastErr
}

// Get returns a meeting by row id, or by its human-readable identifier when
// the caller passes one (they circulate outside the system).
func (s *MeetingService) Get(ctx context.Context, id string) (*models.Meeting, error) {
	var (
		meeting *models.Meeting
		err     error
	)
	if strings.Contains(id, "-"+meetingIDInfix+"-") {
		meeting, err = s.repo.FindByMeetingID(ctx, id)
	} else {
		meeting, err = s.repo.FindByID(ctx, id)
	}
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "meeting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load meeting")
	}
	return meeting, nil
}

// List returns meetings for a school, optionally filtered by status.
func (s *MeetingService) List(ctx context.Context, filter models.MeetingFilter) ([]models.Meeting, error) {
	meetings, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to list meetings")
	}
	if meetings == nil {
		meetings = []models.Meeting{}
	}
	return meetings, nil
}

// SetStatus transitions a meeting's status and optionally records remarks.
func (s *MeetingService) SetStatus(ctx context.Context, id, status string, remarks *string) error {
	switch status {
	case models.MeetingStatusScheduled, models.MeetingStatusPending, models.MeetingStatusCompleted, models.MeetingStatusCancelled:
	default:
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid meeting status %q", status))
	}

	if err := s.repo.UpdateStatus(ctx, id, status, remarks); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "meeting not found")
		}
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to update meeting status")
	}
	return nil
}
