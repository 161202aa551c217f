package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edudesk/school-records-api/internal/models"
	appErrors "github.com/edudesk/school-records-api/pkg/errors"
)

// MeetingRepository manages persistence for meetings. The meeting_id column
// carries a unique constraint; it is the only defence against concurrent
// callers minting the same identifier.
type MeetingRepository struct {
	db *sqlx.DB
}

// NewMeetingRepository constructs a MeetingRepository.
func NewMeetingRepository(db *sqlx.DB) *MeetingRepository {
	return &MeetingRepository{db: db}
}

// Create inserts a new meeting. A unique violation on meeting_id surfaces as
// a duplicate-key error so the caller can regenerate and retry.
func (r *MeetingRepository) Create(ctx context.Context, meeting *models.Meeting) error {
	if meeting.ID == "" {
		meeting.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if meeting.CreatedAt.IsZero() {
		meeting.CreatedAt = now
	}
	meeting.UpdatedAt = meeting.CreatedAt

	const query = `INSERT INTO meetings (id, school_id, meeting_id, title, description, date, start_time, end_time, location, participant_type, status, agenda, remarks, created_by, created_at, updated_at)
		VALUES (:id, :school_id, :meeting_id, :title, :description, :date, :start_time, :end_time, :location, :participant_type, :status, :agenda, :remarks, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, meeting); err != nil {
		if isUniqueViolation(err) {
			return appErrors.Wrap(err, appErrors.ErrDuplicateKey.Code, appErrors.ErrDuplicateKey.Status, "meeting id already exists")
		}
		return fmt.Errorf("create meeting: %w", err)
	}
	return nil
}

// FindByID fetches a meeting by its row id.
func (r *MeetingRepository) FindByID(ctx context.Context, id string) (*models.Meeting, error) {
	const query = `SELECT id, school_id, meeting_id, title, description, date, start_time, end_time, location, participant_type, status, agenda, remarks, created_by, created_at, updated_at FROM meetings WHERE id = $1`
	var meeting models.Meeting
	if err := r.db.GetContext(ctx, &meeting, query, id); err != nil {
		return nil, err
	}
	return &meeting, nil
}

// FindByMeetingID fetches a meeting by its human-readable identifier.
func (r *MeetingRepository) FindByMeetingID(ctx context.Context, meetingID string) (*models.Meeting, error) {
	const query = `SELECT id, school_id, meeting_id, title, description, date, start_time, end_time, location, participant_type, status, agenda, remarks, created_by, created_at, updated_at FROM meetings WHERE meeting_id = $1`
	var meeting models.Meeting
	if err := r.db.GetContext(ctx, &meeting, query, meetingID); err != nil {
		return nil, err
	}
	return &meeting, nil
}

// List returns meetings matching the filter, newest first.
func (r *MeetingRepository) List(ctx context.Context, filter models.MeetingFilter) ([]models.Meeting, error) {
	base := "SELECT id, school_id, meeting_id, title, description, date, start_time, end_time, location, participant_type, status, agenda, remarks, created_by, created_at, updated_at FROM meetings WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.SchoolID != "" {
		conditions = append(conditions, fmt.Sprintf("school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	query := base
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date DESC, meeting_id DESC"

	meetings := []models.Meeting{}
	if err := r.db.SelectContext(ctx, &meetings, query, args...); err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	return meetings, nil
}

// LastMeetingID returns the lexicographically highest meeting_id starting
// with the given prefix, or the empty string when none exists. Because the
// ordinal is zero-padded, string order matches numeric order within one
// (school, day) bucket.
func (r *MeetingRepository) LastMeetingID(ctx context.Context, prefix string) (string, error) {
	const query = `SELECT meeting_id FROM meetings WHERE meeting_id LIKE $1 || '%' ORDER BY meeting_id DESC LIMIT 1`
	var meetingID string
	if err := r.db.GetContext(ctx, &meetingID, query, prefix); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("last meeting id: %w", err)
	}
	return meetingID, nil
}

// UpdateStatus transitions a meeting's status and optionally its remarks.
func (r *MeetingRepository) UpdateStatus(ctx context.Context, id, status string, remarks *string) error {
	const query = `UPDATE meetings SET status = $2, remarks = COALESCE($3, remarks), updated_at = $4 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status, remarks, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update meeting status: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
