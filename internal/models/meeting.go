package models

import "time"

// Meeting participant types.
const (
	ParticipantParents      = "Parents"
	ParticipantTeachers     = "Teachers"
	ParticipantSchool       = "School"
	ParticipantDistrictHead = "DistrictHead"
)

// Meeting statuses.
const (
	MeetingStatusScheduled = "Scheduled"
	MeetingStatusPending   = "Pending"
	MeetingStatusCompleted = "Completed"
	MeetingStatusCancelled = "Cancelled"
)

// Meeting represents a scheduled school meeting. MeetingID carries the
// human-readable identifier (e.g. SCH-MTG-20240115-001) and is unique
// across the table.
type Meeting struct {
	ID              string    `db:"id" json:"id"`
	SchoolID        string    `db:"school_id" json:"school_id"`
	MeetingID       string    `db:"meeting_id" json:"meeting_id"`
	Title           string    `db:"title" json:"title"`
	Description     string    `db:"description" json:"description"`
	Date            time.Time `db:"date" json:"date"`
	StartTime       string    `db:"start_time" json:"start_time"`
	EndTime         string    `db:"end_time" json:"end_time"`
	Location        string    `db:"location" json:"location"`
	ParticipantType string    `db:"participant_type" json:"participant_type"`
	Status          string    `db:"status" json:"status"`
	Agenda          *string   `db:"agenda" json:"agenda,omitempty"`
	Remarks         *string   `db:"remarks" json:"remarks,omitempty"`
	CreatedBy       string    `db:"created_by" json:"created_by"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// MeetingFilter captures filtering options for listing meetings.
type MeetingFilter struct {
	SchoolID string
	Status   string
}
