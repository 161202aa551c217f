package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// RecordKind discriminates the variants stored in the records collection.
type RecordKind string

const (
	KindClass             RecordKind = "class"
	KindAssignment        RecordKind = "assignment"
	KindLeaveApplication  RecordKind = "leave_application"
	KindParentInteraction RecordKind = "parent_interaction"
	KindTeacherNote       RecordKind = "teacher_note"
)

// Valid reports whether the kind belongs to the closed variant set.
func (k RecordKind) Valid() bool {
	switch k {
	case KindClass, KindAssignment, KindLeaveApplication, KindParentInteraction, KindTeacherNote:
		return true
	}
	return false
}

// Sequenced reports whether records of this kind form an ordered per-owner
// sequence that callers append to.
func (k RecordKind) Sequenced() bool {
	switch k {
	case KindLeaveApplication, KindParentInteraction, KindTeacherNote:
		return true
	}
	return false
}

// Leave application statuses.
const (
	LeaveStatusPending  = "Pending"
	LeaveStatusApproved = "Approved"
	LeaveStatusRejected = "Rejected"
)

// Record is the common envelope shared by every variant. The payload column
// holds exactly one variant body, selected by Kind.
type Record struct {
	ID        string         `db:"id" json:"id"`
	OwnerID   string         `db:"owner_id" json:"owner_id"`
	Kind      RecordKind     `db:"kind" json:"kind"`
	Payload   types.JSONText `db:"payload" json:"payload"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// ClassPayload is the body of a class record.
type ClassPayload struct {
	ClassName string   `json:"class_name" validate:"required"`
	Section   string   `json:"section" validate:"required"`
	ClassCode string   `json:"class_code"`
	Students  []string `json:"students"`
}

// AssignmentPayload is the body of an assignment record.
type AssignmentPayload struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date" validate:"required"`
	ClassID     string    `json:"class_id" validate:"required"`
}

// LeavePayload is the body of a leave application record.
type LeavePayload struct {
	StartDate   time.Time `json:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" validate:"required"`
	Reason      string    `json:"reason" validate:"required"`
	Status      string    `json:"status" validate:"omitempty,oneof=Pending Approved Rejected"`
	AppliedDate time.Time `json:"applied_date"`
}

// ParentInteractionPayload is the body of a parent interaction record.
type ParentInteractionPayload struct {
	StudentID       string    `json:"student_id" validate:"required"`
	InteractionType string    `json:"interaction_type" validate:"required,oneof=Email Phone Meeting Message"`
	Content         string    `json:"content" validate:"required"`
	Date            time.Time `json:"date"`
}

// TeacherNotePayload is the body of a teacher note record.
type TeacherNotePayload struct {
	StudentID string    `json:"student_id" validate:"required"`
	NoteType  string    `json:"note_type" validate:"required,oneof=Behavioral Academic Personal"`
	Content   string    `json:"content" validate:"required"`
	Date      time.Time `json:"date"`
}

// DecodePayload unmarshals the envelope payload into its variant struct.
// The switch is exhaustive over RecordKind.
func (r *Record) DecodePayload() (interface{}, error) {
	var (
		out interface{}
		err error
	)
	switch r.Kind {
	case KindClass:
		v := &ClassPayload{}
		err = json.Unmarshal(r.Payload, v)
		out = v
	case KindAssignment:
		v := &AssignmentPayload{}
		err = json.Unmarshal(r.Payload, v)
		out = v
	case KindLeaveApplication:
		v := &LeavePayload{}
		err = json.Unmarshal(r.Payload, v)
		out = v
	case KindParentInteraction:
		v := &ParentInteractionPayload{}
		err = json.Unmarshal(r.Payload, v)
		out = v
	case KindTeacherNote:
		v := &TeacherNotePayload{}
		err = json.Unmarshal(r.Payload, v)
		out = v
	default:
		return nil, fmt.Errorf("unknown record kind %q", r.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", r.Kind, err)
	}
	return out, nil
}

// RecordFilter captures filtering options for querying records.
type RecordFilter struct {
	OwnerID string
	Kind    RecordKind
	Status  string
}
