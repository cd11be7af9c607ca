package models

import "time"

// ApplicationStatus tracks a teacher offer within a request's bidding phase.
// Acceptance of one application rejects its siblings.
type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "pending"
	ApplicationStatusAccepted ApplicationStatus = "accepted"
	ApplicationStatusRejected ApplicationStatus = "rejected"
)

// Application is a teacher's offer to fulfil a specific request.
type Application struct {
	ID               string            `db:"id" json:"id"`
	RequestID        string            `db:"request_id" json:"request_id"`
	TeacherID        string            `db:"teacher_id" json:"teacher_id"`
	TeacherName      string            `db:"teacher_name" json:"teacher_name"`
	StudentID        string            `db:"student_id" json:"student_id"`
	ProposedDateTime time.Time         `db:"proposed_datetime" json:"proposed_datetime"`
	Message          string            `db:"message" json:"message"`
	Status           ApplicationStatus `db:"status" json:"status"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updated_at"`
}
