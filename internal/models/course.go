package models

import "time"

// CourseStatus tracks the scheduled engagement lifecycle.
type CourseStatus string

const (
	CourseStatusPending    CourseStatus = "pending"
	CourseStatusScheduled  CourseStatus = "scheduled"
	CourseStatusInProgress CourseStatus = "inProgress"
	CourseStatusCompleted  CourseStatus = "completed"
	CourseStatusCancelled  CourseStatus = "cancelled"
)

// CourseDuration is the fixed length of a scheduled session.
const CourseDuration = 60 * time.Minute

// Course is created exactly once, when a parent accepts an application.
// Subjects and level are a snapshot of the originating request at acceptance
// time; later edits to the request are deliberately not propagated.
type Course struct {
	ID               string       `db:"id" json:"id"`
	RequestID        string       `db:"request_id" json:"request_id"`
	TeacherID        string       `db:"teacher_id" json:"teacher_id"`
	TeacherName      string       `db:"teacher_name" json:"teacher_name"`
	StudentID        string       `db:"student_id" json:"student_id"`
	Subjects         SubjectList  `db:"subjects" json:"subjects"`
	Level            string       `db:"level" json:"level"`
	Message          string       `db:"message" json:"message"`
	ProposedDateTime time.Time    `db:"proposed_datetime" json:"proposed_datetime"`
	EndDateTime      time.Time    `db:"end_datetime" json:"end_datetime"`
	Status           CourseStatus `db:"status" json:"status"`
	MeetingLink      string       `db:"meeting_link" json:"meeting_link"`
	Rating           *int         `db:"rating" json:"rating,omitempty"`
	CreatedAt        time.Time    `db:"created_at" json:"created_at"`
}

// CourseFilter captures filtering criteria for listing courses.
type CourseFilter struct {
	TeacherID string
	StudentID string
	Status    CourseStatus
	Page      int
	PageSize  int
}
