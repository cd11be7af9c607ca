package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// RequestStatus drives visibility and the legal workflow transitions of a
// course request.
type RequestStatus string

const (
	RequestStatusPending     RequestStatus = "pending"
	RequestStatusUnderReview RequestStatus = "under_review"
	RequestStatusAssigned    RequestStatus = "assigned"
	RequestStatusCompleted   RequestStatus = "completed"
	RequestStatusCancelled   RequestStatus = "cancelled"
)

// Terminal reports whether no further workflow transition is allowed.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusCompleted || s == RequestStatusCancelled
}

// Open reports whether teachers may still apply.
func (s RequestStatus) Open() bool {
	return s == RequestStatusPending || s == RequestStatusUnderReview
}

// Valid reports whether the value is a known status.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusUnderReview, RequestStatusAssigned, RequestStatusCompleted, RequestStatusCancelled:
		return true
	}
	return false
}

// RequestType distinguishes individual from group tutoring.
type RequestType string

const (
	RequestTypeIndividual RequestType = "individual"
	RequestTypeGroup      RequestType = "group"
)

// TeachingLanguage enumerates supported course languages.
type TeachingLanguage string

const (
	TeachingLanguageFrench TeachingLanguage = "french"
	TeachingLanguageArabic TeachingLanguage = "arabic"
	TeachingLanguageBoth   TeachingLanguage = "both"
)

// TimeSlot is the daily availability band declared by the parent.
type TimeSlot string

const (
	TimeSlotMorning   TimeSlot = "8-14"
	TimeSlotAfternoon TimeSlot = "14-20"
	TimeSlotNight     TimeSlot = "20-8"
)

// Subject describes one requested discipline. Insertion order is display
// order, so subjects persist as an ordered JSONB list.
type Subject struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	IsScientific bool   `json:"isScientific,omitempty"`
}

// SubjectList persists an ordered subject list as JSONB.
type SubjectList []Subject

// Value marshals the subject list for persistence.
func (l SubjectList) Value() (driver.Value, error) {
	if l == nil {
		l = SubjectList{}
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshal subjects: %w", err)
	}
	return data, nil
}

// Scan unmarshals a JSONB payload into the subject list.
func (l *SubjectList) Scan(value interface{}) error {
	return scanJSON(value, l, "SubjectList")
}

// DateList persists an ordered list of candidate date-times as JSONB.
type DateList []time.Time

// Value marshals the date list for persistence.
func (l DateList) Value() (driver.Value, error) {
	if l == nil {
		l = DateList{}
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshal dates: %w", err)
	}
	return data, nil
}

// Scan unmarshals a JSONB payload into the date list.
func (l *DateList) Scan(value interface{}) error {
	return scanJSON(value, l, "DateList")
}

// ContainsDay reports whether any entry falls on the same calendar day as t.
// Comparison is date-only; time of day within the entry is not constrained.
func (l DateList) ContainsDay(t time.Time) bool {
	y, m, d := t.UTC().Date()
	for _, candidate := range l {
		cy, cm, cd := candidate.UTC().Date()
		if cy == y && cm == m && cd == d {
			return true
		}
	}
	return false
}

// CourseRequest is a parent's posted need for tutoring.
type CourseRequest struct {
	ID                  string           `db:"id" json:"id"`
	ParentID            string           `db:"parent_id" json:"parent_id"`
	ParentName          string           `db:"parent_name" json:"parent_name,omitempty"`
	ParentPhone         string           `db:"parent_phone" json:"parent_phone,omitempty"`
	ParentPhoneCountry  string           `db:"parent_phone_country" json:"parent_phone_country,omitempty"`
	Subjects            SubjectList      `db:"subjects" json:"subjects"`
	Level               string           `db:"level" json:"level"`
	Description         string           `db:"description" json:"description"`
	TeachingLanguage    TeachingLanguage `db:"teaching_language" json:"teaching_language"`
	TimeSlot            TimeSlot         `db:"time_slot" json:"time_slot"`
	HoursPerWeek        int              `db:"hours_per_week" json:"hours_per_week"`
	Type                RequestType      `db:"type" json:"type"`
	AvailableDates      DateList         `db:"available_dates" json:"available_dates"`
	PreferredDate       *time.Time       `db:"preferred_date" json:"preferred_date,omitempty"`
	Status              RequestStatus    `db:"status" json:"status"`
	AppliedTeachers     pq.StringArray   `db:"applied_teachers" json:"applied_teachers"`
	AssignedTeacherID   *string          `db:"assigned_teacher_id" json:"assigned_teacher_id,omitempty"`
	AssignedTeacherName *string          `db:"assigned_teacher_name" json:"assigned_teacher_name,omitempty"`
	CreatedAt           time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time        `db:"updated_at" json:"updated_at"`
}

// HasTeacherApplied is a pure membership test on the applied-teachers set.
func (r *CourseRequest) HasTeacherApplied(teacherID string) bool {
	for _, id := range r.AppliedTeachers {
		if id == teacherID {
			return true
		}
	}
	return false
}

// RequestFilter captures filtering criteria for listing requests.
type RequestFilter struct {
	ParentID  string
	Statuses  []RequestStatus
	Page      int
	PageSize  int
	SortOrder string
}

func scanJSON(value interface{}, dest interface{}, name string) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for %s", value, name)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal %s: %w", name, err)
	}
	return nil
}
