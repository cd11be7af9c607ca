package models

import "time"

// AuditAction constants represent workflow mutations to be logged.
const (
	AuditActionRequestCreate     = "REQUEST_CREATE"
	AuditActionRequestCancel     = "REQUEST_CANCEL"
	AuditActionRequestComplete   = "REQUEST_COMPLETE"
	AuditActionApplicationSubmit = "APPLICATION_SUBMIT"
	AuditActionApplicationAccept = "APPLICATION_ACCEPT"
	AuditActionCourseStatusSet   = "COURSE_STATUS_SET"
	AuditActionCourseRate        = "COURSE_RATE"
	AuditActionReportCreate      = "REPORT_CREATE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
