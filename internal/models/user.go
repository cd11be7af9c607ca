package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleParent      UserRole = "PARENT"
	RoleTeacher     UserRole = "TEACHER"
	RoleCoordinator UserRole = "COORDINATOR"
	RoleAdmin       UserRole = "ADMIN"
)

// User is the profile read model mirrored from the identity provider.
// Credentials never live here; the IdP owns authentication.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	FullName     string    `db:"full_name" json:"full_name"`
	Phone        string    `db:"phone" json:"phone,omitempty"`
	PhoneCountry string    `db:"phone_country" json:"phone_country,omitempty"`
	Role         UserRole  `db:"role" json:"role"`
	Bio          string    `db:"bio" json:"bio,omitempty"`
	HourlyRate   string    `db:"hourly_rate" json:"hourly_rate,omitempty"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
