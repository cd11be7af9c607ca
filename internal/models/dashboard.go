package models

// RequestStatusCounts aggregates requests per workflow state.
type RequestStatusCounts struct {
	Pending     int `db:"pending" json:"pending"`
	UnderReview int `db:"under_review" json:"under_review"`
	Assigned    int `db:"assigned" json:"assigned"`
	Completed   int `db:"completed" json:"completed"`
	Cancelled   int `db:"cancelled" json:"cancelled"`
}

// CoordinatorDashboard is the coordinator landing-page summary.
type CoordinatorDashboard struct {
	Requests       RequestStatusCounts `json:"requests"`
	TeacherCount   int                 `json:"teacher_count"`
	ParentCount    int                 `json:"parent_count"`
	RecentRequests []CourseRequest     `json:"recent_requests"`
}

// AdminDashboard is the admin landing-page summary.
type AdminDashboard struct {
	UsersByRole  map[UserRole]int `json:"users_by_role"`
	TotalUsers   int              `json:"total_users"`
	TotalCourses int              `json:"total_courses"`
}
