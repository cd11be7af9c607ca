package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulink/tutoring-api/internal/models"
)

type mockUserStats struct {
	counts map[models.UserRole]int
	calls  int
}

func (m *mockUserStats) CountByRole(ctx context.Context) (map[models.UserRole]int, error) {
	m.calls++
	return m.counts, nil
}

func TestDashboardServiceCoordinator(t *testing.T) {
	requests := &mockRequestRepo{requests: map[string]models.CourseRequest{
		"req-1": {ID: "req-1", Status: models.RequestStatusPending},
	}}
	users := &mockUserStats{counts: map[models.UserRole]int{
		models.RoleTeacher: 12,
		models.RoleParent:  40,
	}}
	courses := &mockCourseRepo{}
	cache := &mockCache{}
	svc := NewDashboardService(requests, users, courses, cache, time.Minute, nil)

	dashboard, err := svc.Coordinator(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, dashboard.TeacherCount)
	assert.Equal(t, 40, dashboard.ParentCount)
	assert.Len(t, dashboard.RecentRequests, 1)

	// Second call is served from the cache.
	_, err = svc.Coordinator(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, users.calls)
}

func TestDashboardServiceAdmin(t *testing.T) {
	users := &mockUserStats{counts: map[models.UserRole]int{
		models.RoleTeacher: 3,
		models.RoleParent:  5,
		models.RoleAdmin:   1,
	}}
	courses := &mockCourseRepo{courses: map[string]models.Course{
		"c1": {ID: "c1"},
		"c2": {ID: "c2"},
	}}
	svc := NewDashboardService(&mockRequestRepo{}, users, courses, nil, 0, nil)

	dashboard, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, dashboard.TotalUsers)
	assert.Equal(t, 2, dashboard.TotalCourses)
	assert.Equal(t, 3, dashboard.UsersByRole[models.RoleTeacher])
}
