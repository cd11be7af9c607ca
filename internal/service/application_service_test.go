package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulink/tutoring-api/internal/models"
	"github.com/edulink/tutoring-api/internal/repository"
	appErrors "github.com/edulink/tutoring-api/pkg/errors"
)

type mockApplicationRepo struct {
	applications map[string]models.Application
	applied      map[string]bool
}

func (m *mockApplicationRepo) FindByID(ctx context.Context, id string) (*models.Application, error) {
	if a, ok := m.applications[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockApplicationRepo) ListByRequest(ctx context.Context, requestID string) ([]models.Application, error) {
	var out []models.Application
	for _, a := range m.applications {
		if a.RequestID == requestID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockApplicationRepo) ExistsForTeacher(ctx context.Context, requestID, teacherID string) (bool, error) {
	return m.applied[requestID+"/"+teacherID], nil
}

type mockWorkflowRepo struct {
	submitErr error
	acceptErr error
	submitted *models.Application
	accepted  *models.Application
	course    *models.Course
}

func (m *mockWorkflowRepo) SubmitApplication(ctx context.Context, application *models.Application) error {
	if m.submitErr != nil {
		return m.submitErr
	}
	if application.ID == "" {
		application.ID = "app-new"
	}
	m.submitted = application
	return nil
}

func (m *mockWorkflowRepo) AcceptApplication(ctx context.Context, application *models.Application, course *models.Course) error {
	if m.acceptErr != nil {
		return m.acceptErr
	}
	if course.ID == "" {
		course.ID = "course-new"
	}
	m.accepted = application
	m.course = course
	return nil
}

func teacherClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleTeacher}
}

func openRequest(id, parentID string, dates ...time.Time) models.CourseRequest {
	return models.CourseRequest{
		ID:             id,
		ParentID:       parentID,
		Subjects:       models.SubjectList{{ID: "math", Name: "Mathematics", IsScientific: true}},
		Level:          "bac-2",
		Status:         models.RequestStatusPending,
		AvailableDates: models.DateList(dates),
	}
}

func newApplicationService(requests *mockRequestRepo, applications *mockApplicationRepo, workflow *mockWorkflowRepo, profiles *mockProfileReader, cache *mockCache) *ApplicationService {
	var qc queueCache
	if cache != nil {
		qc = cache
	}
	return NewApplicationService(requests, applications, workflow, profiles, qc, "https://meet.jit.si", nil, nil)
}

func TestApplicationServiceSubmit(t *testing.T) {
	day := time.Now().Add(48 * time.Hour).UTC()
	requests := &mockRequestRepo{requests: map[string]models.CourseRequest{
		"req-1": openRequest("req-1", "parent-1", day),
	}}
	applications := &mockApplicationRepo{}
	workflow := &mockWorkflowRepo{}
	profiles := &mockProfileReader{users: map[string]*models.User{
		"teacher-1": {ID: "teacher-1", FullName: "Karim E"},
	}}
	cache := &mockCache{}
	svc := newApplicationService(requests, applications, workflow, profiles, cache)

	application, err := svc.Submit(context.Background(), teacherClaims("teacher-1"), "req-1", SubmitApplicationRequest{
		ProposedDateTime: day.Add(2 * time.Hour),
		Message:          "I can cover analysis and algebra.",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusPending, application.Status)
	assert.Equal(t, "Karim E", application.TeacherName)
	assert.Equal(t, "parent-1", application.StudentID)
	require.NotNil(t, workflow.submitted)
	assert.Contains(t, cache.deleted, "requests:open")
}

func TestApplicationServiceSubmitRejectsNonTeacher(t *testing.T) {
	svc := newApplicationService(&mockRequestRepo{}, &mockApplicationRepo{}, &mockWorkflowRepo{}, &mockProfileReader{}, nil)

	_, err := svc.Submit(context.Background(), parentClaims("parent-1"), "req-1", SubmitApplicationRequest{
		ProposedDateTime: time.Now().Add(time.Hour),
		Message:          "hello",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestApplicationServiceSubmitValidation(t *testing.T) {
	day := time.Now().Add(48 * time.Hour).UTC()
	requests := &mockRequestRepo{requests: map[string]models.CourseRequest{
		"req-1": openRequest("req-1", "parent-1", day),
	}}
	profiles := &mockProfileReader{users: map[string]*models.User{
		"teacher-1": {ID: "teacher-1", FullName: "Karim E"},
	}}
	svc := newApplicationService(requests, &mockApplicationRepo{}, &mockWorkflowRepo{}, profiles, nil)

	cases := []struct {
		name string
		req  SubmitApplicationRequest
	}{
		{"blank message", SubmitApplicationRequest{ProposedDateTime: day, Message: "   "}},
		{"past time", SubmitApplicationRequest{ProposedDateTime: time.Now().Add(-time.Hour), Message: "hi"}},
		{"day not offered", SubmitApplicationRequest{ProposedDateTime: day.Add(24 * time.Hour), Message: "hi"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), teacherClaims("teacher-1"), "req-1", tc.req)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestApplicationServiceSubmitAllowsAnyTimeOnOfferedDay(t *testing.T) {
	// The offered slot is date-granular: a proposal later the same UTC day
	// passes, the next day does not.
	day := time.Date(time.Now().Year()+1, 3, 10, 9, 0, 0, 0, time.UTC)
	requests := &mockRequestRepo{requests: map[string]models.CourseRequest{
		"req-1": openRequest("req-1", "parent-1", day),
	}}
	profiles := &mockProfileReader{users: map[string]*models.User{
		"teacher-1": {ID: "teacher-1", FullName: "Karim E"},
	}}
	svc := newApplicationService(requests, &mockApplicationRepo{}, &mockWorkflowRepo{}, profiles, nil)

	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	_, err := svc.Submit(context.Background(), teacherClaims("teacher-1"), "req-1", SubmitApplicationRequest{
		ProposedDateTime: midnight,
		Message:          "first thing that day",
	})
	require.NoError(t, err)

	sameDayEvening := time.Date(day.Year(), day.Month(), day.Day(), 23, 30, 0, 0, time.UTC)
	_, err = svc.Submit(context.Background(), teacherClaims("teacher-1"), "req-1", SubmitApplicationRequest{
		ProposedDateTime: sameDayEvening,
		Message:          "evening works",
	})
	require.NoError(t, err)

	nextDay := sameDayEvening.Add(time.Hour)
	_, err = svc.Submit(context.Background(), teacherClaims("teacher-1"), "req-1", SubmitApplicationRequest{
		ProposedDateTime: nextDay,
		Message:          "next day",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestApplicationServiceSubmitDuplicateConflicts(t *testing.T) {
	day := time.Now().Add(48 * time.Hour).UTC()
	requests := &mockRequestRepo{requests: map[string]models.CourseRequest{
		"req-1": openRequest("req-1", "parent-1", day),
	}}
	applications := &mockApplicationRepo{applied: map[string]bool{"req-1/teacher-1": true}}
	profiles := &mockProfileReader{users: map[string]*models.User{
		"teacher-1": {ID: "teacher-1", FullName: "Karim E"},
	}}
	svc := newApplicationService(requests, applications, &mockWorkflowRepo{}, profiles, nil)

	_, err := svc.Submit(context.Background(), teacherClaims("teacher-1"), "req-1", SubmitApplicationRequest{
		ProposedDateTime: day,
		Message:          "again",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestApplicationServiceSubmitRaceSurfacesAsConflict(t *testing.T) {
	// The pre-check passed but the unique index fired inside the
	// transaction. The caller still sees a conflict, not an internal error.
	day := time.Now().Add(48 * time.Hour).UTC()
	requests := &mockRequestRepo{requests: map[string]models.CourseRequest{
		"req-1": openRequest("req-1", "parent-1", day),
	}}
	workflow := &mockWorkflowRepo{submitErr: repository.ErrDuplicateApplication}
	profiles := &mockProfileReader{users: map[string]*models.User{
		"teacher-1": {ID: "teacher-1", FullName: "Karim E"},
	}}
	svc := newApplicationService(requests, &mockApplicationRepo{}, workflow, profiles, nil)

	_, err := svc.Submit(context.Background(), teacherClaims("teacher-1"), "req-1", SubmitApplicationRequest{
		ProposedDateTime: day,
		Message:          "race",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestApplicationServiceSubmitClosedRequestConflicts(t *testing.T) {
	day := time.Now().Add(48 * time.Hour).UTC()
	closed := openRequest("req-1", "parent-1", day)
	closed.Status = models.RequestStatusAssigned
	requests := &mockRequestRepo{requests: map[string]models.CourseRequest{"req-1": closed}}
	profiles := &mockProfileReader{users: map[string]*models.User{
		"teacher-1": {ID: "teacher-1", FullName: "Karim E"},
	}}
	svc := newApplicationService(requests, &mockApplicationRepo{}, &mockWorkflowRepo{}, profiles, nil)

	_, err := svc.Submit(context.Background(), teacherClaims("teacher-1"), "req-1", SubmitApplicationRequest{
		ProposedDateTime: day,
		Message:          "too late",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestApplicationServiceAccept(t *testing.T) {
	start := time.Date(time.Now().Year()+1, 5, 2, 18, 0, 0, 0, time.UTC)
	requests := &mockRequestRepo{requests: map[string]models.CourseRequest{
		"req-1": openRequest("req-1", "parent-1", start),
	}}
	applications := &mockApplicationRepo{applications: map[string]models.Application{
		"app-1": {
			ID:               "app-1",
			RequestID:        "req-1",
			TeacherID:        "teacher-1",
			TeacherName:      "Karim E",
			StudentID:        "parent-1",
			ProposedDateTime: start,
			Message:          "Analysis and algebra.",
			Status:           models.ApplicationStatusPending,
		},
	}}
	workflow := &mockWorkflowRepo{}
	cache := &mockCache{}
	svc := newApplicationService(requests, applications, workflow, &mockProfileReader{}, cache)

	course, err := svc.Accept(context.Background(), parentClaims("parent-1"), "req-1", "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.CourseStatusScheduled, course.Status)
	assert.Equal(t, "teacher-1", course.TeacherID)
	assert.Equal(t, "parent-1", course.StudentID)
	assert.Equal(t, start, course.ProposedDateTime)
	assert.Equal(t, start.Add(time.Hour), course.EndDateTime)
	assert.Equal(t, "https://meet.jit.si/req-1", course.MeetingLink)
	assert.Equal(t, "bac-2", course.Level)
	require.NotNil(t, workflow.course)
	assert.Contains(t, cache.deleted, "dashboard:coordinator")
}

func TestApplicationServiceAcceptForbiddenForOtherParent(t *testing.T) {
	requests := &mockRequestRepo{requests: map[string]models.CourseRequest{
		"req-1": openRequest("req-1", "parent-1"),
	}}
	svc := newApplicationService(requests, &mockApplicationRepo{}, &mockWorkflowRepo{}, &mockProfileReader{}, nil)

	_, err := svc.Accept(context.Background(), parentClaims("parent-2"), "req-1", "app-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestApplicationServiceAcceptRejectsForeignApplication(t *testing.T) {
	requests := &mockRequestRepo{requests: map[string]models.CourseRequest{
		"req-1": openRequest("req-1", "parent-1"),
	}}
	applications := &mockApplicationRepo{applications: map[string]models.Application{
		"app-1": {ID: "app-1", RequestID: "req-other", ProposedDateTime: time.Now().Add(time.Hour)},
	}}
	svc := newApplicationService(requests, applications, &mockWorkflowRepo{}, &mockProfileReader{}, nil)

	_, err := svc.Accept(context.Background(), parentClaims("parent-1"), "req-1", "app-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestApplicationServiceAcceptLosingRaceConflicts(t *testing.T) {
	start := time.Now().Add(72 * time.Hour).UTC()
	requests := &mockRequestRepo{requests: map[string]models.CourseRequest{
		"req-1": openRequest("req-1", "parent-1", start),
	}}
	applications := &mockApplicationRepo{applications: map[string]models.Application{
		"app-1": {ID: "app-1", RequestID: "req-1", TeacherID: "teacher-1", ProposedDateTime: start},
	}}
	workflow := &mockWorkflowRepo{acceptErr: repository.ErrRequestNotOpen}
	svc := newApplicationService(requests, applications, workflow, &mockProfileReader{}, nil)

	_, err := svc.Accept(context.Background(), parentClaims("parent-1"), "req-1", "app-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestApplicationServiceAcceptClosedRequestConflicts(t *testing.T) {
	closed := openRequest("req-1", "parent-1")
	closed.Status = models.RequestStatusAssigned
	requests := &mockRequestRepo{requests: map[string]models.CourseRequest{"req-1": closed}}
	svc := newApplicationService(requests, &mockApplicationRepo{}, &mockWorkflowRepo{}, &mockProfileReader{}, nil)

	_, err := svc.Accept(context.Background(), parentClaims("parent-1"), "req-1", "app-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestApplicationServiceListVisibility(t *testing.T) {
	request := openRequest("req-1", "parent-1")
	request.AppliedTeachers = []string{"teacher-1"}
	requests := &mockRequestRepo{requests: map[string]models.CourseRequest{"req-1": request}}
	applications := &mockApplicationRepo{applications: map[string]models.Application{
		"app-1": {ID: "app-1", RequestID: "req-1", TeacherID: "teacher-1"},
	}}
	svc := newApplicationService(requests, applications, &mockWorkflowRepo{}, &mockProfileReader{}, nil)

	list, err := svc.ListForRequest(context.Background(), parentClaims("parent-1"), "req-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = svc.ListForRequest(context.Background(), teacherClaims("teacher-1"), "req-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.ListForRequest(context.Background(), teacherClaims("teacher-2"), "req-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.ListForRequest(context.Background(), parentClaims("parent-2"), "req-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
