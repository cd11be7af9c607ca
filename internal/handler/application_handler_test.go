package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulink/tutoring-api/internal/middleware"
	"github.com/edulink/tutoring-api/internal/models"
	"github.com/edulink/tutoring-api/internal/service"
)

type fakeApplicationRepo struct {
	applications map[string]models.Application
}

func (f *fakeApplicationRepo) FindByID(ctx context.Context, id string) (*models.Application, error) {
	if a, ok := f.applications[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeApplicationRepo) ListByRequest(ctx context.Context, requestID string) ([]models.Application, error) {
	var out []models.Application
	for _, a := range f.applications {
		if a.RequestID == requestID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeApplicationRepo) ExistsForTeacher(ctx context.Context, requestID, teacherID string) (bool, error) {
	for _, a := range f.applications {
		if a.RequestID == requestID && a.TeacherID == teacherID {
			return true, nil
		}
	}
	return false, nil
}

type fakeWorkflowRepo struct {
	requests     *fakeRequestRepo
	applications *fakeApplicationRepo
}

func (f *fakeWorkflowRepo) SubmitApplication(ctx context.Context, application *models.Application) error {
	if f.applications.applications == nil {
		f.applications.applications = make(map[string]models.Application)
	}
	application.ID = fmt.Sprintf("app-%d", len(f.applications.applications)+1)
	f.applications.applications[application.ID] = *application
	r := f.requests.requests[application.RequestID]
	r.Status = models.RequestStatusUnderReview
	r.AppliedTeachers = append(r.AppliedTeachers, application.TeacherID)
	f.requests.requests[application.RequestID] = r
	return nil
}

func (f *fakeWorkflowRepo) AcceptApplication(ctx context.Context, application *models.Application, course *models.Course) error {
	course.ID = "course-1"
	r := f.requests.requests[application.RequestID]
	r.Status = models.RequestStatusAssigned
	r.AssignedTeacherID = &application.TeacherID
	f.requests.requests[application.RequestID] = r
	return nil
}

type applicationFixture struct {
	requests     *fakeRequestRepo
	applications *fakeApplicationRepo
}

func newApplicationRouter(fixture *applicationFixture, claims *models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	profiles := &fakeProfileReader{users: map[string]*models.User{
		"teacher-1": {ID: "teacher-1", FullName: "Karim T"},
	}}
	workflow := &fakeWorkflowRepo{requests: fixture.requests, applications: fixture.applications}
	svc := service.NewApplicationService(fixture.requests, fixture.applications, workflow, profiles, nil, "", nil, nil)
	h := NewApplicationHandler(svc, nil)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if claims != nil {
			c.Set(middleware.ContextUserKey, claims)
		}
		c.Next()
	})
	r.POST("/requests/:id/applications", h.Submit)
	r.GET("/requests/:id/applications", h.List)
	r.POST("/requests/:id/applications/:applicationId/accept", h.Accept)
	return r
}

func openRequestFixture(dates ...time.Time) *applicationFixture {
	return &applicationFixture{
		requests: &fakeRequestRepo{requests: map[string]models.CourseRequest{
			"req-1": {
				ID:             "req-1",
				ParentID:       "parent-1",
				Level:          "bac-2",
				Subjects:       models.SubjectList{{ID: "math", Name: "Mathematics"}},
				Status:         models.RequestStatusPending,
				AvailableDates: models.DateList(dates),
			},
		}},
		applications: &fakeApplicationRepo{applications: make(map[string]models.Application)},
	}
}

func TestApplicationHandlerSubmit(t *testing.T) {
	slot := time.Now().Add(72 * time.Hour).UTC()
	fixture := openRequestFixture(slot)
	router := newApplicationRouter(fixture, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})

	payload, _ := json.Marshal(map[string]interface{}{
		"proposed_datetime": slot.Format(time.RFC3339),
		"message":           "I teach this level every week.",
	})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/requests/req-1/applications", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var envelope struct {
		Data models.Application `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, models.ApplicationStatusPending, envelope.Data.Status)
	assert.Equal(t, "Karim T", envelope.Data.TeacherName)
	assert.Equal(t, models.RequestStatusUnderReview, fixture.requests.requests["req-1"].Status)
}

func TestApplicationHandlerSubmitAsParentForbidden(t *testing.T) {
	slot := time.Now().Add(72 * time.Hour).UTC()
	router := newApplicationRouter(openRequestFixture(slot), &models.JWTClaims{UserID: "parent-1", Role: models.RoleParent})

	payload, _ := json.Marshal(map[string]interface{}{
		"proposed_datetime": slot.Format(time.RFC3339),
		"message":           "please",
	})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/requests/req-1/applications", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestApplicationHandlerAcceptFlow(t *testing.T) {
	slot := time.Now().Add(72 * time.Hour).UTC().Truncate(time.Second)
	fixture := openRequestFixture(slot)
	fixture.applications.applications["app-1"] = models.Application{
		ID:               "app-1",
		RequestID:        "req-1",
		TeacherID:        "teacher-1",
		TeacherName:      "Karim T",
		StudentID:        "parent-1",
		ProposedDateTime: slot,
		Message:          "I teach this level every week.",
		Status:           models.ApplicationStatusPending,
	}
	router := newApplicationRouter(fixture, &models.JWTClaims{UserID: "parent-1", Role: models.RoleParent})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/requests/req-1/applications/app-1/accept", nil))

	require.Equal(t, http.StatusCreated, rec.Code)
	var envelope struct {
		Data models.Course `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, models.CourseStatusScheduled, envelope.Data.Status)
	assert.Equal(t, "https://meet.jit.si/req-1", envelope.Data.MeetingLink)
	assert.Equal(t, slot.Add(time.Hour), envelope.Data.EndDateTime.UTC())
	assert.Equal(t, models.RequestStatusAssigned, fixture.requests.requests["req-1"].Status)
}

func TestApplicationHandlerAcceptByStrangerForbidden(t *testing.T) {
	slot := time.Now().Add(72 * time.Hour).UTC()
	fixture := openRequestFixture(slot)
	fixture.applications.applications["app-1"] = models.Application{
		ID: "app-1", RequestID: "req-1", TeacherID: "teacher-1", ProposedDateTime: slot,
	}
	router := newApplicationRouter(fixture, &models.JWTClaims{UserID: "parent-2", Role: models.RoleParent})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/requests/req-1/applications/app-1/accept", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestApplicationHandlerListVisibility(t *testing.T) {
	slot := time.Now().Add(72 * time.Hour).UTC()
	fixture := openRequestFixture(slot)
	fixture.applications.applications["app-1"] = models.Application{
		ID: "app-1", RequestID: "req-1", TeacherID: "teacher-1",
	}

	// Owning parent sees the list.
	router := newApplicationRouter(fixture, &models.JWTClaims{UserID: "parent-1", Role: models.RoleParent})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/requests/req-1/applications", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// A teacher who never applied does not.
	router = newApplicationRouter(fixture, &models.JWTClaims{UserID: "teacher-9", Role: models.RoleTeacher})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/requests/req-1/applications", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
