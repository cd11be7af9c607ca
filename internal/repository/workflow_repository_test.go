package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulink/tutoring-api/internal/models"
)

func pendingApplication() *models.Application {
	return &models.Application{
		RequestID:        "req-1",
		TeacherID:        "teacher-1",
		TeacherName:      "Karim E",
		StudentID:        "parent-1",
		ProposedDateTime: time.Now().Add(48 * time.Hour).UTC(),
		Message:          "I can help.",
	}
}

func TestWorkflowSubmitApplication(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewWorkflowRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO applications").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("(?s)UPDATE requests SET.+status = \\$2.+array_append.+WHERE id = \\$1 AND status IN \\(\\$4, \\$5\\)").
		WithArgs("req-1", models.RequestStatusUnderReview, "teacher-1",
			models.RequestStatusPending, models.RequestStatusUnderReview).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	application := pendingApplication()
	require.NoError(t, repo.SubmitApplication(context.Background(), application))
	assert.NotEmpty(t, application.ID)
	assert.Equal(t, models.ApplicationStatusPending, application.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowSubmitApplicationDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewWorkflowRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO applications").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "applications_request_id_teacher_id_key"})
	mock.ExpectRollback()

	err := repo.SubmitApplication(context.Background(), pendingApplication())
	assert.ErrorIs(t, err, ErrDuplicateApplication)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowSubmitApplicationRequestClosed(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewWorkflowRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO applications").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("(?s)UPDATE requests SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.SubmitApplication(context.Background(), pendingApplication())
	assert.ErrorIs(t, err, ErrRequestNotOpen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowAcceptApplication(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewWorkflowRepository(db)

	application := pendingApplication()
	application.ID = "app-1"
	start := application.ProposedDateTime
	course := &models.Course{
		RequestID:        "req-1",
		TeacherID:        "teacher-1",
		TeacherName:      "Karim E",
		StudentID:        "parent-1",
		ProposedDateTime: start,
		EndDateTime:      start.Add(time.Hour),
		Status:           models.CourseStatusScheduled,
		MeetingLink:      "https://meet.jit.si/req-1",
	}

	mock.ExpectBegin()
	mock.ExpectExec("(?s)UPDATE requests SET.+assigned_teacher_id.+WHERE id = \\$1 AND status IN \\(\\$5, \\$6\\)").
		WithArgs("req-1", models.RequestStatusAssigned, "teacher-1", "Karim E",
			models.RequestStatusPending, models.RequestStatusUnderReview).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO courses").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE applications SET status = \\$2").
		WithArgs("app-1", models.ApplicationStatusAccepted).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("(?s)UPDATE applications SET status = \\$3.+WHERE request_id = \\$1 AND id <> \\$2").
		WithArgs("req-1", "app-1", models.ApplicationStatusRejected, models.ApplicationStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, repo.AcceptApplication(context.Background(), application, course))
	assert.NotEmpty(t, course.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowAcceptApplicationLosesRace(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewWorkflowRepository(db)

	application := pendingApplication()
	application.ID = "app-1"

	mock.ExpectBegin()
	mock.ExpectExec("(?s)UPDATE requests SET.+assigned_teacher_id").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.AcceptApplication(context.Background(), application, &models.Course{RequestID: "req-1"})
	assert.ErrorIs(t, err, ErrRequestNotOpen)
	assert.NoError(t, mock.ExpectationsWereMet())
}
