package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edulink/tutoring-api/internal/models"
	"github.com/edulink/tutoring-api/internal/repository"
	appErrors "github.com/edulink/tutoring-api/pkg/errors"
)

type applicationRepository interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
	ListByRequest(ctx context.Context, requestID string) ([]models.Application, error)
	ExistsForTeacher(ctx context.Context, requestID, teacherID string) (bool, error)
}

type workflowRepository interface {
	SubmitApplication(ctx context.Context, application *models.Application) error
	AcceptApplication(ctx context.Context, application *models.Application, course *models.Course) error
}

// SubmitApplicationRequest describes a teacher's offer payload.
type SubmitApplicationRequest struct {
	ProposedDateTime time.Time `json:"proposed_datetime" validate:"required"`
	Message          string    `json:"message" validate:"required"`
}

// ApplicationService owns the apply/accept transitions of the workflow.
type ApplicationService struct {
	requests     requestRepository
	applications applicationRepository
	workflow     workflowRepository
	profiles     profileReader
	cache        queueCache
	meetingBase  string
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewApplicationService constructs ApplicationService.
func NewApplicationService(requests requestRepository, applications applicationRepository, workflow workflowRepository, profiles profileReader, cache queueCache, meetingBase string, validate *validator.Validate, logger *zap.Logger) *ApplicationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if meetingBase == "" {
		meetingBase = "https://meet.jit.si"
	}
	return &ApplicationService{
		requests:     requests,
		applications: applications,
		workflow:     workflow,
		profiles:     profiles,
		cache:        cache,
		meetingBase:  strings.TrimRight(meetingBase, "/"),
		validator:    validate,
		logger:       logger,
	}
}

// Submit records a teacher application on an open request and moves the
// request to under_review.
func (s *ApplicationService) Submit(ctx context.Context, claims *models.JWTClaims, requestID string, req SubmitApplicationRequest) (*models.Application, error) {
	if claims == nil || claims.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can apply")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a motivation message is required")
	}
	if !req.ProposedDateTime.After(time.Now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "proposed time must be in the future")
	}

	teacher, err := s.profiles.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrProfileIncomplete, "teacher profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher profile")
	}
	if teacher.FullName == "" {
		return nil, appErrors.Clone(appErrors.ErrProfileIncomplete, "teacher profile is missing a display name")
	}

	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if !request.Status.Open() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "request is no longer accepting applications")
	}
	if !request.AvailableDates.ContainsDay(req.ProposedDateTime) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "proposed time is not among the offered dates")
	}

	applied, err := s.applications.ExistsForTeacher(ctx, requestID, claims.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing application")
	}
	if applied {
		return nil, appErrors.Clone(appErrors.ErrConflict, "you already applied to this request")
	}

	application := &models.Application{
		RequestID:        requestID,
		TeacherID:        claims.UserID,
		TeacherName:      teacher.FullName,
		StudentID:        request.ParentID,
		ProposedDateTime: req.ProposedDateTime.UTC(),
		Message:          strings.TrimSpace(req.Message),
		Status:           models.ApplicationStatusPending,
	}
	if err := s.workflow.SubmitApplication(ctx, application); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateApplication):
			return nil, appErrors.Clone(appErrors.ErrConflict, "you already applied to this request")
		case errors.Is(err, repository.ErrRequestNotOpen):
			return nil, appErrors.Clone(appErrors.ErrConflict, "request is no longer accepting applications")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit application")
		}
	}

	s.invalidate(ctx)
	s.logger.Info("application submitted",
		zap.String("request_id", requestID),
		zap.String("teacher_id", claims.UserID),
		zap.Time("proposed", application.ProposedDateTime))
	return application, nil
}

// Accept lets the owning parent (or a back-office role) choose one
// application, which creates the course and closes the bidding phase. A
// concurrent acceptance on the same request loses the status
// compare-and-swap and surfaces as a conflict, never silently.
func (s *ApplicationService) Accept(ctx context.Context, claims *models.JWTClaims, requestID, applicationID string) (*models.Course, error) {
	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if !s.canAccept(claims, request) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the request owner can accept an application")
	}
	if !request.Status.Open() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "request is already assigned or closed")
	}

	application, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if application.RequestID != requestID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "application does not belong to this request")
	}
	if application.ProposedDateTime.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "application has no valid proposed time")
	}

	start := application.ProposedDateTime.UTC()
	course := &models.Course{
		RequestID:        requestID,
		TeacherID:        application.TeacherID,
		TeacherName:      application.TeacherName,
		StudentID:        request.ParentID,
		Subjects:         request.Subjects,
		Level:            request.Level,
		Message:          application.Message,
		ProposedDateTime: start,
		EndDateTime:      start.Add(models.CourseDuration),
		Status:           models.CourseStatusScheduled,
		MeetingLink:      s.meetingLink(requestID),
	}
	if err := s.workflow.AcceptApplication(ctx, application, course); err != nil {
		if errors.Is(err, repository.ErrRequestNotOpen) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "request was assigned by a concurrent acceptance, refresh to see the outcome")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to accept application")
	}

	s.invalidate(ctx)
	s.logger.Info("application accepted",
		zap.String("request_id", requestID),
		zap.String("application_id", applicationID),
		zap.String("teacher_id", application.TeacherID),
		zap.String("course_id", course.ID))
	return course, nil
}

// ListForRequest returns a request's applications in submission order.
// Visible to the owning parent, back-office roles, and teachers that applied.
func (s *ApplicationService) ListForRequest(ctx context.Context, claims *models.JWTClaims, requestID string) ([]models.Application, error) {
	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if !s.canView(claims, request) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to view these applications")
	}

	applications, err := s.applications.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	return applications, nil
}

func (s *ApplicationService) canAccept(claims *models.JWTClaims, request *models.CourseRequest) bool {
	if claims == nil {
		return false
	}
	if claims.Role == models.RoleCoordinator || claims.Role == models.RoleAdmin {
		return true
	}
	return claims.Role == models.RoleParent && claims.UserID == request.ParentID
}

func (s *ApplicationService) canView(claims *models.JWTClaims, request *models.CourseRequest) bool {
	if claims == nil {
		return false
	}
	switch claims.Role {
	case models.RoleCoordinator, models.RoleAdmin:
		return true
	case models.RoleParent:
		return claims.UserID == request.ParentID
	case models.RoleTeacher:
		return request.HasTeacherApplied(claims.UserID)
	}
	return false
}

// meetingLink derives the deterministic room URL for a request. One request,
// one room.
func (s *ApplicationService) meetingLink(requestID string) string {
	return fmt.Sprintf("%s/%s", s.meetingBase, requestID)
}

func (s *ApplicationService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Delete(ctx, openQueueCacheKey, dashboardCacheKey)
	}
}
