package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edulink/tutoring-api/internal/models"
	"github.com/edulink/tutoring-api/internal/repository"
	appErrors "github.com/edulink/tutoring-api/pkg/errors"
)

type courseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	UpdateStatus(ctx context.Context, id string, to models.CourseStatus, from ...models.CourseStatus) error
	SetRating(ctx context.Context, id string, rating int) error
}

// UpdateCourseStatusRequest describes a status move payload.
type UpdateCourseStatusRequest struct {
	Status models.CourseStatus `json:"status" validate:"required,oneof=scheduled inProgress completed cancelled"`
}

// RateCourseRequest describes a parent rating payload.
type RateCourseRequest struct {
	Rating int `json:"rating" validate:"required,min=1,max=5"`
}

// courseStatusSources maps each target status to its legal source states.
var courseStatusSources = map[models.CourseStatus][]models.CourseStatus{
	models.CourseStatusScheduled:  {models.CourseStatusPending},
	models.CourseStatusInProgress: {models.CourseStatusScheduled},
	models.CourseStatusCompleted:  {models.CourseStatusInProgress, models.CourseStatusScheduled},
	models.CourseStatusCancelled:  {models.CourseStatusPending, models.CourseStatusScheduled, models.CourseStatusInProgress},
}

// CourseService manages the scheduled-course lifecycle after acceptance.
type CourseService struct {
	repo      courseRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, validator: validate, logger: logger}
}

// List returns courses visible to the acting user. Teachers and parents see
// their own engagements; back-office roles see everything.
func (s *CourseService) List(ctx context.Context, claims *models.JWTClaims, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	if claims == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleTeacher:
		filter.TeacherID = claims.UserID
	case models.RoleParent:
		filter.StudentID = claims.UserID
	}

	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get loads one course, enforcing participant visibility.
func (s *CourseService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !s.canView(claims, course) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to view this course")
	}
	return course, nil
}

// UpdateStatus moves a course along its lifecycle. Only the assigned teacher
// or a back-office role may do so, and only along legal edges.
func (s *CourseService) UpdateStatus(ctx context.Context, claims *models.JWTClaims, id string, req UpdateCourseStatusRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	course, err := s.Get(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	if claims.Role == models.RoleTeacher && claims.UserID != course.TeacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned teacher can update this course")
	}
	if claims.Role == models.RoleParent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "parents cannot update course status")
	}

	sources := courseStatusSources[req.Status]
	if err := s.repo.UpdateStatus(ctx, id, req.Status, sources...); err != nil {
		if errors.Is(err, repository.ErrRequestNotOpen) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "course state does not allow this transition")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course status")
	}
	s.logger.Info("course status updated", zap.String("course_id", id), zap.String("status", string(req.Status)))
	return s.Get(ctx, claims, id)
}

// Rate records a 1..5 rating by the parent once the course completed.
func (s *CourseService) Rate(ctx context.Context, claims *models.JWTClaims, id string, req RateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rating payload")
	}
	course, err := s.Get(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	if claims.Role != models.RoleParent || claims.UserID != course.StudentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the course's parent can rate it")
	}
	if course.Status != models.CourseStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only completed courses can be rated")
	}

	if err := s.repo.SetRating(ctx, id, req.Rating); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rate course")
	}
	return s.Get(ctx, claims, id)
}

func (s *CourseService) canView(claims *models.JWTClaims, course *models.Course) bool {
	if claims == nil {
		return false
	}
	switch claims.Role {
	case models.RoleCoordinator, models.RoleAdmin:
		return true
	case models.RoleTeacher:
		return claims.UserID == course.TeacherID
	case models.RoleParent:
		return claims.UserID == course.StudentID
	}
	return false
}
