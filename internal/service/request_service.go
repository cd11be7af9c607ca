package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edulink/tutoring-api/internal/models"
	"github.com/edulink/tutoring-api/internal/repository"
	appErrors "github.com/edulink/tutoring-api/pkg/errors"
)

// Cache keys shared by the workflow services. Any workflow mutation
// invalidates them.
const (
	openQueueCacheKey = "requests:open"
	dashboardCacheKey = "dashboard:coordinator"
)

type requestRepository interface {
	Create(ctx context.Context, request *models.CourseRequest) error
	FindByID(ctx context.Context, id string) (*models.CourseRequest, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.CourseRequest, int, error)
	ListOpen(ctx context.Context) ([]models.CourseRequest, error)
	UpdateStatus(ctx context.Context, id string, to models.RequestStatus, from ...models.RequestStatus) error
}

type profileReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type queueCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string)
}

// CreateRequestInput describes request creation payload.
type CreateRequestInput struct {
	Subjects         models.SubjectList      `json:"subjects" validate:"required,min=1,dive"`
	Level            string                  `json:"level" validate:"required"`
	Description      string                  `json:"description"`
	TeachingLanguage models.TeachingLanguage `json:"teaching_language" validate:"required,oneof=french arabic both"`
	TimeSlot         models.TimeSlot         `json:"time_slot" validate:"required,oneof=8-14 14-20 20-8"`
	HoursPerWeek     int                     `json:"hours_per_week" validate:"required,min=1,max=40"`
	Type             models.RequestType      `json:"type" validate:"required,oneof=individual group"`
	AvailableDates   []time.Time             `json:"available_dates" validate:"required,min=1"`
	PreferredDate    *time.Time              `json:"preferred_date,omitempty"`
}

// RequestService orchestrates the course-request lifecycle.
type RequestService struct {
	repo      requestRepository
	profiles  profileReader
	cache     queueCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRequestService constructs RequestService.
func NewRequestService(repo requestRepository, profiles profileReader, cache queueCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *RequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestService{repo: repo, profiles: profiles, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// Create posts a new course request on behalf of the acting parent. The
// request starts in pending.
func (s *RequestService) Create(ctx context.Context, claims *models.JWTClaims, input CreateRequestInput) (*models.CourseRequest, error) {
	if claims == nil || claims.Role != models.RoleParent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only parents can post requests")
	}
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}

	now := time.Now().UTC()
	seen := make(map[time.Time]struct{}, len(input.AvailableDates))
	dates := make(models.DateList, 0, len(input.AvailableDates))
	for _, d := range input.AvailableDates {
		d = d.UTC()
		if !d.After(now) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "available dates must be in the future")
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}
	if input.PreferredDate != nil && !dates.ContainsDay(*input.PreferredDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "preferred date must be one of the available dates")
	}

	parent, err := s.profiles.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrProfileIncomplete, "parent profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent profile")
	}
	if parent.FullName == "" {
		return nil, appErrors.Clone(appErrors.ErrProfileIncomplete, "parent profile is missing a display name")
	}

	request := &models.CourseRequest{
		ParentID:           claims.UserID,
		ParentName:         parent.FullName,
		ParentPhone:        parent.Phone,
		ParentPhoneCountry: parent.PhoneCountry,
		Subjects:           input.Subjects,
		Level:              input.Level,
		Description:        input.Description,
		TeachingLanguage:   input.TeachingLanguage,
		TimeSlot:           input.TimeSlot,
		HoursPerWeek:       input.HoursPerWeek,
		Type:               input.Type,
		AvailableDates:     dates,
		PreferredDate:      input.PreferredDate,
		Status:             models.RequestStatusPending,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}
	s.invalidate(ctx)
	s.logger.Info("request created", zap.String("request_id", request.ID), zap.String("parent_id", request.ParentID))
	return request, nil
}

// Get loads a single request for any participant role.
func (s *RequestService) Get(ctx context.Context, id string) (*models.CourseRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return request, nil
}

// ListForParent returns the parent's own requests, newest first.
func (s *RequestService) ListForParent(ctx context.Context, parentID string, page, pageSize int) ([]models.CourseRequest, *models.Pagination, error) {
	return s.list(ctx, models.RequestFilter{ParentID: parentID, Page: page, PageSize: pageSize})
}

// ListAll returns all requests, optionally filtered by status, for back-office
// roles.
func (s *RequestService) ListAll(ctx context.Context, statuses []models.RequestStatus, page, pageSize int) ([]models.CourseRequest, *models.Pagination, error) {
	return s.list(ctx, models.RequestFilter{Statuses: statuses, Page: page, PageSize: pageSize})
}

func (s *RequestService) list(ctx context.Context, filter models.RequestFilter) ([]models.CourseRequest, *models.Pagination, error) {
	requests, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return requests, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ListOpenForTeachers returns the teacher-facing queue of requests still
// accepting applications. The result is cached briefly; every workflow
// mutation invalidates the key.
func (s *RequestService) ListOpenForTeachers(ctx context.Context) ([]models.CourseRequest, error) {
	if s.cache != nil {
		var cached []models.CourseRequest
		if err := s.cache.Get(ctx, openQueueCacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	requests, err := s.repo.ListOpen(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list open requests")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, openQueueCacheKey, requests, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache open queue", zap.Error(err))
		}
	}
	return requests, nil
}

// Cancel persists a user-initiated cancellation. Allowed for the owning
// parent and back-office roles, from any non-terminal status.
func (s *RequestService) Cancel(ctx context.Context, claims *models.JWTClaims, id string) (*models.CourseRequest, error) {
	request, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canManage(claims, request) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to cancel this request")
	}
	if request.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "request is already closed")
	}

	err = s.repo.UpdateStatus(ctx, id, models.RequestStatusCancelled,
		models.RequestStatusPending, models.RequestStatusUnderReview, models.RequestStatusAssigned)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotOpen) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "request state changed, refresh and retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel request")
	}
	s.invalidate(ctx)
	s.logger.Info("request cancelled", zap.String("request_id", id), zap.String("actor_id", claims.UserID))
	return s.Get(ctx, id)
}

// Complete closes an assigned request. Back-office only.
func (s *RequestService) Complete(ctx context.Context, claims *models.JWTClaims, id string) (*models.CourseRequest, error) {
	if claims == nil || (claims.Role != models.RoleCoordinator && claims.Role != models.RoleAdmin) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to complete this request")
	}
	err := s.repo.UpdateStatus(ctx, id, models.RequestStatusCompleted, models.RequestStatusAssigned)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotOpen) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "only assigned requests can be completed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete request")
	}
	s.invalidate(ctx)
	return s.Get(ctx, id)
}

func (s *RequestService) canManage(claims *models.JWTClaims, request *models.CourseRequest) bool {
	if claims == nil {
		return false
	}
	if claims.Role == models.RoleCoordinator || claims.Role == models.RoleAdmin {
		return true
	}
	return claims.UserID == request.ParentID
}

func (s *RequestService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Delete(ctx, openQueueCacheKey, dashboardCacheKey)
	}
}
