package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/edulink/tutoring-api/internal/models"
	appErrors "github.com/edulink/tutoring-api/pkg/errors"
)

type requestStatsReader interface {
	CountByStatus(ctx context.Context) (*models.RequestStatusCounts, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.CourseRequest, int, error)
}

type userStatsReader interface {
	CountByRole(ctx context.Context) (map[models.UserRole]int, error)
}

type courseStatsReader interface {
	Count(ctx context.Context) (int, error)
}

// DashboardService aggregates the role-specific landing summaries.
type DashboardService struct {
	requests requestStatsReader
	users    userStatsReader
	courses  courseStatsReader
	cache    queueCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewDashboardService constructs DashboardService.
func NewDashboardService(requests requestStatsReader, users userStatsReader, courses courseStatsReader, cache queueCache, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{requests: requests, users: users, courses: courses, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// Coordinator builds the coordinator overview: request funnel counts, user
// totals and the most recent requests.
func (s *DashboardService) Coordinator(ctx context.Context) (*models.CoordinatorDashboard, error) {
	if s.cache != nil {
		var cached models.CoordinatorDashboard
		if err := s.cache.Get(ctx, dashboardCacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	counts, err := s.requests.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count requests")
	}
	roleCounts, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count users")
	}
	recent, _, err := s.requests.List(ctx, models.RequestFilter{Page: 1, PageSize: 5})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent requests")
	}

	dashboard := &models.CoordinatorDashboard{
		Requests:       *counts,
		TeacherCount:   roleCounts[models.RoleTeacher],
		ParentCount:    roleCounts[models.RoleParent],
		RecentRequests: recent,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardCacheKey, dashboard, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache coordinator dashboard", zap.Error(err))
		}
	}
	return dashboard, nil
}

// Admin builds the admin overview: user and course totals.
func (s *DashboardService) Admin(ctx context.Context) (*models.AdminDashboard, error) {
	roleCounts, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count users")
	}
	total := 0
	for _, count := range roleCounts {
		total += count
	}
	courseTotal, err := s.courses.Count(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count courses")
	}

	return &models.AdminDashboard{
		UsersByRole:  roleCounts,
		TotalUsers:   total,
		TotalCourses: courseTotal,
	}, nil
}
