package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edulink/tutoring-api/internal/models"
)

const requestColumns = `id, parent_id, parent_name, parent_phone, parent_phone_country, subjects, level,
        description, teaching_language, time_slot, hours_per_week, type, available_dates, preferred_date,
        status, applied_teachers, assigned_teacher_id, assigned_teacher_name, created_at, updated_at`

// RequestRepository handles persistence of course requests.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create persists a new course request.
func (r *RequestRepository) Create(ctx context.Context, request *models.CourseRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = now
	if request.Status == "" {
		request.Status = models.RequestStatusPending
	}
	if request.AppliedTeachers == nil {
		request.AppliedTeachers = []string{}
	}
	const query = `INSERT INTO requests (id, parent_id, parent_name, parent_phone, parent_phone_country,
        subjects, level, description, teaching_language, time_slot, hours_per_week, type, available_dates,
        preferred_date, status, applied_teachers, created_at, updated_at)
        VALUES (:id, :parent_id, :parent_name, :parent_phone, :parent_phone_country, :subjects, :level,
        :description, :teaching_language, :time_slot, :hours_per_week, :type, :available_dates,
        :preferred_date, :status, :applied_teachers, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

// FindByID returns a request by its ID.
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*models.CourseRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM requests WHERE id = $1", requestColumns)
	var request models.CourseRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns requests filtered by the provided criteria, newest first.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.CourseRequest, int, error) {
	var conditions []string
	var args []interface{}

	if filter.ParentID != "" {
		conditions = append(conditions, fmt.Sprintf("parent_id = $%d", len(args)+1))
		args = append(args, filter.ParentID)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
			args = append(args, status)
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	order := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM requests%s ORDER BY created_at %s LIMIT %d OFFSET %d",
		requestColumns, clause, order, size, offset)

	var requests []models.CourseRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM requests" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}
	return requests, total, nil
}

// ListOpen returns the teacher-facing queue: requests still accepting
// applications, newest first. Assigned, completed and cancelled requests are
// excluded here, which is what stops late applications at the query boundary.
func (r *RequestRepository) ListOpen(ctx context.Context) ([]models.CourseRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM requests WHERE status IN ($1, $2) ORDER BY created_at DESC",
		requestColumns)
	var requests []models.CourseRequest
	if err := r.db.SelectContext(ctx, &requests, query, models.RequestStatusPending, models.RequestStatusUnderReview); err != nil {
		return nil, fmt.Errorf("list open requests: %w", err)
	}
	return requests, nil
}

// UpdateStatus performs a compare-and-swap status transition. It only
// succeeds when the current status is one of the allowed source states, so
// two racing writers cannot both win.
func (r *RequestRepository) UpdateStatus(ctx context.Context, id string, to models.RequestStatus, from ...models.RequestStatus) error {
	if len(from) == 0 {
		return fmt.Errorf("update request status: no source states")
	}
	args := []interface{}{id, to}
	placeholders := make([]string, len(from))
	for i, status := range from {
		placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
		args = append(args, status)
	}
	query := fmt.Sprintf(`UPDATE requests SET status = $2, updated_at = NOW() WHERE id = $1 AND status IN (%s)`,
		strings.Join(placeholders, ","))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	if affected == 0 {
		return ErrRequestNotOpen
	}
	return nil
}

// CountByStatus aggregates requests per workflow state.
func (r *RequestRepository) CountByStatus(ctx context.Context) (*models.RequestStatusCounts, error) {
	const query = `SELECT
        COUNT(*) FILTER (WHERE status = 'pending') AS pending,
        COUNT(*) FILTER (WHERE status = 'under_review') AS under_review,
        COUNT(*) FILTER (WHERE status = 'assigned') AS assigned,
        COUNT(*) FILTER (WHERE status = 'completed') AS completed,
        COUNT(*) FILTER (WHERE status = 'cancelled') AS cancelled
        FROM requests`
	var counts models.RequestStatusCounts
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count requests by status: %w", err)
	}
	return &counts, nil
}
