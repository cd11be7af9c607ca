package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/edulink/tutoring-api/internal/models"
)

const courseColumns = `id, request_id, teacher_id, teacher_name, student_id, subjects, level, message,
        proposed_datetime, end_datetime, status, meeting_link, rating, created_at`

// CourseRepository handles persistence of scheduled courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID returns a course by its ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses WHERE id = $1", courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// List returns courses filtered by participant and status, soonest first.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	var conditions []string
	var args []interface{}

	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf("SELECT %s FROM courses%s ORDER BY proposed_datetime ASC LIMIT %d OFFSET %d",
		courseColumns, clause, size, offset)

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM courses" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// UpdateStatus performs a compare-and-swap status transition on a course.
func (r *CourseRepository) UpdateStatus(ctx context.Context, id string, to models.CourseStatus, from ...models.CourseStatus) error {
	if len(from) == 0 {
		return fmt.Errorf("update course status: no source states")
	}
	args := []interface{}{id, to}
	placeholders := make([]string, len(from))
	for i, status := range from {
		placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
		args = append(args, status)
	}
	query := fmt.Sprintf("UPDATE courses SET status = $2 WHERE id = $1 AND status IN (%s)",
		strings.Join(placeholders, ","))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update course status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update course status: %w", err)
	}
	if affected == 0 {
		return ErrRequestNotOpen
	}
	return nil
}

// SetRating records a parent rating on a completed course.
func (r *CourseRepository) SetRating(ctx context.Context, id string, rating int) error {
	const query = `UPDATE courses SET rating = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, rating); err != nil {
		return fmt.Errorf("rate course: %w", err)
	}
	return nil
}

// FindByRequest returns the course created for a request, if any.
func (r *CourseRepository) FindByRequest(ctx context.Context, requestID string) (*models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses WHERE request_id = $1", courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, requestID); err != nil {
		return nil, err
	}
	return &course, nil
}

// Count returns the total number of courses.
func (r *CourseRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM courses"); err != nil {
		return 0, fmt.Errorf("count courses: %w", err)
	}
	return total, nil
}
