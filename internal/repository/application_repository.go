package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/edulink/tutoring-api/internal/models"
)

const applicationColumns = `id, request_id, teacher_id, teacher_name, student_id, proposed_datetime,
        message, status, created_at, updated_at`

// ApplicationRepository handles persistence of teacher applications.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// FindByID returns an application by its ID.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	query := fmt.Sprintf("SELECT %s FROM applications WHERE id = $1", applicationColumns)
	var application models.Application
	if err := r.db.GetContext(ctx, &application, query, id); err != nil {
		return nil, err
	}
	return &application, nil
}

// ListByRequest returns all applications for a request in submission order.
func (r *ApplicationRepository) ListByRequest(ctx context.Context, requestID string) ([]models.Application, error) {
	query := fmt.Sprintf("SELECT %s FROM applications WHERE request_id = $1 ORDER BY created_at ASC",
		applicationColumns)
	var applications []models.Application
	if err := r.db.SelectContext(ctx, &applications, query, requestID); err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return applications, nil
}

// ExistsForTeacher checks whether a teacher already applied to a request.
// The unique index on (request_id, teacher_id) remains the authority; this is
// the cheap pre-check.
func (r *ApplicationRepository) ExistsForTeacher(ctx context.Context, requestID, teacherID string) (bool, error) {
	const query = `SELECT 1 FROM applications WHERE request_id = $1 AND teacher_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, requestID, teacherID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check application exists: %w", err)
	}
	return true, nil
}
