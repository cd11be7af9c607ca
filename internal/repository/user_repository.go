package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/edulink/tutoring-api/internal/models"
)

const userColumns = `id, email, full_name, phone, phone_country, role, bio, hourly_rate, active,
        created_at, updated_at`

// UserRepository reads the profile mirror maintained from the identity
// provider.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs the repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns a user profile by its ID.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE id = $1", userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// CountByRole returns active user counts grouped by role.
func (r *UserRepository) CountByRole(ctx context.Context) (map[models.UserRole]int, error) {
	const query = `SELECT role, COUNT(*) AS total FROM users WHERE active GROUP BY role`
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count users by role: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	counts := make(map[models.UserRole]int)
	for rows.Next() {
		var role models.UserRole
		var total int
		if err := rows.Scan(&role, &total); err != nil {
			return nil, fmt.Errorf("scan user role count: %w", err)
		}
		counts[role] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count users by role: %w", err)
	}
	return counts, nil
}
