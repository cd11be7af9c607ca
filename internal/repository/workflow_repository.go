package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/edulink/tutoring-api/internal/models"
)

// Sentinel errors surfaced by workflow transitions. Services translate these
// into user-facing conflict errors.
var (
	// ErrDuplicateApplication fires on the (request_id, teacher_id) unique
	// index, closing the check-then-insert race between concurrent submits.
	ErrDuplicateApplication = errors.New("teacher already applied to request")
	// ErrRequestNotOpen means a compare-and-swap on request status matched
	// zero rows: the request was assigned, completed or cancelled by a
	// concurrent writer, or no longer exists.
	ErrRequestNotOpen = errors.New("request is not open for this transition")
)

const uniqueViolation = "23505"

// WorkflowRepository owns the multi-statement transitions of the
// request/application/course workflow. Each method runs as one database
// transaction so a crash can never leave a course without its request-status
// update, or vice versa.
type WorkflowRepository struct {
	db *sqlx.DB
}

// NewWorkflowRepository constructs the repository.
func NewWorkflowRepository(db *sqlx.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// SubmitApplication inserts the application and moves the request to
// under_review while appending the teacher to the applied set. The status
// write is idempotent: it fires on every submission, not only the first, and
// the array union never produces duplicates.
func (r *WorkflowRepository) SubmitApplication(ctx context.Context, application *models.Application) error {
	if application.ID == "" {
		application.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	application.CreatedAt = now
	application.UpdatedAt = now
	if application.Status == "" {
		application.Status = models.ApplicationStatusPending
	}

	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		const insertQuery = `INSERT INTO applications (id, request_id, teacher_id, teacher_name, student_id,
            proposed_datetime, message, status, created_at, updated_at)
            VALUES (:id, :request_id, :teacher_id, :teacher_name, :student_id, :proposed_datetime,
            :message, :status, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, insertQuery, application); err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
				return ErrDuplicateApplication
			}
			return fmt.Errorf("insert application: %w", err)
		}

		const updateQuery = `UPDATE requests SET
            status = $2,
            applied_teachers = CASE WHEN $3 = ANY(applied_teachers) THEN applied_teachers
                ELSE array_append(applied_teachers, $3) END,
            updated_at = NOW()
            WHERE id = $1 AND status IN ($4, $5)`
		res, err := tx.ExecContext(ctx, updateQuery,
			application.RequestID, models.RequestStatusUnderReview, application.TeacherID,
			models.RequestStatusPending, models.RequestStatusUnderReview)
		if err != nil {
			return fmt.Errorf("mark request under review: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("mark request under review: %w", err)
		}
		if affected == 0 {
			return ErrRequestNotOpen
		}
		return nil
	})
}

// AcceptApplication performs the acceptance unit: a compare-and-swap moves
// the request to assigned, the course is created from the snapshot, the
// accepted application is marked and its siblings rejected. A concurrent
// acceptance loses the CAS and gets ErrRequestNotOpen; exactly one course
// ever exists per request.
func (r *WorkflowRepository) AcceptApplication(ctx context.Context, application *models.Application, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	if course.CreatedAt.IsZero() {
		course.CreatedAt = time.Now().UTC()
	}

	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		const assignQuery = `UPDATE requests SET
            status = $2, assigned_teacher_id = $3, assigned_teacher_name = $4, updated_at = NOW()
            WHERE id = $1 AND status IN ($5, $6)`
		res, err := tx.ExecContext(ctx, assignQuery,
			application.RequestID, models.RequestStatusAssigned, application.TeacherID, application.TeacherName,
			models.RequestStatusPending, models.RequestStatusUnderReview)
		if err != nil {
			return fmt.Errorf("assign request: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("assign request: %w", err)
		}
		if affected == 0 {
			return ErrRequestNotOpen
		}

		const courseQuery = `INSERT INTO courses (id, request_id, teacher_id, teacher_name, student_id,
            subjects, level, message, proposed_datetime, end_datetime, status, meeting_link, created_at)
            VALUES (:id, :request_id, :teacher_id, :teacher_name, :student_id, :subjects, :level,
            :message, :proposed_datetime, :end_datetime, :status, :meeting_link, :created_at)`
		if _, err := tx.NamedExecContext(ctx, courseQuery, course); err != nil {
			return fmt.Errorf("create course: %w", err)
		}

		const acceptQuery = `UPDATE applications SET status = $2, updated_at = NOW() WHERE id = $1`
		if _, err := tx.ExecContext(ctx, acceptQuery, application.ID, models.ApplicationStatusAccepted); err != nil {
			return fmt.Errorf("accept application: %w", err)
		}
		const rejectQuery = `UPDATE applications SET status = $3, updated_at = NOW()
            WHERE request_id = $1 AND id <> $2 AND status = $4`
		if _, err := tx.ExecContext(ctx, rejectQuery,
			application.RequestID, application.ID, models.ApplicationStatusRejected, models.ApplicationStatusPending); err != nil {
			return fmt.Errorf("reject sibling applications: %w", err)
		}
		return nil
	})
}

func (r *WorkflowRepository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
