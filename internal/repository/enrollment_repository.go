package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/univtrack/attendance-api/internal/models"
)

// EnrollmentRepository manages the student-course membership table.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs an EnrollmentRepository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Find returns the enrollment row for a (student, course) pair regardless of
// its active flag, so callers can reactivate a soft-removed membership.
func (r *EnrollmentRepository) Find(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, course_id, enrolled_at, active FROM enrollments WHERE student_id = $1 AND course_id = $2 LIMIT 1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &enrollment, nil
}

// IsActivelyEnrolled reports whether the student currently belongs to the course.
func (r *EnrollmentRepository) IsActivelyEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND active LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// Create inserts a new enrollment row.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollments (id, student_id, course_id, enrolled_at, active)
        VALUES (:id, :student_id, :course_id, :enrolled_at, :active)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// SetActive flips the active flag of an enrollment. Reactivation refreshes the
// enrollment timestamp.
func (r *EnrollmentRepository) SetActive(ctx context.Context, id string, active bool) error {
	if active {
		const query = `UPDATE enrollments SET active = TRUE, enrolled_at = $2 WHERE id = $1`
		if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
			return fmt.Errorf("reactivate enrollment: %w", err)
		}
		return nil
	}
	const query = `UPDATE enrollments SET active = FALSE WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("deactivate enrollment: %w", err)
	}
	return nil
}

// Roster returns the active members of a course ordered by institutional
// student code. Reports and exports rely on this ordering.
func (r *EnrollmentRepository) Roster(ctx context.Context, courseID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.course_id, e.enrolled_at, e.active,
        s.student_id AS student_code, s.department, s.year_of_study, u.first_name, u.last_name
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN users u ON u.id = s.user_id
        WHERE e.course_id = $1 AND e.active
        ORDER BY s.student_id ASC`
	var roster []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &roster, query, courseID); err != nil {
		return nil, fmt.Errorf("course roster: %w", err)
	}
	return roster, nil
}

// CountActive returns the number of active members of a course.
func (r *EnrollmentRepository) CountActive(ctx context.Context, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND active`
	var total int
	if err := r.db.GetContext(ctx, &total, query, courseID); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return total, nil
}

// ActiveCourseIDs lists the course IDs a student is actively enrolled in.
func (r *EnrollmentRepository) ActiveCourseIDs(ctx context.Context, studentID string) ([]string, error) {
	const query = `SELECT course_id FROM enrollments WHERE student_id = $1 AND active`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, studentID); err != nil {
		return nil, fmt.Errorf("student course ids: %w", err)
	}
	return ids, nil
}
