package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/univtrack/attendance-api/internal/models"
)

// CourseRepository manages persistence for courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

const courseDetailColumns = `c.id, c.code, c.name, c.description, c.lecturer_id, c.credits, c.status, c.level, c.department, c.semester, c.academic_year, c.created_at, c.updated_at,
        (SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id AND e.active) AS total_students,
        (SELECT COUNT(*) FROM sessions se WHERE se.course_id = c.id AND se.active) AS total_sessions`

// List returns courses matching the provided filters.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	base := "FROM courses c"
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.LecturerID != "" {
		conditions = append(conditions, fmt.Sprintf("c.lecturer_id = $%d", len(args)+1))
		args = append(args, filter.LecturerID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM enrollments e WHERE e.course_id = c.id AND e.student_id = $%d AND e.active)", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("c.department = $%d", len(args)+1))
		args = append(args, filter.Department)
	}
	if filter.Level > 0 {
		conditions = append(conditions, fmt.Sprintf("c.level = $%d", len(args)+1))
		args = append(args, filter.Level)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("c.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s %s ORDER BY c.code ASC LIMIT %d OFFSET %d`, courseDetailColumns, base, size, offset)

	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// All returns every course matching the filter without pagination. The
// cross-course summary walks this set.
func (r *CourseRepository) All(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, error) {
	base := "FROM courses c"
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.LecturerID != "" {
		conditions = append(conditions, fmt.Sprintf("c.lecturer_id = $%d", len(args)+1))
		args = append(args, filter.LecturerID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("c.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	query := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY c.code ASC`, courseDetailColumns, base, strings.Join(conditions, " AND "))

	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, fmt.Errorf("list all courses: %w", err)
	}
	return courses, nil
}

// FindByID fetches a course with roster and session counts.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses c WHERE c.id = $1 LIMIT 1`, courseDetailColumns)
	var detail models.CourseDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsByCode checks whether a course code is taken, optionally excluding an ID.
func (r *CourseRepository) ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM courses WHERE code = $1"
	args := []interface{}{code}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course code: %w", err)
	}
	return true, nil
}

// Create inserts a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, code, name, description, lecturer_id, credits, status, level, department, semester, academic_year, created_at, updated_at)
        VALUES (:id, :code, :name, :description, :lecturer_id, :credits, :status, :level, :department, :semester, :academic_year, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update modifies an existing course.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET code = :code, name = :name, description = :description, lecturer_id = :lecturer_id, credits = :credits, status = :status, level = :level, department = :department, semester = :semester, academic_year = :academic_year, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// Deactivate marks a course inactive without deleting history.
func (r *CourseRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE courses SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.CourseStatusInactive, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate course: %w", err)
	}
	return nil
}

// CountSessions returns the number of active sessions recorded for a course.
func (r *CourseRepository) CountSessions(ctx context.Context, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM sessions WHERE course_id = $1 AND active`
	var total int
	if err := r.db.GetContext(ctx, &total, query, courseID); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return total, nil
}
