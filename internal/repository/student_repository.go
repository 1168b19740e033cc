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

// StudentRepository manages persistence for student profiles.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentDetailColumns = `s.id, s.user_id, s.student_id, s.department, s.year_of_study, s.created_at,
        u.email, u.first_name, u.last_name`

// List returns student profiles matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	base := "FROM students s JOIN users u ON u.id = s.user_id"
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("s.department = $%d", len(args)+1))
		args = append(args, filter.Department)
	}
	if filter.Year > 0 {
		conditions = append(conditions, fmt.Sprintf("s.year_of_study = $%d", len(args)+1))
		args = append(args, filter.Year)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(u.first_name) LIKE $%d OR LOWER(u.last_name) LIKE $%d OR LOWER(s.student_id) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
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

	query := fmt.Sprintf(`SELECT %s %s ORDER BY s.student_id ASC LIMIT %d OFFSET %d`, studentDetailColumns, base, size, offset)

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student profile by its identifier.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM students s JOIN users u ON u.id = s.user_id WHERE s.id = $1 LIMIT 1`, studentDetailColumns)
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByUserID fetches the student profile attached to a user account.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM students s JOIN users u ON u.id = s.user_id WHERE s.user_id = $1 LIMIT 1`, studentDetailColumns)
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, userID); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsByStudentID checks if the institutional student code is already taken.
func (r *StudentRepository) ExistsByStudentID(ctx context.Context, studentID string) (bool, error) {
	const query = `SELECT 1 FROM students WHERE student_id = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student id: %w", err)
	}
	return true, nil
}

// Create inserts a new student profile.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	if student.CreatedAt.IsZero() {
		student.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO students (id, user_id, student_id, department, year_of_study, created_at)
        VALUES (:id, :user_id, :student_id, :department, :year_of_study, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies an existing student profile.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	const query = `UPDATE students SET department = :department, year_of_study = :year_of_study WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}
