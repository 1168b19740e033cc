package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/univtrack/attendance-api/internal/models"
)

// SessionRepository manages persistence for course sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionDetailColumns = `se.id, se.course_id, se.name, se.date, se.start_time, se.end_time, se.location, se.active, se.attendance_open, se.created_at,
        c.code AS course_code, c.name AS course_name`

// List returns sessions matching the provided filters.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, int, error) {
	base := "FROM sessions se JOIN courses c ON c.id = se.course_id"
	conditions := []string{"se.active"}
	var args []interface{}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("se.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.LecturerID != "" {
		conditions = append(conditions, fmt.Sprintf("c.lecturer_id = $%d", len(args)+1))
		args = append(args, filter.LecturerID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM enrollments e WHERE e.course_id = se.course_id AND e.student_id = $%d AND e.active)", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("se.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("se.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
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

	query := fmt.Sprintf(`SELECT %s %s ORDER BY se.date DESC, se.start_time DESC LIMIT %d OFFSET %d`, sessionDetailColumns, base, size, offset)

	var sessions []models.SessionDetail
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}
	return sessions, total, nil
}

// ListByCourse returns every active session of a course in chronological
// order. Report matrices depend on this ordering for their column layout.
func (r *SessionRepository) ListByCourse(ctx context.Context, courseID string) ([]models.SessionDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions se JOIN courses c ON c.id = se.course_id
        WHERE se.course_id = $1 AND se.active
        ORDER BY se.date ASC, se.start_time ASC`, sessionDetailColumns)
	var sessions []models.SessionDetail
	if err := r.db.SelectContext(ctx, &sessions, query, courseID); err != nil {
		return nil, fmt.Errorf("list course sessions: %w", err)
	}
	return sessions, nil
}

// FindByID fetches a session with its course context.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.SessionDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions se JOIN courses c ON c.id = se.course_id WHERE se.id = $1 LIMIT 1`, sessionDetailColumns)
	var detail models.SessionDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create inserts a new session.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO sessions (id, course_id, name, date, start_time, end_time, location, active, attendance_open, created_at)
        VALUES (:id, :course_id, :name, :date, :start_time, :end_time, :location, :active, :attendance_open, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Update modifies an existing session.
func (r *SessionRepository) Update(ctx context.Context, session *models.Session) error {
	const query = `UPDATE sessions SET name = :name, date = :date, start_time = :start_time, end_time = :end_time, location = :location, attendance_open = :attendance_open WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// SetAttendanceOpen toggles the self check-in gate for a session.
func (r *SessionRepository) SetAttendanceOpen(ctx context.Context, id string, open bool) error {
	const query = `UPDATE sessions SET attendance_open = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, open); err != nil {
		return fmt.Errorf("set attendance open: %w", err)
	}
	return nil
}

// Deactivate hides a session from listings and reports.
func (r *SessionRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE sessions SET active = FALSE, attendance_open = FALSE WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	return nil
}
