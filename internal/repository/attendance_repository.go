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

// AttendanceRepository manages stored attendance marks.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Find returns the record for a (session, student) pair if one exists.
func (r *AttendanceRepository) Find(ctx context.Context, sessionID, studentID string) (*models.AttendanceRecord, error) {
	const query = `SELECT id, session_id, student_id, status, marked_at, marked_by, notes
        FROM attendance_records WHERE session_id = $1 AND student_id = $2 LIMIT 1`
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, sessionID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance record: %w", err)
	}
	return &record, nil
}

// Create inserts a new attendance record.
func (r *AttendanceRepository) Create(ctx context.Context, record *models.AttendanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.MarkedAt.IsZero() {
		record.MarkedAt = time.Now().UTC()
	}
	const query = `INSERT INTO attendance_records (id, session_id, student_id, status, marked_at, marked_by, notes)
        VALUES (:id, :session_id, :student_id, :status, :marked_at, :marked_by, :notes)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create attendance record: %w", err)
	}
	return nil
}

// Upsert stores a mark for a (session, student) pair. A repeat mark keeps the
// original row identity and updates status, marked_at, marked_by and notes in
// place.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.MarkedAt.IsZero() {
		record.MarkedAt = time.Now().UTC()
	}
	const query = `INSERT INTO attendance_records (id, session_id, student_id, status, marked_at, marked_by, notes)
        VALUES (:id, :session_id, :student_id, :status, :marked_at, :marked_by, :notes)
        ON CONFLICT (session_id, student_id)
        DO UPDATE SET status = EXCLUDED.status, marked_at = EXCLUDED.marked_at, marked_by = EXCLUDED.marked_by, notes = EXCLUDED.notes`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("upsert attendance record: %w", err)
	}
	return nil
}

// ListBySession returns all stored records of one session.
func (r *AttendanceRepository) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	const query = `SELECT id, session_id, student_id, status, marked_at, marked_by, notes
        FROM attendance_records WHERE session_id = $1`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, sessionID); err != nil {
		return nil, fmt.Errorf("list session records: %w", err)
	}
	return records, nil
}

// ListBySessions returns every stored record across a set of sessions in one
// round trip. Course matrices fetch all their cells through this.
func (r *AttendanceRepository) ListBySessions(ctx context.Context, sessionIDs []string) ([]models.AttendanceRecord, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, session_id, student_id, status, marked_at, marked_by, notes
        FROM attendance_records WHERE session_id IN (?)`, sessionIDs)
	if err != nil {
		return nil, fmt.Errorf("build session records query: %w", err)
	}
	query = r.db.Rebind(query)
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list records by sessions: %w", err)
	}
	return records, nil
}

// ListByStudent returns a student's stored records joined with session and
// course context, newest session first.
func (r *AttendanceRepository) ListByStudent(ctx context.Context, studentID string, filter models.StudentRecordFilter) ([]models.AttendanceRecordDetail, error) {
	base := `FROM attendance_records ar
        JOIN sessions se ON se.id = ar.session_id
        JOIN courses c ON c.id = se.course_id`
	conditions := []string{"ar.student_id = $1", "se.active"}
	args := []interface{}{studentID}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("se.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("se.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("se.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	query := fmt.Sprintf(`SELECT ar.id, ar.session_id, ar.student_id, ar.status, ar.marked_at, ar.marked_by, ar.notes,
        se.name AS session_name, se.date AS session_date, se.start_time, se.end_time, se.location,
        c.id AS course_id, c.code AS course_code, c.name AS course_name
        %s WHERE %s ORDER BY se.date DESC, se.start_time DESC`, base, strings.Join(conditions, " AND "))

	var records []models.AttendanceRecordDetail
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list student records: %w", err)
	}
	return records, nil
}
