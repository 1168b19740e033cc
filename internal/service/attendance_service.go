package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/univtrack/attendance-api/internal/models"
	appErrors "github.com/univtrack/attendance-api/pkg/errors"
)

type attendanceRepository interface {
	Find(ctx context.Context, sessionID, studentID string) (*models.AttendanceRecord, error)
	Create(ctx context.Context, record *models.AttendanceRecord) error
	Upsert(ctx context.Context, record *models.AttendanceRecord) error
	ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error)
	ListBySessions(ctx context.Context, sessionIDs []string) ([]models.AttendanceRecord, error)
	ListByStudent(ctx context.Context, studentID string, filter models.StudentRecordFilter) ([]models.AttendanceRecordDetail, error)
}

type attendanceSessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.SessionDetail, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.SessionDetail, error)
}

type attendanceCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.CourseDetail, error)
}

type attendanceEnrollmentRepository interface {
	IsActivelyEnrolled(ctx context.Context, studentID, courseID string) (bool, error)
	Roster(ctx context.Context, courseID string) ([]models.EnrollmentDetail, error)
}

type attendanceStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

// AttendanceService owns check-in, marking and the attendance views.
type AttendanceService struct {
	records     attendanceRepository
	sessions    attendanceSessionRepository
	courses     attendanceCourseRepository
	enrollments attendanceEnrollmentRepository
	students    attendanceStudentRepository
	policy      *AccessPolicy
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(records attendanceRepository, sessions attendanceSessionRepository, courses attendanceCourseRepository, enrollments attendanceEnrollmentRepository, students attendanceStudentRepository, policy *AccessPolicy, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AttendanceService{
		records:     records,
		sessions:    sessions,
		courses:     courses,
		enrollments: enrollments,
		students:    students,
		policy:      policy,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
	svc.validator.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(strings.ToUpper(fl.Field().String())).Valid()
	})
	return svc
}

// MarkAttendanceRequest is a lecturer's mark for one student on one session.
type MarkAttendanceRequest struct {
	StudentID string  `json:"student_id" validate:"required"`
	Status    string  `json:"status" validate:"required,attendance_status"`
	Notes     *string `json:"notes"`
}

// CheckIn records a student's own attendance on an open session. The stored
// status is LATE when the check-in lands strictly after the session's start
// time on the clock, PRESENT otherwise.
func (s *AttendanceService) CheckIn(ctx context.Context, actor Actor, sessionID string) (*models.AttendanceRecord, error) {
	if actor.StudentID == "" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "check-in requires a student profile")
	}

	session, err := s.findSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Active || !session.AttendanceOpen {
		return nil, appErrors.Clone(appErrors.ErrSessionClosed, "attendance is not open for this session")
	}

	enrolled, err := s.enrollments.IsActivelyEnrolled(ctx, actor.StudentID, session.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrNotEnrolled, "not enrolled in this course")
	}

	if _, err := s.records.Find(ctx, sessionID, actor.StudentID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrDuplicateCheckIn, "already checked in for this session")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing record")
	}

	now := s.now().UTC()
	markedBy := actor.UserID
	record := &models.AttendanceRecord{
		SessionID: sessionID,
		StudentID: actor.StudentID,
		Status:    classifyCheckIn(now, session.StartTime),
		MarkedAt:  now,
		MarkedBy:  &markedBy,
	}
	if err := s.records.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store check-in")
	}

	s.metrics.RecordCheckIn(string(record.Status))
	s.logger.Info("student checked in",
		zap.String("session_id", sessionID),
		zap.String("student_id", actor.StudentID),
		zap.String("status", string(record.Status)))
	return record, nil
}

// Mark stores a lecturer's mark for a student. Remarking the same student
// keeps the original row and updates it in place, so the operation is safe
// to repeat.
func (s *AttendanceService) Mark(ctx context.Context, actor Actor, sessionID string, req MarkAttendanceRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	session, err := s.findSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	course, err := s.findCourse(ctx, session.CourseID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.RequireCourseManage(actor, &course.Course); err != nil {
		return nil, err
	}

	enrolled, err := s.enrollments.IsActivelyEnrolled(ctx, req.StudentID, session.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrNotEnrolled, "student is not enrolled in this course")
	}

	record := &models.AttendanceRecord{
		SessionID: sessionID,
		StudentID: req.StudentID,
		Status:    models.AttendanceStatus(strings.ToUpper(req.Status)),
		MarkedAt:  s.now().UTC(),
		MarkedBy:  &actor.UserID,
		Notes:     req.Notes,
	}
	if existing, err := s.records.Find(ctx, sessionID, req.StudentID); err == nil {
		record.ID = existing.ID
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing record")
	}

	if err := s.records.Upsert(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attendance")
	}
	return record, nil
}

// SessionView builds the per-session view: every active roster member appears
// exactly once, with a synthesized absence for those without a stored record.
func (s *AttendanceService) SessionView(ctx context.Context, actor Actor, sessionID string) (*models.SessionAttendanceView, error) {
	session, err := s.findSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	course, err := s.findCourse(ctx, session.CourseID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.RequireCourseView(ctx, actor, &course.Course); err != nil {
		return nil, err
	}

	roster, err := s.enrollments.Roster(ctx, session.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	records, err := s.records.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load records")
	}

	byStudent := make(map[string]models.AttendanceRecord, len(records))
	for _, record := range records {
		byStudent[record.StudentID] = record
	}

	view := &models.SessionAttendanceView{
		Session:       *session,
		Entries:       make([]models.SessionAttendanceEntry, 0, len(roster)),
		TotalEnrolled: len(roster),
	}
	for _, member := range roster {
		cell := models.SynthesizedAbsent()
		if record, ok := byStudent[member.StudentID]; ok {
			cell = models.RecordedCell(record)
			if record.Status.Attended() {
				view.TotalPresent++
			}
		} else {
			view.TotalAbsent++
		}
		view.Entries = append(view.Entries, models.SessionAttendanceEntry{
			Student:    rosterStudent(member),
			Attendance: cell,
		})
	}
	return view, nil
}

// StudentView returns one student's record history with statistics. The rate
// is computed over the records found; a student with no records has rate 0.
func (s *AttendanceService) StudentView(ctx context.Context, actor Actor, studentID string, filter models.StudentRecordFilter) (*models.StudentAttendanceView, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	switch actor.Role {
	case models.RoleStudent:
		if actor.StudentID != studentID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "students may only view their own attendance")
		}
	case models.RoleLecturer:
		if filter.CourseID == "" {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "lecturers must scope student attendance to a course")
		}
		course, err := s.findCourse(ctx, filter.CourseID)
		if err != nil {
			return nil, err
		}
		if err := s.policy.RequireCourseManage(actor, &course.Course); err != nil {
			return nil, err
		}
	}

	records, err := s.records.ListByStudent(ctx, studentID, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load records")
	}

	stats := models.StudentAttendanceStats{TotalSessions: len(records)}
	var counts models.AttendanceCounts
	for _, record := range records {
		counts.Add(record.Status)
	}
	stats.Present = counts.Present
	stats.Late = counts.Late
	stats.Absent = counts.Absent
	stats.Excused = counts.Excused
	if len(records) > 0 {
		stats.AttendanceRate = float64(counts.Present+counts.Late) / float64(len(records)) * 100
	}

	return &models.StudentAttendanceView{
		Student:    *student,
		Records:    records,
		Statistics: stats,
	}, nil
}

// CourseMatrix builds the roster x sessions matrix of a course. Every cell is
// either a stored record or a synthesized absence; per-student rates here use
// the full session count as denominator, unlike the history view.
func (s *AttendanceService) CourseMatrix(ctx context.Context, actor Actor, courseID string) (*models.CourseMatrixView, error) {
	course, err := s.findCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.RequireCourseView(ctx, actor, &course.Course); err != nil {
		return nil, err
	}

	sessions, err := s.sessions.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sessions")
	}
	roster, err := s.enrollments.Roster(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	sessionIDs := make([]string, len(sessions))
	for i, session := range sessions {
		sessionIDs[i] = session.ID
	}
	records, err := s.records.ListBySessions(ctx, sessionIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load records")
	}

	type cellKey struct{ sessionID, studentID string }
	byCell := make(map[cellKey]models.AttendanceRecord, len(records))
	for _, record := range records {
		byCell[cellKey{record.SessionID, record.StudentID}] = record
	}

	view := &models.CourseMatrixView{
		Course:        course.Course,
		Sessions:      make([]models.Session, len(sessions)),
		Rows:          make([]models.MatrixRow, 0, len(roster)),
		TotalStudents: len(roster),
		TotalSessions: len(sessions),
		TotalRecords:  len(records),
	}
	for i, session := range sessions {
		view.Sessions[i] = session.Session
	}

	for _, member := range roster {
		row := models.MatrixRow{
			Student: rosterStudent(member),
			Cells:   make([]models.MatrixCell, 0, len(sessions)),
		}
		var counts models.AttendanceCounts
		for _, session := range sessions {
			cell := models.SynthesizedAbsent()
			if record, ok := byCell[cellKey{session.ID, member.StudentID}]; ok {
				cell = models.RecordedCell(record)
			}
			counts.Add(cell.Status)
			row.Cells = append(row.Cells, models.MatrixCell{Session: session.Session, Attendance: cell})
		}
		row.Statistics = models.StudentAttendanceStats{
			TotalSessions: len(sessions),
			Present:       counts.Present,
			Late:          counts.Late,
			Absent:        counts.Absent,
			Excused:       counts.Excused,
		}
		if len(sessions) > 0 {
			row.Statistics.AttendanceRate = float64(counts.Present+counts.Late) / float64(len(sessions)) * 100
		}
		view.Rows = append(view.Rows, row)
	}
	return view, nil
}

// classifyCheckIn compares the check-in wall clock against the session start.
// Exactly on time still counts as present.
func classifyCheckIn(now time.Time, startTime string) models.AttendanceStatus {
	if now.Format("15:04") > startTime {
		return models.AttendanceStatusLate
	}
	return models.AttendanceStatusPresent
}

// rosterStudent reshapes a roster row into the student detail used by views.
func rosterStudent(member models.EnrollmentDetail) models.StudentDetail {
	return models.StudentDetail{
		Student: models.Student{
			ID:          member.StudentID,
			StudentID:   member.StudentCode,
			Department:  member.Department,
			YearOfStudy: member.YearOfStudy,
		},
		FirstName: member.FirstName,
		LastName:  member.LastName,
	}
}

func (s *AttendanceService) findSession(ctx context.Context, id string) (*models.SessionDetail, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

func (s *AttendanceService) findCourse(ctx context.Context, id string) (*models.CourseDetail, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}
