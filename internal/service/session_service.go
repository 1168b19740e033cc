package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/univtrack/attendance-api/internal/models"
	appErrors "github.com/univtrack/attendance-api/pkg/errors"
)

var wallClockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

type sessionRepository interface {
	List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.SessionDetail, error)
	Create(ctx context.Context, session *models.Session) error
	Update(ctx context.Context, session *models.Session) error
	SetAttendanceOpen(ctx context.Context, id string, open bool) error
	Deactivate(ctx context.Context, id string) error
}

type sessionCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.CourseDetail, error)
}

// SessionService manages course sessions and the self check-in gate.
type SessionService struct {
	sessions  sessionRepository
	courses   sessionCourseRepository
	policy    *AccessPolicy
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSessionService constructs a SessionService.
func NewSessionService(sessions sessionRepository, courses sessionCourseRepository, policy *AccessPolicy, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &SessionService{sessions: sessions, courses: courses, policy: policy, validator: validate, logger: logger}
	svc.validator.RegisterValidation("wall_clock", func(fl validator.FieldLevel) bool {
		return wallClockPattern.MatchString(fl.Field().String())
	})
	return svc
}

// CreateSessionRequest carries the payload for scheduling a session.
type CreateSessionRequest struct {
	Name      string  `json:"name" validate:"required"`
	Date      string  `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string  `json:"start_time" validate:"required,wall_clock"`
	EndTime   string  `json:"end_time" validate:"required,wall_clock"`
	Location  *string `json:"location"`
}

// UpdateSessionRequest carries editable session fields.
type UpdateSessionRequest struct {
	Name           string  `json:"name" validate:"required"`
	Date           string  `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime      string  `json:"start_time" validate:"required,wall_clock"`
	EndTime        string  `json:"end_time" validate:"required,wall_clock"`
	Location       *string `json:"location"`
	AttendanceOpen *bool   `json:"attendance_open"`
}

// List returns sessions scoped to the actor's visible courses.
func (s *SessionService) List(ctx context.Context, actor Actor, filter models.SessionFilter) ([]models.SessionDetail, *models.Pagination, error) {
	switch actor.Role {
	case models.RoleLecturer:
		filter.LecturerID = actor.UserID
	case models.RoleStudent:
		filter.StudentID = actor.StudentID
	}

	sessions, total, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns one session; the actor must be allowed to view its course.
func (s *SessionService) Get(ctx context.Context, actor Actor, id string) (*models.SessionDetail, error) {
	session, err := s.findSession(ctx, id)
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
	return session, nil
}

// Create schedules a new session for a course. New sessions start with the
// check-in gate closed.
func (s *SessionService) Create(ctx context.Context, actor Actor, courseID string, req CreateSessionRequest) (*models.SessionDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	if req.StartTime >= req.EndTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start time must be before end time")
	}

	course, err := s.findCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.RequireCourseManage(actor, &course.Course); err != nil {
		return nil, err
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid session date")
	}

	session := &models.Session{
		CourseID:  courseID,
		Name:      req.Name,
		Date:      date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Location:  req.Location,
		Active:    true,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}

	s.logger.Info("session created", zap.String("session_id", session.ID), zap.String("course_id", courseID))
	return s.findSession(ctx, session.ID)
}

// Update edits an existing session.
func (s *SessionService) Update(ctx context.Context, actor Actor, id string, req UpdateSessionRequest) (*models.SessionDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	if req.StartTime >= req.EndTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start time must be before end time")
	}

	session, err := s.findSession(ctx, id)
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

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid session date")
	}

	session.Name = req.Name
	session.Date = date
	session.StartTime = req.StartTime
	session.EndTime = req.EndTime
	session.Location = req.Location
	if req.AttendanceOpen != nil {
		session.AttendanceOpen = *req.AttendanceOpen
	}

	if err := s.sessions.Update(ctx, &session.Session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
	}
	return s.findSession(ctx, id)
}

// OpenAttendance opens the self check-in gate for a session.
func (s *SessionService) OpenAttendance(ctx context.Context, actor Actor, id string) (*models.SessionDetail, error) {
	return s.setGate(ctx, actor, id, true)
}

// CloseAttendance closes the self check-in gate for a session.
func (s *SessionService) CloseAttendance(ctx context.Context, actor Actor, id string) (*models.SessionDetail, error) {
	return s.setGate(ctx, actor, id, false)
}

// Deactivate removes a session from listings and reports.
func (s *SessionService) Deactivate(ctx context.Context, actor Actor, id string) error {
	session, err := s.findSession(ctx, id)
	if err != nil {
		return err
	}
	course, err := s.findCourse(ctx, session.CourseID)
	if err != nil {
		return err
	}
	if err := s.policy.RequireCourseManage(actor, &course.Course); err != nil {
		return err
	}
	if err := s.sessions.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate session")
	}
	return nil
}

func (s *SessionService) setGate(ctx context.Context, actor Actor, id string, open bool) (*models.SessionDetail, error) {
	session, err := s.findSession(ctx, id)
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
	if err := s.sessions.SetAttendanceOpen(ctx, id, open); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to toggle attendance gate")
	}
	session.AttendanceOpen = open
	return session, nil
}

func (s *SessionService) findSession(ctx context.Context, id string) (*models.SessionDetail, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

func (s *SessionService) findCourse(ctx context.Context, id string) (*models.CourseDetail, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}
