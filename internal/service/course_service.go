package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/univtrack/attendance-api/internal/models"
	appErrors "github.com/univtrack/attendance-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.CourseDetail, error)
	ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Deactivate(ctx context.Context, id string) error
}

type courseEnrollmentRepository interface {
	Find(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	SetActive(ctx context.Context, id string, active bool) error
	Roster(ctx context.Context, courseID string) ([]models.EnrollmentDetail, error)
}

// CourseService manages courses and their rosters.
type CourseService struct {
	courses     courseRepository
	enrollments courseEnrollmentRepository
	policy      *AccessPolicy
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCourseService constructs a CourseService.
func NewCourseService(courses courseRepository, enrollments courseEnrollmentRepository, policy *AccessPolicy, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &CourseService{courses: courses, enrollments: enrollments, policy: policy, validator: validate, logger: logger}
	svc.validator.RegisterValidation("course_status", func(fl validator.FieldLevel) bool {
		return models.CourseStatus(strings.ToUpper(fl.Field().String())).Valid()
	})
	return svc
}

// CreateCourseRequest carries the payload for creating a course.
type CreateCourseRequest struct {
	Code         string  `json:"code" validate:"required"`
	Name         string  `json:"name" validate:"required"`
	Description  *string `json:"description"`
	LecturerID   string  `json:"lecturer_id" validate:"required"`
	Credits      int     `json:"credits" validate:"required,min=1"`
	Level        int     `json:"level" validate:"required,min=1"`
	Department   string  `json:"department" validate:"required"`
	Semester     *string `json:"semester"`
	AcademicYear *string `json:"academic_year"`
}

// UpdateCourseRequest carries editable course fields.
type UpdateCourseRequest struct {
	Name         string  `json:"name" validate:"required"`
	Description  *string `json:"description"`
	Credits      int     `json:"credits" validate:"required,min=1"`
	Status       string  `json:"status" validate:"required,course_status"`
	Level        int     `json:"level" validate:"required,min=1"`
	Department   string  `json:"department" validate:"required"`
	Semester     *string `json:"semester"`
	AcademicYear *string `json:"academic_year"`
}

// EnrollRequest adds a student to a course roster. Students enrolling
// themselves may omit the body entirely.
type EnrollRequest struct {
	StudentID string `json:"student_id"`
}

// List returns courses scoped to the actor: lecturers see taught courses,
// students see enrolled courses, admins see everything.
func (s *CourseService) List(ctx context.Context, actor Actor, filter models.CourseFilter) ([]models.CourseDetail, *models.Pagination, error) {
	switch actor.Role {
	case models.RoleLecturer:
		filter.LecturerID = actor.UserID
	case models.RoleStudent:
		filter.StudentID = actor.StudentID
	}

	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns one course; the actor must be allowed to view it.
func (s *CourseService) Get(ctx context.Context, actor Actor, id string) (*models.CourseDetail, error) {
	course, err := s.findCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.RequireCourseView(ctx, actor, &course.Course); err != nil {
		return nil, err
	}
	return course, nil
}

// Create registers a new course. Lecturers always become the lecturer of
// record for courses they create; admins assign any lecturer.
func (s *CourseService) Create(ctx context.Context, actor Actor, req CreateCourseRequest) (*models.CourseDetail, error) {
	if actor.Role == models.RoleLecturer {
		req.LecturerID = actor.UserID
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	taken, err := s.courses.ExistsByCode(ctx, req.Code, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course code")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course code is already in use")
	}

	course := &models.Course{
		Code:         strings.ToUpper(req.Code),
		Name:         req.Name,
		Description:  req.Description,
		LecturerID:   req.LecturerID,
		Credits:      req.Credits,
		Status:       models.CourseStatusActive,
		Level:        req.Level,
		Department:   req.Department,
		Semester:     req.Semester,
		AcademicYear: req.AcademicYear,
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("code", course.Code))
	return s.findCourse(ctx, course.ID)
}

// Update edits an existing course. Lecturers may only edit their own.
func (s *CourseService) Update(ctx context.Context, actor Actor, id string, req UpdateCourseRequest) (*models.CourseDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course, err := s.findCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.RequireCourseManage(actor, &course.Course); err != nil {
		return nil, err
	}

	course.Name = req.Name
	course.Description = req.Description
	course.Credits = req.Credits
	course.Status = models.CourseStatus(strings.ToUpper(req.Status))
	course.Level = req.Level
	course.Department = req.Department
	course.Semester = req.Semester
	course.AcademicYear = req.AcademicYear

	if err := s.courses.Update(ctx, &course.Course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	return s.findCourse(ctx, id)
}

// Deactivate marks a course inactive. History remains queryable.
func (s *CourseService) Deactivate(ctx context.Context, actor Actor, id string) error {
	course, err := s.findCourse(ctx, id)
	if err != nil {
		return err
	}
	if err := s.policy.RequireCourseManage(actor, &course.Course); err != nil {
		return err
	}
	if err := s.courses.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate course")
	}
	return nil
}

// Enroll adds a student to a course roster. Students enroll themselves into
// ACTIVE courses; staff enroll any student into courses they manage.
// Re-enrolling a soft-removed student reactivates the original row; an
// already active membership is a duplicate-enrollment conflict.
func (s *CourseService) Enroll(ctx context.Context, actor Actor, courseID string, req EnrollRequest) (*models.Enrollment, error) {
	course, err := s.findCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.Status != models.CourseStatusActive {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course is not active")
	}

	var studentID string
	if actor.Role == models.RoleStudent {
		if actor.StudentID == "" {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no student profile for account")
		}
		if req.StudentID != "" && req.StudentID != actor.StudentID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "students may only enroll themselves")
		}
		studentID = actor.StudentID
	} else {
		if err := s.policy.RequireCourseManage(actor, &course.Course); err != nil {
			return nil, err
		}
		if req.StudentID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
		}
		studentID = req.StudentID
	}

	existing, err := s.enrollments.Find(ctx, studentID, courseID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}

	if existing != nil {
		if existing.Active {
			return nil, appErrors.Clone(appErrors.ErrDuplicateEnrollment, "student is already enrolled in this course")
		}
		if err := s.enrollments.SetActive(ctx, existing.ID, true); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reactivate enrollment")
		}
		existing.Active = true
		return existing, nil
	}

	enrollment := &models.Enrollment{
		StudentID: studentID,
		CourseID:  courseID,
		Active:    true,
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.logger.Info("student enrolled", zap.String("course_id", courseID), zap.String("student_id", studentID))
	return enrollment, nil
}

// Unenroll soft-removes a student from a course roster.
func (s *CourseService) Unenroll(ctx context.Context, actor Actor, courseID, studentID string) error {
	course, err := s.findCourse(ctx, courseID)
	if err != nil {
		return err
	}
	if err := s.policy.RequireCourseManage(actor, &course.Course); err != nil {
		return err
	}

	enrollment, err := s.enrollments.Find(ctx, studentID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if !enrollment.Active {
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}

	if err := s.enrollments.SetActive(ctx, enrollment.ID, false); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove enrollment")
	}
	return nil
}

// Roster lists the active members of a course ordered by student code.
func (s *CourseService) Roster(ctx context.Context, actor Actor, courseID string) ([]models.EnrollmentDetail, error) {
	course, err := s.findCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.RequireCourseView(ctx, actor, &course.Course); err != nil {
		return nil, err
	}

	roster, err := s.enrollments.Roster(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	return roster, nil
}

func (s *CourseService) findCourse(ctx context.Context, id string) (*models.CourseDetail, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}
