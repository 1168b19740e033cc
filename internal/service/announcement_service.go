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

type announcementRepository interface {
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error)
	FindByID(ctx context.Context, id string) (*models.Announcement, error)
	Create(ctx context.Context, announcement *models.Announcement) error
	Update(ctx context.Context, announcement *models.Announcement) error
	Deactivate(ctx context.Context, id string) error
}

type announcementCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.CourseDetail, error)
	All(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, error)
}

type announcementEnrollmentRepository interface {
	ActiveCourseIDs(ctx context.Context, studentID string) ([]string, error)
}

// AnnouncementService manages announcements and their role visibility.
type AnnouncementService struct {
	announcements announcementRepository
	courses       announcementCourseRepository
	enrollments   announcementEnrollmentRepository
	policy        *AccessPolicy
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewAnnouncementService constructs an AnnouncementService.
func NewAnnouncementService(announcements announcementRepository, courses announcementCourseRepository, enrollments announcementEnrollmentRepository, policy *AccessPolicy, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AnnouncementService{announcements: announcements, courses: courses, enrollments: enrollments, policy: policy, validator: validate, logger: logger}
	svc.validator.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		return models.AnnouncementPriority(strings.ToUpper(fl.Field().String())).Valid()
	})
	return svc
}

// CreateAnnouncementRequest carries the payload for posting an announcement.
// Exactly one of CourseID or Global must be set.
type CreateAnnouncementRequest struct {
	Title    string  `json:"title" validate:"required"`
	Content  string  `json:"content" validate:"required"`
	CourseID *string `json:"course_id"`
	Global   bool    `json:"global"`
	Priority string  `json:"priority" validate:"required,priority"`
}

// UpdateAnnouncementRequest carries editable announcement fields.
type UpdateAnnouncementRequest struct {
	Title    string `json:"title" validate:"required"`
	Content  string `json:"content" validate:"required"`
	Priority string `json:"priority" validate:"required,priority"`
}

// ListAnnouncementsRequest filters the listing.
type ListAnnouncementsRequest struct {
	CourseID string `json:"course_id"`
	Priority string `json:"priority" validate:"omitempty,priority"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// List returns announcements the actor may see, highest priority first.
func (s *AnnouncementService) List(ctx context.Context, actor Actor, req ListAnnouncementsRequest) ([]models.Announcement, *models.Pagination, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement filter")
	}

	var enrolledIDs, taughtIDs []string
	switch actor.Role {
	case models.RoleStudent:
		ids, err := s.enrollments.ActiveCourseIDs(ctx, actor.StudentID)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
		}
		enrolledIDs = ids
	case models.RoleLecturer:
		taught, err := s.courses.All(ctx, models.CourseFilter{LecturerID: actor.UserID})
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
		}
		taughtIDs = make([]string, len(taught))
		for i, course := range taught {
			taughtIDs[i] = course.ID
		}
	}

	filter := s.policy.AnnouncementFilterFor(actor, enrolledIDs, taughtIDs)
	filter.CourseID = req.CourseID
	filter.Priority = models.AnnouncementPriority(strings.ToUpper(req.Priority))
	filter.Page = req.Page
	filter.PageSize = req.PageSize

	announcements, total, err := s.announcements.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}
	return announcements, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Create posts an announcement. Global posts are admin-only; course posts
// require management rights on the course.
func (s *AnnouncementService) Create(ctx context.Context, actor Actor, req CreateAnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}
	if req.Global == (req.CourseID != nil) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "announcement must target exactly one of a course or everyone")
	}

	if req.Global {
		if actor.Role != models.RoleAdmin {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators may post global announcements")
		}
	} else {
		course, err := s.courses.FindByID(ctx, *req.CourseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
		if err := s.policy.RequireCourseManage(actor, &course.Course); err != nil {
			return nil, err
		}
	}

	announcement := &models.Announcement{
		Title:    req.Title,
		Content:  req.Content,
		AuthorID: actor.UserID,
		CourseID: req.CourseID,
		Global:   req.Global,
		Priority: models.AnnouncementPriority(strings.ToUpper(req.Priority)),
		Active:   true,
	}
	if err := s.announcements.Create(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create announcement")
	}

	s.logger.Info("announcement posted", zap.String("announcement_id", announcement.ID), zap.Bool("global", announcement.Global))
	return announcement, nil
}

// Update edits an announcement. Only the author or an admin may edit.
func (s *AnnouncementService) Update(ctx context.Context, actor Actor, id string, req UpdateAnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}

	announcement, err := s.findActive(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin && announcement.AuthorID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "announcement belongs to another author")
	}

	announcement.Title = req.Title
	announcement.Content = req.Content
	announcement.Priority = models.AnnouncementPriority(strings.ToUpper(req.Priority))

	if err := s.announcements.Update(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update announcement")
	}
	return announcement, nil
}

// Delete soft deletes an announcement. Only the author or an admin may delete.
func (s *AnnouncementService) Delete(ctx context.Context, actor Actor, id string) error {
	announcement, err := s.findActive(ctx, id)
	if err != nil {
		return err
	}
	if actor.Role != models.RoleAdmin && announcement.AuthorID != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "announcement belongs to another author")
	}
	if err := s.announcements.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete announcement")
	}
	return nil
}

func (s *AnnouncementService) findActive(ctx context.Context, id string) (*models.Announcement, error) {
	announcement, err := s.announcements.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}
	if !announcement.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
	}
	return announcement, nil
}
