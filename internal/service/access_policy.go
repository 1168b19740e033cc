package service

import (
	"context"

	"github.com/univtrack/attendance-api/internal/models"
	appErrors "github.com/univtrack/attendance-api/pkg/errors"
)

type policyEnrollmentRepository interface {
	IsActivelyEnrolled(ctx context.Context, studentID, courseID string) (bool, error)
}

// AccessPolicy centralises the per-role visibility rules for course-scoped
// resources. Admins see everything, lecturers see courses they teach, and
// students see courses they are actively enrolled in. Handlers and services
// consult this one type instead of re-deriving the rules locally.
type AccessPolicy struct {
	enrollments policyEnrollmentRepository
}

// NewAccessPolicy constructs an AccessPolicy.
func NewAccessPolicy(enrollments policyEnrollmentRepository) *AccessPolicy {
	return &AccessPolicy{enrollments: enrollments}
}

// Actor is the authenticated principal a policy decision runs against.
// StudentID is the student profile row ID, set only for STUDENT users.
type Actor struct {
	UserID    string
	Role      models.UserRole
	StudentID string
}

// CanViewCourse reports whether the actor may read the course and its
// sessions, roster and reports.
func (p *AccessPolicy) CanViewCourse(ctx context.Context, actor Actor, course *models.Course) (bool, error) {
	switch actor.Role {
	case models.RoleAdmin:
		return true, nil
	case models.RoleLecturer:
		return course.LecturerID == actor.UserID, nil
	case models.RoleStudent:
		if actor.StudentID == "" {
			return false, nil
		}
		return p.enrollments.IsActivelyEnrolled(ctx, actor.StudentID, course.ID)
	default:
		return false, nil
	}
}

// CanManageCourse reports whether the actor may mutate the course, its
// sessions and its attendance records. Students never can.
func (p *AccessPolicy) CanManageCourse(actor Actor, course *models.Course) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleLecturer:
		return course.LecturerID == actor.UserID
	default:
		return false
	}
}

// RequireCourseView returns ErrForbidden when the actor may not read the course.
func (p *AccessPolicy) RequireCourseView(ctx context.Context, actor Actor, course *models.Course) error {
	ok, err := p.CanViewCourse(ctx, actor, course)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to evaluate course access")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, "no access to this course")
	}
	return nil
}

// RequireCourseManage returns ErrForbidden when the actor may not mutate the course.
func (p *AccessPolicy) RequireCourseManage(actor Actor, course *models.Course) error {
	if !p.CanManageCourse(actor, course) {
		return appErrors.Clone(appErrors.ErrForbidden, "course is managed by another lecturer")
	}
	return nil
}

// AnnouncementFilterFor narrows an announcement listing to what the actor may
// see: students get global plus enrolled-course rows, lecturers get global
// plus taught-course plus authored rows, admins are unrestricted.
func (p *AccessPolicy) AnnouncementFilterFor(actor Actor, enrolledCourseIDs, taughtCourseIDs []string) models.AnnouncementFilter {
	switch actor.Role {
	case models.RoleAdmin:
		return models.AnnouncementFilter{Unrestricted: true}
	case models.RoleLecturer:
		return models.AnnouncementFilter{
			IncludeGlobal: true,
			CourseIDs:     taughtCourseIDs,
			AuthorID:      actor.UserID,
		}
	default:
		return models.AnnouncementFilter{
			IncludeGlobal: true,
			CourseIDs:     enrolledCourseIDs,
		}
	}
}
