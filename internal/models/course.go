package models

import "time"

// CourseStatus represents the lifecycle of a course.
type CourseStatus string

const (
	CourseStatusActive    CourseStatus = "ACTIVE"
	CourseStatusInactive  CourseStatus = "INACTIVE"
	CourseStatusCompleted CourseStatus = "COMPLETED"
)

// Valid returns true when the status is a supported value.
func (s CourseStatus) Valid() bool {
	switch s {
	case CourseStatusActive, CourseStatusInactive, CourseStatusCompleted:
		return true
	default:
		return false
	}
}

// Course represents a taught course owned by a lecturer.
type Course struct {
	ID           string       `db:"id" json:"id"`
	Code         string       `db:"code" json:"code"`
	Name         string       `db:"name" json:"name"`
	Description  *string      `db:"description" json:"description,omitempty"`
	LecturerID   string       `db:"lecturer_id" json:"lecturer_id"`
	Credits      int          `db:"credits" json:"credits"`
	Status       CourseStatus `db:"status" json:"status"`
	Level        int          `db:"level" json:"level"`
	Department   string       `db:"department" json:"department"`
	Semester     *string      `db:"semester" json:"semester,omitempty"`
	AcademicYear *string      `db:"academic_year" json:"academic_year,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// CourseDetail adds roster and session counts for list/detail responses.
type CourseDetail struct {
	Course
	TotalStudents int `db:"total_students" json:"total_students"`
	TotalSessions int `db:"total_sessions" json:"total_sessions"`
}

// CourseFilter scopes course listing queries.
type CourseFilter struct {
	LecturerID string
	StudentID  string
	Department string
	Level      int
	Status     CourseStatus
	Page       int
	PageSize   int
}
