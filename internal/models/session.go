package models

import "time"

// Session is one scheduled meeting of a course. StartTime and EndTime are
// wall-clock times in "HH:MM" form; Date carries the day. AttendanceOpen
// gates student self check-in.
type Session struct {
	ID             string    `db:"id" json:"id"`
	CourseID       string    `db:"course_id" json:"course_id"`
	Name           string    `db:"name" json:"name"`
	Date           time.Time `db:"date" json:"date"`
	StartTime      string    `db:"start_time" json:"start_time"`
	EndTime        string    `db:"end_time" json:"end_time"`
	Location       *string   `db:"location" json:"location,omitempty"`
	Active         bool      `db:"active" json:"active"`
	AttendanceOpen bool      `db:"attendance_open" json:"attendance_open"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// SessionDetail adds course context to a session row.
type SessionDetail struct {
	Session
	CourseCode string `db:"course_code" json:"course_code"`
	CourseName string `db:"course_name" json:"course_name"`
}

// SessionFilter scopes session listing queries.
type SessionFilter struct {
	CourseID   string
	LecturerID string
	StudentID  string
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       int
	PageSize   int
}
