package models

import "time"

// ReportFormat enumerates supported export encodings.
type ReportFormat string

const (
	ReportFormatCSV   ReportFormat = "csv"
	ReportFormatExcel ReportFormat = "excel"
	ReportFormatPDF   ReportFormat = "pdf"
)

// Valid returns true when the format is a supported value.
func (f ReportFormat) Valid() bool {
	switch f {
	case ReportFormatCSV, ReportFormatExcel, ReportFormatPDF:
		return true
	default:
		return false
	}
}

// SessionAttendanceEntry pairs a roster student with their cell for one session.
type SessionAttendanceEntry struct {
	Student    StudentDetail  `json:"student"`
	Attendance AttendanceCell `json:"attendance"`
}

// SessionAttendanceView is the lecturer/admin view of one session: every
// enrolled student appears exactly once, with a synthesized cell when no
// record exists.
type SessionAttendanceView struct {
	Session       SessionDetail            `json:"session"`
	Entries       []SessionAttendanceEntry `json:"entries"`
	TotalEnrolled int                      `json:"total_enrolled"`
	TotalPresent  int                      `json:"total_present"`
	TotalAbsent   int                      `json:"total_absent"`
}

// StudentAttendanceStats aggregates one student's stored records.
// AttendanceRate is computed over records found, not over all sessions the
// student could have attended; a student with no matching records has rate 0.
type StudentAttendanceStats struct {
	TotalSessions  int     `json:"total_sessions"`
	Present        int     `json:"present"`
	Late           int     `json:"late"`
	Absent         int     `json:"absent"`
	Excused        int     `json:"excused"`
	AttendanceRate float64 `json:"attendance_rate"`
}

// StudentAttendanceView is a student's record history plus statistics.
type StudentAttendanceView struct {
	Student    StudentDetail            `json:"student"`
	Records    []AttendanceRecordDetail `json:"records"`
	Statistics StudentAttendanceStats   `json:"statistics"`
}

// MatrixCell is one cell of the course matrix, keyed by session.
type MatrixCell struct {
	Session    Session        `json:"session"`
	Attendance AttendanceCell `json:"attendance"`
}

// MatrixRow is one student's row across every course session. The rate
// denominator here is the full session count, unlike StudentAttendanceStats.
type MatrixRow struct {
	Student    StudentDetail          `json:"student"`
	Cells      []MatrixCell           `json:"sessions"`
	Statistics StudentAttendanceStats `json:"statistics"`
}

// CourseMatrixView is the cross product of roster x sessions for a course.
type CourseMatrixView struct {
	Course        Course      `json:"course"`
	Sessions      []Session   `json:"sessions"`
	Rows          []MatrixRow `json:"attendance_matrix"`
	TotalStudents int         `json:"total_students"`
	TotalSessions int         `json:"total_sessions"`
	TotalRecords  int         `json:"total_records"`
}

// CourseSummary is one course block of the cross-course summary. Present,
// Late, Absent and Excused count stored records; Unmarked is the synthesized
// remainder of sessions x enrolled with no record at all.
type CourseSummary struct {
	Course         Course  `json:"course"`
	TotalSessions  int     `json:"total_sessions"`
	EnrolledCount  int     `json:"enrolled_students"`
	TotalRecords   int     `json:"total_records"`
	Present        int     `json:"present"`
	Late           int     `json:"late"`
	Absent         int     `json:"absent"`
	Excused        int     `json:"excused"`
	Unmarked       int     `json:"unmarked"`
	AttendanceRate float64 `json:"attendance_rate"`
}

// AttendanceSummary is the cross-course dashboard aggregate.
type AttendanceSummary struct {
	TotalCourses  int              `json:"total_courses"`
	TotalSessions int              `json:"total_sessions"`
	TotalRecords  int              `json:"total_records"`
	Counts        AttendanceCounts `json:"counts"`
	Courses       []CourseSummary  `json:"course_summaries"`
	GeneratedAt   time.Time        `json:"generated_at"`
}

// SummaryFilter scopes the cross-course summary.
type SummaryFilter struct {
	CourseID string
	DateFrom *time.Time
	DateTo   *time.Time
}

// DateRange bounds a report by session date, inclusive on both ends.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// Contains reports whether the date falls inside the range.
func (r DateRange) Contains(date time.Time) bool {
	if r.From != nil && date.Before(*r.From) {
		return false
	}
	if r.To != nil && date.After(*r.To) {
		return false
	}
	return true
}

// Empty reports whether the range places no bound at all.
func (r DateRange) Empty() bool {
	return r.From == nil && r.To == nil
}
