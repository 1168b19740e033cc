package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "PRESENT"
	AttendanceStatusAbsent  AttendanceStatus = "ABSENT"
	AttendanceStatusLate    AttendanceStatus = "LATE"
	AttendanceStatusExcused AttendanceStatus = "EXCUSED"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// Attended reports whether the status counts towards attendance rates.
func (s AttendanceStatus) Attended() bool {
	return s == AttendanceStatusPresent || s == AttendanceStatusLate
}

// AttendanceRecord is a stored mark for one student on one session. The
// (session, student) pair is unique; repeat marks update in place. Absence
// of a row for an enrolled student is an implicit absence, not a stored one.
type AttendanceRecord struct {
	ID        string           `db:"id" json:"id"`
	SessionID string           `db:"session_id" json:"session_id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Status    AttendanceStatus `db:"status" json:"status"`
	MarkedAt  time.Time        `db:"marked_at" json:"marked_at"`
	MarkedBy  *string          `db:"marked_by" json:"marked_by,omitempty"`
	Notes     *string          `db:"notes" json:"notes,omitempty"`
}

// CellSource distinguishes stored marks from synthesized absences.
type CellSource string

const (
	CellSourceRecorded    CellSource = "RECORDED"
	CellSourceSynthesized CellSource = "SYNTHESIZED"
)

// AttendanceCell is one cell of an attendance view: either a recorded mark
// or a synthesized absence for an enrolled student with no row. Aggregation
// code works on cells so it never branches on a missing record.
type AttendanceCell struct {
	Status AttendanceStatus  `json:"status"`
	Source CellSource        `json:"source"`
	Record *AttendanceRecord `json:"record,omitempty"`
}

// RecordedCell wraps a stored record into a cell.
func RecordedCell(record AttendanceRecord) AttendanceCell {
	r := record
	return AttendanceCell{Status: record.Status, Source: CellSourceRecorded, Record: &r}
}

// SynthesizedAbsent builds the virtual cell for an enrolled student with no record.
func SynthesizedAbsent() AttendanceCell {
	return AttendanceCell{Status: AttendanceStatusAbsent, Source: CellSourceSynthesized}
}

// AttendanceRecordDetail joins session and course context onto a record,
// used by student history views and exports.
type AttendanceRecordDetail struct {
	AttendanceRecord
	SessionName  string    `db:"session_name" json:"session_name"`
	SessionDate  time.Time `db:"session_date" json:"session_date"`
	StartTime    string    `db:"start_time" json:"start_time"`
	EndTime      string    `db:"end_time" json:"end_time"`
	Location     *string   `db:"location" json:"location,omitempty"`
	CourseID     string    `db:"course_id" json:"course_id"`
	CourseCode   string    `db:"course_code" json:"course_code"`
	CourseName   string    `db:"course_name" json:"course_name"`
}

// StudentRecordFilter scopes a student's attendance history.
type StudentRecordFilter struct {
	CourseID string
	DateFrom *time.Time
	DateTo   *time.Time
}

// AttendanceCounts tallies records per status.
type AttendanceCounts struct {
	Present int `json:"present"`
	Late    int `json:"late"`
	Absent  int `json:"absent"`
	Excused int `json:"excused"`
}

// Add increments the counter matching the status.
func (c *AttendanceCounts) Add(status AttendanceStatus) {
	switch status {
	case AttendanceStatusPresent:
		c.Present++
	case AttendanceStatusLate:
		c.Late++
	case AttendanceStatusAbsent:
		c.Absent++
	case AttendanceStatusExcused:
		c.Excused++
	}
}
