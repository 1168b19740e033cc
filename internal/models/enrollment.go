package models

import "time"

// Enrollment links a student to a course. The (student, course) pair is
// unique; removal flips Active rather than deleting the row so historical
// attendance records keep a valid reference.
type Enrollment struct {
	ID         string    `db:"id" json:"id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	CourseID   string    `db:"course_id" json:"course_id"`
	EnrolledAt time.Time `db:"enrolled_at" json:"enrolled_at"`
	Active     bool      `db:"active" json:"active"`
}

// EnrollmentDetail enriches an enrollment with student identity for rosters
// and exports.
type EnrollmentDetail struct {
	Enrollment
	StudentCode string `db:"student_code" json:"student_code"`
	FirstName   string `db:"first_name" json:"first_name"`
	LastName    string `db:"last_name" json:"last_name"`
	Department  string `db:"department" json:"department"`
	YearOfStudy int    `db:"year_of_study" json:"year_of_study"`
}
