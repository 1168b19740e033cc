package models

import "time"

// Student holds the institution profile attached to a STUDENT user.
type Student struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	Department  string    `db:"department" json:"department"`
	YearOfStudy int       `db:"year_of_study" json:"year_of_study"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// StudentDetail enriches a student row with the owning user's identity.
// Roster and export queries join users so names appear without extra lookups.
type StudentDetail struct {
	Student
	Email     string `db:"email" json:"email"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
}

// StudentFilter scopes student listing queries.
type StudentFilter struct {
	Department string
	Year       int
	Search     string
	Page       int
	PageSize   int
}
