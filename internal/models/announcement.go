package models

import "time"

// AnnouncementPriority defines ordering for announcements.
type AnnouncementPriority string

const (
	AnnouncementPriorityLow    AnnouncementPriority = "LOW"
	AnnouncementPriorityNormal AnnouncementPriority = "NORMAL"
	AnnouncementPriorityHigh   AnnouncementPriority = "HIGH"
)

// Valid returns true when the priority is a supported value.
func (p AnnouncementPriority) Valid() bool {
	switch p {
	case AnnouncementPriorityLow, AnnouncementPriorityNormal, AnnouncementPriorityHigh:
		return true
	default:
		return false
	}
}

// Announcement is authored by a user and scoped to one course or flagged
// global. Deletion flips Active rather than removing the row.
type Announcement struct {
	ID        string               `db:"id" json:"id"`
	Title     string               `db:"title" json:"title"`
	Content   string               `db:"content" json:"content"`
	AuthorID  string               `db:"author_id" json:"author_id"`
	CourseID  *string              `db:"course_id" json:"course_id,omitempty"`
	Global    bool                 `db:"global" json:"global"`
	Priority  AnnouncementPriority `db:"priority" json:"priority"`
	Active    bool                 `db:"active" json:"active"`
	CreatedAt time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt time.Time            `db:"updated_at" json:"updated_at"`
}

// AnnouncementFilter scopes listing by role visibility: global rows, rows
// for any of CourseIDs, or rows authored by AuthorID. An admin leaves all
// three empty to see everything.
type AnnouncementFilter struct {
	CourseIDs     []string
	AuthorID      string
	CourseID      string
	Priority      AnnouncementPriority
	IncludeGlobal bool
	Unrestricted  bool
	Page          int
	PageSize      int
}
