package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestSessionRepositoryListByCourseChronological(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "course_id", "name", "date", "start_time", "end_time", "location", "active", "attendance_open", "created_at",
		"course_code", "course_name",
	}).
		AddRow("sess-1", "course-1", "Week 1", time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC), "09:00", "11:00", nil, true, false, time.Now(), "CS101", "Intro to Computing").
		AddRow("sess-2", "course-1", "Week 2", time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC), "09:00", "11:00", nil, true, true, time.Now(), "CS101", "Intro to Computing")
	mock.ExpectQuery("ORDER BY se.date ASC, se.start_time ASC").
		WithArgs("course-1").
		WillReturnRows(rows)

	sessions, err := repo.ListByCourse(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	require.Equal(t, "Week 1", sessions[0].Name)
	require.True(t, sessions[1].AttendanceOpen)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositorySetAttendanceOpen(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions SET attendance_open = $2 WHERE id = $1")).
		WithArgs("sess-1", true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetAttendanceOpen(context.Background(), "sess-1", true))
	require.NoError(t, mock.ExpectationsWereMet())
}
