package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/univtrack/attendance-api/internal/models"
)

func TestAttendanceRepositoryUpsertUpdatesInPlace(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec("ON CONFLICT \\(session_id, student_id\\)").
		WillReturnResult(sqlmock.NewResult(0, 1))

	lecturer := "lect-1"
	record := &models.AttendanceRecord{
		SessionID: "sess-1",
		StudentID: "stu-1",
		Status:    models.AttendanceStatusExcused,
		MarkedBy:  &lecturer,
	}
	require.NoError(t, repo.Upsert(context.Background(), record))
	require.NotEmpty(t, record.ID)
	require.False(t, record.MarkedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListBySessionsEmptyInput(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	records, err := repo.ListBySessions(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, records)
}

func TestAttendanceRepositoryListByStudentAppliesCourseFilter(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "session_id", "student_id", "status", "marked_at", "marked_by", "notes",
		"session_name", "session_date", "start_time", "end_time", "location",
		"course_id", "course_code", "course_name",
	}).AddRow(
		"rec-1", "sess-1", "stu-1", models.AttendanceStatusLate, time.Now(), nil, nil,
		"Week 3", time.Now(), "09:00", "11:00", nil,
		"course-1", "CS101", "Intro to Computing",
	)
	mock.ExpectQuery("se.course_id = \\$2").
		WithArgs("stu-1", "course-1").
		WillReturnRows(rows)

	records, err := repo.ListByStudent(context.Background(), "stu-1", models.StudentRecordFilter{CourseID: "course-1"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, models.AttendanceStatusLate, records[0].Status)
	require.Equal(t, "CS101", records[0].CourseCode)
	require.NoError(t, mock.ExpectationsWereMet())
}
