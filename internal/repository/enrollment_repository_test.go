package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrollmentRepositoryRosterOrdersByStudentCode(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "course_id", "enrolled_at", "active", "student_code", "first_name", "last_name"}).
		AddRow("enr-1", "stu-1", "course-1", time.Now(), true, "FE21A001", "Ada", "Osei").
		AddRow("enr-2", "stu-2", "course-1", time.Now(), true, "FE21A014", "Kofi", "Mensah")
	mock.ExpectQuery("ORDER BY s.student_id ASC").
		WithArgs("course-1").
		WillReturnRows(rows)

	roster, err := repo.Roster(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, roster, 2)
	require.Equal(t, "FE21A001", roster[0].StudentCode)
	require.Equal(t, "FE21A014", roster[1].StudentCode)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindIncludesInactiveRows(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "course_id", "enrolled_at", "active"}).
		AddRow("enr-1", "stu-1", "course-1", time.Now(), false)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, course_id, enrolled_at, active FROM enrollments WHERE student_id = $1 AND course_id = $2 LIMIT 1")).
		WithArgs("stu-1", "course-1").
		WillReturnRows(rows)

	enrollment, err := repo.Find(context.Background(), "stu-1", "course-1")
	require.NoError(t, err)
	require.False(t, enrollment.Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositorySetActiveReactivation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET active = TRUE, enrolled_at = $2 WHERE id = $1")).
		WithArgs("enr-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetActive(context.Background(), "enr-1", true))
	require.NoError(t, mock.ExpectationsWereMet())
}
