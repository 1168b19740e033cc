package service

import (
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/univtrack/attendance-api/internal/models"
)

func newReportFixture() (*ReportService, *AttendanceService, *mockSessionRepo, *mockAttendanceRepo) {
	attendance, records, sessions, enrollments := newAttendanceFixture()
	courses := &mockCourseRepo{
		courses: map[string]models.CourseDetail{
			"course-1": {Course: models.Course{ID: "course-1", Code: "CS101", Name: "Intro to Computing", LecturerID: "lect-1", Status: models.CourseStatusActive}},
		},
	}
	svc := NewReportService(courses, sessions, enrollments, records, attendance, nil, nil, nil, ReportConfig{}, nil)
	return svc, attendance, sessions, records
}

func TestSummaryExpectedAndAbsent(t *testing.T) {
	svc, attendance, sessions, _ := newReportFixture()
	sessions.sessions["sess-2"] = models.SessionDetail{
		Session: models.Session{
			ID: "sess-2", CourseID: "course-1", Name: "Week 2",
			Date:      time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC),
			StartTime: "09:00", EndTime: "11:00", Active: true,
		},
	}
	sessions.order = append(sessions.order, "sess-2")

	lecturer := Actor{UserID: "lect-1", Role: models.RoleLecturer}
	_, err := attendance.Mark(context.Background(), lecturer, "sess-1", MarkAttendanceRequest{StudentID: "stu-1", Status: "present"})
	require.NoError(t, err)
	_, err = attendance.Mark(context.Background(), lecturer, "sess-2", MarkAttendanceRequest{StudentID: "stu-2", Status: "late"})
	require.NoError(t, err)
	_, err = attendance.Mark(context.Background(), lecturer, "sess-1", MarkAttendanceRequest{StudentID: "stu-2", Status: "excused"})
	require.NoError(t, err)

	summary, err := svc.Summary(context.Background(), Actor{UserID: "admin-1", Role: models.RoleAdmin}, models.SummaryFilter{})
	require.NoError(t, err)

	require.Len(t, summary.Courses, 1)
	block := summary.Courses[0]
	assert.Equal(t, 2, block.TotalSessions)
	assert.Equal(t, 2, block.EnrolledCount)
	assert.Equal(t, 3, block.TotalRecords)
	assert.Equal(t, 1, block.Present)
	assert.Equal(t, 1, block.Late)
	assert.Equal(t, 1, block.Excused)
	// no stored ABSENT mark; the unmarked remainder is counted separately
	assert.Equal(t, 0, block.Absent)
	assert.Equal(t, 1, block.Unmarked)
	assert.InDelta(t, 50.0, block.AttendanceRate, 0.001)

	assert.Equal(t, 1, summary.TotalCourses)
	assert.Equal(t, 2, summary.TotalSessions)
	assert.Equal(t, 3, summary.TotalRecords)
	assert.Equal(t, 1, summary.Counts.Present)
	assert.Equal(t, 1, summary.Counts.Late)
	assert.Equal(t, 1, summary.Counts.Excused)
	assert.Equal(t, 0, summary.Counts.Absent)
}

func TestSummaryDateRangeFiltersSessions(t *testing.T) {
	svc, _, sessions, _ := newReportFixture()
	sessions.sessions["sess-2"] = models.SessionDetail{
		Session: models.Session{
			ID: "sess-2", CourseID: "course-1", Name: "Week 2",
			Date:      time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC),
			StartTime: "09:00", EndTime: "11:00", Active: true,
		},
	}
	sessions.order = append(sessions.order, "sess-2")

	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	summary, err := svc.Summary(context.Background(), Actor{UserID: "admin-1", Role: models.RoleAdmin}, models.SummaryFilter{DateFrom: &from})
	require.NoError(t, err)
	require.Len(t, summary.Courses, 1)
	assert.Equal(t, 1, summary.Courses[0].TotalSessions)
}

func TestExportCourseCSVColumnOrder(t *testing.T) {
	svc, attendance, sessions, _ := newReportFixture()
	sessions.sessions["sess-2"] = models.SessionDetail{
		Session: models.Session{
			ID: "sess-2", CourseID: "course-1", Name: "Week 2",
			Date:      time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC),
			StartTime: "09:00", EndTime: "11:00", Active: true,
		},
	}
	sessions.order = append(sessions.order, "sess-2")

	lecturer := Actor{UserID: "lect-1", Role: models.RoleLecturer}
	_, err := attendance.Mark(context.Background(), lecturer, "sess-1", MarkAttendanceRequest{StudentID: "stu-1", Status: "present"})
	require.NoError(t, err)

	result, err := svc.ExportCourse(context.Background(), lecturer, "course-1", models.DateRange{}, models.ReportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.True(t, strings.HasPrefix(result.Filename, "course_CS101_"))

	reader := csv.NewReader(strings.NewReader(string(result.Data)))
	rows, err := reader.ReadAll()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 3)

	header := rows[0]
	assert.Equal(t, []string{
		"Student ID", "First Name", "Last Name", "Department", "Year of Study",
		"2026-01-12 - Week 1", "2026-01-19 - Week 2",
		"Present", "Late", "Absent", "Excused", "Total Sessions", "Attendance Rate (%)",
	}, header)

	// rows follow student-code order
	assert.Equal(t, "FE21A001", rows[1][0])
	assert.Equal(t, "FE21A014", rows[2][0])
	assert.Equal(t, "Computer Engineering", rows[1][3])
	assert.Equal(t, "3", rows[1][4])
	assert.Equal(t, "PRESENT", rows[1][5])
	assert.Equal(t, "ABSENT", rows[2][5])
}

func TestExportCourseDateRangeFiltersColumns(t *testing.T) {
	svc, attendance, sessions, _ := newReportFixture()
	sessions.sessions["sess-2"] = models.SessionDetail{
		Session: models.Session{
			ID: "sess-2", CourseID: "course-1", Name: "Week 2",
			Date:      time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC),
			StartTime: "09:00", EndTime: "11:00", Active: true,
		},
	}
	sessions.order = append(sessions.order, "sess-2")

	lecturer := Actor{UserID: "lect-1", Role: models.RoleLecturer}
	_, err := attendance.Mark(context.Background(), lecturer, "sess-1", MarkAttendanceRequest{StudentID: "stu-1", Status: "present"})
	require.NoError(t, err)
	_, err = attendance.Mark(context.Background(), lecturer, "sess-2", MarkAttendanceRequest{StudentID: "stu-1", Status: "late"})
	require.NoError(t, err)

	from := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	result, err := svc.ExportCourse(context.Background(), lecturer, "course-1", models.DateRange{From: &from}, models.ReportFormatCSV)
	require.NoError(t, err)

	reader := csv.NewReader(strings.NewReader(string(result.Data)))
	rows, err := reader.ReadAll()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 2)

	header := rows[0]
	assert.NotContains(t, header, "2026-01-12 - Week 1")
	assert.Contains(t, header, "2026-01-19 - Week 2")

	// statistics recompute over the remaining column: present 0, late 1,
	// one session total, rate 100
	row := rows[1]
	assert.Equal(t, "FE21A001", row[0])
	assert.Equal(t, "LATE", row[5])
	assert.Equal(t, "0", row[6])
	assert.Equal(t, "1", row[7])
	assert.Equal(t, "1", row[10])
	assert.Equal(t, "100.0", row[11])
}

func TestExportCourseDuplicateSessionColumns(t *testing.T) {
	svc, attendance, sessions, _ := newReportFixture()
	sessions.sessions["sess-2"] = models.SessionDetail{
		Session: models.Session{
			ID: "sess-2", CourseID: "course-1", Name: "Week 1",
			Date:      time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC),
			StartTime: "13:00", EndTime: "15:00", Active: true,
		},
	}
	sessions.order = append(sessions.order, "sess-2")

	lecturer := Actor{UserID: "lect-1", Role: models.RoleLecturer}
	_, err := attendance.Mark(context.Background(), lecturer, "sess-1", MarkAttendanceRequest{StudentID: "stu-1", Status: "present"})
	require.NoError(t, err)
	_, err = attendance.Mark(context.Background(), lecturer, "sess-2", MarkAttendanceRequest{StudentID: "stu-1", Status: "late"})
	require.NoError(t, err)

	result, err := svc.ExportCourse(context.Background(), lecturer, "course-1", models.DateRange{}, models.ReportFormatCSV)
	require.NoError(t, err)

	reader := csv.NewReader(strings.NewReader(string(result.Data)))
	rows, err := reader.ReadAll()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 2)

	// two sessions sharing a date and name keep separate columns
	header := rows[0]
	assert.Contains(t, header, "2026-01-12 - Week 1")
	assert.Contains(t, header, "2026-01-12 - Week 1 (2)")
	assert.Equal(t, "PRESENT", rows[1][5])
	assert.Equal(t, "LATE", rows[1][6])
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	svc, _, _, _ := newReportFixture()

	_, err := svc.ExportCourse(context.Background(), Actor{UserID: "admin-1", Role: models.RoleAdmin}, "course-1", models.DateRange{}, models.ReportFormat("docx"))
	require.Error(t, err)
}

func TestSummaryLecturerScopedToTaughtCourses(t *testing.T) {
	svc, _, _, _ := newReportFixture()

	summary, err := svc.Summary(context.Background(), Actor{UserID: "lect-2", Role: models.RoleLecturer}, models.SummaryFilter{})
	require.NoError(t, err)
	assert.Empty(t, summary.Courses)
}
