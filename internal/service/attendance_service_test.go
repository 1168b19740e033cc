package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/univtrack/attendance-api/internal/models"
	appErrors "github.com/univtrack/attendance-api/pkg/errors"
)

type mockAttendanceRepo struct {
	records map[string]models.AttendanceRecord // key sessionID|studentID
	created []models.AttendanceRecord
	upserts []models.AttendanceRecord
}

func recordKey(sessionID, studentID string) string { return sessionID + "|" + studentID }

func (m *mockAttendanceRepo) Find(ctx context.Context, sessionID, studentID string) (*models.AttendanceRecord, error) {
	if r, ok := m.records[recordKey(sessionID, studentID)]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAttendanceRepo) Create(ctx context.Context, record *models.AttendanceRecord) error {
	if m.records == nil {
		m.records = make(map[string]models.AttendanceRecord)
	}
	if record.ID == "" {
		record.ID = "rec-new"
	}
	m.records[recordKey(record.SessionID, record.StudentID)] = *record
	m.created = append(m.created, *record)
	return nil
}

func (m *mockAttendanceRepo) Upsert(ctx context.Context, record *models.AttendanceRecord) error {
	if m.records == nil {
		m.records = make(map[string]models.AttendanceRecord)
	}
	if record.ID == "" {
		record.ID = "rec-new"
	}
	m.records[recordKey(record.SessionID, record.StudentID)] = *record
	m.upserts = append(m.upserts, *record)
	return nil
}

func (m *mockAttendanceRepo) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	var out []models.AttendanceRecord
	for _, r := range m.records {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockAttendanceRepo) ListBySessions(ctx context.Context, sessionIDs []string) ([]models.AttendanceRecord, error) {
	var out []models.AttendanceRecord
	for _, id := range sessionIDs {
		for _, r := range m.records {
			if r.SessionID == id {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (m *mockAttendanceRepo) ListByStudent(ctx context.Context, studentID string, filter models.StudentRecordFilter) ([]models.AttendanceRecordDetail, error) {
	var out []models.AttendanceRecordDetail
	for _, r := range m.records {
		if r.StudentID == studentID {
			out = append(out, models.AttendanceRecordDetail{AttendanceRecord: r})
		}
	}
	return out, nil
}

type mockSessionRepo struct {
	sessions map[string]models.SessionDetail
	order    []string
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*models.SessionDetail, error) {
	if s, ok := m.sessions[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionRepo) ListByCourse(ctx context.Context, courseID string) ([]models.SessionDetail, error) {
	var out []models.SessionDetail
	for _, id := range m.order {
		if s, ok := m.sessions[id]; ok && s.CourseID == courseID {
			out = append(out, s)
		}
	}
	return out, nil
}

type mockCourseRepo struct {
	courses map[string]models.CourseDetail
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	if c, ok := m.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) All(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, error) {
	var out []models.CourseDetail
	for _, c := range m.courses {
		if filter.LecturerID != "" && c.LecturerID != filter.LecturerID {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

type mockEnrollmentMembership struct {
	active map[string]bool // studentID|courseID
	roster map[string][]models.EnrollmentDetail
}

func (m *mockEnrollmentMembership) IsActivelyEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	return m.active[studentID+"|"+courseID], nil
}

func (m *mockEnrollmentMembership) Roster(ctx context.Context, courseID string) ([]models.EnrollmentDetail, error) {
	return m.roster[courseID], nil
}

func (m *mockEnrollmentMembership) CountActive(ctx context.Context, courseID string) (int, error) {
	return len(m.roster[courseID]), nil
}

func (m *mockEnrollmentMembership) ActiveCourseIDs(ctx context.Context, studentID string) ([]string, error) {
	var out []string
	for key, ok := range m.active {
		if !ok {
			continue
		}
		if len(key) > len(studentID) && key[:len(studentID)+1] == studentID+"|" {
			out = append(out, key[len(studentID)+1:])
		}
	}
	return out, nil
}

type mockStudentRepo struct {
	students map[string]models.StudentDetail
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func rosterMember(studentID, code string) models.EnrollmentDetail {
	return models.EnrollmentDetail{
		Enrollment:  models.Enrollment{ID: "enr-" + studentID, StudentID: studentID, CourseID: "course-1", Active: true},
		StudentCode: code,
		Department:  "Computer Engineering",
		YearOfStudy: 3,
	}
}

func newAttendanceFixture() (*AttendanceService, *mockAttendanceRepo, *mockSessionRepo, *mockEnrollmentMembership) {
	records := &mockAttendanceRepo{}
	sessions := &mockSessionRepo{
		sessions: map[string]models.SessionDetail{
			"sess-1": {
				Session: models.Session{
					ID: "sess-1", CourseID: "course-1", Name: "Week 1",
					Date:      time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC),
					StartTime: "09:00", EndTime: "11:00",
					Active: true, AttendanceOpen: true,
				},
				CourseCode: "CS101", CourseName: "Intro to Computing",
			},
		},
		order: []string{"sess-1"},
	}
	courses := &mockCourseRepo{
		courses: map[string]models.CourseDetail{
			"course-1": {Course: models.Course{ID: "course-1", Code: "CS101", Name: "Intro to Computing", LecturerID: "lect-1", Status: models.CourseStatusActive}},
		},
	}
	enrollments := &mockEnrollmentMembership{
		active: map[string]bool{"stu-1|course-1": true, "stu-2|course-1": true},
		roster: map[string][]models.EnrollmentDetail{
			"course-1": {rosterMember("stu-1", "FE21A001"), rosterMember("stu-2", "FE21A014")},
		},
	}
	students := &mockStudentRepo{
		students: map[string]models.StudentDetail{
			"stu-1": {Student: models.Student{ID: "stu-1", StudentID: "FE21A001"}},
			"stu-2": {Student: models.Student{ID: "stu-2", StudentID: "FE21A014"}},
		},
	}
	policy := NewAccessPolicy(enrollments)
	svc := NewAttendanceService(records, sessions, courses, enrollments, students, policy, nil, nil, nil)
	return svc, records, sessions, enrollments
}

func TestCheckInOnTimeIsPresent(t *testing.T) {
	svc, records, _, _ := newAttendanceFixture()
	svc.now = func() time.Time { return time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC) }

	record, err := svc.CheckIn(context.Background(), Actor{UserID: "user-1", Role: models.RoleStudent, StudentID: "stu-1"}, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusPresent, record.Status)
	require.Len(t, records.created, 1)
	require.NotNil(t, record.MarkedBy)
	assert.Equal(t, "user-1", *record.MarkedBy)
}

func TestCheckInAfterStartIsLate(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture()
	svc.now = func() time.Time { return time.Date(2026, 1, 12, 9, 1, 0, 0, time.UTC) }

	record, err := svc.CheckIn(context.Background(), Actor{UserID: "user-1", Role: models.RoleStudent, StudentID: "stu-1"}, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusLate, record.Status)
}

func TestCheckInClosedSession(t *testing.T) {
	svc, _, sessions, _ := newAttendanceFixture()
	closed := sessions.sessions["sess-1"]
	closed.AttendanceOpen = false
	sessions.sessions["sess-1"] = closed

	_, err := svc.CheckIn(context.Background(), Actor{UserID: "user-1", Role: models.RoleStudent, StudentID: "stu-1"}, "sess-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSessionClosed.Code, appErrors.FromError(err).Code)
}

func TestCheckInNotEnrolled(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture()

	_, err := svc.CheckIn(context.Background(), Actor{UserID: "user-9", Role: models.RoleStudent, StudentID: "stu-9"}, "sess-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotEnrolled.Code, appErrors.FromError(err).Code)
}

func TestCheckInDuplicate(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture()
	actor := Actor{UserID: "user-1", Role: models.RoleStudent, StudentID: "stu-1"}

	_, err := svc.CheckIn(context.Background(), actor, "sess-1")
	require.NoError(t, err)

	_, err = svc.CheckIn(context.Background(), actor, "sess-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateCheckIn.Code, appErrors.FromError(err).Code)
}

func TestMarkKeepsRowIdentityOnRemark(t *testing.T) {
	svc, records, _, _ := newAttendanceFixture()
	lecturer := Actor{UserID: "lect-1", Role: models.RoleLecturer}

	first, err := svc.Mark(context.Background(), lecturer, "sess-1", MarkAttendanceRequest{StudentID: "stu-1", Status: "present"})
	require.NoError(t, err)

	second, err := svc.Mark(context.Background(), lecturer, "sess-1", MarkAttendanceRequest{StudentID: "stu-1", Status: "excused"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.AttendanceStatusExcused, second.Status)
	require.Len(t, records.upserts, 2)
	require.NotNil(t, second.MarkedBy)
	assert.Equal(t, "lect-1", *second.MarkedBy)
}

func TestMarkRejectsUnenrolledStudent(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture()
	lecturer := Actor{UserID: "lect-1", Role: models.RoleLecturer}

	_, err := svc.Mark(context.Background(), lecturer, "sess-1", MarkAttendanceRequest{StudentID: "stu-9", Status: "present"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotEnrolled.Code, appErrors.FromError(err).Code)
}

func TestMarkForeignCourseForbidden(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture()
	other := Actor{UserID: "lect-2", Role: models.RoleLecturer}

	_, err := svc.Mark(context.Background(), other, "sess-1", MarkAttendanceRequest{StudentID: "stu-1", Status: "present"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSessionViewSynthesizesAbsences(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture()
	lecturer := Actor{UserID: "lect-1", Role: models.RoleLecturer}

	_, err := svc.Mark(context.Background(), lecturer, "sess-1", MarkAttendanceRequest{StudentID: "stu-1", Status: "late"})
	require.NoError(t, err)

	view, err := svc.SessionView(context.Background(), lecturer, "sess-1")
	require.NoError(t, err)

	assert.Equal(t, 2, view.TotalEnrolled)
	assert.Equal(t, 1, view.TotalPresent)
	assert.Equal(t, 1, view.TotalAbsent)
	require.Len(t, view.Entries, 2)

	assert.Equal(t, models.CellSourceRecorded, view.Entries[0].Attendance.Source)
	assert.Equal(t, models.AttendanceStatusLate, view.Entries[0].Attendance.Status)
	assert.Equal(t, models.CellSourceSynthesized, view.Entries[1].Attendance.Source)
	assert.Equal(t, models.AttendanceStatusAbsent, view.Entries[1].Attendance.Status)
	assert.Nil(t, view.Entries[1].Attendance.Record)
}

func TestStudentViewZeroRecordsRate(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture()

	view, err := svc.StudentView(context.Background(), Actor{UserID: "user-1", Role: models.RoleStudent, StudentID: "stu-1"}, "stu-1", models.StudentRecordFilter{})
	require.NoError(t, err)
	assert.Zero(t, view.Statistics.AttendanceRate)
	assert.Zero(t, view.Statistics.TotalSessions)
}

func TestStudentViewRateOverRecordsFound(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture()
	lecturer := Actor{UserID: "lect-1", Role: models.RoleLecturer}

	_, err := svc.Mark(context.Background(), lecturer, "sess-1", MarkAttendanceRequest{StudentID: "stu-1", Status: "late"})
	require.NoError(t, err)

	view, err := svc.StudentView(context.Background(), Actor{UserID: "user-1", Role: models.RoleStudent, StudentID: "stu-1"}, "stu-1", models.StudentRecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, view.Statistics.TotalSessions)
	assert.Equal(t, 1, view.Statistics.Late)
	assert.InDelta(t, 100.0, view.Statistics.AttendanceRate, 0.001)
}

func TestStudentViewOtherStudentForbidden(t *testing.T) {
	svc, _, _, _ := newAttendanceFixture()

	_, err := svc.StudentView(context.Background(), Actor{UserID: "user-1", Role: models.RoleStudent, StudentID: "stu-1"}, "stu-2", models.StudentRecordFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCourseMatrixShapeAndRates(t *testing.T) {
	svc, _, sessions, _ := newAttendanceFixture()
	sessions.sessions["sess-2"] = models.SessionDetail{
		Session: models.Session{
			ID: "sess-2", CourseID: "course-1", Name: "Week 2",
			Date:      time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC),
			StartTime: "09:00", EndTime: "11:00", Active: true,
		},
	}
	sessions.order = append(sessions.order, "sess-2")

	lecturer := Actor{UserID: "lect-1", Role: models.RoleLecturer}
	_, err := svc.Mark(context.Background(), lecturer, "sess-1", MarkAttendanceRequest{StudentID: "stu-1", Status: "present"})
	require.NoError(t, err)
	_, err = svc.Mark(context.Background(), lecturer, "sess-2", MarkAttendanceRequest{StudentID: "stu-1", Status: "late"})
	require.NoError(t, err)

	matrix, err := svc.CourseMatrix(context.Background(), lecturer, "course-1")
	require.NoError(t, err)

	assert.Equal(t, 2, matrix.TotalStudents)
	assert.Equal(t, 2, matrix.TotalSessions)
	assert.Equal(t, 2, matrix.TotalRecords)
	require.Len(t, matrix.Rows, 2)
	require.Len(t, matrix.Rows[0].Cells, 2)

	// stu-1 attended both sessions, stu-2 none; the matrix denominator is
	// the full session count.
	assert.InDelta(t, 100.0, matrix.Rows[0].Statistics.AttendanceRate, 0.001)
	assert.InDelta(t, 0.0, matrix.Rows[1].Statistics.AttendanceRate, 0.001)
	assert.Equal(t, 2, matrix.Rows[1].Statistics.Absent)
	assert.Equal(t, models.CellSourceSynthesized, matrix.Rows[1].Cells[0].Attendance.Source)
	assert.Equal(t, "Computer Engineering", matrix.Rows[0].Student.Department)
	assert.Equal(t, 3, matrix.Rows[0].Student.YearOfStudy)
}

func TestClassifyCheckInBoundary(t *testing.T) {
	exactly := time.Date(2026, 1, 12, 9, 0, 59, 0, time.UTC)
	assert.Equal(t, models.AttendanceStatusPresent, classifyCheckIn(exactly, "09:00"))

	after := time.Date(2026, 1, 12, 9, 1, 0, 0, time.UTC)
	assert.Equal(t, models.AttendanceStatusLate, classifyCheckIn(after, "09:00"))

	before := time.Date(2026, 1, 12, 8, 59, 0, 0, time.UTC)
	assert.Equal(t, models.AttendanceStatusPresent, classifyCheckIn(before, "09:00"))
}
