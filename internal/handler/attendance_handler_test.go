package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/univtrack/attendance-api/internal/middleware"
	"github.com/univtrack/attendance-api/internal/models"
	"github.com/univtrack/attendance-api/internal/service"
	"github.com/univtrack/attendance-api/pkg/response"
)

type recordStoreMock struct {
	created []models.AttendanceRecord
}

func (m *recordStoreMock) Find(ctx context.Context, sessionID, studentID string) (*models.AttendanceRecord, error) {
	return nil, sql.ErrNoRows
}

func (m *recordStoreMock) Create(ctx context.Context, record *models.AttendanceRecord) error {
	m.created = append(m.created, *record)
	return nil
}

func (m *recordStoreMock) Upsert(ctx context.Context, record *models.AttendanceRecord) error {
	return nil
}

func (m *recordStoreMock) ListBySession(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error) {
	return nil, nil
}

func (m *recordStoreMock) ListBySessions(ctx context.Context, sessionIDs []string) ([]models.AttendanceRecord, error) {
	return nil, nil
}

func (m *recordStoreMock) ListByStudent(ctx context.Context, studentID string, filter models.StudentRecordFilter) ([]models.AttendanceRecordDetail, error) {
	return nil, nil
}

type sessionStoreMock struct {
	session *models.SessionDetail
}

func (m *sessionStoreMock) FindByID(ctx context.Context, id string) (*models.SessionDetail, error) {
	if m.session == nil || m.session.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.session, nil
}

func (m *sessionStoreMock) ListByCourse(ctx context.Context, courseID string) ([]models.SessionDetail, error) {
	return nil, nil
}

type courseStoreMock struct {
	course *models.CourseDetail
}

func (m *courseStoreMock) FindByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	if m.course == nil || m.course.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.course, nil
}

type enrollmentStoreMock struct {
	enrolled bool
}

func (m *enrollmentStoreMock) IsActivelyEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	return m.enrolled, nil
}

func (m *enrollmentStoreMock) Roster(ctx context.Context, courseID string) ([]models.EnrollmentDetail, error) {
	return nil, nil
}

type studentStoreMock struct {
	student *models.StudentDetail
}

func (m *studentStoreMock) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if m.student == nil || m.student.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.student, nil
}

type studentLookupMock struct {
	student *models.StudentDetail
}

func (m *studentLookupMock) GetStudentByUser(ctx context.Context, userID string) (*models.StudentDetail, error) {
	if m.student == nil {
		return nil, sql.ErrNoRows
	}
	return m.student, nil
}

func newCheckInFixture(open bool) (*AttendanceHandler, *recordStoreMock) {
	records := &recordStoreMock{}
	sessions := &sessionStoreMock{session: &models.SessionDetail{
		Session: models.Session{
			ID:             "sess-1",
			CourseID:       "course-1",
			Name:           "Week 1",
			Date:           time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC),
			StartTime:      "09:00",
			EndTime:        "11:00",
			Active:         true,
			AttendanceOpen: open,
		},
	}}
	courses := &courseStoreMock{course: &models.CourseDetail{
		Course: models.Course{ID: "course-1", Code: "CS101", Name: "Intro", LecturerID: "lect-1"},
	}}
	enrollments := &enrollmentStoreMock{enrolled: true}
	students := &studentStoreMock{}

	svc := service.NewAttendanceService(records, sessions, courses, enrollments, students, service.NewAccessPolicy(enrollments), nil, nil, nil)
	lookup := &studentLookupMock{student: &models.StudentDetail{
		Student: models.Student{ID: "stu-1", UserID: "user-1", StudentID: "FE21A001"},
	}}
	return NewAttendanceHandler(svc, lookup), records
}

func newGinContext(method, path string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, nil)
	c.Request = req
	return c, w
}

func TestAttendanceHandlerCheckIn(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, records := newCheckInFixture(true)

	c, w := newGinContext(http.MethodPost, "/sessions/sess-1/check-in")
	c.Params = gin.Params{{Key: "id", Value: "sess-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent})

	handler.CheckIn(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, records.created, 1)
	require.Equal(t, "sess-1", records.created[0].SessionID)
	require.Equal(t, "stu-1", records.created[0].StudentID)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Nil(t, envelope.Error)
}

func TestAttendanceHandlerCheckInClosedGate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, records := newCheckInFixture(false)

	c, w := newGinContext(http.MethodPost, "/sessions/sess-1/check-in")
	c.Params = gin.Params{{Key: "id", Value: "sess-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent})

	handler.CheckIn(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Empty(t, records.created)
}

func TestAttendanceHandlerCheckInWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, records := newCheckInFixture(true)

	c, w := newGinContext(http.MethodPost, "/sessions/sess-1/check-in")
	c.Params = gin.Params{{Key: "id", Value: "sess-1"}}

	handler.CheckIn(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Empty(t, records.created)
}
