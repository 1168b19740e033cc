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

type mockSessionStore struct {
	sessions map[string]models.SessionDetail
	created  []models.Session
	updated  []models.Session
}

func (m *mockSessionStore) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, int, error) {
	var out []models.SessionDetail
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *mockSessionStore) FindByID(ctx context.Context, id string) (*models.SessionDetail, error) {
	if s, ok := m.sessions[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionStore) Create(ctx context.Context, session *models.Session) error {
	if m.sessions == nil {
		m.sessions = make(map[string]models.SessionDetail)
	}
	if session.ID == "" {
		session.ID = "sess-new"
	}
	m.sessions[session.ID] = models.SessionDetail{Session: *session}
	m.created = append(m.created, *session)
	return nil
}

func (m *mockSessionStore) Update(ctx context.Context, session *models.Session) error {
	m.sessions[session.ID] = models.SessionDetail{Session: *session}
	m.updated = append(m.updated, *session)
	return nil
}

func (m *mockSessionStore) SetAttendanceOpen(ctx context.Context, id string, open bool) error {
	if s, ok := m.sessions[id]; ok {
		s.AttendanceOpen = open
		m.sessions[id] = s
	}
	return nil
}

func (m *mockSessionStore) Deactivate(ctx context.Context, id string) error {
	if s, ok := m.sessions[id]; ok {
		s.Active = false
		m.sessions[id] = s
	}
	return nil
}

func newSessionFixture() (*SessionService, *mockSessionStore) {
	sessions := &mockSessionStore{
		sessions: map[string]models.SessionDetail{
			"sess-1": {
				Session: models.Session{
					ID: "sess-1", CourseID: "course-1", Name: "Week 1",
					Date:      time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC),
					StartTime: "09:00", EndTime: "11:00", Active: true,
				},
			},
		},
	}
	courses := &mockCourseRepo{
		courses: map[string]models.CourseDetail{
			"course-1": {Course: models.Course{ID: "course-1", Code: "CS101", Name: "Intro to Computing", LecturerID: "lect-1", Status: models.CourseStatusActive}},
		},
	}
	memberships := &mockEnrollmentMembership{}
	policy := NewAccessPolicy(memberships)
	svc := NewSessionService(sessions, courses, policy, nil, nil)
	return svc, sessions
}

func TestSessionCreateStoresSchedule(t *testing.T) {
	svc, sessions := newSessionFixture()
	lecturer := Actor{UserID: "lect-1", Role: models.RoleLecturer}

	session, err := svc.Create(context.Background(), lecturer, "course-1", CreateSessionRequest{
		Name: "Week 2", Date: "2026-01-19", StartTime: "09:00", EndTime: "11:00",
	})
	require.NoError(t, err)
	assert.Equal(t, "09:00", session.StartTime)
	assert.False(t, session.AttendanceOpen)
	require.Len(t, sessions.created, 1)
}

func TestSessionCreateRejectsInvertedTimes(t *testing.T) {
	svc, sessions := newSessionFixture()
	lecturer := Actor{UserID: "lect-1", Role: models.RoleLecturer}

	_, err := svc.Create(context.Background(), lecturer, "course-1", CreateSessionRequest{
		Name: "Week 2", Date: "2026-01-19", StartTime: "11:00", EndTime: "09:00",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, sessions.created)
}

func TestSessionCreateRejectsEqualTimes(t *testing.T) {
	svc, sessions := newSessionFixture()
	lecturer := Actor{UserID: "lect-1", Role: models.RoleLecturer}

	_, err := svc.Create(context.Background(), lecturer, "course-1", CreateSessionRequest{
		Name: "Week 2", Date: "2026-01-19", StartTime: "09:00", EndTime: "09:00",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, sessions.created)
}

func TestSessionUpdateRejectsInvertedTimes(t *testing.T) {
	svc, sessions := newSessionFixture()
	lecturer := Actor{UserID: "lect-1", Role: models.RoleLecturer}

	_, err := svc.Update(context.Background(), lecturer, "sess-1", UpdateSessionRequest{
		Name: "Week 1", Date: "2026-01-12", StartTime: "11:00", EndTime: "09:00",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, sessions.updated)
}
