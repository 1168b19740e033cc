package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/univtrack/attendance-api/internal/models"
	"github.com/univtrack/attendance-api/internal/service"
	appErrors "github.com/univtrack/attendance-api/pkg/errors"
	"github.com/univtrack/attendance-api/pkg/response"
)

// SessionHandler exposes class session endpoints.
type SessionHandler struct {
	sessions *service.SessionService
	resolver actorResolver
}

// NewSessionHandler constructs SessionHandler.
func NewSessionHandler(sessions *service.SessionService, students studentLookup) *SessionHandler {
	return &SessionHandler{sessions: sessions, resolver: newActorResolver(students)}
}

// List godoc
// @Summary List sessions visible to the caller
// @Tags Sessions
// @Produce json
// @Param courseId query string false "Filter by course"
// @Param dateFrom query string false "Start of date range (YYYY-MM-DD)"
// @Param dateTo query string false "End of date range (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	actor, err := h.resolver.actorFrom(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	filter := models.SessionFilter{CourseID: c.Query("courseId")}
	filter.DateFrom = parseDateQuery(c, "dateFrom")
	filter.DateTo = parseDateQuery(c, "dateTo")
	filter.Page, filter.PageSize = paginationParams(c)

	sessions, pagination, err := h.sessions.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, pagination)
}

// Get godoc
// @Summary Get session details
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	actor, err := h.resolver.actorFrom(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	session, err := h.sessions.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Create godoc
// @Summary Create session for a course
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.CreateSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Router /courses/{id}/sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	actor, err := h.resolver.actorFrom(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	session, err := h.sessions.Create(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Update godoc
// @Summary Update session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body service.UpdateSessionRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [put]
func (h *SessionHandler) Update(c *gin.Context) {
	actor, err := h.resolver.actorFrom(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	session, err := h.sessions.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// OpenAttendance godoc
// @Summary Open the check-in window
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/attendance/open [post]
func (h *SessionHandler) OpenAttendance(c *gin.Context) {
	actor, err := h.resolver.actorFrom(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	session, err := h.sessions.OpenAttendance(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// CloseAttendance godoc
// @Summary Close the check-in window
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/attendance/close [post]
func (h *SessionHandler) CloseAttendance(c *gin.Context) {
	actor, err := h.resolver.actorFrom(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	session, err := h.sessions.CloseAttendance(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Delete godoc
// @Summary Deactivate session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 204 {object} response.Envelope
// @Router /sessions/{id} [delete]
func (h *SessionHandler) Delete(c *gin.Context) {
	actor, err := h.resolver.actorFrom(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.sessions.Deactivate(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func parseDateQuery(c *gin.Context, key string) *time.Time {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil
	}
	return &parsed
}
