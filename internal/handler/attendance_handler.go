package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/univtrack/attendance-api/internal/models"
	"github.com/univtrack/attendance-api/internal/service"
	appErrors "github.com/univtrack/attendance-api/pkg/errors"
	"github.com/univtrack/attendance-api/pkg/response"
)

// AttendanceHandler exposes check-in, marking and view endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
	resolver   actorResolver
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance *service.AttendanceService, students studentLookup) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, resolver: newActorResolver(students)}
}

// CheckIn godoc
// @Summary Student self check-in
// @Description Records the caller's attendance on an open session; late when past the start time
// @Tags Attendance
// @Produce json
// @Param id path string true "Session ID"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/check-in [post]
func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	actor, err := h.resolver.actorFrom(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	record, err := h.attendance.CheckIn(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Mark godoc
// @Summary Mark or correct a student's attendance
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body service.MarkAttendanceRequest true "Mark payload"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	actor, err := h.resolver.actorFrom(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.attendance.Mark(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// SessionView godoc
// @Summary Full roster view for a session
// @Description Lists every enrolled student with their record, synthesizing absences
// @Tags Attendance
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/attendance [get]
func (h *AttendanceHandler) SessionView(c *gin.Context) {
	actor, err := h.resolver.actorFrom(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.attendance.SessionView(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// StudentView godoc
// @Summary Attendance history for a student
// @Tags Attendance
// @Produce json
// @Param id path string true "Student profile ID"
// @Param courseId query string false "Filter by course"
// @Param dateFrom query string false "Start of date range (YYYY-MM-DD)"
// @Param dateTo query string false "End of date range (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/attendance [get]
func (h *AttendanceHandler) StudentView(c *gin.Context) {
	actor, err := h.resolver.actorFrom(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.StudentRecordFilter{
		CourseID: c.Query("courseId"),
		DateFrom: parseDateQuery(c, "dateFrom"),
		DateTo:   parseDateQuery(c, "dateTo"),
	}
	view, err := h.attendance.StudentView(c.Request.Context(), actor, c.Param("id"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// CourseMatrix godoc
// @Summary Per-course attendance matrix
// @Description Rows are roster students, columns are chronological sessions
// @Tags Attendance
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/attendance [get]
func (h *AttendanceHandler) CourseMatrix(c *gin.Context) {
	actor, err := h.resolver.actorFrom(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	matrix, err := h.attendance.CourseMatrix(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, matrix, nil)
}
