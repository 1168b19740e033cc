package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/univtrack/attendance-api/internal/models"
	"github.com/univtrack/attendance-api/internal/service"
	appErrors "github.com/univtrack/attendance-api/pkg/errors"
	"github.com/univtrack/attendance-api/pkg/response"
)

// CourseHandler exposes course and roster endpoints.
type CourseHandler struct {
	courses  *service.CourseService
	resolver actorResolver
}

// NewCourseHandler constructs CourseHandler.
func NewCourseHandler(courses *service.CourseService, students studentLookup) *CourseHandler {
	return &CourseHandler{courses: courses, resolver: newActorResolver(students)}
}

// List godoc
// @Summary List courses visible to the caller
// @Tags Courses
// @Produce json
// @Param department query string false "Filter by department"
// @Param level query int false "Filter by level"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	actor, err := h.resolver.actorFrom(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	filter := models.CourseFilter{
		Department: c.Query("department"),
		Status:     models.CourseStatus(strings.ToUpper(c.Query("status"))),
	}
	if level, err := strconv.Atoi(c.Query("level")); err == nil {
		filter.Level = level
	}
	filter.Page, filter.PageSize = paginationParams(c)

	courses, pagination, err := h.courses.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, pagination)
}

// Get godoc
// @Summary Get course details
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	actor, err := h.resolver.actorFrom(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	course, err := h.courses.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Create godoc
// @Summary Create course
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body service.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	actor, err := h.resolver.actorFrom(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	course, err := h.courses.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// Update godoc
// @Summary Update course
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.UpdateCourseRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [put]
func (h *CourseHandler) Update(c *gin.Context) {
	actor, err := h.resolver.actorFrom(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.UpdateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	course, err := h.courses.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Delete godoc
// @Summary Deactivate course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 204 {object} response.Envelope
// @Router /courses/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	actor, err := h.resolver.actorFrom(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.courses.Deactivate(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Enroll godoc
// @Summary Enroll student in course
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.EnrollRequest false "Enrollment payload; students enrolling themselves may omit it"
// @Success 201 {object} response.Envelope
// @Router /courses/{id}/enroll [post]
func (h *CourseHandler) Enroll(c *gin.Context) {
	actor, err := h.resolver.actorFrom(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.EnrollRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	enrollment, err := h.courses.Enroll(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Unenroll godoc
// @Summary Remove student from course roster
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Param studentId path string true "Student profile ID"
// @Success 204 {object} response.Envelope
// @Router /courses/{id}/enroll/{studentId} [delete]
func (h *CourseHandler) Unenroll(c *gin.Context) {
	actor, err := h.resolver.actorFrom(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.courses.Unenroll(c.Request.Context(), actor, c.Param("id"), c.Param("studentId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Roster godoc
// @Summary List active course roster
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/roster [get]
func (h *CourseHandler) Roster(c *gin.Context) {
	actor, err := h.resolver.actorFrom(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	roster, err := h.courses.Roster(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}
