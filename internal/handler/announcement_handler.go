package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/univtrack/attendance-api/internal/service"
	appErrors "github.com/univtrack/attendance-api/pkg/errors"
	"github.com/univtrack/attendance-api/pkg/response"
)

// AnnouncementHandler exposes announcement endpoints.
type AnnouncementHandler struct {
	announcements *service.AnnouncementService
	resolver      actorResolver
}

// NewAnnouncementHandler constructs AnnouncementHandler.
func NewAnnouncementHandler(announcements *service.AnnouncementService, students studentLookup) *AnnouncementHandler {
	return &AnnouncementHandler{announcements: announcements, resolver: newActorResolver(students)}
}

// List godoc
// @Summary List announcements visible to the caller
// @Tags Announcements
// @Produce json
// @Param courseId query string false "Filter by course"
// @Param priority query string false "Filter by priority"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /announcements [get]
func (h *AnnouncementHandler) List(c *gin.Context) {
	actor, err := h.resolver.actorFrom(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	req := service.ListAnnouncementsRequest{
		CourseID: c.Query("courseId"),
		Priority: c.Query("priority"),
	}
	req.Page, req.PageSize = paginationParams(c)

	announcements, pagination, err := h.announcements.List(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, announcements, pagination)
}

// Create godoc
// @Summary Post an announcement
// @Tags Announcements
// @Accept json
// @Produce json
// @Param payload body service.CreateAnnouncementRequest true "Announcement payload"
// @Success 201 {object} response.Envelope
// @Router /announcements [post]
func (h *AnnouncementHandler) Create(c *gin.Context) {
	actor, err := h.resolver.actorFrom(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.CreateAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	announcement, err := h.announcements.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, announcement)
}

// Update godoc
// @Summary Edit an announcement
// @Tags Announcements
// @Accept json
// @Produce json
// @Param id path string true "Announcement ID"
// @Param payload body service.UpdateAnnouncementRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Router /announcements/{id} [put]
func (h *AnnouncementHandler) Update(c *gin.Context) {
	actor, err := h.resolver.actorFrom(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.UpdateAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	announcement, err := h.announcements.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, announcement, nil)
}

// Delete godoc
// @Summary Remove an announcement
// @Tags Announcements
// @Produce json
// @Param id path string true "Announcement ID"
// @Success 204 {object} response.Envelope
// @Router /announcements/{id} [delete]
func (h *AnnouncementHandler) Delete(c *gin.Context) {
	actor, err := h.resolver.actorFrom(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.announcements.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
