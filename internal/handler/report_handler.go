package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/univtrack/attendance-api/internal/models"
	"github.com/univtrack/attendance-api/internal/service"
	appErrors "github.com/univtrack/attendance-api/pkg/errors"
	"github.com/univtrack/attendance-api/pkg/response"
)

// ReportHandler exposes summary and export endpoints.
type ReportHandler struct {
	reports  *service.ReportService
	resolver actorResolver
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports *service.ReportService, students studentLookup) *ReportHandler {
	return &ReportHandler{reports: reports, resolver: newActorResolver(students)}
}

// Summary godoc
// @Summary Aggregate attendance summary
// @Tags Reports
// @Produce json
// @Param courseId query string false "Limit to one course"
// @Param dateFrom query string false "Start of date range (YYYY-MM-DD)"
// @Param dateTo query string false "End of date range (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /reports/summary [get]
func (h *ReportHandler) Summary(c *gin.Context) {
	actor, err := h.resolver.actorFrom(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.SummaryFilter{
		CourseID: c.Query("courseId"),
		DateFrom: parseDateQuery(c, "dateFrom"),
		DateTo:   parseDateQuery(c, "dateTo"),
	}
	summary, err := h.reports.Summary(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// ExportCourse godoc
// @Summary Export the course attendance matrix
// @Tags Reports
// @Produce octet-stream
// @Param id path string true "Course ID"
// @Param dateFrom query string false "Start of date range (YYYY-MM-DD)"
// @Param dateTo query string false "End of date range (YYYY-MM-DD)"
// @Param format query string false "csv, excel or pdf (default csv)"
// @Success 200 {file} binary
// @Router /reports/courses/{id}/export [get]
func (h *ReportHandler) ExportCourse(c *gin.Context) {
	actor, err := h.resolver.actorFrom(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format, err := reportFormat(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	rng := models.DateRange{
		From: parseDateQuery(c, "dateFrom"),
		To:   parseDateQuery(c, "dateTo"),
	}
	result, err := h.reports.ExportCourse(c.Request.Context(), actor, c.Param("id"), rng, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeAttachment(c, result)
}

// ExportStudent godoc
// @Summary Export a student's attendance history
// @Tags Reports
// @Produce octet-stream
// @Param id path string true "Student profile ID"
// @Param courseId query string false "Filter by course"
// @Param dateFrom query string false "Start of date range (YYYY-MM-DD)"
// @Param dateTo query string false "End of date range (YYYY-MM-DD)"
// @Param format query string false "csv, excel or pdf (default csv)"
// @Success 200 {file} binary
// @Router /reports/students/{id}/export [get]
func (h *ReportHandler) ExportStudent(c *gin.Context) {
	actor, err := h.resolver.actorFrom(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format, err := reportFormat(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.StudentRecordFilter{
		CourseID: c.Query("courseId"),
		DateFrom: parseDateQuery(c, "dateFrom"),
		DateTo:   parseDateQuery(c, "dateTo"),
	}
	result, err := h.reports.ExportStudent(c.Request.Context(), actor, c.Param("id"), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeAttachment(c, result)
}

func reportFormat(c *gin.Context) (models.ReportFormat, error) {
	raw := strings.ToLower(c.DefaultQuery("format", "csv"))
	if raw == "xlsx" {
		raw = string(models.ReportFormatExcel)
	}
	format := models.ReportFormat(raw)
	if !format.Valid() {
		return "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	return format, nil
}

func writeAttachment(c *gin.Context, result *service.ExportResult) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Data)
}
