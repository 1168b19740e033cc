package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/univtrack/attendance-api/internal/models"
	appErrors "github.com/univtrack/attendance-api/pkg/errors"
	"github.com/univtrack/attendance-api/pkg/export"
	"github.com/univtrack/attendance-api/pkg/jobs"
)

type reportCourseRepository interface {
	All(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, error)
	FindByID(ctx context.Context, id string) (*models.CourseDetail, error)
}

type reportSessionRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.SessionDetail, error)
}

type reportEnrollmentRepository interface {
	CountActive(ctx context.Context, courseID string) (int, error)
}

type reportAttendanceRepository interface {
	ListBySessions(ctx context.Context, sessionIDs []string) ([]models.AttendanceRecord, error)
}

type matrixBuilder interface {
	CourseMatrix(ctx context.Context, actor Actor, courseID string) (*models.CourseMatrixView, error)
	StudentView(ctx context.Context, actor Actor, studentID string, filter models.StudentRecordFilter) (*models.StudentAttendanceView, error)
}

type exportStorage interface {
	Save(filename string, data []byte) (string, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type xlsxRenderer interface {
	Render(data export.Dataset, sheet string) ([]byte, error)
}

// ReportConfig tunes summary caching and export file retention.
type ReportConfig struct {
	SummaryCacheTTL time.Duration
	ExportTTL       time.Duration
	CleanupInterval time.Duration
}

// ExportResult is a rendered report ready to be served.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
	StoredPath  string
}

// ReportService builds the cross-course summary and renders exports.
type ReportService struct {
	courses     reportCourseRepository
	sessions    reportSessionRepository
	enrollments reportEnrollmentRepository
	records     reportAttendanceRepository
	views       matrixBuilder
	storage     exportStorage
	cache       *CacheService
	metrics     *MetricsService
	csv         csvRenderer
	pdf         pdfRenderer
	xlsx        xlsxRenderer
	logger      *zap.Logger
	cfg         ReportConfig
	cleanup     *jobs.Queue
}

// NewReportService constructs a ReportService.
func NewReportService(courses reportCourseRepository, sessions reportSessionRepository, enrollments reportEnrollmentRepository, records reportAttendanceRepository, views matrixBuilder, storage exportStorage, cache *CacheService, metrics *MetricsService, cfg ReportConfig, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ExportTTL <= 0 {
		cfg.ExportTTL = 24 * time.Hour
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}
	svc := &ReportService{
		courses:     courses,
		sessions:    sessions,
		enrollments: enrollments,
		records:     records,
		views:       views,
		storage:     storage,
		cache:       cache,
		metrics:     metrics,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		xlsx:        export.NewXLSXExporter(),
		logger:      logger,
		cfg:         cfg,
	}
	svc.cleanup = jobs.NewQueue("export-cleanup", svc.handleCleanup, jobs.QueueConfig{Workers: 1, Logger: logger})
	return svc
}

// Summary builds the cross-course attendance dashboard. Lecturers see only
// the courses they teach. Results are cached per scope when caching is on.
func (s *ReportService) Summary(ctx context.Context, actor Actor, filter models.SummaryFilter) (*models.AttendanceSummary, error) {
	cacheKey := s.summaryCacheKey(actor, filter)
	if s.cache.Enabled() {
		var cached models.AttendanceSummary
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return &cached, nil
		}
	}

	courseFilter := models.CourseFilter{}
	if actor.Role == models.RoleLecturer {
		courseFilter.LecturerID = actor.UserID
	}

	var courses []models.CourseDetail
	if filter.CourseID != "" {
		course, err := s.courses.FindByID(ctx, filter.CourseID)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		if actor.Role == models.RoleLecturer && course.LecturerID != actor.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "course is managed by another lecturer")
		}
		courses = []models.CourseDetail{*course}
	} else {
		all, err := s.courses.All(ctx, courseFilter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
		}
		courses = all
	}

	summary := &models.AttendanceSummary{
		Courses:     make([]models.CourseSummary, 0, len(courses)),
		GeneratedAt: time.Now().UTC(),
	}

	for _, course := range courses {
		block, err := s.courseSummary(ctx, course, filter)
		if err != nil {
			return nil, err
		}
		summary.TotalCourses++
		summary.TotalSessions += block.TotalSessions
		summary.TotalRecords += block.TotalRecords
		summary.Counts.Present += block.Present
		summary.Counts.Late += block.Late
		summary.Counts.Absent += block.Absent
		summary.Counts.Excused += block.Excused
		summary.Courses = append(summary.Courses, *block)
	}

	if s.cache.Enabled() {
		_ = s.cache.Set(ctx, cacheKey, summary, s.cfg.SummaryCacheTTL)
	}
	return summary, nil
}

// InvalidateSummary drops cached summaries after attendance mutations.
func (s *ReportService) InvalidateSummary(ctx context.Context) {
	if s.cache.Enabled() {
		_ = s.cache.Invalidate(ctx, "reports:summary:*")
	}
}

// ExportCourse renders the course matrix in the requested format and
// persists a copy under the export directory. A date range restricts the
// session columns; per-student statistics are recomputed over what remains.
func (s *ReportService) ExportCourse(ctx context.Context, actor Actor, courseID string, rng models.DateRange, format models.ReportFormat) (*ExportResult, error) {
	if !format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}

	matrix, err := s.views.CourseMatrix(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}
	matrix = filterMatrix(matrix, rng)

	dataset := courseMatrixDataset(matrix)
	title := fmt.Sprintf("%s %s attendance", matrix.Course.Code, matrix.Course.Name)
	return s.render(dataset, format, title, fmt.Sprintf("course_%s", matrix.Course.Code))
}

// ExportStudent renders one student's attendance history in the requested format.
func (s *ReportService) ExportStudent(ctx context.Context, actor Actor, studentID string, filter models.StudentRecordFilter, format models.ReportFormat) (*ExportResult, error) {
	if !format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}

	view, err := s.views.StudentView(ctx, actor, studentID, filter)
	if err != nil {
		return nil, err
	}

	dataset := studentHistoryDataset(view)
	title := fmt.Sprintf("attendance history %s", view.Student.StudentID)
	return s.render(dataset, format, title, fmt.Sprintf("student_%s", view.Student.StudentID))
}

// StartCleanup launches the background pruner for stored export files.
func (s *ReportService) StartCleanup(ctx context.Context) {
	s.cleanup.Start(ctx)
	go func() {
		ticker := time.NewTicker(s.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.cleanup.Enqueue(jobs.Job{ID: uuid.NewString(), Type: "prune-exports"}); err != nil {
					s.logger.Warn("failed to enqueue export cleanup", zap.Error(err))
				}
			}
		}
	}()
}

// StopCleanup stops the cleanup workers.
func (s *ReportService) StopCleanup() {
	s.cleanup.Stop()
}

func (s *ReportService) handleCleanup(_ context.Context, _ jobs.Job) error {
	if s.storage == nil {
		return nil
	}
	deleted, err := s.storage.CleanupOlderThan(s.cfg.ExportTTL)
	if err != nil {
		return err
	}
	if len(deleted) > 0 {
		s.logger.Info("pruned expired exports", zap.Int("count", len(deleted)))
	}
	return nil
}

func (s *ReportService) courseSummary(ctx context.Context, course models.CourseDetail, filter models.SummaryFilter) (*models.CourseSummary, error) {
	sessions, err := s.sessions.ListByCourse(ctx, course.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}

	inRange := sessions[:0:0]
	for _, session := range sessions {
		if filter.DateFrom != nil && session.Date.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && session.Date.After(*filter.DateTo) {
			continue
		}
		inRange = append(inRange, session)
	}

	enrolled, err := s.enrollments.CountActive(ctx, course.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}

	sessionIDs := make([]string, len(inRange))
	for i, session := range inRange {
		sessionIDs[i] = session.ID
	}
	records, err := s.records.ListBySessions(ctx, sessionIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list records")
	}

	var counts models.AttendanceCounts
	for _, record := range records {
		counts.Add(record.Status)
	}

	expected := len(inRange) * enrolled
	block := &models.CourseSummary{
		Course:        course.Course,
		TotalSessions: len(inRange),
		EnrolledCount: enrolled,
		TotalRecords:  len(records),
		Present:       counts.Present,
		Late:          counts.Late,
		Absent:        counts.Absent,
		Excused:       counts.Excused,
		Unmarked:      expected - len(records),
	}
	if expected > 0 {
		block.AttendanceRate = float64(counts.Present+counts.Late) / float64(expected) * 100
	}
	return block, nil
}

func (s *ReportService) render(dataset export.Dataset, format models.ReportFormat, title, stem string) (*ExportResult, error) {
	var payload []byte
	var err error
	var ext, contentType string

	switch format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
		ext, contentType = "csv", "text/csv"
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
		ext, contentType = "pdf", "application/pdf"
	case models.ReportFormatExcel:
		payload, err = s.xlsx.Render(dataset, "Attendance")
		ext, contentType = "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := fmt.Sprintf("%s_%s.%s", stem, time.Now().UTC().Format("20060102_150405"), ext)
	stored := ""
	if s.storage != nil {
		path, err := s.storage.Save(filename, payload)
		if err != nil {
			s.logger.Warn("failed to persist export", zap.String("filename", filename), zap.Error(err))
		} else {
			stored = path
		}
	}

	s.metrics.RecordExport(string(format))
	return &ExportResult{
		Filename:    filename,
		ContentType: contentType,
		Data:        payload,
		StoredPath:  stored,
	}, nil
}

func (s *ReportService) summaryCacheKey(actor Actor, filter models.SummaryFilter) string {
	scope := "all"
	if actor.Role == models.RoleLecturer {
		scope = actor.UserID
	}
	raw := fmt.Sprintf("%s|%s|%v|%v", scope, filter.CourseID, filter.DateFrom, filter.DateTo)
	sum := sha1.Sum([]byte(raw))
	return "reports:summary:" + hex.EncodeToString(sum[:])
}

// filterMatrix restricts a course matrix to sessions inside the date range
// and recomputes per-row statistics and totals over the remaining columns.
func filterMatrix(matrix *models.CourseMatrixView, rng models.DateRange) *models.CourseMatrixView {
	if rng.Empty() {
		return matrix
	}

	keep := make([]bool, len(matrix.Sessions))
	sessions := matrix.Sessions[:0:0]
	for i, session := range matrix.Sessions {
		if rng.Contains(session.Date) {
			keep[i] = true
			sessions = append(sessions, session)
		}
	}

	out := &models.CourseMatrixView{
		Course:        matrix.Course,
		Sessions:      sessions,
		Rows:          make([]models.MatrixRow, 0, len(matrix.Rows)),
		TotalStudents: matrix.TotalStudents,
		TotalSessions: len(sessions),
	}
	for _, row := range matrix.Rows {
		filtered := models.MatrixRow{
			Student: row.Student,
			Cells:   make([]models.MatrixCell, 0, len(sessions)),
		}
		var counts models.AttendanceCounts
		for i, cell := range row.Cells {
			if i >= len(keep) || !keep[i] {
				continue
			}
			counts.Add(cell.Attendance.Status)
			if cell.Attendance.Source == models.CellSourceRecorded {
				out.TotalRecords++
			}
			filtered.Cells = append(filtered.Cells, cell)
		}
		filtered.Statistics = models.StudentAttendanceStats{
			TotalSessions: len(sessions),
			Present:       counts.Present,
			Late:          counts.Late,
			Absent:        counts.Absent,
			Excused:       counts.Excused,
		}
		if len(sessions) > 0 {
			filtered.Statistics.AttendanceRate = float64(counts.Present+counts.Late) / float64(len(sessions)) * 100
		}
		out.Rows = append(out.Rows, filtered)
	}
	return out
}

// courseMatrixDataset flattens the matrix into export columns: identity,
// one column per session in chronological order, then the summary block.
// Session column keys are made unique per index so two sessions sharing a
// date and name keep separate columns. Rows follow the matrix order, which
// is already sorted by student code.
func courseMatrixDataset(matrix *models.CourseMatrixView) export.Dataset {
	headers := []string{"Student ID", "First Name", "Last Name", "Department", "Year of Study"}
	sessionHeaders := make([]string, len(matrix.Sessions))
	seen := make(map[string]int, len(matrix.Sessions))
	for i, session := range matrix.Sessions {
		header := fmt.Sprintf("%s - %s", session.Date.Format("2006-01-02"), session.Name)
		seen[header]++
		if n := seen[header]; n > 1 {
			header = fmt.Sprintf("%s (%d)", header, n)
		}
		sessionHeaders[i] = header
	}
	headers = append(headers, sessionHeaders...)
	headers = append(headers, "Present", "Late", "Absent", "Excused", "Total Sessions", "Attendance Rate (%)")

	rows := make([]map[string]string, 0, len(matrix.Rows))
	for _, row := range matrix.Rows {
		record := map[string]string{
			"Student ID":    row.Student.StudentID,
			"First Name":    row.Student.FirstName,
			"Last Name":     row.Student.LastName,
			"Department":    row.Student.Department,
			"Year of Study": fmt.Sprintf("%d", row.Student.YearOfStudy),
		}
		for i, cell := range row.Cells {
			record[sessionHeaders[i]] = string(cell.Attendance.Status)
		}
		record["Present"] = fmt.Sprintf("%d", row.Statistics.Present)
		record["Late"] = fmt.Sprintf("%d", row.Statistics.Late)
		record["Absent"] = fmt.Sprintf("%d", row.Statistics.Absent)
		record["Excused"] = fmt.Sprintf("%d", row.Statistics.Excused)
		record["Total Sessions"] = fmt.Sprintf("%d", row.Statistics.TotalSessions)
		record["Attendance Rate (%)"] = fmt.Sprintf("%.1f", row.Statistics.AttendanceRate)
		rows = append(rows, record)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func studentHistoryDataset(view *models.StudentAttendanceView) export.Dataset {
	headers := []string{"Date", "Course Code", "Course Name", "Session", "Start Time", "End Time", "Location", "Status", "Marked At", "Notes"}
	rows := make([]map[string]string, 0, len(view.Records))
	for _, record := range view.Records {
		notes := ""
		if record.Notes != nil {
			notes = *record.Notes
		}
		location := ""
		if record.Location != nil {
			location = *record.Location
		}
		rows = append(rows, map[string]string{
			"Date":        record.SessionDate.Format("2006-01-02"),
			"Course Code": record.CourseCode,
			"Course Name": record.CourseName,
			"Session":     record.SessionName,
			"Start Time":  record.StartTime,
			"End Time":    record.EndTime,
			"Location":    location,
			"Status":      string(record.Status),
			"Marked At":   record.MarkedAt.UTC().Format(time.RFC3339),
			"Notes":       notes,
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
