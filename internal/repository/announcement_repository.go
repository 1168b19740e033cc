package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/univtrack/attendance-api/internal/models"
)

// AnnouncementRepository manages persistence for announcements.
type AnnouncementRepository struct {
	db *sqlx.DB
}

// NewAnnouncementRepository constructs an AnnouncementRepository.
func NewAnnouncementRepository(db *sqlx.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

const announcementColumns = `id, title, content, author_id, course_id, global, priority, active, created_at, updated_at`

// List returns announcements visible under the filter, highest priority
// first and newest within each priority.
func (r *AnnouncementRepository) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	base := "FROM announcements"
	conditions := []string{"active"}
	var args []interface{}

	if !filter.Unrestricted {
		var visibility []string
		if filter.IncludeGlobal {
			visibility = append(visibility, "global")
		}
		if len(filter.CourseIDs) > 0 {
			visibility = append(visibility, fmt.Sprintf("course_id = ANY($%d)", len(args)+1))
			args = append(args, pq.Array(filter.CourseIDs))
		}
		if filter.AuthorID != "" {
			visibility = append(visibility, fmt.Sprintf("author_id = $%d", len(args)+1))
			args = append(args, filter.AuthorID)
		}
		if len(visibility) == 0 {
			return nil, 0, nil
		}
		conditions = append(conditions, "("+strings.Join(visibility, " OR ")+")")
	}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Priority != "" {
		conditions = append(conditions, fmt.Sprintf("priority = $%d", len(args)+1))
		args = append(args, filter.Priority)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s %s
        ORDER BY CASE priority WHEN 'HIGH' THEN 0 WHEN 'NORMAL' THEN 1 ELSE 2 END, created_at DESC
        LIMIT %d OFFSET %d`, announcementColumns, base, size, offset)

	var announcements []models.Announcement
	if err := r.db.SelectContext(ctx, &announcements, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list announcements: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count announcements: %w", err)
	}
	return announcements, total, nil
}

// FindByID fetches an announcement by identifier.
func (r *AnnouncementRepository) FindByID(ctx context.Context, id string) (*models.Announcement, error) {
	query := fmt.Sprintf(`SELECT %s FROM announcements WHERE id = $1 LIMIT 1`, announcementColumns)
	var announcement models.Announcement
	if err := r.db.GetContext(ctx, &announcement, query, id); err != nil {
		return nil, err
	}
	return &announcement, nil
}

// Create inserts a new announcement.
func (r *AnnouncementRepository) Create(ctx context.Context, announcement *models.Announcement) error {
	if announcement.ID == "" {
		announcement.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if announcement.CreatedAt.IsZero() {
		announcement.CreatedAt = now
	}
	announcement.UpdatedAt = now
	const query = `INSERT INTO announcements (id, title, content, author_id, course_id, global, priority, active, created_at, updated_at)
        VALUES (:id, :title, :content, :author_id, :course_id, :global, :priority, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, announcement); err != nil {
		return fmt.Errorf("create announcement: %w", err)
	}
	return nil
}

// Update modifies an existing announcement.
func (r *AnnouncementRepository) Update(ctx context.Context, announcement *models.Announcement) error {
	announcement.UpdatedAt = time.Now().UTC()
	const query = `UPDATE announcements SET title = :title, content = :content, course_id = :course_id, global = :global, priority = :priority, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, announcement); err != nil {
		return fmt.Errorf("update announcement: %w", err)
	}
	return nil
}

// Deactivate soft deletes an announcement.
func (r *AnnouncementRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE announcements SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate announcement: %w", err)
	}
	return nil
}
