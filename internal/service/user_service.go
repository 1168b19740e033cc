package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/univtrack/attendance-api/internal/models"
	appErrors "github.com/univtrack/attendance-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Deactivate(ctx context.Context, id string) error
}

type userStudentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error)
	Update(ctx context.Context, student *models.Student) error
}

// UserService provides admin-facing account management.
type UserService struct {
	users     userRepository
	students  userStudentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(users userRepository, students userStudentRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, students: students, validator: validate, logger: logger}
}

// ListUsersRequest filters the account listing.
type ListUsersRequest struct {
	Role      string `json:"role" validate:"omitempty,role"`
	Active    *bool  `json:"active"`
	Search    string `json:"search"`
	Page      int    `json:"page"`
	PageSize  int    `json:"page_size"`
	SortBy    string `json:"sort_by"`
	SortOrder string `json:"sort_order"`
}

// UpdateUserRequest carries editable account fields.
type UpdateUserRequest struct {
	FirstName string  `json:"first_name" validate:"required"`
	LastName  string  `json:"last_name" validate:"required"`
	Phone     *string `json:"phone"`
	Active    *bool   `json:"active"`
}

// UpdateStudentProfileRequest carries editable student profile fields.
type UpdateStudentProfileRequest struct {
	Department  string `json:"department" validate:"required"`
	YearOfStudy int    `json:"year_of_study" validate:"required,min=1"`
}

// List returns accounts matching the filter.
func (s *UserService) List(ctx context.Context, req ListUsersRequest) ([]models.User, *models.Pagination, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user filter")
	}

	filter := models.UserFilter{
		Active:    req.Active,
		Search:    req.Search,
		Page:      req.Page,
		PageSize:  req.PageSize,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	}
	if req.Role != "" {
		role := models.UserRole(strings.ToUpper(req.Role))
		filter.Role = &role
	}

	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns one account by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Update edits an account's mutable fields.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	user.FirstName = req.FirstName
	user.LastName = req.LastName
	user.Phone = req.Phone
	if req.Active != nil {
		user.Active = *req.Active
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	return user, nil
}

// Deactivate soft deletes an account.
func (s *UserService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.users.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate user")
	}
	s.logger.Info("user deactivated", zap.String("user_id", id))
	return nil
}

// ListStudents returns student profiles matching the filter.
func (s *UserService) ListStudents(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	students, total, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, paginationFor(filter.Page, filter.PageSize, total), nil
}

// GetStudent returns one student profile by ID.
func (s *UserService) GetStudent(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// GetStudentByUser returns the student profile attached to a user account.
func (s *UserService) GetStudentByUser(ctx context.Context, userID string) (*models.StudentDetail, error) {
	student, err := s.students.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student profile")
	}
	return student, nil
}

// UpdateStudent edits a student profile.
func (s *UserService) UpdateStudent(ctx context.Context, id string, req UpdateStudentProfileRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student, err := s.GetStudent(ctx, id)
	if err != nil {
		return nil, err
	}

	student.Department = req.Department
	student.YearOfStudy = req.YearOfStudy

	if err := s.students.Update(ctx, &student.Student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

func paginationFor(page, pageSize, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
}
