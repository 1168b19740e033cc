package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/univtrack/attendance-api/internal/middleware"
	"github.com/univtrack/attendance-api/internal/models"
	"github.com/univtrack/attendance-api/internal/service"
	appErrors "github.com/univtrack/attendance-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// studentLookup resolves the student profile behind a user account.
type studentLookup interface {
	GetStudentByUser(ctx context.Context, userID string) (*models.StudentDetail, error)
}

// actorResolver turns JWT claims into a service.Actor, resolving the
// student profile row for STUDENT accounts.
type actorResolver struct {
	students studentLookup
}

func newActorResolver(students studentLookup) actorResolver {
	return actorResolver{students: students}
}

func (r actorResolver) actorFrom(c *gin.Context) (service.Actor, error) {
	claims := claimsFromContext(c)
	if claims == nil {
		return service.Actor{}, appErrors.ErrUnauthorized
	}

	actor := service.Actor{UserID: claims.UserID, Role: claims.Role}
	if claims.Role == models.RoleStudent && r.students != nil {
		profile, err := r.students.GetStudentByUser(c.Request.Context(), claims.UserID)
		if err != nil {
			return service.Actor{}, appErrors.Clone(appErrors.ErrForbidden, "no student profile for account")
		}
		actor.StudentID = profile.ID
	}
	return actor, nil
}

func paginationParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || size < 1 {
		size = 20
	}
	return page, size
}
