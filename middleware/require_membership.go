package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/english-mastery/backend/models"
	"github.com/english-mastery/backend/services"
)

type EntitlementChecker interface {
	Check(ctx context.Context, userID uint, minLevel models.MembershipLevel) error
}

// RequireMembership must run after AuthMiddleware.
func RequireMembership(checker EntitlementChecker, level models.MembershipLevel) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := CurrentUserID(c)
		if !ok {
			abortWith(c, http.StatusUnauthorized, services.CodeUnauthorized, "authentication required")
			return
		}
		if err := checker.Check(c.Request.Context(), userID, level); err != nil {
			appErr := services.AsAppError(err)
			abortWith(c, appErr.Status, appErr.Code, appErr.Message)
			return
		}
		c.Next()
	}
}
