package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/english-mastery/backend/models"
	"github.com/english-mastery/backend/services"
	"github.com/english-mastery/backend/utils"
)

const (
	ContextUserID = "user_id"
	ContextRole   = "role"
	ContextClaims = "claims"
)

func abortWith(c *gin.Context, status, code int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"code": code, "message": message, "data": nil})
}

// bearerToken reads "Authorization: Bearer <token>", falling back to
// X-Auth-Token for clients that cannot set Authorization.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		header = c.GetHeader("X-Auth-Token")
	}
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && strings.TrimSpace(parts[1]) != "" {
		return strings.TrimSpace(parts[1]), true
	}
	return "", false
}

// Authenticator resolves an access token to an active account. It backs
// both the HTTP middleware and the websocket handshake.
type Authenticator struct {
	db        *gorm.DB
	tokens    *utils.TokenManager
	blacklist utils.TokenBlacklist
}

func NewAuthenticator(db *gorm.DB, tokens *utils.TokenManager, blacklist utils.TokenBlacklist) *Authenticator {
	return &Authenticator{db: db, tokens: tokens, blacklist: blacklist}
}

// Authenticate rejects invalid or revoked tokens and missing or disabled
// accounts with an AppError.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*models.User, *utils.Claims, error) {
	claims, err := a.tokens.VerifyToken(token)
	if err != nil {
		return nil, nil, services.NewAppError(http.StatusUnauthorized, services.CodeInvalidToken, "invalid or expired token", err)
	}

	revoked, err := a.blacklist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, nil, services.NewAppError(http.StatusInternalServerError, services.CodeUnknown, "could not validate token", err)
	}
	if revoked {
		return nil, nil, services.NewAppError(http.StatusUnauthorized, services.CodeInvalidToken, "token has been revoked", nil)
	}

	var user models.User
	if err := a.db.WithContext(ctx).Select("id", "status", "role").First(&user, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, services.NewAppError(http.StatusUnauthorized, services.CodeUserNotFound, "user not found", nil)
		}
		return nil, nil, services.NewAppError(http.StatusInternalServerError, services.CodeUnknown, "could not load user", err)
	}
	if !user.IsActive() {
		return nil, nil, services.NewAppError(http.StatusForbidden, services.CodeUserDisabled, "account has been disabled", nil)
	}
	return &user, claims, nil
}

// AuthMiddleware resolves the acting user from the access token and
// rejects revoked tokens and disabled or missing accounts.
func AuthMiddleware(auth *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			abortWith(c, http.StatusUnauthorized, services.CodeUnauthorized, "missing or malformed Authorization header")
			return
		}

		user, claims, err := auth.Authenticate(c.Request.Context(), tokenString)
		if err != nil {
			appErr := services.AsAppError(err)
			abortWith(c, appErr.Status, appErr.Code, appErr.Message)
			return
		}

		c.Set(ContextUserID, user.ID)
		c.Set(ContextRole, string(user.Role))
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// CurrentUserID returns the id set by AuthMiddleware.
func CurrentUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
