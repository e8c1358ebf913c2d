package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/auth/credentials/idtoken"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/english-mastery/backend/logger"
	"github.com/english-mastery/backend/models"
	"github.com/english-mastery/backend/services"
	"github.com/english-mastery/backend/utils"
)

type RegisterInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	FullName string `json:"full_name" binding:"required"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type GoogleLoginInput struct {
	IDToken string `json:"id_token" binding:"required"`
}

// GoogleTokenValidator verifies a Google ID token for the given audience.
type GoogleTokenValidator func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

type AuthController struct {
	db        *gorm.DB
	tokens    *utils.TokenManager
	blacklist utils.TokenBlacklist
	log       *logger.Logger

	googleClientID string
	validateGoogle GoogleTokenValidator
}

func NewAuthController(db *gorm.DB, tokens *utils.TokenManager, blacklist utils.TokenBlacklist, log *logger.Logger) *AuthController {
	return &AuthController{
		db:             db,
		tokens:         tokens,
		blacklist:      blacklist,
		log:            log.With("controller", "auth"),
		validateGoogle: idtoken.Validate,
	}
}

// WithGoogle enables POST /auth/google for tokens issued to clientID.
// A nil validator keeps idtoken.Validate.
func (ac *AuthController) WithGoogle(clientID string, validate GoogleTokenValidator) *AuthController {
	ac.googleClientID = strings.TrimSpace(clientID)
	if validate != nil {
		ac.validateGoogle = validate
	}
	return ac
}

func (ac *AuthController) Register(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))

	var existing models.User
	err := ac.db.WithContext(c.Request.Context()).Select("id").Where("email = ?", email).First(&existing).Error
	if err == nil {
		respondError(c, ac.log, services.NewAppError(http.StatusConflict, services.CodeEmailExists, "email is already registered", nil))
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, ac.log, err)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, ac.log, err)
		return
	}

	user := models.User{
		FullName: strings.TrimSpace(input.FullName),
		Email:    email,
		Password: string(hashed),
		Role:     models.RoleStudent,
		Membership: &models.Membership{
			Level:     models.MembershipFree,
			StartDate: time.Now(),
		},
	}
	if err := ac.db.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		respondError(c, ac.log, err)
		return
	}

	ac.log.Info("user registered", "user_id", user.ID)
	respond(c, http.StatusCreated, "registered", user)
}

func (ac *AuthController) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	invalid := services.NewAppError(http.StatusUnauthorized, services.CodeInvalidCredentials, "incorrect email or password", nil)

	var user models.User
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if err := ac.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, ac.log, invalid)
			return
		}
		respondError(c, ac.log, err)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		respondError(c, ac.log, invalid)
		return
	}
	ac.issueToken(c, &user)
}

// GoogleLogin signs in with a Google ID token, creating a free account the
// first time an email is seen.
func (ac *AuthController) GoogleLogin(c *gin.Context) {
	if ac.googleClientID == "" {
		respondError(c, ac.log, services.NewAppError(http.StatusServiceUnavailable, services.CodeGoogleNotEnabled, "Google sign-in is not enabled", nil))
		return
	}
	var input GoogleLoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	payload, err := ac.validateGoogle(c.Request.Context(), input.IDToken, ac.googleClientID)
	if err != nil {
		ac.log.Warn("google token rejected", "error", err)
		respondError(c, ac.log, services.NewAppError(http.StatusUnauthorized, services.CodeInvalidToken, "invalid Google token", nil))
		return
	}
	email, _ := payload.Claims["email"].(string)
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		respondError(c, ac.log, services.NewAppError(http.StatusUnauthorized, services.CodeInvalidToken, "Google token has no email", nil))
		return
	}
	if verified, ok := payload.Claims["email_verified"].(bool); ok && !verified {
		respondError(c, ac.log, services.NewAppError(http.StatusUnauthorized, services.CodeInvalidToken, "Google email is not verified", nil))
		return
	}
	fullName, _ := payload.Claims["name"].(string)

	db := ac.db.WithContext(c.Request.Context())
	var user models.User
	err = db.Where("email = ?", email).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if strings.TrimSpace(fullName) == "" {
			fullName, _, _ = strings.Cut(email, "@")
		}
		user = models.User{
			FullName: strings.TrimSpace(fullName),
			Email:    email,
			Role:     models.RoleStudent,
			Membership: &models.Membership{
				Level:     models.MembershipFree,
				StartDate: time.Now(),
			},
		}
		if err := db.Create(&user).Error; err != nil {
			respondError(c, ac.log, err)
			return
		}
		ac.log.Info("user registered via google", "user_id", user.ID)
	case err != nil:
		respondError(c, ac.log, err)
		return
	}

	ac.issueToken(c, &user)
}

func (ac *AuthController) issueToken(c *gin.Context, user *models.User) {
	if !user.IsActive() {
		respondError(c, ac.log, services.NewAppError(http.StatusForbidden, services.CodeUserDisabled, "account has been disabled", nil))
		return
	}

	token, err := ac.tokens.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		respondError(c, ac.log, err)
		return
	}

	respond(c, http.StatusOK, "logged in", gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"user": gin.H{
			"id":        user.ID,
			"email":     user.Email,
			"full_name": user.FullName,
			"role":      user.Role,
		},
	})
}

// Logout revokes the presented token for the rest of its lifetime.
func (ac *AuthController) Logout(c *gin.Context) {
	v, _ := c.Get("claims")
	claims, ok := v.(*utils.Claims)
	if !ok {
		respondError(c, ac.log, services.NewAppError(http.StatusUnauthorized, services.CodeUnauthorized, "authentication required", nil))
		return
	}
	if err := ac.blacklist.Revoke(c.Request.Context(), claims.ID, ac.tokens.Remaining(claims)); err != nil {
		respondError(c, ac.log, err)
		return
	}
	respond(c, http.StatusOK, "logged out", nil)
}

func (ac *AuthController) Me(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var user models.User
	if err := ac.db.WithContext(c.Request.Context()).Preload("Membership").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, ac.log, services.NewAppError(http.StatusNotFound, services.CodeUserNotFound, "user not found", nil))
			return
		}
		respondError(c, ac.log, err)
		return
	}
	respond(c, http.StatusOK, "success", user)
}
