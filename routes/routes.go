package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/english-mastery/backend/controllers"
	"github.com/english-mastery/backend/middleware"
	"github.com/english-mastery/backend/models"
	"github.com/english-mastery/backend/utils"
	"github.com/english-mastery/backend/ws"
)

type Dependencies struct {
	DB                 *gorm.DB
	Tokens             *utils.TokenManager
	Blacklist          utils.TokenBlacklist
	Entitlements       middleware.EntitlementChecker
	MaterialsMinLevel  models.MembershipLevel
	Hub                *ws.Hub
	AllowedOrigins     []string
	AuthController     *controllers.AuthController
	MaterialController *controllers.MaterialController
	HealthController   *controllers.HealthController
}

func SetupRouter(r *gin.Engine, d Dependencies) *gin.Engine {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
	r.GET("/health", d.HealthController.HealthCheck)

	authenticator := middleware.NewAuthenticator(d.DB, d.Tokens, d.Blacklist)
	requireAuth := middleware.AuthMiddleware(authenticator)

	api := r.Group("/api/v1")

	auth := api.Group("/auth")
	{
		auth.POST("/register", d.AuthController.Register)
		auth.POST("/login", d.AuthController.Login)
		auth.POST("/google", d.AuthController.GoogleLogin)
		auth.POST("/logout", requireAuth, d.AuthController.Logout)
		auth.GET("/me", requireAuth, d.AuthController.Me)
	}

	materials := api.Group("/materials")
	materials.Use(requireAuth)
	{
		create := middleware.RequireMembership(d.Entitlements, d.MaterialsMinLevel)
		materials.POST("/text", create, d.MaterialController.CreateFromText)
		materials.POST("/url", create, d.MaterialController.CreateFromURL)
		materials.POST("/file", create, d.MaterialController.CreateFromFile)
		materials.GET("", d.MaterialController.List)
		materials.GET("/:id", d.MaterialController.Detail)
		materials.GET("/:id/status", d.MaterialController.Status)
		materials.DELETE("/:id", d.MaterialController.Delete)
		materials.GET("/:id/vocabularies", d.MaterialController.ListVocabulary)
		materials.PATCH("/:id/vocabularies/:vocab_id", d.MaterialController.UpdateVocabulary)
		materials.GET("/:id/vocabularies/:vocab_id/audio", d.MaterialController.VocabularyAudio)
		materials.GET("/:id/questions", d.MaterialController.ListQuestions)
		materials.POST("/:id/questions/answer", d.MaterialController.SubmitAnswer)
	}

	r.GET("/ws/materials", ws.HandleMaterialWebSocket(d.Hub, authenticator, d.AllowedOrigins))

	return r
}
