package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/medev/blogapi/config"
	"github.com/medev/blogapi/controllers"
	"github.com/medev/blogapi/middleware"
	"github.com/medev/blogapi/utils"
)

// SetupRouter wires every endpoint onto a gin engine.
func SetupRouter(auth *controllers.AuthController, posts *controllers.PostController) *gin.Engine {
	cfg := config.Get()
	gin.SetMode(cfg.GinMode)

	r := gin.New()
	r.Use(utils.GinLogger(), utils.GinRecovery())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authGroup := r.Group("/auth", middleware.RateLimitMiddleware())
	{
		authGroup.POST("/register", auth.Register)
		authGroup.POST("/login", auth.Login)
		authGroup.POST("/password-reset", auth.PasswordReset)
		authGroup.POST("/password/reset-confirm/:uid/:token", auth.PasswordResetConfirm)

		session := authGroup.Group("", middleware.AuthRequired())
		{
			session.POST("/logout", auth.Logout)
			session.GET("/user", auth.UserDetail)
			session.PATCH("/user", auth.UpdateUser)
			session.POST("/password-change", auth.PasswordChange)
		}
	}

	postGroup := r.Group("/posts", middleware.AuthOptional())
	{
		postGroup.GET("", posts.List)
		postGroup.POST("", posts.Create)
		postGroup.GET("/:slug", posts.Retrieve)
		postGroup.PUT("/:slug", posts.Update)
		postGroup.PATCH("/:slug", posts.PartialUpdate)
		postGroup.DELETE("/:slug", posts.Delete)
	}

	r.NoRoute(func(ctx *gin.Context) {
		utils.NotFound(ctx)
	})

	return r
}
