package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/blogium/blogium/config"
	"github.com/blogium/blogium/controllers"
	"github.com/blogium/blogium/middleware"
	"github.com/blogium/blogium/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Access log goes to its own rolling file so it stays separate from the app log.
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	// Record read traffic after each request.
	r.Use(middleware.PageViewRecorder(db))

	r.Static("/media", cfg.MediaDir)

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(db)
	postController := controllers.NewPostController(db)
	commentController := controllers.NewCommentController(db)
	categoryController := controllers.NewCategoryController(db)
	locationController := controllers.NewLocationController(db)
	mediaController := controllers.NewMediaController(db)
	statsController := controllers.NewStatsController(db)
	configController := controllers.NewConfigController()

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)
	authGroup.PATCH("/profile", middleware.AuthRequired(), authController.UpdateProfile)

	// Public reads. OptionalAuth resolves the viewer so profile owner view and
	// the author's detail bypass work without requiring login to browse.
	public := api.Group("")
	public.Use(middleware.OptionalAuth())
	public.GET("/posts", postController.ListPosts)
	public.GET("/posts/:id", postController.GetPost)
	public.GET("/categories", categoryController.ListCategories)
	public.GET("/categories/:slug/posts", categoryController.CategoryPosts)
	public.GET("/locations", locationController.ListLocations)
	public.GET("/users/:username", authController.GetUserPublic)
	public.GET("/users/:username/posts", postController.ListUserPosts)

	api.GET("/stats", statsController.GetStats)
	api.GET("/posts/:id/stats", statsController.GetPostStats)
	api.GET("/config/site", configController.GetSite)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())
	protected.POST("/posts", postController.CreatePost)
	protected.PUT("/posts/:id", postController.UpdatePost)
	protected.DELETE("/posts/:id", postController.DeletePost)
	protected.POST("/posts/:id/comments", commentController.CreateComment)
	protected.PUT("/comments/:commentId", commentController.UpdateComment)
	protected.DELETE("/comments/:commentId", commentController.DeleteComment)
	protected.POST("/upload", mediaController.UploadImage)

	admin := api.Group("")
	admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
	admin.POST("/categories", categoryController.CreateCategory)
	admin.PUT("/categories/:id", categoryController.UpdateCategory)
	admin.DELETE("/categories/:id", categoryController.DeleteCategory)
	admin.POST("/locations", locationController.CreateLocation)
	admin.PUT("/locations/:id", locationController.UpdateLocation)
	admin.DELETE("/locations/:id", locationController.DeleteLocation)

	r.NoRoute(func(ctx *gin.Context) {
		path := ctx.Request.URL.Path
		if strings.HasPrefix(path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		ctx.JSON(http.StatusNotFound, gin.H{"message": "not found"})
	})

	return r
}
