package router

import (
	"context"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/dairy-portal-api/internal/handler"
	"github.com/noah-isme/dairy-portal-api/internal/middleware"
	"github.com/noah-isme/dairy-portal-api/internal/models"
	"github.com/noah-isme/dairy-portal-api/internal/service"
	"github.com/noah-isme/dairy-portal-api/pkg/config"
	"github.com/noah-isme/dairy-portal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/dairy-portal-api/pkg/middleware/cors"
	"github.com/noah-isme/dairy-portal-api/pkg/middleware/ratelimit"
	reqidmiddleware "github.com/noah-isme/dairy-portal-api/pkg/middleware/requestid"
	"github.com/noah-isme/dairy-portal-api/pkg/storage"
)

// Handlers groups every HTTP handler mounted by New.
type Handlers struct {
	Auth      *handler.AuthHandler
	Users     *handler.UserHandler
	Templates *handler.TemplateHandler
	Uploads   *handler.UploadHandler
	Drafts    *handler.DraftHandler
	Reports   *handler.ReportHandler
	Activity  *handler.ActivityHandler
	Exports   *handler.ExportHandler
	Metrics   *handler.MetricsHandler
}

// Options carries the cross-cutting collaborators of the router.
type Options struct {
	Config  *config.Config
	Logger  *zap.Logger
	Tokens  middleware.TokenValidator
	Metrics *service.MetricsService
	// LocalFilesDir is served under storage.LocalFilesRoute when set.
	LocalFilesDir string
}

// New builds the gin engine. ctx bounds background helpers such as the
// rate limiter sweeper.
func New(ctx context.Context, opts Options, h Handlers) *gin.Engine {
	cfg := opts.Config
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = 8 << 20
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Metrics))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	if opts.LocalFilesDir != "" {
		r.Static(storage.LocalFilesRoute, opts.LocalFilesDir)
	}

	api := r.Group(cfg.APIPrefix)
	if cfg.RateLimit.Enabled && cfg.RateLimit.RequestsPerSecond > 0 {
		limiter := ratelimit.New(ctx, cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
		api.Use(limiter.Middleware())
	}

	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)
	api.GET("/exports/:token", h.Exports.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(opts.Tokens))
	admin := middleware.RequireRoles(models.RoleAdmin)
	user := middleware.RequireRoles(models.RoleUser)

	secured.POST("/auth/logout", h.Auth.Logout)
	secured.POST("/auth/change-password", h.Auth.ChangePassword)
	secured.GET("/auth/me", h.Auth.Me)

	users := secured.Group("/users", admin)
	users.GET("", h.Users.List)
	users.POST("", h.Users.Create)
	users.GET("/:id", h.Users.Get)
	users.PUT("/:id", h.Users.Update)
	users.DELETE("/:id", h.Users.Delete)

	secured.GET("/templates", h.Templates.List)
	secured.GET("/templates/:id", h.Templates.Get)
	secured.POST("/templates", admin, h.Templates.Create)
	secured.POST("/templates/:id/versions", admin, h.Templates.CreateVersion)
	secured.GET("/templates/:id/history", admin, h.Templates.History)

	secured.POST("/uploads", user, h.Uploads.Submit)
	secured.GET("/uploads", h.Uploads.List)
	secured.GET("/uploads/:id", h.Uploads.Get)
	secured.PATCH("/uploads/:id/status", admin, h.Uploads.Review)
	secured.POST("/uploads/:id/drafts", admin, h.Drafts.CreateAdminDraft)
	secured.GET("/uploads/:id/drafts", h.Drafts.Thread)
	secured.GET("/uploads/:id/report", h.Reports.ForUpload)

	secured.GET("/drafts", h.Drafts.List)
	secured.GET("/drafts/:id", h.Drafts.Get)
	secured.POST("/drafts/:id/respond", user, h.Drafts.Respond)
	secured.PATCH("/drafts/:id/status", h.Drafts.UpdateStatus)
	secured.POST("/drafts/:id/final", h.Drafts.MarkFinal)

	secured.GET("/reports", h.Reports.List)
	secured.GET("/activity", admin, h.Activity.List)
	secured.POST("/exports/review-summary", admin, h.Exports.ReviewSummary)

	return r
}
