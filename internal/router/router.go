package router

import (
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/fieldsync-api/internal/handler"
	"github.com/noah-isme/fieldsync-api/internal/middleware"
	"github.com/noah-isme/fieldsync-api/internal/models"
	"github.com/noah-isme/fieldsync-api/internal/service"
	"github.com/noah-isme/fieldsync-api/pkg/config"
	"github.com/noah-isme/fieldsync-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/fieldsync-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/fieldsync-api/pkg/middleware/requestid"
)

// Options carries the cross-cutting dependencies of the HTTP surface.
type Options struct {
	Env            string
	APIPrefix      string
	AllowedOrigins []string
	Logger         *zap.Logger
	// Metrics is nil when request instrumentation is disabled.
	Metrics *service.MetricsService
	Auth    middleware.TokenValidator
	Audit   middleware.AuditWriter
}

// Handlers groups the endpoint handlers mounted by NewRouter.
type Handlers struct {
	Sync       *handler.SyncHandler
	Submission *handler.SubmissionHandler
	Upload     *handler.UploadHandler
	// Storage is set only for the filesystem object store.
	Storage *handler.StorageHandler
	Health  *handler.MetricsHandler
}

// NewRouter builds the gin engine with every API route registered.
func NewRouter(opts Options, h Handlers) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	if opts.Metrics != nil {
		r.Use(middleware.Metrics(opts.Metrics))
	}

	if h.Health != nil {
		r.GET("/health", h.Health.Health)
		r.GET("/ready", h.Health.Ready)
		if opts.Metrics != nil {
			r.GET("/metrics", h.Health.Prometheus)
		}
	}

	if opts.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(normalizePrefix(opts.APIPrefix))

	// Signed tokens authorise these requests; no bearer token is involved.
	if h.Storage != nil {
		api.PUT("/storage/objects", h.Storage.Upload)
		api.GET("/storage/objects", h.Storage.Download)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(opts.Auth))

	if h.Sync != nil {
		sync := secured.Group("/sync")
		sync.POST("/submissions", middleware.RequirePermission(models.PermissionSubmissionCreate), h.Sync.SyncSubmissions)
		sync.GET("/status", h.Sync.Status)
	}

	if h.Submission != nil {
		submissions := secured.Group("/submissions")
		submissions.POST("", middleware.RequirePermission(models.PermissionSubmissionCreate), h.Submission.Create)
		submissions.GET("/:id", middleware.RequirePermission(models.PermissionSubmissionRead), h.Submission.Get)
		submissions.PATCH("/:id/status", middleware.RequirePermission(models.PermissionSubmissionReview), h.Submission.UpdateStatus)
	}

	if h.Upload != nil {
		uploads := secured.Group("/uploads/multipart")
		uploads.Use(middleware.RequirePermission(models.PermissionUploadWrite))
		uploads.POST("", middleware.Audit(opts.Audit, models.AuditActionUploadInitiate, models.AuditResourceUpload), h.Upload.Initiate)
		uploads.POST("/complete", middleware.Audit(opts.Audit, models.AuditActionUploadComplete, models.AuditResourceUpload), h.Upload.Complete)
		uploads.POST("/abort", middleware.Audit(opts.Audit, models.AuditActionUploadAbort, models.AuditResourceUpload), h.Upload.Abort)

		secured.GET("/objects/:id/download-url", middleware.RequirePermission(models.PermissionSubmissionRead), h.Upload.DownloadURL)
	}

	return r
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" || prefix == "/" {
		return "/"
	}
	return "/" + strings.Trim(prefix, "/")
}
