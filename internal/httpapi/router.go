package httpapi

import (
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/aidocs/platform/internal/infrastructure/logger"
	"github.com/aidocs/platform/internal/observability"
)

// Router builds the gin engine and registers every route this platform
// exposes, layering the shared middleware ahead of the domain handlers.
type Router struct {
	handlers    *Handlers
	auth        *AuthMiddleware
	logging     *LoggingMiddleware
	recovery    *RecoveryMiddleware
	bodySize    *BodySizeMiddleware
	metricsPath string
	metricsOn   bool
	wsHandler   http.Handler
}

// NewRouter constructs a Router. When metricsEnabled is set, the Prometheus
// collectors registered by internal/observability are served at metricsPath.
// wsHandler, if non-nil, is mounted at /v1/jobs/ws to serve live job-event
// push; it authenticates its own connections, so it is not wrapped in
// RequireAuth.
func NewRouter(h *Handlers, auth *AuthMiddleware, log *logger.Logger, maxBodySize int64, metricsEnabled bool, metricsPath string, wsHandler http.Handler) *Router {
	return &Router{
		handlers:    h,
		auth:        auth,
		logging:     NewLoggingMiddleware(log),
		recovery:    NewRecoveryMiddleware(log),
		bodySize:    NewBodySizeMiddleware(maxBodySize),
		metricsOn:   metricsEnabled,
		metricsPath: metricsPath,
		wsHandler:   wsHandler,
	}
}

// Engine assembles the gin engine with all middleware and routes registered.
func (r *Router) Engine() *gin.Engine {
	engine := gin.New()
	engine.Use(r.recovery.Recovery(), r.logging.RequestLogger(), r.bodySize.LimitBodySize(), gzip.Gzip(gzip.DefaultCompression))

	engine.GET("/healthz", func(c *gin.Context) { c.Status(200) })
	if r.metricsOn {
		metricsHandler := observability.Handler()
		engine.GET(r.metricsPath, func(c *gin.Context) { metricsHandler.ServeHTTP(c.Writer, c.Request) })
	}

	v1 := engine.Group("/v1")
	{
		v1.GET("/account/balance", r.auth.RequireAuth(), r.handlers.GetBalance)

		artifacts := v1.Group("/artifacts")
		{
			artifacts.POST("/slide-decks", r.auth.RequireAuth(), r.handlers.CreateSlideDeck)
			artifacts.GET("/:id", r.auth.OptionalAuth(), r.handlers.GetArtifact)
			artifacts.POST("/:id/restore", r.auth.RequireAuth(), r.handlers.RestoreVersion)
			artifacts.POST("/:id/publish", r.auth.RequireAuth(), r.handlers.Publish)
			artifacts.POST("/:id/purchase", r.auth.RequireAuth(), r.handlers.Purchase)
			artifacts.POST("/:id/submissions", r.auth.RequireAuth(), r.handlers.SubmitTest)
		}

		slides := v1.Group("/slides/:id")
		slides.Use(r.auth.RequireAuth())
		{
			slides.POST("/generate", r.handlers.SlideGenerate)
			slides.POST("/format", r.handlers.SlideFormat)
			slides.POST("/edit", r.handlers.SlideEdit)
			slides.POST("/narrate", r.handlers.AudioNarration)
		}

		chapters := v1.Group("/chapters/:id")
		chapters.Use(r.auth.RequireAuth())
		{
			chapters.POST("/edit", r.handlers.ChapterEdit)
			chapters.POST("/format", r.handlers.ChapterFormat)
			chapters.POST("/translate", r.handlers.ChapterTranslate)
			chapters.POST("/bilingual", r.handlers.ChapterBilingual)
		}

		books := v1.Group("/books/:id")
		books.Use(r.auth.RequireAuth())
		{
			books.POST("/cover", r.handlers.ImageGenerate)
			books.POST("/chapters/import", r.handlers.ImportChapter)
			books.GET("/export", r.handlers.ExportBook)
		}

		v1.POST("/books/import", r.auth.RequireAuth(), r.handlers.ImportBook)

		tests := v1.Group("/tests/:id")
		tests.Use(r.auth.RequireAuth())
		{
			tests.POST("/generate", r.handlers.TestGenerate)
		}

		jobs := v1.Group("/jobs")
		jobs.Use(r.auth.RequireAuth())
		{
			jobs.GET("", r.handlers.ListJobs)
			jobs.GET("/:id/status", r.handlers.JobStatus)
		}
		if r.wsHandler != nil {
			v1.GET("/jobs/ws", gin.WrapH(r.wsHandler))
		}

		v1.POST("/withdrawals", r.auth.RequireAuth(), r.handlers.RequestWithdrawal)

		files := v1.Group("/files")
		files.Use(r.auth.RequireAuth())
		{
			files.POST("", r.handlers.UploadFile)
			files.GET("", r.handlers.ListFiles)
			files.GET("/:id", r.handlers.DownloadFile)
			files.DELETE("/:id", r.handlers.DeleteFile)
		}

		v1.POST("/folders", r.auth.RequireAuth(), r.handlers.CreateFolder)
	}

	return engine
}
