package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/talentshire/assessment-core/internal/config"
	"github.com/talentshire/assessment-core/internal/handler"
	"github.com/talentshire/assessment-core/internal/metrics"
	"github.com/talentshire/assessment-core/internal/middleware"
	"github.com/talentshire/assessment-core/internal/response"
	"github.com/talentshire/assessment-core/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Health     *handler.HealthHandler
	Assignment *handler.AssignmentHandler
	Candidate  *handler.CandidateHandler
	Report     *handler.ReportHandler
	Internal   *handler.InternalHandler
	WS         *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	limiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(metrics.MetricsMiddleware())
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.Health.Health)
	router.GET("/metrics", metrics.PrometheusHandler())

	// ─── 1. Admin Group ────────────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		adminAPI.POST("/assignments", handlers.Assignment.CreateAssignment)
		adminAPI.GET("/assignments/:id", handlers.Assignment.GetAssignment)
		adminAPI.GET("/assignments/:id/answers", handlers.Assignment.ListAnswers)
		adminAPI.GET("/assignments/:id/report", handlers.Report.GetAssignmentReport)
		adminAPI.POST("/assignments/:id/expire", handlers.Assignment.ExpireAssignment)
		adminAPI.POST("/assignments/:id/archive", handlers.Assignment.ArchiveAssignment)
		adminAPI.GET("/tests/:test_id/assignments", handlers.Assignment.ListTestAssignments)
		adminAPI.GET("/answers/:answer_id/execution", handlers.Assignment.GetExecutionDetail)

		// :id is the assignment for generate and the report for the plain GET.
		adminAPI.POST("/reports/:id/generate", handlers.Report.GenerateReport)
		adminAPI.GET("/reports/:id", handlers.Report.GetReport)
	}

	// ─── 2. Candidate Group (JWT + Per-Candidate Rate Limit) ───────────
	candidateAPI := router.Group("/api/v1/candidate")
	candidateAPI.Use(middleware.RequireCandidateJWT(authService))
	if limiter != nil {
		candidateAPI.Use(limiter.CandidateMiddleware())
	}
	{
		candidateAPI.GET("/assignments", handlers.Candidate.ListAssignments)
		candidateAPI.GET("/assignments/:id", handlers.Candidate.GetAssignment)
		candidateAPI.POST("/assignments/:id/start", handlers.Candidate.StartAssignment)
		candidateAPI.POST("/assignments/:id/end", handlers.Candidate.EndAssignment)
		candidateAPI.POST("/assignments/:id/answers/mcq", handlers.Candidate.SubmitMCQAnswer)
		candidateAPI.POST("/assignments/:id/answers/code", handlers.Candidate.SubmitCodeAnswer)
	}

	// ─── 3. Internal Group (Service JWT) ───────────────────────────────
	internalAPI := router.Group("/api/v1/internal")
	internalAPI.Use(middleware.RequireServiceJWT(authService))
	{
		internalAPI.POST("/answers/:answer_id/enrich", handlers.Internal.EnrichAnswer)
	}

	// ─── 4. WebSocket Group (Candidate WS Auth) ────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireCandidateWSAuth(authService))
	{
		ws.GET("/candidate/assignments/:id/stream", handlers.WS.AssignmentStream)
	}

	return router
}
