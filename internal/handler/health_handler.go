package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/talentshire/assessment-core/internal/config"
	"github.com/talentshire/assessment-core/internal/response"
)

const healthCheckTimeout = 2 * time.Second

// Pinger is any backing store that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler reports backing store status and worker queue depth.
type HealthHandler struct {
	checks    map[string]Pinger
	rdb       *redis.Client
	startTime time.Time
	log       zerolog.Logger
}

type healthStatus struct {
	Status     string            `json:"status"`
	Uptime     string            `json:"uptime"`
	Goroutines int               `json:"goroutines"`
	Checks     map[string]string `json:"checks"`
	Queues     map[string]int64  `json:"queues,omitempty"`
}

// NewHealthHandler creates a new HealthHandler. rdb may be nil, in which case
// queue depth is omitted.
func NewHealthHandler(checks map[string]Pinger, rdb *redis.Client, log zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		checks:    checks,
		rdb:       rdb,
		startTime: time.Now(),
		log:       log.With().Str("component", "health_handler").Logger(),
	}
}

// Health godoc
// GET /health
// 200 when every check passes, 503 otherwise.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	st := healthStatus{
		Status:     "ok",
		Uptime:     time.Since(h.startTime).Truncate(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		Checks:     make(map[string]string, len(h.checks)),
	}

	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			h.log.Warn().Err(err).Str("check", name).Msg("Health check failed")
			st.Checks[name] = "down"
			st.Status = "degraded"
			continue
		}
		st.Checks[name] = "up"
	}

	if h.rdb != nil {
		st.Queues = h.queueDepths(ctx)
	}

	code := http.StatusOK
	if st.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	response.Success(c, code, st)
}

func (h *HealthHandler) queueDepths(ctx context.Context) map[string]int64 {
	pipe := h.rdb.Pipeline()
	reportsCmd := pipe.LLen(ctx, config.WorkerKey.GenerateReportsQueue)
	reviewsCmd := pipe.LLen(ctx, config.WorkerKey.AIReviewResultsQueue)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil
	}

	depths := make(map[string]int64, 2)
	depths[config.WorkerKey.GenerateReportsQueue], _ = reportsCmd.Result()
	depths[config.WorkerKey.AIReviewResultsQueue], _ = reviewsCmd.Result()
	return depths
}
