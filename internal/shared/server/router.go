package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bloodwork-backend/internal/services/health"
	"bloodwork-backend/internal/shared/config"
	"bloodwork-backend/internal/shared/metrics"
	"bloodwork-backend/internal/shared/server/middleware"
	"bloodwork-backend/internal/shared/server/respond"
)

const uploadRateGroup = "UPLOAD"

// RouteRegistrar attaches a feature's routes to the API group.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// RouterDeps holds handlers wired by bootstrap.
type RouterDeps struct {
	Config          config.Config
	AnalysisHandler RouteRegistrar
	Health          *health.Service
	// RateLimiter is shared across requests; nil builds a fresh one.
	RateLimiter *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Tracing(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		metrics.Middleware(),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				uploadRateGroup: {Rate: deps.Config.UploadRatePerSecond, Burst: deps.Config.UploadRateBurst},
			},
			GroupFor: rateGroupFor,
			Limiter:  deps.RateLimiter,
		}),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	if deps.Health != nil {
		api.GET("/ready", func(c *gin.Context) {
			report := deps.Health.Status(c.Request.Context())
			status := http.StatusOK
			if !report.OK {
				status = http.StatusServiceUnavailable
			}
			respond.JSON(c, status, report)
		})
	}
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(api)
	}

	return r
}

func rateGroupFor(c *gin.Context) string {
	if c.Request.Method == http.MethodPost && strings.HasPrefix(c.Request.URL.Path, "/api/v1/analyses") {
		return uploadRateGroup
	}
	return ""
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
