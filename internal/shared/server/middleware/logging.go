package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bloodwork-backend/internal/shared/telemetry"
)

// Logging writes one access line per request. Pipeline handlers enrich it
// through the runId, failedStage, failureKind and statusTransition context keys.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		fields := map[string]any{
			"request_id":        RequestIDFromContext(c),
			"method":            c.Request.Method,
			"route":             route,
			"status":            status,
			"duration_ms":       float64(time.Since(start).Microseconds()) / 1000.0,
			"bytes_out":         c.Writer.Size(),
			"run_id":            c.GetString("runId"),
			"status_transition": c.GetString("statusTransition"),
			"client_ip":         c.ClientIP(),
		}
		if stage := c.GetString("failedStage"); stage != "" {
			fields["failed_stage"] = stage
			fields["failure_kind"] = c.GetString("failureKind")
		}

		switch {
		case status >= http.StatusInternalServerError:
			telemetry.Error("request.complete", fields)
		case status >= http.StatusBadRequest:
			telemetry.Warn("request.complete", fields)
		default:
			telemetry.Info("request.complete", fields)
		}
	}
}
