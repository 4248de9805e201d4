package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector exported by the service.
var Registry = prometheus.NewRegistry()

var (
	analysisStartedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analysis_started_total",
		Help: "Total analyses started.",
	})
	analysisCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analysis_completed_total",
		Help: "Total analyses completed.",
	})
	analysisFailedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "analysis_failed_total",
		Help: "Total analyses failed, by stage and kind.",
	}, []string{"stage", "kind"})
	analysisDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "analysis_duration_ms",
		Help:    "Analysis duration in milliseconds.",
		Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000},
	})
	stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "analysis_stage_duration_ms",
		Help:    "Per-stage duration in milliseconds.",
		Buckets: []float64{5, 25, 100, 250, 1000, 5000, 30000, 120000},
	}, []string{"stage"})
	llmRetryTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "llm_retry_total",
		Help: "Model invocations retried after a transient failure.",
	})
	interpretOutcomeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "interpret_outcome_total",
		Help: "Model answers interpreted, by outcome and reason.",
	}, []string{"outcome", "reason"})
	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "path", "status"})
)

func init() {
	Registry.MustRegister(
		analysisStartedTotal,
		analysisCompletedTotal,
		analysisFailedTotal,
		analysisDuration,
		stageDuration,
		llmRetryTotal,
		interpretOutcomeTotal,
		httpRequestsTotal,
	)
}

// IncAnalysisStarted increments the started counter.
func IncAnalysisStarted() {
	analysisStartedTotal.Inc()
}

// IncAnalysisCompleted increments the completed counter.
func IncAnalysisCompleted() {
	analysisCompletedTotal.Inc()
}

// IncAnalysisFailed increments the failed counter for the given stage and kind.
func IncAnalysisFailed(stage, kind string) {
	analysisFailedTotal.WithLabelValues(stage, kind).Inc()
}

// IncLLMRetry counts one retried model invocation.
func IncLLMRetry() {
	llmRetryTotal.Inc()
}

// IncInterpretOutcome counts one interpreted answer ("structured" or "fallback").
func IncInterpretOutcome(outcome, reason string) {
	interpretOutcomeTotal.WithLabelValues(outcome, reason).Inc()
}

// ObserveAnalysisDurationMs records an analysis duration in milliseconds.
func ObserveAnalysisDurationMs(value float64) {
	analysisDuration.Observe(clamp(value))
}

// ObserveStageDuration records how long a pipeline stage took.
func ObserveStageDuration(stage string, d time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(clamp(float64(d) / float64(time.Millisecond)))
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
}

// Middleware counts HTTP requests by method, route pattern and status.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Inc()
	}
}

func clamp(value float64) float64 {
	if value < 0 {
		return 0
	}
	return value
}
