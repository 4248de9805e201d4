package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"bloodwork-backend/internal/services/health"
	"bloodwork-backend/internal/shared/config"
	"bloodwork-backend/internal/shared/server/middleware"
	"bloodwork-backend/internal/shared/telemetry"
)

type stubRoutes struct{}

func (stubRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"findings": []any{}, "summary": "ok"})
	})
}

func newTestRouter(t *testing.T, rate float64, burst int) *gin.Engine {
	return newTestRouterWithHealth(t, rate, burst, nil)
}

func newTestRouterWithHealth(t *testing.T, rate float64, burst int, hs *health.Service) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	prev := telemetry.SetOutput(&strings.Builder{})
	t.Cleanup(func() { telemetry.SetOutput(prev) })

	now := time.Unix(1_700_000_000, 0)
	return NewRouter(RouterDeps{
		Config: config.Config{
			Env:                 "dev",
			CORSAllowOrigin:     []string{"http://localhost:3000"},
			UploadRatePerSecond: rate,
			UploadRateBurst:     burst,
		},
		AnalysisHandler: stubRoutes{},
		Health:          hs,
		RateLimiter:     middleware.NewRateLimiter(func() time.Time { return now }),
	})
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t, 1, 1)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"ok":true`) {
		t.Fatalf("unexpected health response %d %s", resp.Code, resp.Body.String())
	}
	if resp.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "http_requests_total") {
		t.Fatalf("expected metrics exposition, got %d", resp.Code)
	}
}

func TestUploadsAreRateLimited(t *testing.T) {
	router := newTestRouter(t, 0.5, 2)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", nil)
		req.RemoteAddr = "203.0.113.9:4000"
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		codes = append(codes, resp.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}

	resp := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.RemoteAddr = "203.0.113.9:4000"
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("health must not be rate limited, got %d", resp.Code)
	}
}

func TestReadinessReflectsChecks(t *testing.T) {
	hs := health.NewService()
	failing := false
	hs.Register("object_store", func(ctx context.Context) error {
		if failing {
			return errors.New("unreachable")
		}
		return nil
	})
	router := newTestRouterWithHealth(t, 1, 1, hs)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	failing = true
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil))
	if resp.Code != http.StatusServiceUnavailable || !strings.Contains(resp.Body.String(), "unreachable") {
		t.Fatalf("expected 503 with failing check, got %d %s", resp.Code, resp.Body.String())
	}
}

func TestAddr(t *testing.T) {
	tests := map[string]string{"": ":8080", "9000": ":9000", ":7000": ":7000"}
	for in, want := range tests {
		if got := Addr(in); got != want {
			t.Fatalf("Addr(%q) = %q, want %q", in, got, want)
		}
	}
}
