package httpapi

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kokorolog/go-diary-backend/internal/config"
	"github.com/kokorolog/go-diary-backend/internal/line"
	"github.com/kokorolog/go-diary-backend/internal/perf"
	"github.com/kokorolog/go-diary-backend/internal/repo"
	"github.com/kokorolog/go-diary-backend/internal/resilience"
)

type recordingEvents struct {
	count int
}

func (r *recordingEvents) HandleEvent(ctx context.Context, ev line.Event) error {
	r.count++
	return nil
}

func testConfig() config.Config {
	var cfg config.Config
	cfg.APIBasePath = "/api/v1"
	cfg.RateRPS = 100
	cfg.RateBurst = 50
	cfg.OTEL.ServiceName = "diary-test"
	cfg.LINE.ChannelSecret = "router-secret"
	return cfg
}

func newRouter(t *testing.T) (*gin.Engine, *recordingEvents) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	events := &recordingEvents{}
	deps := Deps{
		DB:      db,
		Events:  events,
		Monitor: perf.NewMonitor(100, 8*time.Millisecond, zerolog.Nop()),
		Resilience: resilience.NewHandler(
			resilience.RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffMultiplier: 2},
			resilience.BreakerPolicy{FailureThreshold: 5, ResetTimeout: time.Minute},
			zerolog.Nop(),
		),
	}

	r := gin.New()
	RegisterRoutes(r, deps, testConfig())
	return r, events
}

func TestRouter_HealthAndSecurityHeaders(t *testing.T) {
	r, _ := newRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health -> %d", w.Code)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("request id missing")
	}
}

func TestRouter_NotFoundEnvelope(t *testing.T) {
	r, _ := newRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"code":"not_found"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	r, _ := newRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/webhook", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"code":"method_not_allowed"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	r, _ := newRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /metrics -> %d", w.Code)
	}
}

func TestRouter_WebhookThroughFullStack(t *testing.T) {
	r, events := newRouter(t)

	body := `{"destination":"d","events":[{"type":"message","webhookEventId":"evt-9","replyToken":"rt","source":{"type":"user","userId":"U1"},"message":{"id":"m","type":"text","text":"こんにちは"}}]}`
	mac := hmac.New(sha256.New, []byte("router-secret"))
	mac.Write([]byte(body))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Line-Signature", sig)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if events.count != 1 {
		t.Errorf("events handled = %d", events.count)
	}
}

func TestRouter_PerformanceRoutesMounted(t *testing.T) {
	r, _ := newRouter(t)

	for _, route := range []string{"/api/v1/performance", "/api/v1/performance/export", "/api/v1/entries/stats?user_id=U1"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, route, nil))
		if w.Code != http.StatusOK {
			t.Errorf("GET %s -> %d", route, w.Code)
		}
	}
}
