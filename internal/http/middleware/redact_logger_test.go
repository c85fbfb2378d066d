package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func serveRedacted(t *testing.T, opts RedactOptions, mutate func(*http.Request)) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RedactingLogger(opts))
	r.GET("/entries", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/entries?cursor=1", nil)
	if mutate != nil {
		mutate(req)
	}
	r.ServeHTTP(w, req)
	return buf.String()
}

func TestRedactingLogger_MasksCredentialHeaders(t *testing.T) {
	out := serveRedacted(t, RedactOptions{}, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer secret-token")
		req.Header.Set("X-Line-Signature", "c2lnbmF0dXJl")
	})

	if strings.Contains(out, "secret-token") || strings.Contains(out, "c2lnbmF0dXJl") {
		t.Fatalf("credential leaked into log:\n%s", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Errorf("masked marker missing:\n%s", out)
	}
}

func TestRedactingLogger_ExtraMaskHeaders(t *testing.T) {
	out := serveRedacted(t, RedactOptions{MaskHeaders: []string{" X-Api-Key "}}, func(req *http.Request) {
		req.Header.Set("X-Api-Key", "topsecret")
	})
	if strings.Contains(out, "topsecret") {
		t.Fatalf("custom masked header leaked:\n%s", out)
	}
}

func TestRedactingLogger_ScrubsIdentifiers(t *testing.T) {
	out := serveRedacted(t, RedactOptions{}, func(req *http.Request) {
		req.Header.Set("X-Debug-User", "U4af4980629abcdef0123456789abcdef")
		req.Header.Set("X-Debug-Contact", "alice@example.com +81 90-1234-5678")
		req.Header.Set("X-Debug-Trace", "123e4567-e89b-12d3-a456-426614174000")
	})

	for _, leaked := range []string{
		"U4af4980629abcdef0123456789abcdef",
		"alice@example.com",
		"90-1234-5678",
		"123e4567-e89b-12d3-a456-426614174000",
	} {
		if strings.Contains(out, leaked) {
			t.Errorf("identifier %q leaked:\n%s", leaked, out)
		}
	}
	for _, marker := range []string{"[REDACTED:user]", "[REDACTED:email]", "[REDACTED:phone]", "[REDACTED:id]"} {
		if !strings.Contains(out, marker) {
			t.Errorf("marker %q missing:\n%s", marker, out)
		}
	}
}

func TestRedactingLogger_LevelFollowsStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if out := buf.String(); !strings.Contains(out, `"level":"error"`) {
		t.Errorf("5xx should log at error level:\n%s", out)
	}

	buf.Reset()
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if out := buf.String(); !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("4xx should log at warn level:\n%s", out)
	}
}

func TestRedactingLogger_GinErrorsEscalate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{}))
	r.GET("/err", func(c *gin.Context) {
		_ = c.Error(errSentinel{})
		c.Status(http.StatusBadRequest)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/err", nil))
	if out := buf.String(); !strings.Contains(out, `"level":"error"`) || !strings.Contains(out, "boom") {
		t.Errorf("collected gin error should log at error level with detail:\n%s", out)
	}
}

type errSentinel struct{}

func (errSentinel) Error() string { return "boom" }

func TestRedactingLogger_ScopedLoggerCarriesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{}))
	r.GET("/use", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("scoped")
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/use", nil))
	if out := buf.String(); !strings.Contains(out, `"message":"scoped"`) || !strings.Contains(out, `"request_id"`) {
		t.Errorf("scoped log missing request_id:\n%s", out)
	}
}
