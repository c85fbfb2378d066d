package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func serveSecured(t *testing.T, opt SecurityOptions, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeaders(opt))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if mutate != nil {
		mutate(req)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	w := serveSecured(t, SecurityOptions{}, nil)
	h := w.Header()
	if h.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("nosniff missing")
	}
	if h.Get("X-Frame-Options") != "DENY" {
		t.Error("frame options missing")
	}
	if h.Get("Referrer-Policy") != "no-referrer" {
		t.Error("referrer policy missing")
	}
	if h.Get("Permissions-Policy") != "" || h.Get("Cache-Control") != "" {
		t.Error("optional headers emitted without opts")
	}
}

func TestSecurityHeaders_PolicyAndNoStore(t *testing.T) {
	w := serveSecured(t, SecurityOptions{NoStore: true, EnablePolicy: true}, nil)
	h := w.Header()
	if !strings.Contains(h.Get("Permissions-Policy"), "geolocation=()") {
		t.Errorf("Permissions-Policy = %q", h.Get("Permissions-Policy"))
	}
	if h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Error("cross-domain policy missing")
	}
	if h.Get("Cache-Control") != "no-store" || h.Get("Pragma") != "no-cache" {
		t.Error("no-store headers missing")
	}
}

func TestSecurityHeaders_HSTSOnlyOverHTTPS(t *testing.T) {
	opt := SecurityOptions{EnableHSTS: true, HSTSMaxAge: 24 * time.Hour}

	plain := serveSecured(t, opt, nil)
	if plain.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS emitted on plain HTTP")
	}

	viaTLS := serveSecured(t, opt, func(req *http.Request) {
		req.TLS = &tls.ConnectionState{}
	})
	if got := viaTLS.Header().Get("Strict-Transport-Security"); !strings.Contains(got, "max-age=86400") {
		t.Errorf("HSTS = %q", got)
	}

	viaProxy := serveSecured(t, opt, func(req *http.Request) {
		req.Header.Set("X-Forwarded-Proto", "https")
	})
	if viaProxy.Header().Get("Strict-Transport-Security") == "" {
		t.Error("HSTS missing when X-Forwarded-Proto is https")
	}
}

func TestSecurityHeaders_HSTSDefaultMaxAge(t *testing.T) {
	w := serveSecured(t, SecurityOptions{EnableHSTS: true}, func(req *http.Request) {
		req.TLS = &tls.ConnectionState{}
	})
	if got := w.Header().Get("Strict-Transport-Security"); !strings.Contains(got, "max-age=15552000") {
		t.Errorf("HSTS = %q, want 180-day default", got)
	}
}

func TestSecurityHeaders_ExposesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), SecurityHeaders(SecurityOptions{}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := w.Header().Get("Access-Control-Expose-Headers"); !strings.Contains(got, "X-Request-ID") {
		t.Errorf("expose headers = %q", got)
	}
}

func TestSecurityHeaders_AppendsToExistingExpose(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Header("X-Request-ID", "rid-1")
		c.Header("Access-Control-Expose-Headers", "Content-Length")
		c.Next()
	})
	r.Use(SecurityHeaders(SecurityOptions{}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	got := w.Header().Get("Access-Control-Expose-Headers")
	if !strings.Contains(got, "Content-Length") || !strings.Contains(got, "X-Request-ID") {
		t.Errorf("expose headers = %q", got)
	}
}
