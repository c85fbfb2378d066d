// Performance and health HTTP handlers.
//
//   - GET  /health                       liveness plus the analysis health verdict
//   - GET  /api/v1/performance           stats, trend, health, breaker states
//   - GET  /api/v1/performance/export    sample CSV download
//   - POST /api/v1/performance/reset     clear retained samples
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// trendWindow is the lookback for the trend block of the performance report.
const trendWindow = 5 * time.Minute

// Health handles GET /health. It always answers 200; the analysis verdict
// inside the body is informational, not a readiness gate.
func (h *Handlers) Health(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{
		"status":   "ok",
		"analysis": h.monitor.Health(),
	})
}

// GetPerformance handles GET /api/v1/performance.
func (h *Handlers) GetPerformance(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{
		"stats":            h.monitor.Stats(),
		"trend":            h.monitor.RecentTrend(trendWindow),
		"health":           h.monitor.Health(),
		"circuit_breakers": h.breakers.AllStatus(),
	})
}

// ExportPerformance handles GET /api/v1/performance/export, serving the
// retained samples as a CSV download.
func (h *Handlers) ExportPerformance(c *gin.Context) {
	c.Header("Content-Disposition", `attachment; filename="performance.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(h.monitor.ExportCSV()))
}

// ResetPerformance handles POST /api/v1/performance/reset.
func (h *Handlers) ResetPerformance(c *gin.Context) {
	h.monitor.Reset()
	noContent(c)
}
