// Handler wiring.
//
// Handlers depends on narrow interfaces so transport stays separated from
// the services and the monitor; the router binds the concrete types.
package handlers

import (
	"time"

	"gorm.io/gorm"

	"github.com/kokorolog/go-diary-backend/internal/perf"
	"github.com/kokorolog/go-diary-backend/internal/resilience"
)

// PerformanceSource is the monitor surface the operational endpoints read.
type PerformanceSource interface {
	Stats() perf.Stats
	RecentTrend(window time.Duration) perf.Trend
	Health() perf.Health
	ExportCSV() string
	Reset()
}

// BreakerSource exposes circuit-breaker states for the performance endpoint.
type BreakerSource interface {
	AllStatus() map[string]resilience.BreakerStatus
}

// Handlers groups the HTTP endpoints: webhook ingestion plus the health,
// performance, and entry inspection routes.
type Handlers struct {
	events        EventHandler
	monitor       PerformanceSource
	breakers      BreakerSource
	db            *gorm.DB
	channelSecret string
}

// New constructs a Handlers instance bound to the given collaborators.
func New(events EventHandler, monitor PerformanceSource, breakers BreakerSource, db *gorm.DB, channelSecret string) *Handlers {
	return &Handlers{
		events:        events,
		monitor:       monitor,
		breakers:      breakers,
		db:            db,
		channelSecret: channelSecret,
	}
}
