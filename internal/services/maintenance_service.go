// Package services – MaintenanceService
//
// This file implements the periodic maintenance batch: purging expired
// webhook dedup records, enforcing data retention on old entries and
// summaries, and refreshing the summary cache for recently active users.
// Every step is best-effort; a failing step is logged and the rest of the
// batch still runs.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/kokorolog/go-diary-backend/internal/config"
	"github.com/kokorolog/go-diary-backend/internal/repo"
)

// SummaryRefresher is the summary surface the maintenance batch needs.
type SummaryRefresher interface {
	// RefreshSummary regenerates the user's current-window summary cache.
	RefreshSummary(ctx context.Context, userID string) error
}

// MaintenanceStats reports what one batch run accomplished.
type MaintenanceStats struct {
	DeliveriesPurged      int64         `json:"deliveries_purged"`
	EntriesDeleted        int64         `json:"entries_deleted"`
	SummariesDeleted      int64         `json:"summaries_deleted"`
	StaleSummariesDeleted int64         `json:"stale_summaries_deleted"`
	ActiveUsers           int           `json:"active_users"`
	SummariesRefreshed    int           `json:"summaries_refreshed"`
	Elapsed               time.Duration `json:"-"`
}

// MaintenanceService runs the scheduled maintenance batch.
type MaintenanceService struct {
	// DB is the GORM handle used for retention queries.
	DB *gorm.DB
	// Summaries refreshes the per-user summary cache.
	Summaries SummaryRefresher

	Cfg config.MaintenanceConfig
	Log zerolog.Logger

	now func() time.Time
}

// NewMaintenanceService constructs a MaintenanceService.
func NewMaintenanceService(db *gorm.DB, summaries SummaryRefresher, cfg config.MaintenanceConfig, log zerolog.Logger) *MaintenanceService {
	return &MaintenanceService{
		DB:        db,
		Summaries: summaries,
		Cfg:       cfg,
		Log:       log.With().Str("component", "maintenance").Logger(),
		now:       time.Now,
	}
}

// RunOnce executes one maintenance batch: dedup purge, retention cleanup,
// stale-cache sweep, then summary refresh for users active within the
// configured window. It returns the per-step counts; individual step
// failures are logged and do not abort the batch.
func (m *MaintenanceService) RunOnce(ctx context.Context) MaintenanceStats {
	start := m.now()
	now := start.UTC()
	var stats MaintenanceStats

	m.Log.Info().Msg("maintenance batch started")

	purged, err := repo.PurgeExpiredDeliveries(ctx, m.DB, now)
	if err != nil {
		m.Log.Error().Err(err).Msg("dedup purge failed")
	}
	stats.DeliveriesPurged = purged

	entryCutoff := now.AddDate(0, 0, -m.Cfg.EntryRetentionDays)
	deleted, err := repo.DeleteEntriesBefore(ctx, m.DB, entryCutoff)
	if err != nil {
		m.Log.Error().Err(err).Time("cutoff", entryCutoff).Msg("entry retention cleanup failed")
	}
	stats.EntriesDeleted = deleted

	summaryCutoff := now.AddDate(0, 0, -m.Cfg.SummaryRetentionDays)
	deleted, err = repo.DeleteSummariesBefore(ctx, m.DB, summaryCutoff)
	if err != nil {
		m.Log.Error().Err(err).Time("cutoff", summaryCutoff).Msg("summary retention cleanup failed")
	}
	stats.SummariesDeleted = deleted

	// Summaries of users who stopped writing will never be read again;
	// recent rows get the active-window grace period before sweeping.
	deleted, err = repo.DeleteStaleSummaries(ctx, m.DB,
		now.AddDate(0, 0, -m.Cfg.SummaryRetentionDays),
		now.AddDate(0, 0, -m.Cfg.ActiveUserDays))
	if err != nil {
		m.Log.Error().Err(err).Msg("stale summary sweep failed")
	}
	stats.StaleSummariesDeleted = deleted

	stats.ActiveUsers, stats.SummariesRefreshed = m.refreshSummaries(ctx)

	stats.Elapsed = m.now().Sub(start)
	m.Log.Info().
		Int64("deliveries_purged", stats.DeliveriesPurged).
		Int64("entries_deleted", stats.EntriesDeleted).
		Int64("summaries_deleted", stats.SummariesDeleted).
		Int64("stale_summaries_deleted", stats.StaleSummariesDeleted).
		Int("active_users", stats.ActiveUsers).
		Int("summaries_refreshed", stats.SummariesRefreshed).
		Dur("elapsed", stats.Elapsed).
		Msg("maintenance batch finished")
	return stats
}

// refreshSummaries rebuilds the summary cache for every user with an entry
// inside the active window. Per-user failures are logged and skipped; a
// canceled context stops the loop early.
func (m *MaintenanceService) refreshSummaries(ctx context.Context) (active, refreshed int) {
	since := m.now().UTC().AddDate(0, 0, -m.Cfg.ActiveUserDays)
	users, err := repo.ActiveUserIDs(ctx, m.DB, since)
	if err != nil {
		m.Log.Error().Err(err).Msg("active user listing failed")
		return 0, 0
	}

	for _, userID := range users {
		if ctx.Err() != nil {
			m.Log.Warn().Err(ctx.Err()).Int("remaining", len(users)-refreshed).Msg("summary refresh cut short")
			break
		}
		if err := m.Summaries.RefreshSummary(ctx, userID); err != nil {
			m.Log.Warn().Err(err).Str("user_id", userID).Msg("summary refresh failed")
			continue
		}
		refreshed++
	}
	return len(users), refreshed
}
