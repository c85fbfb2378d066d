// Package services – SummaryService
//
// This file implements the history summary cache: the trailing seven-day
// window of a user's entries condensed by the LLM into a short trend
// summary, cached in the summaries table with a TTL. The summary is an
// enrichment input for diary analysis, so every failure here degrades to
// "no summary" rather than failing the pipeline.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/kokorolog/go-diary-backend/internal/config"
	"github.com/kokorolog/go-diary-backend/internal/domain"
	"github.com/kokorolog/go-diary-backend/internal/repo"
	"github.com/kokorolog/go-diary-backend/internal/resilience"
)

// SummaryLLM is the model surface SummaryService needs.
type SummaryLLM interface {
	// SummarizeEntries condenses entry bodies into a short trend summary.
	SummarizeEntries(ctx context.Context, contents []string) (string, error)
}

// SummaryStats reports cached-summary bookkeeping for a user.
type SummaryStats struct {
	TotalSummaries    int    `json:"total_summaries"`
	LatestSummaryDate string `json:"latest_summary_date,omitempty"`
}

// SummaryService produces and caches per-user history summaries. Concurrent
// requests for the same user and window are collapsed into one generation
// via singleflight.
type SummaryService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// LLM generates new summaries.
	LLM SummaryLLM
	// Resilience wraps LLM calls with retry and the "llm" circuit breaker.
	Resilience *resilience.Handler

	Cfg config.SummaryConfig
	Log zerolog.Logger

	group singleflight.Group
	now   func() time.Time
}

// NewSummaryService constructs a SummaryService.
func NewSummaryService(db *gorm.DB, llm SummaryLLM, res *resilience.Handler, cfg config.SummaryConfig, log zerolog.Logger) *SummaryService {
	return &SummaryService{
		DB:         db,
		LLM:        llm,
		Resilience: res,
		Cfg:        cfg,
		Log:        log.With().Str("component", "summary").Logger(),
		now:        time.Now,
	}
}

// GetOrCreateSummary returns the cached summary for the user's current
// seven-day window, generating and caching a new one when the cache is
// empty or stale. An empty string means no summary is available (too few
// entries, or generation failed); the error is informational and callers
// are expected to continue without a summary.
func (s *SummaryService) GetOrCreateSummary(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", ErrMissingUserID
	}

	start, end := s.window()
	key := fmt.Sprintf("%s|%s|%s", userID, start, end)

	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.getOrCreate(ctx, userID, start, end)
	})
	if err != nil {
		s.Log.Warn().Err(err).Str("user_id", userID).Msg("summary unavailable")
		return "", err
	}
	return v.(string), nil
}

func (s *SummaryService) getOrCreate(ctx context.Context, userID, start, end string) (string, error) {
	if cached, ok := s.validCached(ctx, userID, start, end); ok {
		return cached, nil
	}
	return s.generate(ctx, userID, start, end)
}

// validCached returns the cached summary content when a row exists for the
// window and is younger than the TTL. Stale rows are deleted so the next
// lookup regenerates.
func (s *SummaryService) validCached(ctx context.Context, userID, start, end string) (string, bool) {
	row, err := repo.GetSummary(ctx, s.DB, userID, start, end)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			s.Log.Warn().Err(err).Str("user_id", userID).Msg("summary cache lookup failed")
		}
		return "", false
	}

	if s.now().Sub(row.UpdatedAt) > s.Cfg.CacheTTL {
		if err := repo.DeleteSummary(ctx, s.DB, userID, start, end); err != nil {
			s.Log.Warn().Err(err).Str("user_id", userID).Msg("stale summary delete failed")
		}
		return "", false
	}
	return row.Content, true
}

func (s *SummaryService) generate(ctx context.Context, userID, start, end string) (string, error) {
	entries, err := repo.GetRecentEntries(ctx, s.DB, userID, s.Cfg.WindowDays)
	if err != nil {
		return "", fmt.Errorf("load recent entries: %w", err)
	}
	if len(entries) < s.Cfg.MinEntries {
		return "", nil
	}

	contents := make([]string, len(entries))
	for i, e := range entries {
		contents[i] = truncateRunes(e.Content, s.Cfg.EntryCharLimit)
	}

	var summary string
	err = s.Resilience.ExecuteWithProtection(ctx, func(ctx context.Context) error {
		var callErr error
		summary, callErr = s.LLM.SummarizeEntries(ctx, contents)
		return callErr
	}, "llm", "llm.summary", s.Resilience.DefaultRetry())
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}
	if summary == "" {
		return "", nil
	}

	if _, err := repo.UpsertSummary(ctx, s.DB, userID, start, end, summary); err != nil {
		// the summary is still usable this request even if caching failed
		s.Log.Warn().Err(err).Str("user_id", userID).Msg("summary cache write failed")
	}

	s.Log.Info().
		Str("user_id", userID).
		Str("window_start", start).
		Str("window_end", end).
		Int("entries", len(entries)).
		Msg("history summary generated")
	return summary, nil
}

// RefreshSummary drops the cached summary for the user's current window and
// regenerates it, regardless of TTL. The maintenance batch calls this for
// recently active users so their next analysis finds a warm cache.
func (s *SummaryService) RefreshSummary(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrMissingUserID
	}
	start, end := s.window()
	if err := repo.DeleteSummary(ctx, s.DB, userID, start, end); err != nil {
		s.Log.Warn().Err(err).Str("user_id", userID).Msg("cached summary delete failed")
	}
	_, err := s.GetOrCreateSummary(ctx, userID)
	return err
}

// Stats reports the latest cached summary for a user.
func (s *SummaryService) Stats(ctx context.Context, userID string) (SummaryStats, error) {
	row, err := repo.GetLatestSummary(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return SummaryStats{}, nil
		}
		return SummaryStats{}, err
	}
	return SummaryStats{TotalSummaries: 1, LatestSummaryDate: row.EndDate}, nil
}

// window returns the current seven-day window as calendar date strings.
func (s *SummaryService) window() (start, end string) {
	now := s.now().UTC()
	return now.AddDate(0, 0, -s.Cfg.WindowDays).Format(domain.DateLayout),
		now.Format(domain.DateLayout)
}
