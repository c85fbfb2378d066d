// Package services – AsyncService
//
// This file implements the deferred enrichment pass. When the synchronous
// pipeline answered below level 1, the user got no model analysis in the
// reply; AsyncService runs the full analysis in the background after the
// webhook response and pushes the result as a follow-up message. The
// background work is registered with the Tasks runner so shutdown waits
// for in-flight pushes.
package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/kokorolog/go-diary-backend/internal/config"
	"github.com/kokorolog/go-diary-backend/internal/lightanalysis"
	"github.com/kokorolog/go-diary-backend/internal/line"
	"github.com/kokorolog/go-diary-backend/internal/repo"
	"github.com/kokorolog/go-diary-backend/internal/resilience"
)

// ImmediateAckMessage is the reply sent before background analysis starts.
var ImmediateAckMessage = strings.Join([]string{
	"📝 日記を記録しました！",
	"",
	"🔍 AI分析を実行中です...",
	"少々お待ちください。分析が完了次第、詳細な結果をお送りします。",
	"",
	"✨ 今日も日記を書いていただき、ありがとうございます！",
}, "\n")

// enrichmentFailedMessage is pushed best effort when the background pass
// fails. The entry itself is already saved at that point.
var enrichmentFailedMessage = strings.Join([]string{
	"⚠️ AI分析でエラーが発生しました",
	"",
	"AI分析の実行中に問題が発生しましたが、",
	"日記は正常に保存されています。",
	"",
	"しばらく時間をおいてから再度お試しください。",
}, "\n")

// AsyncService runs the post-response analysis enrichment.
type AsyncService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// LLM performs the structured model analysis.
	LLM AnalysisLLM
	// Summaries supplies the history summary, fetched under its own timeout.
	Summaries SummarySource
	// Messenger pushes the follow-up to the user.
	Messenger line.Messenger
	// Resilience wraps the LLM call and the pushes.
	Resilience *resilience.Handler
	// Tasks tracks the background goroutines.
	Tasks *Tasks

	Cfg config.AnalysisConfig
	Log zerolog.Logger
}

// NewAsyncService constructs an AsyncService.
func NewAsyncService(db *gorm.DB, llm AnalysisLLM, summaries SummarySource, messenger line.Messenger, res *resilience.Handler, tasks *Tasks, cfg config.AnalysisConfig, log zerolog.Logger) *AsyncService {
	return &AsyncService{
		DB:         db,
		LLM:        llm,
		Summaries:  summaries,
		Messenger:  messenger,
		Resilience: res,
		Tasks:      tasks,
		Cfg:        cfg,
		Log:        log.With().Str("component", "async").Logger(),
	}
}

// Dispatch schedules the enrichment pass for an already-saved entry. It
// returns immediately; the work runs detached from the request context so
// the webhook response does not cancel it.
func (s *AsyncService) Dispatch(userID, entryID, content string) {
	s.Tasks.Go("enrich:"+entryID, func() {
		s.enrichAndPush(context.Background(), userID, entryID, content)
	})
}

// enrichAndPush runs summary fetch, model analysis, persistence, and the
// follow-up push. Nothing propagates: on failure an apology is pushed best
// effort and the error is logged.
func (s *AsyncService) enrichAndPush(ctx context.Context, userID, entryID, content string) {
	// typing indicator while the model call runs; purely cosmetic
	if err := s.Messenger.ShowLoading(ctx, userID, 30); err != nil {
		s.Log.Debug().Err(err).Str("user_id", userID).Msg("loading indicator failed")
	}

	summary := s.fetchSummary(ctx, userID)

	var aiText string
	err := s.Resilience.ExecuteWithProtection(ctx, func(ctx context.Context) error {
		var callErr error
		aiText, callErr = s.LLM.AnalyzeDiary(ctx, content, summary)
		return callErr
	}, "llm", "llm.asyncAnalysis", s.Resilience.DefaultRetry())
	if err != nil {
		s.Log.Error().Err(err).Str("user_id", userID).Str("entry_id", entryID).Msg("background analysis failed")
		s.pushApology(ctx, userID)
		return
	}

	fields, parsed := ParseAnalysisResponse(aiText)
	if !parsed {
		s.Log.Warn().Str("entry_id", entryID).Msg("model response unparsable, fallback analysis stored")
	}

	if _, err := repo.CreateAnalysis(ctx, s.DB, entryID, userID, repo.AnalysisFields{
		Emotion:        fields.Emotion,
		Themes:         fields.Themes,
		Patterns:       fields.Patterns,
		PositivePoints: fields.PositivePoints,
	}, 1); err != nil {
		// duplicate means the synchronous path already stored one; push anyway
		s.Log.Warn().Err(err).Str("entry_id", entryID).Msg("background analysis store failed")
	}

	message := formatEnrichedMessage(fields)
	err = s.Resilience.ExecuteWithProtection(ctx, func(ctx context.Context) error {
		return s.Messenger.Push(ctx, userID, []string{message})
	}, "messaging", "messaging.push", s.Resilience.DefaultRetry())
	if err != nil {
		s.Log.Error().Err(err).Str("user_id", userID).Msg("follow-up push failed")
		return
	}

	s.Log.Info().Str("user_id", userID).Str("entry_id", entryID).Msg("background analysis delivered")
}

// fetchSummary bounds the summary lookup so a hung cache rebuild cannot
// stall the whole enrichment pass.
func (s *AsyncService) fetchSummary(ctx context.Context, userID string) string {
	sumCtx, cancel := context.WithTimeout(ctx, s.Cfg.SummaryFetchTimeout)
	defer cancel()

	summary, err := s.Summaries.GetOrCreateSummary(sumCtx, userID)
	if err != nil {
		s.Log.Warn().Err(err).Str("user_id", userID).Msg("history summary unavailable")
		return ""
	}
	return summary
}

func (s *AsyncService) pushApology(ctx context.Context, userID string) {
	if err := s.Messenger.Push(ctx, userID, []string{enrichmentFailedMessage}); err != nil {
		s.Log.Error().Err(err).Str("user_id", userID).Msg("apology push failed")
	}
}

// formatEnrichedMessage renders the follow-up carrying the structured
// analysis.
func formatEnrichedMessage(f AnalysisFields) string {
	return strings.Join([]string{
		"🤖 AI詳細分析が完了しました",
		"",
		lightanalysis.FormatSections(f.Emotion, f.Themes, f.Patterns, f.PositivePoints),
		"",
		"💡 この分析はAIによる詳細な解析結果です。",
		"先ほどの「分析中」メッセージと合わせて、自己理解にお役立てください。",
	}, "\n")
}
