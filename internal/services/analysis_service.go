// Package services – AnalysisService
//
// This file implements the tiered analysis pipeline with graceful
// degradation. Saving the entry is the only hard requirement; everything
// after it cascades through three levels under a processing-time budget:
//
//	level 1: history summary + rule-based analysis + LLM analysis
//	level 2: rule-based analysis only
//	level 3: entry saved, canned acknowledgement, no analysis row
//
// Each tier returns (result, ok); a tier that misses its budget or fails
// hands over to the next one instead of erroring. Only entry persistence
// failure aborts the pipeline.
package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/kokorolog/go-diary-backend/internal/config"
	"github.com/kokorolog/go-diary-backend/internal/domain"
	"github.com/kokorolog/go-diary-backend/internal/lightanalysis"
	"github.com/kokorolog/go-diary-backend/internal/perf"
	"github.com/kokorolog/go-diary-backend/internal/repo"
	"github.com/kokorolog/go-diary-backend/internal/resilience"
)

// AnalysisLLM is the model surface AnalysisService needs.
type AnalysisLLM interface {
	// AnalyzeDiary returns the raw model response for one entry, optionally
	// grounded in the user's history summary.
	AnalyzeDiary(ctx context.Context, entry, historySummary string) (string, error)
}

// SummarySource provides the history summary enrichment input. An empty
// string means no summary is available.
type SummarySource interface {
	GetOrCreateSummary(ctx context.Context, userID string) (string, error)
}

// AnalysisOutcome is the result of one pipeline run.
type AnalysisOutcome struct {
	Entry       *domain.Entry
	Analysis    *domain.Analysis // nil at level 3
	UserMessage string
	Level       int
	Total       time.Duration
	AITime      time.Duration
	LightTime   time.Duration
}

// emergencyMessage is the level-3 canned acknowledgement.
var emergencyMessage = strings.Join([]string{
	"📝 日記を記録しました",
	"",
	"お疲れさまでした！",
	"今日も日記を書く時間を作ることができて素晴らしいです。",
	"",
	"✨ 継続は力なり。明日も一緒に頑張りましょう！",
	"",
	"🚀 緊急モード (高負荷対応)",
}, "\n")

// AnalysisService runs the tiered pipeline.
type AnalysisService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// LLM performs the level-1 model analysis.
	LLM AnalysisLLM
	// Summaries supplies the history summary for level 1.
	Summaries SummarySource
	// Resilience wraps the LLM call with retry and the "llm" breaker.
	Resilience *resilience.Handler
	// Monitor records one sample per pipeline run.
	Monitor *perf.Monitor

	Cfg config.AnalysisConfig
	Log zerolog.Logger
}

// NewAnalysisService constructs an AnalysisService.
func NewAnalysisService(db *gorm.DB, llm AnalysisLLM, summaries SummarySource, res *resilience.Handler, mon *perf.Monitor, cfg config.AnalysisConfig, log zerolog.Logger) *AnalysisService {
	return &AnalysisService{
		DB:         db,
		LLM:        llm,
		Summaries:  summaries,
		Resilience: res,
		Monitor:    mon,
		Cfg:        cfg,
		Log:        log.With().Str("component", "analysis").Logger(),
	}
}

// ProcessDiaryEntry saves the entry and runs the tier cascade. The returned
// outcome always carries a user-facing message; an error is returned only
// for invalid input or when the entry itself could not be saved.
func (s *AnalysisService) ProcessDiaryEntry(ctx context.Context, userID, content string) (*AnalysisOutcome, error) {
	start := time.Now()

	if userID == "" {
		return nil, ErrMissingUserID
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	entryLen := utf8.RuneCountInString(content)

	entry, err := repo.CreateEntry(ctx, s.DB, userID, content)
	if err != nil {
		s.record(userID, 3, time.Since(start), entryLen, false, "entry_create")
		ce := resilience.Classify(err, "db.createEntry")
		s.Log.Error().Err(ce).Str("user_id", userID).Msg("entry persistence failed")
		return nil, ce
	}

	// saving alone already blew the emergency budget: answer immediately
	if time.Since(start) > s.Cfg.Level3Budget {
		out := s.level3(entry, start)
		s.record(userID, out.Level, out.Total, entryLen, true, "")
		return out, nil
	}

	if out, ok := s.tryLevel1(ctx, entry, userID, content, start); ok {
		s.record(userID, out.Level, out.Total, entryLen, true, "")
		return out, nil
	}
	if out, ok := s.level2(ctx, entry, userID, content, start); ok {
		s.record(userID, out.Level, out.Total, entryLen, true, "")
		return out, nil
	}

	out := s.level3(entry, start)
	s.record(userID, out.Level, out.Total, entryLen, true, "")
	return out, nil
}

// tryLevel1 runs the full analysis: history summary and rule-based analysis
// concurrently, then the LLM under its own timeout. Budget checks at 50%
// and 80% of the level-1 limit bail out before the expensive call.
func (s *AnalysisService) tryLevel1(ctx context.Context, entry *domain.Entry, userID, content string, start time.Time) (*AnalysisOutcome, bool) {
	if time.Since(start) > s.Cfg.Level1Budget/2 {
		return nil, false
	}

	summaryCh := make(chan string, 1)
	go func() {
		summary, err := s.Summaries.GetOrCreateSummary(ctx, userID)
		if err != nil {
			summary = ""
		}
		summaryCh <- summary
	}()

	light := lightanalysis.Analyze(content)
	summary := <-summaryCh

	if time.Since(start) > s.Cfg.Level1Budget*8/10 {
		return nil, false
	}

	llmCtx, cancel := context.WithTimeout(ctx, s.Cfg.LLMTimeout)
	defer cancel()

	aiStart := time.Now()
	var aiText string
	err := s.Resilience.ExecuteWithProtection(llmCtx, func(ctx context.Context) error {
		var callErr error
		aiText, callErr = s.LLM.AnalyzeDiary(ctx, content, summary)
		return callErr
	}, "llm", "llm.analysis", s.Resilience.DefaultRetry())
	if err != nil {
		s.Log.Warn().Err(err).Str("user_id", userID).Msg("level 1 analysis failed, degrading")
		return nil, false
	}
	aiTime := time.Since(aiStart)

	analysis, err := repo.CreateAnalysis(ctx, s.DB, entry.ID, userID, mergeAIResult(aiText, light), 1)
	if err != nil {
		s.Log.Warn().Err(err).Str("entry_id", entry.ID).Msg("level 1 analysis store failed, degrading")
		return nil, false
	}

	return &AnalysisOutcome{
		Entry:       entry,
		Analysis:    analysis,
		UserMessage: aiText,
		Level:       1,
		Total:       time.Since(start),
		AITime:      aiTime,
		LightTime:   light.Elapsed,
	}, true
}

// level2 stores the rule-based analysis on its own.
func (s *AnalysisService) level2(ctx context.Context, entry *domain.Entry, userID, content string, start time.Time) (*AnalysisOutcome, bool) {
	light := lightanalysis.Analyze(content)

	analysis, err := repo.CreateAnalysis(ctx, s.DB, entry.ID, userID, repo.AnalysisFields{
		Emotion:        light.Emotion,
		Themes:         light.Themes,
		Patterns:       light.Patterns,
		PositivePoints: light.PositivePoints,
	}, 2)
	if err != nil {
		s.Log.Warn().Err(err).Str("entry_id", entry.ID).Msg("level 2 analysis store failed, degrading")
		return nil, false
	}

	return &AnalysisOutcome{
		Entry:       entry,
		Analysis:    analysis,
		UserMessage: lightanalysis.FormatForUser(light),
		Level:       2,
		Total:       time.Since(start),
		LightTime:   light.Elapsed,
	}, true
}

// level3 acknowledges the saved entry with a canned message. No analysis
// row is written; the absent row is the marker that tier 3 answered.
func (s *AnalysisService) level3(entry *domain.Entry, start time.Time) *AnalysisOutcome {
	return &AnalysisOutcome{
		Entry:       entry,
		UserMessage: emergencyMessage,
		Level:       3,
		Total:       time.Since(start),
	}
}

func (s *AnalysisService) record(userID string, level int, total time.Duration, entryLen int, success bool, errorType string) {
	s.Monitor.Record(perf.Sample{
		UserID:      userID,
		Duration:    total,
		Level:       level,
		EntryLength: entryLen,
		Success:     success,
		ErrorType:   errorType,
	})
}

// mergeAIResult combines the raw model text with the rule-based fields:
// the model text becomes the emotion column, clipped with an ellipsis;
// themes, patterns, and positives come from the rule-based pass.
func mergeAIResult(aiText string, light lightanalysis.Result) repo.AnalysisFields {
	emotion := aiText
	if r := []rune(aiText); len(r) > fieldLimit {
		emotion = string(r[:fieldLimit]) + "..."
	}
	return repo.AnalysisFields{
		Emotion:        emotion,
		Themes:         light.Themes,
		Patterns:       light.Patterns,
		PositivePoints: light.PositivePoints,
	}
}
