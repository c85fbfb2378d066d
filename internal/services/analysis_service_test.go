package services

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/kokorolog/go-diary-backend/internal/config"
	"github.com/kokorolog/go-diary-backend/internal/domain"
	"github.com/kokorolog/go-diary-backend/internal/perf"
)

// ----- Fake analysis LLM -----

type fakeAnalysisLLM struct {
	calls   int32
	out     string
	err     error
	gotText string
	gotHist string
	block   bool // blocks until ctx is done
}

func (f *fakeAnalysisLLM) AnalyzeDiary(ctx context.Context, entry, historySummary string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	f.gotText, f.gotHist = entry, historySummary
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.out, f.err
}

// ----- Fake summary source -----

type fakeSummarySource struct {
	out string
	err error
}

func (f *fakeSummarySource) GetOrCreateSummary(ctx context.Context, userID string) (string, error) {
	return f.out, f.err
}

func analysisConfig() config.AnalysisConfig {
	return config.AnalysisConfig{
		Level1Budget:        time.Second,
		Level2Budget:        time.Second,
		Level3Budget:        time.Second,
		LLMTimeout:          time.Second,
		SummaryFetchTimeout: time.Second,
	}
}

func newAnalysisService(db *gorm.DB, llm AnalysisLLM, summaries SummarySource, cfg config.AnalysisConfig) *AnalysisService {
	return NewAnalysisService(db, llm, summaries, newTestResilience(), perf.NewMonitor(100, 8*time.Millisecond, zerolog.Nop()), cfg, zerolog.Nop())
}

func TestProcess_Level1(t *testing.T) {
	db := newTestDB(t)
	llm := &fakeAnalysisLLM{out: "今日も穏やかな一日でしたね。"}
	svc := newAnalysisService(db, llm, &fakeSummarySource{out: "先週は忙しめ"}, analysisConfig())

	out, err := svc.ProcessDiaryEntry(context.Background(), "U1", "今日は楽しかった、友達と映画を見た")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Level != 1 {
		t.Fatalf("level = %d, want 1", out.Level)
	}
	if out.UserMessage != "今日も穏やかな一日でしたね。" {
		t.Errorf("user message = %q", out.UserMessage)
	}
	if llm.gotHist != "先週は忙しめ" {
		t.Errorf("history passed to llm = %q", llm.gotHist)
	}
	if out.Analysis == nil || out.Analysis.Level != 1 {
		t.Fatalf("analysis = %+v", out.Analysis)
	}
	// merged row: model text in emotion, rule-based fields elsewhere
	if out.Analysis.Emotion != "今日も穏やかな一日でしたね。" {
		t.Errorf("emotion = %q", out.Analysis.Emotion)
	}
	if !strings.Contains(out.Analysis.Themes, "人間関係") {
		t.Errorf("themes = %q, want rule-based themes", out.Analysis.Themes)
	}

	var count int64
	db.Model(&domain.Analysis{}).Count(&count)
	if count != 1 {
		t.Errorf("analysis rows = %d", count)
	}
	if s := svc.Monitor.Stats(); s.Level1Count != 1 || s.SuccessRate != 100 {
		t.Errorf("perf stats = %+v", s)
	}
}

func TestProcess_Level1_LongAITextClipped(t *testing.T) {
	db := newTestDB(t)
	llm := &fakeAnalysisLLM{out: strings.Repeat("あ", 150)}
	svc := newAnalysisService(db, llm, &fakeSummarySource{}, analysisConfig())

	out, err := svc.ProcessDiaryEntry(context.Background(), "U1", "今日の日記")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := strings.Repeat("あ", 100) + "..."
	if out.Analysis.Emotion != want {
		t.Errorf("emotion = %q, want clipped with ellipsis", out.Analysis.Emotion)
	}
}

func TestProcess_Level2_WhenLLMFails(t *testing.T) {
	db := newTestDB(t)
	llm := &fakeAnalysisLLM{err: errors.New("model down")}
	svc := newAnalysisService(db, llm, &fakeSummarySource{}, analysisConfig())

	out, err := svc.ProcessDiaryEntry(context.Background(), "U1", "仕事で疲れた一日だった")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Level != 2 {
		t.Fatalf("level = %d, want 2", out.Level)
	}
	if out.Analysis == nil || out.Analysis.Level != 2 {
		t.Fatalf("analysis = %+v", out.Analysis)
	}
	if !strings.Contains(out.UserMessage, "軽量分析") {
		t.Errorf("user message = %q, want rule-based footer", out.UserMessage)
	}
	if s := svc.Monitor.Stats(); s.Level2Count != 1 {
		t.Errorf("perf stats = %+v", s)
	}
}

func TestProcess_Level2_WhenLLMHangs(t *testing.T) {
	db := newTestDB(t)
	llm := &fakeAnalysisLLM{block: true}
	cfg := analysisConfig()
	cfg.LLMTimeout = 20 * time.Millisecond
	svc := newAnalysisService(db, llm, &fakeSummarySource{}, cfg)

	start := time.Now()
	out, err := svc.ProcessDiaryEntry(context.Background(), "U1", "今日の日記")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Level != 2 {
		t.Fatalf("level = %d, want 2", out.Level)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("pipeline took %v, hanging model must be cut off by its timeout", elapsed)
	}
}

func TestProcess_SkipsLevel1OverBudget(t *testing.T) {
	db := newTestDB(t)
	llm := &fakeAnalysisLLM{out: "分析"}
	cfg := analysisConfig()
	cfg.Level1Budget = 0 // 50% check always fails
	svc := newAnalysisService(db, llm, &fakeSummarySource{}, cfg)

	out, err := svc.ProcessDiaryEntry(context.Background(), "U1", "今日の日記")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Level != 2 {
		t.Fatalf("level = %d, want 2", out.Level)
	}
	if n := atomic.LoadInt32(&llm.calls); n != 0 {
		t.Fatalf("llm calls = %d, want 0", n)
	}
}

func TestProcess_Level3WhenEntrySaveSlow(t *testing.T) {
	db := newTestDB(t)
	llm := &fakeAnalysisLLM{out: "分析"}
	cfg := analysisConfig()
	cfg.Level3Budget = 0 // any elapsed time trips the emergency cutoff
	svc := newAnalysisService(db, llm, &fakeSummarySource{}, cfg)

	out, err := svc.ProcessDiaryEntry(context.Background(), "U1", "今日の日記")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Level != 3 {
		t.Fatalf("level = %d, want 3", out.Level)
	}
	if out.Analysis != nil {
		t.Error("level 3 must not produce an analysis row")
	}
	if !strings.Contains(out.UserMessage, "緊急モード") {
		t.Errorf("user message = %q", out.UserMessage)
	}

	var count int64
	db.Model(&domain.Analysis{}).Count(&count)
	if count != 0 {
		t.Errorf("analysis rows = %d, want 0", count)
	}
	// the entry itself is still saved
	db.Model(&domain.Entry{}).Count(&count)
	if count != 1 {
		t.Errorf("entry rows = %d, want 1", count)
	}
	if s := svc.Monitor.Stats(); s.Level3Count != 1 {
		t.Errorf("perf stats = %+v", s)
	}
}

func TestProcess_InvalidInput(t *testing.T) {
	svc := newAnalysisService(newTestDB(t), &fakeAnalysisLLM{}, &fakeSummarySource{}, analysisConfig())

	if _, err := svc.ProcessDiaryEntry(context.Background(), "", "日記"); !errors.Is(err, ErrMissingUserID) {
		t.Errorf("err = %v, want ErrMissingUserID", err)
	}
	if _, err := svc.ProcessDiaryEntry(context.Background(), "U1", "   "); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("err = %v, want ErrEmptyContent", err)
	}
}

func TestProcess_SummaryFailureStillLevel1(t *testing.T) {
	db := newTestDB(t)
	llm := &fakeAnalysisLLM{out: "分析結果"}
	svc := newAnalysisService(db, llm, &fakeSummarySource{err: errors.New("cache down")}, analysisConfig())

	out, err := svc.ProcessDiaryEntry(context.Background(), "U1", "今日の日記")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Level != 1 {
		t.Fatalf("level = %d, want 1 (summary is optional)", out.Level)
	}
	if llm.gotHist != "" {
		t.Errorf("history = %q, want empty", llm.gotHist)
	}
}
