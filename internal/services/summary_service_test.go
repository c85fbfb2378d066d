package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kokorolog/go-diary-backend/internal/config"
	"github.com/kokorolog/go-diary-backend/internal/domain"
	"github.com/kokorolog/go-diary-backend/internal/repo"
	"github.com/kokorolog/go-diary-backend/internal/resilience"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:diarysvc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := db.AutoMigrate(&domain.Entry{}, &domain.Summary{}, &domain.Analysis{}, &domain.WebhookDelivery{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestResilience() *resilience.Handler {
	return resilience.NewHandler(
		resilience.RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffMultiplier: 2},
		resilience.BreakerPolicy{FailureThreshold: 5, ResetTimeout: time.Minute},
		zerolog.Nop(),
	)
}

// ----- Fake summary LLM -----

type fakeSummaryLLM struct {
	mu       sync.Mutex
	calls    int32
	contents [][]string
	out      string
	err      error
	delay    time.Duration
}

func (f *fakeSummaryLLM) SummarizeEntries(ctx context.Context, contents []string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.contents = append(f.contents, contents)
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.out, f.err
}

func summaryConfig() config.SummaryConfig {
	return config.SummaryConfig{
		WindowDays:     7,
		CacheTTL:       24 * time.Hour,
		MinEntries:     2,
		EntryCharLimit: 500,
	}
}

func seedEntries(t *testing.T, db *gorm.DB, userID string, contents ...string) {
	t.Helper()
	for _, c := range contents {
		if _, err := repo.CreateEntry(context.Background(), db, userID, c); err != nil {
			t.Fatalf("seed entry: %v", err)
		}
	}
}

func TestSummary_GeneratesAndCaches(t *testing.T) {
	db := newTestDB(t)
	llm := &fakeSummaryLLM{out: "一週間の傾向まとめ"}
	svc := NewSummaryService(db, llm, newTestResilience(), summaryConfig(), zerolog.Nop())
	seedEntries(t, db, "U1", "一日目の日記", "二日目の日記")

	got, err := svc.GetOrCreateSummary(context.Background(), "U1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "一週間の傾向まとめ" {
		t.Fatalf("summary = %q", got)
	}

	// second call must come from the cache
	got2, err := svc.GetOrCreateSummary(context.Background(), "U1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got2 != got {
		t.Fatalf("cached summary = %q", got2)
	}
	if n := atomic.LoadInt32(&llm.calls); n != 1 {
		t.Fatalf("llm calls = %d, want 1", n)
	}
}

func TestSummary_TooFewEntries(t *testing.T) {
	db := newTestDB(t)
	llm := &fakeSummaryLLM{out: "まとめ"}
	svc := NewSummaryService(db, llm, newTestResilience(), summaryConfig(), zerolog.Nop())
	seedEntries(t, db, "U1", "一件だけの日記")

	got, err := svc.GetOrCreateSummary(context.Background(), "U1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Fatalf("summary = %q, want empty", got)
	}
	if n := atomic.LoadInt32(&llm.calls); n != 0 {
		t.Fatalf("llm calls = %d, want 0", n)
	}
}

func TestSummary_ExpiredCacheRegenerated(t *testing.T) {
	db := newTestDB(t)
	llm := &fakeSummaryLLM{out: "新しいまとめ"}
	svc := NewSummaryService(db, llm, newTestResilience(), summaryConfig(), zerolog.Nop())
	seedEntries(t, db, "U1", "一日目", "二日目")

	start, end := svc.window()
	if _, err := repo.UpsertSummary(context.Background(), db, "U1", start, end, "古いまとめ"); err != nil {
		t.Fatalf("seed summary: %v", err)
	}
	// age the cached row past the TTL; it must be deleted and regenerated
	stale := time.Now().Add(-25 * time.Hour)
	if err := db.Model(&domain.Summary{}).
		Where("user_id = ?", "U1").
		Update("updated_at", stale).Error; err != nil {
		t.Fatalf("age summary: %v", err)
	}

	got, err := svc.GetOrCreateSummary(context.Background(), "U1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "新しいまとめ" {
		t.Fatalf("summary = %q, want regenerated", got)
	}
	if n := atomic.LoadInt32(&llm.calls); n != 1 {
		t.Fatalf("llm calls = %d, want 1", n)
	}
}

func TestSummary_TruncatesEntryBodies(t *testing.T) {
	db := newTestDB(t)
	llm := &fakeSummaryLLM{out: "まとめ"}
	cfg := summaryConfig()
	cfg.EntryCharLimit = 10
	svc := NewSummaryService(db, llm, newTestResilience(), cfg, zerolog.Nop())
	seedEntries(t, db, "U1", strings.Repeat("あ", 50), "短い日記")

	if _, err := svc.GetOrCreateSummary(context.Background(), "U1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	llm.mu.Lock()
	defer llm.mu.Unlock()
	if len(llm.contents) != 1 {
		t.Fatalf("llm calls = %d", len(llm.contents))
	}
	for _, c := range llm.contents[0] {
		if n := len([]rune(c)); n > 10 {
			t.Errorf("entry body runes = %d, want <= 10", n)
		}
	}
}

func TestSummary_ConcurrentCallsCollapse(t *testing.T) {
	db := newTestDB(t)
	llm := &fakeSummaryLLM{out: "まとめ", delay: 50 * time.Millisecond}
	svc := NewSummaryService(db, llm, newTestResilience(), summaryConfig(), zerolog.Nop())
	seedEntries(t, db, "U1", "一日目", "二日目")

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.GetOrCreateSummary(context.Background(), "U1"); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&llm.calls); n != 1 {
		t.Fatalf("llm calls = %d, want 1 (singleflight)", n)
	}
}

func TestSummary_LLMFailureDegrades(t *testing.T) {
	db := newTestDB(t)
	llm := &fakeSummaryLLM{err: fmt.Errorf("model unavailable")}
	svc := NewSummaryService(db, llm, newTestResilience(), summaryConfig(), zerolog.Nop())
	seedEntries(t, db, "U1", "一日目", "二日目")

	got, err := svc.GetOrCreateSummary(context.Background(), "U1")
	if err == nil {
		t.Fatal("expected error")
	}
	if got != "" {
		t.Fatalf("summary = %q, want empty on failure", got)
	}
}

func TestSummary_Stats(t *testing.T) {
	db := newTestDB(t)
	svc := NewSummaryService(db, &fakeSummaryLLM{}, newTestResilience(), summaryConfig(), zerolog.Nop())

	stats, err := svc.Stats(context.Background(), "U1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalSummaries != 0 {
		t.Fatalf("stats = %+v, want empty", stats)
	}

	if _, err := repo.UpsertSummary(context.Background(), db, "U1", "2026-08-24", "2026-08-31", "まとめ"); err != nil {
		t.Fatalf("seed summary: %v", err)
	}
	stats, err = svc.Stats(context.Background(), "U1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalSummaries != 1 || stats.LatestSummaryDate != "2026-08-31" {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestSummary_MissingUserID(t *testing.T) {
	svc := NewSummaryService(newTestDB(t), &fakeSummaryLLM{}, newTestResilience(), summaryConfig(), zerolog.Nop())
	if _, err := svc.GetOrCreateSummary(context.Background(), ""); err != ErrMissingUserID {
		t.Fatalf("err = %v, want ErrMissingUserID", err)
	}
}

func TestSummary_RefreshBypassesFreshCache(t *testing.T) {
	db := newTestDB(t)
	llm := &fakeSummaryLLM{out: "一週間の傾向まとめ"}
	svc := NewSummaryService(db, llm, newTestResilience(), summaryConfig(), zerolog.Nop())
	seedEntries(t, db, "U1", "一日目の日記", "二日目の日記")

	if _, err := svc.GetOrCreateSummary(context.Background(), "U1"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	llm.out = "更新後の傾向まとめ"
	if err := svc.RefreshSummary(context.Background(), "U1"); err != nil {
		t.Fatalf("RefreshSummary: %v", err)
	}
	if n := atomic.LoadInt32(&llm.calls); n != 2 {
		t.Fatalf("llm calls = %d, want 2 (refresh must regenerate)", n)
	}

	got, err := svc.GetOrCreateSummary(context.Background(), "U1")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if got != "更新後の傾向まとめ" {
		t.Fatalf("summary = %q", got)
	}
}
