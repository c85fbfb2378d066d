// Package perf keeps an in-memory window of analysis pipeline timings and
// derives percentile statistics, trend, and health grades from it. The same
// samples also feed the Prometheus collectors scraped via /metrics.
package perf

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var (
	analysisTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diary_analysis_total",
			Help: "Total diary analyses by level and outcome.",
		},
		[]string{"level", "success"},
	)

	analysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "diary_analysis_duration_seconds",
			Help:    "End-to-end analysis pipeline duration.",
			Buckets: []float64{.001, .002, .005, .008, .01, .025, .05, .1, .5, 1, 3},
		},
	)
)

func init() {
	prometheus.MustRegister(analysisTotal, analysisDuration)
}

// Sample is one recorded pipeline run.
type Sample struct {
	Timestamp   time.Time     `json:"timestamp"`
	UserID      string        `json:"user_id"`
	Duration    time.Duration `json:"-"`
	Level       int           `json:"analysis_level"`
	EntryLength int           `json:"entry_length"`
	Success     bool          `json:"success"`
	ErrorType   string        `json:"error_type,omitempty"`
}

// Stats aggregates the whole retained window.
type Stats struct {
	TotalRequests   int     `json:"total_requests"`
	AverageMs       float64 `json:"average_processing_ms"`
	Level1Count     int     `json:"level1_count"`
	Level2Count     int     `json:"level2_count"`
	Level3Count     int     `json:"level3_count"`
	SuccessRate     float64 `json:"success_rate"`
	P95ProcessingMs float64 `json:"p95_processing_ms"`
	P99ProcessingMs float64 `json:"p99_processing_ms"`
}

// Trend compares the first and second half of the recent window.
type Trend struct {
	RecentAverageMs  float64 `json:"recent_average_ms"`
	RecentLevel3Rate float64 `json:"recent_level3_rate"`
	Trending         string  `json:"trending"` // improving, stable, degrading
}

// Health is the coarse system grade derived from stats and trend.
type Health struct {
	Status          string   `json:"status"` // healthy, warning, critical
	Message         string   `json:"message"`
	Recommendations []string `json:"recommendations"`
}

const (
	StatusHealthy  = "healthy"
	StatusWarning  = "warning"
	StatusCritical = "critical"
)

// Monitor retains up to capacity samples; on overflow the oldest half is
// dropped so steady state keeps recent history without per-record copying.
// Safe for concurrent use.
type Monitor struct {
	mu       sync.Mutex
	samples  []Sample
	capacity int
	slowMs   float64
	log      zerolog.Logger

	now func() time.Time
}

// NewMonitor builds a Monitor holding at most capacity samples. Runs slower
// than slowThreshold are logged as warnings; pass the level-1 analysis
// budget so the threshold tracks deployment tuning.
func NewMonitor(capacity int, slowThreshold time.Duration, log zerolog.Logger) *Monitor {
	if capacity < 2 {
		capacity = 2
	}
	if slowThreshold <= 0 {
		slowThreshold = 8 * time.Millisecond
	}
	return &Monitor{
		samples:  make([]Sample, 0, capacity),
		capacity: capacity,
		slowMs:   durationMs(slowThreshold),
		log:      log.With().Str("component", "perf").Logger(),
		now:      time.Now,
	}
}

// Record stores one sample and updates the Prometheus collectors. Slow runs
// and emergency-mode fallbacks are logged as warnings.
func (m *Monitor) Record(s Sample) {
	if s.Timestamp.IsZero() {
		s.Timestamp = m.now()
	}

	m.mu.Lock()
	if len(m.samples) >= m.capacity {
		kept := m.samples[len(m.samples)-m.capacity/2:]
		m.samples = append(m.samples[:0], kept...)
	}
	m.samples = append(m.samples, s)
	m.mu.Unlock()

	analysisTotal.WithLabelValues(strconv.Itoa(s.Level), strconv.FormatBool(s.Success)).Inc()
	analysisDuration.Observe(s.Duration.Seconds())

	ms := durationMs(s.Duration)
	if ms > m.slowMs {
		m.log.Warn().
			Str("user_id", s.UserID).
			Float64("processing_ms", ms).
			Int("level", s.Level).
			Int("entry_length", s.EntryLength).
			Bool("success", s.Success).
			Msg("slow analysis run")
	}
	if s.Level == 3 {
		m.log.Warn().
			Str("user_id", s.UserID).
			Float64("processing_ms", ms).
			Int("entry_length", s.EntryLength).
			Msg("emergency mode response served")
	}
}

// Stats computes aggregates over every retained sample. Percentiles use the
// nearest-rank value at floor(n*q) over the ascending-sorted durations.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.samples)
	if n == 0 {
		return Stats{}
	}

	times := make([]float64, n)
	var sum float64
	var successes, l1, l2, l3 int
	for i, s := range m.samples {
		ms := durationMs(s.Duration)
		times[i] = ms
		sum += ms
		if s.Success {
			successes++
		}
		switch s.Level {
		case 1:
			l1++
		case 2:
			l2++
		case 3:
			l3++
		}
	}
	sort.Float64s(times)

	return Stats{
		TotalRequests:   n,
		AverageMs:       sum / float64(n),
		Level1Count:     l1,
		Level2Count:     l2,
		Level3Count:     l3,
		SuccessRate:     float64(successes) / float64(n) * 100,
		P95ProcessingMs: percentile(times, 0.95),
		P99ProcessingMs: percentile(times, 0.99),
	}
}

// RecentTrend reports the average, emergency-mode rate, and direction over
// samples recorded within the window. Direction compares the halves of the
// window; a swing over 10 percent either way leaves "stable".
func (m *Monitor) RecentTrend(window time.Duration) Trend {
	cutoff := m.now().Add(-window)

	m.mu.Lock()
	var recent []Sample
	for _, s := range m.samples {
		if s.Timestamp.After(cutoff) {
			recent = append(recent, s)
		}
	}
	m.mu.Unlock()

	if len(recent) == 0 {
		return Trend{Trending: "stable"}
	}

	var sum float64
	var l3 int
	for _, s := range recent {
		sum += durationMs(s.Duration)
		if s.Level == 3 {
			l3++
		}
	}
	t := Trend{
		RecentAverageMs:  sum / float64(len(recent)),
		RecentLevel3Rate: float64(l3) / float64(len(recent)) * 100,
		Trending:         "stable",
	}

	half := len(recent) / 2
	if half == 0 || len(recent)-half == 0 {
		return t
	}
	firstAvg := averageMs(recent[:half])
	secondAvg := averageMs(recent[half:])
	if firstAvg == 0 {
		return t
	}
	improvement := (firstAvg - secondAvg) / firstAvg
	if improvement > 0.1 {
		t.Trending = "improving"
	} else if improvement < -0.1 {
		t.Trending = "degrading"
	}
	return t
}

// Health grades the system. Critical and warning thresholds look at the p95
// latency, the success rate, and the recent emergency-mode rate.
func (m *Monitor) Health() Health {
	stats := m.Stats()
	trend := m.RecentTrend(10 * time.Minute)

	if stats.P95ProcessingMs > 10 || (stats.TotalRequests > 0 && stats.SuccessRate < 80) || trend.RecentLevel3Rate > 50 {
		return Health{
			Status:  StatusCritical,
			Message: "システムが高負荷状態です。緊急対応が必要です。",
			Recommendations: []string{
				"OpenAI APIタイムアウトをさらに短縮",
				"より積極的な軽量分析フォールバック",
				"データベースクエリの最適化",
				"リクエスト頻度の制限検討",
			},
		}
	}

	if stats.P95ProcessingMs > 8 || (stats.TotalRequests > 0 && stats.SuccessRate < 95) || trend.RecentLevel3Rate > 20 {
		var recs []string
		if stats.P95ProcessingMs > 8 {
			recs = append(recs, "CPU使用量が制限に近づいています")
		}
		if trend.RecentLevel3Rate > 20 {
			recs = append(recs, "緊急モードの使用頻度が高くなっています")
		}
		return Health{
			Status:          StatusWarning,
			Message:         "パフォーマンスに注意が必要です。",
			Recommendations: recs,
		}
	}

	return Health{
		Status:          StatusHealthy,
		Message:         "システムは正常に動作しています。",
		Recommendations: []string{},
	}
}

// Reset drops all retained samples.
func (m *Monitor) Reset() {
	m.mu.Lock()
	m.samples = m.samples[:0]
	m.mu.Unlock()
}

func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)) * q)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func averageMs(samples []Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += durationMs(s.Duration)
	}
	return sum / float64(len(samples))
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
