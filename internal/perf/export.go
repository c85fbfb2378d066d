package perf

import (
	"encoding/csv"
	"strconv"
	"strings"
	"time"
)

// ExportCSV renders every retained sample as CSV, oldest first.
func (m *Monitor) ExportCSV() string {
	m.mu.Lock()
	samples := make([]Sample, len(m.samples))
	copy(samples, m.samples)
	m.mu.Unlock()

	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write([]string{"timestamp", "user_id", "processing_ms", "analysis_level", "entry_length", "success", "error_type"})
	for _, s := range samples {
		_ = w.Write([]string{
			s.Timestamp.UTC().Format(time.RFC3339Nano),
			s.UserID,
			strconv.FormatFloat(durationMs(s.Duration), 'f', -1, 64),
			strconv.Itoa(s.Level),
			strconv.Itoa(s.EntryLength),
			strconv.FormatBool(s.Success),
			s.ErrorType,
		})
	}
	w.Flush()
	return b.String()
}
