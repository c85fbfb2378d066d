// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// by the summary service and the debug endpoints. Each function is
// context-aware and safe to call from services or handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/kokorolog/go-diary-backend/internal/domain"
)

// EntryStats returns aggregate metadata for a user's diary entries: the total
// number of rows and the most recent CreatedAt timestamp among those rows.
//
// When the user has no entries, the returned count is 0 and latest is nil.
func EntryStats(ctx context.Context, db *gorm.DB, userID string) (count int64, latest *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Entry{}).Where("user_id = ?", userID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}

// AnalysisLevelCounts returns how many stored analyses were produced by each
// tier for a user. Tier 3 never stores a row, so only levels 1 and 2 appear.
func AnalysisLevelCounts(ctx context.Context, db *gorm.DB, userID string) (map[int]int64, error) {
	var rows []struct {
		Level int
		N     int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Analysis{}).
		Select("level, COUNT(*) AS n").
		Where("user_id = ?", userID).
		Group("level").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[int]int64, len(rows))
	for _, r := range rows {
		out[r.Level] = r.N
	}
	return out, nil
}
