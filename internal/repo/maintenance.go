// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file holds the retention queries run by the
// maintenance batch.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/kokorolog/go-diary-backend/internal/domain"
)

// DeleteEntriesBefore removes diary entries created before cutoff and
// reports how many were removed. Analyses cascade with their entry.
func DeleteEntriesBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&domain.Entry{})
	return res.RowsAffected, res.Error
}

// DeleteSummariesBefore removes cached summaries created before cutoff.
func DeleteSummariesBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&domain.Summary{})
	return res.RowsAffected, res.Error
}

// DeleteStaleSummaries removes summaries older than olderThan belonging to
// users with no entry since inactiveSince. Their cache will never be read
// again through the normal path, so dropping the rows is free.
func DeleteStaleSummaries(ctx context.Context, db *gorm.DB, inactiveSince, olderThan time.Time) (int64, error) {
	active := db.Model(&domain.Entry{}).
		Distinct("user_id").
		Where("created_at >= ?", inactiveSince)
	res := db.WithContext(ctx).
		Where("user_id NOT IN (?)", active).
		Where("created_at < ?", olderThan).
		Delete(&domain.Summary{})
	return res.RowsAffected, res.Error
}

// ActiveUserIDs lists users with at least one entry since the cutoff.
func ActiveUserIDs(ctx context.Context, db *gorm.DB, since time.Time) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).
		Model(&domain.Entry{}).
		Distinct("user_id").
		Where("created_at >= ?", since).
		Order("user_id").
		Pluck("user_id", &ids).Error
	return ids, err
}
