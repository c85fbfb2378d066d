// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Summary
// model, which acts as a time-windowed cache keyed by (user_id, start_date,
// end_date).
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kokorolog/go-diary-backend/internal/domain"
)

// GetSummary fetches the summary for the exact (userID, startDate, endDate)
// window, or ErrNotFound if no row exists.
func GetSummary(ctx context.Context, db *gorm.DB, userID, startDate, endDate string) (*domain.Summary, error) {
	var s domain.Summary
	err := db.WithContext(ctx).
		Where("user_id = ? AND start_date = ? AND end_date = ?", userID, startDate, endDate).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertSummary writes the summary content for the given window. At most one
// row may exist per (userID, startDate, endDate); an existing row is updated
// in place.
//
// Idempotency rule: if the stored content already equals the new content the
// row is returned untouched and updated_at does NOT advance. Freshness is
// measured from updated_at, so blind rewrites must not extend a stale
// summary's lifetime.
func UpsertSummary(ctx context.Context, db *gorm.DB, userID, startDate, endDate, content string) (*domain.Summary, error) {
	now := time.Now().UTC()

	var existing domain.Summary
	err := db.WithContext(ctx).
		Where("user_id = ? AND start_date = ? AND end_date = ?", userID, startDate, endDate).
		First(&existing).Error
	switch {
	case err == nil:
		if existing.Content == content {
			return &existing, nil
		}
		existing.Content = content
		existing.UpdatedAt = now
		if err := db.WithContext(ctx).Save(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		s := &domain.Summary{
			ID:        uuid.NewString(),
			UserID:    userID,
			StartDate: startDate,
			EndDate:   endDate,
			Content:   content,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := db.WithContext(ctx).Create(s).Error; err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, err
	}
}

// DeleteSummary removes the summary row for the given window. Deleting a
// missing row is not an error; expiry cleanup races are harmless.
func DeleteSummary(ctx context.Context, db *gorm.DB, userID, startDate, endDate string) error {
	return db.WithContext(ctx).
		Where("user_id = ? AND start_date = ? AND end_date = ?", userID, startDate, endDate).
		Delete(&domain.Summary{}).Error
}

// GetLatestSummary returns the user's most recent summary by end date, or
// ErrNotFound when the user has none.
func GetLatestSummary(ctx context.Context, db *gorm.DB, userID string) (*domain.Summary, error) {
	var s domain.Summary
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("end_date DESC").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}
