// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Entry model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When an entry is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kokorolog/go-diary-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateEntry inserts a new diary Entry owned by userID with the given content.
// The entry ID is a randomly generated UUID (string), and CreatedAt is set to UTC.
//
// On success, it returns the persisted Entry. On failure, it returns a DB error.
func CreateEntry(ctx context.Context, db *gorm.DB, userID, content string) (*domain.Entry, error) {
	e := &domain.Entry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

// GetRecentEntries returns the user's entries created within the trailing
// `days` calendar days, ordered oldest first so callers can feed them to the
// summarizer in chronological order.
func GetRecentEntries(ctx context.Context, db *gorm.DB, userID string, days int) ([]domain.Entry, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	var entries []domain.Entry
	err := db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ?", userID, cutoff).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// CountEntries returns the total number of entries owned by the user.
func CountEntries(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Entry{}).
		Where("user_id = ?", userID).
		Count(&n).Error
	return n, err
}

// ListEntriesPage returns a page of the user's entries, newest first.
func ListEntriesPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Entry, error) {
	var entries []domain.Entry
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
