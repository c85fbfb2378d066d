// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the
// WebhookDelivery model used to skip LINE webhook redeliveries.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kokorolog/go-diary-backend/internal/domain"
)

// ErrDuplicate indicates that a delivery record already exists for the
// given webhook event ID.
var ErrDuplicate = errors.New("duplicate")

// MarkDelivered records a webhook event as processed. It returns
// ErrDuplicate when the event ID was already recorded, which callers use as
// the signal to skip a redelivered event.
func MarkDelivered(ctx context.Context, db *gorm.DB, eventID, userID string, ttl time.Duration) (*domain.WebhookDelivery, error) {
	now := time.Now().UTC()
	rec := &domain.WebhookDelivery{
		ID:        uuid.NewString(),
		EventID:   eventID,
		UserID:    userID,
		SeenAt:    now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// PurgeExpiredDeliveries deletes dedup records whose TTL elapsed and
// reports how many were removed. Run from the maintenance batch; failures
// are safe to ignore.
func PurgeExpiredDeliveries(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.WebhookDelivery{})
	return res.RowsAffected, res.Error
}
