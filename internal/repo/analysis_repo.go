// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Analysis
// model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kokorolog/go-diary-backend/internal/domain"
)

// AnalysisFields carries the four bounded analysis strings produced by the
// analysis pipeline. Truncation to the column limits happens upstream (the
// parser and the light analyzer both emit bounded strings); the repository
// stores what it is given.
type AnalysisFields struct {
	Emotion        string
	Themes         string
	Patterns       string
	PositivePoints string
}

// CreateAnalysis inserts the analysis row for an entry. Each entry may have
// at most one analysis (unique index on entry_id); a second insert for the
// same entry fails with a constraint error.
func CreateAnalysis(ctx context.Context, db *gorm.DB, entryID, userID string, f AnalysisFields, level int) (*domain.Analysis, error) {
	a := &domain.Analysis{
		ID:             uuid.NewString(),
		EntryID:        entryID,
		UserID:         userID,
		Emotion:        f.Emotion,
		Themes:         f.Themes,
		Patterns:       f.Patterns,
		PositivePoints: f.PositivePoints,
		Level:          level,
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

// GetAnalysisByEntry fetches the analysis for a given entry, or ErrNotFound.
func GetAnalysisByEntry(ctx context.Context, db *gorm.DB, entryID string) (*domain.Analysis, error) {
	var a domain.Analysis
	err := db.WithContext(ctx).
		Where("entry_id = ?", entryID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}
