// Package domain defines the persistence models for diary entries, rolling
// summaries, and analysis results. These types are mapped with GORM and form
// the core data layer of the diary backend.
package domain

import (
	"time"
)

// DateLayout is the calendar-date format used for summary window keys.
const DateLayout = "2006-01-02"

// Entry represents a single diary message saved for a user. Entries are
// immutable once created; one row is written per inbound diary message.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: LINE user identifier; indexed for efficient retrieval.
//   - Content: full diary text as submitted (trimmed).
//   - CreatedAt: creation timestamp; indexed for trailing-window queries.
type Entry struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_user_entries,priority:1"`
	Content   string    `json:"content"    gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_user_entries,priority:2"`
}

// TableName returns the database table name for Entry.
func (Entry) TableName() string { return "entries" }

// Summary is a cached rolling-window summary of a user's recent entries,
// keyed by (UserID, StartDate, EndDate). At most one row exists per key;
// writes use upsert semantics. Freshness is measured from UpdatedAt, not
// from row creation time: rewriting identical content does not bump
// UpdatedAt, while new content does.
//
// StartDate/EndDate are calendar dates in "YYYY-MM-DD" form. Keeping them
// as strings matches how the window is computed and avoids timezone drift
// in the unique key.
type Summary struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);not null;uniqueIndex:ux_summary_window,priority:1"`
	StartDate string    `json:"start_date" gorm:"type:char(10);not null;uniqueIndex:ux_summary_window,priority:2"`
	EndDate   string    `json:"end_date"   gorm:"type:char(10);not null;uniqueIndex:ux_summary_window,priority:3"`
	Content   string    `json:"content"    gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Summary.
func (Summary) TableName() string { return "summaries" }

// Analysis holds the structured psychological analysis produced for one
// entry. Exactly one analysis row may exist per entry (tier 3 produces
// none). The string fields are bounded: emotion/themes/patterns at 100
// characters, positive points at 150.
//
// Level records which fallback tier produced the row (1 = AI + heuristic,
// 2 = heuristic only). Tier-3 outcomes are deliberately not persisted.
type Analysis struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	EntryID        string    `json:"entry_id"        gorm:"type:char(36);not null;uniqueIndex:ux_analysis_entry"`
	UserID         string    `json:"user_id"         gorm:"type:varchar(64);not null;index"`
	Emotion        string    `json:"emotion"         gorm:"type:varchar(100);not null"`
	Themes         string    `json:"themes"          gorm:"type:varchar(100);not null"`
	Patterns       string    `json:"patterns"        gorm:"type:varchar(100);not null"`
	PositivePoints string    `json:"positive_points" gorm:"type:varchar(150);not null"`
	Level          int       `json:"level"           gorm:"not null;check:level IN (1,2)"`
	CreatedAt      time.Time `json:"created_at"`

	// Entry is the analyzed diary entry. Analyses are cascade-deleted
	// if the underlying entry is removed.
	Entry Entry `json:"-" gorm:"foreignKey:EntryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Analysis.
func (Analysis) TableName() string { return "analyses" }
