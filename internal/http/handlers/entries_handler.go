// Entry inspection HTTP handlers.
//
//   - GET /api/v1/entries          paginated entries for a user
//   - GET /api/v1/entries/stats    entry counts and per-level analysis counts
//
// These are operator debug aids; end users only ever interact through the
// messaging channel.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kokorolog/go-diary-backend/internal/repo"
	"github.com/kokorolog/go-diary-backend/internal/utils"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListEntries handles GET /api/v1/entries.
//
// Query parameters: user_id (required), page (1-based, default 1),
// page_size (default 20, capped at 100).
func (h *Handlers) ListEntries(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id is required")
		return
	}

	page := utils.AtoiDefault(c.Query("page"), 1)
	if page < 1 {
		page = 1
	}
	pageSize := utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	ctx := c.Request.Context()
	total, err := repo.CountEntries(ctx, h.db, userID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not count entries")
		return
	}
	items, err := repo.ListEntriesPage(ctx, h.db, userID, (page-1)*pageSize, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list entries")
		return
	}

	ok(c, http.StatusOK, gin.H{
		"items":     items,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// EntryStats handles GET /api/v1/entries/stats.
func (h *Handlers) EntryStats(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id is required")
		return
	}

	ctx := c.Request.Context()
	count, latest, err := repo.EntryStats(ctx, h.db, userID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not load entry stats")
		return
	}
	levels, err := repo.AnalysisLevelCounts(ctx, h.db, userID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not load analysis stats")
		return
	}

	ok(c, http.StatusOK, gin.H{
		"entry_count":     count,
		"latest_entry_at": latest,
		"analysis_levels": levels,
	})
}
