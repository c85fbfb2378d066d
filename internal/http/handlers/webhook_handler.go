// Webhook HTTP handler.
//
// POST /webhook receives LINE platform deliveries. The signature is verified
// against the raw body before any JSON decoding; a failed check gets a 400
// and nothing is processed. Individual event failures are logged but never
// fail the request, because a non-2xx answer makes LINE redeliver the whole
// batch, duplicates included.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kokorolog/go-diary-backend/internal/http/middleware"
	"github.com/kokorolog/go-diary-backend/internal/line"
)

// EventHandler processes one webhook event end to end.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev line.Event) error
}

// lineSignatureHeader carries the base64 HMAC-SHA256 of the request body.
const lineSignatureHeader = "X-Line-Signature"

// Webhook handles POST /webhook.
func (h *Handlers) Webhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}

	if !line.ValidateSignature(body, h.channelSecret, c.GetHeader(lineSignatureHeader)) {
		fail(c, http.StatusBadRequest, ErrCodeInvalidSignature, "signature validation failed")
		return
	}

	var req line.WebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid webhook payload")
		return
	}

	lg := middleware.LoggerFrom(c)
	for _, ev := range req.Events {
		if err := h.events.HandleEvent(c.Request.Context(), ev); err != nil {
			// the user already got a degraded reply; log and move on
			lg.Warn().Err(err).
				Str("event_id", ev.WebhookEventID).
				Str("event_type", ev.Type).
				Msg("event processing failed")
		}
	}

	ok(c, http.StatusOK, gin.H{"status": "ok", "events": len(req.Events)})
}
