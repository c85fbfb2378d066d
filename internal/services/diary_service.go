// Package services – DiaryService
//
// This file implements the inbound message flow: webhook event deduplication,
// the synchronous tier pipeline for the immediate reply, and handover to the
// background enrichment when the reply carried no model analysis.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/kokorolog/go-diary-backend/internal/line"
	"github.com/kokorolog/go-diary-backend/internal/repo"
	"github.com/kokorolog/go-diary-backend/internal/resilience"
)

// Pipeline is the synchronous analysis surface DiaryService drives.
type Pipeline interface {
	ProcessDiaryEntry(ctx context.Context, userID, content string) (*AnalysisOutcome, error)
}

// Dispatcher schedules the background enrichment for a saved entry.
type Dispatcher interface {
	Dispatch(userID, entryID, content string)
}

// deliveryTTL bounds how long webhook event IDs are remembered for
// redelivery dedup. LINE redelivers within minutes; a day is plenty.
const deliveryTTL = 24 * time.Hour

// DiaryService handles one webhook text-message event end to end.
type DiaryService struct {
	// DB is the GORM handle used for the delivery dedup records.
	DB *gorm.DB
	// Pipeline produces the immediate reply.
	Pipeline Pipeline
	// Async runs the post-response enrichment.
	Async Dispatcher
	// Messenger sends the reply.
	Messenger line.Messenger
	// Resilience wraps replies with retry and the "messaging" breaker.
	Resilience *resilience.Handler

	Log zerolog.Logger
}

// NewDiaryService constructs a DiaryService.
func NewDiaryService(db *gorm.DB, pipeline Pipeline, async Dispatcher, messenger line.Messenger, res *resilience.Handler, log zerolog.Logger) *DiaryService {
	return &DiaryService{
		DB:         db,
		Pipeline:   pipeline,
		Async:      async,
		Messenger:  messenger,
		Resilience: res,
		Log:        log.With().Str("component", "diary").Logger(),
	}
}

// HandleEvent processes one webhook event. Non-text events are skipped.
// Redelivered or duplicate events are acknowledged without reprocessing so
// a user never gets the same diary stored twice. Failures answer the user
// with a canned message; the returned error is for logging only, the
// webhook endpoint acknowledges regardless.
func (s *DiaryService) HandleEvent(ctx context.Context, ev line.Event) error {
	if !ev.IsTextMessage() {
		return nil
	}

	if ev.WebhookEventID != "" {
		if _, err := repo.MarkDelivered(ctx, s.DB, ev.WebhookEventID, ev.Source.UserID, deliveryTTL); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				s.Log.Info().
					Str("event_id", ev.WebhookEventID).
					Bool("redelivery", ev.DeliveryContext.IsRedelivery).
					Msg("duplicate webhook event skipped")
				return nil
			}
			// dedup bookkeeping must not drop the message
			s.Log.Warn().Err(err).Str("event_id", ev.WebhookEventID).Msg("delivery record failed")
		}
	}

	outcome, err := s.Pipeline.ProcessDiaryEntry(ctx, ev.Source.UserID, ev.Message.Text)
	if err != nil {
		s.reply(ctx, ev.ReplyToken, resilience.UserMessageFrom(err, "pipeline"))
		return err
	}

	s.reply(ctx, ev.ReplyToken, outcome.UserMessage)

	// below level 1 the reply had no model analysis; deliver it async
	if outcome.Level != 1 {
		s.Async.Dispatch(ev.Source.UserID, outcome.Entry.ID, outcome.Entry.Content)
	}
	return nil
}

func (s *DiaryService) reply(ctx context.Context, replyToken, text string) {
	err := s.Resilience.ExecuteWithProtection(ctx, func(ctx context.Context) error {
		return s.Messenger.Reply(ctx, replyToken, []string{text})
	}, "messaging", "messaging.reply", s.Resilience.DefaultRetry())
	if err != nil {
		s.Log.Error().Err(err).Msg("reply failed")
	}
}
