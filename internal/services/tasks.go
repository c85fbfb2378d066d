// Package services – background task runner
//
// Enrichment work continues after the webhook response has been sent. The
// Tasks runner tracks those goroutines so graceful shutdown can wait for
// them instead of killing half-finished LLM calls and pushes.
package services

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Tasks runs named background functions and supports waiting for all of
// them to finish. Panics inside a task are recovered and logged.
type Tasks struct {
	wg  sync.WaitGroup
	log zerolog.Logger
}

// NewTasks constructs a Tasks runner.
func NewTasks(log zerolog.Logger) *Tasks {
	return &Tasks{log: log.With().Str("component", "tasks").Logger()}
}

// Go runs fn in a new goroutine tracked by the runner.
func (t *Tasks) Go(name string, fn func()) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				t.log.Error().Str("task", name).Any("panic", r).Msg("background task panicked")
			}
		}()
		fn()
	}()
}

// Wait blocks until every running task finishes or ctx expires, returning
// ctx.Err() in the latter case.
func (t *Tasks) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
