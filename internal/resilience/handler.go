package resilience

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Operation is a fallible unit of work. The context passed in must be
// honored for cancellation; retries stop as soon as it is done.
type Operation func(ctx context.Context) error

// RetryPolicy bounds retry behavior for one call site. The zero value is not
// usable; start from a Handler's defaults and override as needed.
type RetryPolicy struct {
	MaxRetries        int           // additional attempts after the first
	BaseDelay         time.Duration // first backoff delay
	MaxDelay          time.Duration // backoff ceiling
	BackoffMultiplier float64       // exponential growth factor

	// RetryCondition, when set, can veto a retry that the classifier
	// would otherwise allow. It never makes a non-retryable error
	// retryable.
	RetryCondition func(error) bool
}

// BreakerPolicy configures per-resource circuit breakers.
type BreakerPolicy struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}

// Handler executes operations with retry and circuit-breaker protection.
// One Handler is constructed at startup and shared by all services; breaker
// state lives in its key→breaker map. Safe for concurrent use.
type Handler struct {
	mu       sync.Mutex
	breakers map[string]*breaker

	defaultRetry   RetryPolicy
	defaultBreaker BreakerPolicy
	log            zerolog.Logger

	// now is a test seam for breaker clock control.
	now func() time.Time
}

// NewHandler constructs a Handler with the given defaults.
func NewHandler(retry RetryPolicy, brk BreakerPolicy, log zerolog.Logger) *Handler {
	return &Handler{
		breakers:       make(map[string]*breaker),
		defaultRetry:   retry,
		defaultBreaker: brk,
		log:            log.With().Str("component", "resilience").Logger(),
		now:            time.Now,
	}
}

// ExecuteWithRetry runs op up to MaxRetries+1 times. Errors are classified
// on every failure; a non-retryable classification, an exhausted budget, or
// a veto from RetryCondition terminates immediately with the classified
// error. Backoff between attempts is min(base·multiplier^attempt, max),
// raised to the upstream's RetryAfter hint for rate-limit errors.
func (h *Handler) ExecuteWithRetry(ctx context.Context, op Operation, opContext string, policy RetryPolicy) error {
	if policy.BackoffMultiplier < 1 {
		policy = h.defaultRetry
	}

	var lastErr *Error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		lastErr = Classify(err, opContext)

		if !lastErr.Retryable || attempt >= policy.MaxRetries ||
			(policy.RetryCondition != nil && !policy.RetryCondition(err)) {
			h.logFailure(lastErr, attempt, true)
			return lastErr
		}

		delay := backoffDelay(attempt, policy)
		if lastErr.Category == CategoryRateLimit && lastErr.RetryAfter > 0 {
			if hinted := time.Duration(lastErr.RetryAfter) * time.Second; hinted > delay {
				delay = hinted
			}
		}

		h.logFailure(lastErr, attempt, false)
		h.log.Warn().
			Str("context", opContext).
			Int("attempt", attempt+1).
			Int("max_attempts", policy.MaxRetries+1).
			Dur("delay", delay).
			Msg("retrying operation")

		select {
		case <-ctx.Done():
			return Classify(ctx.Err(), opContext)
		case <-time.After(delay):
		}
	}
	return lastErr
}

// ExecuteWithCircuitBreaker consults the named breaker before running op.
// An OPEN breaker fails fast with a temporary, non-retryable error without
// invoking op. Success in any state closes the breaker; failure counts
// toward tripping it.
func (h *Handler) ExecuteWithCircuitBreaker(ctx context.Context, op Operation, circuitKey, opContext string) error {
	h.mu.Lock()
	b := h.breakerLocked(circuitKey)
	admitted := b.canExecute(h.now())
	status := b.status()
	h.mu.Unlock()

	if !admitted {
		rejection := &Error{
			Category:    CategoryTemporary,
			Retryable:   false,
			UserMessage: UserMessageTemporary,
			Context:     opContext,
			cause:       errOpenCircuit(circuitKey),
		}
		h.log.Warn().
			Str("context", opContext).
			Str("circuit", circuitKey).
			Str("state", string(status.State)).
			Int("failures", status.FailureCount).
			Time("next_attempt", status.NextAttemptTime).
			Msg("circuit open, rejecting call")
		return rejection
	}

	err := op(ctx)

	h.mu.Lock()
	if err != nil {
		b.onFailure(h.now())
	} else {
		b.onSuccess()
	}
	status = b.status()
	h.mu.Unlock()

	if err != nil {
		ce := Classify(err, opContext)
		h.log.WithLevel(levelFor(ce)).
			Str("context", opContext).
			Str("circuit", circuitKey).
			Str("state", string(status.State)).
			Int("failures", status.FailureCount).
			Str("category", string(ce.Category)).
			Err(err).
			Msg("protected call failed")
		return ce
	}
	return nil
}

// ExecuteWithProtection composes retry inside the circuit breaker: the
// breaker observes the aggregate outcome of the whole retry sequence as a
// single success or failure.
func (h *Handler) ExecuteWithProtection(ctx context.Context, op Operation, circuitKey, opContext string, policy RetryPolicy) error {
	return h.ExecuteWithCircuitBreaker(ctx, func(ctx context.Context) error {
		return h.ExecuteWithRetry(ctx, op, opContext, policy)
	}, circuitKey, opContext)
}

// DefaultRetry returns the handler's default retry policy for callers that
// want to tweak a single field.
func (h *Handler) DefaultRetry() RetryPolicy { return h.defaultRetry }

// Status returns a snapshot of the named breaker, or false when no call has
// touched that key yet.
func (h *Handler) Status(circuitKey string) (BreakerStatus, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.breakers[circuitKey]
	if !ok {
		return BreakerStatus{}, false
	}
	return b.status(), true
}

// AllStatus returns snapshots of every breaker seen so far, keyed by
// resource name.
func (h *Handler) AllStatus() map[string]BreakerStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]BreakerStatus, len(h.breakers))
	for k, b := range h.breakers {
		out[k] = b.status()
	}
	return out
}

// Reset force-closes the named breaker. Intended for operational tooling.
func (h *Handler) Reset(circuitKey string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if b, ok := h.breakers[circuitKey]; ok {
		b.onSuccess()
	}
}

// breakerLocked returns (creating on demand) the breaker for key.
// Caller must hold h.mu.
func (h *Handler) breakerLocked(key string) *breaker {
	b, ok := h.breakers[key]
	if !ok {
		b = newBreaker(h.defaultBreaker.FailureThreshold, h.defaultBreaker.ResetTimeout)
		h.breakers[key] = b
	}
	return b
}

// logFailure emits one structured line per failed attempt. Temporary
// failures log at warn; everything else at error.
func (h *Handler) logFailure(ce *Error, attempt int, terminal bool) {
	h.log.WithLevel(levelFor(ce)).
		Str("context", ce.Context).
		Int("attempt", attempt).
		Bool("terminal", terminal).
		Str("category", string(ce.Category)).
		Bool("retryable", ce.Retryable).
		Int("status_code", ce.StatusCode).
		Err(ce.Unwrap()).
		Msg("operation failed")
}

func levelFor(ce *Error) zerolog.Level {
	if ce.Category == CategoryTemporary {
		return zerolog.WarnLevel
	}
	return zerolog.ErrorLevel
}

// backoffDelay computes min(base·multiplier^attempt, max).
func backoffDelay(attempt int, p RetryPolicy) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(p.BackoffMultiplier, float64(attempt))
	if d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// errOpenCircuit produces the cause error held inside an open-circuit rejection.
type errOpenCircuit string

func (e errOpenCircuit) Error() string { return "circuit breaker is open for " + string(e) }
