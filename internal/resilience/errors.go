// Package resilience wraps fallible operations against external resources
// (database, LLM API, outbound messaging) with bounded retries and
// per-resource circuit breakers. Errors are classified into a small taxonomy
// that drives retry decisions, backoff, log severity, and the canned message
// shown to end users.
//
// The package has no globals: construct a Handler at startup and inject it
// into the services that need protection. This keeps tests isolated and
// breaker state visible.
package resilience

import (
	"context"
	"errors"
	"strings"
)

// Category labels the failure mode of a classified error.
type Category string

// Error categories, ordered roughly from most to least recoverable.
const (
	CategoryTemporary  Category = "temporary"  // transient, retry may help
	CategoryPermanent  Category = "permanent"  // retrying will not help
	CategoryRateLimit  Category = "rate_limit" // upstream throttling
	CategoryNetwork    Category = "network"    // connectivity or timeout
	CategoryValidation Category = "validation" // caller-supplied bad input
	CategoryUnknown    Category = "unknown"    // unclassifiable
)

// Canned user-facing messages. Raw internal error text is never shown to
// end users; these are the only strings that may reach them.
const (
	UserMessageAnalysisError = "申し訳ございません。分析処理中にエラーが発生しました。しばらく時間をおいて再度お試しください。"
	UserMessageTemporary     = "AI分析サービスに一時的な問題が発生しています。しばらく時間をおいて再度お試しください。"
)

// Error is a classified error produced by the resilience layer. It wraps the
// original cause and carries everything downstream code needs to decide on
// retries, backoff, and user messaging.
type Error struct {
	Category    Category
	Retryable   bool
	StatusCode  int    // HTTP status from the upstream, 0 if n/a
	RetryAfter  int    // seconds suggested by the upstream, 0 if n/a
	UserMessage string // canned, safe to show to end users
	Context     string // operation label supplied by the caller
	cause       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return string(e.Category) + ": " + e.cause.Error()
	}
	return string(e.Category)
}

// Unwrap exposes the original cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.cause }

// StatusCoder is implemented by upstream client errors that carry an HTTP
// status code (see llm.APIError and line.APIError).
type StatusCoder interface {
	HTTPStatus() int
}

// RetryAfterHinter is implemented by upstream client errors that carry a
// throttling reset hint in seconds.
type RetryAfterHinter interface {
	RetryAfterSeconds() int
}

// Classify maps an arbitrary error from one of the protected resources into
// a *Error. The opContext label (e.g. "llm.analysis", "db.createEntry",
// "messaging.push") selects the classification heuristics:
//
//   - Status-coded errors: 429 → rate_limit (retryable, honors RetryAfter),
//     5xx → temporary (retryable), other 4xx → permanent.
//   - Context deadline / cancellation → network (retryable).
//   - Database errors whose text mentions timeout/connection/network →
//     temporary (retryable); other database errors (constraint violations,
//     malformed SQL) → permanent.
//   - Everything else → unknown, not retryable.
//
// An error that is already a *Error passes through unchanged so repeated
// classification is idempotent.
func Classify(err error, opContext string) *Error {
	var already *Error
	if errors.As(err, &already) {
		return already
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return classifyStatus(err, sc, opContext)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{
			Category:    CategoryNetwork,
			Retryable:   true,
			UserMessage: UserMessageTemporary,
			Context:     opContext,
			cause:       err,
		}
	}

	if strings.HasPrefix(opContext, "db") {
		return classifyDatabase(err, opContext)
	}

	low := strings.ToLower(err.Error())
	if strings.Contains(low, "timeout") || strings.Contains(low, "network") ||
		strings.Contains(low, "connection refused") || strings.Contains(low, "no such host") {
		return &Error{
			Category:    CategoryNetwork,
			Retryable:   true,
			UserMessage: UserMessageTemporary,
			Context:     opContext,
			cause:       err,
		}
	}

	return &Error{
		Category:    CategoryUnknown,
		Retryable:   false,
		UserMessage: UserMessageAnalysisError,
		Context:     opContext,
		cause:       err,
	}
}

// classifyStatus applies the shared HTTP status heuristics used for both the
// LLM and the messaging clients.
func classifyStatus(err error, sc StatusCoder, opContext string) *Error {
	status := sc.HTTPStatus()
	switch {
	case status == 429:
		retryAfter := 0
		var h RetryAfterHinter
		if errors.As(err, &h) {
			retryAfter = h.RetryAfterSeconds()
		}
		return &Error{
			Category:    CategoryRateLimit,
			Retryable:   true,
			StatusCode:  status,
			RetryAfter:  retryAfter,
			UserMessage: UserMessageTemporary,
			Context:     opContext,
			cause:       err,
		}
	case status >= 500:
		return &Error{
			Category:    CategoryTemporary,
			Retryable:   true,
			StatusCode:  status,
			UserMessage: UserMessageTemporary,
			Context:     opContext,
			cause:       err,
		}
	case status >= 400:
		return &Error{
			Category:    CategoryPermanent,
			Retryable:   false,
			StatusCode:  status,
			UserMessage: UserMessageAnalysisError,
			Context:     opContext,
			cause:       err,
		}
	default:
		// Status-coded error without a usable status: treat as network.
		return &Error{
			Category:    CategoryNetwork,
			Retryable:   true,
			StatusCode:  status,
			UserMessage: UserMessageTemporary,
			Context:     opContext,
			cause:       err,
		}
	}
}

// classifyDatabase separates transient connectivity failures from permanent
// ones (constraint violations, schema errors) by message substring. GORM and
// the SQLite driver do not expose a stable error typology, so substring
// matching is the pragmatic contract here.
func classifyDatabase(err error, opContext string) *Error {
	low := strings.ToLower(err.Error())
	if strings.Contains(low, "timeout") || strings.Contains(low, "connection") || strings.Contains(low, "network") {
		return &Error{
			Category:    CategoryTemporary,
			Retryable:   true,
			UserMessage: UserMessageAnalysisError,
			Context:     opContext,
			cause:       err,
		}
	}
	return &Error{
		Category:    CategoryPermanent,
		Retryable:   false,
		UserMessage: UserMessageAnalysisError,
		Context:     opContext,
		cause:       err,
	}
}

// UserMessageFrom extracts the canned user-facing message from any error,
// classifying it first when needed. It never returns internal error text.
func UserMessageFrom(err error, opContext string) string {
	if err == nil {
		return ""
	}
	ce := Classify(err, opContext)
	if ce.UserMessage != "" {
		return ce.UserMessage
	}
	return UserMessageAnalysisError
}
