// Package handlers defines the HTTP-layer error codes used across the API.
// Codes are lowercase snake_case and stable; clients branch on them instead
// of parsing messages.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeInvalidSignature = "invalid_signature"
	ErrCodeListFailed       = "list_failed"
)
