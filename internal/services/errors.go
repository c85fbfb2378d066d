// Package services – shared service-level errors
//
// Sentinel errors returned for predictable cases so handlers can map them
// to HTTP results consistently.
package services

import "errors"

var (
	// ErrMissingUserID indicates the caller supplied no user identifier.
	ErrMissingUserID = errors.New("user id is required")

	// ErrEmptyContent indicates the diary content was empty after trimming.
	ErrEmptyContent = errors.New("diary content is required")
)
