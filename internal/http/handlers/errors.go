// Package handlers defines HTTP-layer error codes used across all API
// endpoints. These symbolic constants are mapped to HTTP responses via the
// fail() helper and give clients a stable, machine-readable error taxonomy
// alongside human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case.
//   - Generic codes (bad_request, unauthorized, forbidden, not_found,
//     conflict) mirror common HTTP status semantics.
//   - Domain-specific codes are reserved for business outcomes that the
//     status alone cannot convey.
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeInvalidTransition = "invalid_transition"
	ErrCodeUpdateFailed      = "update_failed"
	ErrCodeListFailed        = "list_failed"
	ErrCodeMethodNotAllowed  = "method_not_allowed"
)
