// Package handlers defines the HTTP-layer error codes used across all API
// endpoints. Codes are lowercase snake_case and stable: clients branch on
// them programmatically, so renaming one is a breaking change.
package handlers

const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeConflict    = "conflict"
	ErrCodeRateLimited = "too_many_requests"
	ErrCodeInternal    = "internal_error"

	// Domain-specific:
	ErrCodeModelUnavailable = "model_unavailable"
	ErrCodeUnsupportedPay   = "unsupported_pay_method"
	ErrCodeQueueSaturated   = "queue_saturated"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
