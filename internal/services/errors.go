package services

import "errors"

// Sentinel errors returned by the service layer. Handlers translate these
// to HTTP status codes and envelope error codes.
var (
	// ErrInvalidInput flags a request that fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound flags a missing task, order, generation or model.
	ErrNotFound = errors.New("not found")

	// ErrModelUnavailable flags a model that is missing or not active.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrCredentialsMissing flags an active model with no sealed credentials.
	ErrCredentialsMissing = errors.New("model credentials missing")

	// ErrUnsupportedMethod flags a pay method with no registered provider.
	ErrUnsupportedMethod = errors.New("unsupported pay method")

	// ErrProviderFailure flags an upstream vendor error.
	ErrProviderFailure = errors.New("provider failure")

	// ErrPermissionExhausted flags a download permission that is expired or
	// out of remaining downloads.
	ErrPermissionExhausted = errors.New("download permission exhausted")

	// ErrQueueSaturated flags a generation request rejected because the
	// worker queue is full.
	ErrQueueSaturated = errors.New("generation queue saturated")
)
