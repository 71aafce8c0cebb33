// Package models defines the public domain models and error types for the
// platform: subscription accounts, the points ledger, jobs, artifacts, and
// the sharing/marketplace entities.
package models

import "errors"

// Common error types for the platform.
var (
	// Client errors
	ErrClientClosed = errors.New("client is closed")
	ErrInvalidID    = errors.New("invalid ID format")

	// Ledger and account errors
	ErrAccountNotFound      = errors.New("subscription account not found")
	ErrAccountSuspended     = errors.New("subscription account is suspended")
	ErrInsufficientBalance  = errors.New("insufficient points balance")
	ErrInsufficientEarnings = errors.New("insufficient earnings balance")
	ErrReservationNotFound  = errors.New("reservation not found")
	ErrReservationConsumed  = errors.New("reservation already committed or refunded")
	ErrTransactionNotFound  = errors.New("points transaction not found")
	ErrDuplicateIdempotency = errors.New("duplicate idempotency key")
	ErrCASConflict          = errors.New("concurrent balance update lost the race")
	ErrCASRetriesExhausted  = errors.New("balance update retries exhausted")

	// Entitlement errors
	ErrPlanNotFound       = errors.New("plan not found")
	ErrQuotaExceeded      = errors.New("quota exceeded for this resource")
	ErrFeatureNotEntitled = errors.New("feature not available on current plan")
	ErrInvalidRule        = errors.New("invalid entitlement rule")

	// Access errors
	ErrArtifactNotFound     = errors.New("artifact not found")
	ErrAccessDenied         = errors.New("access denied")
	ErrShareExpired         = errors.New("share link has expired")
	ErrShareRevoked         = errors.New("share link has been revoked")
	ErrOneTimeViewConsumed  = errors.New("one-time view link already consumed")
	ErrPurchaseNotFound     = errors.New("purchase grant not found")
	ErrPurchaseRequired     = errors.New("purchase required to access this artifact")

	// Job and queue errors
	ErrJobNotFound       = errors.New("job not found")
	ErrJobAlreadyQueued  = errors.New("job already queued")
	ErrJobNotCancellable = errors.New("job is not in a cancellable state")
	ErrJobNotRunning     = errors.New("job is not running")
	ErrQueueEmpty        = errors.New("queue is empty")
	ErrUnknownJobKind    = errors.New("unknown job kind")

	// Provider (AI generation) errors
	ErrProviderUnavailable  = errors.New("generation provider unavailable")
	ErrProviderTimeout      = errors.New("generation provider timed out")
	ErrProviderPolicy       = errors.New("generation blocked by provider policy")
	ErrSchemaValidation     = errors.New("generation output failed schema validation")
	ErrRetriesExhausted     = errors.New("generation retries exhausted")
	ErrNoProviderForModel   = errors.New("no provider registered for requested model")

	// Artifact and version errors
	ErrVersionNotFound   = errors.New("artifact version not found")
	ErrChapterNotFound   = errors.New("chapter not found")
	ErrSlideNotFound     = errors.New("slide not found")
	ErrInvalidOverlayType = errors.New("unrecognized overlay element type")

	// Question and grading errors
	ErrQuestionNotFound     = errors.New("question not found")
	ErrUnknownQuestionType  = errors.New("unknown question type")
	ErrInvalidAnswerFormat  = errors.New("answer format does not match question type")
	ErrGradingFailed        = errors.New("automated grading failed")

	// Sharing and marketplace errors
	ErrSlugTaken           = errors.New("marketplace slug already taken")
	ErrListingNotFound     = errors.New("marketplace listing not found")
	ErrListingUnpublished  = errors.New("marketplace listing is unpublished")
	ErrWithdrawalNotFound  = errors.New("withdrawal not found")
	ErrWithdrawalNotPending = errors.New("withdrawal is not in a pending state")
	ErrPayoutInfoMissing   = errors.New("payout information is required before withdrawal")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrRequired         = errors.New("required field is missing")

	// Authorization errors (identity facade)
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
)

// JobError represents an error that occurred while processing a queued job.
type JobError struct {
	JobID string
	Kind  string
	Err   error
}

func (e *JobError) Error() string {
	msg := "job " + e.JobID
	if e.Kind != "" {
		msg += " (" + e.Kind + ")"
	}
	return msg + ": " + e.Err.Error()
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// AccessDeniedError explains why the access engine refused a request, so
// callers can surface a specific reason instead of a bare forbidden error.
type AccessDeniedError struct {
	ArtifactID string
	AccountID  string
	Reason     string
}

func (e *AccessDeniedError) Error() string {
	return "access denied for account " + e.AccountID + " on artifact " + e.ArtifactID + ": " + e.Reason
}

func (e *AccessDeniedError) Is(target error) bool {
	return target == ErrAccessDenied
}

// ValidationError represents a validation error with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors represents multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Error()
}
