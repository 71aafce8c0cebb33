// Package apierror is the transport-boundary error shape: every domain
// sentinel error in pkg/models is translated into one of these before it
// reaches an HTTP response, the same APIError/TranslateError split the
// teacher uses in internal/infrastructure/api/rest.
package apierror

import (
	"errors"
	"net/http"

	"github.com/aidocs/platform/pkg/models"
)

// APIError is the uniform error shape returned to HTTP clients.
type APIError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
}

func (e *APIError) Error() string { return e.Message }

// New constructs an APIError.
func New(code, message string, httpStatus int) *APIError {
	return &APIError{Code: code, Message: message, HTTPStatus: httpStatus}
}

// WithDetails constructs an APIError carrying structured detail fields,
// e.g. the offending question/field on a test-validation failure.
func WithDetails(code, message string, httpStatus int, details map[string]interface{}) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: httpStatus}
}

var (
	ErrBadRequest       = New("BAD_REQUEST", "invalid request", http.StatusBadRequest)
	ErrUnauthorized     = New("UNAUTHORIZED", "authentication required", http.StatusUnauthorized)
	ErrForbidden        = New("FORBIDDEN", "access denied", http.StatusForbidden)
	ErrNotFound         = New("NOT_FOUND", "resource not found", http.StatusNotFound)
	ErrConflict         = New("CONFLICT", "resource conflict", http.StatusConflict)
	ErrValidationFailed = New("VALIDATION_FAILED", "validation failed", http.StatusUnprocessableEntity)
	ErrInternal         = New("INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
	// ErrInsufficientFunds uses 402 uniformly across the core, resolving the
	// 402-vs-403 ambiguity spec.md §9 flags for insufficient-points errors.
	ErrInsufficientFunds = New("INSUFFICIENT_FUNDS", "insufficient points balance", http.StatusPaymentRequired)
	ErrProviderError     = New("PROVIDER_ERROR", "generation provider error", http.StatusBadGateway)
)

// TranslateError maps a domain error to its transport shape, dispatching
// via errors.As/errors.Is over the pkg/models sentinel taxonomy, exactly
// the shape of the teacher's rest.TranslateError.
func TranslateError(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		return WithDetails("VALIDATION_FAILED", err.Error(), http.StatusUnprocessableEntity,
			map[string]interface{}{"field": validationErr.Field})
	}
	var validationErrs models.ValidationErrors
	if errors.As(err, &validationErrs) {
		return New("VALIDATION_FAILED", err.Error(), http.StatusUnprocessableEntity)
	}

	var accessDenied *models.AccessDeniedError
	if errors.As(err, &accessDenied) {
		return WithDetails("ACCESS_DENIED", err.Error(), http.StatusForbidden,
			map[string]interface{}{"reason": accessDenied.Reason})
	}

	var jobErr *models.JobError
	if errors.As(err, &jobErr) {
		return WithDetails("JOB_ERROR", err.Error(), http.StatusUnprocessableEntity,
			map[string]interface{}{"job_id": jobErr.JobID, "kind": jobErr.Kind})
	}

	switch {
	case errors.Is(err, models.ErrAccountNotFound),
		errors.Is(err, models.ErrArtifactNotFound),
		errors.Is(err, models.ErrChapterNotFound),
		errors.Is(err, models.ErrSlideNotFound),
		errors.Is(err, models.ErrVersionNotFound),
		errors.Is(err, models.ErrJobNotFound),
		errors.Is(err, models.ErrTransactionNotFound),
		errors.Is(err, models.ErrReservationNotFound),
		errors.Is(err, models.ErrPlanNotFound),
		errors.Is(err, models.ErrPurchaseNotFound),
		errors.Is(err, models.ErrListingNotFound),
		errors.Is(err, models.ErrWithdrawalNotFound),
		errors.Is(err, models.ErrQuestionNotFound):
		return New("NOT_FOUND", err.Error(), http.StatusNotFound)

	case errors.Is(err, models.ErrInvalidID),
		errors.Is(err, models.ErrInvalidAnswerFormat),
		errors.Is(err, models.ErrUnknownQuestionType),
		errors.Is(err, models.ErrUnknownJobKind),
		errors.Is(err, models.ErrInvalidOverlayType):
		return New("BAD_REQUEST", err.Error(), http.StatusBadRequest)

	case errors.Is(err, models.ErrUnauthorized),
		errors.Is(err, models.ErrInvalidCredentials),
		errors.Is(err, models.ErrInvalidToken),
		errors.Is(err, models.ErrTokenExpired):
		return New("UNAUTHORIZED", err.Error(), http.StatusUnauthorized)

	case errors.Is(err, models.ErrForbidden),
		errors.Is(err, models.ErrAccessDenied),
		errors.Is(err, models.ErrShareExpired),
		errors.Is(err, models.ErrShareRevoked),
		errors.Is(err, models.ErrOneTimeViewConsumed),
		errors.Is(err, models.ErrFeatureNotEntitled),
		errors.Is(err, models.ErrQuotaExceeded),
		errors.Is(err, models.ErrListingUnpublished):
		return New("FORBIDDEN", err.Error(), http.StatusForbidden)

	case errors.Is(err, models.ErrInsufficientBalance),
		errors.Is(err, models.ErrInsufficientEarnings),
		errors.Is(err, models.ErrPurchaseRequired):
		return ErrInsufficientFunds

	case errors.Is(err, models.ErrSlugTaken),
		errors.Is(err, models.ErrDuplicateIdempotency),
		errors.Is(err, models.ErrJobAlreadyQueued),
		errors.Is(err, models.ErrReservationConsumed),
		errors.Is(err, models.ErrWithdrawalNotPending):
		return New("CONFLICT", err.Error(), http.StatusConflict)

	case errors.Is(err, models.ErrProviderUnavailable),
		errors.Is(err, models.ErrProviderTimeout),
		errors.Is(err, models.ErrProviderPolicy),
		errors.Is(err, models.ErrSchemaValidation),
		errors.Is(err, models.ErrRetriesExhausted):
		return New("PROVIDER_ERROR", err.Error(), http.StatusBadGateway)

	case errors.Is(err, models.ErrAccountSuspended),
		errors.Is(err, models.ErrJobNotCancellable),
		errors.Is(err, models.ErrJobNotRunning),
		errors.Is(err, models.ErrInvalidRule):
		return New("CONFLICT", err.Error(), http.StatusConflict)

	case errors.Is(err, models.ErrCASRetriesExhausted):
		return New("RETRY_LATER", err.Error(), http.StatusServiceUnavailable)

	default:
		return New("INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
	}
}
