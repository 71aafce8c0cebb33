// Package httpapi is the gin-based HTTP transport: request logging, panic
// recovery, bearer-token authentication, and the domain's route handlers.
package httpapi

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aidocs/platform/internal/apierror"
	"github.com/aidocs/platform/internal/identity"
	"github.com/aidocs/platform/internal/infrastructure/logger"
)

const (
	RequestIDHeader     = "X-Request-ID"
	ContextKeyRequestID = "request_id"
	ContextKeyUserID    = "user_id"
)

// GetRequestID returns the request ID the logging middleware assigned.
func GetRequestID(c *gin.Context) string {
	v, exists := c.Get(ContextKeyRequestID)
	if !exists {
		return ""
	}
	return v.(string)
}

// GetUserID returns the authenticated caller's user ID, set by RequireAuth.
func GetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get(ContextKeyUserID)
	if !exists {
		return "", false
	}
	return v.(string), true
}

// LoggingMiddleware logs one structured line per completed request,
// tagging every line with a request ID.
type LoggingMiddleware struct {
	logger *logger.Logger
}

// NewLoggingMiddleware constructs a LoggingMiddleware.
func NewLoggingMiddleware(log *logger.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{logger: log}
}

// RequestLogger returns the gin handler.
func (m *LoggingMiddleware) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, requestID)
		c.Header(RequestIDHeader, requestID)

		userID, _ := GetUserID(c)
		if userID == "" {
			userID = "anonymous"
		}

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		logArgs := []any{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", duration.Milliseconds(),
			"user_id", userID,
		}
		switch {
		case status >= 500:
			m.logger.Error("request completed", logArgs...)
		case status >= 400:
			m.logger.Warn("request completed", logArgs...)
		default:
			m.logger.Info("request completed", logArgs...)
		}
	}
}

// RecoveryMiddleware converts a panic into a 500 APIError response instead
// of tearing down the process.
type RecoveryMiddleware struct {
	logger *logger.Logger
}

// NewRecoveryMiddleware constructs a RecoveryMiddleware.
func NewRecoveryMiddleware(log *logger.Logger) *RecoveryMiddleware {
	return &RecoveryMiddleware{logger: log}
}

// Recovery returns the gin handler.
func (m *RecoveryMiddleware) Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				requestID := GetRequestID(c)
				m.logger.Error("panic recovered",
					"request_id", requestID,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"error", r,
					"stack", string(debug.Stack()),
				)
				apiErr := apierror.New("INTERNAL_ERROR", fmt.Sprintf("internal server error (request_id: %s)", requestID), http.StatusInternalServerError)
				c.AbortWithStatusJSON(apiErr.HTTPStatus, apiErr)
			}
		}()
		c.Next()
	}
}

// BodySizeMiddleware caps request body size, so a malformed or abusive
// upload cannot exhaust memory before handler validation runs.
type BodySizeMiddleware struct {
	maxBodySize int64
}

// NewBodySizeMiddleware constructs a BodySizeMiddleware.
func NewBodySizeMiddleware(maxBodySize int64) *BodySizeMiddleware {
	return &BodySizeMiddleware{maxBodySize: maxBodySize}
}

// LimitBodySize returns the gin handler.
func (m *BodySizeMiddleware) LimitBodySize() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, m.maxBodySize)
		c.Next()
	}
}

// AuthMiddleware authenticates bearer tokens via the identity facade and
// attaches the resolved user ID to the gin context.
type AuthMiddleware struct {
	verifier *identity.Verifier
}

// NewAuthMiddleware constructs an AuthMiddleware.
func NewAuthMiddleware(v *identity.Verifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: v}
}

// RequireAuth rejects requests without a valid bearer token.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			respondError(c, apierror.ErrUnauthorized)
			c.Abort()
			return
		}
		userID, err := m.verifier.Verify(c.Request.Context(), token)
		if err != nil {
			respondError(c, apierror.TranslateError(err))
			c.Abort()
			return
		}
		c.Set(ContextKeyUserID, userID)
		c.Next()
	}
}

// OptionalAuth attaches a user ID if a valid bearer token is present, but
// never rejects the request, for endpoints that serve both authenticated
// and anonymous callers (e.g. a marketplace-free artifact view).
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if ok && token != "" {
			if userID, err := m.verifier.Verify(c.Request.Context(), token); err == nil {
				c.Set(ContextKeyUserID, userID)
			}
		}
		c.Next()
	}
}

// respondError writes an apierror.APIError as the response body.
func respondError(c *gin.Context, apiErr *apierror.APIError) {
	c.JSON(apiErr.HTTPStatus, apiErr)
}
