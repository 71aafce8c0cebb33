package provider

import (
	"errors"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

func TestClassifyOpenAIErrorContentPolicyIsFatal(t *testing.T) {
	err := classifyOpenAIError(&openai.APIError{HTTPStatusCode: http.StatusBadRequest, Message: "disallowed content"})

	var policyErr *ContentPolicyError
	assert.True(t, errors.As(err, &policyErr))
	assert.Equal(t, "disallowed content", policyErr.Reason)
}

func TestClassifyOpenAIErrorRateLimitIsRetryable(t *testing.T) {
	err := classifyOpenAIError(&openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "rate limited"})

	var policyErr *ContentPolicyError
	assert.False(t, errors.As(err, &policyErr))
}

func TestClassifyOpenAIErrorServerErrorIsRetryable(t *testing.T) {
	err := classifyOpenAIError(&openai.APIError{HTTPStatusCode: http.StatusInternalServerError, Message: "boom"})

	var policyErr *ContentPolicyError
	assert.False(t, errors.As(err, &policyErr))
}

func TestClassifyOpenAIErrorNonAPIErrorPassesThrough(t *testing.T) {
	original := errors.New("network unreachable")
	assert.Equal(t, original, classifyOpenAIError(original))
}
