package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/aidocs/platform/internal/config"
)

// OpenAIClient adapts the go-openai SDK to the facade's Client contract. It
// is also a StreamingClient, so it backs chat's token-by-token delivery.
type OpenAIClient struct {
	name   string
	client *openai.Client
}

// NewOpenAIClient builds a client against cfg.BaseURL (an OpenAI-compatible
// gateway) or the default OpenAI endpoint when BaseURL is empty. name is
// the identifier the facade registers this client under (its Name()).
func NewOpenAIClient(name string, cfg config.ProviderConfig) *OpenAIClient {
	oaiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaiCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{name: name, client: openai.NewClientWithConfig(oaiCfg)}
}

func (c *OpenAIClient) Name() string { return c.name }

func (c *OpenAIClient) Call(ctx context.Context, model, input string) (Output, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: input},
		},
	})
	if err != nil {
		return Output{}, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return Output{}, fmt.Errorf("provider returned no choices")
	}
	return Output{Text: resp.Choices[0].Message.Content}, nil
}

func (c *OpenAIClient) Stream(ctx context.Context, model, input string, sink StreamSink) (Output, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: input},
		},
	})
	if err != nil {
		return Output{}, classifyOpenAIError(err)
	}
	defer stream.Close()

	var full []byte
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Output{}, classifyOpenAIError(err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		token := chunk.Choices[0].Delta.Content
		if token == "" {
			continue
		}
		full = append(full, token...)
		if err := sink.Write(token); err != nil {
			return Output{}, fmt.Errorf("write to stream sink: %w", err)
		}
	}
	return Output{Text: string(full)}, nil
}

// classifyOpenAIError maps the SDK's *openai.APIError onto the facade's
// fatal/retryable split: 4xx content-policy rejections become
// ContentPolicyError so the facade never retries or refunds them as
// transient; everything else (network, 5xx, 429) is returned unwrapped so
// the facade's default classification (retryable) applies.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 && apiErr.HTTPStatusCode != http.StatusTooManyRequests {
			return &ContentPolicyError{Reason: apiErr.Message}
		}
	}
	return err
}
