// Package provider is the uniform facade over external AI providers, per
// spec.md §4.6: model selection, retry classification, JSON-schema
// enforcement, per-call timeout, and a streaming sink for chat.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/itchyny/gojq"

	"github.com/aidocs/platform/internal/config"
	"github.com/aidocs/platform/internal/infrastructure/logger"
	"github.com/aidocs/platform/internal/observability"
	pkgmodels "github.com/aidocs/platform/pkg/models"
)

// Task names the kind of generation work, used to pick a default model.
type Task string

const (
	TaskContentRewrite Task = "content_rewrite" // strong general model
	TaskLayoutDesign   Task = "layout_design"   // strong reasoning model
	TaskImageGenerate  Task = "image_generate"  // multimodal model
	TaskSimpleChat     Task = "simple_chat"     // cheap fast model
)

// Options configures one call to the facade.
type Options struct {
	Model      string          // overrides the task's default model if set
	Timeout    time.Duration   // overrides the facade's default call timeout
	JSONSchema json.RawMessage // when set, the output is validated against this schema
}

// Output is a provider call's result.
type Output struct {
	Text     string
	JSON     json.RawMessage
	Model    string
	Provider string
}

// Client is the minimal contract an AI provider SDK must satisfy to plug
// into the facade. Concrete providers (chat, image, document) implement
// this against their own SDK; the facade never imports a provider SDK
// directly, keeping them black boxes per spec.md §1.
type Client interface {
	Name() string
	Call(ctx context.Context, model, input string) (Output, error)
}

// StreamSink receives incremental chat tokens for a long-lived connection.
type StreamSink interface {
	Write(token string) error
}

// StreamingClient is the sub-interface a provider implements to support
// chat streaming.
type StreamingClient interface {
	Client
	Stream(ctx context.Context, model, input string, sink StreamSink) (Output, error)
}

// Facade is the uniform provider entrypoint.
type Facade struct {
	clients map[string]Client
	cfg     config.ProviderConfig
	log     *logger.Logger
	metrics *observability.Metrics
}

// New constructs a Facade over a set of registered provider clients, keyed
// by their Name().
func New(clients []Client, cfg config.ProviderConfig, log *logger.Logger) *Facade {
	byName := make(map[string]Client, len(clients))
	for _, c := range clients {
		byName[c.Name()] = c
	}
	return &Facade{clients: byName, cfg: cfg, log: log}
}

// WithMetrics attaches a Prometheus metrics sink, returning the Facade for
// chaining at construction time.
func (f *Facade) WithMetrics(m *observability.Metrics) *Facade {
	f.metrics = m
	return f
}

// ModelFor returns the documented default model for a task.
func (f *Facade) ModelFor(task Task) string {
	switch task {
	case TaskContentRewrite:
		return f.cfg.StrongModel
	case TaskLayoutDesign:
		return f.cfg.StrongModel
	case TaskImageGenerate:
		return f.cfg.ImageModel
	default:
		return f.cfg.DefaultModel
	}
}

// Call invokes a provider, enforcing timeout, JSON-schema validation with
// one repair retry, and the facade's retry classification.
func (f *Facade) Call(ctx context.Context, providerName string, task Task, input string, opts Options) (out Output, err error) {
	start := time.Now()
	defer func() {
		if f.metrics == nil {
			return
		}
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		f.metrics.RecordProviderCall(providerName, string(task), outcome, time.Since(start).Seconds())
	}()

	client, ok := f.clients[providerName]
	if !ok {
		return Output{}, pkgmodels.ErrNoProviderForModel
	}

	model := opts.Model
	if model == "" {
		model = f.ModelFor(task)
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = f.cfg.CallTimeout
	}

	out, err = f.callWithTimeout(ctx, client, model, input, timeout)
	if err != nil {
		err = f.classify(err)
		return Output{}, err
	}

	if len(opts.JSONSchema) > 0 {
		if schemaErr := validateJSONSchema(out.Text, opts.JSONSchema); schemaErr != nil {
			if f.metrics != nil {
				f.metrics.RecordProviderRetry(providerName)
			}
			repaired, repairErr := f.callWithTimeout(ctx, client, model, repairPrompt(input, schemaErr), timeout)
			if repairErr != nil {
				err = fmt.Errorf("%w: %v", pkgmodels.ErrSchemaValidation, repairErr)
				return Output{}, err
			}
			if schemaErr := validateJSONSchema(repaired.Text, opts.JSONSchema); schemaErr != nil {
				err = fmt.Errorf("%w: %v", pkgmodels.ErrSchemaValidation, schemaErr)
				return Output{}, err
			}
			out = repaired
		}
		out.JSON = json.RawMessage(out.Text)
	}

	out.Provider = providerName
	out.Model = model
	return out, nil
}

// CallStreaming invokes a streaming-capable provider, appending tokens to
// sink as they arrive. The caller commits points exactly once, after this
// returns successfully.
func (f *Facade) CallStreaming(ctx context.Context, providerName, model, input string, sink StreamSink) (Output, error) {
	client, ok := f.clients[providerName]
	if !ok {
		return Output{}, pkgmodels.ErrNoProviderForModel
	}
	streaming, ok := client.(StreamingClient)
	if !ok {
		return Output{}, fmt.Errorf("provider %s does not support streaming", providerName)
	}
	out, err := streaming.Stream(ctx, model, input, sink)
	if err != nil {
		return Output{}, f.classify(err)
	}
	out.Provider = providerName
	out.Model = model
	return out, nil
}

func (f *Facade) callWithTimeout(ctx context.Context, client Client, model, input string, timeout time.Duration) (Output, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	out, err := client.Call(callCtx, model, input)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return Output{}, pkgmodels.ErrProviderTimeout
	}
	return out, err
}

// classify maps a raw provider error onto the facade's retry taxonomy:
// network/5xx/rate-limit/malformed-JSON are retryable, 4xx content-policy
// is fatal.
func (f *Facade) classify(err error) error {
	var policyErr *ContentPolicyError
	if errors.As(err, &policyErr) {
		return fmt.Errorf("%w: %v", pkgmodels.ErrProviderPolicy, err)
	}
	if errors.Is(err, pkgmodels.ErrProviderTimeout) {
		return err
	}
	return fmt.Errorf("%w: %v", pkgmodels.ErrProviderUnavailable, err)
}

// ContentPolicyError marks a 4xx content-policy rejection, which is fatal
// and must not be retried or refunded as a transient failure.
type ContentPolicyError struct {
	Reason string
}

func (e *ContentPolicyError) Error() string { return "content policy violation: " + e.Reason }

func repairPrompt(original string, validationErr error) string {
	return original + "\n\nYour previous response failed schema validation: " + validationErr.Error() + "\nRespond again with strictly valid JSON matching the schema."
}

// validateJSONSchema checks that text parses as JSON and, where the schema
// declares jq-style required field paths under "required", that each
// resolves to a non-null value. This is a lightweight structural check,
// not a full JSON Schema validator; gojq gives it real path queries rather
// than hand-rolled field walking.
func validateJSONSchema(text string, schema json.RawMessage) error {
	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return fmt.Errorf("output is not valid JSON: %w", err)
	}

	var schemaDoc struct {
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(schema, &schemaDoc); err != nil {
		return nil // schema carries no jq-checkable required paths
	}
	for _, path := range schemaDoc.Required {
		query, err := gojq.Parse(path)
		if err != nil {
			return fmt.Errorf("invalid schema path %q: %w", path, err)
		}
		iter := query.Run(doc)
		v, ok := iter.Next()
		if !ok || v == nil {
			return fmt.Errorf("required path %q missing from output", path)
		}
		if qerr, isErr := v.(error); isErr {
			return fmt.Errorf("required path %q: %w", path, qerr)
		}
	}
	return nil
}
