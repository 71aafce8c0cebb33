package executors

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aidocs/platform/internal/application/artifact"
	"github.com/aidocs/platform/internal/application/provider"
	"github.com/aidocs/platform/internal/infrastructure/logger"
	pkgmodels "github.com/aidocs/platform/pkg/models"
)

var testGenerationSchema = json.RawMessage(`{"required":[".questions"]}`)

type generatedQuestion struct {
	Prompt         string   `json:"prompt"`
	Options        []string `json:"options"`
	CorrectAnswers []string `json:"correct_answers"`
}

type generatedTestResponse struct {
	Questions []generatedQuestion `json:"questions"`
}

// TestExecutor generates a multiple-choice question set from source
// material via the provider facade, the one test-kind pipeline spec.md §6
// names.
type TestExecutor struct {
	artifacts *artifact.Service
	facade    *provider.Facade
	log       *logger.Logger
}

// NewTestExecutor constructs a TestExecutor.
func NewTestExecutor(artifacts *artifact.Service, facade *provider.Facade, log *logger.Logger) *TestExecutor {
	return &TestExecutor{artifacts: artifacts, facade: facade, log: log}
}

func (e *TestExecutor) Execute(ctx context.Context, job *pkgmodels.Job, checkpoint func(ctx context.Context, progress float64, message string) error) (map[string]any, error) {
	if inputOp(job) != opTestGenerate {
		return nil, errUnknownOp(job.Kind, inputOp(job))
	}

	sourceText := inputString(job.Input, "source_text")
	questionCount := 5
	if n, ok := job.Input["question_count"].(float64); ok && n > 0 {
		questionCount = int(n)
	} else if n, ok := job.Input["question_count"].(int); ok && n > 0 {
		questionCount = n
	}

	input := fmt.Sprintf(
		"Generate %d multiple-choice questions from this source material:\n%s\n\n"+
			"Respond as JSON: {\"questions\":[{\"prompt\":\"...\",\"options\":[\"...\"],\"correct_answers\":[\"...\"]}]}",
		questionCount, sourceText)
	out, err := e.facade.Call(ctx, "default", provider.TaskContentRewrite, input, provider.Options{JSONSchema: testGenerationSchema})
	if err != nil {
		return nil, classifyProviderErr(err)
	}
	if err := checkpoint(ctx, 0.6, "generated question set"); err != nil {
		return nil, err
	}

	var resp generatedTestResponse
	if err := json.Unmarshal(out.JSON, &resp); err != nil {
		return nil, fmt.Errorf("decode generated questions: %w", err)
	}

	test, err := e.artifacts.GetTest(ctx, job.ArtifactID)
	if err != nil {
		return nil, err
	}
	test.Questions = make([]pkgmodels.Question, len(resp.Questions))
	for i, q := range resp.Questions {
		test.Questions[i] = pkgmodels.Question{
			ID:             fmt.Sprintf("q-%d", i+1),
			Index:          i,
			Type:           pkgmodels.QuestionMCQ,
			Prompt:         q.Prompt,
			MaxPoints:      1,
			Options:        q.Options,
			CorrectAnswers: q.CorrectAnswers,
		}
	}
	for i := range test.Questions {
		if err := test.Questions[i].Validate(); err != nil {
			return nil, fmt.Errorf("generated question %d failed validation: %w", i, err)
		}
	}

	if err := e.artifacts.UpdateTestContent(ctx, test); err != nil {
		return nil, err
	}
	return map[string]any{"question_count": len(test.Questions)}, nil
}
