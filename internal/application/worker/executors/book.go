package executors

import (
	"context"

	"github.com/aidocs/platform/internal/application/artifact"
	"github.com/aidocs/platform/internal/application/provider"
	"github.com/aidocs/platform/internal/infrastructure/logger"
	pkgmodels "github.com/aidocs/platform/pkg/models"
)

// BookExecutor runs book-kind jobs: currently cover-art generation, via the
// image-capable provider task.
type BookExecutor struct {
	artifacts *artifact.Service
	facade    *provider.Facade
	log       *logger.Logger
}

// NewBookExecutor constructs a BookExecutor.
func NewBookExecutor(artifacts *artifact.Service, facade *provider.Facade, log *logger.Logger) *BookExecutor {
	return &BookExecutor{artifacts: artifacts, facade: facade, log: log}
}

func (e *BookExecutor) Execute(ctx context.Context, job *pkgmodels.Job, checkpoint func(ctx context.Context, progress float64, message string) error) (map[string]any, error) {
	if inputOp(job) != opImageGenerate {
		return nil, errUnknownOp(job.Kind, inputOp(job))
	}

	book, err := e.artifacts.GetBook(ctx, job.ArtifactID)
	if err != nil {
		return nil, err
	}
	if err := checkpoint(ctx, 0.2, "loaded book"); err != nil {
		return nil, err
	}

	prompt := inputString(job.Input, "prompt")
	out, err := e.facade.Call(ctx, "default", provider.TaskImageGenerate, prompt, provider.Options{})
	if err != nil {
		return nil, classifyProviderErr(err)
	}

	book.CoverImageURL = out.Text
	if err := checkpoint(ctx, 0.9, "generated cover art"); err != nil {
		return nil, err
	}
	if err := e.artifacts.UpdateBookContent(ctx, book); err != nil {
		return nil, err
	}
	return map[string]any{"cover_image_url": book.CoverImageURL}, nil
}
