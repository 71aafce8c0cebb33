package executors

import (
	"context"
	"fmt"

	"github.com/aidocs/platform/internal/application/artifact"
	"github.com/aidocs/platform/internal/application/provider"
	"github.com/aidocs/platform/internal/infrastructure/logger"
	pkgmodels "github.com/aidocs/platform/pkg/models"
)

// ChapterExecutor runs every book-chapter job: AI edit, format, translate,
// and bilingual-rendering generation. All four share the same read-rewrite-
// validate-persist shape, differing only in the instruction given to the
// provider.
type ChapterExecutor struct {
	artifacts *artifact.Service
	facade    *provider.Facade
	log       *logger.Logger
}

// NewChapterExecutor constructs a ChapterExecutor.
func NewChapterExecutor(artifacts *artifact.Service, facade *provider.Facade, log *logger.Logger) *ChapterExecutor {
	return &ChapterExecutor{artifacts: artifacts, facade: facade, log: log}
}

func (e *ChapterExecutor) Execute(ctx context.Context, job *pkgmodels.Job, checkpoint func(ctx context.Context, progress float64, message string) error) (map[string]any, error) {
	chapterID := inputString(job.Input, "chapter_id")
	chapter, err := e.artifacts.GetChapter(ctx, job.ArtifactID, chapterID)
	if err != nil {
		return nil, err
	}
	if chapter.ContentMode != pkgmodels.ChapterModeInline {
		return nil, fmt.Errorf("%w: chapter AI pipelines only support inline content", pkgmodels.ErrUnknownJobKind)
	}

	if err := checkpoint(ctx, 0.1, "loaded chapter"); err != nil {
		return nil, err
	}

	var instruction string
	switch inputOp(job) {
	case opChapterEdit:
		instruction = "Apply the following edit instructions to this chapter, keeping its HTML structure intact: " + inputString(job.Input, "instructions")
	case opChapterFormat:
		instruction = "Reflow and clean up this chapter's HTML formatting without changing its meaning."
	case opTranslate:
		instruction = "Translate this chapter into " + inputString(job.Input, "target_language") + ", preserving its HTML structure."
	case opBilingual:
		lang := inputString(job.Input, "target_language")
		instruction = fmt.Sprintf("Produce a side-by-side bilingual rendering of this chapter in the original language and %s, as HTML with each paragraph followed immediately by its translation.", lang)
	default:
		return nil, errUnknownOp(job.Kind, inputOp(job))
	}

	input := fmt.Sprintf("%s\n\nChapter HTML:\n%s", instruction, chapter.InlineHTML)
	out, err := e.facade.Call(ctx, "default", provider.TaskContentRewrite, input, provider.Options{})
	if err != nil {
		return nil, classifyProviderErr(err)
	}

	chapter.InlineHTML = out.Text
	if err := checkpoint(ctx, 0.8, "generated revised chapter content"); err != nil {
		return nil, err
	}
	if err := e.artifacts.UpdateChapter(ctx, chapter); err != nil {
		return nil, err
	}
	return map[string]any{"chapter_id": chapter.ID}, nil
}
