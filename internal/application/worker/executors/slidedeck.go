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

var slideGenerationSchema = json.RawMessage(`{"required":[".slides"]}`)

// generatedSlide is the shape the facade is asked to return for one slide;
// overlay elements and backgrounds are left to a later manual-edit pass,
// matching the teacher's builtin executors which hand the model a single
// flat content field rather than its full tagged-union wire shape.
type generatedSlide struct {
	Index       int    `json:"index"`
	HTMLContent string `json:"html_content"`
}

type generatedSlidesResponse struct {
	Slides []generatedSlide `json:"slides"`
}

// SlideDeckExecutor runs every slide-deck job: initial AI generation
// (chunked per spec.md §4.1's <=10-slide billing unit), format, content
// edit, and narration script synthesis.
type SlideDeckExecutor struct {
	artifacts *artifact.Service
	facade    *provider.Facade
	log       *logger.Logger
}

// NewSlideDeckExecutor constructs a SlideDeckExecutor.
func NewSlideDeckExecutor(artifacts *artifact.Service, facade *provider.Facade, log *logger.Logger) *SlideDeckExecutor {
	return &SlideDeckExecutor{artifacts: artifacts, facade: facade, log: log}
}

// Execute dispatches on the job's "op" field to the right slide-deck
// pipeline.
func (e *SlideDeckExecutor) Execute(ctx context.Context, job *pkgmodels.Job, checkpoint func(ctx context.Context, progress float64, message string) error) (map[string]any, error) {
	switch inputOp(job) {
	case opSlideGenerate:
		return e.generate(ctx, job, checkpoint)
	case opSlideFormat:
		return e.format(ctx, job, checkpoint)
	case opSlideEdit:
		return e.edit(ctx, job, checkpoint)
	case opAudioNarration:
		return e.narrate(ctx, job, checkpoint)
	default:
		return nil, errUnknownOp(job.Kind, inputOp(job))
	}
}

func (e *SlideDeckExecutor) generate(ctx context.Context, job *pkgmodels.Job, checkpoint func(context.Context, float64, string) error) (map[string]any, error) {
	prompt := inputString(job.Input, "prompt")
	indices := inputIntSlice(job.Input, "slide_indices")
	chunks := pkgmodels.ChunkSlideIndices(indices, 10)

	deck, err := e.artifacts.GetSlideDeck(ctx, job.ArtifactID)
	if err != nil {
		return nil, err
	}
	byIndex := make(map[int]pkgmodels.Slide, len(deck.Slides))
	for _, s := range deck.Slides {
		byIndex[s.Index] = s
	}

	for i, chunk := range chunks {
		slides, err := e.generateChunk(ctx, prompt, chunk)
		if err != nil {
			return nil, classifyProviderErr(err)
		}
		for _, s := range slides {
			byIndex[s.Index] = s
		}
		if err := checkpoint(ctx, float64(i+1)/float64(len(chunks)), fmt.Sprintf("generated slides %v", chunk)); err != nil {
			return nil, err
		}
	}

	deck.Slides = flattenSlides(byIndex)
	if err := e.artifacts.ReviseSlideDeck(ctx, job.ArtifactID, deck, pkgmodels.VersionSourceAIRegenerate, "AI slide generation"); err != nil {
		return nil, err
	}
	return map[string]any{"slide_count": len(deck.Slides)}, nil
}

func (e *SlideDeckExecutor) generateChunk(ctx context.Context, prompt string, indices []int) ([]pkgmodels.Slide, error) {
	input := fmt.Sprintf("Generate slide content for indices %v. %s\nRespond as JSON: {\"slides\":[{\"index\":N,\"html_content\":\"...\"}]}", indices, prompt)
	out, err := e.facade.Call(ctx, "default", provider.TaskLayoutDesign, input, provider.Options{JSONSchema: slideGenerationSchema})
	if err != nil {
		return nil, err
	}
	var resp generatedSlidesResponse
	if err := json.Unmarshal(out.JSON, &resp); err != nil {
		return nil, fmt.Errorf("decode generated slides: %w", err)
	}
	slides := make([]pkgmodels.Slide, len(resp.Slides))
	for i, s := range resp.Slides {
		slides[i] = pkgmodels.Slide{Index: s.Index, HTMLContent: s.HTMLContent}
	}
	return slides, nil
}

func (e *SlideDeckExecutor) format(ctx context.Context, job *pkgmodels.Job, checkpoint func(context.Context, float64, string) error) (map[string]any, error) {
	instructions := inputString(job.Input, "instructions")
	deck, err := e.artifacts.GetSlideDeck(ctx, job.ArtifactID)
	if err != nil {
		return nil, err
	}
	for i := range deck.Slides {
		reformatted, err := e.rewriteSlideHTML(ctx, deck.Slides[i].HTMLContent, "Reformat this slide's layout. "+instructions)
		if err != nil {
			return nil, classifyProviderErr(err)
		}
		deck.Slides[i].HTMLContent = reformatted
		if err := checkpoint(ctx, float64(i+1)/float64(len(deck.Slides)), "formatted slide"); err != nil {
			return nil, err
		}
	}
	if err := e.artifacts.ReviseSlideDeck(ctx, job.ArtifactID, deck, pkgmodels.VersionSourceAIRegenerate, "AI slide format"); err != nil {
		return nil, err
	}
	return map[string]any{"slide_count": len(deck.Slides)}, nil
}

func (e *SlideDeckExecutor) edit(ctx context.Context, job *pkgmodels.Job, checkpoint func(context.Context, float64, string) error) (map[string]any, error) {
	instructions := inputString(job.Input, "instructions")
	indices := inputIntSlice(job.Input, "slide_indices")
	deck, err := e.artifacts.GetSlideDeck(ctx, job.ArtifactID)
	if err != nil {
		return nil, err
	}
	target := make(map[int]bool, len(indices))
	for _, i := range indices {
		target[i] = true
	}
	edited := 0
	for i := range deck.Slides {
		if !target[deck.Slides[i].Index] {
			continue
		}
		rewritten, err := e.rewriteSlideHTML(ctx, deck.Slides[i].HTMLContent, instructions)
		if err != nil {
			return nil, classifyProviderErr(err)
		}
		deck.Slides[i].HTMLContent = rewritten
		edited++
		if err := checkpoint(ctx, float64(edited)/float64(len(indices)), "edited slide"); err != nil {
			return nil, err
		}
	}
	if err := e.artifacts.ReviseSlideDeck(ctx, job.ArtifactID, deck, pkgmodels.VersionSourceManualEdit, "AI slide edit"); err != nil {
		return nil, err
	}
	return map[string]any{"edited_count": edited}, nil
}

func (e *SlideDeckExecutor) rewriteSlideHTML(ctx context.Context, htmlContent, instructions string) (string, error) {
	input := fmt.Sprintf("Current slide HTML:\n%s\n\nInstructions: %s\n\nRespond with only the rewritten HTML content.", htmlContent, instructions)
	out, err := e.facade.Call(ctx, "default", provider.TaskContentRewrite, input, provider.Options{})
	if err != nil {
		return "", err
	}
	return out.Text, nil
}

// narrate synthesizes a narration script per requested slide. The provider
// facade only exposes text generation (spec.md §1 treats AI provider SDKs
// as black boxes); the generated script is stored as the narration's
// subtitle track, with audio synthesis left to a downstream TTS pipeline
// that consumes it.
func (e *SlideDeckExecutor) narrate(ctx context.Context, job *pkgmodels.Job, checkpoint func(context.Context, float64, string) error) (map[string]any, error) {
	indices := inputIntSlice(job.Input, "slide_indices")
	deck, err := e.artifacts.GetSlideDeck(ctx, job.ArtifactID)
	if err != nil {
		return nil, err
	}
	target := make(map[int]bool, len(indices))
	for _, i := range indices {
		target[i] = true
	}
	narrated := 0
	for i := range deck.Slides {
		if !target[deck.Slides[i].Index] {
			continue
		}
		input := fmt.Sprintf("Write a spoken narration script for this slide, suitable as a subtitle track:\n%s", deck.Slides[i].HTMLContent)
		out, err := e.facade.Call(ctx, "default", provider.TaskContentRewrite, input, provider.Options{})
		if err != nil {
			return nil, classifyProviderErr(err)
		}
		deck.Slides[i].Narration = &pkgmodels.Narration{SubtitleURL: out.Text}
		narrated++
		if err := checkpoint(ctx, float64(narrated)/float64(len(indices)), "narrated slide"); err != nil {
			return nil, err
		}
	}
	if err := e.artifacts.ReviseSlideDeck(ctx, job.ArtifactID, deck, pkgmodels.VersionSourceAIRegenerate, "AI narration"); err != nil {
		return nil, err
	}
	return map[string]any{"narrated_count": narrated}, nil
}

func flattenSlides(byIndex map[int]pkgmodels.Slide) []pkgmodels.Slide {
	out := make([]pkgmodels.Slide, 0, len(byIndex))
	for _, s := range byIndex {
		out = append(out, s)
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Index < out[i].Index {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}
