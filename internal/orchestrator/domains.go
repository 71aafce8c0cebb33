package orchestrator

import (
	"context"

	"github.com/aidocs/platform/internal/application/ledger"
	pkgmodels "github.com/aidocs/platform/pkg/models"
)

// op is the discriminator an executor reads from Job.Input["op"] to pick
// its pipeline, since pkgmodels.JobKind only distinguishes worker loops
// (slide_deck, book, chapter, test), not the finer-grained billable action
// within one of those loops.
const opKey = "op"

const (
	opSlideGenerate  = "slide.generate"
	opSlideFormat    = "slide.format"
	opSlideEdit      = "slide.edit"
	opAudioNarration = "audio.narration"
	opChapterEdit    = "doc.edit"
	opChapterFormat  = "doc.format"
	opBilingual      = "doc.bilingual"
	opTranslate      = "doc.translate"
	opImageGenerate  = "image.generate"
	opTestGenerate   = "test.generate"
)

// SlideGenerate queues initial AI slide-deck generation for a blank deck,
// priced per spec.md §4.1's <=10-slide chunk.
func (o *Orchestrator) SlideGenerate(ctx context.Context, accountID, artifactID string, slideIndices []int, prompt string) (*pkgmodels.Job, error) {
	chunks := pkgmodels.ChunkSlideIndices(slideIndices, 10)
	input := map[string]any{
		opKey:           opSlideGenerate,
		"prompt":        prompt,
		"slide_indices": slideIndices,
		"chunk_count":   len(chunks),
	}
	return o.enqueue(ctx, accountID, artifactID, pkgmodels.JobKindSlideDeck, ledger.ActionSlideChunk, len(chunks), input)
}

// SlideFormat queues an AI reformat pass over an existing deck's layout.
func (o *Orchestrator) SlideFormat(ctx context.Context, accountID, artifactID string, instructions string) (*pkgmodels.Job, error) {
	input := map[string]any{opKey: opSlideFormat, "instructions": instructions}
	return o.enqueue(ctx, accountID, artifactID, pkgmodels.JobKindSlideDeck, ledger.ActionSlideFormat, 1, input)
}

// SlideEdit queues a targeted AI content edit of one or more slides.
func (o *Orchestrator) SlideEdit(ctx context.Context, accountID, artifactID string, slideIndices []int, instructions string) (*pkgmodels.Job, error) {
	input := map[string]any{opKey: opSlideEdit, "slide_indices": slideIndices, "instructions": instructions}
	return o.enqueue(ctx, accountID, artifactID, pkgmodels.JobKindSlideDeck, ledger.ActionSlideEdit, 1, input)
}

// AudioNarration queues narration synthesis for a set of slides, priced per
// slide per spec.md §4.1.
func (o *Orchestrator) AudioNarration(ctx context.Context, accountID, artifactID string, slideIndices []int, voice string) (*pkgmodels.Job, error) {
	units := len(slideIndices)
	if units == 0 {
		units = 1
	}
	input := map[string]any{opKey: opAudioNarration, "slide_indices": slideIndices, "voice": voice}
	return o.enqueue(ctx, accountID, artifactID, pkgmodels.JobKindSlideDeck, ledger.ActionAudioNarration, units, input)
}

// ChapterEdit queues an AI content edit of a single book chapter.
func (o *Orchestrator) ChapterEdit(ctx context.Context, accountID, artifactID, chapterID, instructions string) (*pkgmodels.Job, error) {
	input := map[string]any{opKey: opChapterEdit, "chapter_id": chapterID, "instructions": instructions}
	return o.enqueue(ctx, accountID, artifactID, pkgmodels.JobKindChapter, ledger.ActionDocEdit, 1, input)
}

// ChapterFormat queues an AI reflow/reformat pass over a chapter.
func (o *Orchestrator) ChapterFormat(ctx context.Context, accountID, artifactID, chapterID string) (*pkgmodels.Job, error) {
	input := map[string]any{opKey: opChapterFormat, "chapter_id": chapterID}
	return o.enqueue(ctx, accountID, artifactID, pkgmodels.JobKindChapter, ledger.ActionDocFormat, 1, input)
}

// ChapterTranslate queues AI translation of a chapter into a target language.
func (o *Orchestrator) ChapterTranslate(ctx context.Context, accountID, artifactID, chapterID, targetLanguage string) (*pkgmodels.Job, error) {
	input := map[string]any{opKey: opTranslate, "chapter_id": chapterID, "target_language": targetLanguage}
	return o.enqueue(ctx, accountID, artifactID, pkgmodels.JobKindChapter, ledger.ActionDocTranslate, 1, input)
}

// ChapterBilingual queues generation of a side-by-side bilingual rendering
// of a chapter alongside its translation.
func (o *Orchestrator) ChapterBilingual(ctx context.Context, accountID, artifactID, chapterID, targetLanguage string) (*pkgmodels.Job, error) {
	input := map[string]any{opKey: opBilingual, "chapter_id": chapterID, "target_language": targetLanguage}
	return o.enqueue(ctx, accountID, artifactID, pkgmodels.JobKindChapter, ledger.ActionDocBilingual, 1, input)
}

// ImageGenerate queues generation of cover art or an inline illustration for
// a book.
func (o *Orchestrator) ImageGenerate(ctx context.Context, accountID, artifactID, prompt string) (*pkgmodels.Job, error) {
	input := map[string]any{opKey: opImageGenerate, "prompt": prompt}
	return o.enqueue(ctx, accountID, artifactID, pkgmodels.JobKindBook, ledger.ActionImageGenerate, 1, input)
}

// TestGenerate queues AI generation of a question set from source material.
// spec.md's pricing map has no action dedicated to test generation
// (only test_evaluate, for grading); this reuses that same action and
// price for generation, recorded as an open-question decision in
// DESIGN.md rather than inventing an unpriced action.
func (o *Orchestrator) TestGenerate(ctx context.Context, accountID, artifactID, sourceText string, questionCount int) (*pkgmodels.Job, error) {
	units := questionCount
	if units <= 0 {
		units = 1
	}
	input := map[string]any{opKey: opTestGenerate, "source_text": sourceText, "question_count": questionCount}
	return o.enqueue(ctx, accountID, artifactID, pkgmodels.JobKindTest, ledger.ActionTestEvaluate, units, input)
}
