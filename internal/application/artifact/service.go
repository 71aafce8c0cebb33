// Package artifact implements spec.md §4.7: the artifact and version-
// snapshot lifecycle shared by slide decks, books and tests, plus the
// chapter-tree operations specific to books.
package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aidocs/platform/internal/infrastructure/logger"
	pkgmodels "github.com/aidocs/platform/pkg/models"
)

// repository is the narrow persistence contract this service depends on,
// satisfied by storage.ArtifactRepository.
type repository interface {
	CreateArtifact(ctx context.Context, a *pkgmodels.Artifact) error
	GetArtifactByID(ctx context.Context, id string) (*pkgmodels.Artifact, error)
	GetArtifactBySlug(ctx context.Context, slug string) (*pkgmodels.Artifact, error)
	UpdateArtifact(ctx context.Context, a *pkgmodels.Artifact) error
	ListArtifactsByOwner(ctx context.Context, ownerID string, kind pkgmodels.ArtifactKind) ([]*pkgmodels.Artifact, error)
	ListMarketplaceArtifacts(ctx context.Context, kind pkgmodels.ArtifactKind) ([]*pkgmodels.Artifact, error)

	CreateVersionSnapshot(ctx context.Context, v *pkgmodels.VersionSnapshot) error
	ListVersionSnapshots(ctx context.Context, artifactID string) ([]*pkgmodels.VersionSnapshot, error)
	GetVersionSnapshot(ctx context.Context, artifactID string, version int) (*pkgmodels.VersionSnapshot, error)

	UpsertSlideDeck(ctx context.Context, d *pkgmodels.SlideDeck) error
	GetSlideDeck(ctx context.Context, artifactID string) (*pkgmodels.SlideDeck, error)

	UpsertBook(ctx context.Context, b *pkgmodels.Book) error
	GetBook(ctx context.Context, artifactID string) (*pkgmodels.Book, error)
	CreateChapter(ctx context.Context, c *pkgmodels.Chapter) error
	UpdateChapter(ctx context.Context, c *pkgmodels.Chapter) error
	ListChapters(ctx context.Context, bookID string) ([]*pkgmodels.Chapter, error)

	UpsertTest(ctx context.Context, t *pkgmodels.Test) error
	GetTest(ctx context.Context, artifactID string) (*pkgmodels.Test, error)
}

// Service implements artifact creation, content mutation, and restore-from-
// version-snapshot for every artifact kind.
type Service struct {
	repo repository
	log  *logger.Logger
}

// New constructs a Service.
func New(repo repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// CreateSlideDeck creates a new slide-deck artifact and its initial
// content, and records version 1 as the initial snapshot.
func (s *Service) CreateSlideDeck(ctx context.Context, ownerUserID, title string, deck *pkgmodels.SlideDeck) (*pkgmodels.Artifact, error) {
	a := &pkgmodels.Artifact{
		OwnerUserID: ownerUserID,
		Kind:        pkgmodels.ArtifactKindSlideDeck,
		Title:       title,
		Visibility:  pkgmodels.VisibilityPrivate,
		Status:      pkgmodels.ArtifactStatusDraft,
		Version:     1,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.CreateArtifact(ctx, a); err != nil {
		return nil, err
	}
	deck.ArtifactID = a.ID
	if err := deck.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.UpsertSlideDeck(ctx, deck); err != nil {
		return nil, err
	}
	if err := s.snapshot(ctx, a, deck, pkgmodels.VersionSourceInitial, "initial generation"); err != nil {
		return nil, err
	}
	return a, nil
}

// CreateBook creates a new book artifact with an empty chapter tree.
func (s *Service) CreateBook(ctx context.Context, ownerUserID, title string, cfg pkgmodels.AccessConfig) (*pkgmodels.Artifact, error) {
	a := &pkgmodels.Artifact{
		OwnerUserID: ownerUserID,
		Kind:        pkgmodels.ArtifactKindBook,
		Title:       title,
		Visibility:  pkgmodels.VisibilityPrivate,
		Status:      pkgmodels.ArtifactStatusDraft,
		Version:     1,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.CreateArtifact(ctx, a); err != nil {
		return nil, err
	}
	book := &pkgmodels.Book{ArtifactID: a.ID, AccessConfig: cfg}
	if err := s.repo.UpsertBook(ctx, book); err != nil {
		return nil, err
	}
	if err := s.snapshot(ctx, a, book, pkgmodels.VersionSourceInitial, "book created"); err != nil {
		return nil, err
	}
	return a, nil
}

// CreateTest creates a new test artifact from a question set.
func (s *Service) CreateTest(ctx context.Context, ownerUserID, title string, test *pkgmodels.Test) (*pkgmodels.Artifact, error) {
	a := &pkgmodels.Artifact{
		OwnerUserID: ownerUserID,
		Kind:        pkgmodels.ArtifactKindTest,
		Title:       title,
		Visibility:  pkgmodels.VisibilityPrivate,
		Status:      pkgmodels.ArtifactStatusDraft,
		Version:     1,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	for i := range test.Questions {
		if err := test.Questions[i].Validate(); err != nil {
			return nil, err
		}
	}
	if err := s.repo.CreateArtifact(ctx, a); err != nil {
		return nil, err
	}
	test.ArtifactID = a.ID
	if err := s.repo.UpsertTest(ctx, test); err != nil {
		return nil, err
	}
	if err := s.snapshot(ctx, a, test, pkgmodels.VersionSourceInitial, "test created"); err != nil {
		return nil, err
	}
	return a, nil
}

// Get fetches an artifact's envelope by ID.
func (s *Service) Get(ctx context.Context, artifactID string) (*pkgmodels.Artifact, error) {
	return s.repo.GetArtifactByID(ctx, artifactID)
}

// AddChapter inserts a chapter into a book's tree, validating nesting
// depth and page numbering before persisting.
func (s *Service) AddChapter(ctx context.Context, c *pkgmodels.Chapter) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := s.repo.CreateChapter(ctx, c); err != nil {
		return err
	}
	return nil
}

// ChapterTree loads a book's full chapter index, for tree rendering or
// reorder validation without recursive queries.
func (s *Service) ChapterTree(ctx context.Context, bookID string) (*pkgmodels.ChapterIndex, error) {
	chapters, err := s.repo.ListChapters(ctx, bookID)
	if err != nil {
		return nil, err
	}
	idx := pkgmodels.NewChapterIndex(chapters)
	if idx.HasCycle() {
		return nil, fmt.Errorf("chapter tree for book %s contains a cycle", bookID)
	}
	return idx, nil
}

// GetChapter fetches a single chapter from a book's tree by ID.
func (s *Service) GetChapter(ctx context.Context, bookID, chapterID string) (*pkgmodels.Chapter, error) {
	idx, err := s.ChapterTree(ctx, bookID)
	if err != nil {
		return nil, err
	}
	c := idx.ByID(chapterID)
	if c == nil {
		return nil, pkgmodels.ErrChapterNotFound
	}
	return c, nil
}

// UpdateChapter persists a chapter's content after an edit or AI
// translation, re-validating its structural invariants first.
func (s *Service) UpdateChapter(ctx context.Context, c *pkgmodels.Chapter) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return s.repo.UpdateChapter(ctx, c)
}

// GetSlideDeck fetches a slide deck's current content by artifact ID.
func (s *Service) GetSlideDeck(ctx context.Context, artifactID string) (*pkgmodels.SlideDeck, error) {
	return s.repo.GetSlideDeck(ctx, artifactID)
}

// GetBook fetches a book's current content by artifact ID.
func (s *Service) GetBook(ctx context.Context, artifactID string) (*pkgmodels.Book, error) {
	return s.repo.GetBook(ctx, artifactID)
}

// GetTest fetches a test's current question set by artifact ID.
func (s *Service) GetTest(ctx context.Context, artifactID string) (*pkgmodels.Test, error) {
	return s.repo.GetTest(ctx, artifactID)
}

// UpdateBookContent persists a book's kind-specific content (cover art,
// access configuration) without bumping the artifact's version, since these
// are supplementary fields rather than the chapter content a restore would
// roll back.
func (s *Service) UpdateBookContent(ctx context.Context, b *pkgmodels.Book) error {
	return s.repo.UpsertBook(ctx, b)
}

// UpdateTestContent persists a test's generated or revised question set and
// records it as a new version snapshot, mirroring ReviseSlideDeck.
func (s *Service) UpdateTestContent(ctx context.Context, t *pkgmodels.Test) error {
	a, err := s.repo.GetArtifactByID(ctx, t.ArtifactID)
	if err != nil {
		return err
	}
	for i := range t.Questions {
		if err := t.Questions[i].Validate(); err != nil {
			return err
		}
	}
	if err := s.repo.UpsertTest(ctx, t); err != nil {
		return err
	}
	a.Version++
	a.UpdatedAt = time.Now()
	if err := s.repo.UpdateArtifact(ctx, a); err != nil {
		return err
	}
	return s.snapshot(ctx, a, t, pkgmodels.VersionSourceAIRegenerate, "AI test generation")
}

// ReviseSlideDeck replaces a slide deck's content, bumps the artifact's
// version, and records a new snapshot, per spec.md §4.7's edit/regenerate
// flow (manual edits and AI regenerations both flow through here,
// distinguished only by sourceKind).
func (s *Service) ReviseSlideDeck(ctx context.Context, artifactID string, deck *pkgmodels.SlideDeck, sourceKind pkgmodels.VersionSourceKind, description string) error {
	a, err := s.repo.GetArtifactByID(ctx, artifactID)
	if err != nil {
		return err
	}
	if err := deck.Validate(); err != nil {
		return err
	}
	if err := s.repo.UpsertSlideDeck(ctx, deck); err != nil {
		return err
	}
	a.Version++
	a.UpdatedAt = time.Now()
	if err := s.repo.UpdateArtifact(ctx, a); err != nil {
		return err
	}
	return s.snapshot(ctx, a, deck, sourceKind, description)
}

// RestoreVersion rolls an artifact's live content back to an earlier
// snapshot's content, recording the restore itself as a new version so
// history is never destroyed, per spec.md §4.7.
func (s *Service) RestoreVersion(ctx context.Context, artifactID string, version int) (*pkgmodels.Artifact, error) {
	a, err := s.repo.GetArtifactByID(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	snap, err := s.repo.GetVersionSnapshot(ctx, artifactID, version)
	if err != nil {
		return nil, err
	}

	switch a.Kind {
	case pkgmodels.ArtifactKindSlideDeck:
		var deck pkgmodels.SlideDeck
		if err := json.Unmarshal(snap.Content, &deck); err != nil {
			return nil, fmt.Errorf("decode slide deck snapshot: %w", err)
		}
		deck.ArtifactID = artifactID
		if err := s.repo.UpsertSlideDeck(ctx, &deck); err != nil {
			return nil, err
		}
	case pkgmodels.ArtifactKindBook:
		var book pkgmodels.Book
		if err := json.Unmarshal(snap.Content, &book); err != nil {
			return nil, fmt.Errorf("decode book snapshot: %w", err)
		}
		book.ArtifactID = artifactID
		if err := s.repo.UpsertBook(ctx, &book); err != nil {
			return nil, err
		}
	case pkgmodels.ArtifactKindTest:
		var test pkgmodels.Test
		if err := json.Unmarshal(snap.Content, &test); err != nil {
			return nil, fmt.Errorf("decode test snapshot: %w", err)
		}
		test.ArtifactID = artifactID
		if err := s.repo.UpsertTest(ctx, &test); err != nil {
			return nil, err
		}
	default:
		return nil, pkgmodels.ErrUnknownJobKind
	}

	a.Version++
	a.UpdatedAt = time.Now()
	if err := s.repo.UpdateArtifact(ctx, a); err != nil {
		return nil, err
	}
	if err := s.repo.CreateVersionSnapshot(ctx, &pkgmodels.VersionSnapshot{
		ArtifactID:  artifactID,
		Version:     a.Version,
		Description: fmt.Sprintf("restored from version %d", version),
		SourceKind:  pkgmodels.VersionSourceManualEdit,
		Content:     snap.Content,
	}); err != nil {
		return nil, err
	}
	return a, nil
}

// snapshot serializes content and records it as the artifact's current
// version, mirroring the teacher's VersionSnapshot.Content opaque-blob
// pattern: one snapshot table for every artifact kind.
func (s *Service) snapshot(ctx context.Context, a *pkgmodels.Artifact, content any, sourceKind pkgmodels.VersionSourceKind, description string) error {
	raw, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("encode version snapshot content: %w", err)
	}
	snap := &pkgmodels.VersionSnapshot{
		ArtifactID:  a.ID,
		Version:     a.Version,
		Description: description,
		SourceKind:  sourceKind,
		Content:     raw,
	}
	if err := snap.Validate(); err != nil {
		return err
	}
	return s.repo.CreateVersionSnapshot(ctx, snap)
}
