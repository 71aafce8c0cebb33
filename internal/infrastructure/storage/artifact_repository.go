package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/aidocs/platform/internal/infrastructure/storage/models"
	pkgmodels "github.com/aidocs/platform/pkg/models"
)

// ArtifactRepository persists the common artifact envelope, version
// snapshots, and each kind's specific content (slide decks, books plus
// their chapter trees, tests plus their submissions).
type ArtifactRepository struct {
	db bun.IDB
}

// NewArtifactRepository constructs an ArtifactRepository.
func NewArtifactRepository(db bun.IDB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

func parseUUID(id string) (uuid.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.UUID{}, pkgmodels.ErrInvalidID
	}
	return u, nil
}

// CreateArtifact inserts a new artifact envelope row.
func (r *ArtifactRepository) CreateArtifact(ctx context.Context, a *pkgmodels.Artifact) error {
	m, err := models.FromArtifactDomain(a)
	if err != nil {
		return err
	}
	if _, err := r.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	a.ID = m.ID.String()
	a.CreatedAt = m.CreatedAt
	a.UpdatedAt = m.UpdatedAt
	return nil
}

// GetArtifactByID fetches an artifact envelope by ID.
func (r *ArtifactRepository) GetArtifactByID(ctx context.Context, id string) (*pkgmodels.Artifact, error) {
	aid, err := parseUUID(id)
	if err != nil {
		return nil, err
	}
	m := new(models.ArtifactModel)
	err = r.db.NewSelect().Model(m).Where("id = ?", aid).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgmodels.ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	return models.ToArtifactDomain(m), nil
}

// GetArtifactBySlug fetches a published marketplace artifact by its slug.
func (r *ArtifactRepository) GetArtifactBySlug(ctx context.Context, slug string) (*pkgmodels.Artifact, error) {
	m := new(models.ArtifactModel)
	err := r.db.NewSelect().Model(m).Where("slug = ?", slug).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgmodels.ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact by slug: %w", err)
	}
	return models.ToArtifactDomain(m), nil
}

// UpdateArtifact persists changes to the artifact envelope (visibility,
// status, slug, version).
func (r *ArtifactRepository) UpdateArtifact(ctx context.Context, a *pkgmodels.Artifact) error {
	m, err := models.FromArtifactDomain(a)
	if err != nil {
		return err
	}
	res, err := r.db.NewUpdate().Model(m).
		Column("title", "slug", "visibility", "status", "version", "updated_at").
		Where("id = ?", m.ID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("update artifact: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return pkgmodels.ErrArtifactNotFound
	}
	return nil
}

// ListArtifactsByOwner lists an owner's artifacts, optionally filtered by kind.
func (r *ArtifactRepository) ListArtifactsByOwner(ctx context.Context, ownerID string, kind pkgmodels.ArtifactKind) ([]*pkgmodels.Artifact, error) {
	oid, err := parseUUID(ownerID)
	if err != nil {
		return nil, err
	}
	q := r.db.NewSelect().Model((*models.ArtifactModel)(nil)).
		Where("owner_user_id = ?", oid).Order("updated_at DESC")
	if kind != "" {
		q = q.Where("kind = ?", string(kind))
	}
	var rows []models.ArtifactModel
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	out := make([]*pkgmodels.Artifact, len(rows))
	for i := range rows {
		out[i] = models.ToArtifactDomain(&rows[i])
	}
	return out, nil
}

// ListMarketplaceArtifacts lists published marketplace listings.
func (r *ArtifactRepository) ListMarketplaceArtifacts(ctx context.Context, kind pkgmodels.ArtifactKind) ([]*pkgmodels.Artifact, error) {
	q := r.db.NewSelect().Model((*models.ArtifactModel)(nil)).
		Where("visibility = ?", string(pkgmodels.VisibilityMarketplace)).
		Where("status = ?", string(pkgmodels.ArtifactStatusPublished)).
		Order("updated_at DESC")
	if kind != "" {
		q = q.Where("kind = ?", string(kind))
	}
	var rows []models.ArtifactModel
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("list marketplace artifacts: %w", err)
	}
	out := make([]*pkgmodels.Artifact, len(rows))
	for i := range rows {
		out[i] = models.ToArtifactDomain(&rows[i])
	}
	return out, nil
}

// CreateVersionSnapshot inserts a new version snapshot.
func (r *ArtifactRepository) CreateVersionSnapshot(ctx context.Context, v *pkgmodels.VersionSnapshot) error {
	m, err := models.FromVersionSnapshotDomain(v)
	if err != nil {
		return err
	}
	if _, err := r.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("insert version snapshot: %w", err)
	}
	v.ID = m.ID.String()
	v.CreatedAt = m.CreatedAt
	return nil
}

// ListVersionSnapshots lists an artifact's snapshots, newest first.
func (r *ArtifactRepository) ListVersionSnapshots(ctx context.Context, artifactID string) ([]*pkgmodels.VersionSnapshot, error) {
	aid, err := parseUUID(artifactID)
	if err != nil {
		return nil, err
	}
	var rows []models.VersionSnapshotModel
	err = r.db.NewSelect().Model(&rows).Where("artifact_id = ?", aid).Order("version DESC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list version snapshots: %w", err)
	}
	out := make([]*pkgmodels.VersionSnapshot, len(rows))
	for i := range rows {
		out[i] = models.ToVersionSnapshotDomain(&rows[i])
	}
	return out, nil
}

// GetVersionSnapshot fetches a single version of an artifact.
func (r *ArtifactRepository) GetVersionSnapshot(ctx context.Context, artifactID string, version int) (*pkgmodels.VersionSnapshot, error) {
	aid, err := parseUUID(artifactID)
	if err != nil {
		return nil, err
	}
	m := new(models.VersionSnapshotModel)
	err = r.db.NewSelect().Model(m).Where("artifact_id = ? AND version = ?", aid, version).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgmodels.ErrVersionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get version snapshot: %w", err)
	}
	return models.ToVersionSnapshotDomain(m), nil
}

// UpsertSlideDeck inserts or replaces a slide deck's content row.
func (r *ArtifactRepository) UpsertSlideDeck(ctx context.Context, d *pkgmodels.SlideDeck) error {
	m, err := models.FromSlideDeckDomain(d)
	if err != nil {
		return err
	}
	_, err = r.db.NewInsert().Model(m).
		On("CONFLICT (artifact_id) DO UPDATE").
		Set("slides_outline = EXCLUDED.slides_outline").
		Set("slides = EXCLUDED.slides").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert slide deck: %w", err)
	}
	return nil
}

// GetSlideDeck fetches a slide deck's content by artifact ID.
func (r *ArtifactRepository) GetSlideDeck(ctx context.Context, artifactID string) (*pkgmodels.SlideDeck, error) {
	aid, err := parseUUID(artifactID)
	if err != nil {
		return nil, err
	}
	m := new(models.SlideDeckModel)
	err = r.db.NewSelect().Model(m).Where("artifact_id = ?", aid).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgmodels.ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get slide deck: %w", err)
	}
	return models.ToSlideDeckDomain(m)
}

// UpsertBook inserts or replaces a book's access configuration row.
func (r *ArtifactRepository) UpsertBook(ctx context.Context, b *pkgmodels.Book) error {
	m, err := models.FromBookDomain(b)
	if err != nil {
		return err
	}
	_, err = r.db.NewInsert().Model(m).
		On("CONFLICT (artifact_id) DO UPDATE").
		Set("access_config = EXCLUDED.access_config").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert book: %w", err)
	}
	return nil
}

// GetBook fetches a book's access configuration by artifact ID.
func (r *ArtifactRepository) GetBook(ctx context.Context, artifactID string) (*pkgmodels.Book, error) {
	aid, err := parseUUID(artifactID)
	if err != nil {
		return nil, err
	}
	m := new(models.BookModel)
	err = r.db.NewSelect().Model(m).Where("artifact_id = ?", aid).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgmodels.ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return models.ToBookDomain(m), nil
}

// CreateChapter inserts a new chapter row.
func (r *ArtifactRepository) CreateChapter(ctx context.Context, c *pkgmodels.Chapter) error {
	m, err := models.FromChapterDomain(c)
	if err != nil {
		return err
	}
	if _, err := r.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("insert chapter: %w", err)
	}
	c.ID = m.ID.String()
	c.CreatedAt = m.CreatedAt
	c.UpdatedAt = m.UpdatedAt
	return nil
}

// UpdateChapter persists changes to a chapter row.
func (r *ArtifactRepository) UpdateChapter(ctx context.Context, c *pkgmodels.Chapter) error {
	m, err := models.FromChapterDomain(c)
	if err != nil {
		return err
	}
	res, err := r.db.NewUpdate().Model(m).
		Column("parent_id", "depth", "order_index", "title", "content_mode", "inline_html", "pages", "reading_direction", "updated_at").
		Where("id = ?", m.ID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("update chapter: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return pkgmodels.ErrChapterNotFound
	}
	return nil
}

// ListChapters lists every chapter of a book, for building a ChapterIndex.
func (r *ArtifactRepository) ListChapters(ctx context.Context, bookID string) ([]*pkgmodels.Chapter, error) {
	bid, err := parseUUID(bookID)
	if err != nil {
		return nil, err
	}
	var rows []models.ChapterModel
	err = r.db.NewSelect().Model(&rows).Where("book_id = ?", bid).Order("order_index ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	out := make([]*pkgmodels.Chapter, len(rows))
	for i := range rows {
		c, err := models.ToChapterDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// UpsertTest inserts or replaces a test's content row.
func (r *ArtifactRepository) UpsertTest(ctx context.Context, t *pkgmodels.Test) error {
	m, err := models.FromTestDomain(t)
	if err != nil {
		return err
	}
	_, err = r.db.NewInsert().Model(m).
		On("CONFLICT (artifact_id) DO UPDATE").
		Set("questions = EXCLUDED.questions").
		Set("marketplace_config = EXCLUDED.marketplace_config").
		Set("deadline = EXCLUDED.deadline").
		Set("time_limit_minutes = EXCLUDED.time_limit_minutes").
		Set("max_retries = EXCLUDED.max_retries").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert test: %w", err)
	}
	return nil
}

// GetTest fetches a test's content by artifact ID.
func (r *ArtifactRepository) GetTest(ctx context.Context, artifactID string) (*pkgmodels.Test, error) {
	aid, err := parseUUID(artifactID)
	if err != nil {
		return nil, err
	}
	m := new(models.TestModel)
	err = r.db.NewSelect().Model(m).Where("artifact_id = ?", aid).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgmodels.ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get test: %w", err)
	}
	return models.ToTestDomain(m)
}

// CreateSubmission inserts a new test submission.
func (r *ArtifactRepository) CreateSubmission(ctx context.Context, s *pkgmodels.Submission) error {
	m, err := models.FromSubmissionDomain(s)
	if err != nil {
		return err
	}
	if _, err := r.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	s.ID = m.ID.String()
	s.SubmittedAt = m.SubmittedAt
	return nil
}

// ListSubmissionsByTaker lists a taker's submissions for a test, for
// enforcing MaxRetries.
func (r *ArtifactRepository) ListSubmissionsByTaker(ctx context.Context, testID, takerID string) ([]*pkgmodels.Submission, error) {
	tid, err := parseUUID(testID)
	if err != nil {
		return nil, err
	}
	uid, err := parseUUID(takerID)
	if err != nil {
		return nil, err
	}
	var rows []models.SubmissionModel
	err = r.db.NewSelect().Model(&rows).
		Where("test_id = ? AND taker_user_id = ?", tid, uid).
		Order("submitted_at DESC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	out := make([]*pkgmodels.Submission, len(rows))
	for i := range rows {
		sub, err := models.ToSubmissionDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		out[i] = sub
	}
	return out, nil
}
