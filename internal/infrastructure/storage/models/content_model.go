package models

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	pkgmodels "github.com/aidocs/platform/pkg/models"
)

// SlideDeckModel is the bun row for a slide-deck artifact's kind-specific
// content. The outline and slides are stored as JSONB blobs rather than
// one row per slide: slides are always read and rewritten as a whole unit
// by the regeneration pipeline, so normalizing them buys nothing.
type SlideDeckModel struct {
	bun.BaseModel `bun:"table:slide_decks,alias:sd"`

	ArtifactID    uuid.UUID `bun:"artifact_id,pk,type:uuid"`
	SlidesOutline []byte    `bun:"slides_outline,type:jsonb,notnull"`
	Slides        []byte    `bun:"slides,type:jsonb,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func (m *SlideDeckModel) BeforeUpdate(_ context.Context, _ *bun.UpdateQuery) error {
	m.UpdatedAt = time.Now()
	return nil
}

// ToSlideDeckDomain decodes a bun row into the domain SlideDeck.
func ToSlideDeckDomain(m *SlideDeckModel) (*pkgmodels.SlideDeck, error) {
	d := &pkgmodels.SlideDeck{ArtifactID: m.ArtifactID.String(), UpdatedAt: m.UpdatedAt}
	if err := json.Unmarshal(m.SlidesOutline, &d.SlidesOutline); err != nil {
		return nil, fmt.Errorf("decode slides_outline: %w", err)
	}
	if err := json.Unmarshal(m.Slides, &d.Slides); err != nil {
		return nil, fmt.Errorf("decode slides: %w", err)
	}
	return d, nil
}

// FromSlideDeckDomain encodes a domain SlideDeck into its bun row.
func FromSlideDeckDomain(d *pkgmodels.SlideDeck) (*SlideDeckModel, error) {
	artifactID, err := uuid.Parse(d.ArtifactID)
	if err != nil {
		return nil, fmt.Errorf("parse artifact id: %w", err)
	}
	outline, err := json.Marshal(d.SlidesOutline)
	if err != nil {
		return nil, fmt.Errorf("encode slides_outline: %w", err)
	}
	slides, err := json.Marshal(d.Slides)
	if err != nil {
		return nil, fmt.Errorf("encode slides: %w", err)
	}
	return &SlideDeckModel{
		ArtifactID:    artifactID,
		SlidesOutline: outline,
		Slides:        slides,
		UpdatedAt:     d.UpdatedAt,
	}, nil
}

// BookModel is the bun row for a book artifact's access configuration.
// Chapters live in their own table (ChapterModel) since they are queried
// and reordered independently of the book row itself.
type BookModel struct {
	bun.BaseModel `bun:"table:books,alias:bk"`

	ArtifactID    uuid.UUID `bun:"artifact_id,pk,type:uuid"`
	AccessConfig  JSONBMap  `bun:"access_config,type:jsonb"`
	CoverImageURL string    `bun:"cover_image_url"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func (m *BookModel) BeforeUpdate(_ context.Context, _ *bun.UpdateQuery) error {
	m.UpdatedAt = time.Now()
	return nil
}

// ChapterModel is the bun row for one flat chapter node; ParentID and Depth
// carry the tree shape instead of a pointer structure, matching the
// in-memory ChapterIndex built from these rows.
type ChapterModel struct {
	bun.BaseModel `bun:"table:chapters,alias:ch"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	BookID      uuid.UUID  `bun:"book_id,notnull"`
	ParentID    *uuid.UUID `bun:"parent_id"`
	Depth       int        `bun:"depth,notnull"`
	OrderIndex  int        `bun:"order_index,notnull"`
	Title       string     `bun:"title,notnull"`
	ContentMode string     `bun:"content_mode,notnull"`
	InlineHTML  string     `bun:"inline_html"`
	Pages       []byte     `bun:"pages,type:jsonb"`
	ReadingDir  string     `bun:"reading_direction"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

func (m *ChapterModel) BeforeInsert(_ context.Context, _ *bun.InsertQuery) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now
	return nil
}

func (m *ChapterModel) BeforeUpdate(_ context.Context, _ *bun.UpdateQuery) error {
	m.UpdatedAt = time.Now()
	return nil
}

// ToBookDomain decodes a bun row into the domain Book.
func ToBookDomain(m *BookModel) *pkgmodels.Book {
	cfg := pkgmodels.AccessConfig{
		OneTimeViewPoints: int64(m.AccessConfig.GetInt("one_time_view_points")),
		ForeverViewPoints: int64(m.AccessConfig.GetInt("forever_view_points")),
		DownloadPDFPoints: int64(m.AccessConfig.GetInt("download_pdf_points")),
	}
	return &pkgmodels.Book{
		ArtifactID:    m.ArtifactID.String(),
		AccessConfig:  cfg,
		CoverImageURL: m.CoverImageURL,
		UpdatedAt:     m.UpdatedAt,
	}
}

// FromBookDomain encodes a domain Book into its bun row.
func FromBookDomain(b *pkgmodels.Book) (*BookModel, error) {
	artifactID, err := uuid.Parse(b.ArtifactID)
	if err != nil {
		return nil, fmt.Errorf("parse artifact id: %w", err)
	}
	return &BookModel{
		ArtifactID: artifactID,
		AccessConfig: JSONBMap{
			"one_time_view_points": b.AccessConfig.OneTimeViewPoints,
			"forever_view_points":  b.AccessConfig.ForeverViewPoints,
			"download_pdf_points":  b.AccessConfig.DownloadPDFPoints,
		},
		CoverImageURL: b.CoverImageURL,
		UpdatedAt:     b.UpdatedAt,
	}, nil
}

// ToChapterDomain decodes a bun row into the domain Chapter.
func ToChapterDomain(m *ChapterModel) (*pkgmodels.Chapter, error) {
	c := &pkgmodels.Chapter{
		ID:          m.ID.String(),
		BookID:      m.BookID.String(),
		Depth:       m.Depth,
		OrderIndex:  m.OrderIndex,
		Title:       m.Title,
		ContentMode: pkgmodels.ChapterContentMode(m.ContentMode),
		InlineHTML:  m.InlineHTML,
		ReadingDir:  pkgmodels.ReadingDirection(m.ReadingDir),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.ParentID != nil {
		s := m.ParentID.String()
		c.ParentID = &s
	}
	if len(m.Pages) > 0 {
		if err := json.Unmarshal(m.Pages, &c.Pages); err != nil {
			return nil, fmt.Errorf("decode pages: %w", err)
		}
	}
	return c, nil
}

// FromChapterDomain encodes a domain Chapter into its bun row.
func FromChapterDomain(c *pkgmodels.Chapter) (*ChapterModel, error) {
	bookID, err := uuid.Parse(c.BookID)
	if err != nil {
		return nil, fmt.Errorf("parse book id: %w", err)
	}
	m := &ChapterModel{
		BookID:      bookID,
		Depth:       c.Depth,
		OrderIndex:  c.OrderIndex,
		Title:       c.Title,
		ContentMode: string(c.ContentMode),
		InlineHTML:  c.InlineHTML,
		ReadingDir:  string(c.ReadingDir),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	if c.ID != "" {
		id, err := uuid.Parse(c.ID)
		if err != nil {
			return nil, fmt.Errorf("parse chapter id: %w", err)
		}
		m.ID = id
	}
	if c.ParentID != nil && *c.ParentID != "" {
		parentID, err := uuid.Parse(*c.ParentID)
		if err != nil {
			return nil, fmt.Errorf("parse parent id: %w", err)
		}
		m.ParentID = &parentID
	}
	if len(c.Pages) > 0 {
		pages, err := json.Marshal(c.Pages)
		if err != nil {
			return nil, fmt.Errorf("encode pages: %w", err)
		}
		m.Pages = pages
	}
	return m, nil
}

// TestModel is the bun row for a test artifact's kind-specific content.
type TestModel struct {
	bun.BaseModel `bun:"table:tests,alias:tst"`

	ArtifactID        uuid.UUID  `bun:"artifact_id,pk,type:uuid"`
	Questions         []byte     `bun:"questions,type:jsonb,notnull"`
	MarketplaceConfig JSONBMap   `bun:"marketplace_config,type:jsonb"`
	Deadline          *time.Time `bun:"deadline"`
	TimeLimitMinutes  int        `bun:"time_limit_minutes"`
	MaxRetries        int        `bun:"max_retries"`
	UpdatedAt         time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

func (m *TestModel) BeforeUpdate(_ context.Context, _ *bun.UpdateQuery) error {
	m.UpdatedAt = time.Now()
	return nil
}

// ToTestDomain decodes a bun row into the domain Test.
func ToTestDomain(m *TestModel) (*pkgmodels.Test, error) {
	t := &pkgmodels.Test{
		ArtifactID:       m.ArtifactID.String(),
		Deadline:         m.Deadline,
		TimeLimitMinutes: m.TimeLimitMinutes,
		MaxRetries:       m.MaxRetries,
		UpdatedAt:        m.UpdatedAt,
	}
	if err := json.Unmarshal(m.Questions, &t.Questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	if len(m.MarketplaceConfig) > 0 {
		var tags []string
		if raw, ok := m.MarketplaceConfig["tags"].([]interface{}); ok {
			for _, v := range raw {
				if s, ok := v.(string); ok {
					tags = append(tags, s)
				}
			}
		}
		t.MarketplaceConfig = &pkgmodels.MarketplaceConfig{
			PriceCents:      int64(m.MarketplaceConfig.GetInt("price_cents")),
			Category:        m.MarketplaceConfig.GetString("category"),
			Tags:            tags,
			Language:        m.MarketplaceConfig.GetString("language"),
			Difficulty:      m.MarketplaceConfig.GetString("difficulty"),
			Slug:            m.MarketplaceConfig.GetString("slug"),
			MetaDescription: m.MarketplaceConfig.GetString("meta_description"),
		}
	}
	return t, nil
}

// FromTestDomain encodes a domain Test into its bun row.
func FromTestDomain(t *pkgmodels.Test) (*TestModel, error) {
	artifactID, err := uuid.Parse(t.ArtifactID)
	if err != nil {
		return nil, fmt.Errorf("parse artifact id: %w", err)
	}
	questions, err := json.Marshal(t.Questions)
	if err != nil {
		return nil, fmt.Errorf("encode questions: %w", err)
	}
	m := &TestModel{
		ArtifactID:       artifactID,
		Questions:        questions,
		Deadline:         t.Deadline,
		TimeLimitMinutes: t.TimeLimitMinutes,
		MaxRetries:       t.MaxRetries,
		UpdatedAt:        t.UpdatedAt,
	}
	if t.MarketplaceConfig != nil {
		tags := make([]interface{}, len(t.MarketplaceConfig.Tags))
		for i, tag := range t.MarketplaceConfig.Tags {
			tags[i] = tag
		}
		m.MarketplaceConfig = JSONBMap{
			"price_cents":      t.MarketplaceConfig.PriceCents,
			"category":         t.MarketplaceConfig.Category,
			"tags":             tags,
			"language":         t.MarketplaceConfig.Language,
			"difficulty":       t.MarketplaceConfig.Difficulty,
			"slug":             t.MarketplaceConfig.Slug,
			"meta_description": t.MarketplaceConfig.MetaDescription,
		}
	}
	return m, nil
}

// SubmissionModel is the bun row for one taker's attempt at a test.
type SubmissionModel struct {
	bun.BaseModel `bun:"table:submissions,alias:sub"`

	ID          uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	TestID      uuid.UUID `bun:"test_id,notnull"`
	TakerUserID uuid.UUID `bun:"taker_user_id,notnull"`
	Answers     []byte    `bun:"answers,type:jsonb,notnull"`
	Score       float64   `bun:"score,notnull"`
	MaxScore    float64   `bun:"max_score,notnull"`
	SubmittedAt time.Time `bun:"submitted_at,notnull,default:current_timestamp"`
	RetryCount  int       `bun:"retry_count,notnull,default:0"`
}

func (m *SubmissionModel) BeforeInsert(_ context.Context, _ *bun.InsertQuery) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.SubmittedAt = time.Now()
	return nil
}

// ToSubmissionDomain decodes a bun row into the domain Submission.
func ToSubmissionDomain(m *SubmissionModel) (*pkgmodels.Submission, error) {
	s := &pkgmodels.Submission{
		ID:          m.ID.String(),
		TestID:      m.TestID.String(),
		TakerUserID: m.TakerUserID.String(),
		Score:       m.Score,
		MaxScore:    m.MaxScore,
		SubmittedAt: m.SubmittedAt,
		RetryCount:  m.RetryCount,
	}
	if err := json.Unmarshal(m.Answers, &s.Answers); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	return s, nil
}

// FromSubmissionDomain encodes a domain Submission into its bun row.
func FromSubmissionDomain(s *pkgmodels.Submission) (*SubmissionModel, error) {
	testID, err := uuid.Parse(s.TestID)
	if err != nil {
		return nil, fmt.Errorf("parse test id: %w", err)
	}
	takerID, err := uuid.Parse(s.TakerUserID)
	if err != nil {
		return nil, fmt.Errorf("parse taker id: %w", err)
	}
	answers, err := json.Marshal(s.Answers)
	if err != nil {
		return nil, fmt.Errorf("encode answers: %w", err)
	}
	m := &SubmissionModel{
		TestID:      testID,
		TakerUserID: takerID,
		Answers:     answers,
		Score:       s.Score,
		MaxScore:    s.MaxScore,
		SubmittedAt: s.SubmittedAt,
		RetryCount:  s.RetryCount,
	}
	if s.ID != "" {
		id, err := uuid.Parse(s.ID)
		if err != nil {
			return nil, fmt.Errorf("parse submission id: %w", err)
		}
		m.ID = id
	}
	return m, nil
}
