package models

import (
	"encoding/json"
	"time"
)

// ChapterContentMode discriminates how a chapter's content is stored.
type ChapterContentMode string

const (
	ChapterModeInline    ChapterContentMode = "inline"
	ChapterModePDFPages  ChapterContentMode = "pdf_pages"
	ChapterModeImagePages ChapterContentMode = "image_pages"
)

// ReadingDirection applies to image_pages chapters (manga-friendly layouts).
type ReadingDirection string

const (
	ReadingDirectionLTR ReadingDirection = "ltr"
	ReadingDirectionRTL ReadingDirection = "rtl"
)

// MaxChapterDepth is the maximum nesting depth of a book's chapter tree.
const MaxChapterDepth = 3

// Page is one fixed-dimension page of a pdf_pages or image_pages chapter: a
// background image plus positioned overlay annotations.
type Page struct {
	PageNumber      int              `json:"page_number"`
	BackgroundURL   string           `json:"background_url"`
	Width           int              `json:"width"`
	Height          int              `json:"height"`
	OverlayElements []OverlayElement `json:"-"`
}

type pageWire struct {
	PageNumber    int             `json:"page_number"`
	BackgroundURL string          `json:"background_url"`
	Width         int             `json:"width"`
	Height        int             `json:"height"`
	Overlays      []taggedOverlay `json:"overlay_elements,omitempty"`
}

// MarshalJSON serializes a Page, encoding its overlay tagged union explicitly.
func (p Page) MarshalJSON() ([]byte, error) {
	overlays, err := marshalOverlays(p.OverlayElements)
	if err != nil {
		return nil, err
	}
	return json.Marshal(pageWire{
		PageNumber:    p.PageNumber,
		BackgroundURL: p.BackgroundURL,
		Width:         p.Width,
		Height:        p.Height,
		Overlays:      overlays,
	})
}

// UnmarshalJSON deserializes a Page, dispatching its overlay tagged union by
// discriminator before decoding each concrete variant.
func (p *Page) UnmarshalJSON(data []byte) error {
	var w pageWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	overlays, err := unmarshalOverlays(w.Overlays)
	if err != nil {
		return err
	}
	p.PageNumber = w.PageNumber
	p.BackgroundURL = w.BackgroundURL
	p.Width = w.Width
	p.Height = w.Height
	p.OverlayElements = overlays
	return nil
}

// Chapter is stored flat with a ParentID rather than as a pointer tree, so
// tree walks are explicit iteration over an index keyed by BookID instead of
// recursive pointer traversal over a cyclic-prone graph.
type Chapter struct {
	ID          string             `json:"id"`
	BookID      string             `json:"book_id"`
	ParentID    *string            `json:"parent_id,omitempty"`
	Depth       int                `json:"depth"`
	OrderIndex  int                `json:"order_index"`
	Title       string             `json:"title"`
	ContentMode ChapterContentMode `json:"content_mode"`
	InlineHTML  string             `json:"inline_html,omitempty"`
	Pages       []Page             `json:"pages,omitempty"`
	ReadingDir  ReadingDirection   `json:"reading_direction,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Validate validates a chapter's structural invariants.
func (c *Chapter) Validate() error {
	if c.BookID == "" {
		return &ValidationError{Field: "book_id", Message: "book ID is required"}
	}
	if c.Title == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if c.Depth > MaxChapterDepth {
		return &ValidationError{Field: "depth", Message: "chapter nesting exceeds maximum depth"}
	}
	if c.ContentMode == ChapterModePDFPages || c.ContentMode == ChapterModeImagePages {
		if err := validatePageNumbering(c.Pages); err != nil {
			return err
		}
	}
	return nil
}

// validatePageNumbering enforces that page numbers are 1-based, contiguous
// and unique.
func validatePageNumbering(pages []Page) error {
	seen := make(map[int]bool, len(pages))
	for _, p := range pages {
		if p.PageNumber < 1 {
			return &ValidationError{Field: "pages", Message: "page_number must be 1-based"}
		}
		if seen[p.PageNumber] {
			return &ValidationError{Field: "pages", Message: "duplicate page_number"}
		}
		seen[p.PageNumber] = true
	}
	for i := 1; i <= len(pages); i++ {
		if !seen[i] {
			return &ValidationError{Field: "pages", Message: "page numbers must be contiguous"}
		}
	}
	return nil
}

// ChapterIndex is an in-memory index over a book's flat chapter rows,
// supporting tree walks (children-of, reorder validation) without recursion
// over pointers.
type ChapterIndex struct {
	byParent map[string][]*Chapter
	byID     map[string]*Chapter
}

// NewChapterIndex builds an index from a book's chapter rows.
func NewChapterIndex(chapters []*Chapter) *ChapterIndex {
	idx := &ChapterIndex{
		byParent: make(map[string][]*Chapter),
		byID:     make(map[string]*Chapter, len(chapters)),
	}
	for _, c := range chapters {
		idx.byID[c.ID] = c
		key := ""
		if c.ParentID != nil {
			key = *c.ParentID
		}
		idx.byParent[key] = append(idx.byParent[key], c)
	}
	return idx
}

// Children returns the direct children of parentID (empty string for roots).
func (idx *ChapterIndex) Children(parentID string) []*Chapter {
	return idx.byParent[parentID]
}

// ByID looks up a single chapter by ID, or nil if the tree has no such chapter.
func (idx *ChapterIndex) ByID(id string) *Chapter {
	return idx.byID[id]
}

// HasCycle walks the index from each node toward its root, returning true
// if any chain revisits a node (which would indicate corrupt parent links).
func (idx *ChapterIndex) HasCycle() bool {
	for _, c := range idx.byID {
		visited := map[string]bool{}
		cur := c
		for cur != nil {
			if visited[cur.ID] {
				return true
			}
			visited[cur.ID] = true
			if cur.ParentID == nil {
				break
			}
			cur = idx.byID[*cur.ParentID]
		}
	}
	return false
}

// AccessConfig is a book's per-artifact paywall configuration.
type AccessConfig struct {
	OneTimeViewPoints int64 `json:"one_time_view_points"`
	ForeverViewPoints int64 `json:"forever_view_points"`
	DownloadPDFPoints int64 `json:"download_pdf_points"`
}

// Book is the kind-specific content of a book artifact.
type Book struct {
	ArtifactID    string       `json:"artifact_id"`
	AccessConfig  AccessConfig `json:"access_config"`
	CoverImageURL string       `json:"cover_image_url,omitempty"`
	UpdatedAt     time.Time    `json:"updated_at"`
}
