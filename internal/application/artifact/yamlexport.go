package artifact

import (
	"context"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	pkgmodels "github.com/aidocs/platform/pkg/models"
)

// YAMLBook is the portable YAML representation of a book and its chapter
// tree, for exporting a book to a file a user can edit offline or hand to
// another account to import as a new book.
type YAMLBook struct {
	Metadata YAMLBookMetadata `yaml:"metadata"`
	Chapters []YAMLChapter    `yaml:"chapters"`
}

// YAMLBookMetadata carries the book-level fields that sit outside the
// chapter tree.
type YAMLBookMetadata struct {
	Title             string `yaml:"title"`
	ForeverViewPoints int64  `yaml:"forever_view_points,omitempty"`
	CoverImageURL     string `yaml:"cover_image_url,omitempty"`
}

// YAMLChapter is one chapter row, referencing its parent by the same ID
// used elsewhere in the document rather than by nesting, so the list stays
// flat and easy to hand-edit.
type YAMLChapter struct {
	ID          string `yaml:"id"`
	ParentID    string `yaml:"parent_id,omitempty"`
	Title       string `yaml:"title"`
	ContentMode string `yaml:"content_mode"`
	InlineHTML  string `yaml:"inline_html,omitempty"`
	ReadingDir  string `yaml:"reading_direction,omitempty"`
}

// ExportBookYAML renders a book and its chapter tree as portable YAML, in
// depth-first order-index order so importing the file rebuilds the same
// tree shape.
func (s *Service) ExportBookYAML(ctx context.Context, bookID string) ([]byte, error) {
	artifact, err := s.Get(ctx, bookID)
	if err != nil {
		return nil, err
	}
	book, err := s.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	idx, err := s.ChapterTree(ctx, bookID)
	if err != nil {
		return nil, err
	}

	out := YAMLBook{
		Metadata: YAMLBookMetadata{
			Title:             artifact.Title,
			ForeverViewPoints: book.AccessConfig.ForeverViewPoints,
			CoverImageURL:     book.CoverImageURL,
		},
	}

	var walk func(parentID string)
	walk = func(parentID string) {
		children := idx.Children(parentID)
		sort.Slice(children, func(i, j int) bool { return children[i].OrderIndex < children[j].OrderIndex })
		for _, c := range children {
			yc := YAMLChapter{
				ID:          c.ID,
				Title:       c.Title,
				ContentMode: string(c.ContentMode),
				InlineHTML:  c.InlineHTML,
				ReadingDir:  string(c.ReadingDir),
			}
			if c.ParentID != nil {
				yc.ParentID = *c.ParentID
			}
			out.Chapters = append(out.Chapters, yc)
			walk(c.ID)
		}
	}
	walk("")

	data, err := yaml.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("render book yaml: %w", err)
	}
	return data, nil
}

// ImportBookYAML creates a new book and its chapter tree from YAML produced
// by ExportBookYAML (or hand-authored in the same shape). Chapter IDs in the
// source file are remapped to freshly assigned ones as each chapter is
// created, so importing the same file twice never collides with the
// originals and parent references resolve against the new IDs.
func (s *Service) ImportBookYAML(ctx context.Context, ownerUserID string, data []byte) (*pkgmodels.Artifact, error) {
	var in YAMLBook
	if err := yaml.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("parse book yaml: %w", err)
	}
	if in.Metadata.Title == "" {
		return nil, &pkgmodels.ValidationError{Field: "metadata.title", Message: "title is required"}
	}

	art, err := s.CreateBook(ctx, ownerUserID, in.Metadata.Title, pkgmodels.AccessConfig{ForeverViewPoints: in.Metadata.ForeverViewPoints})
	if err != nil {
		return nil, err
	}

	depth := map[string]int{"": -1}
	childCount := map[string]int{}
	idRemap := map[string]string{}

	for _, yc := range in.Chapters {
		var parentID *string
		parentKey := ""
		if yc.ParentID != "" {
			mapped, ok := idRemap[yc.ParentID]
			if !ok {
				return nil, fmt.Errorf("import chapter %q: parent_id %q not seen before it", yc.Title, yc.ParentID)
			}
			parentID = &mapped
			parentKey = mapped
		}

		chapter := &pkgmodels.Chapter{
			BookID:      art.ID,
			ParentID:    parentID,
			Depth:       depth[parentKey] + 1,
			OrderIndex:  childCount[parentKey],
			Title:       yc.Title,
			ContentMode: pkgmodels.ChapterContentMode(yc.ContentMode),
			InlineHTML:  yc.InlineHTML,
			ReadingDir:  pkgmodels.ReadingDirection(yc.ReadingDir),
		}
		if err := s.AddChapter(ctx, chapter); err != nil {
			return nil, fmt.Errorf("import chapter %q: %w", yc.Title, err)
		}

		childCount[parentKey]++
		depth[chapter.ID] = chapter.Depth
		if yc.ID != "" {
			idRemap[yc.ID] = chapter.ID
		}
	}

	return art, nil
}
