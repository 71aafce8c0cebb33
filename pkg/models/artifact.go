package models

import "time"

// ArtifactKind discriminates the polymorphic Artifact record.
type ArtifactKind string

const (
	ArtifactKindSlideDeck ArtifactKind = "slide_deck"
	ArtifactKindBook      ArtifactKind = "book"
	ArtifactKindTest      ArtifactKind = "test"
)

// Visibility controls who can discover an artifact.
type Visibility string

const (
	VisibilityPrivate     Visibility = "private"
	VisibilityShared      Visibility = "shared"
	VisibilityMarketplace Visibility = "marketplace"
)

// ArtifactStatus is the publication lifecycle state.
type ArtifactStatus string

const (
	ArtifactStatusDraft     ArtifactStatus = "draft"
	ArtifactStatusPublished ArtifactStatus = "published"
	ArtifactStatusArchived  ArtifactStatus = "archived"
)

// Artifact holds the fields common to every kind of generated document: slide
// decks, books and tests. Kind-specific content lives in the sibling types
// in slide.go, book.go and test.go, keyed by the same ID.
type Artifact struct {
	ID          string         `json:"id"`
	OwnerUserID string         `json:"owner_user_id"`
	Kind        ArtifactKind   `json:"kind"`
	Title       string         `json:"title"`
	Slug        string         `json:"slug,omitempty"`
	Visibility  Visibility     `json:"visibility"`
	Status      ArtifactStatus `json:"status"`
	Version     int            `json:"version"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Validate validates the artifact's common fields.
func (a *Artifact) Validate() error {
	if a.OwnerUserID == "" {
		return &ValidationError{Field: "owner_user_id", Message: "owner user ID is required"}
	}
	if a.Title == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if a.Version < 1 {
		return &ValidationError{Field: "version", Message: "version must start at 1"}
	}
	return nil
}

// IsFreeMarketplace reports whether an anonymous viewer may view this
// artifact purely by virtue of it being a free marketplace listing.
func (a *Artifact) IsFreeMarketplace(priceCents int64) bool {
	return a.Visibility == VisibilityMarketplace && priceCents == 0
}

// VersionSourceKind records why a version snapshot was created.
type VersionSourceKind string

const (
	VersionSourceInitial      VersionSourceKind = "initial"
	VersionSourceAIRegenerate VersionSourceKind = "ai_regenerate"
	VersionSourceManualEdit   VersionSourceKind = "manual_edit"
	VersionSourceOutlineEdit  VersionSourceKind = "outline_edit"
)

// VersionSnapshot is a full content copy of an artifact at a point in time.
// Content is stored opaquely as JSON so the same snapshot table serves every
// artifact kind; callers unmarshal into the kind-specific content struct.
type VersionSnapshot struct {
	ID          string            `json:"id"`
	ArtifactID  string            `json:"artifact_id"`
	Version     int               `json:"version"`
	Description string            `json:"description,omitempty"`
	SourceKind  VersionSourceKind `json:"source_kind"`
	Content     []byte            `json:"content"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Validate validates the version snapshot.
func (v *VersionSnapshot) Validate() error {
	if v.ArtifactID == "" {
		return &ValidationError{Field: "artifact_id", Message: "artifact ID is required"}
	}
	if v.Version < 1 {
		return &ValidationError{Field: "version", Message: "version must start at 1"}
	}
	if len(v.Content) == 0 {
		return &ValidationError{Field: "content", Message: "content snapshot cannot be empty"}
	}
	return nil
}
