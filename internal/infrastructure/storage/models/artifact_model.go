package models

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	pkgmodels "github.com/aidocs/platform/pkg/models"
)

// ArtifactModel is the bun row for the fields common to every artifact kind.
// Kind-specific content lives in sibling tables keyed by the same ID.
type ArtifactModel struct {
	bun.BaseModel `bun:"table:artifacts,alias:art"`

	ID          uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	OwnerUserID uuid.UUID `bun:"owner_user_id,notnull"`
	Kind        string    `bun:"kind,notnull"`
	Title       string    `bun:"title,notnull"`
	Slug        string    `bun:"slug"`
	Visibility  string    `bun:"visibility,notnull"`
	Status      string    `bun:"status,notnull"`
	Version     int       `bun:"version,notnull,default:1"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func (a *ArtifactModel) BeforeInsert(_ context.Context, _ *bun.InsertQuery) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Version == 0 {
		a.Version = 1
	}
	return nil
}

func (a *ArtifactModel) BeforeUpdate(_ context.Context, _ *bun.UpdateQuery) error {
	a.UpdatedAt = time.Now()
	return nil
}

// VersionSnapshotModel is the bun row for a point-in-time content snapshot,
// shared across every artifact kind; Content is an opaque JSON blob the
// caller decodes into the kind-specific content struct.
type VersionSnapshotModel struct {
	bun.BaseModel `bun:"table:version_snapshots,alias:vsn"`

	ID          uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	ArtifactID  uuid.UUID `bun:"artifact_id,notnull"`
	Version     int       `bun:"version,notnull"`
	Description string    `bun:"description"`
	SourceKind  string    `bun:"source_kind,notnull"`
	Content     []byte    `bun:"content,type:jsonb,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

func (v *VersionSnapshotModel) BeforeInsert(_ context.Context, _ *bun.InsertQuery) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.CreatedAt = time.Now()
	return nil
}

// ToArtifactDomain converts a bun row to the domain Artifact.
func ToArtifactDomain(m *ArtifactModel) *pkgmodels.Artifact {
	return &pkgmodels.Artifact{
		ID:          m.ID.String(),
		OwnerUserID: m.OwnerUserID.String(),
		Kind:        pkgmodels.ArtifactKind(m.Kind),
		Title:       m.Title,
		Slug:        m.Slug,
		Visibility:  pkgmodels.Visibility(m.Visibility),
		Status:      pkgmodels.ArtifactStatus(m.Status),
		Version:     m.Version,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// FromArtifactDomain converts a domain Artifact to its bun row.
func FromArtifactDomain(a *pkgmodels.Artifact) (*ArtifactModel, error) {
	m := &ArtifactModel{
		Kind:       string(a.Kind),
		Title:      a.Title,
		Slug:       a.Slug,
		Visibility: string(a.Visibility),
		Status:     string(a.Status),
		Version:    a.Version,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
	if a.ID != "" {
		id, err := uuid.Parse(a.ID)
		if err != nil {
			return nil, fmt.Errorf("parse artifact id: %w", err)
		}
		m.ID = id
	}
	ownerID, err := uuid.Parse(a.OwnerUserID)
	if err != nil {
		return nil, fmt.Errorf("parse owner user id: %w", err)
	}
	m.OwnerUserID = ownerID
	return m, nil
}

// ToVersionSnapshotDomain converts a bun row to the domain VersionSnapshot.
func ToVersionSnapshotDomain(m *VersionSnapshotModel) *pkgmodels.VersionSnapshot {
	return &pkgmodels.VersionSnapshot{
		ID:          m.ID.String(),
		ArtifactID:  m.ArtifactID.String(),
		Version:     m.Version,
		Description: m.Description,
		SourceKind:  pkgmodels.VersionSourceKind(m.SourceKind),
		Content:     m.Content,
		CreatedAt:   m.CreatedAt,
	}
}

// FromVersionSnapshotDomain converts a domain VersionSnapshot to its bun row.
func FromVersionSnapshotDomain(v *pkgmodels.VersionSnapshot) (*VersionSnapshotModel, error) {
	m := &VersionSnapshotModel{
		Version:     v.Version,
		Description: v.Description,
		SourceKind:  string(v.SourceKind),
		Content:     v.Content,
		CreatedAt:   v.CreatedAt,
	}
	if v.ID != "" {
		id, err := uuid.Parse(v.ID)
		if err != nil {
			return nil, fmt.Errorf("parse snapshot id: %w", err)
		}
		m.ID = id
	}
	artifactID, err := uuid.Parse(v.ArtifactID)
	if err != nil {
		return nil, fmt.Errorf("parse artifact id: %w", err)
	}
	m.ArtifactID = artifactID
	return m, nil
}
