package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/aidocs/platform/internal/infrastructure/storage/models"
	pkgmodels "github.com/aidocs/platform/pkg/models"
)

// ShareRepository persists share grants: auto-accepted invitations of an
// artifact to another user, resolved by email until the sharee's next
// login binds a user ID.
type ShareRepository struct {
	db bun.IDB
}

// NewShareRepository constructs a ShareRepository.
func NewShareRepository(db bun.IDB) *ShareRepository {
	return &ShareRepository{db: db}
}

// Create inserts a new share grant.
func (r *ShareRepository) Create(ctx context.Context, s *pkgmodels.ShareGrant) error {
	m, err := models.FromShareGrantDomain(s)
	if err != nil {
		return err
	}
	if _, err := r.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("insert share grant: %w", err)
	}
	s.ID = m.ID.String()
	s.CreatedAt = m.CreatedAt
	s.AcceptedAt = m.AcceptedAt
	return nil
}

// GetByID fetches a share grant by ID.
func (r *ShareRepository) GetByID(ctx context.Context, id string) (*pkgmodels.ShareGrant, error) {
	sid, err := parseUUID(id)
	if err != nil {
		return nil, err
	}
	m := new(models.ShareGrantModel)
	err = r.db.NewSelect().Model(m).Where("id = ?", sid).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgmodels.ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get share grant: %w", err)
	}
	return models.ToShareGrantDomain(m), nil
}

// ListByArtifact lists every share grant on an artifact.
func (r *ShareRepository) ListByArtifact(ctx context.Context, artifactID string) ([]*pkgmodels.ShareGrant, error) {
	aid, err := parseUUID(artifactID)
	if err != nil {
		return nil, err
	}
	var rows []models.ShareGrantModel
	err = r.db.NewSelect().Model(&rows).Where("artifact_id = ?", aid).Order("created_at DESC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list share grants: %w", err)
	}
	out := make([]*pkgmodels.ShareGrant, len(rows))
	for i := range rows {
		out[i] = models.ToShareGrantDomain(&rows[i])
	}
	return out, nil
}

// ListByShareeEmail lists grants extended to an (as yet unresolved) email,
// so they can be bound to a user ID on that user's next login.
func (r *ShareRepository) ListByShareeEmail(ctx context.Context, email string) ([]*pkgmodels.ShareGrant, error) {
	var rows []models.ShareGrantModel
	err := r.db.NewSelect().Model(&rows).
		Where("sharee_email = ? AND sharee_id IS NULL", email).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list share grants by email: %w", err)
	}
	out := make([]*pkgmodels.ShareGrant, len(rows))
	for i := range rows {
		out[i] = models.ToShareGrantDomain(&rows[i])
	}
	return out, nil
}

// UpdateStatus persists a share grant's status transition (decline/expire)
// and, when resolving an email invitation, its sharee ID.
func (r *ShareRepository) UpdateStatus(ctx context.Context, s *pkgmodels.ShareGrant) error {
	m, err := models.FromShareGrantDomain(s)
	if err != nil {
		return err
	}
	res, err := r.db.NewUpdate().Model(m).
		Column("status", "sharee_id").
		Where("id = ?", m.ID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("update share grant: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return pkgmodels.ErrArtifactNotFound
	}
	return nil
}

// ListExpirable lists accepted shares whose own deadline has already
// passed, the input to the background expiration sweep.
func (r *ShareRepository) ListExpirable(ctx context.Context, now time.Time) ([]*pkgmodels.ShareGrant, error) {
	var rows []models.ShareGrantModel
	err := r.db.NewSelect().Model(&rows).
		Where("status = ? AND deadline IS NOT NULL AND deadline < ?", string(pkgmodels.ShareStatusAccepted), now).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expirable shares: %w", err)
	}
	out := make([]*pkgmodels.ShareGrant, len(rows))
	for i := range rows {
		out[i] = models.ToShareGrantDomain(&rows[i])
	}
	return out, nil
}
