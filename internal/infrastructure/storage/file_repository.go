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

// FileRepository persists the tenant-scoped file/folder index over the
// object store.
type FileRepository struct {
	db bun.IDB
}

// NewFileRepository constructs a FileRepository.
func NewFileRepository(db bun.IDB) *FileRepository {
	return &FileRepository{db: db}
}

// Create inserts a new file record.
func (r *FileRepository) Create(ctx context.Context, f *pkgmodels.File) error {
	m, err := models.FromFileDomain(f)
	if err != nil {
		return err
	}
	if _, err := r.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	f.ID = m.ID.String()
	f.CreatedAt = m.CreatedAt
	f.UpdatedAt = m.UpdatedAt
	return nil
}

// GetByID fetches a non-deleted file by ID.
func (r *FileRepository) GetByID(ctx context.Context, id string) (*pkgmodels.File, error) {
	fid, err := uuid.Parse(id)
	if err != nil {
		return nil, pkgmodels.ErrInvalidID
	}
	m := new(models.FileModel)
	err = r.db.NewSelect().Model(m).Where("id = ? AND is_deleted = false", fid).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgmodels.ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return models.ToFileDomain(m), nil
}

// ListByUser lists a user's non-deleted files, optionally scoped to a folder.
func (r *FileRepository) ListByUser(ctx context.Context, userID string, folderID *string) ([]*pkgmodels.File, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, pkgmodels.ErrInvalidID
	}
	q := r.db.NewSelect().Model((*models.FileModel)(nil)).
		Where("user_id = ? AND is_deleted = false", uid).
		Order("created_at DESC")
	if folderID != nil {
		fid, err := uuid.Parse(*folderID)
		if err != nil {
			return nil, pkgmodels.ErrInvalidID
		}
		q = q.Where("folder_id = ?", fid)
	} else {
		q = q.Where("folder_id IS NULL")
	}
	var rows []models.FileModel
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	out := make([]*pkgmodels.File, len(rows))
	for i := range rows {
		out[i] = models.ToFileDomain(&rows[i])
	}
	return out, nil
}

// SoftDelete marks a file deleted without removing its storage key, so the
// underlying blob can still be garbage-collected on its own schedule.
func (r *FileRepository) SoftDelete(ctx context.Context, id string) error {
	fid, err := uuid.Parse(id)
	if err != nil {
		return pkgmodels.ErrInvalidID
	}
	res, err := r.db.NewUpdate().Model((*models.FileModel)(nil)).
		Set("is_deleted = true").
		Where("id = ?", fid).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return pkgmodels.ErrArtifactNotFound
	}
	return nil
}

// CreateFolder inserts a new folder record.
func (r *FileRepository) CreateFolder(ctx context.Context, f *pkgmodels.Folder) error {
	m, err := models.FromFolderDomain(f)
	if err != nil {
		return err
	}
	if _, err := r.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("insert folder: %w", err)
	}
	f.ID = m.ID.String()
	f.CreatedAt = m.CreatedAt
	f.UpdatedAt = m.UpdatedAt
	return nil
}

// ListFolders lists a user's non-deleted folders.
func (r *FileRepository) ListFolders(ctx context.Context, userID string) ([]*pkgmodels.Folder, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, pkgmodels.ErrInvalidID
	}
	var rows []models.FolderModel
	err = r.db.NewSelect().Model(&rows).
		Where("user_id = ? AND is_deleted = false", uid).
		Order("name ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	out := make([]*pkgmodels.Folder, len(rows))
	for i := range rows {
		out[i] = models.ToFolderDomain(&rows[i])
	}
	return out, nil
}
