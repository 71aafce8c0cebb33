// Package file manages the user-owned blobs that feed artifact generation:
// uploaded source documents and images referenced by job input.
package file

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/aidocs/platform/internal/application/filestorage"
	"github.com/aidocs/platform/internal/infrastructure/logger"
	pkgmodels "github.com/aidocs/platform/pkg/models"
)

type repository interface {
	Create(ctx context.Context, f *pkgmodels.File) error
	GetByID(ctx context.Context, id string) (*pkgmodels.File, error)
	ListByUser(ctx context.Context, userID string, folderID *string) ([]*pkgmodels.File, error)
	SoftDelete(ctx context.Context, id string) error
	CreateFolder(ctx context.Context, f *pkgmodels.Folder) error
	ListFolders(ctx context.Context, userID string) ([]*pkgmodels.Folder, error)
}

// Service uploads, serves, and deletes user files, backing the index in
// repository with content in a BlobStore.
type Service struct {
	repo       repository
	blobs      filestorage.BlobStore
	maxFileSize int64
	log        *logger.Logger
}

// New constructs a Service. maxFileSize bounds an upload's size in bytes
// (internal/config.FileStorageConfig.MaxFileSize); zero means unbounded.
func New(repo repository, blobs filestorage.BlobStore, maxFileSize int64, log *logger.Logger) *Service {
	return &Service{repo: repo, blobs: blobs, maxFileSize: maxFileSize, log: log}
}

// Upload validates the MIME type, stores content, and indexes the result.
func (s *Service) Upload(ctx context.Context, userID, folderID, filename, mimeType string, size int64, content io.Reader) (*pkgmodels.File, error) {
	if !pkgmodels.IsMimeTypeAllowed(mimeType) {
		return nil, &pkgmodels.ValidationError{Field: "mime_type", Message: fmt.Sprintf("mime type %q is not allowed", mimeType)}
	}
	if s.maxFileSize > 0 && size > s.maxFileSize {
		return nil, &pkgmodels.ValidationError{Field: "size_bytes", Message: fmt.Sprintf("file size %d exceeds maximum %d", size, s.maxFileSize)}
	}

	fileID := uuid.New().String()
	timestampedName := fmt.Sprintf("%d_%s", time.Now().UnixNano(), filename)
	var folderRef string
	if folderID != "" {
		folderRef = folderID
	}
	key := pkgmodels.StorageKeyFor(userID, folderRef, fileID, timestampedName)

	storedSize, checksum, err := s.blobs.Store(ctx, key, content)
	if err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}

	f := &pkgmodels.File{
		ID:         fileID,
		UserID:     userID,
		Filename:   filename,
		MimeType:   mimeType,
		SizeBytes:  storedSize,
		StorageKey: key,
		Checksum:   checksum,
	}
	if folderID != "" {
		f.FolderID = &folderID
	}
	if err := f.Validate(); err != nil {
		_ = s.blobs.Delete(ctx, key)
		return nil, err
	}
	if err := s.repo.Create(ctx, f); err != nil {
		_ = s.blobs.Delete(ctx, key)
		return nil, fmt.Errorf("index file: %w", err)
	}
	s.log.Info("file uploaded", "file_id", f.ID, "user_id", userID, "size_bytes", storedSize)
	return f, nil
}

// Download returns a file's metadata and a reader over its content. The
// caller must close the reader.
func (s *Service) Download(ctx context.Context, fileID string) (*pkgmodels.File, io.ReadCloser, error) {
	f, err := s.repo.GetByID(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.blobs.Get(ctx, f.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("read blob: %w", err)
	}
	return f, rc, nil
}

// List returns a user's files, optionally scoped to a folder.
func (s *Service) List(ctx context.Context, userID string, folderID *string) ([]*pkgmodels.File, error) {
	return s.repo.ListByUser(ctx, userID, folderID)
}

// Delete soft-deletes a file's index row. The underlying blob is left in
// place for a separate garbage-collection pass to reclaim.
func (s *Service) Delete(ctx context.Context, fileID string) error {
	return s.repo.SoftDelete(ctx, fileID)
}

// CreateFolder creates a new folder for a user.
func (s *Service) CreateFolder(ctx context.Context, userID, name string, parentID *string) (*pkgmodels.Folder, error) {
	f := &pkgmodels.Folder{UserID: userID, Name: name, ParentID: parentID}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.CreateFolder(ctx, f); err != nil {
		return nil, fmt.Errorf("create folder: %w", err)
	}
	return f, nil
}

// ListFolders returns a user's folder tree (flat, parent-linked).
func (s *Service) ListFolders(ctx context.Context, userID string) ([]*pkgmodels.Folder, error) {
	return s.repo.ListFolders(ctx, userID)
}
