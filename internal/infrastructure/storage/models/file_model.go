package models

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	pkgmodels "github.com/aidocs/platform/pkg/models"
)

// FileModel is the bun row for a user-owned blob reference.
type FileModel struct {
	bun.BaseModel `bun:"table:files,alias:fl"`

	ID         uuid.UUID  `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	UserID     uuid.UUID  `bun:"user_id,notnull"`
	FolderID   *uuid.UUID `bun:"folder_id"`
	Filename   string     `bun:"filename,notnull"`
	MimeType   string     `bun:"mime_type,notnull"`
	SizeBytes  int64      `bun:"size_bytes,notnull"`
	StorageKey string     `bun:"storage_key,notnull"`
	Checksum   string     `bun:"checksum"`
	IsDeleted  bool       `bun:"is_deleted,notnull,default:false"`
	CreatedAt  time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time  `bun:"updated_at,notnull,default:current_timestamp"`

	Folder *FolderModel `bun:"rel:belongs-to,join:folder_id=id"`
}

func (f *FileModel) BeforeInsert(_ context.Context, _ *bun.InsertQuery) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	now := time.Now()
	f.CreatedAt = now
	f.UpdatedAt = now
	return nil
}

func (f *FileModel) BeforeUpdate(_ context.Context, _ *bun.UpdateQuery) error {
	f.UpdatedAt = time.Now()
	return nil
}

// FolderModel is the bun row for a user's folder tree node.
type FolderModel struct {
	bun.BaseModel `bun:"table:folders,alias:fld"`

	ID        uuid.UUID  `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	UserID    uuid.UUID  `bun:"user_id,notnull"`
	ParentID  *uuid.UUID `bun:"parent_id"`
	Name      string     `bun:"name,notnull"`
	IsDeleted bool       `bun:"is_deleted,notnull,default:false"`
	CreatedAt time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

func (f *FolderModel) BeforeInsert(_ context.Context, _ *bun.InsertQuery) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	now := time.Now()
	f.CreatedAt = now
	f.UpdatedAt = now
	return nil
}

func (f *FolderModel) BeforeUpdate(_ context.Context, _ *bun.UpdateQuery) error {
	f.UpdatedAt = time.Now()
	return nil
}

// ToFileDomain converts a bun row to the domain File.
func ToFileDomain(m *FileModel) *pkgmodels.File {
	f := &pkgmodels.File{
		ID:         m.ID.String(),
		UserID:     m.UserID.String(),
		Filename:   m.Filename,
		MimeType:   m.MimeType,
		SizeBytes:  m.SizeBytes,
		StorageKey: m.StorageKey,
		Checksum:   m.Checksum,
		IsDeleted:  m.IsDeleted,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	if m.FolderID != nil {
		s := m.FolderID.String()
		f.FolderID = &s
	}
	return f
}

// FromFileDomain converts a domain File to its bun row.
func FromFileDomain(f *pkgmodels.File) (*FileModel, error) {
	m := &FileModel{
		Filename:   f.Filename,
		MimeType:   f.MimeType,
		SizeBytes:  f.SizeBytes,
		StorageKey: f.StorageKey,
		Checksum:   f.Checksum,
		IsDeleted:  f.IsDeleted,
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
	if f.ID != "" {
		id, err := uuid.Parse(f.ID)
		if err != nil {
			return nil, fmt.Errorf("parse file id: %w", err)
		}
		m.ID = id
	}
	userID, err := uuid.Parse(f.UserID)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	m.UserID = userID
	if f.FolderID != nil && *f.FolderID != "" {
		folderID, err := uuid.Parse(*f.FolderID)
		if err != nil {
			return nil, fmt.Errorf("parse folder id: %w", err)
		}
		m.FolderID = &folderID
	}
	return m, nil
}

// ToFolderDomain converts a bun row to the domain Folder.
func ToFolderDomain(m *FolderModel) *pkgmodels.Folder {
	f := &pkgmodels.Folder{
		ID:        m.ID.String(),
		UserID:    m.UserID.String(),
		Name:      m.Name,
		IsDeleted: m.IsDeleted,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.ParentID != nil {
		s := m.ParentID.String()
		f.ParentID = &s
	}
	return f
}

// FromFolderDomain converts a domain Folder to its bun row.
func FromFolderDomain(f *pkgmodels.Folder) (*FolderModel, error) {
	m := &FolderModel{
		Name:      f.Name,
		IsDeleted: f.IsDeleted,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
	if f.ID != "" {
		id, err := uuid.Parse(f.ID)
		if err != nil {
			return nil, fmt.Errorf("parse folder id: %w", err)
		}
		m.ID = id
	}
	userID, err := uuid.Parse(f.UserID)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	m.UserID = userID
	if f.ParentID != nil && *f.ParentID != "" {
		parentID, err := uuid.Parse(*f.ParentID)
		if err != nil {
			return nil, fmt.Errorf("parse parent id: %w", err)
		}
		m.ParentID = &parentID
	}
	return m, nil
}
