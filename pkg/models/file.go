package models

import (
	"fmt"
	"time"
)

// File is a user-owned blob reference. The blob itself lives in the blob
// store behind filestorage.BlobStore (local disk in this module); this
// record is the tenant-scoped index over it.
type File struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	FolderID   *string   `json:"folder_id,omitempty"`
	Filename   string    `json:"filename"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	StorageKey string    `json:"storage_key"`
	Checksum   string    `json:"checksum,omitempty"`
	IsDeleted  bool      `json:"is_deleted"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Validate validates the file record.
func (f *File) Validate() error {
	if f.UserID == "" {
		return &ValidationError{Field: "user_id", Message: "user ID is required"}
	}
	if f.Filename == "" {
		return &ValidationError{Field: "filename", Message: "filename is required"}
	}
	if f.MimeType == "" {
		return &ValidationError{Field: "mime_type", Message: "MIME type is required"}
	}
	if !IsMimeTypeAllowed(f.MimeType) {
		return &ValidationError{Field: "mime_type", Message: fmt.Sprintf("mime type %q is not allowed", f.MimeType)}
	}
	if f.SizeBytes < 0 {
		return &ValidationError{Field: "size_bytes", Message: "size cannot be negative"}
	}
	if f.StorageKey == "" {
		return &ValidationError{Field: "storage_key", Message: "storage key is required"}
	}
	return nil
}

// StorageKeyFor builds the contractual storage key for a user's upload,
// carrying tenant isolation in the path itself.
func StorageKeyFor(userID, folderID, fileID, timestampedName string) string {
	folder := folderID
	if folder == "" {
		folder = "root"
	}
	return fmt.Sprintf("files/%s/%s/%s/%s", userID, folder, fileID, timestampedName)
}

// Folder groups a user's files into a simple tree (no depth limit is
// enforced here; ordering is client-driven).
type Folder struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ParentID  *string   `json:"parent_id,omitempty"`
	Name      string    `json:"name"`
	IsDeleted bool      `json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate validates the folder record.
func (f *Folder) Validate() error {
	if f.UserID == "" {
		return &ValidationError{Field: "user_id", Message: "user ID is required"}
	}
	if f.Name == "" {
		return &ValidationError{Field: "name", Message: "folder name is required"}
	}
	return nil
}

// AllowedMimeTypes defines the whitelist of MIME types accepted on upload.
var AllowedMimeTypes = map[string]bool{
	"image/jpeg": true, "image/png": true, "image/gif": true, "image/webp": true,
	"application/pdf": true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-powerpoint":                                             true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"audio/mpeg": true, "audio/wav": true, "audio/ogg": true, "audio/webm": true,
	"video/mp4": true, "video/webm": true, "video/quicktime": true,
	"text/plain": true, "text/csv": true, "application/json": true,
}

// IsMimeTypeAllowed checks if a MIME type is in the allowed list.
func IsMimeTypeAllowed(mimeType string) bool {
	return AllowedMimeTypes[mimeType]
}
