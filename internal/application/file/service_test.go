package file

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidocs/platform/internal/application/filestorage"
	"github.com/aidocs/platform/internal/infrastructure/logger"
	pkgmodels "github.com/aidocs/platform/pkg/models"
)

type fakeRepo struct {
	files   map[string]*pkgmodels.File
	folders map[string]*pkgmodels.Folder
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{files: map[string]*pkgmodels.File{}, folders: map[string]*pkgmodels.Folder{}}
}

func (r *fakeRepo) Create(_ context.Context, f *pkgmodels.File) error {
	if f.ID == "" {
		f.ID = "file-1"
	}
	r.files[f.ID] = f
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (*pkgmodels.File, error) {
	f, ok := r.files[id]
	if !ok {
		return nil, pkgmodels.ErrArtifactNotFound
	}
	return f, nil
}

func (r *fakeRepo) ListByUser(_ context.Context, userID string, folderID *string) ([]*pkgmodels.File, error) {
	var out []*pkgmodels.File
	for _, f := range r.files {
		if f.UserID == userID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *fakeRepo) SoftDelete(_ context.Context, id string) error {
	f, ok := r.files[id]
	if !ok {
		return pkgmodels.ErrArtifactNotFound
	}
	f.IsDeleted = true
	return nil
}

func (r *fakeRepo) CreateFolder(_ context.Context, f *pkgmodels.Folder) error {
	if f.ID == "" {
		f.ID = "folder-1"
	}
	r.folders[f.ID] = f
	return nil
}

func (r *fakeRepo) ListFolders(_ context.Context, userID string) ([]*pkgmodels.Folder, error) {
	var out []*pkgmodels.Folder
	for _, f := range r.folders {
		if f.UserID == userID {
			out = append(out, f)
		}
	}
	return out, nil
}

func newTestService(t *testing.T, maxFileSize int64) (*Service, *fakeRepo) {
	t.Helper()
	blobs, err := filestorage.NewLocalBlobStore(t.TempDir())
	require.NoError(t, err)
	repo := newFakeRepo()
	return New(repo, blobs, maxFileSize, logger.Default()), repo
}

func TestServiceUploadRejectsDisallowedMimeType(t *testing.T) {
	svc, _ := newTestService(t, 0)
	_, err := svc.Upload(context.Background(), "user-1", "", "payload.exe", "application/x-msdownload", 4, strings.NewReader("boom"))
	require.Error(t, err)
	var verr *pkgmodels.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestServiceUploadRejectsOversizedFile(t *testing.T) {
	svc, _ := newTestService(t, 2)
	_, err := svc.Upload(context.Background(), "user-1", "", "note.txt", "text/plain", 5, strings.NewReader("hello"))
	require.Error(t, err)
}

func TestServiceUploadDownloadRoundTrip(t *testing.T) {
	svc, _ := newTestService(t, 0)
	content := "hello platform"

	uploaded, err := svc.Upload(context.Background(), "user-1", "", "note.txt", "text/plain", int64(len(content)), strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), uploaded.SizeBytes)
	assert.NotEmpty(t, uploaded.Checksum)

	f, rc, err := svc.Download(context.Background(), uploaded.ID)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, uploaded.ID, f.ID)
}

func TestServiceDeleteMarksIndexDeleted(t *testing.T) {
	svc, repo := newTestService(t, 0)
	uploaded, err := svc.Upload(context.Background(), "user-1", "", "note.txt", "text/plain", 5, strings.NewReader("hello"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), uploaded.ID))
	assert.True(t, repo.files[uploaded.ID].IsDeleted)
}

func TestServiceCreateFolderValidatesName(t *testing.T) {
	svc, _ := newTestService(t, 0)
	_, err := svc.CreateFolder(context.Background(), "user-1", "", nil)
	assert.Error(t, err)

	folder, err := svc.CreateFolder(context.Background(), "user-1", "Projects", nil)
	require.NoError(t, err)
	assert.Equal(t, "Projects", folder.Name)
}
