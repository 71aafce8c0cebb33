package filestorage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBlobStoreStoreGetDelete(t *testing.T) {
	store, err := NewLocalBlobStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	content := "hello world"

	size, checksum, err := store.Store(ctx, "users/u1/files/f1/hello.txt", strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), size)
	assert.NotEmpty(t, checksum)

	exists, err := store.Exists(ctx, "users/u1/files/f1/hello.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	rc, err := store.Get(ctx, "users/u1/files/f1/hello.txt")
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))

	require.NoError(t, store.Delete(ctx, "users/u1/files/f1/hello.txt"))
	exists, err = store.Exists(ctx, "users/u1/files/f1/hello.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalBlobStoreGetMissing(t *testing.T) {
	store, err := NewLocalBlobStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "nope")
	assert.Error(t, err)
}

func TestLocalBlobStoreNeutralizesTraversal(t *testing.T) {
	base := t.TempDir()
	store, err := NewLocalBlobStore(base)
	require.NoError(t, err)

	_, _, err = store.Store(context.Background(), "../../etc/passwd", strings.NewReader("x"))
	require.NoError(t, err)

	resolved, err := store.resolve("../../etc/passwd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resolved, base))
}
