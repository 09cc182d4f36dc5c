package object

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("files", "http://cdn.local")

	info, err := store.Put(ctx, "files/u1/a.txt", strings.NewReader("hello"), -1, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)

	rc, err := store.Get(ctx, "files/u1/a.txt")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))

	ok, err := store.Exists(ctx, "files/u1/a.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Delete(ctx, "files/u1/a.txt"))
	assert.ErrorIs(t, store.Delete(ctx, "files/u1/a.txt"), ErrObjectNotFound)
	_, err = store.Get(ctx, "files/u1/a.txt")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.Empty(t, store.Keys())
}

func TestPublicAndPresignedURLs(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("files", "http://cdn.local")
	_, err := store.Put(ctx, "files/u1/b.png", strings.NewReader("x"), 1, "image/png")
	require.NoError(t, err)

	assert.Equal(t, "http://cdn.local/files/files/u1/b.png", store.PublicURL("files/u1/b.png"))
	assert.Empty(t, store.PublicURL(""))

	u, err := store.PresignGet(ctx, "files/u1/b.png", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "http://cdn.local/files/files/u1/b.png?expires=900", u)

	_, err = store.PresignGet(ctx, "missing", time.Minute)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}
