package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanKey(t *testing.T) {
	for _, bad := range []string{"", "/abs", "../x", "a/../../x", "a//b", "a\\b", "."} {
		_, err := CleanKey(bad)
		assert.ErrorIs(t, err, ErrInvalidKey, bad)
	}
	k, err := CleanKey("u1/photo_1_1700000000000.jpg")
	require.NoError(t, err)
	assert.Equal(t, "u1", Owner(k))
}

func TestFSBucket_PutOpenListDelete(t *testing.T) {
	ctx := context.Background()
	b, err := NewFSBucket(t.TempDir(), "http://cdn.local/photos/")
	require.NoError(t, err)

	_, err = b.Put(ctx, "u1/photo_1_1.jpg", strings.NewReader("one"))
	require.NoError(t, err)
	n, err := b.Put(ctx, "u1/photo_2_2.jpg", strings.NewReader("two!"))
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	rc, err := b.Open(ctx, "u1/photo_2_2.jpg")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "two!", string(data))

	keys, err := b.List(ctx, "u1/")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1/photo_1_1.jpg", "u1/photo_2_2.jpg"}, keys)
	assert.Equal(t, "http://cdn.local/photos/u1/photo_1_1.jpg", b.URL(keys[0]))

	require.NoError(t, b.DeletePrefix(ctx, "u1/"))
	_, err = b.Open(ctx, "u1/photo_1_1.jpg")
	assert.ErrorIs(t, err, ErrNotFound)

	keys, err = b.List(ctx, "u1/")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestFSBucket_PutHonoursCancel(t *testing.T) {
	b, err := NewFSBucket(t.TempDir(), "")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = b.Put(ctx, "u1/x.jpg", strings.NewReader("data"))
	assert.ErrorIs(t, err, context.Canceled)
}
