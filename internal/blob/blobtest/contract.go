// Package blobtest holds the behavioural contract every blob backend must meet.
package blobtest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pictocore/internal/blob/core"
)

// RunContract exercises create-only puts, reads, prefix listing and idempotent
// deletes against a fresh store.
func RunContract(t *testing.T, store core.Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Head(ctx, "pictograms/p1/image")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, _, err = store.Get(ctx, "pictograms/p1/image")
	assert.ErrorIs(t, err, core.ErrNotFound)

	info, err := store.Put(ctx, "pictograms/p1/image", bytes.NewReader([]byte("png-bytes")), core.PutOptions{
		ContentType: "image/png",
		Metadata:    map[string]string{"owner": "p1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "pictograms/p1/image", info.Key)
	assert.EqualValues(t, len("png-bytes"), info.Size)

	_, err = store.Put(ctx, "pictograms/p1/image", bytes.NewReader([]byte("other")), core.PutOptions{})
	assert.ErrorIs(t, err, core.ErrExists)

	_, err = store.Put(ctx, "pictograms/p1/sound", bytes.NewReader([]byte("ogg")), core.PutOptions{ContentType: "audio/ogg"})
	require.NoError(t, err)
	_, err = store.Put(ctx, "binders/b1/image", bytes.NewReader([]byte("jpg")), core.PutOptions{ContentType: "image/jpeg"})
	require.NoError(t, err)

	got, rc, err := store.Get(ctx, "pictograms/p1/image")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "png-bytes", string(body))
	assert.Equal(t, "image/png", got.ContentType)

	head, err := store.Head(ctx, "pictograms/p1/image")
	require.NoError(t, err)
	assert.Equal(t, got.ContentType, head.ContentType)

	list, err := store.List(ctx, "pictograms/p1/")
	require.NoError(t, err)
	keys := make([]string, 0, len(list))
	for _, item := range list {
		keys = append(keys, item.Key)
	}
	assert.Equal(t, []string{"pictograms/p1/image", "pictograms/p1/sound"}, keys)

	deleted, err := store.Delete(ctx, "pictograms/p1/image")
	require.NoError(t, err)
	assert.True(t, deleted)
	_, err = store.Head(ctx, "pictograms/p1/image")
	assert.ErrorIs(t, err, core.ErrNotFound)

	for _, bad := range []string{"", "/abs", "a/../b", "x.meta"} {
		_, err := store.Put(ctx, bad, bytes.NewReader(nil), core.PutOptions{})
		assert.Error(t, err, "key %q", bad)
		assert.False(t, errors.Is(err, core.ErrExists))
	}
}
