package core

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pictocore/internal/blob"
	"pictocore/pkg/domain"
	"pictocore/pkg/schema"
)

func TestAttachPictogramAssets(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemory()
	svc, _ := newTestService(t, WithBlobStore(blobs))
	mustBinder(t, svc, "b1", "u1", nil)
	mustPictogram(t, svc, "p1", "b1", 0, nil)

	first, err := svc.AttachPictogramImage(ctx, "p1", strings.NewReader("png-1"), "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first, "pictograms/p1/image-"), first)

	second, err := svc.AttachPictogramImage(ctx, "p1", strings.NewReader("png-2"), "image/png")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	p, _, err := svc.GetPictogram(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, second, p.Image)

	_, err = blobs.Head(ctx, first)
	assert.ErrorIs(t, err, blob.ErrNotFound, "replaced asset is removed")

	info, rc, err := svc.OpenAsset(ctx, second)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "png-2", string(body))
	assert.Equal(t, "image/png", info.ContentType)

	sound, err := svc.AttachPictogramSound(ctx, "p1", strings.NewReader("ogg"), "audio/ogg")
	require.NoError(t, err)
	p, _, err = svc.GetPictogram(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, sound, p.Sound)

	_, err = svc.AssetURL(ctx, second)
	assert.ErrorIs(t, err, blob.ErrUnsupported)
}

func TestAttachRejectsWrongContentType(t *testing.T) {
	svc, _ := newTestService(t, WithBlobStore(blob.NewMemory()))
	_, err := svc.AttachPictogramSound(context.Background(), "p1", strings.NewReader("x"), "image/png")
	verr, ok := schema.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, schema.KindInvalidContentType, verr.Kind())
}

func TestAttachToMissingRecordDropsUpload(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemory()
	svc, _ := newTestService(t, WithBlobStore(blobs))

	_, err := svc.AttachCategoryImage(ctx, "ghost", strings.NewReader("x"), "image/jpeg")
	var nf ErrNotFound
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, domain.EntityCategory, nf.Entity)

	left, err := blobs.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestAttachBinderImage(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, WithBlobStore(blob.NewMemory()))
	mustBinder(t, svc, "b1", "u1", title("en", "Food"))
	key, err := svc.AttachBinderImage(ctx, "b1", strings.NewReader("gif"), "image/gif")
	require.NoError(t, err)
	b, _, err := svc.GetBinder(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, key, b.Image)
}

func TestAssetsWithoutBlobStore(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.AttachBinderImage(ctx, "b1", strings.NewReader("x"), "image/png")
	assert.ErrorIs(t, err, ErrNoBlobStore)
	_, _, err = svc.OpenAsset(ctx, "k")
	assert.ErrorIs(t, err, ErrNoBlobStore)
	_, err = svc.AssetURL(ctx, "k")
	assert.ErrorIs(t, err, ErrNoBlobStore)
}
