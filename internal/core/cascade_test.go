package core

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pictocore/internal/infra/persistence/memory"
	"pictocore/pkg/domain"
)

// seedFoodBinder creates b1 with p1 and p2, category c1 listing p1, and
// translations for all of them.
func seedFoodBinder(t *testing.T, svc *Service) {
	t.Helper()
	ctx := context.Background()
	mustBinder(t, svc, "b1", "u1", title("en", "Food"))
	mustPictogram(t, svc, "p1", "b1", 1, domain.LocalizedProps{"en": {domain.PropTitle: "Apple"}, "es": {domain.PropTitle: "Manzana"}}, "c1")
	mustPictogram(t, svc, "p2", "b1", 0, title("en", "Bread"))
	_, err := svc.CreateCategory(ctx, domain.Category{Base: domain.Base{ID: "c1"}, Properties: title("en", "Fruit"), Pictograms: []string{"p1"}})
	require.NoError(t, err)
}

func TestDeleteBinderCascade(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	seedFoodBinder(t, svc)
	mustBinder(t, svc, "b2", "u1", title("en", "Toys"))
	mustPictogram(t, svc, "p3", "b2", 0, title("en", "Ball"))

	deleted, err := svc.DeleteBinder(ctx, "b1")
	require.NoError(t, err)
	require.True(t, deleted)

	for _, id := range []string{"p1", "p2"} {
		_, ok, err := svc.GetPictogram(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok, id)
	}
	for _, id := range []string{"b1", "p1", "p2"} {
		rows, err := svc.TranslationsOf(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, rows, id)
	}

	category, ok, err := svc.GetCategory(ctx, "c1")
	require.NoError(t, err)
	require.True(t, ok, "categories survive binder deletion")
	assert.Equal(t, []string{"p1"}, category.Pictograms)
	rows, err := svc.TranslationsOf(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, ok, err = svc.GetPictogram(ctx, "p3")
	require.NoError(t, err)
	assert.True(t, ok, "other binders are untouched")
}

func TestDeleteBinderClearsOrphans(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, WithRulesEngine(nil))
	mustPictogram(t, svc, "p9", "gone", 0, title("en", "Orphan"))

	deleted, err := svc.DeleteBinder(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, deleted)
	_, ok, err := svc.GetPictogram(ctx, "p9")
	require.NoError(t, err)
	assert.False(t, ok)
}

// failingStore returns a memory store whose committer fails once fail is set.
func failingStore(fail *atomic.Bool, err error) *memory.Store {
	return memory.NewStore(memory.WithCommitter(memory.CommitterFunc(func(context.Context, []domain.RowChange) error {
		if fail.Load() {
			return err
		}
		return nil
	})))
}

func TestDeleteBinderCommitFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	var fail atomic.Bool
	diskFull := errors.New("disk full")
	svc := NewService(failingStore(&fail, diskFull), WithClock(fixedClock()))
	seedFoodBinder(t, svc)

	before, err := svc.Export(ctx)
	require.NoError(t, err)

	fail.Store(true)
	_, err = svc.DeleteBinder(ctx, "b1")
	var txErr domain.TransactionError
	require.ErrorAs(t, err, &txErr)
	require.ErrorIs(t, err, diskFull)

	after, err := svc.Export(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("state changed after failed commit (-before +after):\n%s", diff)
	}
}

func TestDeleteCategoryCommitFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	var fail atomic.Bool
	diskFull := errors.New("disk full")
	svc := NewService(failingStore(&fail, diskFull), WithClock(fixedClock()))
	seedFoodBinder(t, svc)

	before, err := svc.Export(ctx)
	require.NoError(t, err)

	fail.Store(true)
	_, err = svc.DeleteCategory(ctx, "c1")
	var txErr domain.TransactionError
	require.ErrorAs(t, err, &txErr)
	require.ErrorIs(t, err, diskFull)

	p1, _, err := svc.GetPictogram(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, p1.Categories)
	_, ok, err := svc.GetCategory(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, ok)
	rows, err := svc.TranslationsOf(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	after, err := svc.Export(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("state changed after failed commit (-before +after):\n%s", diff)
	}
}

func TestDeleteCategoryUnlinksPictograms(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	seedFoodBinder(t, svc)
	_, err := svc.CreateCategory(ctx, domain.Category{Base: domain.Base{ID: "c2"}})
	require.NoError(t, err)
	_, _, err = svc.PatchPictogram(ctx, "p2", domain.PictogramPatch{Categories: &[]string{"c1", "c2"}})
	require.NoError(t, err)

	deleted, err := svc.DeleteCategory(ctx, "c1")
	require.NoError(t, err)
	require.True(t, deleted)

	p1, _, err := svc.GetPictogram(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, p1.Categories)
	p2, _, err := svc.GetPictogram(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, p2.Categories)

	rows, err := svc.TranslationsOf(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, rows)
	_, ok, err := svc.GetCategory(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeletePictogramLeavesBinderList(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.CreateBinder(ctx, domain.Binder{Base: domain.Base{ID: "b1"}, AuthorID: "u1", Pictograms: []string{"p1"}})
	require.NoError(t, err)
	mustPictogram(t, svc, "p1", "b1", 0, nil)

	_, err = svc.DeletePictogram(ctx, "p1")
	require.NoError(t, err)
	b, _, err := svc.GetBinder(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, b.Pictograms)
}

func TestMovePictogram(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.CreateBinder(ctx, domain.Binder{Base: domain.Base{ID: "b1"}, AuthorID: "u1", Pictograms: []string{"p1"}})
	require.NoError(t, err)
	mustBinder(t, svc, "b2", "u1", nil)
	mustPictogram(t, svc, "p1", "b1", 0, title("en", "Apple"))

	moved, err := svc.MovePictogram(ctx, "p1", "b2")
	require.NoError(t, err)
	assert.Equal(t, "b2", moved.BinderID)

	b1, _, err := svc.GetBinder(ctx, "b1")
	require.NoError(t, err)
	assert.Empty(t, b1.Pictograms)
	b2, _, err := svc.GetBinder(ctx, "b2")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, b2.Pictograms)

	got, err := svc.PictogramsOfBinder(ctx, "b2")
	require.NoError(t, err)
	require.Len(t, got, 1)

	_, err = svc.MovePictogram(ctx, "p1", "nowhere")
	assert.True(t, IsNotFound(err))
	_, err = svc.MovePictogram(ctx, "ghost", "b1")
	var nf ErrNotFound
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, domain.EntityPictogram, nf.Entity)
	assert.Equal(t, "pictogram ghost not found", nf.Error())
}

func TestShareBinder(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	mustUser(t, svc, "owner", "owner@example.com")
	mustUser(t, svc, "friend", "friend@example.com")
	mustBinder(t, svc, "b1", "owner", title("en", "Food"))

	shared, err := svc.ShareBinder(ctx, "b1", "friend")
	require.NoError(t, err)
	assert.Equal(t, []string{"friend"}, shared.Users)

	friend, _, err := svc.GetUser(ctx, "friend")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, friend.Binders)

	// sharing twice keeps the lists unique
	_, err = svc.ShareBinder(ctx, "b1", "friend")
	require.NoError(t, err)
	friend, _, err = svc.GetUser(ctx, "friend")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, friend.Binders)

	rows, err := svc.HistoryForTarget(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, domain.ActionShare, rows[0].Action)
	assert.Equal(t, "owner", rows[0].PerformedBy)

	binders, err := svc.BindersOfUser(ctx, "friend")
	require.NoError(t, err)
	require.Len(t, binders, 1)
	assert.Equal(t, "b1", binders[0].ID)

	_, err = svc.ShareBinder(ctx, "b1", "nobody")
	assert.True(t, IsNotFound(err))
}
