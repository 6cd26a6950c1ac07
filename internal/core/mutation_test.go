package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pictocore/pkg/domain"
	"pictocore/pkg/schema"
)

func TestCreateRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	mustUser(t, svc, "u1", "ana@example.com")

	_, err := svc.CreateUser(ctx, domain.User{Base: domain.Base{ID: "u1"}, Name: "x", Email: "other@example.com", Role: domain.RoleUser})
	var dup domain.DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, domain.CollectionUsers, dup.Collection)
	assert.Empty(t, dup.Index)

	_, err = svc.CreateUser(ctx, domain.User{Base: domain.Base{ID: "u2"}, Name: "x", Email: "ANA@example.com ", Role: domain.RoleUser})
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, domain.IndexEmail, dup.Index)

	_, ok, err := svc.GetUser(ctx, "u2")
	require.NoError(t, err)
	assert.False(t, ok)

	got, ok, err := svc.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ana@example.com", got.Email, "duplicate insert must not overwrite")
}

func TestCreateValidationIsDistinctFromDuplicate(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	store.ResetStats()

	_, err := svc.CreateUser(ctx, domain.User{Name: "x", Email: "not-an-email", Role: domain.RoleUser})
	verr, ok := schema.AsValidation(err)
	require.True(t, ok)
	assert.True(t, verr.Has("email", schema.KindInvalidEmail))
	assert.False(t, domain.IsDuplicateKey(err))
	assert.Zero(t, store.Stats().Total(domain.OpInsert))
}

func TestCreateGeneratesIDsAndTimestamps(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	b, err := svc.CreateBinder(ctx, domain.Binder{AuthorID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "id-1", b.ID)
	assert.False(t, b.CreatedAt.IsZero())
	assert.Equal(t, b.CreatedAt, b.UpdatedAt)
}

func TestDefaultIDGeneratorUsesUUIDv7(t *testing.T) {
	svc := NewService(nil)
	id := svc.newID()
	require.Len(t, id, 36)
	assert.Equal(t, byte('7'), id[14])
}

func TestUpdateMissingIsNoop(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, updated, err := svc.UpdateBinder(ctx, domain.Binder{Base: domain.Base{ID: "ghost"}, AuthorID: "u1"})
	require.NoError(t, err)
	assert.False(t, updated)
	_, ok, err := svc.GetBinder(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, ok, "update must not create")

	_, updated, err = svc.PatchPictogram(ctx, "ghost", domain.PictogramPatch{Image: strptr("x")})
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestUpdateKeepsCreatedAtAndSyncsTranslations(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	created := mustBinder(t, svc, "b1", "u1", title("en", "Food"))

	next := created.Clone()
	next.Properties["es"] = map[string]string{domain.PropTitle: "Comida", domain.PropDescription: ""}
	updated, ok, err := svc.UpdateBinder(ctx, next)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	rows, err := svc.TranslationsOf(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, rows, 2, "empty values are not stored")
	assert.Equal(t, domain.Translation{ObjectID: "b1", Locale: "en", Key: domain.PropTitle, Value: "Food"}, rows[0])
	assert.Equal(t, "Comida", rows[1].Value)
}

func TestUpdateDropsRowsOfRemovedProperties(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	created := mustBinder(t, svc, "b1", "u1", domain.LocalizedProps{"en": {domain.PropTitle: "Food", domain.PropDescription: "Things to eat"}})
	require.NoError(t, svc.SetTranslation(ctx, "b1", "es", domain.PropTitle, "Comida"))

	next := created.Clone()
	next.Properties["en"][domain.PropDescription] = ""
	_, _, err := svc.UpdateBinder(ctx, next)
	require.NoError(t, err)
	b, _, err := svc.TranslatedBinder(ctx, "b1", "en")
	require.NoError(t, err)
	assert.Equal(t, "Food", b.Properties.Text("en", domain.PropTitle))
	assert.Equal(t, "", b.Properties.Text("en", domain.PropDescription))

	next.Properties = domain.LocalizedProps{}
	_, _, err = svc.UpdateBinder(ctx, next)
	require.NoError(t, err)
	b, _, err = svc.TranslatedBinder(ctx, "b1", "en")
	require.NoError(t, err)
	assert.Equal(t, "", b.Properties.Text("en", domain.PropTitle))

	rows, err := svc.TranslationsOf(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, rows, 1, "rows set directly are not part of the stored bag")
	assert.Equal(t, "Comida", rows[0].Value)
}

func TestPatchPictogram(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	mustBinder(t, svc, "b1", "u1", nil)
	mustPictogram(t, svc, "p1", "b1", 0, title("en", "Apple"))

	order := 3
	fav := true
	got, ok, err := svc.PatchPictogram(ctx, "p1", domain.PictogramPatch{Order: &order, Favorite: &fav})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, got.Order)
	assert.Equal(t, "Apple", got.Properties.Text("en", domain.PropTitle))

	neg := -1
	_, _, err = svc.PatchPictogram(ctx, "p1", domain.PictogramPatch{Order: &neg})
	verr, isValidation := schema.AsValidation(err)
	require.True(t, isValidation)
	assert.Equal(t, schema.KindNegative, verr.Kind())
}

func TestPictogramRequiresExistingBinder(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.CreatePictogram(ctx, domain.Pictogram{Base: domain.Base{ID: "p1"}, BinderID: "missing"})
	var violation domain.RuleViolationError
	require.ErrorAs(t, err, &violation)
	require.Len(t, violation.Result.Violations, 1)
	assert.Equal(t, "pictogram_binder_reference", violation.Result.Violations[0].Rule)

	_, ok, err := svc.GetPictogram(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, ok)
	rows, err := svc.TranslationsOf(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRulesCanBeDisabled(t *testing.T) {
	svc, _ := newTestService(t, WithRulesEngine(nil))
	mustPictogram(t, svc, "p1", "orphan", 0, nil)
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	mustUser(t, svc, "u1", "a@b.co")
	mustBinder(t, svc, "b1", "u1", title("en", "Food"))
	mustPictogram(t, svc, "p1", "b1", 0, title("en", "Apple"))

	steps := []struct {
		name    string
		id      string
		existed bool
		del     func(context.Context, string) (bool, error)
	}{
		{"pictogram", "p1", true, svc.DeletePictogram},
		{"binder", "b1", true, svc.DeleteBinder},
		{"category", "c-none", false, svc.DeleteCategory},
		{"user", "u1", true, svc.DeleteUser},
	}
	for _, step := range steps {
		first, err := step.del(ctx, step.id)
		require.NoError(t, err, step.name)
		assert.Equal(t, step.existed, first, step.name)
		second, err := step.del(ctx, step.id)
		require.NoError(t, err, step.name)
		assert.False(t, second, step.name)
	}
}

func TestDeletePictogramRemovesTranslations(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	mustBinder(t, svc, "b1", "u1", nil)
	mustPictogram(t, svc, "p1", "b1", 0, domain.LocalizedProps{"en": {domain.PropTitle: "Apple"}, "es": {domain.PropTitle: "Manzana"}})

	deleted, err := svc.DeletePictogram(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, deleted)
	rows, err := svc.TranslationsOf(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSetTranslation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	require.NoError(t, svc.SetTranslation(ctx, "p1", "pt-br", domain.PropTitle, "Maçã"))
	require.NoError(t, svc.SetTranslation(ctx, "p1", "pt-BR", domain.PropTitle, "Maçã verde"))

	rows, err := svc.TranslationsOf(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "pt-BR", rows[0].Locale)
	assert.Equal(t, "Maçã verde", rows[0].Value)

	require.NoError(t, svc.SetTranslation(ctx, "p1", "pt-br", domain.PropTitle, ""))
	rows, err = svc.TranslationsOf(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, rows)

	err = svc.SetTranslation(ctx, "p1", "??", domain.PropTitle, "")
	_, ok := schema.AsValidation(err)
	assert.True(t, ok)
}

func TestRecordHistoryAppends(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	h, err := svc.RecordHistory(ctx, domain.History{
		EntityType: domain.EntityUser, TargetID: "u1", Action: domain.ActionSetupStarted, PerformedBy: "u1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, h.ID)
	assert.False(t, h.Timestamp.IsZero())

	_, err = svc.RecordHistory(ctx, h)
	assert.True(t, domain.IsDuplicateKey(err), "history rows are never overwritten")
}

func TestActorMutationsAppendHistory(t *testing.T) {
	ctx := WithActor(context.Background(), "u1")
	svc, _ := newTestService(t)
	mustUser(t, svc, "u1", "a@b.co")

	_, err := svc.CreateBinder(ctx, domain.Binder{Base: domain.Base{ID: "b1"}, AuthorID: "u1", Properties: title("en", "Food")})
	require.NoError(t, err)
	fav := true
	_, _, err = svc.PatchBinder(ctx, "b1", domain.BinderPatch{Favorite: &fav})
	require.NoError(t, err)
	_, err = svc.DeleteBinder(ctx, "b1")
	require.NoError(t, err)

	rows, err := svc.HistoryForTarget(context.Background(), "b1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []domain.Action{domain.ActionCreate, domain.ActionUpdate, domain.ActionDelete},
		[]domain.Action{rows[0].Action, rows[1].Action, rows[2].Action})
	assert.Equal(t, "u1", rows[1].PerformedBy)
	require.Contains(t, rows[1].Changes, "favorite")
	assert.Equal(t, true, rows[1].Changes["favorite"].After)
	assert.NotContains(t, rows[1].Changes, "updated_at")

	byPerformer, err := svc.HistoryForPerformer(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, byPerformer, 3)

	// without an actor nothing is appended
	mustUser(t, svc, "u2", "c@d.co")
	rows, err = svc.HistoryForTarget(context.Background(), "u2")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	boom := errors.New("boom")
	err := svc.WithTransaction(ctx, []domain.Collection{domain.CollectionBinders, domain.CollectionTranslations}, func(tx *Tx) error {
		if _, err := tx.CreateBinder(domain.Binder{Base: domain.Base{ID: "b1"}, AuthorID: "u1"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	_, ok, err := svc.GetBinder(ctx, "b1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTransactionErrorWrapsCallbackFailures(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	boom := errors.New("boom")
	err := svc.WithTransaction(ctx, []domain.Collection{domain.CollectionBinders}, func(*Tx) error { return boom })
	var txErr domain.TransactionError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, "transaction", txErr.Op)
	assert.ErrorIs(t, err, boom)

	_, err = svc.CreatePictogram(ctx, domain.Pictogram{Base: domain.Base{ID: "p1"}, BinderID: "missing"})
	require.ErrorAs(t, err, &txErr)
	var violation domain.RuleViolationError
	assert.ErrorAs(t, err, &violation)

	_, err = svc.CreateBinder(ctx, domain.Binder{AuthorID: ""})
	_, isValidation := schema.AsValidation(err)
	require.True(t, isValidation)
	assert.False(t, errors.As(err, &txErr), "validation errors are returned as is")

	mustBinder(t, svc, "b1", "u1", nil)
	_, err = svc.CreateBinder(ctx, domain.Binder{Base: domain.Base{ID: "b1"}, AuthorID: "u1"})
	require.True(t, domain.IsDuplicateKey(err))
	assert.False(t, errors.As(err, &txErr), "duplicate keys are returned as is")

	_, err = svc.MovePictogram(ctx, "ghost", "b1")
	require.True(t, IsNotFound(err))
	assert.False(t, errors.As(err, &txErr))
}

func TestOutOfScopeWriteFailsTransaction(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, WithRulesEngine(nil))
	err := svc.WithTransaction(ctx, []domain.Collection{domain.CollectionBinders}, func(tx *Tx) error {
		_, err := tx.CreateBinder(domain.Binder{Base: domain.Base{ID: "b1"}, AuthorID: "u1", Properties: title("en", "Food")})
		return err
	})
	require.ErrorIs(t, err, domain.ErrOutOfScope)
	_, ok, err := svc.GetBinder(ctx, "b1")
	require.NoError(t, err)
	assert.False(t, ok)
}
