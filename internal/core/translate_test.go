package core

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pictocore/pkg/domain"
	"pictocore/pkg/schema"
)

func TestTranslatedPictogramFallsBackToEmpty(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	seedFoodBinder(t, svc)

	p, ok, err := svc.TranslatedPictogram(ctx, "p1", "es")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Manzana", p.Properties.Text("es", domain.PropTitle))
	assert.Equal(t, "Apple", p.Properties.Text("en", domain.PropTitle), "other locales are kept")

	p, ok, err = svc.TranslatedPictogram(ctx, "p2", "fr")
	require.NoError(t, err)
	require.True(t, ok)
	title, present := p.Properties["fr"][domain.PropTitle]
	assert.True(t, present)
	assert.Equal(t, "", title)

	_, ok, err = svc.TranslatedPictogram(ctx, "ghost", "en")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTranslatedBinderResolvesEveryKey(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	mustBinder(t, svc, "b1", "u1", title("en", "Food"))
	require.NoError(t, svc.SetTranslation(ctx, "b1", "en", domain.PropDescription, "Things to eat"))

	b, ok, err := svc.TranslatedBinder(ctx, "b1", "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]string{domain.PropTitle: "Food", domain.PropDescription: "Things to eat"}, b.Properties["en"])
}

func TestDeletedTranslationResolvesToEmpty(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	mustBinder(t, svc, "b1", "u1", title("en", "Food"))
	require.NoError(t, svc.SetTranslation(ctx, "b1", "en", domain.PropTitle, ""))

	b, ok, err := svc.TranslatedBinder(ctx, "b1", "en")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "", b.Properties.Text("en", domain.PropTitle), "no row means no translation")

	stored, _, err := svc.GetBinder(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Food", stored.Properties.Text("en", domain.PropTitle))

	binders, err := svc.TranslatedBinders(ctx, "en")
	require.NoError(t, err)
	require.Len(t, binders, 1)
	assert.Equal(t, "", binders[0].Properties.Text("en", domain.PropTitle))
}

func TestTranslatedBindersIsBatched(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("b%02d", i)
		mustBinder(t, svc, id, "u1", domain.LocalizedProps{"en": {domain.PropTitle: "binder " + id}, "es": {domain.PropTitle: "carpeta " + id}})
	}
	store.ResetStats()

	binders, err := svc.TranslatedBinders(ctx, "es")
	require.NoError(t, err)
	require.Len(t, binders, 20)
	assert.Equal(t, "b00", binders[0].ID)
	assert.Equal(t, "carpeta b00", binders[0].Properties.Text("es", domain.PropTitle))
	assert.Equal(t, "", binders[0].Properties.Text("es", domain.PropDescription))

	stats := store.Stats()
	assert.Equal(t, int64(1), stats.Count(domain.OpAll, domain.CollectionBinders))
	assert.Equal(t, int64(1), stats.Count(domain.OpScanMany, domain.CollectionTranslations))
	assert.Zero(t, stats.Total(domain.OpGet))
	assert.Zero(t, stats.Count(domain.OpScan, domain.CollectionTranslations))
}

func TestTranslatedQueriesRejectInvalidLocale(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, _, err := svc.TranslatedCategory(ctx, "c1", "not a locale")
	verr, ok := schema.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, schema.KindInvalidLocale, verr.Kind())

	_, err = svc.TranslatedPictogramsOfBinder(ctx, "b1", "??")
	_, ok = schema.AsValidation(err)
	assert.True(t, ok)
}

func TestDefaultLocaleOption(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, WithDefaultLocale("es"))
	seedFoodBinder(t, svc)
	p, _, err := svc.TranslatedPictogram(ctx, "p1", "")
	require.NoError(t, err)
	assert.Equal(t, "Manzana", p.Properties.Text("es", domain.PropTitle))
}

// b1 holds p1; c1 groups p1. Resolving the binder view in English and
// Spanish must use the rows of the requested locale only.
func TestBinderViewScenario(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	mustUser(t, svc, "u1", "tutor@example.com")
	mustBinder(t, svc, "b1", "u1", domain.LocalizedProps{"en": {domain.PropTitle: "Breakfast"}, "es": {domain.PropTitle: "Desayuno"}})
	mustPictogram(t, svc, "p1", "b1", 0, domain.LocalizedProps{"en": {domain.PropTitle: "Milk"}, "es": {domain.PropTitle: "Leche"}}, "c1")
	_, err := svc.CreateCategory(ctx, domain.Category{
		Base:       domain.Base{ID: "c1"},
		Properties: domain.LocalizedProps{"en": {domain.PropTitle: "Drinks"}},
		Pictograms: []string{"p1"},
	})
	require.NoError(t, err)

	binders, err := svc.TranslatedBindersOfUser(ctx, "u1", "es")
	require.NoError(t, err)
	require.Len(t, binders, 1)
	assert.Equal(t, "Desayuno", binders[0].Properties.Text("es", domain.PropTitle))
	assert.Equal(t, "", binders[0].Properties.Text("es", domain.PropDescription))

	pictograms, err := svc.TranslatedPictogramsOfBinder(ctx, "b1", "es")
	require.NoError(t, err)
	require.Len(t, pictograms, 1)
	assert.Equal(t, "Leche", pictograms[0].Properties.Text("es", domain.PropTitle))

	categories, err := svc.TranslatedCategoriesOfPictograms(ctx, pictograms, "es")
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, "", categories[0].Properties.Text("es", domain.PropTitle), "no Spanish row for c1")

	categories, err = svc.TranslatedCategoriesOfPictograms(ctx, pictograms, "en")
	require.NoError(t, err)
	assert.Equal(t, "Drinks", categories[0].Properties.Text("en", domain.PropTitle))
}

func TestTranslatedPictogramsOfBinderIsBatched(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	mustBinder(t, svc, "b1", "u1", nil)
	for i := 0; i < 50; i++ {
		mustPictogram(t, svc, fmt.Sprintf("p%02d", i), "b1", 50-i, title("en", fmt.Sprintf("word %d", i)))
	}
	store.ResetStats()

	pictograms, err := svc.TranslatedPictogramsOfBinder(ctx, "b1", "en")
	require.NoError(t, err)
	require.Len(t, pictograms, 50)
	assert.Equal(t, "p49", pictograms[0].ID)
	assert.Equal(t, "word 49", pictograms[0].Properties.Text("en", domain.PropTitle))

	stats := store.Stats()
	assert.Equal(t, int64(1), stats.Count(domain.OpScan, domain.CollectionPictograms))
	assert.Equal(t, int64(1), stats.Count(domain.OpScanMany, domain.CollectionTranslations))
	assert.Zero(t, stats.Total(domain.OpGet))
	assert.Zero(t, stats.Count(domain.OpScan, domain.CollectionTranslations))
}

func TestTranslatedBinderOfEmptyBinderSkipsTranslationScan(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	mustBinder(t, svc, "b1", "u1", nil)
	store.ResetStats()

	pictograms, err := svc.TranslatedPictogramsOfBinder(ctx, "b1", "en")
	require.NoError(t, err)
	assert.Empty(t, pictograms)
	assert.Zero(t, store.Stats().Count(domain.OpScanMany, domain.CollectionTranslations))
}
