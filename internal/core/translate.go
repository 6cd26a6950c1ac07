package core

import (
	"context"
	"sort"

	"pictocore/pkg/domain"
)

var scopeTranslated = []domain.Collection{
	domain.CollectionUsers,
	domain.CollectionBinders,
	domain.CollectionPictograms,
	domain.CollectionCategories,
	domain.CollectionTranslations,
}

// overlay resolves the translatable keys of one locale from rows onto a copy
// of props. Every translatable key of the entity type is present in the
// result and a key without a row resolves to "", whatever the stored bag says.
func overlay(entity domain.EntityType, props domain.LocalizedProps, locale string, rows []domain.Translation) domain.LocalizedProps {
	out := props.Clone()
	if out == nil {
		out = make(domain.LocalizedProps, 1)
	}
	bag := out[locale]
	if bag == nil {
		bag = make(map[string]string)
		out[locale] = bag
	}
	keys := domain.TranslatableKeys[entity]
	for _, k := range keys {
		bag[k] = ""
	}
	for _, t := range rows {
		if t.Locale != locale {
			continue
		}
		for _, k := range keys {
			if t.Key == k {
				bag[k] = t.Value
			}
		}
	}
	return out
}

func groupByObject(rows []domain.Translation) map[string][]domain.Translation {
	out := make(map[string][]domain.Translation)
	for _, t := range rows {
		out[t.ObjectID] = append(out[t.ObjectID], t)
	}
	return out
}

func objectLocaleKeys[T any](items []T, id func(T) string, locale string) []string {
	keys := make([]string, 0, len(items))
	for _, it := range items {
		keys = append(keys, domain.ObjectLocaleKey(id(it), locale))
	}
	return keys
}

func translationsOf(v domain.TransactionView, objectID string) ([]domain.Translation, error) {
	return scan[domain.Translation](v, domain.CollectionTranslations, domain.IndexObject, objectID)
}

// TranslatedBinder returns the binder with its locale bag resolved from
// translation rows. An empty locale selects the service default.
func (s *Service) TranslatedBinder(ctx context.Context, id, locale string) (b domain.Binder, ok bool, err error) {
	if locale, err = s.ResolveLocale(locale); err != nil {
		return domain.Binder{}, false, err
	}
	scope := []domain.Collection{domain.CollectionBinders, domain.CollectionTranslations}
	err = s.view(ctx, "translated_binder", scope, func(v domain.TransactionView) error {
		b, ok, err = get[domain.Binder](v, domain.CollectionBinders, id)
		if err != nil || !ok {
			return err
		}
		rows, err := translationsOf(v, id)
		if err != nil {
			return err
		}
		b.Properties = overlay(domain.EntityBinder, b.Properties, locale, rows)
		return nil
	})
	return b, ok, err
}

// TranslatedPictogram returns the pictogram with its locale bag resolved.
func (s *Service) TranslatedPictogram(ctx context.Context, id, locale string) (p domain.Pictogram, ok bool, err error) {
	if locale, err = s.ResolveLocale(locale); err != nil {
		return domain.Pictogram{}, false, err
	}
	err = s.view(ctx, "translated_pictogram", scopePictograms, func(v domain.TransactionView) error {
		p, ok, err = get[domain.Pictogram](v, domain.CollectionPictograms, id)
		if err != nil || !ok {
			return err
		}
		rows, err := translationsOf(v, id)
		if err != nil {
			return err
		}
		p.Properties = overlay(domain.EntityPictogram, p.Properties, locale, rows)
		return nil
	})
	return p, ok, err
}

// TranslatedCategory returns the category with its locale bag resolved.
func (s *Service) TranslatedCategory(ctx context.Context, id, locale string) (c domain.Category, ok bool, err error) {
	if locale, err = s.ResolveLocale(locale); err != nil {
		return domain.Category{}, false, err
	}
	err = s.view(ctx, "translated_category", scopeCategories, func(v domain.TransactionView) error {
		c, ok, err = get[domain.Category](v, domain.CollectionCategories, id)
		if err != nil || !ok {
			return err
		}
		rows, err := translationsOf(v, id)
		if err != nil {
			return err
		}
		c.Properties = overlay(domain.EntityCategory, c.Properties, locale, rows)
		return nil
	})
	return c, ok, err
}

// TranslatedPictogramsOfBinder resolves every pictogram of a binder with one
// index scan for the pictograms and one batched scan for their translations.
// The result is in display order.
func (s *Service) TranslatedPictogramsOfBinder(ctx context.Context, binderID, locale string) (out []domain.Pictogram, err error) {
	if locale, err = s.ResolveLocale(locale); err != nil {
		return nil, err
	}
	err = s.view(ctx, "translated_pictograms_of_binder", scopePictograms, func(v domain.TransactionView) error {
		pictograms, err := scan[domain.Pictogram](v, domain.CollectionPictograms, domain.IndexBinder, binderID)
		if err != nil {
			return err
		}
		out, err = translatePictograms(v, pictograms, locale)
		return err
	})
	SortByDisplayOrder(out)
	return out, err
}

func translatePictograms(v domain.TransactionView, pictograms []domain.Pictogram, locale string) ([]domain.Pictogram, error) {
	keys := objectLocaleKeys(pictograms, func(p domain.Pictogram) string { return p.ID }, locale)
	rows, err := scanMany[domain.Translation](v, domain.CollectionTranslations, domain.IndexObjectLocale, keys)
	if err != nil {
		return nil, err
	}
	byObject := groupByObject(rows)
	out := make([]domain.Pictogram, 0, len(pictograms))
	for _, p := range pictograms {
		p.Properties = overlay(domain.EntityPictogram, p.Properties, locale, byObject[p.ID])
		out = append(out, p)
	}
	return out, nil
}

// TranslatedCategoriesOfPictograms resolves the categories of pictograms
// with one batched translation scan.
func (s *Service) TranslatedCategoriesOfPictograms(ctx context.Context, pictograms []domain.Pictogram, locale string) (out []domain.Category, err error) {
	if locale, err = s.ResolveLocale(locale); err != nil {
		return nil, err
	}
	err = s.view(ctx, "translated_categories_of_pictograms", scopeCategories, func(v domain.TransactionView) error {
		categories, err := categoriesOf(v, pictograms)
		if err != nil {
			return err
		}
		keys := objectLocaleKeys(categories, func(c domain.Category) string { return c.ID }, locale)
		rows, err := scanMany[domain.Translation](v, domain.CollectionTranslations, domain.IndexObjectLocale, keys)
		if err != nil {
			return err
		}
		byObject := groupByObject(rows)
		out = make([]domain.Category, 0, len(categories))
		for _, c := range categories {
			c.Properties = overlay(domain.EntityCategory, c.Properties, locale, byObject[c.ID])
			out = append(out, c)
		}
		return nil
	})
	return out, err
}

// TranslatedBinders resolves every binder with one full scan and one batched
// translation scan. The result is ordered by ID.
func (s *Service) TranslatedBinders(ctx context.Context, locale string) (out []domain.Binder, err error) {
	if locale, err = s.ResolveLocale(locale); err != nil {
		return nil, err
	}
	err = s.view(ctx, "translated_binders", scopeBinders, func(v domain.TransactionView) error {
		binders, err := all[domain.Binder](v, domain.CollectionBinders)
		if err != nil {
			return err
		}
		out, err = translateBinders(v, binders, locale)
		return err
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

// TranslatedBindersOfUser resolves the binders of a user with one batched
// translation scan. The result is ordered by ID.
func (s *Service) TranslatedBindersOfUser(ctx context.Context, userID, locale string) (out []domain.Binder, err error) {
	if locale, err = s.ResolveLocale(locale); err != nil {
		return nil, err
	}
	err = s.view(ctx, "translated_binders_of_user", scopeTranslated, func(v domain.TransactionView) error {
		binders, err := bindersOf(v, userID)
		if err != nil {
			return err
		}
		out, err = translateBinders(v, binders, locale)
		return err
	})
	return out, err
}

func translateBinders(v domain.TransactionView, binders []domain.Binder, locale string) ([]domain.Binder, error) {
	keys := objectLocaleKeys(binders, func(b domain.Binder) string { return b.ID }, locale)
	rows, err := scanMany[domain.Translation](v, domain.CollectionTranslations, domain.IndexObjectLocale, keys)
	if err != nil {
		return nil, err
	}
	byObject := groupByObject(rows)
	out := make([]domain.Binder, 0, len(binders))
	for _, b := range binders {
		b.Properties = overlay(domain.EntityBinder, b.Properties, locale, byObject[b.ID])
		out = append(out, b)
	}
	return out, nil
}

// TranslationsOf returns every translation row of objectID ordered by
// locale then key.
func (s *Service) TranslationsOf(ctx context.Context, objectID string) (out []domain.Translation, err error) {
	err = s.view(ctx, "translations_of", []domain.Collection{domain.CollectionTranslations}, func(v domain.TransactionView) error {
		out, err = translationsOf(v, objectID)
		return err
	})
	sort.Slice(out, func(i, j int) bool { return out[i].PrimaryKey() < out[j].PrimaryKey() })
	return out, err
}
