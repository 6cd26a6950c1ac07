package core

import (
	"sort"

	"pictocore/pkg/domain"
	"pictocore/pkg/schema"
)

// CreateUser validates and inserts a user. An empty ID is generated.
func (tx *Tx) CreateUser(u domain.User) (domain.User, error) {
	u.ID = tx.id(u.ID)
	valid, err := schema.ValidateUser(u)
	if err != nil {
		return domain.User{}, err
	}
	valid.CreatedAt, valid.UpdatedAt = tx.now, tx.now
	if err := tx.raw.Insert(domain.CollectionUsers, valid); err != nil {
		return domain.User{}, err
	}
	if err := tx.record(domain.EntityUser, domain.ActionCreate, valid.ID, nil, valid); err != nil {
		return domain.User{}, err
	}
	return valid, nil
}

// UpdateUser replaces a stored user. A missing user is left absent and
// reported as updated=false. The stored password hash survives an update
// that carries none.
func (tx *Tx) UpdateUser(u domain.User) (domain.User, bool, error) {
	valid, err := schema.ValidateUser(u)
	if err != nil {
		return domain.User{}, false, err
	}
	before, ok, err := get[domain.User](tx.raw, domain.CollectionUsers, valid.ID)
	if err != nil || !ok {
		return domain.User{}, false, err
	}
	valid.CreatedAt, valid.UpdatedAt = before.CreatedAt, tx.now
	if valid.PasswordHash == "" {
		valid.PasswordHash = before.PasswordHash
	}
	if _, err := tx.raw.Update(domain.CollectionUsers, valid); err != nil {
		return domain.User{}, false, err
	}
	if err := tx.record(domain.EntityUser, domain.ActionUpdate, valid.ID, before, valid); err != nil {
		return domain.User{}, false, err
	}
	return valid, true, nil
}

// PatchUser applies the set fields of p to the stored user.
func (tx *Tx) PatchUser(id string, p domain.UserPatch) (domain.User, bool, error) {
	if err := schema.ValidateUserPatch(p); err != nil {
		return domain.User{}, false, err
	}
	current, ok, err := get[domain.User](tx.raw, domain.CollectionUsers, id)
	if err != nil || !ok {
		return domain.User{}, false, err
	}
	p.Apply(&current)
	return tx.UpdateUser(current)
}

// DeleteUser removes a user. History rows naming the user are kept.
func (tx *Tx) DeleteUser(id string) (bool, error) {
	before, ok, err := get[domain.User](tx.raw, domain.CollectionUsers, id)
	if err != nil || !ok {
		return false, err
	}
	if _, err := tx.raw.Delete(domain.CollectionUsers, id); err != nil {
		return false, err
	}
	return true, tx.record(domain.EntityUser, domain.ActionDelete, id, before, nil)
}

// CreateBinder validates and inserts a binder and its translation rows.
func (tx *Tx) CreateBinder(b domain.Binder) (domain.Binder, error) {
	b.ID = tx.id(b.ID)
	valid, err := schema.ValidateBinder(b)
	if err != nil {
		return domain.Binder{}, err
	}
	valid.CreatedAt, valid.UpdatedAt = tx.now, tx.now
	if err := tx.raw.Insert(domain.CollectionBinders, valid); err != nil {
		return domain.Binder{}, err
	}
	if err := tx.syncTranslations(valid.ID, nil, valid.Properties); err != nil {
		return domain.Binder{}, err
	}
	if err := tx.record(domain.EntityBinder, domain.ActionCreate, valid.ID, nil, valid); err != nil {
		return domain.Binder{}, err
	}
	return valid, nil
}

// UpdateBinder replaces a stored binder; missing binders are a no-op.
func (tx *Tx) UpdateBinder(b domain.Binder) (domain.Binder, bool, error) {
	valid, err := schema.ValidateBinder(b)
	if err != nil {
		return domain.Binder{}, false, err
	}
	before, ok, err := get[domain.Binder](tx.raw, domain.CollectionBinders, valid.ID)
	if err != nil || !ok {
		return domain.Binder{}, false, err
	}
	valid.CreatedAt, valid.UpdatedAt = before.CreatedAt, tx.now
	if _, err := tx.raw.Update(domain.CollectionBinders, valid); err != nil {
		return domain.Binder{}, false, err
	}
	if err := tx.syncTranslations(valid.ID, before.Properties, valid.Properties); err != nil {
		return domain.Binder{}, false, err
	}
	if err := tx.record(domain.EntityBinder, domain.ActionUpdate, valid.ID, before, valid); err != nil {
		return domain.Binder{}, false, err
	}
	return valid, true, nil
}

// PatchBinder applies the set fields of p to the stored binder.
func (tx *Tx) PatchBinder(id string, p domain.BinderPatch) (domain.Binder, bool, error) {
	if err := schema.ValidateBinderPatch(p); err != nil {
		return domain.Binder{}, false, err
	}
	current, ok, err := get[domain.Binder](tx.raw, domain.CollectionBinders, id)
	if err != nil || !ok {
		return domain.Binder{}, false, err
	}
	p.Apply(&current)
	return tx.UpdateBinder(current)
}

// CreateCategory validates and inserts a category and its translation rows.
func (tx *Tx) CreateCategory(c domain.Category) (domain.Category, error) {
	c.ID = tx.id(c.ID)
	valid, err := schema.ValidateCategory(c)
	if err != nil {
		return domain.Category{}, err
	}
	valid.CreatedAt, valid.UpdatedAt = tx.now, tx.now
	if err := tx.raw.Insert(domain.CollectionCategories, valid); err != nil {
		return domain.Category{}, err
	}
	if err := tx.syncTranslations(valid.ID, nil, valid.Properties); err != nil {
		return domain.Category{}, err
	}
	if err := tx.record(domain.EntityCategory, domain.ActionCreate, valid.ID, nil, valid); err != nil {
		return domain.Category{}, err
	}
	return valid, nil
}

// UpdateCategory replaces a stored category; missing categories are a no-op.
func (tx *Tx) UpdateCategory(c domain.Category) (domain.Category, bool, error) {
	valid, err := schema.ValidateCategory(c)
	if err != nil {
		return domain.Category{}, false, err
	}
	before, ok, err := get[domain.Category](tx.raw, domain.CollectionCategories, valid.ID)
	if err != nil || !ok {
		return domain.Category{}, false, err
	}
	valid.CreatedAt, valid.UpdatedAt = before.CreatedAt, tx.now
	if _, err := tx.raw.Update(domain.CollectionCategories, valid); err != nil {
		return domain.Category{}, false, err
	}
	if err := tx.syncTranslations(valid.ID, before.Properties, valid.Properties); err != nil {
		return domain.Category{}, false, err
	}
	if err := tx.record(domain.EntityCategory, domain.ActionUpdate, valid.ID, before, valid); err != nil {
		return domain.Category{}, false, err
	}
	return valid, true, nil
}

// PatchCategory applies the set fields of p to the stored category.
func (tx *Tx) PatchCategory(id string, p domain.CategoryPatch) (domain.Category, bool, error) {
	if err := schema.ValidateCategoryPatch(p); err != nil {
		return domain.Category{}, false, err
	}
	current, ok, err := get[domain.Category](tx.raw, domain.CollectionCategories, id)
	if err != nil || !ok {
		return domain.Category{}, false, err
	}
	p.Apply(&current)
	return tx.UpdateCategory(current)
}

// CreatePictogram validates and inserts a pictogram and its translation rows.
func (tx *Tx) CreatePictogram(p domain.Pictogram) (domain.Pictogram, error) {
	p.ID = tx.id(p.ID)
	valid, err := schema.ValidatePictogram(p)
	if err != nil {
		return domain.Pictogram{}, err
	}
	valid.CreatedAt, valid.UpdatedAt = tx.now, tx.now
	if err := tx.raw.Insert(domain.CollectionPictograms, valid); err != nil {
		return domain.Pictogram{}, err
	}
	if err := tx.syncTranslations(valid.ID, nil, valid.Properties); err != nil {
		return domain.Pictogram{}, err
	}
	if err := tx.record(domain.EntityPictogram, domain.ActionCreate, valid.ID, nil, valid); err != nil {
		return domain.Pictogram{}, err
	}
	return valid, nil
}

// UpdatePictogram replaces a stored pictogram; missing pictograms are a no-op.
func (tx *Tx) UpdatePictogram(p domain.Pictogram) (domain.Pictogram, bool, error) {
	valid, err := schema.ValidatePictogram(p)
	if err != nil {
		return domain.Pictogram{}, false, err
	}
	before, ok, err := get[domain.Pictogram](tx.raw, domain.CollectionPictograms, valid.ID)
	if err != nil || !ok {
		return domain.Pictogram{}, false, err
	}
	valid.CreatedAt, valid.UpdatedAt = before.CreatedAt, tx.now
	if _, err := tx.raw.Update(domain.CollectionPictograms, valid); err != nil {
		return domain.Pictogram{}, false, err
	}
	if err := tx.syncTranslations(valid.ID, before.Properties, valid.Properties); err != nil {
		return domain.Pictogram{}, false, err
	}
	if err := tx.record(domain.EntityPictogram, domain.ActionUpdate, valid.ID, before, valid); err != nil {
		return domain.Pictogram{}, false, err
	}
	return valid, true, nil
}

// PatchPictogram applies the set fields of p to the stored pictogram.
func (tx *Tx) PatchPictogram(id string, p domain.PictogramPatch) (domain.Pictogram, bool, error) {
	if err := schema.ValidatePictogramPatch(p); err != nil {
		return domain.Pictogram{}, false, err
	}
	current, ok, err := get[domain.Pictogram](tx.raw, domain.CollectionPictograms, id)
	if err != nil || !ok {
		return domain.Pictogram{}, false, err
	}
	p.Apply(&current)
	return tx.UpdatePictogram(current)
}

// DeletePictogram removes a pictogram and its translation rows. Binder and
// category lists still naming it are left as they are.
func (tx *Tx) DeletePictogram(id string) (bool, error) {
	before, ok, err := get[domain.Pictogram](tx.raw, domain.CollectionPictograms, id)
	if err != nil {
		return false, err
	}
	if _, err := tx.DeleteTranslations(id); err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if _, err := tx.raw.Delete(domain.CollectionPictograms, id); err != nil {
		return false, err
	}
	return true, tx.record(domain.EntityPictogram, domain.ActionDelete, id, before, nil)
}

// SetTranslation upserts one translation row. An empty value deletes it.
func (tx *Tx) SetTranslation(objectID, locale, key, value string) error {
	if value != "" {
		return tx.putTranslation(domain.Translation{ObjectID: objectID, Locale: locale, Key: key, Value: value})
	}
	if err := schema.New().ID("object_id", objectID).Locale("locale", locale).ID("key", key).Err(); err != nil {
		return err
	}
	canon, _ := schema.CanonicalLocale(locale)
	_, err := tx.raw.Delete(domain.CollectionTranslations, domain.TranslationKey(objectID, canon, key))
	return err
}

// DeleteTranslations removes every translation row of objectID.
func (tx *Tx) DeleteTranslations(objectID string) (int, error) {
	rows, err := scan[domain.Translation](tx.raw, domain.CollectionTranslations, domain.IndexObject, objectID)
	if err != nil {
		return 0, err
	}
	for _, t := range rows {
		if _, err := tx.raw.Delete(domain.CollectionTranslations, t.PrimaryKey()); err != nil {
			return 0, err
		}
	}
	return len(rows), nil
}

func (tx *Tx) putTranslation(t domain.Translation) error {
	valid, err := schema.ValidateTranslation(t)
	if err != nil {
		return err
	}
	updated, err := tx.raw.Update(domain.CollectionTranslations, valid)
	if err != nil || updated {
		return err
	}
	return tx.raw.Insert(domain.CollectionTranslations, valid)
}

// syncTranslations upserts a row for every non-empty value of after and
// deletes the rows of keys that were set in before but are now missing or
// empty. Rows written directly through SetTranslation are left alone.
func (tx *Tx) syncTranslations(objectID string, before, after domain.LocalizedProps) error {
	for _, locale := range sortedKeys(before) {
		for _, k := range sortedKeys(before[locale]) {
			if before[locale][k] == "" || after[locale][k] != "" {
				continue
			}
			if _, err := tx.raw.Delete(domain.CollectionTranslations, domain.TranslationKey(objectID, locale, k)); err != nil {
				return err
			}
		}
	}
	for _, locale := range sortedKeys(after) {
		bag := after[locale]
		for _, k := range sortedKeys(bag) {
			if bag[k] == "" {
				continue
			}
			if err := tx.putTranslation(domain.Translation{ObjectID: objectID, Locale: locale, Key: k, Value: bag[k]}); err != nil {
				return err
			}
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RecordHistory appends an audit row. History has no update or delete.
func (tx *Tx) RecordHistory(h domain.History) (domain.History, error) {
	if err := tx.appendHistory(h); err != nil {
		return domain.History{}, err
	}
	return tx.lastHistory, nil
}

func (tx *Tx) appendHistory(h domain.History) error {
	h.ID = tx.id(h.ID)
	if h.Timestamp.IsZero() {
		h.Timestamp = tx.now
	}
	valid, err := schema.ValidateHistory(h)
	if err != nil {
		return err
	}
	if err := tx.raw.Insert(domain.CollectionHistory, valid); err != nil {
		return err
	}
	tx.lastHistory = valid
	return nil
}

// PutSetting validates and upserts a setting.
func (tx *Tx) PutSetting(key string, value any) (domain.Setting, error) {
	valid, err := schema.ValidateSetting(domain.Setting{Key: key, Value: value, UpdatedAt: tx.now})
	if err != nil {
		return domain.Setting{}, err
	}
	updated, err := tx.raw.Update(domain.CollectionSettings, valid)
	if err != nil {
		return domain.Setting{}, err
	}
	if !updated {
		if err := tx.raw.Insert(domain.CollectionSettings, valid); err != nil {
			return domain.Setting{}, err
		}
	}
	return valid, nil
}

// DeleteSetting removes a setting.
func (tx *Tx) DeleteSetting(key string) (bool, error) {
	return tx.raw.Delete(domain.CollectionSettings, key)
}
