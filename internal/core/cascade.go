package core

import (
	"pictocore/pkg/domain"
)

// Referential cleanup lives here and nowhere else. Each cascade runs inside
// the caller's transaction so a failure anywhere leaves every collection as
// it was.

// DeleteBinder removes the binder, every pictogram whose binder is id, and
// the translation rows of all of them. Categories are not touched even when
// they still list a removed pictogram. The cascade also runs when the binder
// itself is already gone, clearing orphans left by earlier imports.
func (tx *Tx) DeleteBinder(id string) (bool, error) {
	before, ok, err := get[domain.Binder](tx.raw, domain.CollectionBinders, id)
	if err != nil {
		return false, err
	}
	owned, err := scan[domain.Pictogram](tx.raw, domain.CollectionPictograms, domain.IndexBinder, id)
	if err != nil {
		return false, err
	}
	for _, p := range owned {
		if _, err := tx.DeletePictogram(p.ID); err != nil {
			return false, err
		}
	}
	if _, err := tx.DeleteTranslations(id); err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if _, err := tx.raw.Delete(domain.CollectionBinders, id); err != nil {
		return false, err
	}
	return true, tx.record(domain.EntityBinder, domain.ActionDelete, id, before, nil)
}

// DeleteCategory unlinks the category from every pictogram, removes its
// translation rows and then the category. Pictograms are kept. The scan
// covers all pictograms because no index maps categories to pictograms.
func (tx *Tx) DeleteCategory(id string) (bool, error) {
	before, ok, err := get[domain.Category](tx.raw, domain.CollectionCategories, id)
	if err != nil {
		return false, err
	}
	pictograms, err := all[domain.Pictogram](tx.raw, domain.CollectionPictograms)
	if err != nil {
		return false, err
	}
	for _, p := range pictograms {
		remaining, removed := without(p.Categories, id)
		if !removed {
			continue
		}
		unlinked := p.Clone()
		unlinked.Categories = remaining
		unlinked.UpdatedAt = tx.now
		if _, err := tx.raw.Update(domain.CollectionPictograms, unlinked); err != nil {
			return false, err
		}
		if err := tx.record(domain.EntityPictogram, domain.ActionUpdate, p.ID, p, unlinked); err != nil {
			return false, err
		}
	}
	if _, err := tx.DeleteTranslations(id); err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if _, err := tx.raw.Delete(domain.CollectionCategories, id); err != nil {
		return false, err
	}
	return true, tx.record(domain.EntityCategory, domain.ActionDelete, id, before, nil)
}

// MovePictogram reassigns a pictogram to another existing binder and moves
// its ID between the binders' pictogram lists.
func (tx *Tx) MovePictogram(id, binderID string) (domain.Pictogram, error) {
	pic, ok, err := get[domain.Pictogram](tx.raw, domain.CollectionPictograms, id)
	if err != nil {
		return domain.Pictogram{}, err
	}
	if !ok {
		return domain.Pictogram{}, ErrNotFound{Entity: domain.EntityPictogram, ID: id}
	}
	target, ok, err := get[domain.Binder](tx.raw, domain.CollectionBinders, binderID)
	if err != nil {
		return domain.Pictogram{}, err
	}
	if !ok {
		return domain.Pictogram{}, ErrNotFound{Entity: domain.EntityBinder, ID: binderID}
	}
	if pic.BinderID == binderID {
		return pic, nil
	}
	source, ok, err := get[domain.Binder](tx.raw, domain.CollectionBinders, pic.BinderID)
	if err != nil {
		return domain.Pictogram{}, err
	}
	if ok {
		if remaining, removed := without(source.Pictograms, id); removed {
			if _, _, err := tx.PatchBinder(source.ID, domain.BinderPatch{Pictograms: &remaining}); err != nil {
				return domain.Pictogram{}, err
			}
		}
	}
	if list, added := appendUnique(target.Pictograms, id); added {
		if _, _, err := tx.PatchBinder(target.ID, domain.BinderPatch{Pictograms: &list}); err != nil {
			return domain.Pictogram{}, err
		}
	}
	moved, _, err := tx.PatchPictogram(id, domain.PictogramPatch{BinderID: &binderID})
	return moved, err
}

// ShareBinder grants userID access to a binder, keeping Binder.Users and
// User.Binders in step, and appends a share History row.
func (tx *Tx) ShareBinder(binderID, userID string) (domain.Binder, error) {
	binder, ok, err := get[domain.Binder](tx.raw, domain.CollectionBinders, binderID)
	if err != nil {
		return domain.Binder{}, err
	}
	if !ok {
		return domain.Binder{}, ErrNotFound{Entity: domain.EntityBinder, ID: binderID}
	}
	user, ok, err := get[domain.User](tx.raw, domain.CollectionUsers, userID)
	if err != nil {
		return domain.Binder{}, err
	}
	if !ok {
		return domain.Binder{}, ErrNotFound{Entity: domain.EntityUser, ID: userID}
	}
	if users, added := appendUnique(binder.Users, userID); added {
		if binder, _, err = tx.PatchBinder(binderID, domain.BinderPatch{Users: &users}); err != nil {
			return domain.Binder{}, err
		}
	}
	if binders, added := appendUnique(user.Binders, binderID); added {
		if _, _, err := tx.PatchUser(userID, domain.UserPatch{Binders: &binders}); err != nil {
			return domain.Binder{}, err
		}
	}
	performer := tx.actor
	if performer == "" {
		performer = binder.AuthorID
	}
	err = tx.appendHistory(domain.History{
		EntityType:  domain.EntityBinder,
		TargetID:    binderID,
		Action:      domain.ActionShare,
		PerformedBy: performer,
		Changes:     map[string]domain.FieldChange{"users": {After: userID}},
	})
	return binder, err
}
