package core

import (
	"context"

	"pictocore/pkg/domain"
)

var (
	scopeUsers      = []domain.Collection{domain.CollectionUsers}
	scopeBinders    = []domain.Collection{domain.CollectionBinders, domain.CollectionTranslations}
	scopeCategories = []domain.Collection{domain.CollectionCategories, domain.CollectionTranslations}
	scopePictograms = []domain.Collection{domain.CollectionPictograms, domain.CollectionTranslations}
	scopeHistory    = []domain.Collection{domain.CollectionHistory}

	scopeDeleteBinder = []domain.Collection{
		domain.CollectionBinders, domain.CollectionPictograms, domain.CollectionTranslations,
	}
	scopeDeleteCategory = []domain.Collection{
		domain.CollectionCategories, domain.CollectionPictograms, domain.CollectionTranslations,
	}
	scopeShare = []domain.Collection{
		domain.CollectionBinders, domain.CollectionUsers, domain.CollectionTranslations, domain.CollectionHistory,
	}
	scopeMove = []domain.Collection{
		domain.CollectionPictograms, domain.CollectionBinders, domain.CollectionTranslations,
	}
)

// WithTransaction runs fn in one write transaction over scope. Use it to
// combine several Tx operations atomically.
func (s *Service) WithTransaction(ctx context.Context, scope []domain.Collection, fn func(*Tx) error) error {
	return s.run(ctx, "transaction", scope, fn)
}

// CreateUser persists a new user.
func (s *Service) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	var created domain.User
	err := s.run(ctx, "create_user", scopeUsers, func(tx *Tx) error {
		var err error
		created, err = tx.CreateUser(u)
		return err
	})
	return created, err
}

// UpdateUser replaces a user. updated is false when the user does not exist.
func (s *Service) UpdateUser(ctx context.Context, u domain.User) (out domain.User, updated bool, err error) {
	err = s.run(ctx, "update_user", scopeUsers, func(tx *Tx) error {
		out, updated, err = tx.UpdateUser(u)
		return err
	})
	return out, updated, err
}

// PatchUser applies a partial update to a user.
func (s *Service) PatchUser(ctx context.Context, id string, p domain.UserPatch) (out domain.User, updated bool, err error) {
	err = s.run(ctx, "patch_user", scopeUsers, func(tx *Tx) error {
		out, updated, err = tx.PatchUser(id, p)
		return err
	})
	return out, updated, err
}

// DeleteUser removes a user. Deleting a missing user reports false.
func (s *Service) DeleteUser(ctx context.Context, id string) (deleted bool, err error) {
	err = s.run(ctx, "delete_user", scopeUsers, func(tx *Tx) error {
		deleted, err = tx.DeleteUser(id)
		return err
	})
	return deleted, err
}

// CreateBinder persists a new binder.
func (s *Service) CreateBinder(ctx context.Context, b domain.Binder) (domain.Binder, error) {
	var created domain.Binder
	err := s.run(ctx, "create_binder", scopeBinders, func(tx *Tx) error {
		var err error
		created, err = tx.CreateBinder(b)
		return err
	})
	return created, err
}

// UpdateBinder replaces a binder.
func (s *Service) UpdateBinder(ctx context.Context, b domain.Binder) (out domain.Binder, updated bool, err error) {
	err = s.run(ctx, "update_binder", scopeBinders, func(tx *Tx) error {
		out, updated, err = tx.UpdateBinder(b)
		return err
	})
	return out, updated, err
}

// PatchBinder applies a partial update to a binder.
func (s *Service) PatchBinder(ctx context.Context, id string, p domain.BinderPatch) (out domain.Binder, updated bool, err error) {
	err = s.run(ctx, "patch_binder", scopeBinders, func(tx *Tx) error {
		out, updated, err = tx.PatchBinder(id, p)
		return err
	})
	return out, updated, err
}

// DeleteBinder removes a binder together with its pictograms and their
// translations in one transaction.
func (s *Service) DeleteBinder(ctx context.Context, id string) (deleted bool, err error) {
	err = s.run(ctx, "delete_binder", scopeDeleteBinder, func(tx *Tx) error {
		deleted, err = tx.DeleteBinder(id)
		return err
	})
	return deleted, err
}

// CreateCategory persists a new category.
func (s *Service) CreateCategory(ctx context.Context, c domain.Category) (domain.Category, error) {
	var created domain.Category
	err := s.run(ctx, "create_category", scopeCategories, func(tx *Tx) error {
		var err error
		created, err = tx.CreateCategory(c)
		return err
	})
	return created, err
}

// UpdateCategory replaces a category.
func (s *Service) UpdateCategory(ctx context.Context, c domain.Category) (out domain.Category, updated bool, err error) {
	err = s.run(ctx, "update_category", scopeCategories, func(tx *Tx) error {
		out, updated, err = tx.UpdateCategory(c)
		return err
	})
	return out, updated, err
}

// PatchCategory applies a partial update to a category.
func (s *Service) PatchCategory(ctx context.Context, id string, p domain.CategoryPatch) (out domain.Category, updated bool, err error) {
	err = s.run(ctx, "patch_category", scopeCategories, func(tx *Tx) error {
		out, updated, err = tx.PatchCategory(id, p)
		return err
	})
	return out, updated, err
}

// DeleteCategory unlinks a category from all pictograms and removes it.
func (s *Service) DeleteCategory(ctx context.Context, id string) (deleted bool, err error) {
	err = s.run(ctx, "delete_category", scopeDeleteCategory, func(tx *Tx) error {
		deleted, err = tx.DeleteCategory(id)
		return err
	})
	return deleted, err
}

// CreatePictogram persists a new pictogram. Its binder must exist.
func (s *Service) CreatePictogram(ctx context.Context, p domain.Pictogram) (domain.Pictogram, error) {
	var created domain.Pictogram
	err := s.run(ctx, "create_pictogram", scopePictograms, func(tx *Tx) error {
		var err error
		created, err = tx.CreatePictogram(p)
		return err
	})
	return created, err
}

// UpdatePictogram replaces a pictogram.
func (s *Service) UpdatePictogram(ctx context.Context, p domain.Pictogram) (out domain.Pictogram, updated bool, err error) {
	err = s.run(ctx, "update_pictogram", scopePictograms, func(tx *Tx) error {
		out, updated, err = tx.UpdatePictogram(p)
		return err
	})
	return out, updated, err
}

// PatchPictogram applies a partial update to a pictogram.
func (s *Service) PatchPictogram(ctx context.Context, id string, p domain.PictogramPatch) (out domain.Pictogram, updated bool, err error) {
	err = s.run(ctx, "patch_pictogram", scopePictograms, func(tx *Tx) error {
		out, updated, err = tx.PatchPictogram(id, p)
		return err
	})
	return out, updated, err
}

// DeletePictogram removes a pictogram and its translations.
func (s *Service) DeletePictogram(ctx context.Context, id string) (deleted bool, err error) {
	err = s.run(ctx, "delete_pictogram", scopePictograms, func(tx *Tx) error {
		deleted, err = tx.DeletePictogram(id)
		return err
	})
	return deleted, err
}

// MovePictogram reassigns a pictogram to another binder.
func (s *Service) MovePictogram(ctx context.Context, id, binderID string) (moved domain.Pictogram, err error) {
	err = s.run(ctx, "move_pictogram", scopeMove, func(tx *Tx) error {
		moved, err = tx.MovePictogram(id, binderID)
		return err
	})
	return moved, err
}

// ShareBinder grants a user access to a binder.
func (s *Service) ShareBinder(ctx context.Context, binderID, userID string) (shared domain.Binder, err error) {
	err = s.run(ctx, "share_binder", scopeShare, func(tx *Tx) error {
		shared, err = tx.ShareBinder(binderID, userID)
		return err
	})
	return shared, err
}

// SetTranslation upserts one translation row; an empty value deletes it.
func (s *Service) SetTranslation(ctx context.Context, objectID, locale, key, value string) error {
	return s.run(ctx, "set_translation", []domain.Collection{domain.CollectionTranslations}, func(tx *Tx) error {
		return tx.SetTranslation(objectID, locale, key, value)
	})
}

// RecordHistory appends an audit row.
func (s *Service) RecordHistory(ctx context.Context, h domain.History) (recorded domain.History, err error) {
	err = s.run(ctx, "record_history", scopeHistory, func(tx *Tx) error {
		recorded, err = tx.RecordHistory(h)
		return err
	})
	return recorded, err
}
