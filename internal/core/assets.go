package core

import (
	"context"
	"fmt"
	"io"

	"pictocore/internal/blob"
	"pictocore/pkg/domain"
	"pictocore/pkg/schema"
)

// Asset families accepted by ValidateContentType.
const (
	familyImage = "image"
	familyAudio = "audio"
)

type assetTarget struct {
	entity domain.EntityType
	coll   domain.Collection
	slot   string
	family string
	scope  []domain.Collection
	// assign writes key into the record and returns the key it replaced.
	assign func(tx *Tx, id, key string) (string, bool, error)
}

var (
	pictogramImage = assetTarget{
		entity: domain.EntityPictogram, coll: domain.CollectionPictograms, slot: "image", family: familyImage, scope: scopePictograms,
		assign: func(tx *Tx, id, key string) (string, bool, error) {
			prev, ok, err := get[domain.Pictogram](tx.raw, domain.CollectionPictograms, id)
			if err != nil || !ok {
				return "", false, err
			}
			_, ok, err = tx.PatchPictogram(id, domain.PictogramPatch{Image: &key})
			return prev.Image, ok, err
		},
	}
	pictogramSound = assetTarget{
		entity: domain.EntityPictogram, coll: domain.CollectionPictograms, slot: "sound", family: familyAudio, scope: scopePictograms,
		assign: func(tx *Tx, id, key string) (string, bool, error) {
			prev, ok, err := get[domain.Pictogram](tx.raw, domain.CollectionPictograms, id)
			if err != nil || !ok {
				return "", false, err
			}
			_, ok, err = tx.PatchPictogram(id, domain.PictogramPatch{Sound: &key})
			return prev.Sound, ok, err
		},
	}
	binderImage = assetTarget{
		entity: domain.EntityBinder, coll: domain.CollectionBinders, slot: "image", family: familyImage, scope: scopeBinders,
		assign: func(tx *Tx, id, key string) (string, bool, error) {
			prev, ok, err := get[domain.Binder](tx.raw, domain.CollectionBinders, id)
			if err != nil || !ok {
				return "", false, err
			}
			_, ok, err = tx.PatchBinder(id, domain.BinderPatch{Image: &key})
			return prev.Image, ok, err
		},
	}
	categoryImage = assetTarget{
		entity: domain.EntityCategory, coll: domain.CollectionCategories, slot: "image", family: familyImage, scope: scopeCategories,
		assign: func(tx *Tx, id, key string) (string, bool, error) {
			prev, ok, err := get[domain.Category](tx.raw, domain.CollectionCategories, id)
			if err != nil || !ok {
				return "", false, err
			}
			_, ok, err = tx.PatchCategory(id, domain.CategoryPatch{Image: &key})
			return prev.Image, ok, err
		},
	}
)

// AttachPictogramImage stores r as the pictogram's image and returns the blob key.
func (s *Service) AttachPictogramImage(ctx context.Context, id string, r io.Reader, contentType string) (string, error) {
	return s.attach(ctx, pictogramImage, id, r, contentType)
}

// AttachPictogramSound stores r as the pictogram's sound and returns the blob key.
func (s *Service) AttachPictogramSound(ctx context.Context, id string, r io.Reader, contentType string) (string, error) {
	return s.attach(ctx, pictogramSound, id, r, contentType)
}

// AttachBinderImage stores r as the binder's image and returns the blob key.
func (s *Service) AttachBinderImage(ctx context.Context, id string, r io.Reader, contentType string) (string, error) {
	return s.attach(ctx, binderImage, id, r, contentType)
}

// AttachCategoryImage stores r as the category's image and returns the blob key.
func (s *Service) AttachCategoryImage(ctx context.Context, id string, r io.Reader, contentType string) (string, error) {
	return s.attach(ctx, categoryImage, id, r, contentType)
}

// attach uploads under a fresh key first and then points the record at it.
// If the record is gone or the transaction fails the upload is removed; a
// replaced asset is removed after the commit.
func (s *Service) attach(ctx context.Context, target assetTarget, id string, r io.Reader, contentType string) (string, error) {
	if s.blobs == nil {
		return "", ErrNoBlobStore
	}
	if err := schema.ValidateContentType(target.slot, contentType, target.family); err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s/%s/%s-%s", target.coll, id, target.slot, s.newID())
	if _, err := s.blobs.Put(ctx, key, r, blob.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"entity": string(target.entity), "id": id},
	}); err != nil {
		return "", fmt.Errorf("store %s %s: %w", target.entity, target.slot, err)
	}
	var previous string
	var found bool
	err := s.run(ctx, "attach_"+string(target.entity)+"_"+target.slot, target.scope, func(tx *Tx) error {
		var err error
		previous, found, err = target.assign(tx, id, key)
		if err == nil && !found {
			err = ErrNotFound{Entity: target.entity, ID: id}
		}
		return err
	})
	if err != nil {
		s.dropBlob(ctx, key)
		return "", err
	}
	if previous != "" && previous != key {
		s.dropBlob(ctx, previous)
	}
	return key, nil
}

func (s *Service) dropBlob(ctx context.Context, key string) {
	if _, err := s.blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Warn("remove asset failed", "key", key, "error", err)
	}
}

// OpenAsset streams a stored asset. The caller closes the reader.
func (s *Service) OpenAsset(ctx context.Context, key string) (blob.Info, io.ReadCloser, error) {
	if s.blobs == nil {
		return blob.Info{}, nil, ErrNoBlobStore
	}
	return s.blobs.Get(ctx, key)
}

// AssetURL returns a time-limited URL for key when the backend supports it.
func (s *Service) AssetURL(ctx context.Context, key string) (string, error) {
	if s.blobs == nil {
		return "", ErrNoBlobStore
	}
	return s.blobs.PresignURL(ctx, key, blob.SignedURLOptions{})
}
