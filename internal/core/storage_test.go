package core

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pictocore/internal/config"
	"pictocore/internal/infra/persistence/memory"
	"pictocore/pkg/domain"
)

func TestOpenPersistentStoreMemory(t *testing.T) {
	store, err := OpenPersistentStore(context.Background(), nil)
	require.NoError(t, err)
	_, ok := store.(*memory.Store)
	assert.True(t, ok)
	require.NoError(t, store.Close())
}

func TestOpenPersistentStoreSQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{StorageDriver: config.StorageSQLite, SQLitePath: filepath.Join(t.TempDir(), "picto.db")}

	store, err := OpenPersistentStore(ctx, cfg)
	require.NoError(t, err)
	svc := NewService(store)
	_, err = svc.CreateBinder(ctx, domain.Binder{Base: domain.Base{ID: "b1"}, AuthorID: "u1", Properties: title("en", "Food")})
	require.NoError(t, err)
	require.NoError(t, svc.Close())

	store, err = OpenPersistentStore(ctx, cfg)
	require.NoError(t, err)
	svc = NewService(store)
	defer func() { _ = svc.Close() }()
	b, ok, err := svc.TranslatedBinder(ctx, "b1", "en")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Food", b.Properties.Text("en", domain.PropTitle))
}

func TestOpenPersistentStoreUnknownDriver(t *testing.T) {
	_, err := OpenPersistentStore(context.Background(), &config.Config{StorageDriver: "etcd"})
	assert.Error(t, err)
}
