package fs

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pictocore/internal/blob/blobtest"
	"pictocore/internal/blob/core"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestStoreContract(t *testing.T) {
	blobtest.RunContract(t, newTempStore(t))
}

func TestStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if _, err := store.Put(ctx, "categories/c1/image", bytes.NewReader([]byte("svg")), core.PutOptions{ContentType: "image/svg+xml"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	reopened, err := New(store.Root())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	info, err := reopened.Head(ctx, "categories/c1/image")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if info.ContentType != "image/svg+xml" || info.Size != 3 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if !strings.HasPrefix(info.URL, "file://") {
		t.Fatalf("expected file url, got %s", info.URL)
	}
}

func TestStore_DeleteMissingAndPresign(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if ok, err := store.Delete(ctx, "nope"); err != nil || ok {
		t.Fatalf("expected delete false, got %v %v", ok, err)
	}
	if _, err := store.PresignURL(ctx, "k", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported, got %v", err)
	}
	if u, err := store.PresignURL(ctx, "k", core.SignedURLOptions{}); err != nil || u == "" {
		t.Fatalf("presign: %q %v", u, err)
	}
}

func TestStore_CorruptSidecar(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if _, err := store.Put(ctx, "a/b", bytes.NewReader([]byte("x")), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := os.WriteFile(filepath.Join(store.Root(), "a", "b.meta"), []byte("{"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := store.Head(ctx, "a/b"); err == nil || errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if _, err := store.List(ctx, ""); err == nil {
		t.Fatalf("expected list error")
	}
}

func TestNew_DefaultRoot(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	dir := t.TempDir()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	store, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if store.Root() != defaultRoot {
		t.Fatalf("unexpected root %s", store.Root())
	}
	if _, err := os.Stat(filepath.Join(dir, "blobdata")); err != nil {
		t.Fatalf("expected default root created: %v", err)
	}
}
