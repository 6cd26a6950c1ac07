package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pictocore/internal/config"
	"pictocore/internal/core"
	"pictocore/internal/infra/persistence/memory"
	"pictocore/pkg/domain"
)

const testSeed = `
users:
  - {id: u1, name: Tutor, email: tutor@example.com}
binders:
  - id: b1
    author: u1
    properties:
      en: {title: Breakfast}
      es: {title: Desayuno}
categories:
  - id: c1
    properties:
      en: {title: Drinks}
    pictograms: [p1]
pictograms:
  - id: p1
    binder: b1
    order: 1
    categories: [c1]
    properties:
      en: {title: Milk}
      es: {title: Leche}
  - id: p2
    binder: b1
    properties:
      en: {title: Toast}
`

// sharedOpener serves every invocation from one in-memory store so commands
// observe each other's writes.
func sharedOpener(t *testing.T) (Opener, *memory.Store) {
	t.Helper()
	data, err := core.LoadSeed(strings.NewReader(testSeed))
	require.NoError(t, err)
	store := memory.NewStore()
	return func(context.Context) (*core.Service, func() error, error) {
		svc := core.NewService(store, core.WithSeed(data.Func()))
		return svc, func() error { return nil }, nil
	}, store
}

func execute(t *testing.T, open Opener, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand(nil)
	for _, name := range []string{"seed", "binders", "pictograms", "delete-binder", "delete-category", "translate", "export", "import"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestInvalidFormat(t *testing.T) {
	open, _ := sharedOpener(t)
	_, err := execute(t, open, "binders", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestPictogramsCommandTranslates(t *testing.T) {
	open, _ := sharedOpener(t)
	out, err := execute(t, open, "pictograms", "b1", "--locale", "es")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "ORDER")
	assert.Contains(t, lines[1], "p2")
	assert.Contains(t, lines[2], "Leche")
	assert.NotContains(t, out, "Milk")
}

func TestBindersCommandJSON(t *testing.T) {
	open, _ := sharedOpener(t)
	out, err := execute(t, open, "binders", "--user", "u1", "--format", "json")
	require.NoError(t, err)
	var binders []domain.Binder
	require.NoError(t, json.Unmarshal([]byte(out), &binders))
	require.Len(t, binders, 1)
	assert.Equal(t, "Breakfast", binders[0].Properties.Text("en", domain.PropTitle))

	out, err = execute(t, open, "binders", "--locale", "es")
	require.NoError(t, err)
	assert.Contains(t, out, "Desayuno")
}

func TestDeleteCommandsCascade(t *testing.T) {
	open, store := sharedOpener(t)
	out, err := execute(t, open, "delete-category", "c1", "--actor", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "true")

	out, err = execute(t, open, "delete-binder", "b1", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"deleted": true`)

	snap, err := store.ExportState(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Collections[domain.CollectionPictograms])
	assert.Empty(t, snap.Collections[domain.CollectionCategories])
	assert.NotEmpty(t, snap.Collections[domain.CollectionHistory], "actor mutations are recorded")
}

func TestTranslateCommand(t *testing.T) {
	open, _ := sharedOpener(t)
	out, err := execute(t, open, "translate", "p2", "es", "title", "Tostada")
	require.NoError(t, err)
	assert.Contains(t, out, "Tostada")

	out, err = execute(t, open, "translate", "p2", "es", "title")
	require.NoError(t, err)
	assert.NotContains(t, out, "Tostada")

	_, err = execute(t, open, "translate", "p2", "??", "title", "x")
	require.Error(t, err)
}

func TestExportImportCommands(t *testing.T) {
	open, _ := sharedOpener(t)
	path := filepath.Join(t.TempDir(), "snap.json")
	_, err := execute(t, open, "export", "-o", path)
	require.NoError(t, err)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"pictograms"`)

	other, otherStore := sharedOpener(t)
	_, err = execute(t, other, "delete-binder", "b1")
	require.NoError(t, err)
	out, err := execute(t, other, "import", path)
	require.NoError(t, err)
	assert.Contains(t, out, "imported")
	snap, err := otherStore.ExportState(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Collections[domain.CollectionPictograms], 2)
}

func TestSeedCommandWithFile(t *testing.T) {
	open, _ := sharedOpener(t)
	path := filepath.Join(t.TempDir(), "extra.yaml")
	require.NoError(t, os.WriteFile(path, []byte("binders:\n  - {id: b9, author: u1}\n"), 0o600))
	out, err := execute(t, open, "seed", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 1 binders")

	out, err = execute(t, open, "binders")
	require.NoError(t, err)
	assert.Contains(t, out, "b9")
}

func TestConfigOpenerMemory(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{
		"PICTOCORE_STORAGE_DRIVER": "memory",
		"PICTOCORE_BLOB_DRIVER":    "memory",
		"PICTOCORE_LOG_LEVEL":      "error",
	})
	require.NoError(t, err)
	out, err := execute(t, ConfigOpener(cfg), "binders")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger("chatty")
	assert.Error(t, err)
}
