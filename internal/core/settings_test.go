package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pictocore/pkg/schema"
)

func TestSettingsStores(t *testing.T) {
	svc, _ := newTestService(t)
	for name, st := range map[string]SettingsStore{
		"store":  svc.Settings(),
		"memory": NewMemorySettings(),
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, ok, err := st.Get(ctx, "theme")
			require.NoError(t, err)
			assert.False(t, ok)

			_, err = st.Set(ctx, "theme", "dark")
			require.NoError(t, err)
			_, err = st.Set(ctx, "theme", "light")
			require.NoError(t, err)
			_, err = st.Set(ctx, "grid", map[string]any{"columns": 4, "labels": true})
			require.NoError(t, err)

			got, ok, err := st.Get(ctx, "theme")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "light", got.Value)

			_, err = st.Set(ctx, "bad", struct{}{})
			verr, isValidation := schema.AsValidation(err)
			require.True(t, isValidation)
			assert.Equal(t, schema.KindInvalidType, verr.Kind())

			all, err := st.All(ctx)
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, "grid", all[0].Key)

			deleted, err := st.Delete(ctx, "theme")
			require.NoError(t, err)
			assert.True(t, deleted)
			deleted, err = st.Delete(ctx, "theme")
			require.NoError(t, err)
			assert.False(t, deleted)
		})
	}
}

func TestReservedSettingsAreHidden(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, WithSeed(func(context.Context, *Tx) error { return nil }))
	_, err := svc.Settings().Set(ctx, "volume", 0.5)
	require.NoError(t, err)

	marker, ok, err := svc.GetSetting(ctx, SeedMarkerKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, marker.Value)

	all, err := svc.Settings().All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "volume", all[0].Key)
}

func TestWithSettingsStore(t *testing.T) {
	mem := NewMemorySettings()
	svc, _ := newTestService(t, WithSettingsStore(mem))
	_, err := svc.Settings().Set(context.Background(), "k", "v")
	require.NoError(t, err)
	_, ok, err := mem.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
}
