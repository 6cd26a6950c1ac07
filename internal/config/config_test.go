package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pictocore/internal/blob/core"
)

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, StorageSQLite, cfg.StorageDriver)
	assert.Equal(t, "pictocore.db", cfg.SQLitePath)
	assert.Equal(t, core.DriverFilesystem, cfg.Blob.Driver)
	assert.Equal(t, "./blobdata", cfg.Blob.FSRoot)
	assert.Equal(t, "en", cfg.DefaultLocale)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"PICTOCORE_STORAGE_DRIVER":     "Postgres",
		"PICTOCORE_POSTGRES_DSN":       "postgres://db/pictocore",
		"PICTOCORE_BLOB_DRIVER":        "s3",
		"PICTOCORE_BLOB_S3_BUCKET":     "assets",
		"PICTOCORE_BLOB_S3_PATH_STYLE": "true",
		"PICTOCORE_DEFAULT_LOCALE":     "es-ES",
		"PICTOCORE_SEED_FILE":          "seed.yaml",
	})
	require.NoError(t, err)
	assert.Equal(t, StoragePostgres, cfg.StorageDriver)
	assert.Equal(t, "postgres://db/pictocore", cfg.PostgresDSN)
	assert.Equal(t, "assets", cfg.Blob.S3Bucket)
	assert.True(t, cfg.Blob.S3PathStyle)
	assert.Equal(t, "es-ES", cfg.DefaultLocale)
	assert.Equal(t, "seed.yaml", cfg.SeedFile)
}

func TestLoadFromRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"storage driver": {"PICTOCORE_STORAGE_DRIVER": "bolt"},
		"blob driver":    {"PICTOCORE_BLOB_DRIVER": "ftp"},
		"s3 bucket":      {"PICTOCORE_BLOB_DRIVER": "s3"},
		"bool":           {"PICTOCORE_BLOB_S3_PATH_STYLE": "maybe"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFrom(vars)
			assert.Error(t, err)
		})
	}
}

func TestLoadReadsProcessEnvironment(t *testing.T) {
	t.Setenv("PICTOCORE_STORAGE_DRIVER", "memory")
	t.Setenv("PICTOCORE_BLOB_DRIVER", "memory")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.StorageDriver)
	assert.Equal(t, core.DriverMemory, cfg.Blob.Driver)
}
