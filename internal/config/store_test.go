package config

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumpmate/dumpmate/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testStore() *Store {
	return NewStore(testLogger())
}

func testTarget(id, name string) models.Target {
	return models.Target{
		ID:          id,
		Type:        "mysql",
		Environment: "local",
		Name:        name,
		Host:        "localhost",
		Username:    "root",
	}
}

func TestLoad_MissingFileIsEmptyConfig(t *testing.T) {
	store := testStore()
	cfg, err := store.Load(filepath.Join(t.TempDir(), "config.json"))

	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, cfg.Version)
	assert.Empty(t, cfg.Databases)
	assert.NotNil(t, cfg.Databases)
}

func TestLoad_ParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store := testStore()
	_, err := store.Load(path)

	var parseErr *ConfigParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, path, parseErr.Path)
}

func TestLoad_StampsVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":1,"databases":[]}`), 0o600))

	store := testStore()
	cfg, err := store.Load(path)

	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, cfg.Version)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	store := testStore()

	// Start from an on-disk file with an older version and no defaults.
	require.NoError(t, os.WriteFile(path, []byte(`{"version":0,"databases":[{"id":"a","name":"db-a","environment":"local","host":"h","username":"u","type":"mysql","compress":false,"createdAt":"2026-01-02T03:04:05Z","updatedAt":"2026-01-02T03:04:05Z"}]}`), 0o600))

	loaded, err := store.Load(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(loaded, path))

	reloaded, err := store.Load(path)
	require.NoError(t, err)

	assert.Equal(t, CurrentVersion, reloaded.Version)
	assert.Equal(t, loaded.Databases, reloaded.Databases)
}

func TestSave_BacksUpExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	fixed := time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC)
	store := NewStoreWithClock(testLogger(), func() time.Time { return fixed })

	cfg := &models.ConfigFile{Databases: []models.Target{testTarget("a", "db-a")}}
	require.NoError(t, store.Save(cfg, path))

	// Second save must back up the first file.
	cfg.Databases = append(cfg.Databases, testTarget("b", "db-b"))
	require.NoError(t, store.Save(cfg, path))

	backups, err := os.ReadDir(filepath.Join(dir, "backups"))
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, "config.bak.20260825-103000.json", backups[0].Name())
}

func TestSave_FirstSaveHasNoBackup(t *testing.T) {
	dir := t.TempDir()
	store := testStore()

	require.NoError(t, store.Save(&models.ConfigFile{}, filepath.Join(dir, "config.json")))

	_, err := os.Stat(filepath.Join(dir, "backups"))
	assert.True(t, os.IsNotExist(err))
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := testStore()
	require.NoError(t, store.Save(&models.ConfigFile{}, filepath.Join(dir, "config.json")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "config.json", entries[0].Name())
}

func TestUpsert_AppendsNewEntry(t *testing.T) {
	store := testStore()
	cfg := &models.ConfigFile{}

	stored := store.Upsert(cfg, testTarget("", "db-a"))

	require.Len(t, cfg.Databases, 1)
	assert.NotEmpty(t, stored.ID, "a missing id is assigned")
	assert.False(t, stored.CreatedAt.IsZero())
	assert.False(t, stored.UpdatedAt.IsZero())
}

func TestUpsert_ReplacesInPlace(t *testing.T) {
	store := testStore()
	cfg := &models.ConfigFile{Databases: []models.Target{
		testTarget("a", "db-a"),
		testTarget("b", "db-b"),
		testTarget("c", "db-c"),
	}}

	updated := testTarget("b", "db-b-renamed")
	store.Upsert(cfg, updated)

	require.Len(t, cfg.Databases, 3)
	assert.Equal(t, "a", cfg.Databases[0].ID)
	assert.Equal(t, "b", cfg.Databases[1].ID)
	assert.Equal(t, "db-b-renamed", cfg.Databases[1].Name)
	assert.Equal(t, "c", cfg.Databases[2].ID)
}

func TestUpsert_RefreshesUpdatedAtPreservesCreatedAt(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	store := NewStoreWithClock(testLogger(), func() time.Time { return now })

	original := testTarget("a", "db-a")
	original.CreatedAt = created
	original.UpdatedAt = created
	cfg := &models.ConfigFile{Databases: []models.Target{original}}

	stored := store.Upsert(cfg, testTarget("a", "db-a-v2"))

	assert.Equal(t, created, stored.CreatedAt)
	assert.Equal(t, now, stored.UpdatedAt)
}

func TestDelete_AfterUpsertRestoresMembership(t *testing.T) {
	store := testStore()
	cfg := &models.ConfigFile{Databases: []models.Target{
		testTarget("a", "db-a"),
		testTarget("b", "db-b"),
	}}
	before := len(cfg.Databases)

	stored := store.Upsert(cfg, testTarget("", "db-new"))
	require.Len(t, cfg.Databases, before+1)

	store.Delete(cfg, stored.ID)

	require.Len(t, cfg.Databases, before)
	_, found := store.FindByIDOrAlias(cfg, stored.ID)
	assert.False(t, found)
}

func TestDelete_MissingIDIsNoOp(t *testing.T) {
	store := testStore()
	cfg := &models.ConfigFile{Databases: []models.Target{testTarget("a", "db-a")}}
	store.Delete(cfg, "nope")
	assert.Len(t, cfg.Databases, 1)
}

func TestFindByIDOrAlias(t *testing.T) {
	store := testStore()
	withAlias := testTarget("b", "db-b")
	withAlias.Alias = "staging"
	cfg := &models.ConfigFile{Databases: []models.Target{testTarget("a", "db-a"), withAlias}}

	byID, ok := store.FindByIDOrAlias(cfg, "a")
	require.True(t, ok)
	assert.Equal(t, "db-a", byID.Name)

	byAlias, ok := store.FindByIDOrAlias(cfg, "staging")
	require.True(t, ok)
	assert.Equal(t, "db-b", byAlias.Name)

	_, ok = store.FindByIDOrAlias(cfg, "missing")
	assert.False(t, ok)
}
