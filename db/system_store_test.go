package db

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"flatnas/infrastructure/filestore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSystemStore_InitialisesSingleMode(t *testing.T) {
	paths := testPaths(t)
	files := filestore.New(filestore.Options{RetryDelay: time.Millisecond})

	store, err := OpenSystemStore(paths.SystemConfigFile, files)
	require.NoError(t, err)
	assert.Equal(t, AuthModeSingle, store.AuthMode())

	raw, err := os.ReadFile(paths.SystemConfigFile)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"authMode": "single"`)
}

func TestOpenSystemStore_LoadsExisting(t *testing.T) {
	paths := testPaths(t)
	require.NoError(t, os.WriteFile(paths.SystemConfigFile, []byte(`{"authMode":"multi"}`), 0o644))

	store, err := OpenSystemStore(paths.SystemConfigFile, filestore.New())
	require.NoError(t, err)
	assert.Equal(t, AuthModeMulti, store.AuthMode())
}

func TestOpenSystemStore_ResetsInvalidMode(t *testing.T) {
	paths := testPaths(t)
	require.NoError(t, os.WriteFile(paths.SystemConfigFile, []byte(`{"authMode":"both"}`), 0o644))

	store, err := OpenSystemStore(paths.SystemConfigFile, filestore.New())
	require.NoError(t, err)
	assert.Equal(t, AuthModeSingle, store.AuthMode())
}

func TestSetAuthMode(t *testing.T) {
	paths := testPaths(t)
	store, err := OpenSystemStore(paths.SystemConfigFile, filestore.New())
	require.NoError(t, err)

	cfg, err := store.SetAuthMode(AuthModeMulti)
	require.NoError(t, err)
	assert.Equal(t, AuthModeMulti, cfg.AuthMode)

	reopened, err := OpenSystemStore(paths.SystemConfigFile, filestore.New())
	require.NoError(t, err)
	assert.Equal(t, AuthModeMulti, reopened.AuthMode())

	_, err = store.SetAuthMode("MULTI")
	assert.ErrorIs(t, err, ErrInvalidAuthMode)
	assert.Equal(t, AuthModeMulti, store.AuthMode())
}

func layout(t *testing.T, dir string) []string {
	t.Helper()
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			rel, _ := filepath.Rel(dir, path)
			data, _ := os.ReadFile(path)
			files = append(files, rel+"="+string(data))
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(files)
	return files
}

func TestMigrate_SingleRestoresLegacy(t *testing.T) {
	store, _, paths := newTestStore(t, AuthModeSingle)
	perUser := filepath.Join(paths.UsersDir, "admin.json")
	require.NoError(t, os.WriteFile(perUser, []byte(`{"password":"p"}`), 0o644))

	action, err := store.Migrate()
	require.NoError(t, err)
	assert.Equal(t, MigrationRestored, action)
	assert.True(t, filestore.Exists(paths.LegacyDataFile))
	assert.False(t, filestore.Exists(perUser))

	rec, err := store.Load("admin")
	require.NoError(t, err)
	assert.Equal(t, "p", rec.Password)
}

func TestMigrate_MultiCopiesLegacy(t *testing.T) {
	store, _, paths := newTestStore(t, AuthModeMulti)
	require.NoError(t, os.WriteFile(paths.LegacyDataFile, []byte(`{"password":"p"}`), 0o644))

	action, err := store.Migrate()
	require.NoError(t, err)
	assert.Equal(t, MigrationCopied, action)
	assert.True(t, filestore.Exists(paths.LegacyDataFile), "legacy file is preserved")
	assert.True(t, filestore.Exists(filepath.Join(paths.UsersDir, "admin.json")))
}

func TestMigrate_NoopCases(t *testing.T) {
	tests := []struct {
		name    string
		mode    AuthMode
		legacy  bool
		perUser bool
	}{
		{"single both present", AuthModeSingle, true, true},
		{"single neither present", AuthModeSingle, false, false},
		{"single only legacy", AuthModeSingle, true, false},
		{"multi both present", AuthModeMulti, true, true},
		{"multi neither present", AuthModeMulti, false, false},
		{"multi only per-user", AuthModeMulti, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _, paths := newTestStore(t, tt.mode)
			if tt.legacy {
				require.NoError(t, os.WriteFile(paths.LegacyDataFile, []byte(`{"password":"legacy"}`), 0o644))
			}
			if tt.perUser {
				require.NoError(t, os.WriteFile(filepath.Join(paths.UsersDir, "admin.json"), []byte(`{"password":"user"}`), 0o644))
			}
			before := layout(t, paths.DataDir)

			action, err := store.Migrate()
			require.NoError(t, err)
			assert.Equal(t, MigrationNone, action)
			assert.Equal(t, before, layout(t, paths.DataDir))
		})
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	for _, mode := range []AuthMode{AuthModeSingle, AuthModeMulti} {
		t.Run(string(mode), func(t *testing.T) {
			store, _, paths := newTestStore(t, mode)
			if mode == AuthModeSingle {
				require.NoError(t, os.WriteFile(filepath.Join(paths.UsersDir, "admin.json"), []byte(`{"password":"a"}`), 0o644))
			} else {
				require.NoError(t, os.WriteFile(paths.LegacyDataFile, []byte(`{"password":"a"}`), 0o644))
			}

			_, err := store.Migrate()
			require.NoError(t, err)
			once := layout(t, paths.DataDir)

			action, err := store.Migrate()
			require.NoError(t, err)
			assert.Equal(t, MigrationNone, action)
			assert.Equal(t, once, layout(t, paths.DataDir))
		})
	}
}

func TestEnsureAdmin(t *testing.T) {
	store, _, paths := newTestStore(t, AuthModeSingle)

	created, err := store.EnsureAdmin()
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, filestore.Exists(paths.LegacyDataFile))

	rec, err := store.Load("admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", rec.Password)

	created, err = store.EnsureAdmin()
	require.NoError(t, err)
	assert.False(t, created)
}
