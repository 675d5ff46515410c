package db

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"flatnas/config"
	"flatnas/infrastructure/filestore"
	"flatnas/pkg/logger"
)

// SystemStore holds the process-wide SystemConfig and persists every change.
type SystemStore struct {
	mu    sync.RWMutex
	cfg   SystemConfig
	path  string
	files *filestore.Store
}

// OpenSystemStore loads the system config from path, creating it with
// single-user mode when it does not exist yet.
func OpenSystemStore(path string, files *filestore.Store) (*SystemStore, error) {
	s := &SystemStore{path: path, files: files}

	var cfg SystemConfig
	err := filestore.ReadJSON(path, &cfg)
	switch {
	case err == nil && cfg.AuthMode.Valid():
		s.cfg = cfg
		return s, nil
	case err == nil:
		logger.WithField("auth_mode", string(cfg.AuthMode)).Warn("system config has an invalid auth mode, resetting to single")
	case errors.Is(err, os.ErrNotExist):
	default:
		logger.WithError(err).Warn("system config unreadable, resetting to defaults")
	}

	s.cfg = SystemConfig{AuthMode: AuthModeSingle}
	if err := files.WriteJSON(path, s.cfg); err != nil {
		return nil, fmt.Errorf("persist default system config: %w", err)
	}
	return s, nil
}

func (s *SystemStore) AuthMode() AuthMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.AuthMode
}

func (s *SystemStore) Config() SystemConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// SetAuthMode persists the new mode. Existing files are not moved; the next
// startup reconciles them.
func (s *SystemStore) SetAuthMode(mode AuthMode) (SystemConfig, error) {
	if !mode.Valid() {
		return SystemConfig{}, ErrInvalidAuthMode
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg
	next.AuthMode = mode
	if err := s.files.WriteJSON(s.path, next); err != nil {
		return SystemConfig{}, err
	}
	s.cfg = next
	return next, nil
}

// MigrationAction describes what Migrate did to the admin's files.
type MigrationAction string

const (
	MigrationNone     MigrationAction = "none"
	MigrationRestored MigrationAction = "restored"
	MigrationCopied   MigrationAction = "copied"
)

// Migrate reconciles the admin's legacy and per-user files with the active
// auth mode. It is safe to run on every startup.
//
//   - single: legacy missing, per-user present -> move per-user to legacy
//   - multi:  per-user missing, legacy present -> copy legacy to per-user
func (s *UserStore) Migrate() (MigrationAction, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	legacy := s.LegacyPath()
	perUser := s.UserPath(AdminUsername)
	legacyExists := filestore.Exists(legacy)
	perUserExists := filestore.Exists(perUser)

	switch s.mode.AuthMode() {
	case AuthModeSingle:
		if legacyExists || !perUserExists {
			return MigrationNone, nil
		}
		if err := os.Rename(perUser, legacy); err != nil {
			// Cross-device or locked: copy then remove.
			if err := s.files.CopyFile(perUser, legacy); err != nil {
				return MigrationNone, fmt.Errorf("restore legacy data file: %w", err)
			}
			if err := os.Remove(perUser); err != nil {
				logger.WithError(err).Warn("restored legacy data file but could not remove per-user copy")
			}
		}
		return MigrationRestored, nil

	case AuthModeMulti:
		if perUserExists || !legacyExists {
			return MigrationNone, nil
		}
		if err := s.files.CopyFile(legacy, perUser); err != nil {
			return MigrationNone, fmt.Errorf("migrate legacy data file: %w", err)
		}
		return MigrationCopied, nil
	}

	return MigrationNone, nil
}

// EnsureAdmin creates the admin record from the default template if it is
// missing and caches it either way; the cached record outlives an auth mode
// switch. It reports whether a record was created.
func (s *UserStore) EnsureAdmin() (bool, error) {
	if s.Exists(AdminUsername) {
		if _, err := s.load(AdminUsername); err != nil {
			return false, fmt.Errorf("load admin record: %w", err)
		}
		return false, nil
	}

	tpl := s.DefaultTemplate()
	if tpl.Password == "" {
		tpl.Password = "admin"
	}
	if err := s.Create(AdminUsername, tpl); err != nil {
		if errors.Is(err, ErrUserExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// EnsureDirectories creates every directory the server writes into.
func EnsureDirectories(paths config.StorageConfig) error {
	for _, dir := range []string{
		paths.DataDir,
		paths.UsersDir,
		paths.MusicDir,
		paths.BackgroundsDir,
		paths.MobileBackgroundsDir,
	} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
