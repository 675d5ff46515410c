package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"flatnas/config"
	"flatnas/infrastructure/filestore"
	"flatnas/pkg/logger"
	"flatnas/pkg/metrics"
	"flatnas/utils"

	"github.com/goccy/go-json"
)

// ModeSource tells the store which auth mode is currently active.
type ModeSource interface {
	AuthMode() AuthMode
}

// UserStore maps usernames to their JSON documents on disk and keeps every
// record it has read in memory for the lifetime of the process. The cache is
// keyed by username: after an auth mode switch the admin keeps its cached
// record and the next save writes it to the newly resolved file.
type UserStore struct {
	mu    sync.RWMutex
	cache map[string]*UserRecord

	// writeMu serialises read-modify-write cycles.
	writeMu sync.Mutex

	paths config.StorageConfig
	files *filestore.Store
	mode  ModeSource
}

func NewUserStore(paths config.StorageConfig, files *filestore.Store, mode ModeSource) *UserStore {
	return &UserStore{
		cache: make(map[string]*UserRecord),
		paths: paths,
		files: files,
		mode:  mode,
	}
}

// ResolvePath returns the file backing username under the current auth mode.
// In single mode the admin keeps using the legacy shared data file.
func (s *UserStore) ResolvePath(username string) string {
	if username == AdminUsername && s.mode.AuthMode() == AuthModeSingle {
		return s.paths.LegacyDataFile
	}
	return s.UserPath(username)
}

// UserPath is the per-user file for username regardless of mode.
func (s *UserStore) UserPath(username string) string {
	return filepath.Join(s.paths.UsersDir, utils.SanitizeUsername(username)+".json")
}

func (s *UserStore) LegacyPath() string {
	return s.paths.LegacyDataFile
}

func checkUsername(username string) error {
	if username == "" || utils.SanitizeUsername(username) != username {
		return ErrInvalidUsername
	}
	return nil
}

// Load returns a copy of the user's record, reading it from disk on first use.
func (s *UserStore) Load(username string) (*UserRecord, error) {
	if err := checkUsername(username); err != nil {
		return nil, ErrUserNotFound
	}
	rec, err := s.load(username)
	if err != nil {
		return nil, err
	}
	return rec.Clone()
}

func (s *UserStore) cached(username string) (*UserRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.cache[username]
	return rec, ok
}

// load returns the cached record for username, reading the resolved file on
// a miss. Callers must not mutate it.
func (s *UserStore) load(username string) (*UserRecord, error) {
	rec, ok := s.cached(username)
	if ok {
		metrics.IncrementUserCacheHits()
		return rec, nil
	}
	metrics.IncrementUserCacheMisses()

	path := s.ResolvePath(username)
	var fresh UserRecord
	if err := filestore.ReadJSON(path, &fresh); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("read user file %s: %w", filepath.Base(path), err)
	}

	s.mu.Lock()
	if cached, ok := s.cache[username]; ok {
		s.mu.Unlock()
		return cached, nil
	}
	s.cache[username] = &fresh
	s.mu.Unlock()

	return &fresh, nil
}

// Save writes rec through to disk and replaces the cached copy.
func (s *UserStore) Save(username string, rec *UserRecord) error {
	if err := checkUsername(username); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.save(username, rec)
}

func (s *UserStore) save(username string, rec *UserRecord) error {
	stored, err := rec.Clone()
	if err != nil {
		return fmt.Errorf("copy record: %w", err)
	}
	if err := s.files.WriteJSON(s.ResolvePath(username), stored); err != nil {
		return err
	}

	s.mu.Lock()
	s.cache[username] = stored
	s.mu.Unlock()
	return nil
}

// Update loads the record, applies fn and saves the result while holding the
// write lock, so concurrent updates of the same user are not lost.
func (s *UserStore) Update(username string, fn func(rec *UserRecord) error) error {
	if err := checkUsername(username); err != nil {
		return ErrUserNotFound
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current, err := s.load(username)
	if err != nil {
		return err
	}
	rec, err := current.Clone()
	if err != nil {
		return err
	}
	if err := fn(rec); err != nil {
		return err
	}
	return s.save(username, rec)
}

// Exists reports whether the user has a cached record or a backing file.
func (s *UserStore) Exists(username string) bool {
	if checkUsername(username) != nil {
		return false
	}
	if _, ok := s.cached(username); ok {
		return true
	}
	return filestore.Exists(s.ResolvePath(username))
}

// Create stores a brand-new record and fails if the user already exists.
func (s *UserStore) Create(username string, rec *UserRecord) error {
	if err := checkUsername(username); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.Exists(username) {
		return ErrUserExists
	}
	return s.save(username, rec)
}

// DefaultTemplate returns the record new users start from.
func (s *UserStore) DefaultTemplate() *UserRecord {
	var tpl UserRecord
	err := filestore.ReadJSON(s.paths.DefaultTemplateFile, &tpl)
	if err == nil {
		return &tpl
	}
	if !errors.Is(err, os.ErrNotExist) {
		logger.WithFields(map[string]any{
			"path":  s.paths.DefaultTemplateFile,
			"error": err,
		}).Warn("default template unreadable, using built-in fallback")
	}
	return FallbackTemplate()
}

// SaveDefaultTemplate replaces the default template with the groups, widgets
// and appConfig of tpl. The password is never part of the template.
func (s *UserStore) SaveDefaultTemplate(tpl *UserRecord) error {
	clean, err := tpl.Template()
	if err != nil {
		return err
	}
	groups := clean.Groups
	if groups == nil {
		groups = []Group{}
	}
	widgets := clean.Widgets
	if widgets == nil {
		widgets = []json.RawMessage{}
	}
	appConfig := clean.AppConfig
	if len(appConfig) == 0 {
		appConfig = json.RawMessage(`{}`)
	}
	return s.files.WriteJSON(s.paths.DefaultTemplateFile, map[string]any{
		"groups":    groups,
		"widgets":   widgets,
		"appConfig": appConfig,
	})
}

// Stats feeds the store collector.
func (s *UserStore) Stats() map[string]int64 {
	s.mu.RLock()
	cached := int64(len(s.cache))
	s.mu.RUnlock()

	var users int64
	entries, err := os.ReadDir(s.paths.UsersDir)
	if err == nil {
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
				users++
			}
		}
	}
	return map[string]int64{"users": users, "cached": cached}
}
