// Package config persists target definitions with version stamping and
// timestamped backups.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dumpmate/dumpmate/internal/models"
)

// CurrentVersion is the schema version stamped onto every loaded and saved
// configuration, regardless of what the file on disk claims.
const CurrentVersion = 2

// FileName is the configuration file name under the config directory.
const FileName = "config.json"

// backupDirName holds timestamped copies of the previous file, written
// before every save. Retention is unbounded.
const backupDirName = "backups"

// ConfigParseError reports an unreadable or malformed configuration file.
type ConfigParseError struct {
	Path string
	Err  error
}

func (e *ConfigParseError) Error() string {
	return fmt.Sprintf("parsing config %s: %v", e.Path, e.Err)
}

func (e *ConfigParseError) Unwrap() error { return e.Err }

// Store reads and writes the configuration file.
type Store struct {
	logger zerolog.Logger
	now    func() time.Time
}

// NewStore creates a new configuration store.
func NewStore(logger zerolog.Logger) *Store {
	return &Store{logger: logger, now: time.Now}
}

// NewStoreWithClock creates a configuration store with a fixed clock (for testing).
func NewStoreWithClock(logger zerolog.Logger, now func() time.Time) *Store {
	return &Store{logger: logger, now: now}
}

// DefaultPath returns the platform-appropriate configuration file location.
func DefaultPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "dumpmate", FileName)
}

// Load reads the configuration at path. A missing file yields an empty but
// valid configuration at the current version. The version field is always
// stamped to CurrentVersion in memory, so older files migrate on the next
// save.
func (s *Store) Load(path string) (*models.ConfigFile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is controlled by caller
	if os.IsNotExist(err) {
		s.logger.Debug().Str("path", path).Msg("no config file, starting empty")
		return &models.ConfigFile{Version: CurrentVersion, Databases: []models.Target{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg models.ConfigFile
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigParseError{Path: path, Err: err}
	}
	cfg.Version = CurrentVersion
	if cfg.Databases == nil {
		cfg.Databases = []models.Target{}
	}

	s.logger.Debug().Str("path", path).Int("targets", len(cfg.Databases)).Msg("config loaded")
	return &cfg, nil
}

// Save writes the configuration to path. Any existing file is first copied
// into the backups directory under a timestamped name (best-effort), then
// the new content is written to a temporary sibling and atomically renamed
// over the real path. A half-written file is never visible under the real
// name.
func (s *Store) Save(cfg *models.ConfigFile, path string) error {
	cfg.Version = CurrentVersion

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	s.backupExisting(path)

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return fmt.Errorf("creating temp config file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replacing config file: %w", err)
	}

	s.logger.Debug().Str("path", path).Int("targets", len(cfg.Databases)).Msg("config saved")
	return nil
}

// backupExisting copies the current file into the backups directory.
// Failures are logged and swallowed so a backup problem never blocks a save.
func (s *Store) backupExisting(path string) {
	src, err := os.Open(path) //nolint:gosec // path is controlled by caller
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("could not open config for backup")
		return
	}
	defer func() { _ = src.Close() }()

	backupDir := filepath.Join(filepath.Dir(path), backupDirName)
	if err := os.MkdirAll(backupDir, 0o750); err != nil {
		s.logger.Warn().Err(err).Msg("could not create backup directory")
		return
	}

	name := fmt.Sprintf("config.bak.%s.json", s.now().UTC().Format("20060102-150405"))
	dst, err := os.Create(filepath.Join(backupDir, name)) //nolint:gosec // backup path derived from config path
	if err != nil {
		s.logger.Warn().Err(err).Msg("could not create config backup")
		return
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.Copy(dst, src); err != nil {
		s.logger.Warn().Err(err).Msg("could not copy config backup")
		return
	}

	s.logger.Debug().Str("backup", name).Msg("config backed up")
}

// Upsert replaces the entry with the same id in place, preserving list
// order, or appends a new one. A missing id is assigned. UpdatedAt is
// refreshed, and CreatedAt set for new entries. The stored entry is
// returned.
func (s *Store) Upsert(cfg *models.ConfigFile, entry models.Target) models.Target {
	now := s.now()
	entry.UpdatedAt = now

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	for i, existing := range cfg.Databases {
		if existing.ID == entry.ID {
			entry.CreatedAt = existing.CreatedAt
			cfg.Databases[i] = entry
			return entry
		}
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	cfg.Databases = append(cfg.Databases, entry)
	return entry
}

// Delete removes the entry with the given id. Absence is a silent no-op.
func (s *Store) Delete(cfg *models.ConfigFile, id string) {
	for i, existing := range cfg.Databases {
		if existing.ID == id {
			cfg.Databases = append(cfg.Databases[:i], cfg.Databases[i+1:]...)
			return
		}
	}
}

// FindByIDOrAlias returns the first entry whose id or alias matches key.
func (s *Store) FindByIDOrAlias(cfg *models.ConfigFile, key string) (models.Target, bool) {
	for _, entry := range cfg.Databases {
		if entry.ID == key || (entry.Alias != "" && entry.Alias == key) {
			return entry, true
		}
	}
	return models.Target{}, false
}
