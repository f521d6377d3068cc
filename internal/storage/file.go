// Package storage persists station configurations as one JSON file per
// station hash id.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/voltbench/ocpp-sim/internal/domain"
	"github.com/voltbench/ocpp-sim/internal/ports"
)

// FileStore implements ports.ConfigurationStore on a directory.
type FileStore struct {
	dir string
	log *zap.Logger
}

var _ ports.ConfigurationStore = (*FileStore)(nil)

// NewFileStore creates the directory when missing.
func NewFileStore(dir string, log *zap.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", dir, err)
	}
	return &FileStore{dir: dir, log: log.With(zap.String("component", "storage"))}, nil
}

func (f *FileStore) path(hashID string) string {
	return filepath.Join(f.dir, hashID+".json")
}

// Load returns nil without error when no configuration was saved yet.
func (f *FileStore) Load(hashID string) (*domain.StationConfiguration, error) {
	data, err := os.ReadFile(f.path(hashID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: read %s: %w", hashID, err)
	}
	var cfg domain.StationConfiguration
	if err := json.Unmarshal(data, &cfg); err != nil {
		// A corrupt file must not keep the station from booting.
		f.log.Warn("dropping corrupt configuration file",
			zap.String("hashId", hashID), zap.Error(err))
		return nil, nil
	}
	return &cfg, nil
}

// Save writes atomically via a temp file rename.
func (f *FileStore) Save(hashID string, cfg *domain.StationConfiguration) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshal %s: %w", hashID, err)
	}
	tmp, err := os.CreateTemp(f.dir, hashID+".*.tmp")
	if err != nil {
		return fmt.Errorf("storage: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: write %s: %w", hashID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close %s: %w", hashID, err)
	}
	if err := os.Rename(tmp.Name(), f.path(hashID)); err != nil {
		return fmt.Errorf("storage: rename %s: %w", hashID, err)
	}
	return nil
}

// List returns the hash ids with a stored configuration.
func (f *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		ids = append(ids, name[:len(name)-len(".json")])
	}
	return ids, nil
}

// Delete removes a stored configuration; deleting a missing one is a no-op.
func (f *FileStore) Delete(hashID string) error {
	err := os.Remove(f.path(hashID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: delete %s: %w", hashID, err)
	}
	return nil
}
