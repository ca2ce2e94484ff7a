package discovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const snapshotVersion = 1

// Snapshot is the on-disk form of a Cache.
type Snapshot struct {
	Version int                   `json:"version"`
	SavedAt time.Time             `json:"saved_at"`
	Devices map[string]DeviceInfo `json:"devices"`
}

// DefaultCachePath is ~/.moku-deploy/device_cache.json.
func DefaultCachePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".moku-deploy", "device_cache.json"), nil
}

// FileStore persists cache snapshots to a JSON file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string { return s.path }

// Save writes every device in cache, stale or not.
func (s *FileStore) Save(cache *Cache) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Version: snapshotVersion,
		SavedAt: cache.timeNow(),
		Devices: make(map[string]DeviceInfo),
	}
	for _, info := range cache.List() {
		snap.Devices[info.Key()] = info
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode device cache: %w", err)
	}

	// Write then rename so readers never see a partial file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write device cache: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Load merges the saved devices into cache and returns how many were read.
// A missing file is an empty cache.
func (s *FileStore) Load(cache *Cache) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read device cache: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return 0, fmt.Errorf("failed to decode device cache: %w", err)
	}
	if snap.Version > snapshotVersion {
		return 0, fmt.Errorf("device cache version %d is newer than supported %d", snap.Version, snapshotVersion)
	}

	n := 0
	for _, info := range snap.Devices {
		if err := cache.Put(info); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Clear removes the snapshot file.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
