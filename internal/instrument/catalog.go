package instrument

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ManifestFile is the file name a catalog looks for in each instrument
// directory.
const ManifestFile = "instrument.yaml"

var ErrUnknownInstrument = errors.New("unknown instrument")

// Catalog indexes the manifests found under a set of search paths. Each
// instrument lives in its own directory: <path>/<name>/instrument.yaml.
type Catalog struct {
	searchPaths []string
	validator   *Validator
	logger      *zap.Logger

	mu        sync.RWMutex
	manifests map[string]Manifest
}

func NewCatalog(searchPaths []string, logger *zap.Logger) (*Catalog, error) {
	validator, err := NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create validator: %w", err)
	}

	return &Catalog{
		searchPaths: searchPaths,
		validator:   validator,
		logger:      logger,
		manifests:   make(map[string]Manifest),
	}, nil
}

// Scan rereads every search path. Invalid manifests are skipped and reported
// together in the returned error; valid ones are still indexed.
func (c *Catalog) Scan() (int, error) {
	found := make(map[string]Manifest)
	var errs []error

	for _, dir := range c.searchPaths {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			c.logger.Debug("Instrument search path does not exist", zap.String("path", dir))
			continue
		}
		paths, err := filepath.Glob(filepath.Join(dir, "*", ManifestFile))
		if err != nil {
			errs = append(errs, fmt.Errorf("search path %s: %w", dir, err))
			continue
		}

		for _, path := range paths {
			m, err := LoadManifest(path)
			if err == nil {
				err = c.validator.Validate(m)
			}
			if err != nil {
				c.logger.Warn("Skipping invalid instrument manifest", zap.String("path", path), zap.Error(err))
				errs = append(errs, err)
				continue
			}
			if _, dup := found[m.Name]; dup {
				c.logger.Warn("Duplicate instrument, keeping first",
					zap.String("name", m.Name), zap.String("path", path))
				continue
			}
			found[m.Name] = m
		}
	}

	c.mu.Lock()
	c.manifests = found
	c.mu.Unlock()

	c.logger.Info("Instrument catalog scanned",
		zap.Int("instruments", len(found)),
		zap.Strings("search_paths", c.searchPaths))

	return len(found), errors.Join(errs...)
}

func (c *Catalog) Get(name string) (Manifest, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.manifests[name]
	if !ok {
		return Manifest{}, fmt.Errorf("%w: %s", ErrUnknownInstrument, name)
	}
	return m, nil
}

// List returns all manifests sorted by name.
func (c *Catalog) List() []Manifest {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Manifest, 0, len(c.manifests))
	for _, m := range c.manifests {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
