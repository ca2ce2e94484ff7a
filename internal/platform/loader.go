package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Loader registers additional platform definitions (Moku:Lab, Moku:Pro, ...)
// from YAML files found in its search paths.
type Loader struct {
	registry    *Registry
	validator   *SchemaValidator
	searchPaths []string
	logger      *zap.Logger
}

func NewLoader(registry *Registry, searchPaths []string, logger *zap.Logger) (*Loader, error) {
	validator, err := NewSchemaValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create validator: %w", err)
	}

	return &Loader{
		registry:    registry,
		validator:   validator,
		searchPaths: searchPaths,
		logger:      logger,
	}, nil
}

// LoadFile parses and validates one platform file without registering it.
func (l *Loader) LoadFile(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read platform %s: %w", path, err)
	}

	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal platform %s: %w", path, err)
	}

	if err := l.validator.ValidateSpec(&spec); err != nil {
		return nil, fmt.Errorf("validation failed for %s: %w", path, err)
	}

	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed for %s: %w", path, err)
	}

	return &spec, nil
}

// LoadAll registers every *.yaml / *.yml file in the search paths. Files that
// fail are logged and reported in the joined error; the rest are registered.
func (l *Loader) LoadAll() (int, error) {
	var errs []error
	loaded := 0

	for _, searchPath := range l.searchPaths {
		files, err := platformFiles(searchPath)
		if err != nil {
			l.logger.Warn("Platform search path unreadable",
				zap.String("path", searchPath),
				zap.Error(err))
			continue
		}

		for _, file := range files {
			spec, err := l.LoadFile(file)
			if err == nil {
				err = l.registry.Register(spec)
			}
			if err != nil {
				l.logger.Error("Failed to load platform",
					zap.String("file", file),
					zap.Error(err))
				errs = append(errs, err)
				continue
			}

			loaded++
			l.logger.Info("Platform registered",
				zap.String("name", spec.Name),
				zap.String("hardware_id", spec.HardwareID),
				zap.Int("slots", spec.SlotCount),
				zap.String("file", file))
		}
	}

	return loaded, errors.Join(errs...)
}

func platformFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
