package platform

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrUnknownPlatform   = errors.New("unknown platform")
	ErrDuplicatePlatform = errors.New("platform already registered")
)

// UnknownPlatformError is returned by Registry.Get for unregistered names.
type UnknownPlatformError struct {
	Name string
}

func (e *UnknownPlatformError) Error() string {
	return fmt.Sprintf("unknown platform: %q", e.Name)
}

func (e *UnknownPlatformError) Unwrap() error {
	return ErrUnknownPlatform
}

// Registry maps platform names to specs. Lookups accept the display name or
// the hardware id, case-insensitively.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]*Spec
	byHW  map[string]string
}

func NewRegistry(specs ...*Spec) (*Registry, error) {
	r := &Registry{
		specs: make(map[string]*Spec),
		byHW:  make(map[string]string),
	}
	for _, s := range specs {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultRegistry returns a registry populated with the built-in platforms.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(MokuGo())
	if err != nil {
		// built-in specs are static
		panic(fmt.Sprintf("platform: invalid built-in spec: %v", err))
	}
	return r
}

// Register adds a platform. The registry keeps its own copy.
func (r *Registry) Register(spec *Spec) error {
	if spec == nil {
		return fmt.Errorf("platform spec is nil")
	}
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("invalid platform spec: %w", err)
	}

	key := strings.ToLower(spec.Name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.specs[key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicatePlatform, spec.Name)
	}
	if spec.HardwareID != "" {
		if owner, exists := r.byHW[strings.ToLower(spec.HardwareID)]; exists {
			return fmt.Errorf("%w: hardware id %s used by %s", ErrDuplicatePlatform, spec.HardwareID, owner)
		}
	}

	r.specs[key] = spec.Clone()
	if spec.HardwareID != "" {
		r.byHW[strings.ToLower(spec.HardwareID)] = key
	}
	return nil
}

// Get returns a copy of the platform registered under name.
func (r *Registry) Get(name string) (*Spec, error) {
	key := strings.ToLower(strings.TrimSpace(name))

	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.specs[key]; ok {
		return s.Clone(), nil
	}
	if k, ok := r.byHW[key]; ok {
		return r.specs[k].Clone(), nil
	}
	return nil, &UnknownPlatformError{Name: name}
}

// Names returns the registered display names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.specs))
	for _, s := range r.specs {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}

// List returns copies of all registered specs ordered by name.
func (r *Registry) List() []*Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]*Spec, 0, len(r.specs))
	for _, s := range r.specs {
		specs = append(specs, s.Clone())
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}
