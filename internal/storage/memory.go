package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KevinKickass/MokuCore/internal/deployment"
	"github.com/KevinKickass/MokuCore/internal/discovery"
)

// MemoryStore is the Repository used when no database is configured.
// Nothing survives a restart.
type MemoryStore struct {
	mu          sync.RWMutex
	deployments map[uuid.UUID]StoredDeployment
	devices     map[string]discovery.DeviceInfo

	timeNow func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		deployments: make(map[uuid.UUID]StoredDeployment),
		devices:     make(map[string]discovery.DeviceInfo),
		timeNow:     time.Now,
	}
}

func (m *MemoryStore) SaveDeployment(_ context.Context, name string, cfg *deployment.Config) (StoredDeployment, error) {
	stored, err := newStoredDeployment(name, cfg, m.timeNow())
	if err != nil {
		return StoredDeployment{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.deployments[stored.ID] = stored
	return stored, nil
}

func (m *MemoryStore) GetDeployment(_ context.Context, id uuid.UUID) (StoredDeployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.deployments[id]
	if !ok {
		return StoredDeployment{}, fmt.Errorf("deployment %s: %w", id, ErrNotFound)
	}
	return stored, nil
}

func (m *MemoryStore) ListDeployments(_ context.Context) ([]StoredDeployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]StoredDeployment, 0, len(m.deployments))
	for _, d := range m.deployments {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) DeleteDeployment(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.deployments[id]; !ok {
		return fmt.Errorf("deployment %s: %w", id, ErrNotFound)
	}
	delete(m.deployments, id)
	return nil
}

func (m *MemoryStore) SaveDevices(_ context.Context, devices []discovery.DeviceInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, dev := range devices {
		if prev, ok := m.devices[dev.Key()]; ok && prev.LastSeen.After(dev.LastSeen) {
			continue
		}
		m.devices[dev.Key()] = dev
	}
	return nil
}

func (m *MemoryStore) LoadDevices(_ context.Context) ([]discovery.DeviceInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]discovery.DeviceInfo, 0, len(m.devices))
	for _, dev := range m.devices {
		out = append(out, dev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	return out, nil
}
