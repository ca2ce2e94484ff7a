package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/KevinKickass/MokuCore/internal/deployment"
	"github.com/KevinKickass/MokuCore/internal/discovery"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrNotSealed = errors.New("only sealed deployments can be stored")
)

// StoredDeployment is a sealed configuration as kept in the repository.
type StoredDeployment struct {
	ID        uuid.UUID           `json:"id"`
	Name      string              `json:"name"`
	Platform  string              `json:"platform"`
	Document  deployment.Document `json:"document"` // JSONB
	CreatedAt time.Time           `json:"created_at"`
}

// Repository persists sealed deployments and device cache snapshots.
type Repository interface {
	SaveDeployment(ctx context.Context, name string, cfg *deployment.Config) (StoredDeployment, error)
	GetDeployment(ctx context.Context, id uuid.UUID) (StoredDeployment, error)
	ListDeployments(ctx context.Context) ([]StoredDeployment, error)
	DeleteDeployment(ctx context.Context, id uuid.UUID) error

	SaveDevices(ctx context.Context, devices []discovery.DeviceInfo) error
	LoadDevices(ctx context.Context) ([]discovery.DeviceInfo, error)
}

var (
	_ Repository = (*PostgresClient)(nil)
	_ Repository = (*MemoryStore)(nil)
)

func newStoredDeployment(name string, cfg *deployment.Config, now time.Time) (StoredDeployment, error) {
	if !cfg.Sealed() {
		return StoredDeployment{}, ErrNotSealed
	}
	if name == "" {
		name = cfg.Platform().Name
	}
	return StoredDeployment{
		ID:        uuid.New(),
		Name:      name,
		Platform:  cfg.Platform().Name,
		Document:  cfg.Document(),
		CreatedAt: now.UTC(),
	}, nil
}
