package interfaces

import (
	"context"

	"github.com/KevinKickass/MokuCore/internal/config"
	"github.com/KevinKickass/MokuCore/internal/discovery"
	"github.com/KevinKickass/MokuCore/internal/instrument"
	"github.com/KevinKickass/MokuCore/internal/platform"
	"github.com/KevinKickass/MokuCore/internal/storage"
)

// SystemStatus represents the current system state
type SystemStatus struct {
	State            string `json:"state"`
	Platforms        int    `json:"platforms"`
	Instruments      int    `json:"instruments"`
	CachedDevices    int    `json:"cached_devices"`
	DiscoveryEnabled bool   `json:"discovery_enabled"`
	Persistent       bool   `json:"persistent"`
}

type LifecycleManager interface {
	Config() *config.Config
	Platforms() *platform.Registry
	Devices() *discovery.Cache
	Instruments() *instrument.Catalog
	Repository() storage.Repository
	GetCurrentStatus() SystemStatus
	ReloadInstruments() (int, error)
	Shutdown(ctx context.Context) error
}
