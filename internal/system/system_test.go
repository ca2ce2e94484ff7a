package system

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KevinKickass/MokuCore/internal/config"
	"github.com/KevinKickass/MokuCore/internal/discovery"
	"github.com/KevinKickass/MokuCore/internal/platform"
	"github.com/KevinKickass/MokuCore/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Server: config.ServerConfig{HTTPPort: 18080, ShutdownTimeout: 2 * time.Second},
		Auth:   config.AuthConfig{JWTSecretEnv: "MOKU_TEST_JWT_SECRET", AccessTokenTTL: time.Hour},
		Platforms: config.SearchConfig{
			SearchPaths: []string{filepath.Join(dir, "platforms")},
		},
		Instruments: config.SearchConfig{
			SearchPaths: []string{filepath.Join(dir, "instruments")},
		},
		Discovery: config.DiscoveryConfig{
			Enabled:        false,
			BrowseInterval: time.Minute,
			MaxAge:         10 * time.Minute,
			CacheFile:      filepath.Join(dir, "device_cache.json"),
		},
	}
}

func newTestManager(t *testing.T, cfg *config.Config, repo storage.Repository) *LifecycleManager {
	t.Helper()
	lm, err := NewLifecycleManager(repo, cfg, zap.NewNop())
	require.NoError(t, err)
	return lm
}

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		from, to SystemState
		ok       bool
	}{
		{StateInitializing, StateRunning, true},
		{StateRunning, StateReloading, true},
		{StateReloading, StateRunning, true},
		{StateRunning, StateStopping, true},
		{StateStopping, StateStopped, true},
		{StateError, StateStopped, true},
		{StateInitializing, StateReloading, false},
		{StateStopped, StateRunning, false},
		{StateReloading, StateStopping, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSystemStateText(t *testing.T) {
	text, err := StateReloading.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "RELOADING", string(text))
	assert.Equal(t, "UNKNOWN", SystemState(42).String())

	assert.True(t, StateRunning.Serving())
	assert.False(t, StateStopping.Serving())
}

func TestRestoreDevicesMergesFileAndRepository(t *testing.T) {
	cfg := testConfig(t)
	now := time.Now()

	// Snapshot file from a previous run.
	prev := discovery.NewCache()
	require.NoError(t, prev.Put(discovery.DeviceInfo{IP: "192.168.73.1", SerialNumber: "MG106B", LastSeen: now.Add(-time.Minute)}))
	require.NoError(t, discovery.NewFileStore(cfg.Discovery.CacheFile).Save(prev))

	// The repository knows the same device more recently, plus another one.
	repo := storage.NewMemoryStore()
	require.NoError(t, repo.SaveDevices(context.Background(), []discovery.DeviceInfo{
		{IP: "192.168.73.10", SerialNumber: "MG106B", LastSeen: now},
		{IP: "192.168.73.2", SerialNumber: "MG200A", LastSeen: now.Add(-time.Hour)},
	}))

	lm := newTestManager(t, cfg, repo)
	require.NoError(t, lm.restoreDevices(context.Background()))

	assert.Equal(t, 2, lm.Devices().Len())
	got, err := lm.Devices().Get("MG106B")
	require.NoError(t, err)
	assert.Equal(t, "192.168.73.10", got.IP)

	// Restored entries keep their age.
	assert.Len(t, lm.Devices().ListFresh(cfg.Discovery.MaxAge), 1)
}

func TestMaintainPurgesAndPersists(t *testing.T) {
	cfg := testConfig(t)
	repo := storage.NewMemoryStore()
	lm := newTestManager(t, cfg, repo)

	now := time.Now()
	require.NoError(t, lm.Devices().Put(discovery.DeviceInfo{IP: "192.168.73.1", LastSeen: now}))
	require.NoError(t, lm.Devices().Put(discovery.DeviceInfo{IP: "192.168.73.2", LastSeen: now.Add(-time.Hour)}))

	lm.maintain(context.Background())

	assert.Equal(t, 1, lm.Devices().Len())

	restored := discovery.NewCache()
	n, err := discovery.NewFileStore(cfg.Discovery.CacheFile).Load(restored)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := repo.LoadDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "192.168.73.1", stored[0].IP)
}

func TestReloadInstruments(t *testing.T) {
	cfg := testConfig(t)
	lm := newTestManager(t, cfg, storage.NewMemoryStore())

	_, err := lm.ReloadInstruments()
	assert.Error(t, err, "not running yet")

	require.NoError(t, lm.transition(StateRunning))

	dir := filepath.Join(cfg.Instruments.SearchPaths[0], "pulsestar")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "instrument.yaml"), []byte(`name: pulsestar
display_name: PulseStar
description: Pulse train generator
author: Vollminlab
`), 0644))

	n, err := lm.ReloadInstruments()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, StateRunning, lm.State())
	assert.Equal(t, 1, lm.GetCurrentStatus().Instruments)
}

func TestLoadDefinitionsRegistersPlatformFiles(t *testing.T) {
	cfg := testConfig(t)
	lm := newTestManager(t, cfg, storage.NewMemoryStore())

	before := len(lm.Platforms().Names())
	lm.loadDefinitions()
	assert.Equal(t, before, len(lm.Platforms().Names()), "missing search paths are skipped")

	_, err := lm.Platforms().Get(platform.MokuGoName)
	assert.NoError(t, err)
}

func TestShutdownPersistsAndStops(t *testing.T) {
	cfg := testConfig(t)
	lm := newTestManager(t, cfg, storage.NewMemoryStore())
	require.NoError(t, lm.Devices().Put(discovery.DeviceInfo{IP: "192.168.73.1"}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, lm.Shutdown(ctx))
	assert.Equal(t, StateStopped, lm.State())

	_, err := os.Stat(cfg.Discovery.CacheFile)
	assert.NoError(t, err)

	status := lm.GetCurrentStatus()
	assert.Equal(t, "STOPPED", status.State)
	assert.False(t, status.Persistent)
	assert.Equal(t, 1, status.CachedDevices)
}
