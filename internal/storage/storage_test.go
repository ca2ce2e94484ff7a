package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KevinKickass/MokuCore/internal/deployment"
	"github.com/KevinKickass/MokuCore/internal/discovery"
	"github.com/KevinKickass/MokuCore/internal/platform"
)

func sealedConfig(t *testing.T) *deployment.Config {
	t.Helper()
	c := deployment.New(platform.MokuGo())
	require.NoError(t, c.AddSlot(deployment.NewSlotConfig(0, platform.InstrumentOscilloscope, nil)))
	require.NoError(t, c.Seal())
	return c
}

func TestMemoryStoreDeployments(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2025, 10, 24, 12, 0, 0, 0, time.UTC)
	store.timeNow = func() time.Time { return now }

	_, err := store.SaveDeployment(ctx, "draft", deployment.New(platform.MokuGo()))
	require.ErrorIs(t, err, ErrNotSealed)

	cfg := sealedConfig(t)
	first, err := store.SaveDeployment(ctx, "", cfg)
	require.NoError(t, err)
	assert.Equal(t, platform.MokuGoName, first.Name)
	assert.NotEqual(t, uuid.Nil, first.ID)

	now = now.Add(time.Minute)
	second, err := store.SaveDeployment(ctx, "bench", cfg)
	require.NoError(t, err)

	got, err := store.GetDeployment(ctx, first.ID)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(cfg.Document(), got.Document))

	list, err := store.ListDeployments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")

	require.NoError(t, store.DeleteDeployment(ctx, first.ID))
	_, err = store.GetDeployment(ctx, first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.DeleteDeployment(ctx, first.ID), ErrNotFound)
}

func TestMemoryStoreDevicesKeepNewest(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	t0 := time.Date(2025, 10, 24, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveDevices(ctx, []discovery.DeviceInfo{
		{SerialNumber: "MG106B", IP: "10.0.0.1", LastSeen: t0.Add(time.Minute)},
		{IP: "10.0.0.2", LastSeen: t0},
	}))
	require.NoError(t, store.SaveDevices(ctx, []discovery.DeviceInfo{
		{SerialNumber: "MG106B", IP: "10.0.0.9", LastSeen: t0},
	}))

	devices, err := store.LoadDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "10.0.0.1", devices[0].IP)
	assert.Equal(t, "10.0.0.2", devices[1].IP)
}
