package discovery

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var t0 = time.Date(2025, 10, 24, 23, 30, 0, 0, time.UTC)

func newTestCache(clock *fakeClock) *Cache {
	c := NewCache()
	c.timeNow = clock.Now
	return c
}

func TestCacheFreshnessIsFilteredAtRead(t *testing.T) {
	clock := newFakeClock(t0)
	cache := newTestCache(clock)

	require.NoError(t, cache.Put(DeviceInfo{ID: "A", IP: "192.168.1.100", LastSeen: t0}))

	clock.Advance(5 * time.Second)
	fresh := cache.ListFresh(10 * time.Second)
	require.Len(t, fresh, 1)
	assert.Equal(t, "A", fresh[0].ID)

	clock.Advance(15 * time.Second)
	assert.Empty(t, cache.ListFresh(10*time.Second))

	got, err := cache.Get("A")
	require.NoError(t, err, "stale entries stay until purged")
	assert.Equal(t, t0, got.LastSeen)

	assert.Equal(t, 1, cache.Purge(10*time.Second))
	_, err = cache.Get("A")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, cache.Len())
}

func TestCachePut(t *testing.T) {
	clock := newFakeClock(t0)
	cache := newTestCache(clock)

	t.Run("stamps zero last seen and default port", func(t *testing.T) {
		require.NoError(t, cache.Put(DeviceInfo{IP: "10.0.0.1"}))
		got, err := cache.Get("10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, t0, got.LastSeen)
		assert.Equal(t, DefaultPort, got.Port)
	})

	t.Run("overwrites by identity", func(t *testing.T) {
		require.NoError(t, cache.Put(DeviceInfo{SerialNumber: "MG106B", IP: "10.0.0.2"}))
		clock.Advance(time.Minute)
		require.NoError(t, cache.Put(DeviceInfo{SerialNumber: "MG106B", IP: "10.0.0.3"}))

		got, err := cache.Get("MG106B")
		require.NoError(t, err)
		assert.Equal(t, "10.0.0.3", got.IP)
		assert.Equal(t, t0.Add(time.Minute), got.LastSeen)
		assert.Equal(t, 2, cache.Len())
	})

	t.Run("requires identity", func(t *testing.T) {
		assert.ErrorIs(t, cache.Put(DeviceInfo{CanonicalName: "nameless"}), ErrMissingIdentity)
	})
}

func TestCachePutFoldsSameDevice(t *testing.T) {
	t.Run("address only then serial", func(t *testing.T) {
		cache := newTestCache(newFakeClock(t0))
		require.NoError(t, cache.Put(DeviceInfo{IP: "10.0.0.5", CanonicalName: "Lilo"}))
		require.NoError(t, cache.Put(DeviceInfo{IP: "10.0.0.5", SerialNumber: "MG106B", Platform: "mokugo"}))

		assert.Equal(t, 1, cache.Len())
		got, err := cache.Get("MG106B")
		require.NoError(t, err)
		assert.Equal(t, "Lilo", got.CanonicalName)
		_, err = cache.Get("10.0.0.5")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("serial then address only", func(t *testing.T) {
		cache := newTestCache(newFakeClock(t0))
		require.NoError(t, cache.Put(DeviceInfo{IP: "10.0.0.5", SerialNumber: "MG106B"}))
		require.NoError(t, cache.Put(DeviceInfo{IP: "10.0.0.5", CanonicalName: "Lilo"}))

		assert.Equal(t, 1, cache.Len())
		got, err := cache.Get("MG106B")
		require.NoError(t, err)
		assert.Equal(t, "Lilo", got.CanonicalName)
	})

	t.Run("serial gains an id", func(t *testing.T) {
		cache := newTestCache(newFakeClock(t0))
		require.NoError(t, cache.Put(DeviceInfo{IP: "10.0.0.5", SerialNumber: "MG106B"}))
		require.NoError(t, cache.Put(DeviceInfo{ID: "bench-1", IP: "10.0.0.6", SerialNumber: "mg106b"}))

		assert.Equal(t, 1, cache.Len())
		got, err := cache.Get("bench-1")
		require.NoError(t, err)
		assert.Equal(t, "10.0.0.6", got.IP)
	})

	t.Run("different serials at one address stay apart", func(t *testing.T) {
		cache := newTestCache(newFakeClock(t0))
		require.NoError(t, cache.Put(DeviceInfo{IP: "10.0.0.5", SerialNumber: "MG106B"}))
		require.NoError(t, cache.Put(DeviceInfo{IP: "10.0.0.5", SerialNumber: "MP204A"}))

		assert.Equal(t, 2, cache.Len())
	})
}

func TestDeviceKey(t *testing.T) {
	assert.Equal(t, "id", DeviceInfo{ID: "id", SerialNumber: "sn", IP: "ip"}.Key())
	assert.Equal(t, "sn", DeviceInfo{SerialNumber: "sn", IP: "ip"}.Key())
	assert.Equal(t, "ip", DeviceInfo{IP: "ip"}.Key())
}

func TestMatchesIdentifier(t *testing.T) {
	dev := DeviceInfo{IP: "192.168.1.100", CanonicalName: "Lilo", SerialNumber: "MG106B"}

	tests := []struct {
		identifier string
		want       bool
	}{
		{"192.168.1.100", true},
		{"192.168.1.10", false},
		{"lilo", true},
		{"LILO", true},
		{"mg106b", true},
		{"MokuB106", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.identifier, func(t *testing.T) {
			assert.Equal(t, tt.want, dev.MatchesIdentifier(tt.identifier))
		})
	}
}

func TestFindByIdentifier(t *testing.T) {
	cache := newTestCache(newFakeClock(t0))
	require.NoError(t, cache.Put(DeviceInfo{IP: "192.168.1.100", CanonicalName: "Lilo", SerialNumber: "MG106B"}))
	require.NoError(t, cache.Put(DeviceInfo{IP: "192.168.1.101", CanonicalName: "Stitch"}))

	got, err := cache.FindByIdentifier("stitch")
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.101", got.IP)

	got, err = cache.GetByIP("192.168.1.100")
	require.NoError(t, err)
	assert.Equal(t, "Lilo", got.CanonicalName)

	_, err = cache.FindByIdentifier("Nani")
	assert.ErrorIs(t, err, ErrNotFound)

	cache.Clear()
	assert.Equal(t, 0, cache.Len())
}

func TestCacheConcurrentAccess(t *testing.T) {
	cache := NewCache()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := fmt.Sprintf("dev-%d-%d", w, i%10)
				_ = cache.Put(DeviceInfo{ID: id, IP: "10.0.0.1"})
				_, _ = cache.Get(id)
				_ = cache.ListFresh(time.Hour)
				if i%25 == 0 {
					cache.Purge(time.Hour)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 80, cache.Len())
}

func TestFileStoreRoundTrip(t *testing.T) {
	clock := newFakeClock(t0)
	cache := newTestCache(clock)
	require.NoError(t, cache.Put(DeviceInfo{IP: "192.168.1.100", CanonicalName: "Lilo", SerialNumber: "MG106B", Platform: "mokugo"}))
	require.NoError(t, cache.Put(DeviceInfo{IP: "192.168.1.101", LastSeen: t0.Add(-time.Hour)}))

	store := NewFileStore(filepath.Join(t.TempDir(), ".moku-deploy", "device_cache.json"))
	require.NoError(t, store.Save(cache))

	restored := newTestCache(clock)
	n, err := store.Load(restored)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, cache.List(), restored.List())

	require.NoError(t, store.Clear())
	n, err = store.Load(NewCache())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestParseService(t *testing.T) {
	seen := t0

	info, err := ParseService(ServiceEntry{
		Instance: "MokuGo-000123",
		Host:     "mokugo-000123.local.",
		Text:     []string{"name=Lilo", "serial=MG106B", "HW=mokugo"},
		Addrs:    []string{"192.168.1.100", "fe80::1"},
	}, seen)
	require.NoError(t, err)

	assert.Equal(t, DeviceInfo{
		ID:            "MG106B",
		IP:            "192.168.1.100",
		Port:          DefaultPort,
		CanonicalName: "Lilo",
		SerialNumber:  "MG106B",
		ZeroconfName:  "MokuGo-000123",
		Platform:      "mokugo",
		LastSeen:      seen,
	}, info)

	info, err = ParseService(ServiceEntry{Instance: "Bare", Port: 8080, Addrs: []string{"10.0.0.9"}}, seen)
	require.NoError(t, err)
	assert.Equal(t, "Bare", info.CanonicalName)
	assert.Equal(t, 8080, info.Port)
	assert.Equal(t, "10.0.0.9", info.Key())

	_, err = ParseService(ServiceEntry{Instance: "NoAddr"}, seen)
	assert.Error(t, err)
}

func TestBrowserHandle(t *testing.T) {
	clock := newFakeClock(t0)
	cache := newTestCache(clock)
	b := NewBrowser(BrowserConfig{}, cache, zaptest.NewLogger(t))
	b.timeNow = clock.Now

	var notified []DeviceInfo
	b.OnDevice(func(info DeviceInfo) { notified = append(notified, info) })

	assert.True(t, b.Handle(ServiceEntry{
		Instance: "MokuGo-000123",
		Text:     []string{"serial=MG106B"},
		Addrs:    []string{"192.168.1.100"},
	}))
	assert.False(t, b.Handle(ServiceEntry{Instance: "NoAddr"}))

	got, err := cache.Get("MG106B")
	require.NoError(t, err)
	assert.Equal(t, t0, got.LastSeen)
	require.Len(t, notified, 1)
	assert.Equal(t, "192.168.1.100", notified[0].IP)
}
