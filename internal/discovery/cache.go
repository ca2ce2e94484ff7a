package discovery

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotFound        = errors.New("device not found")
	ErrMissingIdentity = errors.New("device has no id, serial number or IP address")
)

// Cache holds discovered devices keyed by identity. Entries are never
// dropped implicitly: reads filter by age, Purge removes.
//
// Cache does no network I/O. A Browser (or anything else) feeds it via Put.
type Cache struct {
	mu      sync.RWMutex
	devices map[string]DeviceInfo

	// timeNow returns the current time. Defaults to time.Now.
	timeNow func() time.Time
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		devices: make(map[string]DeviceInfo),
		timeNow: time.Now,
	}
}

// Put inserts or replaces the device with the same identity key. A zero
// LastSeen is stamped with the current time; a zero Port becomes DefaultPort.
//
// An entry stored under a different key for the same device (an IP-only
// record at the same address, or a matching ID or serial) is folded into
// info first, so a device first added by address and later announced with
// its serial stays a single entry.
func (c *Cache) Put(info DeviceInfo) error {
	if info.Key() == "" {
		return ErrMissingIdentity
	}
	if info.Port == 0 {
		info.Port = DefaultPort
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if info.LastSeen.IsZero() {
		info.LastSeen = c.timeNow()
	}
	for key, old := range c.devices {
		if key != info.Key() && sameDevice(old, info) {
			info = fillFrom(info, old)
			delete(c.devices, key)
		}
	}
	c.devices[info.Key()] = info
	return nil
}

// sameDevice reports whether a and b describe one device. Two records that
// both know a serial or ID are only the same if those agree; an IP-only
// record matches anything at its address.
func sameDevice(a, b DeviceInfo) bool {
	switch {
	case a.ID != "" && a.ID == b.ID:
		return true
	case a.SerialNumber != "" && strings.EqualFold(a.SerialNumber, b.SerialNumber):
		return true
	case a.IP == "" || a.IP != b.IP:
		return false
	default:
		return a.Key() == a.IP || b.Key() == b.IP
	}
}

// fillFrom copies the identity fields info lacks from old.
func fillFrom(info, old DeviceInfo) DeviceInfo {
	if info.ID == "" {
		info.ID = old.ID
	}
	if info.SerialNumber == "" {
		info.SerialNumber = old.SerialNumber
	}
	if info.IP == "" {
		info.IP = old.IP
	}
	if info.CanonicalName == "" {
		info.CanonicalName = old.CanonicalName
	}
	if info.ZeroconfName == "" {
		info.ZeroconfName = old.ZeroconfName
	}
	if info.Platform == "" {
		info.Platform = old.Platform
	}
	return info
}

// Get returns the device stored under id, however old.
func (c *Cache) Get(id string) (DeviceInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, ok := c.devices[id]
	if !ok {
		return DeviceInfo{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return info, nil
}

// GetByIP returns the device at ip.
func (c *Cache) GetByIP(ip string) (DeviceInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, info := range c.devices {
		if info.IP == ip {
			return info, nil
		}
	}
	return DeviceInfo{}, fmt.Errorf("%w: %s", ErrNotFound, ip)
}

// FindByIdentifier returns the first device whose IP, name or serial matches.
// Devices are checked in key order so the result is stable.
func (c *Cache) FindByIdentifier(identifier string) (DeviceInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, key := range c.sortedKeys() {
		if info := c.devices[key]; info.MatchesIdentifier(identifier) {
			return info, nil
		}
	}
	return DeviceInfo{}, fmt.Errorf("%w: %s", ErrNotFound, identifier)
}

// ListFresh returns devices seen within maxAge, ordered by key.
func (c *Cache) ListFresh(maxAge time.Duration) []DeviceInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.timeNow()
	out := make([]DeviceInfo, 0, len(c.devices))
	for _, key := range c.sortedKeys() {
		if info := c.devices[key]; info.Age(now) <= maxAge {
			out = append(out, info)
		}
	}
	return out
}

// List returns every device regardless of age, ordered by key.
func (c *Cache) List() []DeviceInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]DeviceInfo, 0, len(c.devices))
	for _, key := range c.sortedKeys() {
		out = append(out, c.devices[key])
	}
	return out
}

// Purge removes devices not seen within maxAge and returns how many.
func (c *Cache) Purge(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.timeNow()
	removed := 0
	for key, info := range c.devices {
		if info.Age(now) > maxAge {
			delete(c.devices, key)
			removed++
		}
	}
	return removed
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.devices = make(map[string]DeviceInfo)
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.devices)
}

// callers hold mu
func (c *Cache) sortedKeys() []string {
	keys := make([]string, 0, len(c.devices))
	for k := range c.devices {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
