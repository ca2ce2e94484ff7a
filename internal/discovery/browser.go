package discovery

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
	"go.uber.org/zap"
)

const (
	ServiceType = "_moku._tcp"
	Domain      = "local"
)

// TXT record keys advertised by Moku devices.
const (
	TXTName   = "name"
	TXTSerial = "serial"
	TXTHW     = "hw"
)

// ServiceEntry is one resolved mDNS service, detached from the zeroconf types.
type ServiceEntry struct {
	Instance string
	Host     string
	Port     int
	Text     []string
	Addrs    []string
}

// ParseService turns a resolved service into a DeviceInfo seen at seen.
func ParseService(entry ServiceEntry, seen time.Time) (DeviceInfo, error) {
	if len(entry.Addrs) == 0 {
		return DeviceInfo{}, fmt.Errorf("service %q has no address", entry.Instance)
	}

	txt := parseTXT(entry.Text)
	info := DeviceInfo{
		IP:            entry.Addrs[0],
		Port:          entry.Port,
		CanonicalName: txt[TXTName],
		SerialNumber:  txt[TXTSerial],
		ZeroconfName:  entry.Instance,
		Platform:      txt[TXTHW],
		LastSeen:      seen,
	}
	if info.CanonicalName == "" {
		info.CanonicalName = entry.Instance
	}
	if info.Port == 0 {
		info.Port = DefaultPort
	}
	info.ID = info.SerialNumber
	return info, nil
}

func parseTXT(records []string) map[string]string {
	txt := make(map[string]string, len(records))
	for _, r := range records {
		k, v, _ := strings.Cut(r, "=")
		if k != "" {
			txt[strings.ToLower(k)] = v
		}
	}
	return txt
}

func entryFromZeroconf(e *zeroconf.ServiceEntry) ServiceEntry {
	addrs := make([]string, 0, len(e.AddrIPv4)+len(e.AddrIPv6))
	for _, ip := range e.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range e.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return ServiceEntry{
		Instance: e.Instance,
		Host:     e.HostName,
		Port:     e.Port,
		Text:     e.Text,
		Addrs:    addrs,
	}
}

type BrowserConfig struct {
	// Interface restricts browsing to one network interface. Empty means all.
	Interface string
}

// Browser is the discovery collaborator: it browses _moku._tcp and puts every
// resolved device into a Cache.
type Browser struct {
	config BrowserConfig
	cache  *Cache
	logger *zap.Logger

	mu       sync.Mutex
	onDevice []func(DeviceInfo)

	timeNow func() time.Time
}

func NewBrowser(config BrowserConfig, cache *Cache, logger *zap.Logger) *Browser {
	return &Browser{
		config:  config,
		cache:   cache,
		logger:  logger,
		timeNow: time.Now,
	}
}

// OnDevice registers a callback run after each device is stored.
func (b *Browser) OnDevice(fn func(DeviceInfo)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onDevice = append(b.onDevice, fn)
}

// Browse runs one browse pass until ctx is done and returns how many
// services were stored.
func (b *Browser) Browse(ctx context.Context) (int, error) {
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	errCh := make(chan error, 1)
	go func() {
		errCh <- zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, b.options()...)
	}()

	stored := 0
	for {
		select {
		case e, ok := <-entries:
			if !ok {
				entries = nil
				continue
			}
			if b.Handle(entryFromZeroconf(e)) {
				stored++
			}

		case e, ok := <-removed:
			if !ok {
				removed = nil
				continue
			}
			b.logger.Debug("Moku service withdrawn", zap.String("instance", e.Instance))

		case err := <-errCh:
			if err != nil && ctx.Err() == nil {
				return stored, fmt.Errorf("mdns browse failed: %w", err)
			}
			return stored, nil

		case <-ctx.Done():
			return stored, nil
		}
	}
}

// Handle parses one resolved service and stores it. It reports whether the
// device made it into the cache.
func (b *Browser) Handle(entry ServiceEntry) bool {
	info, err := ParseService(entry, b.timeNow())
	if err != nil {
		b.logger.Warn("Ignoring Moku service", zap.String("instance", entry.Instance), zap.Error(err))
		return false
	}

	if err := b.cache.Put(info); err != nil {
		b.logger.Warn("Failed to cache device", zap.String("instance", entry.Instance), zap.Error(err))
		return false
	}

	b.logger.Info("Discovered Moku device",
		zap.String("name", info.CanonicalName),
		zap.String("ip", info.IP),
		zap.String("serial", info.SerialNumber),
		zap.String("platform", info.Platform))

	b.mu.Lock()
	callbacks := append([]func(DeviceInfo){}, b.onDevice...)
	b.mu.Unlock()
	for _, fn := range callbacks {
		fn(info)
	}
	return true
}

func (b *Browser) options() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption

	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err != nil {
			b.logger.Warn("Unknown discovery interface, browsing all",
				zap.String("interface", b.config.Interface), zap.Error(err))
			return opts
		}
		opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
	}

	return opts
}
