package system

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KevinKickass/MokuCore/internal/api/rest"
	"github.com/KevinKickass/MokuCore/internal/api/websocket"
	"github.com/KevinKickass/MokuCore/internal/auth"
	"github.com/KevinKickass/MokuCore/internal/config"
	"github.com/KevinKickass/MokuCore/internal/discovery"
	"github.com/KevinKickass/MokuCore/internal/instrument"
	"github.com/KevinKickass/MokuCore/internal/interfaces"
	"github.com/KevinKickass/MokuCore/internal/platform"
	"github.com/KevinKickass/MokuCore/internal/storage"
)

// LifecycleManager owns every long-lived component of the server and the
// background loops that keep the device cache current.
type LifecycleManager struct {
	config *config.Config
	logger *zap.Logger

	registry *platform.Registry
	loader   *platform.Loader
	catalog  *instrument.Catalog

	cache     *discovery.Cache
	fileStore *discovery.FileStore // nil when no cache file is usable
	browser   *discovery.Browser

	repo storage.Repository
	jwt  *auth.JWTHandler
	hub  *websocket.Hub

	restServer *rest.Server

	stateMu      sync.RWMutex
	currentState SystemState

	cancel       context.CancelFunc
	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

var _ interfaces.LifecycleManager = (*LifecycleManager)(nil)

func NewLifecycleManager(repo storage.Repository, cfg *config.Config, logger *zap.Logger) (*LifecycleManager, error) {
	registry := platform.DefaultRegistry()
	loader, err := platform.NewLoader(registry, cfg.Platforms.SearchPaths, logger)
	if err != nil {
		return nil, err
	}

	catalog, err := instrument.NewCatalog(cfg.Instruments.SearchPaths, logger)
	if err != nil {
		return nil, err
	}

	cache := discovery.NewCache()
	browser := discovery.NewBrowser(discovery.BrowserConfig{Interface: cfg.Discovery.Interface}, cache, logger)

	cachePath := cfg.Discovery.CacheFile
	if cachePath == "" {
		if cachePath, err = discovery.DefaultCachePath(); err != nil {
			logger.Warn("No device cache file available", zap.Error(err))
		}
	}
	var fileStore *discovery.FileStore
	if cachePath != "" {
		fileStore = discovery.NewFileStore(cachePath)
	}

	jwt := auth.NewJWTHandler(cfg.Auth.GetJWTSecret(), cfg.Auth.AccessTokenTTL)
	hub := websocket.NewHub(logger, jwt)

	lm := &LifecycleManager{
		config:       cfg,
		logger:       logger,
		registry:     registry,
		loader:       loader,
		catalog:      catalog,
		cache:        cache,
		fileStore:    fileStore,
		browser:      browser,
		repo:         repo,
		jwt:          jwt,
		hub:          hub,
		currentState: StateInitializing,
	}

	browser.OnDevice(func(info discovery.DeviceInfo) {
		hub.Broadcast(websocket.NewDeviceDiscoveredMessage(info))
	})

	lm.restServer = rest.NewServer(cfg, lm, logger, hub, jwt)
	return lm, nil
}

func (lm *LifecycleManager) Config() *config.Config           { return lm.config }
func (lm *LifecycleManager) Platforms() *platform.Registry    { return lm.registry }
func (lm *LifecycleManager) Devices() *discovery.Cache        { return lm.cache }
func (lm *LifecycleManager) Instruments() *instrument.Catalog { return lm.catalog }
func (lm *LifecycleManager) Repository() storage.Repository   { return lm.repo }
func (lm *LifecycleManager) JWT() *auth.JWTHandler            { return lm.jwt }

// Start starts the entire system
func (lm *LifecycleManager) Start() error {
	lm.logger.Info("Starting MokuCore")

	if !lm.config.Auth.IsProductionReady() {
		lm.logger.Warn("JWT secret is the development default or too short",
			zap.String("env", lm.config.Auth.JWTSecretEnv))
	}

	ctx, cancel := context.WithCancel(context.Background())
	lm.cancel = cancel

	lm.loadDefinitions()

	if err := lm.restoreDevices(ctx); err != nil {
		// Continue anyway, not critical
		lm.logger.Warn("Failed to restore device cache", zap.Error(err))
	}

	lm.wg.Add(1)
	go func() {
		defer lm.wg.Done()
		lm.hub.Run(ctx)
	}()

	lm.wg.Add(1)
	go func() {
		defer lm.wg.Done()
		lm.runMaintenance(ctx)
	}()

	if err := lm.restServer.Start(); err != nil {
		lm.setError(fmt.Errorf("failed to start REST API: %w", err))
		return err
	}

	if err := lm.transition(StateRunning); err != nil {
		return err
	}

	lm.logger.Info("System started successfully",
		zap.Int("http_port", lm.config.Server.HTTPPort),
		zap.Int("platforms", len(lm.registry.Names())),
		zap.Int("instruments", len(lm.catalog.List())),
		zap.Bool("discovery_enabled", lm.config.Discovery.Enabled))

	return nil
}

// loadDefinitions registers platform files and scans instrument manifests.
// Broken files are logged and skipped.
func (lm *LifecycleManager) loadDefinitions() {
	n, err := lm.loader.LoadAll()
	if err != nil {
		lm.logger.Warn("Some platform definitions failed to load", zap.Error(err))
	}
	lm.logger.Info("Platform definitions loaded",
		zap.Int("from_files", n),
		zap.Strings("platforms", lm.registry.Names()))

	n, err = lm.catalog.Scan()
	if err != nil {
		lm.logger.Warn("Some instrument manifests failed to load", zap.Error(err))
	}
	lm.logger.Info("Instrument manifests loaded", zap.Int("count", n))
}

// restoreDevices fills the cache from the snapshot file and the repository.
// Entries keep their recorded LastSeen, so stale ones stay hidden from
// fresh reads until rediscovered.
func (lm *LifecycleManager) restoreDevices(ctx context.Context) error {
	var errs []error

	if lm.fileStore != nil {
		n, err := lm.fileStore.Load(lm.cache)
		if err != nil {
			errs = append(errs, err)
		}
		lm.logger.Info("Device cache file loaded",
			zap.String("path", lm.fileStore.Path()),
			zap.Int("count", n))
	}

	devices, err := lm.repo.LoadDevices(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to load devices: %w", err))
	}
	for _, info := range devices {
		existing, getErr := lm.cache.Get(info.Key())
		if getErr == nil && existing.LastSeen.After(info.LastSeen) {
			continue
		}
		if err := lm.cache.Put(info); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// runMaintenance browses for devices (when enabled), purges stale entries
// and persists the cache, once per browse interval.
func (lm *LifecycleManager) runMaintenance(ctx context.Context) {
	interval := lm.config.Discovery.BrowseInterval
	if interval <= 0 {
		interval = lm.config.Discovery.MaxAge
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lm.maintain(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lm.maintain(ctx)
		}
	}
}

func (lm *LifecycleManager) maintain(ctx context.Context) {
	if lm.config.Discovery.Enabled {
		timeout := lm.config.Discovery.BrowseTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		browseCtx, cancel := context.WithTimeout(ctx, timeout)
		n, err := lm.browser.Browse(browseCtx)
		cancel()
		if err != nil {
			lm.logger.Warn("Device discovery failed", zap.Error(err))
		} else {
			lm.logger.Debug("Browse pass finished", zap.Int("devices", n))
		}
	}

	maxAge := lm.config.Discovery.MaxAge
	if removed := lm.cache.Purge(maxAge); removed > 0 {
		lm.logger.Info("Purged stale devices",
			zap.Int("removed", removed),
			zap.Duration("max_age", maxAge))
		lm.hub.Broadcast(websocket.NewDevicesPurgedMessage(removed, maxAge))
	}

	if err := lm.persistDevices(ctx); err != nil {
		lm.logger.Warn("Failed to persist device cache", zap.Error(err))
	}
}

func (lm *LifecycleManager) persistDevices(ctx context.Context) error {
	var errs []error
	if lm.fileStore != nil {
		if err := lm.fileStore.Save(lm.cache); err != nil {
			errs = append(errs, err)
		}
	}
	if err := lm.repo.SaveDevices(ctx, lm.cache.List()); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ReloadInstruments rescans the instrument search paths while running.
func (lm *LifecycleManager) ReloadInstruments() (int, error) {
	if err := lm.transition(StateReloading); err != nil {
		return 0, err
	}

	n, err := lm.catalog.Scan()
	if err != nil {
		lm.logger.Warn("Some instrument manifests failed to load", zap.Error(err))
	}

	if terr := lm.transition(StateRunning); terr != nil {
		return n, terr
	}
	return n, err
}

// Shutdown gracefully shuts down the system
func (lm *LifecycleManager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	lm.shutdownOnce.Do(func() {
		lm.logger.Info("Shutting down system")

		if lm.State().Serving() {
			if err := lm.transition(StateStopping); err != nil {
				lm.logger.Warn("Unexpected state during shutdown", zap.Error(err))
			}
		}

		shutdownErr = lm.gracefulShutdown(ctx)

		lm.setState(StateStopped)
	})

	return shutdownErr
}

func (lm *LifecycleManager) gracefulShutdown(ctx context.Context) error {
	var errs []error

	// 1. REST API Server graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(ctx, lm.shutdownTimeout())
	defer cancel()
	if err := lm.restServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("rest api shutdown failed: %w", err))
	}

	// 2. Stop hub and maintenance loop
	if lm.cancel != nil {
		lm.cancel()
	}
	done := make(chan struct{})
	go func() {
		lm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		lm.logger.Warn("Shutdown timeout, forcing stop")
		errs = append(errs, fmt.Errorf("shutdown timeout exceeded"))
	}

	// 3. Last snapshot of the device cache
	if err := lm.persistDevices(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to persist device cache: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	lm.logger.Info("Graceful shutdown completed")
	return nil
}

func (lm *LifecycleManager) shutdownTimeout() time.Duration {
	if lm.config.Server.ShutdownTimeout > 0 {
		return lm.config.Server.ShutdownTimeout
	}
	return 30 * time.Second
}

func (lm *LifecycleManager) State() SystemState {
	lm.stateMu.RLock()
	defer lm.stateMu.RUnlock()
	return lm.currentState
}

// transition moves to state if allowed and announces it to websocket clients.
func (lm *LifecycleManager) transition(state SystemState) error {
	lm.stateMu.Lock()
	previous := lm.currentState
	if err := ValidateTransition(previous, state); err != nil {
		lm.stateMu.Unlock()
		return err
	}
	lm.currentState = state
	lm.stateMu.Unlock()

	lm.logger.Info("System state changed",
		zap.Stringer("from", previous),
		zap.Stringer("to", state))
	lm.hub.Broadcast(websocket.NewSystemStateMessage(state.String(), previous.String()))
	return nil
}

func (lm *LifecycleManager) setState(state SystemState) {
	lm.stateMu.Lock()
	previous := lm.currentState
	lm.currentState = state
	lm.stateMu.Unlock()

	lm.hub.Broadcast(websocket.NewSystemStateMessage(state.String(), previous.String()))
}

func (lm *LifecycleManager) setError(err error) {
	lm.logger.Error("System error", zap.Error(err))
	lm.setState(StateError)
}

// GetCurrentStatus returns current system status (Interface implementation)
func (lm *LifecycleManager) GetCurrentStatus() interfaces.SystemStatus {
	_, persistent := lm.repo.(*storage.PostgresClient)

	return interfaces.SystemStatus{
		State:            lm.State().String(),
		Platforms:        len(lm.registry.Names()),
		Instruments:      len(lm.catalog.List()),
		CachedDevices:    lm.cache.Len(),
		DiscoveryEnabled: lm.config.Discovery.Enabled,
		Persistent:       persistent,
	}
}
