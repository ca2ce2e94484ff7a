package rest

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KevinKickass/MokuCore/internal/api/websocket"
	"github.com/KevinKickass/MokuCore/internal/discovery"
	"github.com/KevinKickass/MokuCore/internal/types"
)

// parseMaxAge reads a duration query parameter, falling back to the
// configured discovery max age.
func (s *Server) parseMaxAge(c *gin.Context, key string) (time.Duration, bool) {
	raw := c.Query(key)
	if raw == "" {
		return s.lm.Config().Discovery.MaxAge, true
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("DEVICE_400", "Invalid max_age", raw))
		return 0, false
	}
	return d, true
}

// GET /api/v1/devices?max_age=5m
// Without max_age only devices within the configured discovery max age are
// returned; ?all=true lists every cached device.
func (s *Server) listDevices(c *gin.Context) {
	var devices []discovery.DeviceInfo
	if c.Query("all") == "true" {
		devices = s.lm.Devices().List()
	} else {
		maxAge, ok := s.parseMaxAge(c, "max_age")
		if !ok {
			return
		}
		devices = s.lm.Devices().ListFresh(maxAge)
	}

	c.JSON(http.StatusOK, gin.H{
		"devices": devices,
		"count":   len(devices),
	})
}

// GET /api/v1/devices/:identifier
// identifier may be an IP address, a canonical name or a serial number.
func (s *Server) getDevice(c *gin.Context) {
	identifier := c.Param("identifier")
	device, err := s.lm.Devices().FindByIdentifier(identifier)
	if err != nil {
		if errors.Is(err, discovery.ErrNotFound) {
			c.JSON(http.StatusNotFound, types.NewErrorResponse("DEVICE_404", "Device not found", identifier))
			return
		}
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("DEVICE_500", "Failed to get device", err.Error()))
		return
	}
	c.JSON(http.StatusOK, device)
}

// POST /api/v1/devices
// Registers a device manually, e.g. one on a network without mDNS.
func (s *Server) putDevice(c *gin.Context) {
	var info discovery.DeviceInfo
	if err := c.ShouldBindJSON(&info); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("DEVICE_400", "Invalid request body", err.Error()))
		return
	}

	// The cache stamps LastSeen itself
	info.LastSeen = time.Time{}
	if err := s.lm.Devices().Put(info); err != nil {
		if errors.Is(err, discovery.ErrMissingIdentity) {
			c.JSON(http.StatusBadRequest, types.NewErrorResponse("DEVICE_400", "Device needs an id, serial number or IP", nil))
			return
		}
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("DEVICE_500", "Failed to store device", err.Error()))
		return
	}

	stored, err := s.lm.Devices().Get(info.Key())
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("DEVICE_500", "Failed to read back device", err.Error()))
		return
	}

	s.logger.Info("Device registered manually",
		zap.String("key", stored.Key()),
		zap.String("ip", stored.IP))
	s.wsHub.Broadcast(websocket.NewDeviceDiscoveredMessage(stored))

	c.JSON(http.StatusCreated, stored)
}

// POST /api/v1/devices/purge?max_age=10m
func (s *Server) purgeDevices(c *gin.Context) {
	maxAge, ok := s.parseMaxAge(c, "max_age")
	if !ok {
		return
	}

	removed := s.lm.Devices().Purge(maxAge)
	if removed > 0 {
		s.logger.Info("Purged stale devices",
			zap.Int("removed", removed),
			zap.Duration("max_age", maxAge))
		s.wsHub.Broadcast(websocket.NewDevicesPurgedMessage(removed, maxAge))
	}

	c.JSON(http.StatusOK, gin.H{
		"removed":   removed,
		"remaining": s.lm.Devices().Len(),
	})
}
