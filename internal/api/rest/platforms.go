package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/KevinKickass/MokuCore/internal/instrument"
	"github.com/KevinKickass/MokuCore/internal/platform"
	"github.com/KevinKickass/MokuCore/internal/types"
)

// GET /api/v1/platforms
func (s *Server) listPlatforms(c *gin.Context) {
	specs := s.lm.Platforms().List()
	c.JSON(http.StatusOK, gin.H{
		"platforms": specs,
		"count":     len(specs),
	})
}

// GET /api/v1/platforms/:name
func (s *Server) getPlatform(c *gin.Context) {
	spec, err := s.lm.Platforms().Get(c.Param("name"))
	if err != nil {
		if errors.Is(err, platform.ErrUnknownPlatform) {
			c.JSON(http.StatusNotFound, types.NewErrorResponse("PLATFORM_404", "Platform not found",
				gin.H{"known": s.lm.Platforms().Names()}))
			return
		}
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("PLATFORM_500", "Failed to get platform", err.Error()))
		return
	}
	c.JSON(http.StatusOK, spec)
}

// GET /api/v1/instruments
func (s *Server) listInstruments(c *gin.Context) {
	manifests := s.lm.Instruments().List()
	c.JSON(http.StatusOK, gin.H{
		"instruments": manifests,
		"count":       len(manifests),
	})
}

// GET /api/v1/instruments/:name
func (s *Server) getInstrument(c *gin.Context) {
	m, err := s.lm.Instruments().Get(c.Param("name"))
	if err != nil {
		if errors.Is(err, instrument.ErrUnknownInstrument) {
			c.JSON(http.StatusNotFound, types.NewErrorResponse("INSTRUMENT_404", "Instrument not found", nil))
			return
		}
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse("INSTRUMENT_500", "Failed to get instrument", err.Error()))
		return
	}
	c.JSON(http.StatusOK, m)
}
