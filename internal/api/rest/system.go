package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KevinKickass/MokuCore/internal/types"
)

// GET /api/v1/system/status
func (s *Server) getSystemStatus(c *gin.Context) {
	status := s.lm.GetCurrentStatus()
	c.JSON(http.StatusOK, status)
}

// POST /api/v1/system/reload
func (s *Server) reloadInstruments(c *gin.Context) {
	n, err := s.lm.ReloadInstruments()
	if err != nil && n == 0 {
		c.JSON(http.StatusConflict, types.NewErrorResponse("SYSTEM_409", "Failed to reload instruments", err.Error()))
		return
	}

	resp := gin.H{
		"message":     "Instruments reloaded",
		"instruments": n,
	}
	if err != nil {
		s.logger.Warn("Instrument reload finished with errors", zap.Error(err))
		resp["errors"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}
