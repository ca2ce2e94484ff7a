package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KevinKickass/MokuCore/internal/api/websocket"
	"github.com/KevinKickass/MokuCore/internal/auth"
	"github.com/KevinKickass/MokuCore/internal/config"
	"github.com/KevinKickass/MokuCore/internal/interfaces"
)

type Server struct {
	router *gin.Engine
	lm     interfaces.LifecycleManager
	logger *zap.Logger
	server *http.Server
	wsHub  *websocket.Hub
	jwt    *auth.JWTHandler
}

func NewServer(cfg *config.Config, lm interfaces.LifecycleManager, logger *zap.Logger, wsHub *websocket.Hub, jwt *auth.JWTHandler) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router: gin.New(),
		lm:     lm,
		logger: logger,
		wsHub:  wsHub,
		jwt:    jwt,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("REST server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down REST API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(gin.Recovery())
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(CORSMiddleware())

	// Public routes (no auth required)
	s.router.GET("/health", s.healthCheck)

	authenticated := auth.Middleware(s.jwt)

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		// ==================== PLATFORMS (PUBLIC) ====================
		platforms := v1.Group("/platforms")
		{
			platforms.GET("", s.listPlatforms)
			platforms.GET("/:name", s.getPlatform)
		}

		// ==================== INSTRUMENTS (PUBLIC) ====================
		v1.GET("/instruments", s.listInstruments)
		v1.GET("/instruments/:name", s.getInstrument)

		// ==================== DEPLOYMENTS ====================
		deployments := v1.Group("/deployments")
		{
			// Validation never stores anything
			deployments.POST("/validate", s.validateDeployment)

			deployments.POST("", authenticated, auth.RequirePermission(auth.PermDeploy), s.createDeployment)
			deployments.GET("", authenticated, auth.RequirePermission(auth.PermRead), s.listDeployments)
			deployments.GET("/:id", authenticated, auth.RequirePermission(auth.PermRead), s.getDeployment)
			deployments.DELETE("/:id", authenticated, auth.RequirePermission(auth.PermDeploy), s.deleteDeployment)
		}

		// ==================== DEVICES ====================
		devices := v1.Group("/devices")
		{
			devices.GET("", s.listDevices)
			devices.GET("/:identifier", s.getDevice)

			devices.POST("", authenticated, auth.RequirePermission(auth.PermDevices), s.putDevice)
			devices.POST("/purge", authenticated, auth.RequirePermission(auth.PermDevices), s.purgeDevices)
		}

		// ==================== SYSTEM ====================
		system := v1.Group("/system")
		system.Use(authenticated)
		system.Use(auth.RequirePermission(auth.PermRead))
		{
			system.GET("/status", s.getSystemStatus)
			system.POST("/reload", auth.RequirePermission(auth.PermReload), s.reloadInstruments)
		}

		// ==================== WEBSOCKET (PUBLIC - Auth via first message) ====================
		ws := v1.Group("/ws")
		{
			ws.GET("/live", s.wsLiveConnection)
			ws.GET("/status", authenticated, auth.RequirePermission(auth.PermRead), s.wsStatus)
		}
	}
}

// WebSocket handlers
func (s *Server) wsLiveConnection(c *gin.Context) {
	websocket.ServeWs(s.wsHub, c.Writer, c.Request)
}

func (s *Server) wsStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected_clients": s.wsHub.GetClientCount(),
	})
}

// Health check (public)
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}
