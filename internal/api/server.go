// Package api exposes the analysis pipeline over HTTP for the popup client:
// analyze, presentation transitions, photo detection, preferences, and the
// websocket status stream.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mediguard-server/internal/domain"
	"github.com/mediguard-server/internal/middleware"
	"github.com/mediguard-server/internal/service"
	"github.com/mediguard-server/pkg/external"
)

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	router        *gin.Engine
	server        *http.Server

	analyzer   *service.AnalyzerService
	normalizer *service.InputNormalizer
	sessions   *service.SessionManager
	prefs      domain.PreferenceStore
	cloud      *external.ResilientClient
	vision     domain.VisionModel
	localModel *external.LocalModelClient
	hub        *StatusHub
	logger     *logrus.Logger

	// analyzing serializes analyses; the popup disables the button, the
	// server enforces it.
	analyzing chan struct{}
}

// Deps bundles the collaborators the server exposes over HTTP.
type Deps struct {
	Analyzer   *service.AnalyzerService
	Normalizer *service.InputNormalizer
	Sessions   *service.SessionManager
	Prefs      domain.PreferenceStore
	Cloud      *external.ResilientClient
	LocalModel *external.LocalModelClient
	Hub        *StatusHub
	Logger     *logrus.Logger
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, deps Deps) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())

	server := &Server{
		configManager: configManager,
		router:        router,
		analyzer:      deps.Analyzer,
		normalizer:    deps.Normalizer,
		sessions:      deps.Sessions,
		prefs:         deps.Prefs,
		cloud:         deps.Cloud,
		vision:        deps.Cloud,
		localModel:    deps.LocalModel,
		hub:           deps.Hub,
		logger:        deps.Logger,
		analyzing:     make(chan struct{}, 1),
	}

	server.setupRoutes()
	return server
}

// Start starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws/status", s.hub.Handle)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/analyze", s.handleAnalyze)
		v1.POST("/detect", s.handleDetect)

		v1.POST("/session/simplify", s.handleSimplify)
		v1.POST("/session/translate", s.handleTranslate)
		v1.POST("/session/view", s.handleSwitchView)
		v1.GET("/session/text", s.handleSessionText)

		v1.GET("/report", s.handleReport)

		v1.GET("/preferences", s.handleGetPreferences)
		v1.PUT("/preferences", s.handlePutPreferences)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"timestamp":      time.Now(),
		"local_model":    s.localModel.Ready(),
		"breakers":       s.cloud.BreakerStates(),
		"breaker_counts": s.cloud.BreakerCounts(),
	})
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-Correlation-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length, Content-Disposition")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
