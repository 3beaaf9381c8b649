// Package api serves the read-only price endpoints backed by the shared
// quote cache.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"prop-trading-engine/internal/instruments"
	"prop-trading-engine/internal/marketdata"
)

// Server represents the HTTP API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	registry   *instruments.Registry
	quotes     *marketdata.Service
	config     ServerConfig
	log        zerolog.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	CacheTTL       time.Duration // quote freshness window for API reads
	ProductionMode bool
}

// NewServer creates a new API server
func NewServer(config ServerConfig, registry *instruments.Registry, quotes *marketdata.Service, log zerolog.Logger) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(countRequests())

	// Permissive read-only CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:   router,
		registry: registry,
		quotes:   quotes,
		config:   config,
		log:      log.With().Str("component", "api").Logger(),
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/api/prices", s.handlePrices)
	s.router.GET("/api/prices/:symbol", s.handlePrice)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Bare OPTIONS gets an empty 200 with the CORS headers
	s.router.OPTIONS("/*path", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	s.router.NoRoute(func(c *gin.Context) {
		errorResponse(c, http.StatusNotFound, "not found")
	})
}

// Start runs the HTTP server until Shutdown is called
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.log.Info().Str("addr", addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.log.Info().Msg("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the gin engine for tests
func (s *Server) Router() http.Handler {
	return s.router
}
