package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pattern-signal-engine/internal/database"
	"pattern-signal-engine/internal/events"
	"pattern-signal-engine/internal/risk"
	"pattern-signal-engine/internal/scanner"
)

// ServerConfig holds the HTTP server configuration
type ServerConfig struct {
	Host           string
	Port           int
	ProductionMode bool
}

// Server is the HTTP API surface over the engine
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	repo       *database.Repository
	riskEngine *risk.Engine
	scanner    *scanner.Scanner
	hub        *WSHub
	logger     zerolog.Logger
}

// NewServer creates a new API server
func NewServer(config ServerConfig, repo *database.Repository, riskEngine *risk.Engine,
	scan *scanner.Scanner, bus *events.Bus, logger zerolog.Logger) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:     router,
		repo:       repo,
		riskEngine: riskEngine,
		scanner:    scan,
		hub:        NewWSHub(logger),
		logger:     logger.With().Str("component", "api").Logger(),
	}
	server.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler: router,
	}

	server.setupRoutes()
	server.hub.SubscribeTo(bus)

	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.GET("/patterns", s.handleActivePatterns)
		api.GET("/performance", s.handlePerformance)
		api.GET("/regime/:symbol", s.handleRegime)
		api.GET("/scanner/status", s.handleScannerStatus)
		api.POST("/risk/assess", s.handleRiskAssess)
		api.GET("/watchlist", s.handleGetWatchlist)
		api.POST("/watchlist", s.handleAddWatchlist)
	}

	s.router.GET("/ws", s.handleWebSocket)
}

// Run starts the hub and HTTP listener. Blocks until the server exits.
func (s *Server) Run() error {
	go s.hub.Run()
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("API server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
