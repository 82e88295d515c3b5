// Package authapi is the reference authentication API the front ends talk
// to: registration, login, the current user and the admin user list.
package authapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/branchd-dev/roleportal/internal/auth"
	"github.com/branchd-dev/roleportal/internal/config"
	"github.com/branchd-dev/roleportal/internal/logger"
	"github.com/branchd-dev/roleportal/internal/models"
)

// Server represents the HTTP server
type Server struct {
	router  *gin.Engine
	store   UserStore
	tokens  *auth.Tokens
	config  config.AuthAPIConfig
	logger  zerolog.Logger
	version string
}

// New creates a new server instance around an open store
func New(cfg config.AuthAPIConfig, store UserStore, zlog zerolog.Logger, version string) (*Server, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		// Generate JWT secret (64 hex characters = 32 bytes of randomness)
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		secret = hex.EncodeToString(b)
		zlog.Warn().Msg("JWT_SECRET not set, generated one; tokens will not survive a restart")
	}

	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}

	server := &Server{
		store:   store,
		tokens:  auth.NewTokens(secret, ttl),
		config:  cfg,
		logger:  zlog,
		version: version,
	}

	server.setupRouter()

	return server, nil
}

// NewFromConfig opens the configured user store and creates the server
func NewFromConfig(ctx context.Context, cfg config.AuthAPIConfig, zlog zerolog.Logger, version string) (*Server, error) {
	store, err := OpenStore(ctx, cfg.DatabaseURL, zlog)
	if err != nil {
		return nil, err
	}

	server, err := New(cfg, store, zlog, version)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return server, nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	// Add middleware
	s.router.Use(gin.Recovery())
	s.router.Use(logger.GinMiddleware(s.logger))
	s.router.Use(cors.New(corsConfig(s.config.CORSOrigins)))

	// Health check endpoint (no auth required)
	s.router.GET("/health", s.healthCheck)

	// Public auth endpoints (no auth required)
	s.router.POST("/register", s.register)
	s.router.POST("/login", s.login)

	// Authenticated routes (JWT required)
	authed := s.router.Group("")
	authed.Use(JWTAuthMiddleware(s.tokens, s.store, s.logger))
	{
		authed.GET("/me", s.getCurrentUser)

		// User management (admin only)
		admin := authed.Group("/admin")
		admin.Use(RequireRole(s.logger, models.RoleAdmin))
		{
			admin.GET("/users", s.listUsers)
		}
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "Cache-Control", "X-Requested-With"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "roleportal-authapi",
		"version":   s.version,
	})
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the user store
func (s *Server) Close() error {
	return s.store.Close()
}

// Start starts the HTTP server and blocks until SIGINT or SIGTERM
func (s *Server) Start() error {
	addr := s.config.Address

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", addr).Msg("Starting authentication API")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")
	case err := <-errChan:
		s.logger.Error().Err(err).Msg("HTTP server error")
		_ = s.Close()
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
	}

	// Close database connection to flush WAL writes
	if err := s.Close(); err != nil {
		s.logger.Error().Err(err).Msg("Error closing user store")
		return err
	}

	s.logger.Info().Msg("Server shutdown complete")

	return nil
}
