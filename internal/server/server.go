// Package server serves the browser front end: the login, register, user
// and admin views rendered from the view controllers, with the session kept
// in a cookie or redis backend.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/branchd-dev/roleportal/internal/client"
	"github.com/branchd-dev/roleportal/internal/config"
	"github.com/branchd-dev/roleportal/internal/guard"
	"github.com/branchd-dev/roleportal/internal/logger"
	"github.com/branchd-dev/roleportal/internal/views"
	"github.com/branchd-dev/roleportal/internal/webstore"
)

// Dependencies are the collaborators the server is built from
type Dependencies struct {
	Sessions webstore.Backend
	Visitors *webstore.Visitors
	Client   views.AuthClient
}

// Server represents the HTTP server
type Server struct {
	router   *gin.Engine
	config   *config.Config
	logger   zerolog.Logger
	views    *views.Controllers
	sessions webstore.Backend
	visitors *webstore.Visitors
	limiter  *multiLimiter
	closers  []io.Closer
	version  string
}

// New creates a new server instance
func New(cfg *config.Config, deps Dependencies, zlog zerolog.Logger, version string) (*Server, error) {
	if deps.Sessions == nil || deps.Visitors == nil || deps.Client == nil {
		return nil, fmt.Errorf("server: sessions, visitors and client are required")
	}

	server := &Server{
		config:   cfg,
		logger:   zlog,
		views:    views.New(deps.Client, zlog),
		sessions: deps.Sessions,
		visitors: deps.Visitors,
		version:  version,
	}

	if cfg.RateLimit.PerMinute > 0 {
		burst := cfg.RateLimit.Burst
		if burst < 1 {
			burst = 1
		}
		every := rate.Every(time.Minute / time.Duration(cfg.RateLimit.PerMinute))
		server.limiter = newMultiLimiter(every, burst, 10*time.Minute)
	}

	if err := server.setupRouter(); err != nil {
		return nil, err
	}

	return server, nil
}

// NewFromConfig wires the session backend and the Session Client from
// configuration and creates the server
func NewFromConfig(ctx context.Context, cfg *config.Config, zlog zerolog.Logger, version string) (*Server, error) {
	hashKey, blockKey, generated, err := cfg.Session.SessionKeys()
	if err != nil {
		return nil, err
	}
	if generated {
		zlog.Warn().Msg("SESSION_HASH_KEY or SESSION_BLOCK_KEY not set, generated keys; sessions will not survive a restart")
	}

	opts := webstore.Options{
		CookieName: cfg.Session.CookieName,
		HashKey:    hashKey,
		BlockKey:   blockKey,
		Secure:     cfg.Session.Secure,
		MaxAge:     cfg.Session.MaxAgeSeconds(),
	}
	visitors := webstore.NewVisitors(opts)

	var closers []io.Closer
	var backend webstore.Backend
	switch cfg.Session.Backend {
	case "redis":
		rdb, err := webstore.NewRedisClient(ctx, cfg.Redis.URL, zlog)
		if err != nil {
			return nil, err
		}
		closers = append(closers, rdb)
		backend = webstore.NewRedisBackend(rdb, visitors, cfg.Session.TTL, zlog)
	default:
		backend = webstore.NewCookieBackend(opts, zlog)
	}

	zlog.Info().
		Str("backend", backend.Name()).
		Str("api_url", cfg.API.BaseURL).
		Msg("Session backend configured")

	server, err := New(cfg, Dependencies{
		Sessions: backend,
		Visitors: visitors,
		Client:   client.New(cfg.API.BaseURL, cfg.API.Timeout),
	}, zlog, version)
	if err != nil {
		for _, c := range closers {
			_ = c.Close()
		}
		return nil, err
	}
	server.closers = closers

	return server, nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() error {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()
	if err := s.router.SetTrustedProxies(nil); err != nil {
		return fmt.Errorf("failed to configure trusted proxies: %w", err)
	}

	tmpl, err := loadTemplates()
	if err != nil {
		return err
	}
	s.router.SetHTMLTemplate(tmpl)

	// Add middleware
	s.router.Use(gin.Recovery())
	s.router.Use(logger.GinMiddleware(s.logger))

	// Health check endpoint
	s.router.GET("/health", s.healthCheck)

	// Views
	s.router.GET("/login", s.enterView(guard.ViewLogin))
	s.router.POST("/login", s.rateLimitMiddleware(guard.ViewLogin), s.submitLogin)
	s.router.GET("/register", s.enterView(guard.ViewRegister))
	s.router.POST("/register", s.rateLimitMiddleware(guard.ViewRegister), s.submitRegister)
	s.router.GET("/user", s.enterView(guard.ViewUser))
	s.router.GET("/admin", s.enterView(guard.ViewAdmin))
	s.router.POST("/logout", s.logout)

	// Guard decisions for script clients
	api := s.router.Group("/api")
	api.Use(cors.New(corsConfig(s.config.HTTP.CORSOrigins)))
	{
		api.GET("/session", s.sessionStatus)
	}

	// Unknown paths land on the login entry
	s.router.NoRoute(s.enterView(guard.ViewLogin))

	return nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			cfg.AllowCredentials = false
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	}
	return cfg
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "roleportal-web",
		"version":   s.version,
		"sessions":  s.sessions.Name(),
	})
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until SIGINT or SIGTERM
func (s *Server) Start() error {
	addr := s.config.HTTP.Address

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.config.API.Timeout + 15*time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")
	case err := <-errChan:
		s.logger.Error().Err(err).Msg("HTTP server error")
		s.close()
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		s.close()
		return err
	}

	s.close()
	s.logger.Info().Msg("Server shutdown complete")

	return nil
}

func (s *Server) close() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Error closing session backend")
		}
	}
}
