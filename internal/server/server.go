// Package server exposes the gateway over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/airqo-platform/gateway/internal/authmode"
	"github.com/airqo-platform/gateway/internal/config"
	"github.com/airqo-platform/gateway/internal/health"
	"github.com/airqo-platform/gateway/internal/proxy"
)

var errRateLimited = errors.New("rate limit exceeded")

// Server represents the HTTP server
type Server struct {
	router  *gin.Engine
	config  *config.Config
	logger  zerolog.Logger
	proxy   *proxy.Router
	prober  *health.Prober
	limiter *rateLimiter
	version string
}

// New creates a new server instance
func New(cfg *config.Config, zlog zerolog.Logger, version string) (*Server, error) {
	// Route table: built-in unless a file overrides it
	table, err := authmode.TableFor(cfg.Routing.TableFile)
	if err != nil {
		return nil, err
	}
	if cfg.Routing.TableFile != "" {
		zlog.Info().Str("file", cfg.Routing.TableFile).Msg("Loaded route table")
	}

	classifier := authmode.NewClassifier(table, cfg.Routing.CacheLimit)

	proxyRouter, err := proxy.New(proxy.OptionsFromConfig(cfg), classifier, nil, zlog)
	if err != nil {
		return nil, fmt.Errorf("failed to create proxy router: %w", err)
	}

	if !cfg.Upstream.HasAPIToken() {
		// Token-mode requests will fail with a generic 500 until it is set
		zlog.Warn().Msg("No service credential configured - token-mode requests will be refused")
	}

	server := &Server{
		config:  cfg,
		logger:  zlog,
		proxy:   proxyRouter,
		prober:  health.NewProber(cfg.Upstream.BaseURL, cfg.Upstream.HealthPath, cfg.Upstream.HealthInterval, nil, zlog),
		version: version,
	}
	if cfg.Server.RateLimitRPS > 0 {
		server.limiter = newRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	}

	// Setup router
	server.setupRouter()

	return server, nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	// Add middleware
	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(metricsMiddleware())

	if origins := s.config.Server.CORSAllowedOrigins; len(origins) > 0 {
		corsConfig := cors.Config{
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", authmode.HeaderName, requestIDHeader},
			ExposeHeaders:    []string{"Content-Length", requestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}
		if len(origins) == 1 && origins[0] == "*" {
			corsConfig.AllowAllOrigins = true
			corsConfig.AllowCredentials = false
		} else {
			corsConfig.AllowOrigins = origins
		}
		s.router.Use(cors.New(corsConfig))
	}

	if s.limiter != nil {
		s.router.Use(s.rateLimitMiddleware())
	}

	// Probes and metrics
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/ready", s.readinessCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Everything under /api goes through the proxy, whatever the verb
	s.router.Any("/api/*path", s.proxyRequest)

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
}

// Handler returns the HTTP handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	port := ":" + s.config.Server.Port

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := s.prober.Start(); err != nil {
		return err
	}

	// Write timeout covers the upstream timeout plus relaying the body
	srv := &http.Server{
		Addr:              port,
		Handler:           s.router,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      s.config.Upstream.Timeout + 30*time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info().
			Str("port", port).
			Bool("service_token", s.config.Upstream.HasAPIToken()).
			Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Wait for shutdown signal
	select {
	case <-sigChan:
		s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")
	case err := <-errChan:
		s.prober.Stop()
		return fmt.Errorf("HTTP server error: %w", err)
	}

	s.prober.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer shutdownCancel()

	s.logger.Info().Msg("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	s.logger.Info().Msg("Server shutdown complete")
	return nil
}
