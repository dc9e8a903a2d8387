package main

import (
	"fmt"
	"os"

	"github.com/airqo-platform/gateway/internal/config"
	"github.com/airqo-platform/gateway/internal/logger"
	"github.com/airqo-platform/gateway/internal/server"
)

var version = "dev" // Will be set during build with -ldflags

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.GetLogger()

	// Create server
	srv, err := server.New(cfg, log, version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}

	routeTable := cfg.Routing.TableFile
	if routeTable == "" {
		routeTable = "built-in"
	}
	log.Info().
		Str("version", version).
		Str("upstream", cfg.Upstream.BaseURL).
		Str("token_placement", cfg.Upstream.TokenPlacement).
		Str("route_table", routeTable).
		Bool("breaker", cfg.Upstream.BreakerEnabled).
		Bool("rate_limit", cfg.Server.RateLimitRPS > 0).
		Msg("Starting platform gateway...")

	// Start HTTP server (this blocks)
	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
