package main

import (
	"context"
	"fmt"
	"os"

	"github.com/branchd-dev/roleportal/internal/authapi"
	"github.com/branchd-dev/roleportal/internal/config"
	"github.com/branchd-dev/roleportal/internal/logger"
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

	srv, err := authapi.NewFromConfig(context.Background(), cfg.AuthAPI, log, version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create authentication API")
	}

	log.Info().Str("version", version).Msg("Starting roleportal authentication API...")

	// Start HTTP server (this blocks)
	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("Server failed to start")
	}
}
