package main

import (
	"context"
	"log"
	"os"
	"syscall"
	"time"

	"github.com/albinvar/bixss-ca-frontend-sub000/internal/config"
	"github.com/albinvar/bixss-ca-frontend-sub000/internal/mcp"
	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/logging"
	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/shutdown"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.New(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	srv, err := mcp.NewServer(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("failed to initialize MCP server", "err", err)
		os.Exit(1)
	}

	go shutdown.Graceful(
		[]os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP},
		srv,
		10*time.Second,
		logger,
	)

	logger.Info("MCP server initialized and starting",
		"tools", srv.Tools(),
		"analysis_api", cfg.Analysis.BaseURL,
		"backend_api", cfg.BackendURL,
	)

	if err := srv.Run(); err != nil {
		logger.Error("MCP server exited with error", "err", err)
	} else {
		logger.Info("MCP server stopped")
	}
}
