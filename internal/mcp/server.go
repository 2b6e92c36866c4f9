package mcp

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/albinvar/bixss-ca-frontend-sub000/internal/config"
	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/logging"
)

// Server wraps an MCP SDK server with an HTTP listener
type Server struct {
	logger  *logging.Logger
	config  config.Config
	tools   []string
	cleanup func()

	srv     *http.Server
	started atomic.Bool
}

// NewServer wires the analysis resources and constructs the MCP HTTP server
func NewServer(ctx context.Context, log *logging.Logger, cfg config.Config) (*Server, error) {
	res, cleanup, err := initializeResources(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	return newServer(log, cfg, res, cleanup), nil
}

func newServer(log *logging.Logger, cfg config.Config, res *Resources, cleanup func()) *Server {
	impl := &sdkmcp.Implementation{
		Name:    "ca-analysis",
		Version: "0.1.0",
	}

	mcpServer := sdkmcp.NewServer(impl, nil)
	names := NewToolRegistry(log).RegisterAll(mcpServer, res)

	handler := sdkmcp.NewStreamableHTTPHandler(func(req *http.Request) *sdkmcp.Server {
		return mcpServer
	}, nil)

	mux := http.NewServeMux()
	mux.Handle("/mcp/stream", handler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	httpSrv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if cleanup == nil {
		cleanup = func() {}
	}

	return &Server{
		logger:  log,
		config:  cfg,
		tools:   names,
		cleanup: cleanup,
		srv:     httpSrv,
	}
}

// Tools returns the names of the registered tools
func (s *Server) Tools() []string {
	return s.tools
}

// Handler exposes the HTTP routes, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run starts the HTTP server and blocks until shutdown
func (s *Server) Run() error {
	if !s.started.CompareAndSwap(false, true) {
		return nil
	}

	s.logger.Info("MCP HTTP server listening", "addr", s.srv.Addr)

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutdown requested for MCP HTTP server")
	defer s.cleanup()

	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("MCP HTTP server shutdown with error", "err", err)
		return err
	}

	s.logger.Info("MCP HTTP server shutdown complete")
	return nil
}
