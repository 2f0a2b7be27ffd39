package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
	"github.com/ethereum-optimism/optimism/op-service/httputil"
	"github.com/ethereum/go-ethereum/log"

	"github.com/wasvm/wasm-acceptor/metrics"
)

const (
	DefaultHealthzAddr = "0.0.0.0:8080"
)

type Config struct {
	// HealthzAddr is the listen address of the healthz server; empty disables it.
	HealthzAddr string
	Metrics     opmetrics.CLIConfig
	Log         log.Logger
}

// Service runs the optional HTTP side servers of a long running acceptor.
type Service struct {
	Status  *StatusTracker
	Healthz *HealthzServer
	Metrics *httputil.HTTPServer

	cfg Config
	log log.Logger
}

func New(cfg Config) *Service {
	logger := cfg.Log
	if logger == nil {
		logger = log.New()
	}
	logger = logger.New("component", "service")
	status := NewStatusTracker()
	return &Service{
		Status:  status,
		Healthz: NewHealthzServer(logger, status),
		cfg:     cfg,
		log:     logger,
	}
}

// Start binds the enabled servers. Bind errors are returned; serve errors
// after that are logged and counted.
func (s *Service) Start(ctx context.Context) error {
	s.log.Info("service starting")

	if s.cfg.HealthzAddr != "" {
		if err := s.Healthz.Listen(s.cfg.HealthzAddr); err != nil {
			metrics.RecordErrorDetails("healthz listen", err)
			return fmt.Errorf("failed to start healthz server: %w", err)
		}
		s.log.Info("started healthz server", "addr", s.Healthz.Addr())
		go func() {
			if err := s.Healthz.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("healthz server stopped", "err", err)
				metrics.RecordErrorDetails("healthz serve", err)
			}
		}()
	}

	if s.cfg.Metrics.Enabled {
		srv, err := opmetrics.StartServer(metrics.Registry, s.cfg.Metrics.ListenAddr, s.cfg.Metrics.ListenPort)
		if err != nil {
			metrics.RecordErrorDetails("metrics listen", err)
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		s.Metrics = srv
		s.log.Info("started metrics server", "endpoint", srv.Addr())
	}

	s.log.Info("service started")
	return nil
}

func (s *Service) Shutdown(ctx context.Context) error {
	s.log.Info("service shutting down")
	var result error
	if err := s.Healthz.Shutdown(ctx); err != nil {
		result = errors.Join(result, fmt.Errorf("failed to stop healthz server: %w", err))
	}
	if s.Metrics != nil {
		if err := s.Metrics.Stop(ctx); err != nil {
			result = errors.Join(result, fmt.Errorf("failed to stop metrics server: %w", err))
		}
	}
	s.log.Info("service stopped")
	return result
}
