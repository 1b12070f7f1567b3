package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sensoralert/internal/api"
	"sensoralert/internal/clock"
	"sensoralert/internal/config"
	"sensoralert/internal/ingest"
	"sensoralert/internal/logging"
	"sensoralert/internal/notify"
	"sensoralert/internal/store"
)

// Service wires configuration, stores, ingest interfaces, and the
// notification dispatcher into one runnable process.
// Params: config source and clock.
// Returns: long-running service with graceful shutdown.
type Service struct {
	source     config.ConfigSource
	cfg        config.Config
	logger     *slog.Logger
	closeLog   func()
	thresholds store.ThresholdStore
	alerts     store.AlertStore
	dispatcher *notify.Dispatcher
	manager    *Manager
	httpSrv    *http.Server
	natsSub    *ingest.NATSSubscriber
	readyFlag  atomic.Bool
	clock      clock.Clock
}

// NewService builds all runtime components from one config snapshot.
// Params: config source and clock implementation.
// Returns: initialized service or first wiring error.
func NewService(source config.ConfigSource, clk clock.Clock) (*Service, error) {
	cfg, err := config.LoadSnapshot(source)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	svc := &Service{
		source:   source,
		cfg:      cfg,
		logger:   logger,
		closeLog: closeLog,
		clock:    clk,
	}

	if err := svc.buildStores(cfg); err != nil {
		svc.cleanupInitResources()
		return nil, err
	}
	svc.dispatcher = notify.NewDispatcher(cfg.Notify, logger)
	svc.manager = NewManager(cfg, logger, svc.thresholds, svc.alerts, svc.dispatcher, clk)

	if cfg.Ingest.HTTP.Enabled {
		svc.httpSrv = svc.buildHTTPServer(cfg)
	}
	if cfg.Ingest.NATS.Enabled {
		sub, err := ingest.NewNATSSubscriber(cfg.Ingest.NATS, svc.manager, logger)
		if err != nil {
			svc.cleanupInitResources()
			return nil, fmt.Errorf("nats ingest: %w", err)
		}
		svc.natsSub = sub
	}

	return svc, nil
}

// Run starts ingest interfaces and blocks until shutdown.
// Params: cancellable context.
// Returns: first runtime or shutdown error.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("service starting",
		"name", s.cfg.Service.Name,
		"mode", s.cfg.Service.Mode,
		"channels", strings.Join(s.dispatcher.Channels(), ","))

	errChan := make(chan error, 1)
	if s.httpSrv != nil {
		go func() {
			if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("http server: %w", err)
			}
		}()
		s.logger.Info("http listener started", "listen", s.cfg.Ingest.HTTP.Listen)
	}

	reloadStop := make(chan struct{})
	if s.cfg.Service.ReloadEnabled {
		interval := time.Duration(s.cfg.Service.ReloadIntervalSec) * time.Second
		go s.reloadLoop(interval, reloadStop)
	}

	s.readyFlag.Store(true)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down")
	case err := <-errChan:
		runErr = err
		s.logger.Error("runtime failure, shutting down", "error", err.Error())
	case sig := <-sigChan:
		s.logger.Info("signal received, shutting down", "signal", sig.String())
	}

	close(reloadStop)
	if err := s.shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// reloadLoop periodically re-reads configuration from the source.
// Params: poll interval and stop channel.
// Returns: nothing; reload errors are logged and skipped.
func (s *Service) reloadLoop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := s.reloadConfig(); err != nil {
				s.logger.Warn("config reload skipped", "error", err.Error())
			}
		}
	}
}

// reloadConfig applies a fresh config snapshot to the running service.
// Mode changes require a restart because they re-wire the store backend.
// Params: none; reads the original config source.
// Returns: load/validation error or mode-change rejection.
func (s *Service) reloadConfig() error {
	cfg, err := config.LoadSnapshot(s.source)
	if err != nil {
		return err
	}
	if cfg.Service.Mode != s.cfg.Service.Mode {
		return errors.New("service.mode change requires restart")
	}

	dispatcher := notify.NewDispatcher(cfg.Notify, s.logger)
	previous := s.dispatcher
	s.dispatcher = dispatcher
	s.manager.SetDispatcher(dispatcher)
	s.manager.ApplyConfig(cfg)
	s.cfg = cfg
	if previous != nil {
		previous.Close()
	}
	s.logger.Info("config reloaded", "channels", strings.Join(dispatcher.Channels(), ","))
	return nil
}

// shutdown stops components in reverse wiring order.
// Params: none.
// Returns: first close error while attempting every component.
func (s *Service) shutdown() error {
	s.readyFlag.Store(false)
	var firstErr error

	if s.httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			firstErr = err
		}
		cancel()
	}
	if s.natsSub != nil {
		if err := s.natsSub.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.dispatcher != nil {
		s.dispatcher.Close()
	}
	if err := s.closeStores(); err != nil && firstErr == nil {
		firstErr = err
	}
	s.logger.Info("service stopped")
	if s.closeLog != nil {
		s.closeLog()
	}
	return firstErr
}

// buildStores selects persistence backends by service mode.
// Params: validated config snapshot.
// Returns: connection error for the NATS-backed mode.
func (s *Service) buildStores(cfg config.Config) error {
	if cfg.Service.Mode == config.ServiceModeSingle {
		s.thresholds = store.NewMemoryThresholdStore(s.clock.Now)
		s.alerts = store.NewMemoryAlertStore()
		return nil
	}
	backend, err := store.NewNATSStore(config.DeriveStoreNATSConfig(cfg), s.clock.Now)
	if err != nil {
		return fmt.Errorf("nats store: %w", err)
	}
	s.thresholds = backend
	s.alerts = backend
	return nil
}

// closeStores closes persistence backends, once for a shared backend.
// Params: none.
// Returns: first close error.
func (s *Service) closeStores() error {
	var firstErr error
	if s.thresholds != nil {
		if err := s.thresholds.Close(); err != nil {
			firstErr = err
		}
	}
	// In nats mode both interfaces share one backend.
	if s.alerts != nil && any(s.alerts) != any(s.thresholds) {
		if err := s.alerts.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// buildHTTPServer mounts health, metrics, ingest, and API routes.
// Params: validated config snapshot.
// Returns: configured http server, not yet listening.
func (s *Service) buildHTTPServer(cfg config.Config) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Ingest.HTTP.HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc(cfg.Ingest.HTTP.ReadyPath, func(w http.ResponseWriter, _ *http.Request) {
		if !s.readyFlag.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not-ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	mux.Handle(cfg.Ingest.HTTP.MetricsPath, promhttp.Handler())

	ingestHandler := ingest.NewHTTPHandler(s.manager, cfg.Ingest.HTTP.MaxBodyBytes)
	mux.Handle(cfg.Ingest.HTTP.IngestPath, ingestHandler)
	mux.Handle(strings.TrimSuffix(cfg.Ingest.HTTP.IngestPath, "/")+"/batch", ingestHandler)

	api.NewHandler(s.manager, s.logger).Register(mux)

	return &http.Server{
		Addr:              cfg.Ingest.HTTP.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// cleanupInitResources releases components created before a wiring failure.
// Params: none.
// Returns: nothing; close errors during teardown are dropped.
func (s *Service) cleanupInitResources() {
	if s.natsSub != nil {
		_ = s.natsSub.Close()
	}
	if s.dispatcher != nil {
		s.dispatcher.Close()
	}
	_ = s.closeStores()
	if s.closeLog != nil {
		s.closeLog()
	}
}
