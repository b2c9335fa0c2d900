package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/you/agentdesk/internal/agent"
	"github.com/you/agentdesk/internal/config"
	"github.com/you/agentdesk/internal/httpapi"
	"github.com/you/agentdesk/internal/identity"
	"github.com/you/agentdesk/internal/mcptools"
	"github.com/you/agentdesk/internal/metrics"
	"github.com/you/agentdesk/internal/store"
)

const shutdownTimeout = 30 * time.Second

type Server struct {
	cfg         config.Config
	billing     *store.Store
	performance *store.Store
	svc         *agent.Service
	metrics     *metrics.Metrics
	server      *http.Server
}

func storeOptions(cfg config.Config) store.Options {
	return store.Options{ConnectTimeout: cfg.ConnectTO, QueryTimeout: cfg.QueryTO}
}

func newServer(ctx context.Context, cfg config.Config) (*Server, error) {
	billing, err := store.Open(ctx, cfg.DatabaseURL, storeOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("open billing database: %w", err)
	}
	s := &Server{cfg: cfg, billing: billing, performance: billing, metrics: metrics.New()}

	if dsn := cfg.PerformanceDSN(); dsn != cfg.DatabaseURL {
		perf, err := store.Open(ctx, dsn, storeOptions(cfg))
		if err != nil {
			billing.Close()
			return nil, fmt.Errorf("open performance database: %w", err)
		}
		s.performance = perf
	}

	auth, err := identity.New(cfg.AuthMode, cfg.TrustedAgentCIF, billing)
	if err != nil {
		s.closeStores()
		return nil, err
	}
	s.svc = agent.New(billing, s.performance, auth, cfg.MaxRows)
	log.Info().Str("auth_mode", string(auth.Mode())).Int("max_rows", cfg.MaxRows).Msg("service ready")
	return s, nil
}

func (s *Server) serveHTTP(ctx context.Context) error {
	h := httpapi.NewRouter(s.svc, s.metrics, httpapi.Options{
		ServiceName:    s.cfg.ServiceName,
		RateLimitRPS:   s.cfg.HTTP.RateLimitRPS,
		RateLimitBurst: s.cfg.HTTP.RateLimitBurst,
	})
	s.server = &http.Server{
		Addr:         s.cfg.HTTP.Addr,
		Handler:      h,
		ReadTimeout:  s.cfg.HTTP.ReadTimeout,
		WriteTimeout: s.cfg.HTTP.WriteTimeout,
		IdleTimeout:  s.cfg.HTTP.IdleTimeout,
	}
	log.Info().Str("addr", s.cfg.HTTP.Addr).Msg("starting JSON API")
	return s.listen(ctx)
}

func (s *Server) serveMCP(ctx context.Context) error {
	mcpServer := mcptools.NewServer(s.svc, s.metrics, version)
	if s.cfg.MCP.Transport == "stdio" {
		defer s.closeStores()
		err := mcptools.ServeStdio(ctx, mcpServer)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	h := mcptools.NewHTTPHandler(mcpServer, mcptools.HTTPOptions{
		Path:   s.cfg.MCP.Path,
		Bearer: s.cfg.MCP.Bearer,
	})
	s.server = &http.Server{
		Addr:        s.cfg.MCP.Addr,
		Handler:     h,
		ReadTimeout: s.cfg.HTTP.ReadTimeout,
		IdleTimeout: s.cfg.HTTP.IdleTimeout,
	}
	log.Info().Str("addr", s.cfg.MCP.Addr).Str("path", s.cfg.MCP.Path).Msg("starting MCP server on HTTP SSE")
	return s.listen(ctx)
}

// listen serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) listen(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.closeStores()
		return err
	case <-ctx.Done():
		log.Info().Msg("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down server gracefully")

	var errs []error
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
		}
	}
	s.closeStores()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	log.Info().Msg("server shutdown complete")
	return nil
}

func (s *Server) closeStores() {
	if s.performance != nil && s.performance != s.billing {
		s.performance.Close()
	}
	if s.billing != nil {
		s.billing.Close()
		log.Info().Msg("database connections closed")
	}
}

// migrateDatabases applies the embedded migrations to the billing database
// and, when configured separately, to the performance database.
func migrateDatabases(ctx context.Context, cfg config.Config) error {
	dsns := []string{cfg.DatabaseURL}
	if perf := cfg.PerformanceDSN(); perf != cfg.DatabaseURL {
		dsns = append(dsns, perf)
	}
	for _, dsn := range dsns {
		st, err := store.Open(ctx, dsn, storeOptions(cfg))
		if err != nil {
			return err
		}
		err = st.Migrate()
		st.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
