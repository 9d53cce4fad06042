// Package server exposes the sweep pipeline over HTTP: submission, status,
// cancellation, live progress streaming and the result query API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ColeMorton/trading-sub010/internal/broadcast"
	"github.com/ColeMorton/trading-sub010/internal/config"
	"github.com/ColeMorton/trading-sub010/internal/query"
	"github.com/ColeMorton/trading-sub010/internal/registry"
)

// JobRunner executes one submitted job to a terminal state
type JobRunner interface {
	Run(ctx context.Context, jobID uuid.UUID) error
}

// Server is the public HTTP API
type Server struct {
	registry    registry.Store
	broadcaster broadcast.Subscriber
	query       *query.Service
	runner      JobRunner
	sessions    *SessionStore
	auth        *authenticator
	limiter     *submitLimiter
	logger      *logrus.Logger

	httpServer *http.Server
	baseCtx    context.Context
}

// NewServer wires the HTTP API over its collaborators
func NewServer(
	cfg *config.ServerConfig,
	reg registry.Store,
	broadcaster broadcast.Subscriber,
	querySvc *query.Service,
	runner JobRunner,
	logger *logrus.Logger,
) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	sessions := NewSessionStore(
		time.Duration(cfg.SessionTTLSeconds)*time.Second,
		cfg.MaxStreamsPerSession,
	)
	s := &Server{
		registry:    reg,
		broadcaster: broadcaster,
		query:       querySvc,
		runner:      runner,
		sessions:    sessions,
		auth:        &authenticator{apiKeys: cfg.APIKeys, sessions: sessions},
		limiter:     newSubmitLimiter(cfg.SubmitRatePerMinute),
		logger:      logger,
		baseCtx:     context.Background(),
	}

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.routes(),
		ReadTimeout: time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		// write timeout stays disabled when zero so progress streams can
		// outlive ordinary requests
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/session", s.auth.requireAPIKey(s.handleCreateSession))
	mux.HandleFunc("POST /api/v1/sweeps", s.limiter.limitSubmissions(s.auth, s.auth.requireAuth(s.handleSubmit)))
	mux.HandleFunc("GET /api/v1/sweeps/{id}", s.auth.requireAuth(s.handleGetJob))
	mux.HandleFunc("POST /api/v1/sweeps/{id}/cancel", s.auth.requireAuth(s.handleCancel))
	mux.HandleFunc("GET /api/v1/sweeps/{id}/stream", s.handleStream)

	mux.HandleFunc("GET /api/v1/runs", s.auth.requireAuth(s.handleListRuns))
	mux.HandleFunc("GET /api/v1/runs/{id}/results", s.auth.requireAuth(s.handleGetResults))
	mux.HandleFunc("GET /api/v1/runs/{id}/best", s.auth.requireAuth(s.handleGetBest))
	mux.HandleFunc("GET /api/v1/runs/{id}/best-per-instrument", s.auth.requireAuth(s.handleGetBestPerInstrument))

	return mux
}

// Start runs the server until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	s.baseCtx = ctx

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.httpServer.Addr).Info("API server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown drains in-flight requests with a bounded grace period
func (s *Server) Shutdown() error {
	s.logger.Info("API server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routed handler, used by tests
func (s *Server) Handler() http.Handler {
	return s.routes()
}
