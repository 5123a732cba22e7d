// Package server exposes the transcriber over HTTP.
//
// Routes:
//
//	POST /v1/transcribe      feature track (JSON or YAML) -> notes as JSON
//	POST /v1/transcribe.mid  feature track -> Standard MIDI File
//	GET  /healthz            liveness
//	GET  /readyz             readiness
//	GET  /metrics            Prometheus scrape endpoint
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/ieee0824/melody-go"
	"github.com/ieee0824/melody-go/internal/config"
	"github.com/ieee0824/melody-go/internal/observe"
	"github.com/ieee0824/melody-go/midifile"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// engine is the immutable per-config state swapped on reload.
type engine struct {
	transcriber *melody.Transcriber
	midi        midifile.Options
	maxBody     int64
}

// Server serves the HTTP API.
type Server struct {
	engine   atomic.Pointer[engine]
	metrics  *observe.Metrics
	metricsH http.Handler
	checkers []Checker
	origins  []string
	handler  http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records transcription and request metrics on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithMetricsHandler replaces the default promhttp handler on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metricsH = h
	}
}

// WithChecker adds a readiness check to /readyz.
func WithChecker(c Checker) Option {
	return func(s *Server) {
		s.checkers = append(s.checkers, c)
	}
}

// New builds a server for cfg.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		metricsH: promhttp.Handler(),
		origins:  cfg.Server.AllowedOrigins,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if err := s.Apply(cfg); err != nil {
		return nil, err
	}
	s.checkers = append([]Checker{{Name: "transcriber", Check: s.checkTranscriber}}, s.checkers...)
	s.handler = s.routes()
	return s, nil
}

// Apply rebuilds the transcriber from cfg and swaps it in. In-flight
// requests finish with the previous one. On error the current engine is
// kept. CORS origins and the listen address are fixed at construction.
func (s *Server) Apply(cfg *config.Config) error {
	tr, err := cfg.Transcriber(melody.WithMetrics(s.metrics))
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	s.engine.Store(&engine{
		transcriber: tr,
		midi:        cfg.MIDI.Options(),
		maxBody:     cfg.Server.MaxBodyBytes,
	})
	return nil
}

// Transcriber returns the transcriber currently serving requests.
func (s *Server) Transcriber() *melody.Transcriber {
	if e := s.engine.Load(); e != nil {
		return e.transcriber
	}
	return nil
}

func (s *Server) checkTranscriber(context.Context) error {
	if s.Transcriber() == nil {
		return errors.New("no transcriber loaded")
	}
	return nil
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/v1/transcribe", s.handleTranscribe).Methods(http.MethodPost)
	router.HandleFunc("/v1/transcribe.mid", s.handleTranscribeMIDI).Methods(http.MethodPost)
	router.HandleFunc("/healthz", healthz).Methods(http.MethodGet)
	router.HandleFunc("/readyz", readyz(s.checkers)).Methods(http.MethodGet)
	router.Handle("/metrics", s.metricsH).Methods(http.MethodGet)
	router.Use(mux.MiddlewareFunc(observe.Middleware(s.metrics)))

	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", observe.RequestIDHeader},
		ExposedHeaders: []string{observe.RequestIDHeader},
	})
	return c.Handler(router)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	slog.Info("shutdown signal received, stopping")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
