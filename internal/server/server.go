// Package server exposes the coordination core over HTTP. Handlers are
// thin: parse, delegate to the orchestrator, map the error taxonomy to
// status codes.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/apertium/apertium-stats-service/internal/entry"
	"github.com/apertium/apertium-stats-service/internal/entrystore"
	"github.com/apertium/apertium-stats-service/internal/observability"
	"github.com/apertium/apertium-stats-service/internal/orchestrator"
	"github.com/apertium/apertium-stats-service/internal/packages"
	"github.com/apertium/apertium-stats-service/internal/source"
	"github.com/apertium/apertium-stats-service/internal/stats"
	"github.com/apertium/apertium-stats-service/internal/worker"
)

const tracerName = "apertium-stats/server"

const usageText = `apertium-stats-service

  GET  /{package}                        cached statistics for a package
  GET  /{package}/{kind}/{stat}          one statistic (?revision=N, ?async=true)
  POST /{package}/{kind}/{stat}          force recomputation
  GET  /poll?token=...                   re-check a pending computation
  GET  /packages                         upstream package listing
  POST /packages                         refresh the package listing now
`

// Server routes HTTP requests to the orchestrator and auxiliary handlers.
type Server struct {
	orch    *orchestrator.Orchestrator
	tracker *packages.Tracker
	logger  *slog.Logger
	tracer  trace.Tracer

	metricsHandler http.Handler
	readyChecks    []observability.ReadyCheck
}

// Option customizes a Server.
type Option func(*Server)

// WithTracker enables the package listing endpoints.
func WithTracker(tracker *packages.Tracker) Option {
	return func(s *Server) { s.tracker = tracker }
}

// WithLogger wires a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetricsHandler mounts a Prometheus scrape handler at /metrics.
func WithMetricsHandler(handler http.Handler) Option {
	return func(s *Server) { s.metricsHandler = handler }
}

// WithReadyChecks adds readiness probes for /readyz.
func WithReadyChecks(checks ...observability.ReadyCheck) Option {
	return func(s *Server) { s.readyChecks = append(s.readyChecks, checks...) }
}

// WithTracer overrides the global tracer provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Server) { s.tracer = tracer }
}

// New creates a Server around the orchestrator.
func New(orch *orchestrator.Orchestrator, opts ...Option) *Server {
	s := &Server{orch: orch}

	for _, opt := range opts {
		opt(s)
	}

	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}

	return s
}

// Handler returns the routed handler, wrapped in the tracing middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleUsage)
	mux.Handle("GET /healthz", observability.HealthHandler())
	mux.Handle("GET /readyz", observability.ReadyHandler(s.readyChecks...))

	if s.metricsHandler != nil {
		mux.Handle("GET /metrics", s.metricsHandler)
	}

	mux.HandleFunc("GET /poll", s.handlePoll)
	mux.HandleFunc("GET /packages", s.handlePackages)
	mux.HandleFunc("POST /packages", s.handlePackagesRefresh)
	mux.HandleFunc("GET /{name}", s.handleList)
	mux.HandleFunc("GET /{name}/{kind}/{stat}", s.handleStat)
	mux.HandleFunc("POST /{name}/{kind}/{stat}", s.handleStat)

	return observability.HTTPMiddleware(s.tracer, corsMiddleware(mux))
}

// corsMiddleware allows browser clients from any origin; the API is public
// and read-mostly, matching the upstream deployment's policy.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		rw.Header().Set("Access-Control-Allow-Origin", "*")

		if hr.Method == http.MethodOptions {
			rw.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

			if requested := hr.Header.Get("Access-Control-Request-Headers"); requested != "" {
				rw.Header().Set("Access-Control-Allow-Headers", requested)
			}

			rw.WriteHeader(http.StatusNoContent)

			return
		}

		next.ServeHTTP(rw, hr)
	})
}

func (s *Server) handleUsage(rw http.ResponseWriter, _ *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = rw.Write([]byte(usageText))
}

// handleStat serves GET and POST for one statistic. POST skips the cache
// read so a fresh entry is computed even when one exists.
func (s *Server) handleStat(rw http.ResponseWriter, hr *http.Request) {
	req, err := s.parseStatRequest(hr)
	if err != nil {
		s.writeError(rw, hr, err)

		return
	}

	res, err := s.orch.GetStat(hr.Context(), req)
	if err != nil {
		s.writeError(rw, hr, err)

		return
	}

	s.writeResult(rw, res)
}

func (s *Server) parseStatRequest(hr *http.Request) (orchestrator.Request, error) {
	fileKind, err := entry.ParseFileKind(hr.PathValue("kind"))
	if err != nil {
		return orchestrator.Request{}, fmt.Errorf("%w: %w", orchestrator.ErrInvalidRequest, err)
	}

	statKind, err := entry.ParseStatKind(hr.PathValue("stat"))
	if err != nil {
		return orchestrator.Request{}, fmt.Errorf("%w: %w", orchestrator.ErrInvalidRequest, err)
	}

	req := orchestrator.Request{
		Name:      hr.PathValue("name"),
		FileKind:  fileKind,
		StatKind:  statKind,
		Recompute: hr.Method == http.MethodPost,
	}

	if raw := hr.URL.Query().Get("revision"); raw != "" {
		revision, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return orchestrator.Request{}, fmt.Errorf("%w: %w", orchestrator.ErrInvalidRequest, convErr)
		}

		req.Revision = revision
	}

	if raw := hr.URL.Query().Get("async"); raw != "" {
		async, convErr := strconv.ParseBool(raw)
		if convErr != nil {
			return orchestrator.Request{}, fmt.Errorf("%w: %w", orchestrator.ErrInvalidRequest, convErr)
		}

		req.NoWait = async
	}

	return req, nil
}

func (s *Server) handlePoll(rw http.ResponseWriter, hr *http.Request) {
	token := hr.URL.Query().Get("token")
	if token == "" {
		s.writeError(rw, hr, fmt.Errorf("%w: missing token", orchestrator.ErrInvalidRequest))

		return
	}

	res, err := s.orch.Poll(hr.Context(), token)
	if err != nil {
		s.writeError(rw, hr, err)

		return
	}

	s.writeResult(rw, res)
}

func (s *Server) handleList(rw http.ResponseWriter, hr *http.Request) {
	name := hr.PathValue("name")

	entries, err := s.orch.ListStats(hr.Context(), name)
	if err != nil {
		s.writeError(rw, hr, err)

		return
	}

	writeJSON(rw, http.StatusOK, map[string]any{
		"name":  name,
		"stats": entries,
	})
}

func (s *Server) handlePackages(rw http.ResponseWriter, hr *http.Request) {
	if s.tracker == nil {
		s.writeError(rw, hr, fmt.Errorf("%w: package listing disabled", orchestrator.ErrInvalidRequest))

		return
	}

	s.writePackages(rw, hr)
}

// handlePackagesRefresh forces a refresh before answering, so operators can
// see a new package without waiting for the next tick.
func (s *Server) handlePackagesRefresh(rw http.ResponseWriter, hr *http.Request) {
	if s.tracker == nil {
		s.writeError(rw, hr, fmt.Errorf("%w: package listing disabled", orchestrator.ErrInvalidRequest))

		return
	}

	if err := s.tracker.Refresh(hr.Context()); err != nil {
		s.writeError(rw, hr, err)

		return
	}

	s.writePackages(rw, hr)
}

func (s *Server) writePackages(rw http.ResponseWriter, hr *http.Request) {
	pkgs, updated, err := s.tracker.Snapshot()
	if err != nil && len(pkgs) == 0 {
		s.writeError(rw, hr, err)

		return
	}

	payload := map[string]any{
		"packages": pkgs,
		"updated":  updated.Format(time.RFC3339),
	}
	if err != nil {
		// Stale snapshot served alongside the refresh failure.
		payload["error"] = err.Error()
	}

	writeJSON(rw, http.StatusOK, payload)
}

func (s *Server) writeResult(rw http.ResponseWriter, res orchestrator.Result) {
	switch res.Status {
	case orchestrator.StatusPending:
		writeJSON(rw, http.StatusAccepted, map[string]any{
			"status":   string(res.Status),
			"token":    res.Token,
			"revision": res.Revision,
		})
	default:
		writeJSON(rw, http.StatusOK, map[string]any{
			"status":   string(res.Status),
			"revision": res.Revision,
			"entry":    res.Entry,
		})
	}
}

// writeError maps the error taxonomy to HTTP status codes; everything a
// client can fix is 4xx, upstream and storage trouble is 5xx.
func (s *Server) writeError(rw http.ResponseWriter, hr *http.Request, err error) {
	code := http.StatusInternalServerError

	switch {
	case errors.Is(err, orchestrator.ErrInvalidRequest):
		code = http.StatusBadRequest
	case errors.Is(err, source.ErrPackageNotFound),
		errors.Is(err, source.ErrRevisionNotFound),
		errors.Is(err, worker.ErrNoRecognizedFiles),
		errors.Is(err, entrystore.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, source.ErrSourceUnavailable),
		errors.Is(err, packages.ErrNotRefreshed):
		code = http.StatusBadGateway
	case errors.Is(err, entrystore.ErrStorageUnavailable),
		errors.Is(err, orchestrator.ErrPoolSaturated):
		code = http.StatusServiceUnavailable
	case errors.Is(err, stats.ErrComputationFailed):
		code = http.StatusUnprocessableEntity
	}

	if s.logger != nil && code >= http.StatusInternalServerError {
		s.logger.ErrorContext(hr.Context(), "request failed", "path", hr.URL.Path, "error", err)
	}

	writeJSON(rw, code, map[string]any{
		"status": string(orchestrator.StatusError),
		"error":  err.Error(),
	})
}

func writeJSON(rw http.ResponseWriter, code int, payload any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)

	_ = json.NewEncoder(rw).Encode(payload)
}
