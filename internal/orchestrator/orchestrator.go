// Package orchestrator coordinates stat requests across the entry store,
// the in-flight registry, and the worker pool. It is the only writer of the
// registry, which keeps the deduplication invariant in one place.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/apertium/apertium-stats-service/internal/entry"
	"github.com/apertium/apertium-stats-service/internal/entrystore"
	"github.com/apertium/apertium-stats-service/internal/inflight"
	"github.com/apertium/apertium-stats-service/internal/observability"
	"github.com/apertium/apertium-stats-service/internal/source"
	"github.com/apertium/apertium-stats-service/internal/stats"
	"github.com/apertium/apertium-stats-service/internal/worker"
)

// ErrInvalidRequest is returned for malformed request fields, before any
// store or registry interaction.
var ErrInvalidRequest = errors.New("invalid request")

// ErrPoolSaturated is returned when no worker slot is available to lead a
// new computation. The key returns to absent so a later request retries.
var ErrPoolSaturated = errors.New("worker pool saturated")

const tracerName = "apertium-stats/orchestrator"

// Status of a stat request outcome.
type Status string

// Request outcomes.
const (
	StatusReady   Status = "ready"
	StatusPending Status = "pending"
	StatusError   Status = "error"
)

// Request asks for one statistic of one package.
type Request struct {
	// Name is the package name; normalized before use.
	Name string

	// Revision pins the target revision. Zero or negative means "resolve
	// the upstream latest".
	Revision int

	// FileKind and StatKind select the metric.
	FileKind entry.FileKind
	StatKind entry.StatKind

	// Recompute skips the cache read so a fresh entry is appended even when
	// one exists at the target revision.
	Recompute bool

	// NoWait returns Pending immediately instead of waiting the bounded
	// time for an in-flight outcome.
	NoWait bool
}

// Result is the answer to a stat request.
type Result struct {
	// Status is ready or pending; errors are returned separately.
	Status Status

	// Entry is set when Status is ready.
	Entry *entry.Entry

	// Token is set when Status is pending; polling with it is idempotent
	// and re-checks the store before the registry.
	Token string

	// Revision is the concrete revision the request resolved to.
	Revision int
}

// Orchestrator is the public entry point of the coordination core.
type Orchestrator struct {
	store    *entrystore.Store
	registry *inflight.Registry
	pool     *worker.Pool
	worker   *worker.Worker
	fetcher  source.Fetcher

	// wait bounds how long a request blocks on an in-flight outcome before
	// degrading to Pending. Zero disables waiting.
	wait time.Duration

	metrics *observability.ServiceMetrics
	logger  *slog.Logger
	tracer  trace.Tracer

	// now is injectable for tests.
	now func() time.Time
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithWait sets the bounded follower wait.
func WithWait(wait time.Duration) Option {
	return func(o *Orchestrator) { o.wait = wait }
}

// WithMetrics wires service metrics.
func WithMetrics(metrics *observability.ServiceMetrics) Option {
	return func(o *Orchestrator) { o.metrics = metrics }
}

// WithLogger wires a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithTracer overrides the global tracer provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = tracer }
}

// New creates an Orchestrator. The worker's computers decide which
// (file kind, stat kind) pairs are computable; everything else is rejected
// as invalid before touching the store or registry.
func New(
	store *entrystore.Store,
	registry *inflight.Registry,
	pool *worker.Pool,
	w *worker.Worker,
	fetcher source.Fetcher,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		registry: registry,
		pool:     pool,
		worker:   w,
		fetcher:  fetcher,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// GetStat serves one stat request: cache hit, attach to an in-flight
// computation, or lead a new one. The returned error carries the taxonomy
// kind (invalid request, storage unavailable, source unavailable, revision
// not found, computation failed).
func (o *Orchestrator) GetStat(ctx context.Context, req Request) (Result, error) {
	req, err := o.validate(req)
	if err != nil {
		o.recordRequest(ctx, StatusError)

		return Result{}, err
	}

	res, err := o.get(ctx, req)
	if err != nil {
		o.recordRequest(ctx, StatusError)

		return Result{}, err
	}

	o.recordRequest(ctx, res.Status)

	return res, nil
}

// Poll re-evaluates a pending request. The token pins the revision resolved
// at submission time, so "latest" is not re-resolved; otherwise polling is
// the same idempotent path as a fresh request, which also means a failed
// computation is transparently retried rather than replayed from a cache of
// failures.
func (o *Orchestrator) Poll(ctx context.Context, token string) (Result, error) {
	req, err := parseToken(token)
	if err != nil {
		o.recordRequest(ctx, StatusError)

		return Result{}, err
	}

	// A token is client-supplied input like any other; it passes the same
	// gates as a fresh request before touching the store or registry.
	req, err = o.validate(req)
	if err != nil {
		o.recordRequest(ctx, StatusError)

		return Result{}, err
	}

	res, err := o.get(ctx, req)
	if err != nil {
		o.recordRequest(ctx, StatusError)

		return Result{}, err
	}

	o.recordRequest(ctx, res.Status)

	return res, nil
}

// ListStats returns every recorded entry for a package, newest first.
func (o *Orchestrator) ListStats(ctx context.Context, name string) ([]entry.Entry, error) {
	normalized, err := entry.NormalizeName(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	return o.store.FindAllForName(ctx, normalized)
}

// InProgress reports whether a computation for the key shape is currently
// in flight. Exposed for listing endpoints; never used for dedup decisions,
// which belong exclusively to TryBegin.
func (o *Orchestrator) InProgress() int {
	return o.registry.Len()
}

// validate normalizes the package name and checks the (file kind, stat
// kind) pair against the computer registry. Rejected requests never reach
// the store or the registry.
func (o *Orchestrator) validate(req Request) (Request, error) {
	name, err := entry.NormalizeName(req.Name)
	if err != nil {
		return Request{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	req.Name = name

	if !o.worker.Computers.Supports(req.FileKind, req.StatKind) {
		return Request{}, fmt.Errorf("%w: no %s statistic for %s files", ErrInvalidRequest, req.StatKind, req.FileKind)
	}

	return req, nil
}

func (o *Orchestrator) get(ctx context.Context, req Request) (Result, error) {
	requested := o.now().UTC()

	ctx, span := o.getTracer().Start(ctx, "get_stat",
		trace.WithAttributes(
			attribute.String("package", req.Name),
			attribute.String("file_kind", string(req.FileKind)),
			attribute.String("stat_kind", string(req.StatKind)),
		))
	defer span.End()

	revision := req.Revision
	if revision <= 0 {
		// "latest" is time-varying; resolve it per request and never cache
		// the resolution.
		latest, err := o.fetcher.LatestRevision(ctx, req.Name)
		if err != nil {
			return Result{}, err
		}

		revision = latest
	}

	span.SetAttributes(attribute.Int("revision", revision))

	if !req.Recompute {
		cached, err := o.store.FindLatest(ctx, req.Name, "", req.FileKind, req.StatKind, revision)

		switch {
		case err == nil:
			o.recordLookup(ctx, observability.CacheHit)

			return Result{Status: StatusReady, Entry: &cached, Revision: revision}, nil
		case errors.Is(err, entrystore.ErrNotFound):
			o.recordLookup(ctx, observability.CacheMiss)
		default:
			// A storage outage must not degrade into a recomputation
			// stampede; surface it.
			return Result{}, err
		}
	}

	key := entry.Key{
		Name:     req.Name,
		Revision: revision,
		FileKind: req.FileKind,
		StatKind: req.StatKind,
	}

	flight, leader := o.registry.TryBegin(key)
	if leader {
		if err := o.dispatch(ctx, key, requested); err != nil {
			return Result{}, err
		}
	}

	return o.await(ctx, req, key, flight)
}

// dispatch hands the computation to the pool. The task runs on the pool's
// context, not the request's: a disconnecting client must not cancel work
// that other waiters (or future requests) benefit from.
func (o *Orchestrator) dispatch(ctx context.Context, key entry.Key, requested time.Time) error {
	done := o.metrics.ComputationStarted(ctx, string(key.FileKind))

	submitted := o.pool.Submit(func(taskCtx context.Context) {
		entries, err := o.worker.Run(taskCtx, key, requested)
		if err != nil {
			done("failure")
			o.log(taskCtx, slog.LevelWarn, "computation failed",
				"package", key.Name, "revision", key.Revision, "file_kind", key.FileKind, "error", err)
		} else {
			done("success")
			o.log(taskCtx, slog.LevelInfo, "computation finished",
				"package", key.Name, "revision", key.Revision, "file_kind", key.FileKind, "entries", len(entries))
		}

		o.registry.Resolve(key, inflight.Outcome{Entries: entries, Err: err})
	})
	if !submitted {
		done("rejected")
		// Resolve immediately so attached followers are not stranded.
		err := fmt.Errorf("%w: %s", ErrPoolSaturated, key.Name)
		o.registry.Resolve(key, inflight.Outcome{Err: err})

		return err
	}

	return nil
}

// await blocks up to the configured bound for the flight outcome, then
// degrades to Pending with a poll token.
func (o *Orchestrator) await(ctx context.Context, req Request, key entry.Key, flight *inflight.Flight) (Result, error) {
	pending := Result{
		Status:   StatusPending,
		Token:    newToken(req, key.Revision),
		Revision: key.Revision,
	}

	if req.NoWait || o.wait <= 0 {
		return pending, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, o.wait)
	defer cancel()

	outcome, err := flight.Wait(waitCtx)
	if err != nil {
		// Bound elapsed; the computation keeps running.
		return pending, nil
	}

	if outcome.Err != nil {
		return Result{}, outcome.Err
	}

	for i := range outcome.Entries {
		if outcome.Entries[i].StatKind == req.StatKind {
			return Result{Status: StatusReady, Entry: &outcome.Entries[i], Revision: key.Revision}, nil
		}
	}

	// The computer for a supported pair always yields the stat; reaching
	// here means the capability and the support table disagree.
	return Result{}, fmt.Errorf("%w: computation yielded no %s", stats.ErrComputationFailed, req.StatKind)
}

func (o *Orchestrator) getTracer() trace.Tracer {
	if o.tracer != nil {
		return o.tracer
	}

	return otel.Tracer(tracerName)
}

func (o *Orchestrator) recordRequest(ctx context.Context, status Status) {
	o.metrics.RecordRequest(ctx, string(status))
}

func (o *Orchestrator) recordLookup(ctx context.Context, result string) {
	o.metrics.RecordCacheLookup(ctx, result)
}

func (o *Orchestrator) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if o.logger != nil {
		o.logger.Log(ctx, level, msg, args...)
	}
}
