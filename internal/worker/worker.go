package worker

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
	"github.com/apertium/apertium-stats-service/internal/source"
	"github.com/apertium/apertium-stats-service/internal/stats"
)

// ErrNoRecognizedFiles is returned when the package contains no file of the
// requested kind at the requested revision.
var ErrNoRecognizedFiles = errors.New("no recognized files")

// tracerName is the OTel tracer name for computation spans.
const tracerName = "apertium-stats/worker"

// Worker performs one computation end to end: fetch package content at a
// revision, run the stat computer for the file kind over every matching
// file, and persist the resulting entries. It never touches the in-flight
// registry; delivering outcomes to waiters is the orchestrator's job.
type Worker struct {
	// Fetcher materializes package content.
	Fetcher source.Fetcher

	// Computers dispatches to the stat computer for a file kind.
	Computers *stats.Registry

	// Store persists computed entries.
	Store *entrystore.Store

	// Timeout is the absolute bound on one computation, fetch included.
	// Zero means no bound.
	Timeout time.Duration

	// Logger receives per-computation progress. Nil disables logging.
	Logger *slog.Logger

	// Tracer creates computation spans. Nil falls back to the global
	// provider.
	Tracer trace.Tracer
}

// Run computes every statistic the registered computer yields for key's
// file kind and returns the persisted entries. requested is stamped on each
// entry as the originating request time.
//
// Fetch and compute failures are returned as-is so the orchestrator can
// deliver the taxonomy error to waiters; nothing is persisted on failure.
func (w *Worker) Run(ctx context.Context, key entry.Key, requested time.Time) ([]entry.Entry, error) {
	if w.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}

	ctx, span := w.tracer().Start(ctx, "compute",
		trace.WithAttributes(
			attribute.String("package", key.Name),
			attribute.Int("revision", key.Revision),
			attribute.String("file_kind", string(key.FileKind)),
		))
	defer span.End()

	computer, err := w.Computers.For(key.FileKind)
	if err != nil {
		return nil, err
	}

	content, err := w.Fetcher.Fetch(ctx, key.Name, key.Revision, func(path string) bool {
		kind, ok := entry.DetectFileKind(path)

		return ok && kind == key.FileKind
	})
	if err != nil {
		return nil, w.timeoutAsComputationFailed(ctx, err)
	}

	if len(content.Files) == 0 {
		return nil, fmt.Errorf("%w: %s has no %s files at revision %d",
			ErrNoRecognizedFiles, key.Name, key.FileKind, key.Revision)
	}

	// Entries are buffered until every file has computed; a failure on any
	// file must leave zero rows behind.
	var computed []entry.Entry

	for _, file := range content.Files {
		values, computeErr := computer.Compute(ctx, file.Path, file.Body)
		if computeErr != nil {
			return nil, w.timeoutAsComputationFailed(ctx, computeErr)
		}

		for statKind, value := range values {
			computed = append(computed, entry.Entry{
				Requested: requested,
				Name:      key.Name,
				Revision:  key.Revision,
				Path:      file.Path,
				FileKind:  key.FileKind,
				StatKind:  statKind,
				Value:     value,
			})
		}

		w.log(ctx, "computed file stats",
			"package", key.Name, "path", file.Path, "revision", key.Revision, "stats", len(values))
	}

	persisted, err := w.Store.InsertBatch(ctx, computed)
	if err != nil {
		return nil, err
	}

	return persisted, nil
}

// timeoutAsComputationFailed converts a deadline expiry into the
// computation-failure taxonomy so waiters see a stable error kind.
func (w *Worker) timeoutAsComputationFailed(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: timeout: %w", stats.ErrComputationFailed, err)
	}

	return err
}

func (w *Worker) tracer() trace.Tracer {
	if w.Tracer != nil {
		return w.Tracer
	}

	return otel.Tracer(tracerName)
}

func (w *Worker) log(ctx context.Context, msg string, args ...any) {
	if w.Logger != nil {
		w.Logger.InfoContext(ctx, msg, args...)
	}
}
