// Package packages maintains a periodically refreshed snapshot of the
// upstream organization's package list. The snapshot is served as-is
// between refreshes; listing never blocks on the upstream host.
package packages

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/apertium/apertium-stats-service/internal/source"
)

// ErrNotRefreshed is returned when no refresh has completed yet.
var ErrNotRefreshed = errors.New("package list not refreshed yet")

// minRefreshInterval is the floor for the refresh period; smaller values
// are clamped to it so a misconfiguration cannot hammer the upstream.
const minRefreshInterval = 10 * time.Second

// packagePrefix filters organization repositories down to actual packages.
const packagePrefix = "apertium-"

// Lister enumerates the upstream organization's repositories.
type Lister interface {
	ListPackages(ctx context.Context) ([]source.Package, error)
}

// Tracker holds the current package list snapshot and refreshes it on a
// fixed interval.
type Tracker struct {
	lister   Lister
	interval time.Duration
	logger   *slog.Logger

	mu       sync.RWMutex
	packages []source.Package
	updated  time.Time
	lastErr  error
}

// NewTracker creates a Tracker refreshing every interval, clamped to the
// minimum. A nil logger disables logging.
func NewTracker(lister Lister, interval time.Duration, logger *slog.Logger) *Tracker {
	if interval < minRefreshInterval {
		interval = minRefreshInterval
	}

	return &Tracker{
		lister:   lister,
		interval: interval,
		logger:   logger,
	}
}

// Run refreshes immediately and then on every tick until ctx is canceled.
func (t *Tracker) Run(ctx context.Context) {
	if err := t.Refresh(ctx); err != nil {
		t.log(ctx, "package list refresh failed", "error", err)
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.Refresh(ctx); err != nil {
				t.log(ctx, "package list refresh failed", "error", err)
			}
		}
	}
}

// Refresh fetches the package list now and replaces the snapshot on
// success. On failure the previous snapshot is kept and the error is
// recorded alongside it.
func (t *Tracker) Refresh(ctx context.Context) error {
	listed, err := t.lister.ListPackages(ctx)
	if err != nil {
		t.mu.Lock()
		t.lastErr = err
		t.mu.Unlock()

		return err
	}

	kept := listed[:0]
	for _, pkg := range listed {
		if strings.HasPrefix(pkg.Name, packagePrefix) {
			kept = append(kept, pkg)
		}
	}

	t.mu.Lock()
	t.packages = kept
	t.updated = time.Now().UTC()
	t.lastErr = nil
	t.mu.Unlock()

	return nil
}

// Snapshot returns the current package list, when it was taken, and the
// error of the last refresh attempt. Before the first successful refresh
// the error is ErrNotRefreshed.
func (t *Tracker) Snapshot() ([]source.Package, time.Time, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.updated.IsZero() {
		err := t.lastErr
		if err == nil {
			err = ErrNotRefreshed
		}

		return nil, time.Time{}, err
	}

	out := make([]source.Package, len(t.packages))
	copy(out, t.packages)

	return out, t.updated, t.lastErr
}

func (t *Tracker) log(ctx context.Context, msg string, args ...any) {
	if t.logger != nil {
		t.logger.WarnContext(ctx, msg, args...)
	}
}
