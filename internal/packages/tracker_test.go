package packages

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apertium/apertium-stats-service/internal/source"
)

type fakeLister struct {
	mu       sync.Mutex
	packages []source.Package
	err      error
	calls    int
}

func (f *fakeLister) ListPackages(_ context.Context) ([]source.Package, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	out := make([]source.Package, len(f.packages))
	copy(out, f.packages)

	return out, nil
}

func TestRefreshFiltersAndSnapshots(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{packages: []source.Package{
		{Name: "apertium-fr-en", Description: "French-English"},
		{Name: "organisation-website"},
		{Name: "apertium-kaz"},
	}}
	tracker := NewTracker(lister, time.Minute, nil)

	require.NoError(t, tracker.Refresh(context.Background()))

	pkgs, updated, err := tracker.Snapshot()
	require.NoError(t, err)
	assert.False(t, updated.IsZero())
	require.Len(t, pkgs, 2)
	assert.Equal(t, "apertium-fr-en", pkgs[0].Name)
	assert.Equal(t, "apertium-kaz", pkgs[1].Name)
}

func TestSnapshotBeforeFirstRefresh(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(&fakeLister{}, time.Minute, nil)

	_, _, err := tracker.Snapshot()
	assert.ErrorIs(t, err, ErrNotRefreshed)
}

func TestFailedRefreshKeepsPreviousSnapshot(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{packages: []source.Package{{Name: "apertium-fr-en"}}}
	tracker := NewTracker(lister, time.Minute, nil)

	require.NoError(t, tracker.Refresh(context.Background()))

	lister.mu.Lock()
	lister.err = source.ErrSourceUnavailable
	lister.mu.Unlock()

	require.Error(t, tracker.Refresh(context.Background()))

	pkgs, _, err := tracker.Snapshot()
	assert.ErrorIs(t, err, source.ErrSourceUnavailable)
	require.Len(t, pkgs, 1)
	assert.Equal(t, "apertium-fr-en", pkgs[0].Name)
}

func TestRunRefreshesUntilCanceled(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{packages: []source.Package{{Name: "apertium-kaz"}}}
	tracker := NewTracker(lister, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		tracker.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		_, _, err := tracker.Snapshot()

		return err == nil
	}, time.Second, 10*time.Millisecond)

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}

	lister.mu.Lock()
	calls := lister.calls
	lister.mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestIntervalClampedToMinimum(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(&fakeLister{}, time.Millisecond, nil)
	assert.Equal(t, minRefreshInterval, tracker.interval)
}

func TestErrNotRefreshedHiddenByFailure(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{err: errors.New("boom")}
	tracker := NewTracker(lister, time.Minute, nil)

	require.Error(t, tracker.Refresh(context.Background()))

	_, _, err := tracker.Snapshot()
	assert.EqualError(t, err, "boom")
}
