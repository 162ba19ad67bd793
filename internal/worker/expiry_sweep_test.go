package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/dental-verify/internal/model"
)

type fakeRecomputer struct {
	result *model.RecomputeResult
	err    error
	calls  []time.Time
}

func (f *fakeRecomputer) Recompute(_ context.Context, now time.Time) (*model.RecomputeResult, error) {
	f.calls = append(f.calls, now)
	return f.result, f.err
}

type fakeLock struct{ released *int }

func (l fakeLock) Release(context.Context) error {
	*l.released++
	return nil
}

type fakeLocker struct {
	held     bool
	keys     []string
	released int
}

func (f *fakeLocker) Obtain(_ context.Context, key string, _ time.Duration) (Lock, error) {
	f.keys = append(f.keys, key)
	if f.held {
		return nil, ErrLockHeld
	}
	return fakeLock{released: &f.released}, nil
}

type fakeNotifier struct {
	sent []*model.RecomputeResult
}

func (f *fakeNotifier) SendRecomputeSummary(_ context.Context, r *model.RecomputeResult) error {
	f.sent = append(f.sent, r)
	return nil
}

func (f *fakeNotifier) SendCustom(context.Context, []string, string, string) error { return nil }

func TestSweepUnderLock(t *testing.T) {
	rec := &fakeRecomputer{result: &model.RecomputeResult{UpdatedCount: 2, Success: true}}
	locker := &fakeLocker{}
	notifier := &fakeNotifier{}
	w := NewExpirySweeper(rec, locker, notifier, SweeperConfig{}, nil)
	fixed := time.Date(2025, 2, 1, 3, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	result, err := w.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.UpdatedCount)
	assert.Equal(t, []time.Time{fixed}, rec.calls)
	assert.Equal(t, []string{DefaultSweeperConfig().LockKey}, locker.keys)
	assert.Equal(t, 1, locker.released)
	assert.Len(t, notifier.sent, 1)
}

func TestSweepSkipsWhenLockHeld(t *testing.T) {
	rec := &fakeRecomputer{result: &model.RecomputeResult{Success: true}}
	w := NewExpirySweeper(rec, &fakeLocker{held: true}, nil, SweeperConfig{}, nil)

	_, err := w.Sweep(context.Background())
	assert.ErrorIs(t, err, ErrLockHeld)
	assert.Empty(t, rec.calls)
}

func TestSweepNotifications(t *testing.T) {
	notifier := &fakeNotifier{}

	quiet := NewExpirySweeper(&fakeRecomputer{result: &model.RecomputeResult{Success: true}}, nil, notifier, SweeperConfig{}, nil)
	_, err := quiet.Sweep(context.Background())
	require.NoError(t, err)
	assert.Empty(t, notifier.sent, "nothing changed, nothing to report")

	partial := &model.RecomputeResult{UpdatedCount: 1}
	failing := NewExpirySweeper(&fakeRecomputer{result: partial, err: errors.New("backend down")}, nil, notifier, SweeperConfig{}, nil)
	result, err := failing.Sweep(context.Background())
	assert.Error(t, err)
	assert.Same(t, partial, result)
	assert.Len(t, notifier.sent, 1)
}

func TestStartRunsUntilCancelled(t *testing.T) {
	rec := &fakeRecomputer{result: &model.RecomputeResult{Success: true}}
	w := NewExpirySweeper(rec, nil, nil, SweeperConfig{Interval: time.Hour, RunOnStart: true}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	cancel()
	<-done
	assert.Len(t, rec.calls, 1)
}
