// Package worker runs the background jobs of the registry.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"

	"github.com/jwalitptl/dental-verify/internal/email"
	"github.com/jwalitptl/dental-verify/internal/model"
	"github.com/jwalitptl/dental-verify/pkg/logger"
)

// ErrLockHeld means another replica is sweeping right now.
var ErrLockHeld = errors.New("expiry sweep lock held elsewhere")

type Recomputer interface {
	Recompute(ctx context.Context, now time.Time) (*model.RecomputeResult, error)
}

type Lock interface {
	Release(ctx context.Context) error
}

// Locker hands out a cluster wide lock. Obtain returns ErrLockHeld when the
// key is taken.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// RedisLocker implements Locker on redislock.
type RedisLocker struct {
	client *redislock.Client
}

func NewRedisLocker(client *redislock.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockHeld
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}
	return lock, nil
}

type SweeperConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	LockKey    string        `mapstructure:"lock_key"`
	LockTTL    time.Duration `mapstructure:"lock_ttl"`
	RunOnStart bool          `mapstructure:"run_on_start"`
}

func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:   time.Hour,
		LockKey:    "dental-verify:expiry-sweep",
		LockTTL:    5 * time.Minute,
		RunOnStart: true,
	}
}

// ExpirySweeper runs the bulk expiry recompute on an interval. The locker
// and notifier are optional.
type ExpirySweeper struct {
	recomputer Recomputer
	locker     Locker
	notifier   email.Service
	config     SweeperConfig
	logger     *logger.Logger
	now        func() time.Time
}

func NewExpirySweeper(recomputer Recomputer, locker Locker, notifier email.Service, config SweeperConfig, log *logger.Logger) *ExpirySweeper {
	defaults := DefaultSweeperConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.LockKey == "" {
		config.LockKey = defaults.LockKey
	}
	if config.LockTTL <= 0 {
		config.LockTTL = defaults.LockTTL
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ExpirySweeper{
		recomputer: recomputer,
		locker:     locker,
		notifier:   notifier,
		config:     config,
		logger:     log,
		now:        time.Now,
	}
}

func (w *ExpirySweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.logger.Info("expiry sweeper started", "interval", w.config.Interval.String())
	if w.config.RunOnStart {
		w.runOnce(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *ExpirySweeper) runOnce(ctx context.Context) {
	if _, err := w.Sweep(ctx); err != nil && !errors.Is(err, ErrLockHeld) {
		w.logger.Error(err, "expiry sweep failed")
	}
}

// Sweep performs one recompute under the lock and mails the summary when
// something changed or the sweep failed part way.
func (w *ExpirySweeper) Sweep(ctx context.Context) (*model.RecomputeResult, error) {
	if w.locker != nil {
		lock, err := w.locker.Obtain(ctx, w.config.LockKey, w.config.LockTTL)
		if err != nil {
			if errors.Is(err, ErrLockHeld) {
				w.logger.Debug("expiry sweep skipped, lock held elsewhere")
			}
			return nil, err
		}
		defer func() {
			// A fresh context so a cancelled run still frees the lock.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := lock.Release(releaseCtx); err != nil {
				w.logger.Warn("failed to release sweep lock", "error", err.Error())
			}
		}()
	}

	result, err := w.recomputer.Recompute(ctx, w.now())
	if w.notifier != nil && result != nil && (result.UpdatedCount > 0 || err != nil) {
		if mailErr := w.notifier.SendRecomputeSummary(ctx, result); mailErr != nil {
			w.logger.Error(mailErr, "failed to send recompute summary")
		}
	}
	return result, err
}
