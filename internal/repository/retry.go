package repository

import (
	"context"
	"time"

	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
)

// RetryRead runs fn up to attempts times while it fails with an unavailable
// backend error, doubling delay between tries. Writes must not go through
// here.
func RetryRead(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !apperrors.IsUnavailable(err) {
			return err
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return err
			case <-time.After(delay):
			}
			delay *= 2
		}
	}
	return err
}
