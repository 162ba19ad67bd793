package circuitbreaker

import (
	"sync"
	"time"

	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
)

type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

type Settings struct {
	Name string
	// MaxFailures consecutive failures open the breaker.
	MaxFailures int
	// Timeout is how long the breaker stays open before letting a probe through.
	Timeout time.Duration
	// IsSuccessful decides whether an error counts as a failure. The default
	// counts only unavailable-backend errors, so a not-found answer from a
	// healthy server never trips the breaker.
	IsSuccessful func(err error) bool
}

type CircuitBreaker struct {
	name         string
	maxFailures  int
	timeout      time.Duration
	isSuccessful func(error) bool
	failures     int
	lastFailure  time.Time
	state        State
	now          func() time.Time
	mu           sync.Mutex
}

func NewCircuitBreaker(settings Settings) *CircuitBreaker {
	if settings.MaxFailures <= 0 {
		settings.MaxFailures = 5
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	if settings.IsSuccessful == nil {
		settings.IsSuccessful = func(err error) bool {
			return err == nil || !apperrors.IsUnavailable(err)
		}
	}
	return &CircuitBreaker{
		name:         settings.Name,
		maxFailures:  settings.MaxFailures,
		timeout:      settings.Timeout,
		isSuccessful: settings.IsSuccessful,
		state:        StateClosed,
		now:          time.Now,
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastFailure) <= cb.timeout {
			cb.mu.Unlock()
			return apperrors.NewUnavailable(cb.name+" circuit breaker is open", nil)
		}
		cb.state = StateHalfOpen
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.isSuccessful(err) {
		cb.failures++
		cb.lastFailure = cb.now()
		if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
			cb.state = StateOpen
		}
		return err
	}

	cb.state = StateClosed
	cb.failures = 0
	return err
}
