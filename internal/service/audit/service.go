package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/dental-verify/internal/model"
	"github.com/jwalitptl/dental-verify/internal/repository"
	"github.com/jwalitptl/dental-verify/pkg/logger"
	"github.com/jwalitptl/dental-verify/pkg/messaging"
)

// Event is what subscribers of the verifications channel receive.
type Event struct {
	Type    string                     `json:"type"`
	Attempt *model.VerificationAttempt `json:"attempt"`
}

const EventVerificationRecorded = "verification.recorded"

// Service is the verification audit log. It only ever appends.
type Service struct {
	store     repository.Store
	publisher messaging.Broker
	logger    *logger.Logger
	now       func() time.Time
}

type Option func(*Service)

// WithPublisher announces every recorded attempt on the verifications channel.
func WithPublisher(b messaging.Broker) Option {
	return func(s *Service) { s.publisher = b }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(store repository.Store, opts ...Option) *Service {
	s := &Service{store: store, logger: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record appends attempt and, when it found a clinic, bumps that clinic's
// verification count. Errors are returned; callers decide whether they
// matter.
func (s *Service) Record(ctx context.Context, attempt *model.VerificationAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = s.now().UTC()
	}

	if err := s.store.Verifications().Create(ctx, attempt); err != nil {
		return fmt.Errorf("failed to append verification attempt: %w", err)
	}

	if attempt.VerificationStatus == model.VerificationStatusSuccess && attempt.ClinicID != "" {
		if err := s.store.Clinics().IncrementVerificationCount(ctx, attempt.ClinicID); err != nil {
			return fmt.Errorf("failed to increment verification count: %w", err)
		}
	}

	s.publish(ctx, attempt)
	return nil
}

func (s *Service) publish(ctx context.Context, attempt *model.VerificationAttempt) {
	if s.publisher == nil {
		return
	}
	event := Event{Type: EventVerificationRecorded, Attempt: attempt}
	if err := s.publisher.Publish(ctx, messaging.ChannelVerifications, event); err != nil {
		s.logger.Warn("failed to publish verification event", "attempt_id", attempt.ID, "error", err.Error())
	}
}

func (s *Service) List(ctx context.Context, filter model.VerificationFilter) ([]*model.VerificationAttempt, error) {
	attempts, err := s.store.Verifications().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list verification attempts: %w", err)
	}
	return attempts, nil
}

// Stats counts attempts since the given time, or all attempts when since is
// nil.
func (s *Service) Stats(ctx context.Context, since *time.Time) (*model.VerificationStats, error) {
	attempts, err := s.List(ctx, model.VerificationFilter{Since: since})
	if err != nil {
		return nil, err
	}
	stats := &model.VerificationStats{
		ByMethod: map[model.VerificationMethod]int{},
		ByStatus: map[model.VerificationStatus]int{},
	}
	for _, a := range attempts {
		stats.Total++
		stats.ByMethod[a.VerificationMethod]++
		stats.ByStatus[a.VerificationStatus]++
	}
	return stats, nil
}
