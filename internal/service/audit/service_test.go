package audit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/dental-verify/internal/model"
	"github.com/jwalitptl/dental-verify/internal/repository/local"
	"github.com/jwalitptl/dental-verify/pkg/messaging"
)

type recordingBroker struct {
	channel string
	events  []interface{}
	err     error
}

func (b *recordingBroker) Publish(_ context.Context, channel string, message interface{}) error {
	b.channel = channel
	b.events = append(b.events, message)
	return b.err
}

func (b *recordingBroker) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

func (b *recordingBroker) Close() error { return nil }

func newStore(t *testing.T) *local.Store {
	t.Helper()
	store, err := local.Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordIncrementsOnSuccess(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	clinic := &model.Clinic{LicenseNumber: "JOR-DEN-001", LicenseStatus: model.LicenseStatusActive}
	require.NoError(t, store.Clinics().Create(ctx, clinic))

	broker := &recordingBroker{}
	svc := NewService(store, WithPublisher(broker))

	require.NoError(t, svc.Record(ctx, &model.VerificationAttempt{
		ClinicID:           clinic.ID,
		LicenseNumber:      "JOR-DEN-001",
		VerificationMethod: model.VerificationMethodQRScan,
		VerificationStatus: model.VerificationStatusSuccess,
	}))
	require.NoError(t, svc.Record(ctx, &model.VerificationAttempt{
		LicenseNumber:      "NOPE",
		VerificationMethod: model.VerificationMethodManualEntry,
		VerificationStatus: model.VerificationStatusNotFound,
	}))

	got, err := store.Clinics().Get(ctx, clinic.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.VerificationCount)

	attempts, err := svc.List(ctx, model.VerificationFilter{})
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	for _, a := range attempts {
		assert.NotEmpty(t, a.ID)
		assert.False(t, a.CreatedAt.IsZero())
	}

	assert.Equal(t, messaging.ChannelVerifications, broker.channel)
	require.Len(t, broker.events, 2)
	assert.Equal(t, EventVerificationRecorded, broker.events[0].(Event).Type)
}

func TestRecordSurvivesPublishFailure(t *testing.T) {
	svc := NewService(newStore(t), WithPublisher(&recordingBroker{err: errors.New("redis down")}))
	err := svc.Record(context.Background(), &model.VerificationAttempt{
		LicenseNumber:      "X",
		VerificationMethod: model.VerificationMethodManualEntry,
		VerificationStatus: model.VerificationStatusNotFound,
	})
	assert.NoError(t, err)
}

func TestRecordMissingClinicFails(t *testing.T) {
	svc := NewService(newStore(t))
	err := svc.Record(context.Background(), &model.VerificationAttempt{
		ClinicID:           "gone",
		LicenseNumber:      "JOR-DEN-404",
		VerificationMethod: model.VerificationMethodManualEntry,
		VerificationStatus: model.VerificationStatusSuccess,
	})
	assert.Error(t, err)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newStore(t))
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, a := range []model.VerificationAttempt{
		{VerificationMethod: model.VerificationMethodQRScan, VerificationStatus: model.VerificationStatusNotFound},
		{VerificationMethod: model.VerificationMethodManualEntry, VerificationStatus: model.VerificationStatusNotFound},
		{VerificationMethod: model.VerificationMethodQRScan, VerificationStatus: model.VerificationStatusFailed},
	} {
		a := a
		a.LicenseNumber = "L"
		a.CreatedAt = base.Add(time.Duration(i) * 24 * time.Hour)
		require.NoError(t, svc.Record(ctx, &a))
	}

	stats, err := svc.Stats(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByMethod[model.VerificationMethodQRScan])
	assert.Equal(t, 2, stats.ByStatus[model.VerificationStatusNotFound])

	since := base.Add(24 * time.Hour)
	stats, err = svc.Stats(ctx, &since)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
}
