package email

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/dental-verify/internal/model"
)

type captureSender struct {
	sent []*gomail.Message
	err  error
}

func (c *captureSender) DialAndSend(m ...*gomail.Message) error {
	c.sent = append(c.sent, m...)
	return c.err
}

func TestSendRecomputeSummary(t *testing.T) {
	capture := &captureSender{}
	svc := &smtpService{sender: capture, from: "registry@example.jo", to: []string{"ops@example.jo"}}

	err := svc.SendRecomputeSummary(context.Background(), &model.RecomputeResult{
		UpdatedCount:    2,
		TotalExpired:    5,
		NearExpiryCount: 1,
		LastUpdated:     time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		Success:         true,
	})
	require.NoError(t, err)
	require.Len(t, capture.sent, 1)

	msg := capture.sent[0]
	assert.Equal(t, []string{"ops@example.jo"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"License recompute: 2 expired today"}, msg.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Expired in total:        5")
}

func TestSendCustomErrors(t *testing.T) {
	capture := &captureSender{err: errors.New("connection refused")}
	svc := &smtpService{sender: capture, from: "registry@example.jo"}

	err := svc.SendCustom(context.Background(), nil, "hello", "body")
	assert.Error(t, err)
	assert.Empty(t, capture.sent)

	err = svc.SendCustom(context.Background(), []string{"a@example.jo"}, "hello", "body")
	assert.ErrorContains(t, err, "connection refused")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, svc.SendCustom(ctx, []string{"a@example.jo"}, "hello", "body"), context.Canceled)
}

func TestRecomputeSummaryPartial(t *testing.T) {
	body := RecomputeSummary(&model.RecomputeResult{UpdatedCount: 1})
	assert.Contains(t, body, "stopped early")
	assert.True(t, Config{Host: "smtp", From: "a@b", To: []string{"c@d"}}.Enabled())
	assert.False(t, Config{Host: "smtp"}.Enabled())
}
