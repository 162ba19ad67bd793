// Package email sends operational mail over SMTP.
package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/dental-verify/internal/model"
)

type Config struct {
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// Enabled reports whether there is a server and someone to write to.
func (c Config) Enabled() bool {
	return c.Host != "" && c.From != "" && len(c.To) > 0
}

type Service interface {
	SendRecomputeSummary(ctx context.Context, result *model.RecomputeResult) error
	SendCustom(ctx context.Context, to []string, subject string, content string) error
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type smtpService struct {
	sender sender
	from   string
	to     []string
}

func NewSMTPService(cfg Config) Service {
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	return &smtpService{
		sender: gomail.NewDialer(cfg.Host, port, cfg.Username, cfg.Password),
		from:   cfg.From,
		to:     cfg.To,
	}
}

func (s *smtpService) SendRecomputeSummary(ctx context.Context, result *model.RecomputeResult) error {
	subject := fmt.Sprintf("License recompute: %d expired today", result.UpdatedCount)
	return s.SendCustom(ctx, s.to, subject, RecomputeSummary(result))
}

func (s *smtpService) SendCustom(ctx context.Context, to []string, subject string, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(to) == 0 {
		return fmt.Errorf("no recipients for %q", subject)
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", content)
	if err := s.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// RecomputeSummary is the plain text body of the sweep report.
func RecomputeSummary(result *model.RecomputeResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "License recompute at %s\n\n", result.LastUpdated.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Newly expired:           %d\n", result.UpdatedCount)
	fmt.Fprintf(&b, "Expired in total:        %d\n", result.TotalExpired)
	fmt.Fprintf(&b, "Expiring within 30 days: %d\n", result.NearExpiryCount)
	if !result.Success {
		b.WriteString("\nThe sweep stopped early; counts cover only the rows already updated.\n")
	}
	return b.String()
}
