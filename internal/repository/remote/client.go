// Package remote is the Store backend that talks to a gateway over HTTP.
// Connection details for the gateway's relational database travel in
// request headers, so one gateway serves any number of databases.
package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/dental-verify/internal/repository"
	"github.com/jwalitptl/dental-verify/pkg/circuitbreaker"
	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
	"github.com/jwalitptl/dental-verify/pkg/httputil"
	"github.com/jwalitptl/dental-verify/pkg/metrics"
)

const backendName = "remote"

// Config addresses the gateway and the database behind it. Port is kept as
// text because it arrives from site settings.
type Config struct {
	BaseURL  string
	Host     string
	Port     string
	Database string
	User     string
	Password string

	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

type Option func(*client)

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *client) { c.metrics = m }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.http = resty.NewWithClient(hc) }
}

func WithBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(c *client) { c.breaker = cb }
}

type client struct {
	http    *resty.Client
	breaker *circuitbreaker.CircuitBreaker
	metrics *metrics.Metrics
	retries int
	delay   time.Duration
}

// envelope is the gateway's response body.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newClient(cfg Config, opts ...Option) (*client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, apperrors.NewConfiguration("remote backend requires an api base url", nil)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 200 * time.Millisecond
	}

	c := &client{
		http:    resty.New(),
		retries: cfg.RetryAttempts,
		delay:   cfg.RetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{Name: backendName})
	}

	c.http.
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/api").
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	headers := map[string]string{
		"X-DB-Host":     cfg.Host,
		"X-DB-Port":     cfg.Port,
		"X-DB-Name":     cfg.Database,
		"X-DB-User":     cfg.User,
		"X-DB-Password": cfg.Password,
	}
	for k, v := range headers {
		if v != "" {
			c.http.SetHeader(k, v)
		}
	}
	return c, nil
}

// call performs one request without retrying.
func (c *client) call(ctx context.Context, op, method, path string, query map[string]string, body, out interface{}) error {
	started := time.Now()
	err := c.breaker.Execute(func() error {
		req := c.http.R().SetContext(ctx)
		if len(query) > 0 {
			req.SetQueryParams(query)
		}
		if body != nil {
			req.SetBody(body)
		}
		resp, err := req.Execute(method, path)
		if err != nil {
			return transportError(ctx, err)
		}
		return decode(resp, out)
	})
	c.metrics.ObserveStore(backendName, op, metrics.StatusLabel(err), started)
	if err != nil && !apperrors.IsNotFound(err) {
		log.Ctx(ctx).Debug().Err(err).Str("op", op).Str("backend", backendName).Msg("gateway request failed")
	}
	return err
}

// read retries call while the gateway is unavailable.
func (c *client) read(ctx context.Context, op, path string, query map[string]string, out interface{}) error {
	return repository.RetryRead(ctx, c.retries, c.delay, func() error {
		return c.call(ctx, op, http.MethodGet, path, query, nil, out)
	})
}

func transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return apperrors.NewUnavailable("gateway unreachable", err)
}

func decode(resp *resty.Response, out interface{}) error {
	var env envelope
	if len(resp.Body()) > 0 {
		if err := json.Unmarshal(resp.Body(), &env); err != nil && !resp.IsError() {
			return apperrors.NewUnavailable("malformed gateway response", err)
		}
	}
	if resp.IsError() {
		msg := env.Message
		if msg == "" {
			msg = resp.Status()
		}
		return httputil.FromStatus(resp.StatusCode(), msg)
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return apperrors.NewInternal(err)
	}
	return nil
}
