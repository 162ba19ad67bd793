// Package hosted is the Store backend for a hosted Postgres exposed through
// a PostgREST compatible endpoint. Filters use PostgREST operators, e.g.
// id=eq.<id>, and writes ask for the affected rows back.
package hosted

import (
	"context"
	"encoding/json"
	"fmt"
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

const (
	backendName = "hosted"

	preferReturn = "return=representation"
	preferUpsert = "resolution=merge-duplicates,return=representation"
)

type Config struct {
	URL     string
	AnonKey string

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

// apiError is the error body PostgREST returns.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func newClient(cfg Config, opts ...Option) (*client, error) {
	if strings.TrimSpace(cfg.URL) == "" || strings.TrimSpace(cfg.AnonKey) == "" {
		return nil, apperrors.NewConfiguration("hosted backend requires a url and an anon key", nil)
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
		SetBaseURL(strings.TrimRight(cfg.URL, "/")+"/rest/v1").
		SetTimeout(cfg.Timeout).
		SetHeader("apikey", cfg.AnonKey).
		SetAuthToken(cfg.AnonKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return c, nil
}

type request struct {
	op     string
	method string
	table  string
	query  map[string]string
	prefer string
	body   interface{}
	out    interface{}
}

func (c *client) do(ctx context.Context, r request) error {
	started := time.Now()
	err := c.breaker.Execute(func() error {
		req := c.http.R().SetContext(ctx)
		if len(r.query) > 0 {
			req.SetQueryParams(r.query)
		}
		if r.prefer != "" {
			req.SetHeader("Prefer", r.prefer)
		}
		if r.body != nil {
			req.SetBody(r.body)
		}
		resp, err := req.Execute(r.method, "/"+r.table)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return apperrors.NewUnavailable("hosted backend unreachable", err)
		}
		if resp.IsError() {
			return responseError(resp)
		}
		if r.out == nil || len(resp.Body()) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.Body(), r.out); err != nil {
			return apperrors.NewUnavailable("malformed hosted backend response", err)
		}
		return nil
	})
	c.metrics.ObserveStore(backendName, r.op, metrics.StatusLabel(err), started)
	if err != nil && !apperrors.IsNotFound(err) {
		log.Ctx(ctx).Debug().Err(err).Str("op", r.op).Str("backend", backendName).Msg("hosted request failed")
	}
	return err
}

func (c *client) read(ctx context.Context, r request) error {
	r.method = http.MethodGet
	return repository.RetryRead(ctx, c.retries, c.delay, func() error {
		return c.do(ctx, r)
	})
}

func responseError(resp *resty.Response) error {
	var body apiError
	_ = json.Unmarshal(resp.Body(), &body)
	msg := body.Message
	if msg == "" {
		msg = resp.Status()
	}
	// 23505 is a unique violation, 23503 a foreign key violation.
	switch body.Code {
	case "23505":
		return apperrors.NewConflict(msg, nil)
	case "23503", "23514", "22P02":
		return apperrors.NewBadRequest(msg, nil)
	}
	return httputil.FromStatus(resp.StatusCode(), msg)
}

func eq(v string) string  { return "eq." + v }
func neq(v string) string { return "neq." + v }
func gte(v string) string { return "gte." + v }

// selectAll reads every row of table matching query into out.
func (c *client) selectAll(ctx context.Context, op, table string, query map[string]string, out interface{}) error {
	q := map[string]string{"select": "*"}
	for k, v := range query {
		q[k] = v
	}
	return c.read(ctx, request{op: op, table: table, query: q, out: out})
}

// selectOne reads the single row whose column equals value.
func selectOne[T any](ctx context.Context, c *client, op, table, resource, column, value string) (*T, error) {
	var rows []*T
	query := map[string]string{column: eq(value), "limit": "1"}
	if err := c.selectAll(ctx, op, table, query, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperrors.NewNotFound(resource, nil)
	}
	return rows[0], nil
}

// insert creates row and decodes the stored representation back into it.
func insert[T any](ctx context.Context, c *client, op, table string, row *T) error {
	var rows []*T
	err := c.do(ctx, request{
		op: op, method: http.MethodPost, table: table,
		prefer: preferReturn, body: row, out: &rows,
	})
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		*row = *rows[0]
	}
	return nil
}

// update patches the row whose id matches and reports NotFound when none did.
func (c *client) update(ctx context.Context, op, table, resource, column, value string, cols map[string]interface{}) error {
	if len(cols) == 0 {
		var rows []json.RawMessage
		query := map[string]string{"select": column, column: eq(value), "limit": "1"}
		if err := c.read(ctx, request{op: op, table: table, query: query, out: &rows}); err != nil {
			return err
		}
		if len(rows) == 0 {
			return apperrors.NewNotFound(resource, nil)
		}
		return nil
	}

	var rows []json.RawMessage
	err := c.do(ctx, request{
		op: op, method: http.MethodPatch, table: table,
		query:  map[string]string{column: eq(value)},
		prefer: preferReturn, body: cols, out: &rows,
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return apperrors.NewNotFound(resource, nil)
	}
	return nil
}

func (c *client) remove(ctx context.Context, op, table string, filter map[string]string) error {
	if len(filter) == 0 {
		return apperrors.NewInternal(fmt.Errorf("refusing unfiltered delete on %s", table))
	}
	return c.do(ctx, request{op: op, method: http.MethodDelete, table: table, query: filter})
}
