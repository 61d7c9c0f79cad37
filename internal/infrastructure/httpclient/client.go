package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Zhima-Mochi/storefront/internal/observability"
	"github.com/Zhima-Mochi/storefront/internal/observability/logctx"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxBodyBytes = 1 << 20

var ErrCircuitOpen = errors.New("httpclient: circuit open")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpclient: unexpected status %d", e.Code)
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type Config struct {
	// Peer labels metrics and names the breaker.
	Peer    string
	BaseURL string
	Timeout time.Duration
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// Client is the single outbound HTTP path: traced transport, per-call timeout,
// circuit breaker and external_* metrics.
type Client struct {
	peer    string
	baseURL string
	timeout time.Duration
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*Response]

	log          observability.Logger
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

type Option func(*Client)

// WithTransport replaces the base round tripper. It is still wrapped by otelhttp.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.http.Transport = otelhttp.NewTransport(rt)
	}
}

func New(cfg Config, tel observability.Observability, opts ...Option) *Client {
	logger, _, metrics := observability.Resolve(tel)
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	c := &Client{
		peer:         cfg.Peer,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		timeout:      cfg.Timeout,
		http:         &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		log:          logger.With(observability.F("component", "httpclient"), observability.F("peer", cfg.Peer)),
		extCounter:   metrics.Counter(observability.MExternalRequests),
		extHistogram: metrics.Histogram(observability.MExternalRequestDuration),
	}

	threshold := cfg.FailureThreshold
	c.breaker = gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        cfg.Peer,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("circuit_state_changed",
				observability.F("from", from.String()),
				observability.F("to", to.String()),
			)
		},
	})

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// isSuccessful keeps client-side errors from tripping the breaker; only transport
// failures and 5xx count against the peer.
func isSuccessful(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code < http.StatusInternalServerError
	}
	return false
}

// Do sends a request to BaseURL+path. A non-nil body is encoded as JSON. endpoint labels metrics.
func (c *Client) Do(ctx context.Context, method, path, endpoint string, body any) (*Response, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("httpclient: encode body: %w", err)
		}
		payload = b
	}

	start := time.Now()
	resp, err := c.breaker.Execute(func() (*Response, error) {
		return c.send(ctx, method, path, payload)
	})

	outcome := "success"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "rejected"
		err = fmt.Errorf("%w: %s: %w", ErrCircuitOpen, c.peer, err)
	case err != nil:
		outcome = "error"
	}

	c.extCounter.Add(1,
		observability.L("peer", c.peer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	c.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", c.peer),
		observability.L("endpoint", endpoint),
	)
	if err != nil {
		logctx.FromOr(ctx, c.log).Debug("external_request_failed",
			observability.F("peer", c.peer),
			observability.F("endpoint", endpoint),
			observability.F("error", err.Error()),
		)
	}
	return resp, err
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("httpclient: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	out := &Response{StatusCode: res.StatusCode, Header: res.Header, Body: data}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return out, &StatusError{Code: res.StatusCode, Body: string(data)}
	}
	return out, nil
}

// State reports the breaker state, e.g. "closed" or "open".
func (c *Client) State() string {
	return c.breaker.State().String()
}
