// Package api is the HTTP client for the scene generation backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"golang.org/x/time/rate"

	"github.com/therealutkarshpriyadarshi/scenestudio/internal/logging"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/metrics"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/tracing"
)

// RequestIDHeader carries a per-request correlation id
const RequestIDHeader = "X-Request-ID"

// TokenSource supplies the bearer token attached to each request.
// An empty token means the request is sent unauthenticated.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to TokenSource
type TokenSourceFunc func(ctx context.Context) (string, error)

// Token implements TokenSource
func (f TokenSourceFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// Config configures a Client
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64
	Burst     int
	UserAgent string
}

// Client talks to the backend REST API
type Client struct {
	baseURL   string
	http      *http.Client
	limiter   *rate.Limiter
	tokens    TokenSource
	userAgent string
	logger    *logging.Logger
}

// NewClient creates a backend client. tokens may be nil.
func NewClient(cfg Config, tokens TokenSource, logger *logging.Logger) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", cfg.BaseURL)
	}

	if logger == nil {
		logger = logging.NewNopLogger()
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "scenestudio/1.0"
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		http:      &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(limit, burst),
		tokens:    tokens,
		userAgent: userAgent,
		logger:    logger.WithComponent("api"),
	}, nil
}

// BaseURL returns the backend base URL without a trailing slash
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request describes one backend call. route is the path template used for
// metrics and span names, path the concrete path.
type request struct {
	method      string
	route       string
	path        string
	body        io.Reader
	contentType string
}

func jsonRequest(method, route, path string, in interface{}) (request, error) {
	req := request{method: method, route: route, path: path}
	if in == nil {
		return req, nil
	}

	data, err := json.Marshal(in)
	if err != nil {
		return req, fmt.Errorf("failed to marshal request: %w", err)
	}
	req.body = bytes.NewReader(data)
	req.contentType = "application/json"
	return req, nil
}

// do sends r and decodes a 2xx JSON body into out when out is non-nil
func (c *Client) do(ctx context.Context, r request, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	span, ctx := tracing.StartClientSpan(ctx, r.method, r.route)

	requestID := uuid.New().String()
	start := time.Now()

	statusCode, err := c.send(ctx, span, r, requestID, out)

	duration := time.Since(start)
	tracing.FinishClientSpan(span, statusCode, err)
	metrics.RecordAPIRequest(r.method, r.route, statusLabel(statusCode), duration.Seconds())
	c.logger.LogAPIRequest(r.method, r.path, requestID, statusCode, duration, err)

	return err
}

func (c *Client) send(ctx context.Context, span opentracing.Span, r request, requestID string, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, r.body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(RequestIDHeader, requestID)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	// The token is read per request so a login or logout applies to the
	// very next call.
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to read token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	tracing.InjectHeaders(span, opentracing.HTTPHeadersCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, newError(r.method, r.path, resp.StatusCode, body)
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return resp.StatusCode, nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func statusLabel(code int) string {
	if code == 0 {
		return "error"
	}
	return fmt.Sprintf("%d", code)
}

// IsCanceled reports whether err came from a cancelled or expired context
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
