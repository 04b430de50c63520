// Package backend implements the HTTP client for the Wellnest backend API.
// It is the only place that talks HTTP on the client side; everything above
// it sees the AuthAPI/SessionAPI/ResourceAPI interfaces and the shared error
// taxonomy.
//
// Transport failures are classified into shared.ErrTimeout and
// shared.ErrNetwork so the session manager can tell a slow server from an
// unreachable one, and HTTP status codes map onto the shared sentinel errors.
// Resource calls additionally run through a circuit breaker so a struggling
// backend is not hammered by every store refresh at once.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"log/slog"

	"github.com/wellnest-app/wellnest-dashboard/internal/domain/shared"
	"github.com/wellnest-app/wellnest-dashboard/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds backend client configuration.
type Config struct {
	// BaseURL is the backend root, e.g. "https://api.wellnest.app".
	BaseURL string

	// Timeout bounds every request end to end.
	Timeout time.Duration

	// UserAgent is sent on every request.
	UserAgent string

	// BreakerThreshold is the consecutive-failure count that opens the
	// resource circuit.
	BreakerThreshold int

	// BreakerCooldown is how long the circuit stays open before probing.
	BreakerCooldown time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:          "http://localhost:8080",
		Timeout:          15 * time.Second,
		UserAgent:        "wellnest-dashboard/1.0",
		BreakerThreshold: 5,
		BreakerCooldown:  30 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the backend HTTP client. Session identity travels in cookies,
// like the browser the backend was built for, so the client carries a cookie
// jar.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
	agent   string
}

// NewClient creates a backend client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultConfig().UserAgent
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("backend: invalid base URL %q: %w", cfg.BaseURL, err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("backend: cookie jar: %w", err)
	}

	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:             "backend-resources",
		FailureThreshold: cfg.BreakerThreshold,
		Timeout:          cfg.BreakerCooldown,
		IsFailure:        shared.IsTransient,
	})

	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
		},
		breaker: breaker,
		logger:  logger.With("component", "backend"),
		agent:   cfg.UserAgent,
	}, nil
}

// do executes one request and decodes the JSON response into out (skipped
// when out is nil). The returned error always carries a shared sentinel.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ref, err := url.Parse(path)
	if err != nil {
		return shared.WrapError("backend", method, shared.ErrInvalidInput, "bad path", err)
	}
	target := c.baseURL.ResolveReference(ref)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return shared.WrapError("backend", method, shared.ErrInvalidInput, "encode request", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return shared.WrapError("backend", method, shared.ErrInvalidInput, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.agent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.classifyTransport(method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.classifyStatus(method, path, resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return shared.WrapError("backend", method, shared.ErrInvalidFormat, "decode response", err)
	}
	return nil
}

// doResource is do behind the resource circuit breaker. An open circuit
// reads as a network failure so the stores fall back to cached values.
func (c *Client) doResource(ctx context.Context, method, path string, body, out any) error {
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.do(ctx, method, path, body, out)
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return shared.WrapError("backend", method, shared.ErrNetwork, "backend unavailable", err)
	}
	return err
}

func (c *Client) classifyTransport(method, path string, err error) error {
	c.logger.Warn("request failed", "method", method, "path", path, "error", err)

	if errors.Is(err, context.DeadlineExceeded) {
		return shared.WrapError("backend", method, shared.ErrTimeout, path, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return shared.WrapError("backend", method, shared.ErrTimeout, path, err)
	}
	if errors.Is(err, context.Canceled) {
		return shared.WrapError("backend", method, shared.ErrNetwork, path, err)
	}
	return shared.WrapError("backend", method, shared.ErrNetwork, path, err)
}

func (c *Client) classifyStatus(method, path string, resp *http.Response) error {
	// Error bodies are {"error": "..."} when the server has something to say.
	var payload struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(data, &payload)

	msg := strings.TrimSpace(payload.Error)
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	var kind error
	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		kind = shared.ErrAuthentication
	case resp.StatusCode == http.StatusNotFound:
		kind = shared.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		kind = shared.ErrConflict
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnprocessableEntity:
		kind = shared.ErrValidation
	case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode == http.StatusGatewayTimeout:
		kind = shared.ErrTimeout
	default:
		// 5xx and anything unexpected counts as a transient network problem.
		kind = shared.ErrNetwork
	}

	c.logger.Warn("request rejected",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
	)
	return shared.NewDomainError("backend", method, kind, msg)
}

// BreakerState exposes the resource circuit state for diagnostics.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}
