// Package collaborator holds the shared HTTP plumbing for the customer and
// account services this gateway orchestrates. Each collaborator gets a typed
// client in a subpackage; this base owns transport concerns: timeouts, error
// translation, and circuit breaking.
package collaborator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	dErrors "onboarding/pkg/domain-errors"
	"onboarding/pkg/platform/circuit"
	"onboarding/pkg/platform/sentinel"
)

// DefaultTimeout bounds a single collaborator call when the owner does not
// configure one.
const DefaultTimeout = 5 * time.Second

// Client is the shared base for collaborator HTTP clients.
type Client struct {
	name    string
	baseURL string
	http    *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the logger used for breaker transitions and call failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// New constructs a collaborator client. name appears in error messages and
// logs ("customer-service", "account-service").
func New(name, baseURL string, opts ...Option) *Client {
	c := &Client{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		breaker: circuit.New(name, circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(2)),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the collaborator's name.
func (c *Client) Name() string { return c.name }

// Available reports whether the circuit currently allows calls.
func (c *Client) Available() bool { return !c.breaker.IsOpen() }

// Do performs one JSON round trip. in may be nil for bodyless requests; out
// may be nil when the response body is irrelevant.
//
// Error translation:
//   - open circuit, transport failure, timeout -> CodeUnavailable
//   - 404                                      -> sentinel.ErrNotFound
//   - 409                                      -> CodeConflict
//   - other 4xx                                -> CodeBadRequest
//   - 5xx                                      -> CodeDependencyFailed
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	if c.breaker.IsOpen() {
		return dErrors.Newf(dErrors.CodeUnavailable, "%s circuit open", c.name)
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("encode %s request", c.name))
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("build %s request", c.name))
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.recordFailure(method, path, err)
		return c.translateTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		c.recordFailure(method, path, fmt.Errorf("status %d", resp.StatusCode))
		return dErrors.Newf(dErrors.CodeDependencyFailed,
			"%s returned status %d for %s %s", c.name, resp.StatusCode, method, path)
	}
	c.recordSuccess()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return sentinel.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return dErrors.Newf(dErrors.CodeConflict, "%s reported a conflict for %s %s", c.name, method, path)
	case resp.StatusCode >= 400:
		return dErrors.Newf(dErrors.CodeBadRequest,
			"%s rejected %s %s with status %d", c.name, method, path, resp.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return dErrors.Wrap(err, dErrors.CodeDependencyFailed,
			fmt.Sprintf("decode %s response", c.name))
	}
	return nil
}

func (c *Client) translateTransport(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return dErrors.Wrap(err, dErrors.CodeUnavailable, fmt.Sprintf("%s timed out", c.name))
	case errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, fmt.Sprintf("%s call canceled", c.name))
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, fmt.Sprintf("%s unreachable", c.name))
	}
}

func (c *Client) recordFailure(method, path string, err error) {
	_, change := c.breaker.RecordFailure()
	if change.Opened {
		c.logger.Error("collaborator circuit opened",
			"collaborator", c.name, "method", method, "path", path, "error", err)
	}
}

func (c *Client) recordSuccess() {
	_, change := c.breaker.RecordSuccess()
	if change.Closed {
		c.logger.Info("collaborator circuit closed", "collaborator", c.name)
	}
}
