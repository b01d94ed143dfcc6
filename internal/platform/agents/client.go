package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kaushalacts/research-ai-platform/internal/domain"
	"github.com/kaushalacts/research-ai-platform/internal/redact"
)

// Remote endpoints, relative to a service's base URL.
const (
	PathAnalyzePaper   = "/agents/analyze-paper"
	PathGenerateReview = "/agents/generate-review"
	PathAnalyzeTrends  = "/agents/analyze-trends"
	PathAnalyzeGaps    = "/agents/analyze-gaps"
	PathCancelTask     = "/agents/cancel-task"
	PathHealth         = "/health"
)

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 8 << 20

// Timeouts holds the per-request deadline for each call class.
type Timeouts struct {
	// Submit applies to interactive work (paper analysis).
	Submit time.Duration
	// Extended applies to project-wide work.
	Extended time.Duration
	Cancel   time.Duration
	Health   time.Duration
}

// DefaultTimeouts returns the standard timeout classes.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Submit:   30 * time.Second,
		Extended: 300 * time.Second,
		Cancel:   30 * time.Second,
		Health:   5 * time.Second,
	}
}

// Client talks to one remote analysis service.
type Client struct {
	name     string
	baseURL  string
	apiKey   string
	http     *http.Client
	timeouts Timeouts
	logger   *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeouts replaces the timeout classes. Zero fields keep their defaults.
func WithTimeouts(t Timeouts) Option {
	return func(c *Client) {
		if t.Submit > 0 {
			c.timeouts.Submit = t.Submit
		}
		if t.Extended > 0 {
			c.timeouts.Extended = t.Extended
		}
		if t.Cancel > 0 {
			c.timeouts.Cancel = t.Cancel
		}
		if t.Health > 0 {
			c.timeouts.Health = t.Health
		}
	}
}

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the service at baseURL. Deadlines come from
// per-request contexts, so the HTTP client itself has no timeout.
func NewClient(name, baseURL, apiKey string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL for service %q: %q", name, baseURL)
	}

	c := &Client{
		name:     name,
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		http:     &http.Client{},
		timeouts: DefaultTimeouts(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "agents_client"), slog.String("service", name))
	return c, nil
}

// Name returns the service name the client was registered under.
func (c *Client) Name() string {
	return c.name
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SubmitPath returns the endpoint for a task type.
func SubmitPath(kind domain.TaskType) (string, error) {
	switch kind {
	case domain.TaskTypePaperAnalysis:
		return PathAnalyzePaper, nil
	case domain.TaskTypeLiteratureReview:
		return PathGenerateReview, nil
	case domain.TaskTypeTrendAnalysis:
		return PathAnalyzeTrends, nil
	case domain.TaskTypeGapAnalysis:
		return PathAnalyzeGaps, nil
	default:
		return "", fmt.Errorf("unsupported task type %q", kind)
	}
}

// Submit sends a unit of work and decodes the service's answer. Interactive
// work uses the submit timeout and project-wide work the extended one.
func (c *Client) Submit(ctx context.Context, kind domain.TaskType, payload any) (*domain.RemoteResponse, error) {
	path, err := SubmitPath(kind)
	if err != nil {
		return nil, domain.NewServiceRejected(c.name, "submit", 0, err.Error(), err)
	}

	timeout := c.timeouts.Submit
	if kind.IsAggregate() {
		timeout = c.timeouts.Extended
	}

	status, body, err := c.post(ctx, "submit", path, payload, timeout)
	if err != nil {
		return nil, err
	}
	if err := classifyStatus(c.name, "submit", status, body); err != nil {
		return nil, err
	}

	resp, err := ParseResult(body)
	if err != nil {
		return nil, domain.NewServiceRejected(c.name, "submit", status,
			"malformed response: "+redact.Body(body, 512), err)
	}
	return resp, nil
}

// Cancel asks the service to stop a remote task. Every failure is reported
// as ErrServiceUnavailable; callers treat cancellation as best effort.
func (c *Client) Cancel(ctx context.Context, remoteTaskID string) error {
	payload := map[string]string{"task_id": remoteTaskID}
	status, body, err := c.post(ctx, "cancel", PathCancelTask, payload, c.timeouts.Cancel)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return domain.NewServiceUnavailable(c.name, "cancel", status, redact.Body(body, 512), nil)
	}
	return nil
}

// HealthCheck probes the service's health endpoint.
func (c *Client) HealthCheck(ctx context.Context) bool {
	return probe(ctx, c.http, c.baseURL, c.apiKey, c.timeouts.Health, c.logger)
}

func (c *Client) post(
	ctx context.Context,
	op, path string,
	payload any,
	timeout time.Duration,
) (int, []byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, domain.NewServiceRejected(c.name, op, 0, "payload cannot be encoded", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return 0, nil, domain.NewServiceRejected(c.name, op, 0, "request cannot be built", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("remote call failed",
			slog.String("operation", op),
			slog.String("path", path),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", redact.Error(err)))
		return 0, nil, transportError(c.name, op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, transportError(c.name, op, err)
	}

	c.logger.Debug("remote call finished",
		slog.String("operation", op),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)))
	return resp.StatusCode, body, nil
}

// transportError classifies a failure that produced no HTTP response.
// Timeouts keep context.DeadlineExceeded in the chain.
func transportError(service, op string, err error) error {
	detail := "network error"
	if errors.Is(err, context.DeadlineExceeded) {
		detail = "request timed out"
	} else if errors.Is(err, context.Canceled) {
		detail = "request canceled"
	}
	return domain.NewServiceUnavailable(service, op, 0, detail, err)
}

// classifyStatus maps a non-2xx status to the error taxonomy: request
// timeouts, throttling and server errors are transient; any other client
// error is a rejection carrying the body.
func classifyStatus(service, op string, status int, body []byte) error {
	switch {
	case status >= 200 && status <= 299:
		return nil
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return domain.NewServiceUnavailable(service, op, status, redact.Body(body, 0), nil)
	case status >= 400 && status <= 499:
		return domain.NewServiceRejected(service, op, status, redact.Body(body, 0), nil)
	default:
		return domain.NewServiceUnavailable(service, op, status, redact.Body(body, 0), nil)
	}
}
