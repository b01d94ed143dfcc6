package agents

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kaushalacts/research-ai-platform/internal/redact"
)

// Prober checks health endpoints of arbitrary base URLs.
type Prober struct {
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewProber creates a Prober. A nil client uses a fresh http.Client and a
// non-positive timeout uses the default health timeout.
func NewProber(hc *http.Client, timeout time.Duration, logger *slog.Logger) *Prober {
	if hc == nil {
		hc = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeouts().Health
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{http: hc, timeout: timeout, logger: logger.With(slog.String("component", "health_prober"))}
}

// HealthCheck reports whether GET {baseURL}/health answers 200 within the
// timeout. It never returns an error: any failure is reported as false.
func (p *Prober) HealthCheck(ctx context.Context, baseURL string) bool {
	return probe(ctx, p.http, baseURL, "", p.timeout, p.logger)
}

func probe(
	ctx context.Context,
	hc *http.Client,
	baseURL, apiKey string,
	timeout time.Duration,
	logger *slog.Logger,
) bool {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, strings.TrimRight(baseURL, "/")+PathHealth, nil)
	if err != nil {
		logger.Debug("health request cannot be built", slog.String("base_url", baseURL))
		return false
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := hc.Do(req)
	if err != nil {
		logger.Debug("health probe failed",
			slog.String("base_url", baseURL),
			slog.String("error", redact.Error(err)))
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}
