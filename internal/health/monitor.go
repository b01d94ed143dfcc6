// Package health runs the periodic sweep that probes every active remote
// service and records the outcome on its registration.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kaushalacts/research-ai-platform/internal/domain"
	"github.com/kaushalacts/research-ai-platform/internal/store"
	"golang.org/x/sync/errgroup"
)

// Prober reports whether the service at baseURL is healthy. Implementations
// must not block past their own timeout.
type Prober interface {
	HealthCheck(ctx context.Context, baseURL string) bool
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, baseURL string) bool

// HealthCheck implements Prober.
func (f ProberFunc) HealthCheck(ctx context.Context, baseURL string) bool {
	return f(ctx, baseURL)
}

// Config controls the sweep cadence and fan-out.
type Config struct {
	Interval    time.Duration
	Concurrency int
}

// Monitor sweeps active service registrations on a fixed interval.
type Monitor struct {
	services store.ServiceStore
	prober   Prober
	config   Config
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
}

// NewMonitor creates a Monitor. Concurrency defaults to 4 and Interval to
// five minutes.
func NewMonitor(services store.ServiceStore, prober Prober, config Config, logger *slog.Logger) *Monitor {
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.Interval <= 0 {
		config.Interval = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		services: services,
		prober:   prober,
		config:   config,
		logger:   logger.With(slog.String("component", "health_monitor")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps immediately and then on every tick until ctx is cancelled.
// Calling Run while another Run is active returns at once.
func (m *Monitor) Run(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		m.logger.Warn("health monitor already running")
		return
	}
	m.running = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	m.logger.Info("health monitor started", slog.Duration("interval", m.config.Interval))

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		if _, err := m.Sweep(ctx); err != nil && ctx.Err() == nil {
			m.logger.Error("health sweep failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			m.logger.Info("health monitor stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep probes every active registration once and records each outcome.
// A failing probe or store write for one service never stops the others;
// the only error returned is a failure to list the registrations. Results
// keep the order of the registrations.
func (m *Monitor) Sweep(ctx context.Context) ([]domain.HealthResult, error) {
	regs, err := m.services.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active services: %w", err)
	}

	results := make([]domain.HealthResult, len(regs))

	var g errgroup.Group
	g.SetLimit(m.config.Concurrency)
	for i, reg := range regs {
		g.Go(func() error {
			results[i] = m.check(ctx, reg)
			return nil
		})
	}
	_ = g.Wait()

	healthy := 0
	for _, r := range results {
		if r.Healthy {
			healthy++
		}
	}
	m.logger.Info("health sweep finished",
		slog.Int("services", len(results)),
		slog.Int("healthy", healthy))
	return results, nil
}

// check probes one registration and records the outcome. A panicking
// prober counts as unhealthy.
func (m *Monitor) check(ctx context.Context, reg *domain.ServiceRegistration) (result domain.HealthResult) {
	log := m.logger.With(slog.String("service", reg.Name))
	result = domain.HealthResult{Name: reg.Name}

	defer func() {
		if r := recover(); r != nil {
			log.Error("health probe panicked", slog.Any("panic", r))
			result.Healthy = false
		}
		result.CheckedAt = m.now()
		if err := m.services.RecordHealth(ctx, reg.Name, result.Healthy, result.CheckedAt); err != nil {
			log.Error("failed to record service health",
				slog.Bool("healthy", result.Healthy),
				slog.String("error", err.Error()))
		}
	}()

	result.Healthy = m.prober.HealthCheck(ctx, reg.BaseURL)
	if !result.Healthy {
		log.Warn("service unhealthy", slog.String("base_url", reg.BaseURL))
	}
	return result
}
