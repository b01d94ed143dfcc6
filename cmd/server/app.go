package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/kaushalacts/research-ai-platform/internal/api"
	"github.com/kaushalacts/research-ai-platform/internal/auth"
	"github.com/kaushalacts/research-ai-platform/internal/config"
	"github.com/kaushalacts/research-ai-platform/internal/domain"
	"github.com/kaushalacts/research-ai-platform/internal/events"
	"github.com/kaushalacts/research-ai-platform/internal/health"
	"github.com/kaushalacts/research-ai-platform/internal/platform/agents"
	"github.com/kaushalacts/research-ai-platform/internal/platform/gemini"
	"github.com/kaushalacts/research-ai-platform/internal/platform/logger"
	"github.com/kaushalacts/research-ai-platform/internal/platform/sqlstore"
	"github.com/kaushalacts/research-ai-platform/internal/task"
)

// environment is what every subcommand needs before doing its own work.
type environment struct {
	config  *config.Config
	logger  *slog.Logger
	db      *sql.DB
	dialect sqlstore.Dialect
}

// openEnvironment loads configuration, sets up logging and connects to the
// database. Logs go to logOut so command output on stdout stays parseable.
func openEnvironment(ctx context.Context, opts *globalOptions, logOut io.Writer) (*environment, error) {
	cfg, err := config.Load(config.Options{ConfigFile: opts.configFile})
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.SetupWithWriter(cfg.Server, logOut)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	d, err := sqlstore.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sqlstore.Open(ctx, d, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	log.Info("database connection established", slog.String("driver", string(d)))

	return &environment{config: cfg, logger: log, db: db, dialect: d}, nil
}

func (e *environment) close() {
	if err := e.db.Close(); err != nil {
		e.logger.Error("error closing database connection", slog.String("error", err.Error()))
	}
}

// application holds every long-lived component of the service.
type application struct {
	config  *config.Config
	logger  *slog.Logger
	db      *sql.DB
	dialect sqlstore.Dialect

	taskStore    *sqlstore.TaskStore
	paperStore   *sqlstore.PaperStore
	serviceStore *sqlstore.ServiceStore
	eventStore   *sqlstore.EventStore

	emitter    *events.InMemoryEventEmitter
	dispatcher *task.Dispatcher
	runner     *task.TaskRunner
	monitor    *health.Monitor

	// signer is nil when no callback secret is configured.
	signer *auth.CallbackSigner
	// apiKeys is nil when caller authentication is disabled.
	apiKeys *auth.APIKeyVerifier
}

// newApplication wires the stores, backends, dispatcher, runner and health
// monitor. Nothing is started.
func newApplication(ctx context.Context, env *environment) (*application, error) {
	cfg, log := env.config, env.logger
	app := &application{
		config:  cfg,
		logger:  log,
		db:      env.db,
		dialect: env.dialect,
	}

	app.taskStore = sqlstore.NewTaskStore(env.db, env.dialect, log)
	app.paperStore = sqlstore.NewPaperStore(env.db, env.dialect, log)
	app.serviceStore = sqlstore.NewServiceStore(env.db, env.dialect, log)
	app.eventStore = sqlstore.NewEventStore(env.db, env.dialect, log)

	app.emitter = events.NewInMemoryEventEmitter(log)
	app.emitter.RegisterHandler(events.NewRecorder(app.eventStore, log))

	routes, err := buildRoutes(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	router, err := task.NewRouter(routes...)
	if err != nil {
		return nil, fmt.Errorf("failed to build backend router: %w", err)
	}

	var dispatcherOpts []task.DispatcherOption
	if cfg.Auth.CallbackSecret != "" {
		app.signer, err = auth.NewCallbackSigner(
			cfg.Auth.CallbackSecret,
			cfg.Dispatch.CallbackBaseURL,
			cfg.Auth.CallbackTokenTTL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize callback signer: %w", err)
		}
		if cfg.Dispatch.CallbackBaseURL != "" {
			dispatcherOpts = append(dispatcherOpts, task.WithCallbacks(app.signer))
		}
		log.Info("callback authentication initialized",
			slog.Bool("issues_callbacks", cfg.Dispatch.CallbackBaseURL != ""),
			slog.Duration("token_ttl", cfg.Auth.CallbackTokenTTL))
	}

	app.dispatcher, err = task.NewDispatcher(
		app.taskStore,
		app.paperStore,
		router,
		app.emitter,
		log,
		dispatcherOpts...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	app.runner = task.NewTaskRunner(app.dispatcher, app.taskStore, retryPolicy(cfg.Dispatch), task.TaskRunnerConfig{
		WorkerCount:         cfg.Dispatch.WorkerCount,
		QueueSize:           cfg.Dispatch.QueueSize,
		StuckTaskAge:        cfg.Dispatch.StuckTaskAge,
		MaintenanceInterval: cfg.Dispatch.MaintenanceInterval,
	}, log)

	app.monitor = health.NewMonitor(
		app.serviceStore,
		agents.NewProber(nil, cfg.Health.Timeout, log),
		health.Config{Interval: cfg.Health.Interval, Concurrency: cfg.Health.Concurrency},
		log,
	)

	if cfg.Auth.APIKeyHash != "" {
		app.apiKeys, err = auth.NewAPIKeyVerifier(cfg.Auth.APIKeyHash)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize API key verifier: %w", err)
		}
	}

	log.Info("application initialized", slog.Int("backends", len(routes)))
	return app, nil
}

// buildRoutes creates one agents client per active configured service, plus
// the Gemini backend when enabled. A Gemini backend limited to specific task
// types takes precedence for them; an unrestricted one is the fallback.
func buildRoutes(ctx context.Context, cfg *config.Config, log *slog.Logger) ([]task.Route, error) {
	timeouts := agents.Timeouts{
		Submit:   cfg.Dispatch.SubmitTimeout,
		Extended: cfg.Dispatch.ExtendedTimeout,
		Cancel:   cfg.Dispatch.CancelTimeout,
		Health:   cfg.Health.Timeout,
	}

	var routes []task.Route
	for _, svc := range cfg.Services {
		if !svc.IsActive() {
			log.Info("skipping inactive service", slog.String("service", svc.Name))
			continue
		}
		client, err := agents.NewClient(svc.Name, svc.BaseURL, svc.APIKey,
			agents.WithTimeouts(timeouts),
			agents.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("failed to create client for service %q: %w", svc.Name, err)
		}
		routes = append(routes, task.Route{Backend: client, TaskTypes: taskTypes(svc.TaskTypes)})
	}

	if !cfg.LLM.Enabled {
		return routes, nil
	}

	backend, err := gemini.NewBackend(ctx, cfg.LLM, timeouts, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gemini backend: %w", err)
	}
	route := task.Route{Backend: backend, TaskTypes: taskTypes(cfg.LLM.TaskTypes)}
	log.Info("gemini backend initialized", slog.String("model", cfg.LLM.ModelName))
	if len(route.TaskTypes) > 0 {
		return append([]task.Route{route}, routes...), nil
	}
	return append(routes, route), nil
}

func taskTypes(names []string) []domain.TaskType {
	if len(names) == 0 {
		return nil
	}
	out := make([]domain.TaskType, 0, len(names))
	for _, n := range names {
		out = append(out, domain.TaskType(n))
	}
	return out
}

func retryPolicy(cfg config.DispatchConfig) task.RetryPolicy {
	policy := task.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.MaxAttempts
	policy.Backoff = cfg.RetryBackoff
	return policy
}

// registrations converts the configured services into registrations.
func registrations(services []config.ServiceConfig) []*domain.ServiceRegistration {
	regs := make([]*domain.ServiceRegistration, 0, len(services))
	for _, svc := range services {
		regs = append(regs, &domain.ServiceRegistration{
			Name:    svc.Name,
			BaseURL: svc.BaseURL,
			Active:  svc.IsActive(),
		})
	}
	return regs
}

// seedServices upserts the configured registrations.
func (app *application) seedServices(ctx context.Context) error {
	regs := registrations(app.config.Services)
	if len(regs) == 0 {
		return nil
	}
	if err := sqlstore.SeedServices(ctx, app.db, app.dialect, regs, app.logger); err != nil {
		return err
	}
	app.logger.Info("service registrations seeded", slog.Int("count", len(regs)))
	return nil
}

// handler builds the HTTP API. The callback route only exists when a
// callback secret is configured.
func (app *application) handler() http.Handler {
	cfg := api.RouterConfig{
		Tasks:    api.NewTaskHandler(app.dispatcher, app.runner, app.taskStore, app.eventStore, app.logger),
		Services: api.NewServiceHandler(app.serviceStore),
		Logger:   app.logger,
	}
	// Assigned only when set so the interfaces stay nil otherwise.
	if app.apiKeys != nil {
		cfg.APIKeys = app.apiKeys
	}
	if app.signer != nil {
		cfg.Callbacks = api.NewCallbackHandler(app.dispatcher, app.logger)
		cfg.CallbackTokens = app.signer
	}
	return api.NewRouter(cfg)
}

// cleanup stops the runner. The database is closed by the environment.
func (app *application) cleanup() {
	if app.runner != nil {
		app.runner.Stop()
	}
	app.logger.Info("application shutdown completed")
}
