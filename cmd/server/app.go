package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/inkwell/internal/config"
	"github.com/phrazzld/inkwell/internal/domain"
	"github.com/phrazzld/inkwell/internal/events"
	"github.com/phrazzld/inkwell/internal/gateway"
	"github.com/phrazzld/inkwell/internal/generation"
	"github.com/phrazzld/inkwell/internal/platform/gemini"
	"github.com/phrazzld/inkwell/internal/platform/openai"
	"github.com/phrazzld/inkwell/internal/platform/postgres"
	redisclient "github.com/phrazzld/inkwell/internal/platform/redis"
	"github.com/phrazzld/inkwell/internal/queue"
	"github.com/phrazzld/inkwell/internal/service"
	"github.com/phrazzld/inkwell/internal/service/auth"
	"github.com/phrazzld/inkwell/internal/store"
	"github.com/phrazzld/inkwell/internal/task"
	goredis "github.com/redis/go-redis/v9"
)

// dependencies are the external collaborators the application is assembled
// from. Production code builds them from config; tests substitute fakes.
type dependencies struct {
	userStore    store.UserStore
	contentStore store.ContentJobStore
	providers    map[domain.Provider]generation.Generator
	queue        queue.Queue
	bus          events.Bus
	verifier     auth.PasswordVerifier
}

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB
	redis  *goredis.Client

	userStore    store.UserStore
	contentStore store.ContentJobStore
	queue        queue.Queue
	bus          events.Bus

	jwtService     auth.JWTService
	router         *generation.Router
	userService    service.UserService
	contentService service.ContentService

	runner *task.Runner
	hub    *gateway.Hub
}

// newApplication builds the production dependency graph: Postgres stores,
// the configured queue and event backends and every provider with an API key.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{config: cfg, logger: logger, db: db}

	if cfg.UsesRedis() {
		client, err := redisclient.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.redis = client
	}

	providers, err := setupProviders(ctx, cfg.LLM, logger)
	if err != nil {
		app.cleanup()
		return nil, err
	}

	deps := dependencies{
		userStore:    postgres.NewPostgresUserStore(db, cfg.Auth.BcryptCost, logger),
		contentStore: postgres.NewPostgresContentStore(db, logger),
		providers:    providers,
		queue:        app.setupQueue(),
		bus:          app.setupBus(),
		verifier:     auth.NewBcryptVerifier(),
	}
	if err := app.assemble(deps); err != nil {
		app.cleanup()
		return nil, err
	}

	logger.Info("application initialized successfully")
	return app, nil
}

// setupProviders creates a generator for every provider that has an API key.
func setupProviders(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (map[domain.Provider]generation.Generator, error) {
	providers := make(map[domain.Provider]generation.Generator)

	if cfg.GeminiAPIKey != "" {
		g, err := gemini.NewGenerator(ctx, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize gemini generator: %w", err)
		}
		providers[domain.ProviderGemini] = g
	}
	if cfg.OpenAIAPIKey != "" {
		g, err := openai.NewGenerator(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai generator: %w", err)
		}
		providers[domain.ProviderOpenAI] = g
	}

	names := make([]string, 0, len(providers))
	for p := range providers {
		names = append(names, string(p))
	}
	logger.Info("generation providers initialized", slog.Any("providers", names))
	return providers, nil
}

func (app *application) queueOptions() queue.Options {
	q := app.config.Queue
	return queue.Options{
		MaxAttempts: q.MaxAttempts,
		LeaseTTL:    q.LeaseTTL(),
		Backoff:     queue.NewExponential(q.BackoffBase(), 0),
	}
}

func (app *application) setupQueue() queue.Queue {
	if app.config.Queue.Backend == "redis" {
		return queue.NewRedisQueue(app.redis, app.config.Queue.Name, app.queueOptions(), app.logger)
	}
	app.logger.Warn("using in-memory job queue; queued jobs do not survive a restart")
	return queue.NewMemoryQueue(app.queueOptions())
}

func (app *application) setupBus() events.Bus {
	if app.config.Events.Backend == "redis" {
		return events.NewRedisBus(app.redis, events.DefaultBufferSize, app.logger)
	}
	return events.NewMemoryBus(events.DefaultBufferSize, app.logger)
}

// assemble wires services, the worker pool and the websocket hub on top of
// deps.
func (app *application) assemble(deps dependencies) error {
	cfg := app.config
	app.userStore = deps.userStore
	app.contentStore = deps.contentStore
	app.queue = deps.queue
	app.bus = deps.bus

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	app.router, err = generation.NewRouter(
		domain.Provider(cfg.LLM.DefaultProvider),
		deps.providers,
		map[domain.Provider]string{
			domain.ProviderGemini: cfg.LLM.GeminiModel,
			domain.ProviderOpenAI: cfg.LLM.OpenAIModel,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to create generation router: %w", err)
	}

	app.userService, err = service.NewUserService(deps.userStore, deps.verifier, app.db, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create user service: %w", err)
	}

	app.contentService, err = service.NewContentService(
		deps.contentStore, deps.queue, app.router, cfg.Queue.Delay(), app.logger)
	if err != nil {
		return fmt.Errorf("failed to create content service: %w", err)
	}

	genTask, err := task.NewGenerationTask(
		deps.contentStore,
		deps.queue,
		generation.NewLimited(app.router, cfg.LLM.MaxConcurrentCalls),
		deps.bus,
		task.GenerationTaskConfig{
			Topic:          cfg.Events.Topic,
			Heartbeat:      cfg.Queue.LeaseTTL() / 3,
			RequestTimeout: cfg.LLM.RequestTimeout(),
		},
		app.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create generation task: %w", err)
	}

	app.runner = task.NewRunner(deps.queue, deps.contentStore, genTask, task.RunnerConfig{
		WorkerCount:   cfg.Queue.WorkerCount,
		PollInterval:  cfg.Queue.PollInterval(),
		StuckAfter:    cfg.Queue.StuckAfter(),
		SweepInterval: cfg.Queue.SweepInterval(),
	}, app.logger)

	app.hub, err = gateway.NewHub(app.jwtService, deps.bus, gateway.Options{
		Topic:          cfg.Events.Topic,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create websocket hub: %w", err)
	}
	return nil
}

// start launches the background components: the websocket relay and, when
// enabled, the worker pool.
func (app *application) start(ctx context.Context) error {
	if err := app.hub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start websocket hub: %w", err)
	}
	if !app.config.Queue.WorkerEnabled {
		app.logger.Info("worker pool disabled; this instance only accepts submissions")
		return nil
	}
	if err := app.runner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start task runner: %w", err)
	}
	return nil
}

// Run starts the application server, handling lifecycle and cleanup.
func (app *application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := app.start(ctx); err != nil {
		app.cleanup()
		return err
	}

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.runner != nil {
		app.runner.Stop()
	}

	if closer, ok := app.bus.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil && !errors.Is(err, events.ErrClosed) {
			app.logger.Error("error closing event bus", slog.String("error", err.Error()))
		}
	}

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", slog.String("error", err.Error()))
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", slog.String("error", err.Error()))
		}
	}

	app.logger.Info("application shutdown completed")
}
