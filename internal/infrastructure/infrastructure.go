// Package infrastructure assembles the systems a plugpep command needs from
// configuration: logging, lifecycle coordination, the optional database,
// Redis and blob storage connections, and the workflow pieces built on them.
package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/JaimeStill/plugpep/internal/archive"
	"github.com/JaimeStill/plugpep/internal/config"
	"github.com/JaimeStill/plugpep/internal/metrics"
	"github.com/JaimeStill/plugpep/internal/prompts"
	"github.com/JaimeStill/plugpep/internal/statestore"
	"github.com/JaimeStill/plugpep/internal/steps"
	"github.com/JaimeStill/plugpep/pkg/alphafold"
	"github.com/JaimeStill/plugpep/pkg/database"
	"github.com/JaimeStill/plugpep/pkg/generation"
	"github.com/JaimeStill/plugpep/pkg/lifecycle"
	"github.com/JaimeStill/plugpep/pkg/storage"
	"github.com/JaimeStill/plugpep/pkg/uniprot"
	"github.com/JaimeStill/plugpep/workflow"
)

// Infrastructure holds the systems shared by every command. Database, Redis,
// Storage and Metrics are nil when their configuration disables them.
type Infrastructure struct {
	Config    *config.Config
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Redis     *statestore.Redis
	Storage   storage.System
	Metrics   *metrics.Collector

	redisClient *redis.Client
}

// NewLogger builds the slog logger described by cfg.
func NewLogger(cfg *config.LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.JSON() {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// New creates an Infrastructure from the application configuration.
// It initializes all enabled systems but does not start them; call Start
// separately.
func New(ctx context.Context, cfg *config.Config, logOut io.Writer) (*Infrastructure, error) {
	logger := NewLogger(&cfg.Logging, logOut)

	infra := &Infrastructure{
		Config:    cfg,
		Lifecycle: lifecycle.New(ctx),
		Logger:    logger,
	}

	if cfg.Database.Enabled {
		db, err := database.New(&cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("database init failed: %w", err)
		}
		infra.Database = db
	}

	if cfg.State.Redis {
		infra.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.State.RedisAddr,
			Password: cfg.State.RedisPassword,
			DB:       cfg.State.RedisDB,
		})
		infra.Redis = statestore.NewRedis(
			infra.redisClient,
			statestore.WithTTL(cfg.State.RedisTTLDuration()),
			statestore.WithPrefix(cfg.State.RedisPrefix),
			statestore.WithLogger(logger),
		)
	}

	if cfg.Storage.Enabled {
		store, err := storage.New(&cfg.Storage, logger)
		if err != nil {
			return nil, fmt.Errorf("storage init failed: %w", err)
		}
		infra.Storage = store
	}

	if cfg.Metrics.Enabled {
		infra.Metrics = metrics.New()
	}

	return infra, nil
}

// Start registers every enabled system with the lifecycle coordinator and
// waits for their startup hooks.
func (i *Infrastructure) Start() error {
	if i.Database != nil {
		if err := i.Database.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("database start failed: %w", err)
		}
	}
	if i.Storage != nil {
		if err := i.Storage.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("storage start failed: %w", err)
		}
	}
	if i.redisClient != nil {
		i.startRedis()
	}

	if err := i.Lifecycle.WaitForStartup(); err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	return nil
}

// Shutdown runs the shutdown hooks within the configured timeout.
func (i *Infrastructure) Shutdown() error {
	return i.Lifecycle.Shutdown(i.Config.ShutdownTimeoutDuration())
}

func (i *Infrastructure) startRedis() {
	logger := i.Logger.With("system", "redis")

	i.Lifecycle.OnStartup(func() {
		if err := i.redisClient.Ping(i.Lifecycle.Context()).Err(); err != nil {
			logger.Error("redis ping failed", "addr", i.Config.State.RedisAddr, "error", err)
			i.Lifecycle.Fail(fmt.Errorf("redis %s: %w", i.Config.State.RedisAddr, err))
			return
		}
		logger.Debug("redis connection established")
	})

	i.Lifecycle.OnShutdown(func() {
		<-i.Lifecycle.Context().Done()
		if err := i.redisClient.Close(); err != nil {
			logger.Error("redis close failed", "error", err)
			return
		}
		logger.Debug("redis connection closed")
	})
}

// Store returns the snapshot store: the state file under the run root,
// mirrored to Postgres and Redis when enabled.
func (i *Infrastructure) Store(root string) workflow.Store {
	var mirrors []workflow.Store
	if i.Config.State.Postgres && i.Database != nil {
		mirrors = append(mirrors, statestore.NewPostgres(i.Database.Connection(), i.Logger))
	}
	if i.Redis != nil {
		mirrors = append(mirrors, i.Redis)
	}
	return workflow.NewMultiStore(workflow.NewFileStore(root), mirrors...)
}

// Prompts returns the prompt source: stored overrides when the database is
// enabled, the built-in text otherwise.
func (i *Infrastructure) Prompts() prompts.System {
	if i.Database != nil {
		return prompts.New(i.Database.Connection(), i.Logger)
	}
	return prompts.Defaults()
}

// Runtime builds the dependency bundle for the step functions.
func (i *Infrastructure) Runtime() (*steps.Runtime, error) {
	rt := &steps.Runtime{
		Structures: alphafold.New(&i.Config.Retrieval, i.Logger),
		Resolver:   uniprot.New(&i.Config.UniProt, i.Logger),
		Prompts:    i.Prompts(),
		Logger:     i.Logger.With("system", "steps"),
		Narrative:  i.Config.Report.Narrative,
	}

	if i.Config.Agent.Enabled {
		ac, err := i.Config.Agent.Agent()
		if err != nil {
			return nil, fmt.Errorf("agent config: %w", err)
		}
		rt.Generator = generation.NewAgent(ac)
	}

	return rt, nil
}

// Orchestrator builds an orchestrator over registry using the configured
// failure policy, the snapshot store for root, and the metrics observer.
func (i *Infrastructure) Orchestrator(registry *workflow.Registry, root string) (*workflow.Orchestrator, error) {
	opts := []workflow.Option{
		workflow.WithStore(i.Store(root)),
		workflow.WithLogger(i.Logger),
		workflow.WithPolicy(i.Config.Workflow.Policy()),
	}
	if i.Metrics != nil {
		opts = append(opts, workflow.WithObserver(i.Metrics))
	}
	return workflow.New(registry, opts...)
}

// Archiver returns the run archiver, or nil when storage is disabled.
func (i *Infrastructure) Archiver() *archive.Archiver {
	if i.Storage == nil {
		return nil
	}
	return archive.New(i.Storage, i.Config.Storage.MaxFileSizeBytes(), i.Logger)
}
