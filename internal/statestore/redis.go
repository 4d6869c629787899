package statestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/JaimeStill/plugpep/workflow"
)

const (
	defaultTTL    = 7 * 24 * time.Hour
	defaultPrefix = "plugpep"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis mirrors snapshots as JSON string values with an expiry and guards
// resumed runs with a per-run lock.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

// RedisOption configures a Redis mirror.
type RedisOption func(*Redis)

// WithTTL sets the snapshot expiry. Zero keeps snapshots indefinitely.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// WithLogger sets the mirror logger.
func WithLogger(logger *slog.Logger) RedisOption {
	return func(r *Redis) {
		r.logger = logger
	}
}

// NewRedis creates a Redis snapshot mirror.
func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		ttl:    defaultTTL,
		prefix: defaultPrefix,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("system", "statestore", "backend", "redis")
	return r
}

// Save stores the snapshot for s and refreshes its expiry.
func (r *Redis) Save(ctx context.Context, s *workflow.State) error {
	if s == nil {
		return workflow.ErrNilState
	}
	if s.WorkflowID == "" {
		return fmt.Errorf("%w: workflow_id required", workflow.ErrInvalidState)
	}

	data, err := workflow.Encode(s)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, r.stateKey(s.WorkflowID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	r.logger.DebugContext(ctx, "state mirrored", "workflow_id", s.WorkflowID, "status", s.Orchestrator.WorkflowStatus)
	return nil
}

// Load returns the snapshot for id.
func (r *Redis) Load(ctx context.Context, id string) (*workflow.State, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id required", workflow.ErrInvalidState)
	}

	data, err := r.client.Get(ctx, r.stateKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", workflow.ErrStateNotFound, id)
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return workflow.Decode(data)
}

// Lock acquires the run lock for id, held until release is called or ttl
// elapses. It returns ErrLocked when another holder owns the lock.
func (r *Redis) Lock(ctx context.Context, id string, ttl time.Duration) (release func(context.Context) error, err error) {
	key := r.lockKey(id)
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx failed: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, id)
	}

	r.logger.DebugContext(ctx, "run lock acquired", "workflow_id", id)

	return func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, r.client, []string{key}, token).Int()
		if err != nil {
			return fmt.Errorf("redis release failed: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrNotOwner, id)
		}
		r.logger.DebugContext(ctx, "run lock released", "workflow_id", id)
		return nil
	}, nil
}

func (r *Redis) stateKey(id string) string {
	return r.prefix + ":state:" + id
}

func (r *Redis) lockKey(id string) string {
	return r.prefix + ":lock:" + id
}
