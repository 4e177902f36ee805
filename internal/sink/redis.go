// ABOUTME: Redis stream update sink built on go-redis XADD.
// ABOUTME: Implements session.UpdateHandler; write failures are logged, not fatal.

package sink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/2389/tdsession/internal/tdapi"
)

// DefaultWriteTimeout bounds one XADD.
const DefaultWriteTimeout = 2 * time.Second

// RedisConfig configures a RedisStream.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	// MaxLen trims the stream to about this many entries; 0 keeps everything.
	MaxLen int64
	// Types limits the sink to these update types; empty means all.
	Types []string
	// Timeout bounds each write; zero means DefaultWriteTimeout.
	Timeout time.Duration
}

// streamClient is the subset of *redis.Client the sink uses.
type streamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisStream writes updates to a Redis stream.
type RedisStream struct {
	client  streamClient
	stream  string
	maxLen  int64
	types   map[string]bool
	timeout time.Duration
	logger  *slog.Logger
}

// NewRedisStream connects lazily to the configured Redis server.
func NewRedisStream(cfg RedisConfig, logger *slog.Logger) (*RedisStream, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis sink: addr is required")
	}
	if cfg.Stream == "" {
		return nil, fmt.Errorf("redis sink: stream is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newRedisStream(client, cfg, logger), nil
}

func newRedisStream(client streamClient, cfg RedisConfig, logger *slog.Logger) *RedisStream {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	var types map[string]bool
	if len(cfg.Types) > 0 {
		types = make(map[string]bool, len(cfg.Types))
		for _, t := range cfg.Types {
			types[t] = true
		}
	}
	return &RedisStream{
		client:  client,
		stream:  cfg.Stream,
		maxLen:  cfg.MaxLen,
		types:   types,
		timeout: timeout,
		logger:  logger.With("component", "sink", "stream", cfg.Stream),
	}
}

// Ping checks that the server is reachable.
func (s *RedisStream) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// HandleUpdate implements session.UpdateHandler.
func (s *RedisStream) HandleUpdate(ctx context.Context, update tdapi.Object) {
	if _, err := s.Write(ctx, update); err != nil {
		s.logger.Warn("writing update to redis", "type", update.Type(), "error", err)
	}
}

// Write appends update to the stream and returns the entry ID. Filtered
// updates return an empty ID and no error.
func (s *RedisStream) Write(ctx context.Context, update tdapi.Object) (string, error) {
	if s.types != nil && !s.types[update.Type()] {
		return "", nil
	}

	data, err := tdapi.Marshal(update, "")
	if err != nil {
		return "", fmt.Errorf("encoding %s: %w", update.Type(), err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"type": update.Type(),
			"data": data,
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	return s.client.XAdd(ctx, args).Result()
}

// Close releases the Redis connection pool.
func (s *RedisStream) Close() error {
	return s.client.Close()
}
