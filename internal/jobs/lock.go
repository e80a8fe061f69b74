package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/flexprice/mealsub/internal/config"
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/logger"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/redis/go-redis/v9"
)

// Locker hands out short lived exclusive leases keyed by name.
// A job run holds the lease for its job so replicas never run it twice at once.
type Locker interface {
	// TryLock returns ok=false without error when someone else holds key
	TryLock(ctx context.Context, key string) (release func(context.Context) error, ok bool, err error)
}

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

const lockKeyPrefix = "mealsub:lock:"

// RedisLocker implements Locker with SET NX PX
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *logger.Logger
}

func NewRedisLocker(client redis.UniversalClient, ttl time.Duration, logger *logger.Logger) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, logger: logger}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string) (func(context.Context) error, bool, error) {
	redisKey := lockKeyPrefix + key
	token := types.GenerateUUID()

	ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
	if err != nil {
		return nil, false, ierr.WithError(err).
			WithHint("Failed to acquire job lock").
			WithReportableDetails(map[string]any{"key": key}).
			Mark(ierr.ErrSystem)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
			l.logger.Warnw("failed to release job lock, it will expire on its own",
				"key", key,
				"ttl", l.ttl,
				"error", err,
			)
			return err
		}
		return nil
	}
	return release, true, nil
}

// LocalLocker is the single process Locker used when redis is disabled
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

func (l *LocalLocker) TryLock(_ context.Context, key string) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, taken := l.held[key]; taken {
		return nil, false, nil
	}
	l.held[key] = struct{}{}

	return func(context.Context) error {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
		return nil
	}, true, nil
}

var ErrRedisNotReady = errors.New("redis is not ready")

const (
	redisConnectAttempts = 5
	redisConnectInterval = 2 * time.Second
)

// ConnectRedis parses the configured url and pings until the server answers
func ConnectRedis(ctx context.Context, cfg config.RedisConfig, logger *logger.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid redis url").
			Mark(ierr.ErrValidation)
	}

	for attempt := 1; attempt <= redisConnectAttempts; attempt++ {
		client := redis.NewClient(opts)
		err := client.Ping(ctx).Err()
		if err == nil {
			logger.Infow("connected to redis", "addr", opts.Addr, "db", opts.DB)
			return client, nil
		}
		logger.Warnw("redis not ready", "attempt", attempt, "error", err)
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.CombineErrors(ErrRedisNotReady, ctx.Err())
		case <-time.After(redisConnectInterval):
		}
	}
	return nil, ErrRedisNotReady
}

// NewLocker returns a redis backed locker when redis is enabled and a
// process local one otherwise
func NewLocker(ctx context.Context, cfg *config.Configuration, logger *logger.Logger) (Locker, func() error, error) {
	if !cfg.Redis.Enabled {
		logger.Info("redis disabled, job locks are process local")
		return NewLocalLocker(), func() error { return nil }, nil
	}

	client, err := ConnectRedis(ctx, cfg.Redis, logger)
	if err != nil {
		return nil, nil, err
	}

	ttl := cfg.Redis.LockTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return NewRedisLocker(client, ttl, logger), client.Close, nil
}
