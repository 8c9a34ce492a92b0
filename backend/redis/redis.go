package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cschleiden/go-workflow-tasks/backend"
	"github.com/cschleiden/go-workflow-tasks/internal/log"
	"github.com/cschleiden/go-workflow-tasks/internal/metrickeys"
	"github.com/cschleiden/go-workflow-tasks/metrics"
	"github.com/cschleiden/go-workflow-tasks/roles"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

var (
	_ backend.Backend = (*redisBackend)(nil)
	_ roles.Store     = (*redisBackend)(nil)
)

func NewRedisBackend(client redis.UniversalClient, opts ...RedisBackendOption) (*redisBackend, error) {
	backendOptions := backend.ApplyOptions()

	// Default options
	options := &RedisOptions{
		Options: &backendOptions,
	}

	for _, opt := range opts {
		opt(options)
	}

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &redisBackend{
		rdb:     client,
		keys:    newKeys(options.KeyPrefix),
		options: options,
	}, nil
}

type redisBackend struct {
	rdb     redis.UniversalClient
	keys    *keys
	options *RedisOptions
}

func (rb *redisBackend) CreateSession(ctx context.Context) (backend.Session, error) {
	id := uuid.NewString()

	rb.Metrics().Counter(metrickeys.SessionCreated, metrics.Tags{}, 1)

	return &session{
		id:      id,
		rdb:     rb.rdb,
		keys:    rb.keys,
		options: rb.options.Options,
		logger:  rb.options.Logger.With(log.SessionIDKey, id),
		loaded:  map[int64][]byte{},
		pending: map[int64]*pendingSave{},
	}, nil
}

func (rb *redisBackend) HasUserRole(ctx context.Context, userID, roleID int64) (bool, error) {
	ok, err := rb.rdb.SIsMember(ctx, rb.keys.userRoles(userID), strconv.FormatInt(roleID, 10)).Result()
	if err != nil {
		return false, fmt.Errorf("checking role membership: %w", err)
	}

	return ok, nil
}

func (rb *redisBackend) GrantRole(ctx context.Context, userID, roleID int64) error {
	if err := rb.rdb.SAdd(ctx, rb.keys.userRoles(userID), strconv.FormatInt(roleID, 10)).Err(); err != nil {
		return fmt.Errorf("granting role: %w", err)
	}

	return nil
}

func (rb *redisBackend) RevokeRole(ctx context.Context, userID, roleID int64) error {
	if err := rb.rdb.SRem(ctx, rb.keys.userRoles(userID), strconv.FormatInt(roleID, 10)).Err(); err != nil {
		return fmt.Errorf("revoking role: %w", err)
	}

	return nil
}

func (rb *redisBackend) Metrics() metrics.Client {
	return rb.options.Metrics.WithTags(metrics.Tags{metrickeys.Backend: "redis"})
}

func (rb *redisBackend) Tracer() trace.Tracer {
	return rb.options.TracerProvider.Tracer(backend.TracerName)
}

func (rb *redisBackend) Options() *backend.Options {
	return rb.options.Options
}

func (rb *redisBackend) Close() error {
	return rb.rdb.Close()
}
