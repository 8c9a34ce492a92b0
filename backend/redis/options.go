package redis

import (
	"github.com/cschleiden/go-workflow-tasks/backend"
)

type RedisOptions struct {
	*backend.Options

	KeyPrefix string
}

type RedisBackendOption func(*RedisOptions)

func WithBackendOptions(opts ...backend.BackendOption) RedisBackendOption {
	return func(o *RedisOptions) {
		for _, opt := range opts {
			opt(o.Options)
		}
	}
}

// WithKeyPrefix namespaces all keys written by the backend. Useful when sharing a database.
func WithKeyPrefix(keyPrefix string) RedisBackendOption {
	return func(o *RedisOptions) {
		o.KeyPrefix = keyPrefix
	}
}
