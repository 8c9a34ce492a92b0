package sqlite

import (
	"time"

	"github.com/cschleiden/go-workflow-tasks/backend"
)

type options struct {
	*backend.Options

	// ApplyMigrations automatically applies database migrations on startup.
	ApplyMigrations bool

	// BusyTimeout is how long a session waits for a lock held by another process.
	BusyTimeout time.Duration
}

type option func(*options)

// WithApplyMigrations automatically applies database migrations on startup.
func WithApplyMigrations(applyMigrations bool) option {
	return func(o *options) {
		o.ApplyMigrations = applyMigrations
	}
}

// WithBusyTimeout sets how long a session waits for a lock held by another process before giving up
// with backend.ErrConflict.
func WithBusyTimeout(d time.Duration) option {
	return func(o *options) {
		o.BusyTimeout = d
	}
}

// WithBackendOptions allows to pass generic backend options.
func WithBackendOptions(opts ...backend.BackendOption) option {
	return func(o *options) {
		for _, opt := range opts {
			opt(o.Options)
		}
	}
}
