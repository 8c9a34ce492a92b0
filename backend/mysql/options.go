package mysql

import (
	"database/sql"
	"time"

	"github.com/cschleiden/go-workflow-tasks/backend"
)

type options struct {
	*backend.Options

	MySQLOptions func(db *sql.DB)

	// ApplyMigrations automatically applies database migrations on startup.
	ApplyMigrations bool

	// ConnectTimeout bounds how long the backend waits for the database to become reachable on startup.
	ConnectTimeout time.Duration
}

type option func(*options)

// WithApplyMigrations automatically applies database migrations on startup.
func WithApplyMigrations(applyMigrations bool) option {
	return func(o *options) {
		o.ApplyMigrations = applyMigrations
	}
}

func WithMySQLOptions(f func(db *sql.DB)) option {
	return func(o *options) {
		o.MySQLOptions = f
	}
}

// WithConnectTimeout sets how long to retry the initial connection. Zero disables retries.
func WithConnectTimeout(timeout time.Duration) option {
	return func(o *options) {
		o.ConnectTimeout = timeout
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
