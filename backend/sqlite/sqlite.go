package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/cschleiden/go-workflow-tasks/backend"
	"github.com/cschleiden/go-workflow-tasks/internal/metrickeys"
	"github.com/cschleiden/go-workflow-tasks/internal/sqlstore"
	"github.com/cschleiden/go-workflow-tasks/metrics"
	"github.com/cschleiden/go-workflow-tasks/roles"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed db/migrations/*.sql
var migrationsFS embed.FS

// NewInMemoryBackend creates a backend on a private, shared-cache in-memory database. The database lives as long
// as the backend.
func NewInMemoryBackend(opts ...option) *sqliteBackend {
	return newSqliteBackend(uuid.NewString(), true, opts...)
}

func NewSqliteBackend(path string, opts ...option) *sqliteBackend {
	return newSqliteBackend(path, false, opts...)
}

func dsn(path string, inMemory bool, busyTimeout time.Duration) string {
	pragmas := fmt.Sprintf("_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", busyTimeout.Milliseconds())

	if inMemory {
		return fmt.Sprintf("file:%s?mode=memory&cache=shared&%s", path, pragmas)
	}

	return fmt.Sprintf("file:%v?%s&_pragma=journal_mode(WAL)", path, pragmas)
}

func newSqliteBackend(path string, inMemory bool, opts ...option) *sqliteBackend {
	backendOptions := backend.ApplyOptions()
	options := &options{
		Options:         &backendOptions,
		ApplyMigrations: true,
		BusyTimeout:     10 * time.Second,
	}

	for _, opt := range opts {
		opt(options)
	}

	db, err := sql.Open("sqlite", dsn(path, inMemory, options.BusyTimeout))
	if err != nil {
		panic(err)
	}

	// A single connection serializes sessions within the process. Sessions must not touch the
	// database outside of their transaction while they are open.
	db.SetMaxOpenConns(1)

	if inMemory {
		// The in-memory database is dropped once its last connection closes, keep it around.
		db.SetConnMaxIdleTime(0)
		db.SetConnMaxLifetime(0)
		db.SetMaxIdleConns(1)
	}

	b := &sqliteBackend{
		db:      db,
		options: options,
		store:   sqlstore.New(db, sqlstore.SQLite.WithConflicts(isLockError), options.Options, nil),
	}

	if options.ApplyMigrations {
		if err := b.Migrate(); err != nil {
			panic(err)
		}
	}

	return b
}

type sqliteBackend struct {
	db      *sql.DB
	options *options
	store   *sqlstore.Store
}

var (
	_ backend.Backend = (*sqliteBackend)(nil)
	_ roles.Store     = (*sqliteBackend)(nil)
)

// Migrate applies any pending database migrations.
func (sb *sqliteBackend) Migrate() error {
	dbi, err := sqlite.WithInstance(sb.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating migration instance: %w", err)
	}

	migrations, err := iofs.New(migrationsFS, "db/migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", migrations, "sqlite", dbi)
	if err != nil {
		return fmt.Errorf("creating migration: %w", err)
	}

	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("running migrations: %w", err)
		}
	}

	sb.options.Logger.Debug("Applied sqlite migrations")

	return nil
}

func (sb *sqliteBackend) CreateSession(ctx context.Context) (backend.Session, error) {
	return sb.store.CreateSession(ctx)
}

func (sb *sqliteBackend) HasUserRole(ctx context.Context, userID, roleID int64) (bool, error) {
	return sb.store.HasUserRole(ctx, userID, roleID)
}

func (sb *sqliteBackend) GrantRole(ctx context.Context, userID, roleID int64) error {
	return sb.store.GrantRole(ctx, userID, roleID)
}

func (sb *sqliteBackend) RevokeRole(ctx context.Context, userID, roleID int64) error {
	return sb.store.RevokeRole(ctx, userID, roleID)
}

func (sb *sqliteBackend) Tracer() trace.Tracer {
	return sb.options.TracerProvider.Tracer(backend.TracerName)
}

func (sb *sqliteBackend) Metrics() metrics.Client {
	return sb.options.Metrics.WithTags(metrics.Tags{metrickeys.Backend: "sqlite"})
}

func (sb *sqliteBackend) Options() *backend.Options {
	return sb.options.Options
}

func (sb *sqliteBackend) Close() error {
	return sb.db.Close()
}

// isLockError reports whether err is SQLite refusing a lock that another connection or process holds.
// These surface once the busy timeout has run out, or immediately when a deferred transaction cannot
// upgrade its read snapshot.
func isLockError(err error) bool {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}

	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}

	return false
}
