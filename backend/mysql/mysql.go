package mysql

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cschleiden/go-workflow-tasks/backend"
	"github.com/cschleiden/go-workflow-tasks/internal/log"
	"github.com/cschleiden/go-workflow-tasks/internal/metrickeys"
	"github.com/cschleiden/go-workflow-tasks/internal/sqlstore"
	"github.com/cschleiden/go-workflow-tasks/metrics"
	"github.com/cschleiden/go-workflow-tasks/roles"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.opentelemetry.io/otel/trace"
)

//go:embed db/migrations/*.sql
var migrationsFS embed.FS

func NewMysqlBackend(host string, port int, user, password, database string, opts ...option) *mysqlBackend {
	backendOptions := backend.ApplyOptions()
	options := &options{
		Options:         &backendOptions,
		ApplyMigrations: true,
		ConnectTimeout:  30 * time.Second,
	}

	for _, opt := range opts {
		opt(options)
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&interpolateParams=true", user, password, host, port, database)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		panic(err)
	}

	if options.MySQLOptions != nil {
		options.MySQLOptions(db)
	}

	b := &mysqlBackend{
		dsn:     dsn,
		db:      db,
		options: options,
		store: sqlstore.New(db, sqlstore.MySQL.WithConflicts(isLockError), options.Options, &sql.TxOptions{
			Isolation: sql.LevelReadCommitted,
		}),
	}

	if err := b.waitForDatabase(context.Background()); err != nil {
		panic(err)
	}

	if options.ApplyMigrations {
		if err := b.Migrate(); err != nil {
			panic(err)
		}
	}

	return b
}

type mysqlBackend struct {
	dsn     string
	db      *sql.DB
	options *options
	store   *sqlstore.Store
}

var (
	_ backend.Backend = (*mysqlBackend)(nil)
	_ roles.Store     = (*mysqlBackend)(nil)
)

// waitForDatabase pings the database until it responds or the connect timeout expires.
func (b *mysqlBackend) waitForDatabase(ctx context.Context) error {
	if b.options.ConnectTimeout <= 0 {
		return b.db.PingContext(ctx)
	}

	bo := &backoff.ExponentialBackOff{
		InitialInterval:     time.Millisecond * 100,
		MaxInterval:         time.Second * 2,
		Multiplier:          1.5,
		RandomizationFactor: 0.5,
		MaxElapsedTime:      b.options.ConnectTimeout,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	bo.Reset()

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		return b.db.PingContext(ctx)
	}, backoff.WithContext(bo, ctx), func(err error, d time.Duration) {
		b.options.Logger.Warn("Database not reachable, retrying",
			log.AttemptKey, attempt,
			log.DurationKey, d.Milliseconds(),
			"error", err,
		)
	})
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}

	return nil
}

// Migrate applies any pending database migrations.
func (b *mysqlBackend) Migrate() error {
	schemaDsn := b.dsn + "&multiStatements=true"
	db, err := sql.Open("mysql", schemaDsn)
	if err != nil {
		return fmt.Errorf("opening schema database: %w", err)
	}
	defer db.Close()

	dbi, err := mysql.WithInstance(db, &mysql.Config{})
	if err != nil {
		return fmt.Errorf("creating migration instance: %w", err)
	}

	migrations, err := iofs.New(migrationsFS, "db/migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", migrations, "mysql", dbi)
	if err != nil {
		return fmt.Errorf("creating migration: %w", err)
	}

	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("running migrations: %w", err)
		}
	}

	b.options.Logger.Debug("Applied mysql migrations")

	return nil
}

func (b *mysqlBackend) CreateSession(ctx context.Context) (backend.Session, error) {
	return b.store.CreateSession(ctx)
}

func (b *mysqlBackend) HasUserRole(ctx context.Context, userID, roleID int64) (bool, error) {
	return b.store.HasUserRole(ctx, userID, roleID)
}

func (b *mysqlBackend) GrantRole(ctx context.Context, userID, roleID int64) error {
	return b.store.GrantRole(ctx, userID, roleID)
}

func (b *mysqlBackend) RevokeRole(ctx context.Context, userID, roleID int64) error {
	return b.store.RevokeRole(ctx, userID, roleID)
}

func (b *mysqlBackend) Tracer() trace.Tracer {
	return b.options.TracerProvider.Tracer(backend.TracerName)
}

func (b *mysqlBackend) Metrics() metrics.Client {
	return b.options.Metrics.WithTags(metrics.Tags{metrickeys.Backend: "mysql"})
}

func (b *mysqlBackend) Options() *backend.Options {
	return b.options.Options
}

func (b *mysqlBackend) Close() error {
	return b.db.Close()
}

// isLockError reports whether err is InnoDB giving up on a row lock, either as a deadlock victim
// (1213) or after innodb_lock_wait_timeout (1205).
func isLockError(err error) bool {
	var me *mysqldriver.MySQLError
	if !errors.As(err, &me) {
		return false
	}

	return me.Number == 1213 || me.Number == 1205
}
