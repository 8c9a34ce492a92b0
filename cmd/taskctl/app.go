package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cschleiden/go-workflow-tasks/backend"
	"github.com/cschleiden/go-workflow-tasks/backend/instrumented"
	"github.com/cschleiden/go-workflow-tasks/backend/mysql"
	rb "github.com/cschleiden/go-workflow-tasks/backend/redis"
	"github.com/cschleiden/go-workflow-tasks/backend/sqlite"
	promadapter "github.com/cschleiden/go-workflow-tasks/metrics/prometheus"
	"github.com/cschleiden/go-workflow-tasks/roles"
	"github.com/cschleiden/go-workflow-tasks/taskmanager"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// store is a task backend that also keeps role memberships.
type store interface {
	backend.Backend
	roles.Store
}

type instrumentedStore struct {
	backend.Backend
	roles.Store
}

// app holds everything a command needs. It is set up before a command runs and torn down after.
type app struct {
	cfg      *Config
	logger   *slog.Logger
	tp       *sdktrace.TracerProvider
	registry *prometheus.Registry
	backend  store
	roles    *roles.Cached
	manager  *taskmanager.Manager
}

func newApp(ctx context.Context, cfg *Config, logOut io.Writer) (*app, error) {
	logger, err := newLogger(cfg.Log, logOut)
	if err != nil {
		return nil, err
	}

	tp, err := newTracerProvider(ctx, cfg.Tracing, logOut)
	if err != nil {
		return nil, err
	}

	otel.SetTracerProvider(tp)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mc := promadapter.New(registry)

	raw, err := openBackend(cfg,
		backend.WithLogger(logger),
		backend.WithMetrics(mc),
		backend.WithTracerProvider(tp),
	)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	b := &instrumentedStore{
		Backend: instrumented.NewInstrumentedBackend(raw),
		Store:   raw,
	}

	cached := roles.NewCached(b, mc, cfg.Roles.CacheSize, cfg.Roles.CacheTTL)

	return &app{
		cfg:      cfg,
		logger:   logger,
		tp:       tp,
		registry: registry,
		backend:  b,
		roles:    cached,
		manager:  taskmanager.New(b, cached),
	}, nil
}

func (a *app) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return errors.Join(
		a.backend.Close(),
		a.tp.Shutdown(ctx),
	)
}

func newLogger(cfg LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.level()
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}

	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func newTracerProvider(ctx context.Context, cfg TracingConfig, w io.Writer) (*sdktrace.TracerProvider, error) {
	r := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String("taskctl"),
		attribute.String("tasks.exporter", cfg.Exporter),
	)

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(r)}

	switch cfg.Exporter {
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint(), stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("creating stdout exporter: %w", err)
		}

		opts = append(opts, sdktrace.WithSyncer(exp))

	case "otlp":
		copts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithURLPath(cfg.URLPath),
		}
		if cfg.Insecure {
			copts = append(copts, otlptracehttp.WithInsecure())
		}

		exp, err := otlptrace.New(ctx, otlptracehttp.NewClient(copts...))
		if err != nil {
			return nil, fmt.Errorf("creating otlp exporter: %w", err)
		}

		opts = append(opts, sdktrace.WithBatcher(exp))
	}

	return sdktrace.NewTracerProvider(opts...), nil
}

func openBackend(cfg *Config, opts ...backend.BackendOption) (store, error) {
	switch cfg.Backend {
	case "memory":
		return sqlite.NewInMemoryBackend(sqlite.WithBackendOptions(opts...)), nil

	case "sqlite":
		return sqlite.NewSqliteBackend(cfg.SQLite.Path, sqlite.WithBusyTimeout(cfg.SQLite.BusyTimeout), sqlite.WithBackendOptions(opts...)), nil

	case "mysql":
		c := cfg.MySQL
		return mysql.NewMysqlBackend(c.Host, c.Port, c.User, c.Password, c.Database,
			mysql.WithBackendOptions(opts...),
			mysql.WithConnectTimeout(c.ConnectTimeout),
		), nil

	case "redis":
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:        cfg.Redis.Addrs,
			Username:     cfg.Redis.Username,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			WriteTimeout: time.Second * 30,
			ReadTimeout:  time.Second * 30,
		})

		b, err := rb.NewRedisBackend(client, rb.WithBackendOptions(opts...), rb.WithKeyPrefix(cfg.Redis.KeyPrefix))
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}

		return b, nil
	}

	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
