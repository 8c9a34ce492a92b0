package backend

import (
	"log/slog"

	"github.com/benbjohnson/clock"
	"github.com/cschleiden/go-workflow-tasks/backend/converter"
	"github.com/cschleiden/go-workflow-tasks/metrics"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type Options struct {
	Logger *slog.Logger

	Metrics metrics.Client

	TracerProvider trace.TracerProvider

	// Converter is the converter to use for serializing task nodes, comments, and variables. If not explicitly set
	// converter.DefaultConverter is used.
	Converter converter.Converter

	// Clock is used for all timestamps written by backends and the task manager.
	Clock clock.Clock
}

var DefaultOptions Options = Options{
	Logger:         slog.Default(),
	Metrics:        metrics.Discard,
	TracerProvider: noop.NewTracerProvider(),
	Converter:      converter.DefaultConverter,
	Clock:          clock.New(),
}

type BackendOption func(*Options)

func WithLogger(logger *slog.Logger) BackendOption {
	return func(o *Options) {
		o.Logger = logger
	}
}

func WithMetrics(client metrics.Client) BackendOption {
	return func(o *Options) {
		o.Metrics = client
	}
}

func WithTracerProvider(tp trace.TracerProvider) BackendOption {
	return func(o *Options) {
		o.TracerProvider = tp
	}
}

func WithConverter(converter converter.Converter) BackendOption {
	return func(o *Options) {
		o.Converter = converter
	}
}

// WithClock sets the clock used for timestamps. Useful for tests.
func WithClock(clock clock.Clock) BackendOption {
	return func(o *Options) {
		o.Clock = clock
	}
}

func ApplyOptions(opts ...BackendOption) Options {
	options := DefaultOptions

	for _, opt := range opts {
		opt(&options)
	}

	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	if options.Clock == nil {
		options.Clock = clock.New()
	}

	return options
}
