package backend

import (
	"log/slog"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestDefaultValues(t *testing.T) {
	opts := ApplyOptions()

	assert.NotNil(t, opts.Logger)
	assert.NotNil(t, opts.Metrics)
	assert.NotNil(t, opts.TracerProvider)
	assert.NotNil(t, opts.Converter)
	assert.NotNil(t, opts.Clock)
}

func TestWithClock(t *testing.T) {
	mock := clock.NewMock()

	opts := ApplyOptions(WithClock(mock))

	assert.Same(t, mock, opts.Clock)
}

func TestNilValuesFallBack(t *testing.T) {
	opts := ApplyOptions(WithLogger(nil), WithClock(nil))

	assert.Same(t, slog.Default(), opts.Logger)
	assert.NotNil(t, opts.Clock)
}

func TestIntegrationWithOtherOptions(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	tp := noop.NewTracerProvider()

	opts := ApplyOptions(
		WithLogger(logger),
		WithTracerProvider(tp),
	)

	assert.Same(t, logger, opts.Logger)
	assert.Equal(t, tp, opts.TracerProvider)
}
