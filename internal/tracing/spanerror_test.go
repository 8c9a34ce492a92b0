package tracing

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cschleiden/go-workflow-tasks/backend"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func Test_WithSpanError(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	_, span := tp.Tracer("test").Start(context.Background(), "failing")
	err := errors.New("boom")
	require.Equal(t, err, WithSpanError(span, err))
	span.End()

	_, span = tp.Tracer("test").Start(context.Background(), "succeeding")
	require.NoError(t, WithSpanError(span, nil))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	require.Equal(t, codes.Error, spans[0].Status.Code)
	require.Equal(t, "boom", spans[0].Status.Description)
	require.Len(t, spans[0].Events, 1)
	require.Contains(t, spans[0].Events[0].Attributes, attribute.String(ErrorKind, ErrorKindOther))
	require.Equal(t, codes.Unset, spans[1].Status.Code)
}

func Test_WithSpanError_Kinds(t *testing.T) {
	tests := []struct {
		err  error
		kind string
	}{
		{fmt.Errorf("committing session: %w", backend.ErrConflict), ErrorKindConflict},
		{fmt.Errorf("loading task instance: %w", backend.ErrTaskNotFound), ErrorKindNotFound},
		{backend.ErrSessionCommitted, ErrorKindSession},
		{backend.ErrSessionClosed, ErrorKindSession},
		{errors.New("disk full"), ErrorKindOther},
	}

	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.err.Error(), func(t *testing.T) {
			exporter := tracetest.NewInMemoryExporter()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

			_, span := tp.Tracer("test").Start(context.Background(), "Session.Commit")
			require.ErrorIs(t, WithSpanError(span, tt.err), tt.err)
			span.End()

			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			require.Len(t, spans[0].Events, 1)
			require.Contains(t, spans[0].Events[0].Attributes, attribute.String(ErrorKind, tt.kind))
		})
	}
}
