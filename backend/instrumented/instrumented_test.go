package instrumented

import (
	"context"
	"testing"
	"time"

	"github.com/cschleiden/go-workflow-tasks/backend"
	"github.com/cschleiden/go-workflow-tasks/backend/sqlite"
	"github.com/cschleiden/go-workflow-tasks/backend/test"
	"github.com/cschleiden/go-workflow-tasks/core"
	"github.com/cschleiden/go-workflow-tasks/internal/metrickeys"
	mi "github.com/cschleiden/go-workflow-tasks/internal/metrics"
	"github.com/cschleiden/go-workflow-tasks/metrics"
	"github.com/cschleiden/go-workflow-tasks/roles"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type testBackend struct {
	*instrumentedBackend
	roles.Store
}

func Test_InstrumentedBackend(t *testing.T) {
	test.BackendTest(t, func(options ...backend.BackendOption) test.TestBackend {
		b := sqlite.NewInMemoryBackend(sqlite.WithBackendOptions(options...))

		return &testBackend{
			instrumentedBackend: NewInstrumentedBackend(b),
			Store:               b,
		}
	}, func(b test.TestBackend) {
		require.NoError(t, b.Close())
	})
}

func Test_InstrumentedBackend_ReportsOperations(t *testing.T) {
	ctx := context.Background()

	mc := mi.NewMemoryMetricsClient()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(ctx)

	sb := sqlite.NewInMemoryBackend(sqlite.WithBackendOptions(
		backend.WithMetrics(mc),
		backend.WithTracerProvider(tp),
	))
	defer sb.Close()

	b := NewInstrumentedBackend(sb)
	require.Same(t, sb, b.Unwrap())

	s, err := b.CreateSession(ctx)
	require.NoError(t, err)
	defer s.Close()

	ti := core.NewTaskInstance(1, "review", &core.TaskNode{Name: "review"}, time.Now())
	require.NoError(t, s.SaveTaskInstance(ctx, ti))

	_, err = s.LoadTaskInstance(ctx, ti.ID+100)
	require.ErrorIs(t, err, backend.ErrTaskNotFound)

	count, err := s.CountTaskInstances(ctx, &backend.TaskQuery{Start: core.All, End: core.All})
	require.NoError(t, err)
	require.Equal(t, 1, count)

	require.NoError(t, s.Commit(ctx))
	require.ErrorIs(t, s.Commit(ctx), backend.ErrSessionCommitted)

	tags := func(op string) metrics.Tags {
		return metrics.Tags{metrickeys.Backend: "sqlite", metrickeys.Operation: op}
	}

	for _, op := range []string{"SaveTaskInstance", "LoadTaskInstance", "CountTaskInstances"} {
		require.Len(t, mc.Timings(mi.Key(metrickeys.SessionOperationLatency, tags(op))), 1, op)
	}
	require.Len(t, mc.Timings(mi.Key(metrickeys.SessionOperationLatency, tags("Commit"))), 2)

	counters := mc.Counters()
	require.Zero(t, counters[mi.Key(metrickeys.SessionOperationFailed, tags("LoadTaskInstance"))])
	require.Equal(t, int64(1), counters[mi.Key(metrickeys.SessionOperationFailed, tags("Commit"))])

	spans := exporter.GetSpans()
	require.Len(t, spans, 5)
	require.Equal(t, "Session.SaveTaskInstance", spans[0].Name)
	require.Equal(t, "Session.LoadTaskInstance", spans[1].Name)
	require.Equal(t, codes.Error, spans[1].Status.Code)
	require.Equal(t, codes.Error, spans[4].Status.Code)
}

func Test_InstrumentedBackend_CountsConflicts(t *testing.T) {
	ctx := context.Background()
	mc := mi.NewMemoryMetricsClient()

	ms := &backend.MockSession{}
	ms.On("ID").Return("s1")
	ms.On("Commit", mock.Anything).Return(backend.ErrConflict)

	opts := backend.ApplyOptions(backend.WithMetrics(mc))

	mb := &backend.MockBackend{}
	mb.On("CreateSession", mock.Anything).Return(ms, nil)
	mb.On("Tracer").Return(opts.TracerProvider.Tracer(backend.TracerName))
	mb.On("Metrics").Return(mc)
	mb.On("Options").Return(&opts)

	s, err := NewInstrumentedBackend(mb).CreateSession(ctx)
	require.NoError(t, err)

	require.ErrorIs(t, s.Commit(ctx), backend.ErrConflict)
	require.Equal(t, int64(1), mc.Counters()[mi.Key(metrickeys.SessionConflict, metrics.Tags{})])

	mb.AssertExpectations(t)
	ms.AssertExpectations(t)
}
