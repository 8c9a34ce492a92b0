// Package instrumented wraps a backend so every session operation is traced and timed.
package instrumented

import (
	"context"
	"errors"

	"github.com/cschleiden/go-workflow-tasks/backend"
	"github.com/cschleiden/go-workflow-tasks/core"
	"github.com/cschleiden/go-workflow-tasks/internal/metrickeys"
	"github.com/cschleiden/go-workflow-tasks/internal/tracing"
	"github.com/cschleiden/go-workflow-tasks/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type instrumentedBackend struct {
	backend.Backend
}

// NewInstrumentedBackend wraps b. Sessions created by the returned backend start a child span and
// report a latency timing for each operation, tagged with the operation name. Failed operations and
// commit conflicts are counted.
func NewInstrumentedBackend(b backend.Backend) *instrumentedBackend {
	return &instrumentedBackend{Backend: b}
}

// Unwrap returns the wrapped backend.
func (b *instrumentedBackend) Unwrap() backend.Backend {
	return b.Backend
}

func (b *instrumentedBackend) CreateSession(ctx context.Context) (backend.Session, error) {
	s, err := b.Backend.CreateSession(ctx)
	if err != nil {
		return nil, err
	}

	return &session{
		Session: s,
		tracer:  b.Tracer(),
		metrics: b.Metrics(),
		b:       b.Backend,
	}, nil
}

type session struct {
	backend.Session

	tracer  trace.Tracer
	metrics metrics.Client
	b       backend.Backend
}

func (s *session) LoadTaskInstance(ctx context.Context, id int64) (*core.TaskInstance, error) {
	var t *core.TaskInstance

	err := s.observe(ctx, "LoadTaskInstance", []attribute.KeyValue{
		attribute.Int64(tracing.TaskID, id),
	}, func(ctx context.Context) error {
		var err error
		t, err = s.Session.LoadTaskInstance(ctx, id)
		return err
	})

	return t, err
}

func (s *session) SaveTaskInstance(ctx context.Context, task *core.TaskInstance) error {
	return s.observe(ctx, "SaveTaskInstance", []attribute.KeyValue{
		attribute.Int64(tracing.TaskID, task.ID),
	}, func(ctx context.Context) error {
		return s.Session.SaveTaskInstance(ctx, task)
	})
}

func (s *session) FindTaskInstances(ctx context.Context, query *backend.TaskQuery) ([]*core.TaskInstance, error) {
	var r []*core.TaskInstance

	err := s.observe(ctx, "FindTaskInstances", nil, func(ctx context.Context) error {
		var err error
		r, err = s.Session.FindTaskInstances(ctx, query)
		if err == nil {
			trace.SpanFromContext(ctx).SetAttributes(attribute.Int(tracing.Count, len(r)))
		}

		return err
	})

	return r, err
}

func (s *session) CountTaskInstances(ctx context.Context, query *backend.TaskQuery) (int, error) {
	var count int

	err := s.observe(ctx, "CountTaskInstances", nil, func(ctx context.Context) error {
		var err error
		count, err = s.Session.CountTaskInstances(ctx, query)
		return err
	})

	return count, err
}

func (s *session) Commit(ctx context.Context) error {
	err := s.observe(ctx, "Commit", nil, func(ctx context.Context) error {
		return s.Session.Commit(ctx)
	})

	if errors.Is(err, backend.ErrConflict) {
		s.metrics.Counter(metrickeys.SessionConflict, metrics.Tags{}, 1)
	}

	return err
}

func (s *session) observe(ctx context.Context, op string, attrs []attribute.KeyValue, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "Session."+op, trace.WithAttributes(
		append(attrs, attribute.String("session.id", s.ID()))...,
	))
	defer span.End()

	tags := metrics.Tags{metrickeys.Operation: op}

	timer := metrics.NewTimer(s.metrics, s.b.Options().Clock, metrickeys.SessionOperationLatency, tags)
	defer timer.Stop()

	err := fn(ctx)
	if err != nil && !errors.Is(err, backend.ErrTaskNotFound) {
		s.metrics.Counter(metrickeys.SessionOperationFailed, tags, 1)
	}

	return tracing.WithSpanError(span, err)
}
