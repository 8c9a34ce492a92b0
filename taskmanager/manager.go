// Package taskmanager assigns, completes, and lists the human tasks of running workflow instances.
package taskmanager

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/benbjohnson/clock"
	"github.com/cschleiden/go-workflow-tasks/backend"
	"github.com/cschleiden/go-workflow-tasks/core"
	"github.com/cschleiden/go-workflow-tasks/internal/log"
	"github.com/cschleiden/go-workflow-tasks/internal/metrickeys"
	"github.com/cschleiden/go-workflow-tasks/internal/tracing"
	"github.com/cschleiden/go-workflow-tasks/metrics"
	"github.com/cschleiden/go-workflow-tasks/roles"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Manager is safe for concurrent use. Every operation runs in its own backend session.
type Manager struct {
	backend backend.Backend
	roles   roles.Service

	logger  *slog.Logger
	tracer  trace.Tracer
	metrics metrics.Client
	clock   clock.Clock
}

// New creates a manager for the tasks stored in b. Role membership for user assignment is checked
// against rs.
func New(b backend.Backend, rs roles.Service) *Manager {
	return &Manager{
		backend: b,
		roles:   rs,
		logger:  b.Options().Logger,
		tracer:  b.Tracer(),
		metrics: b.Metrics(),
		clock:   b.Options().Clock,
	}
}

// operation runs fn in a span named after the operation and reports its outcome. Errors are returned
// as *WorkflowError.
func (m *Manager) operation(ctx context.Context, name string, taskID int64, attrs []attribute.KeyValue, fn func(ctx context.Context, span trace.Span) error) error {
	ctx, span := m.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	defer span.End()

	tags := metrics.Tags{metrickeys.Operation: name}

	timer := metrics.NewTimer(m.metrics, m.clock, metrickeys.OperationLatency, tags)
	defer timer.Stop()

	if err := fn(ctx, span); err != nil {
		m.metrics.Counter(metrickeys.OperationFailed, tags, 1)

		message := name
		if taskID != 0 {
			message = fmt.Sprintf("%s: workflow task %d", name, taskID)
		}

		return tracing.WithSpanError(span, newWorkflowError(taskID, message, err))
	}

	m.metrics.Counter(metrickeys.OperationCompleted, tags, 1)

	return nil
}

// withSession opens a session, passes it to fn, and always closes it.
func (m *Manager) withSession(ctx context.Context, fn func(s backend.Session) error) error {
	s, err := m.backend.CreateSession(ctx)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	defer func() {
		if err := s.Close(); err != nil {
			m.logger.Error("Closing session", log.SessionIDKey, s.ID(), "error", err)
		}
	}()

	return fn(s)
}

// mutate loads a task instance, applies fn, and persists the result in one session. Nothing is saved
// if fn fails.
func (m *Manager) mutate(ctx context.Context, taskID int64, fn func(ctx context.Context, t *core.TaskInstance) error) (*WorkflowTask, error) {
	var r *WorkflowTask

	err := m.withSession(ctx, func(s backend.Session) error {
		t, err := s.LoadTaskInstance(ctx, taskID)
		if err != nil {
			return fmt.Errorf("loading task instance: %w", err)
		}

		if err := fn(ctx, t); err != nil {
			return err
		}

		if err := s.SaveTaskInstance(ctx, t); err != nil {
			return fmt.Errorf("saving task instance: %w", err)
		}

		if err := s.Commit(ctx); err != nil {
			return err
		}

		r = newWorkflowTask(t)

		return nil
	})

	return r, err
}

// load reads a task instance in its own session.
func (m *Manager) load(ctx context.Context, taskID int64) (*core.TaskInstance, error) {
	var t *core.TaskInstance

	err := m.withSession(ctx, func(s backend.Session) error {
		var err error
		t, err = s.LoadTaskInstance(ctx, taskID)
		if err != nil {
			return fmt.Errorf("loading task instance: %w", err)
		}

		return nil
	})

	return t, err
}
