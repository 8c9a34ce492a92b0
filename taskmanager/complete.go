package taskmanager

import (
	"context"

	"github.com/cschleiden/go-workflow-tasks/core"
	"github.com/cschleiden/go-workflow-tasks/internal/log"
	"github.com/cschleiden/go-workflow-tasks/internal/metrickeys"
	"github.com/cschleiden/go-workflow-tasks/internal/tracing"
	"github.com/cschleiden/go-workflow-tasks/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CompleteWorkflowTask ends a task assigned to userID. An empty transitionName ends the task via the
// node's default transition.
func (m *Manager) CompleteWorkflowTask(ctx context.Context, userID, taskID int64, transitionName, comment string, vars core.Variables) (*WorkflowTask, error) {
	var r *WorkflowTask

	err := m.operation(ctx, "CompleteWorkflowTask", taskID, []attribute.KeyValue{
		attribute.Int64(tracing.TaskID, taskID),
		attribute.Int64(tracing.UserID, userID),
		attribute.String(tracing.Transition, transitionName),
	}, func(ctx context.Context, span trace.Span) error {
		var err error
		r, err = m.mutate(ctx, taskID, func(ctx context.Context, t *core.TaskInstance) error {
			if !assignedTo(t, userID) {
				return notAssignedToUser(taskID, userID)
			}

			now := m.clock.Now()

			t.AddComment(formatID(userID), comment, now)

			if vars != nil {
				t.AddVariables(vars)
			}

			if transitionName == "" {
				return t.End(now)
			}

			return t.EndWithTransition(transitionName, now)
		})
		if err != nil {
			return err
		}

		m.metrics.Counter(metrickeys.TaskCompleted, metrics.Tags{}, 1)

		m.logger.Debug("Completed task",
			log.TaskIDKey, taskID,
			log.UserIDKey, userID,
			log.TransitionKey, r.Transition,
		)

		return nil
	})

	return r, err
}

// GetNextTransitionNames returns the names of the transitions leaving the node of a task assigned to
// userID, in declaration order.
func (m *Manager) GetNextTransitionNames(ctx context.Context, userID, taskID int64) ([]string, error) {
	var names []string

	err := m.operation(ctx, "GetNextTransitionNames", taskID, []attribute.KeyValue{
		attribute.Int64(tracing.TaskID, taskID),
		attribute.Int64(tracing.UserID, userID),
	}, func(ctx context.Context, span trace.Span) error {
		t, err := m.load(ctx, taskID)
		if err != nil {
			return err
		}

		if !assignedTo(t, userID) {
			return notAssignedToUser(taskID, userID)
		}

		names = t.Node.TransitionNames()
		span.SetAttributes(attribute.Int(tracing.Count, len(names)))

		return nil
	})

	return names, err
}

// assignedTo reports whether the task is directly assigned to the user.
func assignedTo(t *core.TaskInstance, userID int64) bool {
	return t.ActorID != "" && actorID(t.ActorID) == userID
}
