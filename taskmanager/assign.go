package taskmanager

import (
	"context"
	"fmt"

	"github.com/cschleiden/go-workflow-tasks/backend"
	"github.com/cschleiden/go-workflow-tasks/core"
	"github.com/cschleiden/go-workflow-tasks/internal/log"
	"github.com/cschleiden/go-workflow-tasks/internal/metrickeys"
	"github.com/cschleiden/go-workflow-tasks/internal/tracing"
	"github.com/cschleiden/go-workflow-tasks/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AssignWorkflowTaskToRole pools the task to the given role, replacing any previously pooled roles.
// vars are merged into the task's variables when not nil.
func (m *Manager) AssignWorkflowTaskToRole(ctx context.Context, userID, taskID, roleID int64, comment string, vars core.Variables) (*WorkflowTask, error) {
	var r *WorkflowTask

	err := m.operation(ctx, "AssignWorkflowTaskToRole", taskID, []attribute.KeyValue{
		attribute.Int64(tracing.TaskID, taskID),
		attribute.Int64(tracing.UserID, userID),
		attribute.Int64(tracing.RoleID, roleID),
	}, func(ctx context.Context, span trace.Span) error {
		var err error
		r, err = m.mutate(ctx, taskID, func(ctx context.Context, t *core.TaskInstance) error {
			t.SetPooledActors(formatID(roleID))
			t.AddComment(formatID(userID), comment, m.clock.Now())

			if vars != nil {
				t.AddVariables(vars)
			}

			return nil
		})
		if err != nil {
			return err
		}

		m.metrics.Counter(metrickeys.TaskAssigned, metrics.Tags{metrickeys.AssignmentKind: "role"}, 1)

		m.logger.Debug("Assigned task to role",
			log.TaskIDKey, taskID,
			log.UserIDKey, userID,
			log.RoleIDKey, roleID,
		)

		return nil
	})

	return r, err
}

// AssignWorkflowTaskToUser assigns a task pooled to a role to one of the role's members. The first
// pooled role governs who may be assigned.
func (m *Manager) AssignWorkflowTaskToUser(ctx context.Context, userID, taskID, assigneeUserID int64, comment string, vars core.Variables) (*WorkflowTask, error) {
	var r *WorkflowTask

	err := m.operation(ctx, "AssignWorkflowTaskToUser", taskID, []attribute.KeyValue{
		attribute.Int64(tracing.TaskID, taskID),
		attribute.Int64(tracing.UserID, userID),
		attribute.Int64(tracing.AssigneeID, assigneeUserID),
	}, func(ctx context.Context, span trace.Span) error {
		// The role service may share the backend's connection, so it is queried outside of the
		// mutating session.
		t, err := m.load(ctx, taskID)
		if err != nil {
			return err
		}

		roleID, err := governingRole(t)
		if err != nil {
			return err
		}

		span.SetAttributes(attribute.Int64(tracing.RoleID, roleID))

		ok, err := m.roles.HasUserRole(ctx, assigneeUserID, roleID)
		if err != nil {
			return fmt.Errorf("checking role membership: %w", err)
		}

		if !ok {
			return fmt.Errorf("%w: workflow task %d cannot be assigned to user %d", ErrUserLacksRole, taskID, assigneeUserID)
		}

		r, err = m.mutate(ctx, taskID, func(ctx context.Context, t *core.TaskInstance) error {
			current, err := governingRole(t)
			if err != nil {
				return err
			}

			if current != roleID {
				return fmt.Errorf("%w: workflow task %d was pooled to role %d", backend.ErrConflict, taskID, current)
			}

			t.ActorID = formatID(assigneeUserID)
			t.AddComment(formatID(userID), comment, m.clock.Now())

			if vars != nil {
				t.AddVariables(vars)
			}

			return nil
		})
		if err != nil {
			return err
		}

		m.metrics.Counter(metrickeys.TaskAssigned, metrics.Tags{metrickeys.AssignmentKind: "user"}, 1)

		m.logger.Debug("Assigned task to user",
			log.TaskIDKey, taskID,
			log.UserIDKey, userID,
			log.AssigneeIDKey, assigneeUserID,
			log.RoleIDKey, roleID,
		)

		return nil
	})

	return r, err
}

// governingRole returns the first pooled role of t, which decides who the task may be assigned to.
func governingRole(t *core.TaskInstance) (int64, error) {
	if len(t.PooledActors) == 0 {
		return 0, fmt.Errorf("%w: workflow task %d", ErrNotAssignedToRole, t.ID)
	}

	return actorID(t.PooledActors[0]), nil
}
