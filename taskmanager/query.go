package taskmanager

import (
	"context"
	"fmt"

	"github.com/cschleiden/go-workflow-tasks/backend"
	"github.com/cschleiden/go-workflow-tasks/core"
	"github.com/cschleiden/go-workflow-tasks/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// GetWorkflowTask returns a snapshot of the task. No ownership check is performed.
func (m *Manager) GetWorkflowTask(ctx context.Context, taskID int64) (*WorkflowTask, error) {
	var r *WorkflowTask

	err := m.operation(ctx, "GetWorkflowTask", taskID, []attribute.KeyValue{
		attribute.Int64(tracing.TaskID, taskID),
	}, func(ctx context.Context, span trace.Span) error {
		t, err := m.load(ctx, taskID)
		if err != nil {
			return err
		}

		r = newWorkflowTask(t)

		return nil
	})

	return r, err
}

// GetWorkflowTaskCountByRole counts unclaimed tasks pooled to the role.
func (m *Manager) GetWorkflowTaskCountByRole(ctx context.Context, roleID int64, completion core.Completion) (int, error) {
	return m.getWorkflowTaskCount(ctx, "GetWorkflowTaskCountByRole", &backend.TaskQuery{
		ActorIDs:   []string{formatID(roleID)},
		Pooled:     true,
		Completion: completion,
	}, attribute.Int64(tracing.RoleID, roleID))
}

// GetWorkflowTaskCountByUser counts tasks directly assigned to the user.
func (m *Manager) GetWorkflowTaskCountByUser(ctx context.Context, userID int64, completion core.Completion) (int, error) {
	return m.getWorkflowTaskCount(ctx, "GetWorkflowTaskCountByUser", &backend.TaskQuery{
		ActorIDs:   []string{formatID(userID)},
		Completion: completion,
	}, attribute.Int64(tracing.UserID, userID))
}

// GetWorkflowTaskCountByWorkflowInstance counts the tasks of one workflow instance regardless of
// their assignment.
func (m *Manager) GetWorkflowTaskCountByWorkflowInstance(ctx context.Context, workflowInstanceID int64, completion core.Completion) (int, error) {
	return m.getWorkflowTaskCount(ctx, "GetWorkflowTaskCountByWorkflowInstance", &backend.TaskQuery{
		WorkflowInstanceID: backend.InWorkflowInstance(workflowInstanceID),
		Completion:         completion,
	}, attribute.Int64(tracing.WorkflowInstanceID, workflowInstanceID))
}

// GetWorkflowTasksByRole lists unclaimed tasks pooled to the role within the window [start, end).
// Pass core.All for both bounds to list everything. A nil orderBy orders by id.
func (m *Manager) GetWorkflowTasksByRole(ctx context.Context, roleID int64, completion core.Completion, start, end int, orderBy *core.OrderBy) ([]*WorkflowTask, error) {
	return m.getWorkflowTasks(ctx, "GetWorkflowTasksByRole", &backend.TaskQuery{
		ActorIDs:   []string{formatID(roleID)},
		Pooled:     true,
		Completion: completion,
		Start:      start,
		End:        end,
		OrderBy:    orderBy,
	}, attribute.Int64(tracing.RoleID, roleID))
}

// GetWorkflowTasksByUser lists tasks directly assigned to the user within the window [start, end).
func (m *Manager) GetWorkflowTasksByUser(ctx context.Context, userID int64, completion core.Completion, start, end int, orderBy *core.OrderBy) ([]*WorkflowTask, error) {
	return m.getWorkflowTasks(ctx, "GetWorkflowTasksByUser", &backend.TaskQuery{
		ActorIDs:   []string{formatID(userID)},
		Completion: completion,
		Start:      start,
		End:        end,
		OrderBy:    orderBy,
	}, attribute.Int64(tracing.UserID, userID))
}

// GetWorkflowTasksByWorkflowInstance lists the tasks of one workflow instance within the window
// [start, end).
func (m *Manager) GetWorkflowTasksByWorkflowInstance(ctx context.Context, workflowInstanceID int64, completion core.Completion, start, end int, orderBy *core.OrderBy) ([]*WorkflowTask, error) {
	return m.getWorkflowTasks(ctx, "GetWorkflowTasksByWorkflowInstance", &backend.TaskQuery{
		WorkflowInstanceID: backend.InWorkflowInstance(workflowInstanceID),
		Completion:         completion,
		Start:              start,
		End:                end,
		OrderBy:            orderBy,
	}, attribute.Int64(tracing.WorkflowInstanceID, workflowInstanceID))
}

// CountWorkflowTasks counts the tasks matching an arbitrary query. Pagination is ignored.
func (m *Manager) CountWorkflowTasks(ctx context.Context, q *backend.TaskQuery) (int, error) {
	return m.getWorkflowTaskCount(ctx, "CountWorkflowTasks", q)
}

// FindWorkflowTasks lists the tasks matching an arbitrary query. Set Start and End to core.All to
// list all matches.
func (m *Manager) FindWorkflowTasks(ctx context.Context, q *backend.TaskQuery) ([]*WorkflowTask, error) {
	return m.getWorkflowTasks(ctx, "FindWorkflowTasks", q)
}

func (m *Manager) getWorkflowTaskCount(ctx context.Context, name string, q *backend.TaskQuery, attrs ...attribute.KeyValue) (int, error) {
	var count int

	attrs = append(attrs, attribute.String(tracing.Completion, q.Completion.String()))

	err := m.operation(ctx, name, 0, attrs, func(ctx context.Context, span trace.Span) error {
		return m.withSession(ctx, func(s backend.Session) error {
			var err error
			count, err = s.CountTaskInstances(ctx, q)
			if err != nil {
				return fmt.Errorf("counting task instances: %w", err)
			}

			span.SetAttributes(attribute.Int(tracing.Count, count))

			return nil
		})
	})

	return count, err
}

func (m *Manager) getWorkflowTasks(ctx context.Context, name string, q *backend.TaskQuery, attrs ...attribute.KeyValue) ([]*WorkflowTask, error) {
	var r []*WorkflowTask

	attrs = append(attrs,
		attribute.String(tracing.Completion, q.Completion.String()),
		attribute.Int(tracing.PageStart, q.Start),
		attribute.Int(tracing.PageEnd, q.End),
	)

	err := m.operation(ctx, name, 0, attrs, func(ctx context.Context, span trace.Span) error {
		return m.withSession(ctx, func(s backend.Session) error {
			tasks, err := s.FindTaskInstances(ctx, q)
			if err != nil {
				return fmt.Errorf("finding task instances: %w", err)
			}

			r = toWorkflowTasks(tasks)
			span.SetAttributes(attribute.Int(tracing.Count, len(r)))

			return nil
		})
	})

	return r, err
}
