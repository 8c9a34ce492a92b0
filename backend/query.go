package backend

import (
	"slices"

	"github.com/cschleiden/go-workflow-tasks/core"
)

// TaskQuery selects task instances.
type TaskQuery struct {
	// WorkflowInstanceID restricts results to one workflow instance. Nil matches any instance.
	WorkflowInstanceID *int64

	// ActorIDs restricts results to tasks assigned to one of the given actors. Nil matches any actor.
	ActorIDs []string

	// Pooled selects how ActorIDs are matched. When true, tasks match if one of their pooled actors is
	// in ActorIDs and they have not been claimed by a direct assignee. When false, the direct assignee
	// must be in ActorIDs.
	Pooled bool

	Completion core.Completion

	// Start and End describe the half-open result window [Start, End). core.All for both disables
	// pagination.
	Start int
	End   int

	// OrderBy orders results. Nil orders by ascending id.
	OrderBy *core.OrderBy
}

// InWorkflowInstance scopes a query to the given workflow instance.
func InWorkflowInstance(id int64) *int64 {
	return &id
}

// Matches evaluates the query's filters against a single task instance. Backends that cannot push
// filters down to their store use this to filter in memory.
func (q *TaskQuery) Matches(t *core.TaskInstance) bool {
	if q.WorkflowInstanceID != nil && t.WorkflowInstanceID != *q.WorkflowInstanceID {
		return false
	}

	if !q.Completion.Matches(t.Ended()) {
		return false
	}

	if q.ActorIDs == nil {
		return true
	}

	if q.Pooled {
		if t.ActorID != "" {
			return false
		}

		for _, pa := range t.PooledActors {
			if slices.Contains(q.ActorIDs, pa) {
				return true
			}
		}

		return false
	}

	return slices.Contains(q.ActorIDs, t.ActorID)
}

// Paginated returns true if the query requests a result window.
func (q *TaskQuery) Paginated() bool {
	return !(q.Start == core.All && q.End == core.All)
}

// Limits returns offset and limit for a paginated query. A negative limit means no upper bound.
func (q *TaskQuery) Limits() (offset, limit int) {
	offset = max(q.Start, 0)

	if q.End < 0 {
		return offset, -1
	}

	return offset, max(q.End-offset, 0)
}

// Window applies the query's ordering and window to an unordered result set.
func (q *TaskQuery) Window(tasks []*core.TaskInstance) []*core.TaskInstance {
	slices.SortStableFunc(tasks, q.OrderBy.Compare)

	if !q.Paginated() {
		return tasks
	}

	offset, limit := q.Limits()
	if offset >= len(tasks) {
		return []*core.TaskInstance{}
	}

	tasks = tasks[offset:]
	if limit >= 0 && limit < len(tasks) {
		tasks = tasks[:limit]
	}

	return tasks
}
