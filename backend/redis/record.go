package redis

import (
	"time"

	"github.com/cschleiden/go-workflow-tasks/core"
)

// taskRecord is the stored form of a task instance.
type taskRecord struct {
	ID                 int64          `json:"id"`
	WorkflowInstanceID int64          `json:"workflow_instance_id"`
	Name               string         `json:"name"`
	Description        string         `json:"description,omitempty"`
	Node               *core.TaskNode `json:"node,omitempty"`
	ActorID            string         `json:"actor_id,omitempty"`
	PooledActors       []string       `json:"pooled_actors,omitempty"`
	Comments           []core.Comment `json:"comments,omitempty"`
	Variables          core.Variables `json:"variables,omitempty"`
	Priority           int            `json:"priority"`
	CreatedAt          int64          `json:"created_at"`
	DueAt              *int64         `json:"due_at,omitempty"`
	EndedAt            *int64         `json:"ended_at,omitempty"`
	Transition         string         `json:"transition,omitempty"`
}

func newTaskRecord(t *core.TaskInstance) *taskRecord {
	return &taskRecord{
		ID:                 t.ID,
		WorkflowInstanceID: t.WorkflowInstanceID,
		Name:               t.Name,
		Description:        t.Description,
		Node:               t.Node,
		ActorID:            t.ActorID,
		PooledActors:       t.PooledActors,
		Comments:           t.Comments,
		Variables:          t.Variables,
		Priority:           t.Priority,
		CreatedAt:          t.CreatedAt.UnixNano(),
		DueAt:              toNanos(t.DueAt),
		EndedAt:            toNanos(t.EndedAt),
		Transition:         t.Transition,
	}
}

func (r *taskRecord) taskInstance() *core.TaskInstance {
	t := &core.TaskInstance{
		ID:                 r.ID,
		WorkflowInstanceID: r.WorkflowInstanceID,
		Name:               r.Name,
		Description:        r.Description,
		Node:               r.Node,
		ActorID:            r.ActorID,
		PooledActors:       r.PooledActors,
		Comments:           r.Comments,
		Variables:          r.Variables,
		Priority:           r.Priority,
		CreatedAt:          time.Unix(0, r.CreatedAt).UTC(),
		DueAt:              fromNanos(r.DueAt),
		EndedAt:            fromNanos(r.EndedAt),
		Transition:         r.Transition,
	}

	if t.Variables == nil {
		t.Variables = core.Variables{}
	}

	return t
}

func toNanos(t *time.Time) *int64 {
	if t == nil {
		return nil
	}

	n := t.UnixNano()
	return &n
}

func fromNanos(n *int64) *time.Time {
	if n == nil {
		return nil
	}

	t := time.Unix(0, *n).UTC()
	return &t
}
