package taskmanager

import (
	"strconv"
	"time"

	"github.com/cschleiden/go-workflow-tasks/core"
)

// WorkflowTask is a snapshot of a task instance. Snapshots share no state with the engine record
// they were built from.
type WorkflowTask struct {
	ID                 int64  `json:"id"`
	WorkflowInstanceID int64  `json:"workflow_instance_id"`
	Name               string `json:"name"`
	Description        string `json:"description,omitempty"`

	// AssigneeUserID is the user the task is assigned to, 0 if unassigned.
	AssigneeUserID int64 `json:"assignee_user_id,omitempty"`

	// AssigneeRoleIDs are the pooled roles, in assignment order.
	AssigneeRoleIDs []int64 `json:"assignee_role_ids,omitempty"`

	Comments  []core.Comment `json:"comments,omitempty"`
	Variables core.Variables `json:"variables,omitempty"`

	// TransitionNames are the names of the transitions leaving the task's node.
	TransitionNames []string `json:"transition_names"`

	Priority int `json:"priority"`

	CreateDate     time.Time  `json:"create_date"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	CompletionDate *time.Time `json:"completion_date,omitempty"`

	Completed bool `json:"completed"`

	// Transition is the transition taken when the task was completed.
	Transition string `json:"transition,omitempty"`
}

func newWorkflowTask(t *core.TaskInstance) *WorkflowTask {
	t = t.Clone()

	roleIDs := make([]int64, 0, len(t.PooledActors))
	for _, pa := range t.PooledActors {
		roleIDs = append(roleIDs, actorID(pa))
	}

	return &WorkflowTask{
		ID:                 t.ID,
		WorkflowInstanceID: t.WorkflowInstanceID,
		Name:               t.Name,
		Description:        t.Description,
		AssigneeUserID:     actorID(t.ActorID),
		AssigneeRoleIDs:    roleIDs,
		Comments:           t.Comments,
		Variables:          t.Variables,
		TransitionNames:    t.Node.TransitionNames(),
		Priority:           t.Priority,
		CreateDate:         t.CreatedAt,
		DueDate:            t.DueAt,
		CompletionDate:     t.EndedAt,
		Completed:          t.Ended(),
		Transition:         t.Transition,
	}
}

func toWorkflowTasks(tasks []*core.TaskInstance) []*WorkflowTask {
	r := make([]*WorkflowTask, 0, len(tasks))
	for _, t := range tasks {
		r = append(r, newWorkflowTask(t))
	}

	return r
}

// actorID parses an engine actor id. Ids that are not numeric read as 0.
func actorID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}

	return id
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
