package core

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

var (
	ErrTaskEnded          = errors.New("task instance is already ended")
	ErrTransitionNotFound = errors.New("task node has no leaving transition with that name")
)

// Transition is a named edge leaving a task node.
type Transition struct {
	Name string `json:"name"`

	// To is the name of the node the transition leads to.
	To string `json:"to,omitempty"`
}

// TaskNode is the node of the process definition a task instance belongs to.
type TaskNode struct {
	Name string `json:"name"`

	// Transitions are the leaving transitions, in the order they were declared.
	Transitions []Transition `json:"transitions,omitempty"`
}

// TransitionNames returns the names of the leaving transitions in declaration order.
func (n *TaskNode) TransitionNames() []string {
	if n == nil {
		return []string{}
	}

	names := make([]string, 0, len(n.Transitions))
	for _, t := range n.Transitions {
		names = append(names, t.Name)
	}

	return names
}

// DefaultTransition returns the transition taken when a task is ended without naming one.
func (n *TaskNode) DefaultTransition() (Transition, bool) {
	if n == nil || len(n.Transitions) == 0 {
		return Transition{}, false
	}

	return n.Transitions[0], true
}

func (n *TaskNode) transition(name string) (Transition, bool) {
	if n == nil {
		return Transition{}, false
	}

	for _, t := range n.Transitions {
		if t.Name == name {
			return t, true
		}
	}

	return Transition{}, false
}

type Comment struct {
	ActorID string    `json:"actor_id,omitempty"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// TaskInstance is the engine's mutable record of one unit of human work within a
// running workflow instance.
type TaskInstance struct {
	ID                 int64
	WorkflowInstanceID int64

	Name        string
	Description string

	Node *TaskNode

	// ActorID is the directly assigned actor. Empty when the task is unassigned.
	ActorID string

	// PooledActors are the role-level assignees, in assignment order.
	PooledActors []string

	Comments  []Comment
	Variables Variables

	Priority int

	CreatedAt time.Time
	DueAt     *time.Time
	EndedAt   *time.Time

	// Transition is the name of the transition taken when the task was ended.
	Transition string
}

func NewTaskInstance(workflowInstanceID int64, name string, node *TaskNode, createdAt time.Time) *TaskInstance {
	return &TaskInstance{
		WorkflowInstanceID: workflowInstanceID,
		Name:               name,
		Node:               node,
		Variables:          Variables{},
		CreatedAt:          createdAt,
	}
}

func (t *TaskInstance) Ended() bool {
	return t.EndedAt != nil
}

// SetPooledActors replaces the pooled actors with the given ids.
func (t *TaskInstance) SetPooledActors(actorIDs ...string) {
	t.PooledActors = slices.Clone(actorIDs)
}

// AddComment records a comment. Empty messages are not recorded.
func (t *TaskInstance) AddComment(actorID, message string, at time.Time) {
	if message == "" {
		return
	}

	t.Comments = append(t.Comments, Comment{
		ActorID: actorID,
		Message: message,
		Time:    at,
	})
}

// AddVariables merges the given variables into the task's variables. Existing keys are overwritten.
func (t *TaskInstance) AddVariables(vars Variables) {
	if len(vars) == 0 {
		return
	}

	if t.Variables == nil {
		t.Variables = make(Variables, len(vars))
	}

	for k, v := range vars {
		t.Variables[k] = v
	}
}

// End ends the task via the node's default transition. Tasks on a terminal node end without a
// transition.
func (t *TaskInstance) End(at time.Time) error {
	if t.Ended() {
		return ErrTaskEnded
	}

	if tr, ok := t.Node.DefaultTransition(); ok {
		t.Transition = tr.Name
	}

	t.EndedAt = &at

	return nil
}

// EndWithTransition ends the task via the named leaving transition.
func (t *TaskInstance) EndWithTransition(name string, at time.Time) error {
	if t.Ended() {
		return ErrTaskEnded
	}

	tr, ok := t.Node.transition(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrTransitionNotFound, name)
	}

	t.Transition = tr.Name
	t.EndedAt = &at

	return nil
}

// Clone returns a deep copy of the task instance.
func (t *TaskInstance) Clone() *TaskInstance {
	c := *t

	if t.Node != nil {
		n := *t.Node
		n.Transitions = slices.Clone(t.Node.Transitions)
		c.Node = &n
	}

	c.PooledActors = slices.Clone(t.PooledActors)
	c.Comments = slices.Clone(t.Comments)
	c.Variables = t.Variables.Clone()

	if t.DueAt != nil {
		d := *t.DueAt
		c.DueAt = &d
	}

	if t.EndedAt != nil {
		e := *t.EndedAt
		c.EndedAt = &e
	}

	return &c
}
