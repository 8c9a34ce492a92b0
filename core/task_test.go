package core

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func reviewNode() *TaskNode {
	return &TaskNode{
		Name: "review",
		Transitions: []Transition{
			{Name: "approve", To: "approved"},
			{Name: "reject", To: "rejected"},
			{Name: "escalate", To: "escalation"},
		},
	}
}

func Test_TaskInstance_End_UsesDefaultTransition(t *testing.T) {
	ti := NewTaskInstance(1, "review", reviewNode(), time.Unix(0, 0))
	now := time.Unix(100, 0)

	require.NoError(t, ti.End(now))
	require.True(t, ti.Ended())
	require.Equal(t, "approve", ti.Transition)
	require.Equal(t, now, *ti.EndedAt)
}

func Test_TaskInstance_End_TerminalNode(t *testing.T) {
	ti := NewTaskInstance(1, "done", &TaskNode{Name: "done"}, time.Unix(0, 0))

	require.NoError(t, ti.End(time.Unix(100, 0)))
	require.True(t, ti.Ended())
	require.Empty(t, ti.Transition)
}

func Test_TaskInstance_EndWithTransition(t *testing.T) {
	ti := NewTaskInstance(1, "review", reviewNode(), time.Unix(0, 0))

	require.NoError(t, ti.EndWithTransition("reject", time.Unix(100, 0)))
	require.Equal(t, "reject", ti.Transition)
}

func Test_TaskInstance_EndWithTransition_Unknown(t *testing.T) {
	ti := NewTaskInstance(1, "review", reviewNode(), time.Unix(0, 0))

	err := ti.EndWithTransition("archive", time.Unix(100, 0))
	require.True(t, errors.Is(err, ErrTransitionNotFound))
	require.False(t, ti.Ended())
	require.Empty(t, ti.Transition)
}

func Test_TaskInstance_End_AlreadyEnded(t *testing.T) {
	ti := NewTaskInstance(1, "review", reviewNode(), time.Unix(0, 0))
	require.NoError(t, ti.End(time.Unix(100, 0)))

	require.ErrorIs(t, ti.End(time.Unix(200, 0)), ErrTaskEnded)
	require.ErrorIs(t, ti.EndWithTransition("reject", time.Unix(200, 0)), ErrTaskEnded)
	require.Equal(t, "approve", ti.Transition)
	require.Equal(t, time.Unix(100, 0), *ti.EndedAt)
}

func Test_TaskNode_TransitionNames(t *testing.T) {
	require.Equal(t, []string{"approve", "reject", "escalate"}, reviewNode().TransitionNames())
	require.Equal(t, []string{}, (&TaskNode{Name: "end"}).TransitionNames())

	var n *TaskNode
	require.Equal(t, []string{}, n.TransitionNames())
}

func Test_TaskInstance_AddComment_SkipsEmpty(t *testing.T) {
	ti := NewTaskInstance(1, "review", reviewNode(), time.Unix(0, 0))

	ti.AddComment("1", "", time.Unix(1, 0))
	ti.AddComment("1", "looks good", time.Unix(2, 0))

	require.Len(t, ti.Comments, 1)
	require.Equal(t, Comment{ActorID: "1", Message: "looks good", Time: time.Unix(2, 0)}, ti.Comments[0])
}

func Test_TaskInstance_AddVariables_Merges(t *testing.T) {
	ti := NewTaskInstance(1, "review", reviewNode(), time.Unix(0, 0))
	ti.Variables = nil

	ti.AddVariables(Variables{"a": IntValue(1), "b": StringValue("x")})
	ti.AddVariables(Variables{"b": StringValue("y")})
	ti.AddVariables(nil)

	require.Equal(t, Variables{"a": IntValue(1), "b": StringValue("y")}, ti.Variables)
}

func Test_TaskInstance_Clone_IsDeep(t *testing.T) {
	due := time.Unix(50, 0)
	ti := NewTaskInstance(1, "review", reviewNode(), time.Unix(0, 0))
	ti.DueAt = &due
	ti.SetPooledActors("10")
	ti.AddVariables(Variables{"a": IntValue(1)})

	c := ti.Clone()
	c.PooledActors[0] = "11"
	c.Node.Transitions[0].Name = "changed"
	c.Variables["a"] = IntValue(2)
	*c.DueAt = time.Unix(60, 0)

	require.Equal(t, []string{"10"}, ti.PooledActors)
	require.Equal(t, "approve", ti.Node.Transitions[0].Name)
	require.Equal(t, IntValue(1), ti.Variables["a"])
	require.Equal(t, time.Unix(50, 0), *ti.DueAt)
}
