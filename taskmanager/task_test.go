package taskmanager

import (
	"testing"
	"time"

	"github.com/cschleiden/go-workflow-tasks/core"
	"github.com/stretchr/testify/require"
)

func Test_newWorkflowTask(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ended := created.Add(time.Minute)

	ti := core.NewTaskInstance(3, "review", &core.TaskNode{
		Name: "review",
		Transitions: []core.Transition{
			{Name: "approve", To: "approved"},
			{Name: "reject", To: "rejected"},
		},
	}, created)
	ti.ID = 11
	ti.ActorID = "42"
	ti.SetPooledActors("7", "not-a-number")
	ti.AddComment("42", "ok", ended)
	ti.AddVariables(core.Variables{"amount": core.IntValue(10)})
	require.NoError(t, ti.End(ended))

	wt := newWorkflowTask(ti)
	require.Equal(t, int64(11), wt.ID)
	require.Equal(t, int64(3), wt.WorkflowInstanceID)
	require.Equal(t, int64(42), wt.AssigneeUserID)
	require.Equal(t, []int64{7, 0}, wt.AssigneeRoleIDs)
	require.Equal(t, []string{"approve", "reject"}, wt.TransitionNames)
	require.True(t, wt.Completed)
	require.Equal(t, "approve", wt.Transition)
	require.Equal(t, created, wt.CreateDate)
	require.Equal(t, ended, *wt.CompletionDate)
	require.Len(t, wt.Comments, 1)

	// Snapshot is detached from the engine record
	ti.Variables["amount"] = core.IntValue(20)
	ti.Comments[0].Message = "changed"
	*ti.EndedAt = created

	require.Equal(t, core.IntValue(10), wt.Variables["amount"])
	require.Equal(t, "ok", wt.Comments[0].Message)
	require.Equal(t, ended, *wt.CompletionDate)
}

func Test_newWorkflowTask_Unassigned(t *testing.T) {
	ti := core.NewTaskInstance(1, "end", &core.TaskNode{Name: "end"}, time.Unix(0, 0))

	wt := newWorkflowTask(ti)
	require.Zero(t, wt.AssigneeUserID)
	require.Empty(t, wt.AssigneeRoleIDs)
	require.Equal(t, []string{}, wt.TransitionNames)
	require.False(t, wt.Completed)
	require.Nil(t, wt.CompletionDate)
}
