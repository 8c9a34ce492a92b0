package backend

import (
	"testing"
	"time"

	"github.com/cschleiden/go-workflow-tasks/core"
	"github.com/stretchr/testify/require"
)

func task(id, instanceID int64, actorID string, pooled []string, ended bool) *core.TaskInstance {
	t := &core.TaskInstance{
		ID:                 id,
		WorkflowInstanceID: instanceID,
		ActorID:            actorID,
		PooledActors:       pooled,
	}

	if ended {
		now := time.Unix(id, 0)
		t.EndedAt = &now
	}

	return t
}

func Test_TaskQuery_Matches(t *testing.T) {
	tests := []struct {
		name  string
		query TaskQuery
		task  *core.TaskInstance
		want  bool
	}{
		{"any", TaskQuery{}, task(1, 1, "", nil, false), true},
		{"instance match", TaskQuery{WorkflowInstanceID: InWorkflowInstance(5)}, task(1, 5, "", nil, false), true},
		{"instance mismatch", TaskQuery{WorkflowInstanceID: InWorkflowInstance(5)}, task(1, 6, "", nil, false), false},
		{"instance zero is a scope", TaskQuery{WorkflowInstanceID: InWorkflowInstance(0)}, task(1, 6, "", nil, false), false},
		{"user match", TaskQuery{ActorIDs: []string{"7"}}, task(1, 1, "7", nil, false), true},
		{"user mismatch", TaskQuery{ActorIDs: []string{"7"}}, task(1, 1, "8", nil, false), false},
		{"role match", TaskQuery{ActorIDs: []string{"3"}, Pooled: true}, task(1, 1, "", []string{"2", "3"}, false), true},
		{"role claimed", TaskQuery{ActorIDs: []string{"3"}, Pooled: true}, task(1, 1, "7", []string{"3"}, false), false},
		{"role mismatch", TaskQuery{ActorIDs: []string{"3"}, Pooled: true}, task(1, 1, "", []string{"4"}, false), false},
		{"completed only", TaskQuery{Completion: core.CompletionCompleted}, task(1, 1, "", nil, false), false},
		{"pending only", TaskQuery{Completion: core.CompletionPending}, task(1, 1, "", nil, false), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.query.Matches(tt.task))
		})
	}
}

func Test_TaskQuery_Window(t *testing.T) {
	mk := func() []*core.TaskInstance {
		return []*core.TaskInstance{
			task(4, 1, "", nil, false),
			task(2, 1, "", nil, false),
			task(5, 1, "", nil, false),
			task(1, 1, "", nil, false),
			task(3, 1, "", nil, false),
		}
	}

	ids := func(ts []*core.TaskInstance) []int64 {
		r := []int64{}
		for _, t := range ts {
			r = append(r, t.ID)
		}
		return r
	}

	q := &TaskQuery{Start: core.All, End: core.All}
	require.Equal(t, []int64{1, 2, 3, 4, 5}, ids(q.Window(mk())))

	q = &TaskQuery{Start: 0, End: 2}
	require.Equal(t, []int64{1, 2}, ids(q.Window(mk())))

	q = &TaskQuery{Start: 2, End: 4}
	require.Equal(t, []int64{3, 4}, ids(q.Window(mk())))

	q = &TaskQuery{Start: 4, End: 10}
	require.Equal(t, []int64{5}, ids(q.Window(mk())))

	q = &TaskQuery{Start: 7, End: 10}
	require.Equal(t, []int64{}, ids(q.Window(mk())))

	q = &TaskQuery{Start: 1, End: core.All, OrderBy: core.NewOrderBy(core.OrderByID, false)}
	require.Equal(t, []int64{4, 3, 2, 1}, ids(q.Window(mk())))
}

func Test_TaskQuery_Limits(t *testing.T) {
	offset, limit := (&TaskQuery{Start: 2, End: 4}).Limits()
	require.Equal(t, 2, offset)
	require.Equal(t, 2, limit)

	offset, limit = (&TaskQuery{Start: core.All, End: 3}).Limits()
	require.Equal(t, 0, offset)
	require.Equal(t, 3, limit)

	offset, limit = (&TaskQuery{Start: 5, End: 3}).Limits()
	require.Equal(t, 5, offset)
	require.Equal(t, 0, limit)
}
