package test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cschleiden/go-workflow-tasks/backend"
	"github.com/cschleiden/go-workflow-tasks/core"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var reviewNode = &core.TaskNode{
	Name: "review",
	Transitions: []core.Transition{
		{Name: "approve", To: "approved"},
		{Name: "reject", To: "rejected"},
	},
}

// BackendTest runs the shared backend conformance suite. setup is called once per test case.
func BackendTest(t *testing.T, setup func(options ...backend.BackendOption) TestBackend, teardown func(b TestBackend)) {
	tests := []struct {
		name string
		f    func(t *testing.T, ctx context.Context, b TestBackend)
	}{
		{
			name: "CreateSession_UniqueIDs",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				s1, err := b.CreateSession(ctx)
				require.NoError(t, err)
				defer s1.Close()

				require.NoError(t, s1.Close())

				s2, err := b.CreateSession(ctx)
				require.NoError(t, err)
				defer s2.Close()

				require.NotEmpty(t, s1.ID())
				require.NotEqual(t, s1.ID(), s2.ID())
			},
		},
		{
			name: "LoadTaskInstance_NotFound",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				s, err := b.CreateSession(ctx)
				require.NoError(t, err)
				defer s.Close()

				_, err = s.LoadTaskInstance(ctx, 4711)
				require.ErrorIs(t, err, backend.ErrTaskNotFound)
			},
		},
		{
			name: "SaveTaskInstance_InsertsAndRoundtrips",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				due := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

				ti := core.NewTaskInstance(7, "review", reviewNode, time.Date(2024, 4, 1, 9, 30, 0, 0, time.UTC))
				ti.Description = "Review the request"
				ti.Priority = 3
				ti.DueAt = &due
				ti.SetPooledActors("30", "20")
				ti.AddComment("1", "created", time.Date(2024, 4, 1, 9, 30, 0, 0, time.UTC))
				ti.AddVariables(core.Variables{"amount": core.IntValue(500), "reason": core.StringValue("travel")})

				id := createTask(t, ctx, b, ti)
				require.NotZero(t, id)

				loaded := loadTask(t, ctx, b, id)
				require.Equal(t, id, loaded.ID)
				require.Equal(t, int64(7), loaded.WorkflowInstanceID)
				require.Equal(t, "review", loaded.Name)
				require.Equal(t, "Review the request", loaded.Description)
				require.Equal(t, reviewNode, loaded.Node)
				require.Empty(t, loaded.ActorID)
				require.Equal(t, []string{"30", "20"}, loaded.PooledActors)
				require.Len(t, loaded.Comments, 1)
				require.Equal(t, "created", loaded.Comments[0].Message)
				require.Equal(t, "1", loaded.Comments[0].ActorID)
				require.Equal(t, core.Variables{"amount": core.IntValue(500), "reason": core.StringValue("travel")}, loaded.Variables)
				require.Equal(t, 3, loaded.Priority)
				require.True(t, ti.CreatedAt.Equal(loaded.CreatedAt))
				require.NotNil(t, loaded.DueAt)
				require.True(t, due.Equal(*loaded.DueAt))
				require.Nil(t, loaded.EndedAt)
				require.False(t, loaded.Ended())
			},
		},
		{
			name: "SaveTaskInstance_AssignsDistinctIDs",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				id1 := createTask(t, ctx, b, core.NewTaskInstance(1, "a", reviewNode, time.Now()))
				id2 := createTask(t, ctx, b, core.NewTaskInstance(1, "b", reviewNode, time.Now()))

				require.NotEqual(t, id1, id2)
			},
		},
		{
			name: "SaveTaskInstance_UpdatesExisting",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				ti := core.NewTaskInstance(1, "review", reviewNode, time.Now())
				ti.SetPooledActors("10")
				id := createTask(t, ctx, b, ti)

				s, err := b.CreateSession(ctx)
				require.NoError(t, err)
				defer s.Close()

				loaded, err := s.LoadTaskInstance(ctx, id)
				require.NoError(t, err)

				ended := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
				loaded.ActorID = "5"
				loaded.SetPooledActors("11", "12")
				loaded.AddComment("5", "done", ended)
				loaded.AddVariables(core.Variables{"approved": core.BoolValue(true)})
				require.NoError(t, loaded.EndWithTransition("reject", ended))

				require.NoError(t, s.SaveTaskInstance(ctx, loaded))
				require.NoError(t, s.Commit(ctx))

				reloaded := loadTask(t, ctx, b, id)
				require.Equal(t, "5", reloaded.ActorID)
				require.Equal(t, []string{"11", "12"}, reloaded.PooledActors)
				require.Len(t, reloaded.Comments, 1)
				require.Equal(t, core.Variables{"approved": core.BoolValue(true)}, reloaded.Variables)
				require.True(t, reloaded.Ended())
				require.True(t, ended.Equal(*reloaded.EndedAt))
				require.Equal(t, "reject", reloaded.Transition)
			},
		},
		{
			name: "Session_UncommittedChangesAreDiscarded",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				ti := core.NewTaskInstance(1, "review", reviewNode, time.Now())
				ti.SetPooledActors("10")
				id := createTask(t, ctx, b, ti)

				s, err := b.CreateSession(ctx)
				require.NoError(t, err)

				loaded, err := s.LoadTaskInstance(ctx, id)
				require.NoError(t, err)

				loaded.ActorID = "99"
				require.NoError(t, s.SaveTaskInstance(ctx, loaded))
				require.NoError(t, s.Close())

				reloaded := loadTask(t, ctx, b, id)
				require.Empty(t, reloaded.ActorID)
			},
		},
		{
			name: "Session_UncommittedInsertIsDiscarded",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				s, err := b.CreateSession(ctx)
				require.NoError(t, err)

				ti := core.NewTaskInstance(1, "review", reviewNode, time.Now())
				require.NoError(t, s.SaveTaskInstance(ctx, ti))
				require.NotZero(t, ti.ID)
				require.NoError(t, s.Close())

				s, err = b.CreateSession(ctx)
				require.NoError(t, err)
				defer s.Close()

				_, err = s.LoadTaskInstance(ctx, ti.ID)
				require.ErrorIs(t, err, backend.ErrTaskNotFound)
			},
		},
		{
			name: "Session_ConcurrentSessionsCommitDifferentTasks",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				ids := []int64{}
				for _, name := range []string{"first", "second"} {
					ti := core.NewTaskInstance(1, name, reviewNode, time.Now())
					ti.SetPooledActors("10")
					ids = append(ids, createTask(t, ctx, b, ti))
				}

				var g errgroup.Group
				for i, id := range ids {
					g.Go(func() error {
						s, err := b.CreateSession(ctx)
						if err != nil {
							return err
						}
						defer s.Close()

						ti, err := s.LoadTaskInstance(ctx, id)
						if err != nil {
							return err
						}

						ti.ActorID = strconv.Itoa(i + 1)
						if err := s.SaveTaskInstance(ctx, ti); err != nil {
							return err
						}

						return s.Commit(ctx)
					})
				}

				require.NoError(t, g.Wait())

				require.Equal(t, "1", loadTask(t, ctx, b, ids[0]).ActorID)
				require.Equal(t, "2", loadTask(t, ctx, b, ids[1]).ActorID)
			},
		},
		{
			name: "Session_ClosedRejectsOperations",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				s, err := b.CreateSession(ctx)
				require.NoError(t, err)
				require.NoError(t, s.Close())
				require.NoError(t, s.Close())

				_, err = s.LoadTaskInstance(ctx, 1)
				require.ErrorIs(t, err, backend.ErrSessionClosed)

				err = s.Commit(ctx)
				require.ErrorIs(t, err, backend.ErrSessionClosed)
			},
		},
		{
			name: "Session_CommitTwiceErrors",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				s, err := b.CreateSession(ctx)
				require.NoError(t, err)
				defer s.Close()

				require.NoError(t, s.Commit(ctx))
				require.ErrorIs(t, s.Commit(ctx), backend.ErrSessionCommitted)
				require.NoError(t, s.Close())
			},
		},
		{
			name: "FindTaskInstances_Filters",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				ids := seedTasks(t, ctx, b)

				tests := []struct {
					name  string
					query backend.TaskQuery
					want  []int64
				}{
					{"by user", backend.TaskQuery{ActorIDs: []string{"1"}, Start: core.All, End: core.All}, []int64{ids[1], ids[2]}},
					{"by user pending", backend.TaskQuery{ActorIDs: []string{"1"}, Completion: core.CompletionPending, Start: core.All, End: core.All}, []int64{ids[1]}},
					{"by user completed", backend.TaskQuery{ActorIDs: []string{"1"}, Completion: core.CompletionCompleted, Start: core.All, End: core.All}, []int64{ids[2]}},
					{"by role", backend.TaskQuery{ActorIDs: []string{"100"}, Pooled: true, Start: core.All, End: core.All}, []int64{ids[0], ids[4]}},
					{"by other role", backend.TaskQuery{ActorIDs: []string{"200"}, Pooled: true, Start: core.All, End: core.All}, []int64{ids[3], ids[4]}},
					{"by roles", backend.TaskQuery{ActorIDs: []string{"100", "200"}, Pooled: true, Start: core.All, End: core.All}, []int64{ids[0], ids[3], ids[4]}},
					{"by instance", backend.TaskQuery{WorkflowInstanceID: backend.InWorkflowInstance(2), Start: core.All, End: core.All}, []int64{ids[3], ids[4]}},
					{"by instance pending", backend.TaskQuery{WorkflowInstanceID: backend.InWorkflowInstance(1), Completion: core.CompletionPending, Start: core.All, End: core.All}, []int64{ids[0], ids[1]}},
					{"no actors", backend.TaskQuery{ActorIDs: []string{}, Start: core.All, End: core.All}, []int64{}},
					{"instance zero", backend.TaskQuery{WorkflowInstanceID: backend.InWorkflowInstance(0), Start: core.All, End: core.All}, []int64{}},
					{"any instance", backend.TaskQuery{Start: core.All, End: core.All}, ids},
				}

				s, err := b.CreateSession(ctx)
				require.NoError(t, err)
				defer s.Close()

				for _, tt := range tests {
					tasks, err := s.FindTaskInstances(ctx, &tt.query)
					require.NoError(t, err, tt.name)
					require.Equal(t, tt.want, taskIDs(tasks), tt.name)

					count, err := s.CountTaskInstances(ctx, &tt.query)
					require.NoError(t, err, tt.name)
					require.Equal(t, len(tt.want), count, tt.name)
				}
			},
		},
		{
			name: "FindTaskInstances_ReturnsPooledActors",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				ids := seedTasks(t, ctx, b)

				s, err := b.CreateSession(ctx)
				require.NoError(t, err)
				defer s.Close()

				tasks, err := s.FindTaskInstances(ctx, &backend.TaskQuery{WorkflowInstanceID: backend.InWorkflowInstance(2), Start: core.All, End: core.All})
				require.NoError(t, err)
				require.Len(t, tasks, 2)
				require.Equal(t, ids[4], tasks[1].ID)
				require.Equal(t, []string{"200", "100"}, tasks[1].PooledActors)
			},
		},
		{
			name: "CountTaskInstances_CompletionAddsUp",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				seedTasks(t, ctx, b)

				s, err := b.CreateSession(ctx)
				require.NoError(t, err)
				defer s.Close()

				queries := []backend.TaskQuery{
					{ActorIDs: []string{"1"}},
					{ActorIDs: []string{"100"}, Pooled: true},
					{WorkflowInstanceID: backend.InWorkflowInstance(1)},
					{},
				}

				for _, q := range queries {
					count := func(c core.Completion) int {
						q := q
						q.Completion = c
						n, err := s.CountTaskInstances(ctx, &q)
						require.NoError(t, err)
						return n
					}

					require.Equal(t, count(core.CompletionAny), count(core.CompletionCompleted)+count(core.CompletionPending))
				}
			},
		},
		{
			name: "FindTaskInstances_PaginatesWithoutOverlap",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				created := []int64{}
				for i := 0; i < 5; i++ {
					ti := core.NewTaskInstance(9, "task", reviewNode, time.Now())
					ti.ActorID = "42"
					created = append(created, createTask(t, ctx, b, ti))
				}

				s, err := b.CreateSession(ctx)
				require.NoError(t, err)
				defer s.Close()

				page := func(start, end int) []int64 {
					tasks, err := s.FindTaskInstances(ctx, &backend.TaskQuery{ActorIDs: []string{"42"}, Start: start, End: end})
					require.NoError(t, err)
					return taskIDs(tasks)
				}

				first := page(0, 2)
				second := page(2, 4)
				third := page(4, 6)

				require.Equal(t, created[0:2], first)
				require.Equal(t, created[2:4], second)
				require.Equal(t, created[4:5], third)
				require.Equal(t, []int64{}, page(6, 8))
				require.Equal(t, created[3:], page(3, core.All))
				require.Equal(t, created, page(core.All, core.All))
			},
		},
		{
			name: "FindTaskInstances_OrdersBy",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				d1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
				d2 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

				mk := func(name string, due *time.Time, priority int) int64 {
					ti := core.NewTaskInstance(11, name, reviewNode, time.Now())
					ti.DueAt = due
					ti.Priority = priority
					return createTask(t, ctx, b, ti)
				}

				a := mk("b-task", &d2, 1)
				bb := mk("a-task", nil, 5)
				c := mk("c-task", &d1, 1)

				s, err := b.CreateSession(ctx)
				require.NoError(t, err)
				defer s.Close()

				find := func(ob *core.OrderBy) []int64 {
					tasks, err := s.FindTaskInstances(ctx, &backend.TaskQuery{WorkflowInstanceID: backend.InWorkflowInstance(11), Start: core.All, End: core.All, OrderBy: ob})
					require.NoError(t, err)
					return taskIDs(tasks)
				}

				require.Equal(t, []int64{a, bb, c}, find(nil))
				require.Equal(t, []int64{bb, a, c}, find(core.NewOrderBy(core.OrderByName, true)))
				require.Equal(t, []int64{c, a, bb}, find(core.NewOrderBy(core.OrderByName, false)))
				require.Equal(t, []int64{bb, c, a}, find(core.NewOrderBy(core.OrderByDueDate, true)))
				require.Equal(t, []int64{bb, a, c}, find(core.NewOrderBy(core.OrderByPriority, false)))
			},
		},
		{
			name: "Roles_GrantCheckRevoke",
			f: func(t *testing.T, ctx context.Context, b TestBackend) {
				ok, err := b.HasUserRole(ctx, 1, 10)
				require.NoError(t, err)
				require.False(t, ok)

				require.NoError(t, b.GrantRole(ctx, 1, 10))
				require.NoError(t, b.GrantRole(ctx, 1, 10))

				ok, err = b.HasUserRole(ctx, 1, 10)
				require.NoError(t, err)
				require.True(t, ok)

				ok, err = b.HasUserRole(ctx, 1, 11)
				require.NoError(t, err)
				require.False(t, ok)

				require.NoError(t, b.RevokeRole(ctx, 1, 10))

				ok, err = b.HasUserRole(ctx, 1, 10)
				require.NoError(t, err)
				require.False(t, ok)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := setup(backend.WithClock(clock.NewMock()))
			ctx := context.Background()

			tt.f(t, ctx, b)

			if teardown != nil {
				teardown(b)
			}
		})
	}
}

// seedTasks creates five tasks:
//
//	0: instance 1, pooled [100], unclaimed, pending
//	1: instance 1, actor 1, pooled [100], pending
//	2: instance 1, actor 1, completed
//	3: instance 2, pooled [200], unclaimed, pending
//	4: instance 2, pooled [200, 100], unclaimed, pending
func seedTasks(t *testing.T, ctx context.Context, b backend.Backend) []int64 {
	t.Helper()

	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	t0 := core.NewTaskInstance(1, "t0", reviewNode, now)
	t0.SetPooledActors("100")

	t1 := core.NewTaskInstance(1, "t1", reviewNode, now)
	t1.SetPooledActors("100")
	t1.ActorID = "1"

	t2 := core.NewTaskInstance(1, "t2", reviewNode, now)
	t2.ActorID = "1"
	require.NoError(t, t2.End(now))

	t3 := core.NewTaskInstance(2, "t3", reviewNode, now)
	t3.SetPooledActors("200")

	t4 := core.NewTaskInstance(2, "t4", reviewNode, now)
	t4.SetPooledActors("200", "100")

	ids := []int64{}
	for _, ti := range []*core.TaskInstance{t0, t1, t2, t3, t4} {
		ids = append(ids, createTask(t, ctx, b, ti))
	}

	return ids
}

func createTask(t *testing.T, ctx context.Context, b backend.Backend, ti *core.TaskInstance) int64 {
	t.Helper()

	s, err := b.CreateSession(ctx)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SaveTaskInstance(ctx, ti))
	require.NoError(t, s.Commit(ctx))

	return ti.ID
}

func loadTask(t *testing.T, ctx context.Context, b backend.Backend, id int64) *core.TaskInstance {
	t.Helper()

	s, err := b.CreateSession(ctx)
	require.NoError(t, err)
	defer s.Close()

	ti, err := s.LoadTaskInstance(ctx, id)
	require.NoError(t, err)

	return ti
}

func taskIDs(tasks []*core.TaskInstance) []int64 {
	ids := make([]int64, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}

	return ids
}
