package taskmanager

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cschleiden/go-workflow-tasks/backend"
	"github.com/cschleiden/go-workflow-tasks/backend/sqlite"
	"github.com/cschleiden/go-workflow-tasks/core"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func Test_Manager_ConcurrentClaimAndComplete(t *testing.T) {
	tests := []struct {
		name string
		open func(opts ...backend.BackendOption) testBackend
	}{
		{
			name: "in-memory",
			open: func(opts ...backend.BackendOption) testBackend {
				return sqlite.NewInMemoryBackend(sqlite.WithBackendOptions(opts...))
			},
		},
		{
			name: "file",
			open: func(opts ...backend.BackendOption) testBackend {
				return sqlite.NewSqliteBackend(filepath.Join(t.TempDir(), "tasks.db"), sqlite.WithBackendOptions(opts...))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnvWith(t, tt.open)
			ctx := context.Background()

			const workers = 8

			ids := make([]int64, workers)
			for i := range ids {
				ids[i] = e.createTask(t, int64(i%2+1), func(ti *core.TaskInstance) {
					ti.SetPooledActors(formatID(approvers))
				})
			}

			g, gctx := errgroup.WithContext(ctx)
			for _, id := range ids {
				g.Go(func() error {
					if _, err := e.m.AssignWorkflowTaskToUser(gctx, clerk, id, reviewer, "mine", nil); err != nil {
						return err
					}

					_, err := e.m.CompleteWorkflowTask(gctx, reviewer, id, "approve", "done", nil)
					return err
				})
			}

			require.NoError(t, g.Wait())

			for _, id := range ids {
				wt := e.get(t, id)
				require.True(t, wt.Completed)
				require.Equal(t, reviewer, wt.AssigneeUserID)
				require.Equal(t, "approve", wt.Transition)
			}

			count, err := e.m.GetWorkflowTaskCountByUser(ctx, reviewer, core.CompletionCompleted)
			require.NoError(t, err)
			require.Equal(t, workers, count)

			count, err = e.m.GetWorkflowTaskCountByRole(ctx, approvers, core.CompletionPending)
			require.NoError(t, err)
			require.Zero(t, count)
		})
	}
}
