package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cschleiden/go-workflow-tasks/backend"
	"github.com/cschleiden/go-workflow-tasks/core"
	"github.com/cschleiden/go-workflow-tasks/roles"
	"github.com/cschleiden/go-workflow-tasks/taskmanager"
	"golang.org/x/sync/errgroup"
)

type store interface {
	backend.Backend
	roles.Store
}

type scenario struct {
	Tasks     int
	Instances int
	Roles     int
	Workers   int
	BatchSize int
}

type result struct {
	Seed      time.Duration
	Work      time.Duration
	Completed int
	Retries   int64
}

// Role r is held by user r+1. Role ids start at 1000.
func roleID(r int) int64 { return int64(1000 + r) }

func memberOf(role int64) int64 { return role - 1000 + 1 }

// run seeds the tasks, then lets the workers assign each task to a member of its role and complete
// it. Commits rejected because of a concurrent change are retried.
func run(ctx context.Context, b store, sc scenario) (*result, error) {
	if sc.Tasks <= 0 || sc.Instances <= 0 || sc.Roles <= 0 || sc.Workers <= 0 || sc.BatchSize <= 0 {
		return nil, errors.New("all scenario parameters must be positive")
	}

	r := &result{}

	start := time.Now()
	ids, err := seed(ctx, b, sc)
	if err != nil {
		return nil, err
	}
	r.Seed = time.Since(start)

	m := taskmanager.New(b, b)

	work := make(chan int64)
	var retries, completed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(work)

		for _, id := range ids {
			select {
			case work <- id:
			case <-gctx.Done():
				return gctx.Err()
			}
		}

		return nil
	})

	start = time.Now()

	for i := 0; i < sc.Workers; i++ {
		g.Go(func() error {
			for id := range work {
				op := func() error {
					err := process(gctx, m, id)
					if errors.Is(err, backend.ErrConflict) {
						retries.Add(1)
						return err
					}

					if err != nil {
						return backoff.Permanent(err)
					}

					return nil
				}

				bo := backoff.WithContext(backoff.NewExponentialBackOff(), gctx)
				if err := backoff.Retry(op, bo); err != nil {
					return fmt.Errorf("task %d: %w", id, err)
				}

				completed.Add(1)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.Work = time.Since(start)
	r.Completed = int(completed.Load())
	r.Retries = retries.Load()

	if err := verify(ctx, m, sc); err != nil {
		return nil, err
	}

	return r, nil
}

func seed(ctx context.Context, b store, sc scenario) ([]int64, error) {
	for i := 0; i < sc.Roles; i++ {
		if err := b.GrantRole(ctx, memberOf(roleID(i)), roleID(i)); err != nil {
			return nil, fmt.Errorf("granting role: %w", err)
		}
	}

	node := &core.TaskNode{
		Name:        "review",
		Transitions: []core.Transition{{Name: "approve"}, {Name: "reject"}},
	}

	ids := make([]int64, 0, sc.Tasks)
	now := b.Options().Clock.Now()

	for start := 0; start < sc.Tasks; start += sc.BatchSize {
		err := func() error {
			s, err := b.CreateSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			for i := start; i < min(start+sc.BatchSize, sc.Tasks); i++ {
				t := core.NewTaskInstance(int64(i%sc.Instances+1), "review", node, now)
				t.SetPooledActors(strconv.FormatInt(roleID(i%sc.Roles), 10))

				if err := s.SaveTaskInstance(ctx, t); err != nil {
					return err
				}

				ids = append(ids, t.ID)
			}

			return s.Commit(ctx)
		}()
		if err != nil {
			return nil, fmt.Errorf("seeding tasks: %w", err)
		}
	}

	return ids, nil
}

func process(ctx context.Context, m *taskmanager.Manager, id int64) error {
	t, err := m.GetWorkflowTask(ctx, id)
	if err != nil {
		return err
	}

	if t.Completed {
		return nil
	}

	if t.AssigneeUserID == 0 {
		t, err = m.AssignWorkflowTaskToUser(ctx, 0, id, memberOf(t.AssigneeRoleIDs[0]), "claimed", nil)
		if err != nil {
			return err
		}
	}

	names, err := m.GetNextTransitionNames(ctx, t.AssigneeUserID, id)
	if err != nil {
		return err
	}

	_, err = m.CompleteWorkflowTask(ctx, t.AssigneeUserID, id, names[0], "", core.Variables{
		"worker": core.StringValue("bench"),
	})

	return err
}

func verify(ctx context.Context, m *taskmanager.Manager, sc scenario) error {
	total := 0

	for i := 1; i <= sc.Instances; i++ {
		pending, err := m.GetWorkflowTaskCountByWorkflowInstance(ctx, int64(i), core.CompletionPending)
		if err != nil {
			return err
		}

		if pending != 0 {
			return fmt.Errorf("workflow instance %d has %d pending tasks", i, pending)
		}

		done, err := m.GetWorkflowTaskCountByWorkflowInstance(ctx, int64(i), core.CompletionCompleted)
		if err != nil {
			return err
		}

		total += done
	}

	if total != sc.Tasks {
		return fmt.Errorf("expected %d completed tasks, found %d", sc.Tasks, total)
	}

	return nil
}

func printCounters(w io.Writer, counters map[string]int64) {
	for _, k := range slices.Sorted(maps.Keys(counters)) {
		fmt.Fprintf(w, "%s: %d\n", k, counters[k])
	}
}
