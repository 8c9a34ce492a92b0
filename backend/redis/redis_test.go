package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cschleiden/go-workflow-tasks/backend"
	"github.com/cschleiden/go-workflow-tasks/backend/test"
	"github.com/cschleiden/go-workflow-tasks/core"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const (
	address  = "localhost:6379"
	user     = ""
	password = "RedisPassw0rd"
)

func Test_RedisBackend(t *testing.T) {
	if testing.Short() {
		t.Skip()
	}

	client := getClient()
	setup := getCreateBackend(client)

	test.BackendTest(t, setup, nil)
}

func Test_RedisBackend_ConcurrentCommitConflicts(t *testing.T) {
	if testing.Short() {
		t.Skip()
	}

	ctx := context.Background()
	b := getCreateBackend(getClient())()

	s, err := b.CreateSession(ctx)
	require.NoError(t, err)

	ti := core.NewTaskInstance(1, "review", &core.TaskNode{Name: "review"}, time.Now())
	require.NoError(t, s.SaveTaskInstance(ctx, ti))
	require.NoError(t, s.Commit(ctx))
	require.NoError(t, s.Close())

	s1, err := b.CreateSession(ctx)
	require.NoError(t, err)
	defer s1.Close()

	s2, err := b.CreateSession(ctx)
	require.NoError(t, err)
	defer s2.Close()

	t1, err := s1.LoadTaskInstance(ctx, ti.ID)
	require.NoError(t, err)

	t2, err := s2.LoadTaskInstance(ctx, ti.ID)
	require.NoError(t, err)

	t1.ActorID = "1"
	require.NoError(t, s1.SaveTaskInstance(ctx, t1))
	require.NoError(t, s1.Commit(ctx))

	t2.ActorID = "2"
	require.NoError(t, s2.SaveTaskInstance(ctx, t2))
	require.ErrorIs(t, s2.Commit(ctx), backend.ErrConflict)
}

func Test_RedisBackend_KeyPrefix(t *testing.T) {
	if testing.Short() {
		t.Skip()
	}

	ctx := context.Background()
	client := getClient()
	getCreateBackend(client)()

	b, err := NewRedisBackend(client, WithKeyPrefix("tenant"))
	require.NoError(t, err)

	require.NoError(t, b.GrantRole(ctx, 1, 2))

	keys, err := client.Keys(ctx, "*").Result()
	require.NoError(t, err)
	require.Equal(t, []string{"tenant:user-roles:1"}, keys)
}

func getClient() redis.UniversalClient {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{address},
		Username: user,
		Password: password,
		DB:       0,
	})

	return client
}

func getCreateBackend(client redis.UniversalClient) func(options ...backend.BackendOption) test.TestBackend {
	return func(options ...backend.BackendOption) test.TestBackend {
		// Flush database
		if err := client.FlushDB(context.Background()).Err(); err != nil {
			panic(err)
		}

		r, err := client.Keys(context.Background(), "*").Result()
		if err != nil {
			panic(err)
		}

		if len(r) > 0 {
			panic("Keys should've been empty" + strings.Join(r, ", "))
		}

		b, err := NewRedisBackend(client, WithBackendOptions(options...))
		if err != nil {
			panic(err)
		}

		return b
	}
}
