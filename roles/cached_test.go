package roles

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cschleiden/go-workflow-tasks/internal/metrickeys"
	mi "github.com/cschleiden/go-workflow-tasks/internal/metrics"
	"github.com/cschleiden/go-workflow-tasks/metrics"
	"github.com/stretchr/testify/require"
)

type countingService struct {
	Service
	calls int
	err   error
}

func (cs *countingService) HasUserRole(ctx context.Context, userID, roleID int64) (bool, error) {
	cs.calls++
	if cs.err != nil {
		return false, cs.err
	}

	return cs.Service.HasUserRole(ctx, userID, roleID)
}

// revokingService runs during once, after it has read its answer but before returning it.
type revokingService struct {
	*Static
	during func()
}

func (rs *revokingService) HasUserRole(ctx context.Context, userID, roleID int64) (bool, error) {
	ok, err := rs.Static.HasUserRole(ctx, userID, roleID)

	if during := rs.during; during != nil {
		rs.during = nil
		during()
	}

	return ok, err
}

func Test_Cached_DoesNotCacheAnswerInvalidatedDuringLookup(t *testing.T) {
	ctx := context.Background()

	svc := &revokingService{Static: NewStatic()}
	require.NoError(t, svc.GrantRole(ctx, 1, 10))

	c := NewCached(svc, mi.NewMemoryMetricsClient(), 16, time.Minute)

	svc.during = func() {
		require.NoError(t, c.RevokeRole(ctx, 1, 10))
	}

	ok, err := c.HasUserRole(ctx, 1, 10)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = c.HasUserRole(ctx, 1, 10)
	require.NoError(t, err)
	require.False(t, ok)
}

func Test_Cached_CachesAnswers(t *testing.T) {
	ctx := context.Background()

	static := NewStatic()
	require.NoError(t, static.GrantRole(ctx, 1, 10))

	svc := &countingService{Service: static}
	mc := mi.NewMemoryMetricsClient()
	c := NewCached(svc, mc, 16, time.Minute)

	for i := 0; i < 3; i++ {
		ok, err := c.HasUserRole(ctx, 1, 10)
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := c.HasUserRole(ctx, 2, 10)
	require.NoError(t, err)
	require.False(t, ok)

	require.Equal(t, 2, svc.calls)

	counters := mc.Counters()
	require.Equal(t, int64(2), counters[mi.Key(metrickeys.RoleCacheHit, metrics.Tags{})])
	require.Equal(t, int64(2), counters[mi.Key(metrickeys.RoleCacheMiss, metrics.Tags{})])
}

func Test_Cached_DoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()

	svc := &countingService{Service: NewStatic(), err: errors.New("unavailable")}
	c := NewCached(svc, metrics.Discard, 16, time.Minute)

	_, err := c.HasUserRole(ctx, 1, 10)
	require.Error(t, err)

	svc.err = nil
	ok, err := c.HasUserRole(ctx, 1, 10)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 2, svc.calls)
}

func Test_Cached_GrantInvalidates(t *testing.T) {
	ctx := context.Background()

	c := NewCached(NewStatic(), metrics.Discard, 16, time.Minute)

	ok, err := c.HasUserRole(ctx, 1, 10)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.GrantRole(ctx, 1, 10))

	ok, err = c.HasUserRole(ctx, 1, 10)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, c.RevokeRole(ctx, 1, 10))

	ok, err = c.HasUserRole(ctx, 1, 10)
	require.NoError(t, err)
	require.False(t, ok)
}

type readOnlyService struct{}

func (readOnlyService) HasUserRole(context.Context, int64, int64) (bool, error) { return true, nil }

func Test_Cached_GrantRequiresStore(t *testing.T) {
	c := NewCached(readOnlyService{}, metrics.Discard, 16, time.Minute)

	require.Error(t, c.GrantRole(context.Background(), 1, 10))
	require.Error(t, c.RevokeRole(context.Background(), 1, 10))
}
