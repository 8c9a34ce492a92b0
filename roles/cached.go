package roles

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cschleiden/go-workflow-tasks/internal/metrickeys"
	"github.com/cschleiden/go-workflow-tasks/metrics"
	"github.com/jellydator/ttlcache/v3"
)

// Cached caches answers of an underlying Service for a fixed time. Grants and revocations made
// through the Cached store invalidate the affected entry immediately; changes made elsewhere become
// visible once the entry expires.
type Cached struct {
	svc Service
	mc  metrics.Client
	c   *ttlcache.Cache[string, bool]

	// generation is bumped by every invalidation. A lookup only stores its answer if no
	// invalidation happened while it was asking svc.
	mu         sync.Mutex
	generation uint64
}

var _ Store = (*Cached)(nil)

func NewCached(svc Service, mc metrics.Client, size int, expiration time.Duration) *Cached {
	c := ttlcache.New(
		ttlcache.WithCapacity[string, bool](uint64(size)),
		ttlcache.WithTTL[string, bool](expiration),
	)

	c.OnEviction(func(ctx context.Context, er ttlcache.EvictionReason, i *ttlcache.Item[string, bool]) {
		reason := ""
		switch er {
		case ttlcache.EvictionReasonExpired:
			reason = "expired"
		case ttlcache.EvictionReasonCapacityReached:
			reason = "capacity"
		case ttlcache.EvictionReasonDeleted:
			reason = "deleted"
		}

		mc.Counter(metrickeys.RoleCacheEviction, metrics.Tags{metrickeys.EvictionReason: reason}, 1)
	})

	return &Cached{
		svc: svc,
		mc:  mc,
		c:   c,
	}
}

func (cs *Cached) HasUserRole(ctx context.Context, userID, roleID int64) (bool, error) {
	key := getKey(userID, roleID)

	if i := cs.c.Get(key); i != nil {
		cs.mc.Counter(metrickeys.RoleCacheHit, metrics.Tags{}, 1)
		return i.Value(), nil
	}

	cs.mc.Counter(metrickeys.RoleCacheMiss, metrics.Tags{}, 1)

	cs.mu.Lock()
	gen := cs.generation
	cs.mu.Unlock()

	ok, err := cs.svc.HasUserRole(ctx, userID, roleID)
	if err != nil {
		return false, err
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.generation == gen {
		cs.c.Set(key, ok, ttlcache.DefaultTTL)
		cs.mc.Gauge(metrickeys.RoleCacheSize, metrics.Tags{}, int64(cs.c.Len()))
	}

	return ok, nil
}

// GrantRole grants the role through the underlying service, which must be a Store.
func (cs *Cached) GrantRole(ctx context.Context, userID, roleID int64) error {
	store, ok := cs.svc.(Store)
	if !ok {
		return fmt.Errorf("role service %T does not support granting roles", cs.svc)
	}

	if err := store.GrantRole(ctx, userID, roleID); err != nil {
		return err
	}

	cs.Invalidate(userID, roleID)

	return nil
}

// RevokeRole revokes the role through the underlying service, which must be a Store.
func (cs *Cached) RevokeRole(ctx context.Context, userID, roleID int64) error {
	store, ok := cs.svc.(Store)
	if !ok {
		return fmt.Errorf("role service %T does not support revoking roles", cs.svc)
	}

	if err := store.RevokeRole(ctx, userID, roleID); err != nil {
		return err
	}

	cs.Invalidate(userID, roleID)

	return nil
}

// Invalidate drops a cached answer. Lookups in flight while it runs do not cache their result.
func (cs *Cached) Invalidate(userID, roleID int64) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.generation++
	cs.c.Delete(getKey(userID, roleID))
}

// StartEviction runs the cache's expiration loop until ctx is done.
func (cs *Cached) StartEviction(ctx context.Context) {
	go cs.c.Start()

	<-ctx.Done()

	cs.c.Stop()
}

func getKey(userID, roleID int64) string {
	return fmt.Sprintf("%d:%d", userID, roleID)
}
