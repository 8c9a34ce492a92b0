package roles

import (
	"context"
	"sync"
)

type membership struct {
	userID int64
	roleID int64
}

// Static is an in-memory Store.
type Static struct {
	mu sync.RWMutex
	m  map[membership]struct{}
}

var _ Store = (*Static)(nil)

func NewStatic() *Static {
	return &Static{
		m: make(map[membership]struct{}),
	}
}

func (s *Static) HasUserRole(_ context.Context, userID, roleID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.m[membership{userID, roleID}]
	return ok, nil
}

func (s *Static) GrantRole(_ context.Context, userID, roleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.m[membership{userID, roleID}] = struct{}{}
	return nil
}

func (s *Static) RevokeRole(_ context.Context, userID, roleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.m, membership{userID, roleID})
	return nil
}
