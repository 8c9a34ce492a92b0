package redis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"

	"github.com/cschleiden/go-workflow-tasks/backend"
	"github.com/cschleiden/go-workflow-tasks/core"
	"github.com/redis/go-redis/v9"
)

type pendingSave struct {
	task *core.TaskInstance

	// insert is set for task instances that did not exist before this session.
	insert bool
}

// session buffers saves and writes them in a single MULTI/EXEC on commit. Every task instance the
// session touched is re-checked under WATCH, so a concurrent change aborts the commit.
type session struct {
	id      string
	rdb     redis.UniversalClient
	keys    *keys
	options *backend.Options
	logger  *slog.Logger

	// loaded holds the stored payload of each task instance as first read by this session
	loaded  map[int64][]byte
	pending map[int64]*pendingSave

	committed bool
	closed    bool
}

var _ backend.Session = (*session)(nil)

func (s *session) ID() string {
	return s.id
}

func (s *session) check() error {
	if s.closed {
		return backend.ErrSessionClosed
	}

	if s.committed {
		return backend.ErrSessionCommitted
	}

	return nil
}

func (s *session) LoadTaskInstance(ctx context.Context, id int64) (*core.TaskInstance, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	if p, ok := s.pending[id]; ok {
		return p.task.Clone(), nil
	}

	data, err := s.read(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.decode(data)
}

// read fetches the stored payload of a task instance and remembers it for the commit check.
func (s *session) read(ctx context.Context, id int64) ([]byte, error) {
	data, err := s.rdb.Get(ctx, s.keys.taskKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, backend.ErrTaskNotFound
		}

		return nil, fmt.Errorf("loading task instance: %w", err)
	}

	if _, ok := s.loaded[id]; !ok {
		s.loaded[id] = data
	}

	return data, nil
}

func (s *session) decode(data []byte) (*core.TaskInstance, error) {
	var r taskRecord
	if err := s.options.Converter.From(data, &r); err != nil {
		return nil, fmt.Errorf("decoding task instance: %w", err)
	}

	return r.taskInstance(), nil
}

func (s *session) SaveTaskInstance(ctx context.Context, t *core.TaskInstance) error {
	if err := s.check(); err != nil {
		return err
	}

	if t.ID == 0 {
		id, err := s.rdb.Incr(ctx, s.keys.taskIDSequence()).Result()
		if err != nil {
			return fmt.Errorf("allocating task instance id: %w", err)
		}

		t.ID = id
		s.pending[id] = &pendingSave{task: t.Clone(), insert: true}

		return nil
	}

	p, ok := s.pending[t.ID]
	if !ok {
		if _, loaded := s.loaded[t.ID]; !loaded {
			if _, err := s.read(ctx, t.ID); err != nil {
				return err
			}
		}

		p = &pendingSave{}
		s.pending[t.ID] = p
	}

	p.task = t.Clone()

	return nil
}

func (s *session) FindTaskInstances(ctx context.Context, q *backend.TaskQuery) ([]*core.TaskInstance, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	tasks, err := s.query(ctx, q)
	if err != nil {
		return nil, err
	}

	return q.Window(tasks), nil
}

func (s *session) CountTaskInstances(ctx context.Context, q *backend.TaskQuery) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}

	tasks, err := s.query(ctx, q)
	if err != nil {
		return 0, err
	}

	return len(tasks), nil
}

// query returns all task instances matching the query's filters, including changes buffered in this
// session.
func (s *session) query(ctx context.Context, q *backend.TaskQuery) ([]*core.TaskInstance, error) {
	ids, err := s.candidates(ctx, q)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*core.TaskInstance, len(ids))

	if len(ids) > 0 {
		keys := make([]string, 0, len(ids))
		for _, id := range ids {
			keys = append(keys, s.keys.taskKey(id))
		}

		values, err := s.rdb.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, fmt.Errorf("loading task instances: %w", err)
		}

		for _, v := range values {
			data, ok := v.(string)
			if !ok {
				// Index entry without a task
				continue
			}

			t, err := s.decode([]byte(data))
			if err != nil {
				return nil, err
			}

			byID[t.ID] = t
		}
	}

	for id, p := range s.pending {
		byID[id] = p.task.Clone()
	}

	tasks := make([]*core.TaskInstance, 0, len(byID))
	for _, id := range slices.Sorted(maps.Keys(byID)) {
		if t := byID[id]; q.Matches(t) {
			tasks = append(tasks, t)
		}
	}

	return tasks, nil
}

// candidates narrows the task ids to look at using the index sets. The result is a superset of the
// matching ids.
func (s *session) candidates(ctx context.Context, q *backend.TaskQuery) ([]int64, error) {
	var members []string

	switch {
	case q.ActorIDs != nil:
		if len(q.ActorIDs) == 0 {
			return nil, nil
		}

		keys := make([]string, 0, len(q.ActorIDs))
		for _, actorID := range q.ActorIDs {
			if q.Pooled {
				keys = append(keys, s.keys.tasksByPooledActor(actorID))
			} else {
				keys = append(keys, s.keys.tasksByActor(actorID))
			}
		}

		r, err := s.rdb.SUnion(ctx, keys...).Result()
		if err != nil {
			return nil, fmt.Errorf("reading actor index: %w", err)
		}
		members = r

	case q.WorkflowInstanceID != nil:
		r, err := s.rdb.SMembers(ctx, s.keys.tasksByInstance(*q.WorkflowInstanceID)).Result()
		if err != nil {
			return nil, fmt.Errorf("reading instance index: %w", err)
		}
		members = r

	default:
		r, err := s.rdb.ZRange(ctx, s.keys.tasks(), 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("reading task index: %w", err)
		}
		members = r
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing task id %q: %w", m, err)
		}

		ids = append(ids, id)
	}

	return ids, nil
}

func (s *session) Commit(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}

	ids := slices.Sorted(maps.Keys(s.pending))

	watch := make([]string, 0, len(ids))
	for _, id := range ids {
		watch = append(watch, s.keys.taskKey(id))
	}

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		previous := make(map[int64]*core.TaskInstance, len(ids))

		for _, id := range ids {
			current, err := tx.Get(ctx, s.keys.taskKey(id)).Bytes()
			if err != nil && !errors.Is(err, redis.Nil) {
				return fmt.Errorf("checking task instance: %w", err)
			}

			if s.pending[id].insert {
				if current != nil {
					return backend.ErrConflict
				}

				continue
			}

			if !bytes.Equal(current, s.loaded[id]) {
				return backend.ErrConflict
			}

			prev, err := s.decode(current)
			if err != nil {
				return err
			}

			previous[id] = prev
		}

		payloads := make(map[int64][]byte, len(ids))
		for _, id := range ids {
			data, err := s.options.Converter.To(newTaskRecord(s.pending[id].task))
			if err != nil {
				return fmt.Errorf("encoding task instance: %w", err)
			}

			payloads[id] = data
		}

		_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			for _, id := range ids {
				if prev, ok := previous[id]; ok {
					s.unindex(ctx, p, prev)
				}

				t := s.pending[id].task

				p.Set(ctx, s.keys.taskKey(id), payloads[id], 0)
				p.ZAdd(ctx, s.keys.tasks(), redis.Z{Score: float64(id), Member: id})
				s.index(ctx, p, t)
			}

			return nil
		})

		return err
	}, watch...)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			err = backend.ErrConflict
		}

		return fmt.Errorf("committing session: %w", err)
	}

	s.committed = true

	s.logger.Debug("Committed session", "tasks", len(ids))

	return nil
}

func (s *session) index(ctx context.Context, p redis.Pipeliner, t *core.TaskInstance) {
	p.SAdd(ctx, s.keys.tasksByInstance(t.WorkflowInstanceID), t.ID)

	if t.ActorID != "" {
		p.SAdd(ctx, s.keys.tasksByActor(t.ActorID), t.ID)
	}

	for _, actorID := range t.PooledActors {
		p.SAdd(ctx, s.keys.tasksByPooledActor(actorID), t.ID)
	}
}

func (s *session) unindex(ctx context.Context, p redis.Pipeliner, t *core.TaskInstance) {
	p.SRem(ctx, s.keys.tasksByInstance(t.WorkflowInstanceID), t.ID)

	if t.ActorID != "" {
		p.SRem(ctx, s.keys.tasksByActor(t.ActorID), t.ID)
	}

	for _, actorID := range t.PooledActors {
		p.SRem(ctx, s.keys.tasksByPooledActor(actorID), t.ID)
	}
}

func (s *session) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true
	s.pending = nil
	s.loaded = nil

	return nil
}
