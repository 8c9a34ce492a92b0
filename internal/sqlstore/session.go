package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cschleiden/go-workflow-tasks/backend"
	"github.com/cschleiden/go-workflow-tasks/core"
)

const taskColumns = "t.id, t.workflow_instance_id, t.name, t.description, t.node, t.actor_id, t.comments, t.variables, t.priority, t.created_at, t.due_at, t.ended_at, t.transition"

var orderColumns = map[core.OrderByField]string{
	core.OrderByID:             "t.id",
	core.OrderByName:           "t.name",
	core.OrderByCreateDate:     "t.created_at",
	core.OrderByDueDate:        "t.due_at",
	core.OrderByCompletionDate: "t.ended_at",
	core.OrderByPriority:       "t.priority",
}

type session struct {
	id      string
	tx      *sql.Tx
	dialect Dialect
	options *backend.Options
	logger  *slog.Logger

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

	row := s.tx.QueryRowContext(
		ctx,
		"SELECT "+taskColumns+" FROM `task_instances` t WHERE t.id = ?"+s.dialect.ForUpdate,
		id,
	)

	t, err := s.scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, backend.ErrTaskNotFound
		}

		return nil, fmt.Errorf("loading task instance: %w", s.dialect.conflict(err))
	}

	if err := s.loadPooledActors(ctx, []*core.TaskInstance{t}); err != nil {
		return nil, err
	}

	return t, nil
}

func (s *session) SaveTaskInstance(ctx context.Context, t *core.TaskInstance) error {
	if err := s.check(); err != nil {
		return err
	}

	node, err := s.options.Converter.To(t.Node)
	if err != nil {
		return fmt.Errorf("converting task node: %w", err)
	}

	comments, err := s.options.Converter.To(t.Comments)
	if err != nil {
		return fmt.Errorf("converting comments: %w", err)
	}

	variables, err := s.options.Converter.To(t.Variables)
	if err != nil {
		return fmt.Errorf("converting variables: %w", err)
	}

	if t.ID == 0 {
		res, err := s.tx.ExecContext(
			ctx,
			"INSERT INTO `task_instances` (workflow_instance_id, name, description, node, actor_id, comments, variables, priority, created_at, due_at, ended_at, transition) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			t.WorkflowInstanceID,
			t.Name,
			t.Description,
			[]byte(node),
			nullString(t.ActorID),
			[]byte(comments),
			[]byte(variables),
			t.Priority,
			t.CreatedAt.UnixNano(),
			nullTime(t.DueAt),
			nullTime(t.EndedAt),
			nullString(t.Transition),
		)
		if err != nil {
			return fmt.Errorf("inserting task instance: %w", s.dialect.conflict(err))
		}

		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("getting task instance id: %w", err)
		}

		t.ID = id
	} else {
		if _, err := s.tx.ExecContext(
			ctx,
			"UPDATE `task_instances` SET workflow_instance_id = ?, name = ?, description = ?, node = ?, actor_id = ?, comments = ?, variables = ?, priority = ?, created_at = ?, due_at = ?, ended_at = ?, transition = ? WHERE id = ?",
			t.WorkflowInstanceID,
			t.Name,
			t.Description,
			[]byte(node),
			nullString(t.ActorID),
			[]byte(comments),
			[]byte(variables),
			t.Priority,
			t.CreatedAt.UnixNano(),
			nullTime(t.DueAt),
			nullTime(t.EndedAt),
			nullString(t.Transition),
			t.ID,
		); err != nil {
			return fmt.Errorf("updating task instance: %w", s.dialect.conflict(err))
		}

		if _, err := s.tx.ExecContext(ctx, "DELETE FROM `pooled_actors` WHERE task_instance_id = ?", t.ID); err != nil {
			return fmt.Errorf("removing pooled actors: %w", s.dialect.conflict(err))
		}
	}

	for i, actorID := range t.PooledActors {
		if _, err := s.tx.ExecContext(
			ctx,
			"INSERT INTO `pooled_actors` (task_instance_id, position, actor_id) VALUES (?, ?, ?)",
			t.ID, i, actorID,
		); err != nil {
			return fmt.Errorf("inserting pooled actor: %w", s.dialect.conflict(err))
		}
	}

	return nil
}

func (s *session) FindTaskInstances(ctx context.Context, q *backend.TaskQuery) ([]*core.TaskInstance, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	where, args := buildWhere(q)

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(taskColumns)
	sb.WriteString(" FROM `task_instances` t")
	sb.WriteString(where)
	sb.WriteString(buildOrderBy(q.OrderBy))

	if q.Paginated() {
		offset, limit := q.Limits()

		sb.WriteString(" LIMIT ")
		if limit < 0 {
			sb.WriteString(s.dialect.NoLimit)
		} else {
			sb.WriteString(itoa(limit))
		}
		sb.WriteString(" OFFSET ")
		sb.WriteString(itoa(offset))
	}

	rows, err := s.tx.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying task instances: %w", s.dialect.conflict(err))
	}
	defer rows.Close()

	tasks := make([]*core.TaskInstance, 0)
	for rows.Next() {
		t, err := s.scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task instance: %w", s.dialect.conflict(err))
		}

		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating task instances: %w", s.dialect.conflict(err))
	}

	if err := s.loadPooledActors(ctx, tasks); err != nil {
		return nil, err
	}

	return tasks, nil
}

func (s *session) CountTaskInstances(ctx context.Context, q *backend.TaskQuery) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}

	where, args := buildWhere(q)

	row := s.tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM `task_instances` t"+where, args...)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("counting task instances: %w", s.dialect.conflict(err))
	}

	return count, nil
}

func (s *session) Commit(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}

	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("committing session: %w", s.dialect.conflict(err))
	}

	s.committed = true

	s.logger.Debug("Committed session")

	return nil
}

func (s *session) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true

	if s.committed {
		return nil
	}

	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rolling back session: %w", err)
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *session) scanTask(row scanner) (*core.TaskInstance, error) {
	var (
		t                         core.TaskInstance
		node, comments, variables []byte
		actorID, transition       sql.NullString
		createdAt                 int64
		dueAt, endedAt            sql.NullInt64
	)

	if err := row.Scan(
		&t.ID,
		&t.WorkflowInstanceID,
		&t.Name,
		&t.Description,
		&node,
		&actorID,
		&comments,
		&variables,
		&t.Priority,
		&createdAt,
		&dueAt,
		&endedAt,
		&transition,
	); err != nil {
		return nil, err
	}

	t.ActorID = actorID.String
	t.Transition = transition.String
	t.CreatedAt = time.Unix(0, createdAt).UTC()
	t.DueAt = fromNullTime(dueAt)
	t.EndedAt = fromNullTime(endedAt)

	if err := s.options.Converter.From(node, &t.Node); err != nil {
		return nil, fmt.Errorf("converting task node: %w", err)
	}

	if err := s.options.Converter.From(comments, &t.Comments); err != nil {
		return nil, fmt.Errorf("converting comments: %w", err)
	}

	if err := s.options.Converter.From(variables, &t.Variables); err != nil {
		return nil, fmt.Errorf("converting variables: %w", err)
	}

	if t.Variables == nil {
		t.Variables = core.Variables{}
	}

	return &t, nil
}

func (s *session) loadPooledActors(ctx context.Context, tasks []*core.TaskInstance) error {
	if len(tasks) == 0 {
		return nil
	}

	byID := make(map[int64]*core.TaskInstance, len(tasks))
	ids := make([]int64, 0, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}

	rows, err := s.tx.QueryContext(
		ctx,
		"SELECT task_instance_id, actor_id FROM `pooled_actors` WHERE task_instance_id IN ("+placeholders(len(ids))+") ORDER BY task_instance_id, position",
		int64Args(ids)...,
	)
	if err != nil {
		return fmt.Errorf("querying pooled actors: %w", s.dialect.conflict(err))
	}
	defer rows.Close()

	for rows.Next() {
		var taskID int64
		var actorID string
		if err := rows.Scan(&taskID, &actorID); err != nil {
			return fmt.Errorf("scanning pooled actor: %w", s.dialect.conflict(err))
		}

		if t, ok := byID[taskID]; ok {
			t.PooledActors = append(t.PooledActors, actorID)
		}
	}

	return s.dialect.conflict(rows.Err())
}

func buildWhere(q *backend.TaskQuery) (string, []any) {
	conds := []string{}
	args := []any{}

	if q.WorkflowInstanceID != nil {
		conds = append(conds, "t.workflow_instance_id = ?")
		args = append(args, *q.WorkflowInstanceID)
	}

	switch q.Completion {
	case core.CompletionCompleted:
		conds = append(conds, "t.ended_at IS NOT NULL")
	case core.CompletionPending:
		conds = append(conds, "t.ended_at IS NULL")
	}

	if q.ActorIDs != nil {
		switch {
		case len(q.ActorIDs) == 0:
			conds = append(conds, "1 = 0")
		case q.Pooled:
			conds = append(conds, "t.actor_id IS NULL AND EXISTS (SELECT 1 FROM `pooled_actors` p WHERE p.task_instance_id = t.id AND p.actor_id IN ("+placeholders(len(q.ActorIDs))+"))")
			args = append(args, stringArgs(q.ActorIDs)...)
		default:
			conds = append(conds, "t.actor_id IN ("+placeholders(len(q.ActorIDs))+")")
			args = append(args, stringArgs(q.ActorIDs)...)
		}
	}

	if len(conds) == 0 {
		return "", args
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

func buildOrderBy(ob *core.OrderBy) string {
	clauses := []string{}

	if ob != nil {
		for _, col := range ob.Columns {
			column, ok := orderColumns[col.Field]
			if !ok {
				continue
			}

			dir := " ASC"
			if !col.Ascending {
				dir = " DESC"
			}

			clauses = append(clauses, column+dir)
		}
	}

	clauses = append(clauses, "t.id ASC")

	return " ORDER BY " + strings.Join(clauses, ", ")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}

	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNullTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}

	t := time.Unix(0, n.Int64).UTC()
	return &t
}
