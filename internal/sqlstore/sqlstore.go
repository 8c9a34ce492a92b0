// Package sqlstore implements task sessions on top of database/sql for the SQL backends.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cschleiden/go-workflow-tasks/backend"
	"github.com/cschleiden/go-workflow-tasks/internal/log"
	"github.com/cschleiden/go-workflow-tasks/internal/metrickeys"
	"github.com/cschleiden/go-workflow-tasks/metrics"
	"github.com/google/uuid"
)

// Dialect captures the differences between the supported SQL databases.
type Dialect struct {
	Name string

	// InsertIgnore starts an insert statement that ignores duplicate keys.
	InsertIgnore string

	// ForUpdate is appended to queries loading a single task instance.
	ForUpdate string

	// NoLimit is the LIMIT value used when only an offset is requested.
	NoLimit string

	// IsConflict reports whether a driver error means another transaction holds a conflicting lock.
	// Such errors are returned as backend.ErrConflict.
	IsConflict func(error) bool
}

// WithConflicts returns a copy of the dialect that maps errors matched by f to backend.ErrConflict.
func (d Dialect) WithConflicts(f func(error) bool) Dialect {
	d.IsConflict = f
	return d
}

func (d Dialect) conflict(err error) error {
	if err == nil || d.IsConflict == nil || !d.IsConflict(err) {
		return err
	}

	return fmt.Errorf("%w: %v", backend.ErrConflict, err)
}

var (
	SQLite = Dialect{
		Name:         "sqlite",
		InsertIgnore: "INSERT OR IGNORE INTO",
		ForUpdate:    "",
		NoLimit:      "-1",
	}

	MySQL = Dialect{
		Name:         "mysql",
		InsertIgnore: "INSERT IGNORE INTO",
		ForUpdate:    " FOR UPDATE",
		NoLimit:      "18446744073709551615",
	}
)

type Store struct {
	db      *sql.DB
	dialect Dialect
	options *backend.Options
	txOpts  *sql.TxOptions
}

func New(db *sql.DB, dialect Dialect, options *backend.Options, txOpts *sql.TxOptions) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		options: options,
		txOpts:  txOpts,
	}
}

func (s *Store) CreateSession(ctx context.Context) (backend.Session, error) {
	tx, err := s.db.BeginTx(ctx, s.txOpts)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", s.dialect.conflict(err))
	}

	id := uuid.NewString()

	s.options.Metrics.Counter(metrickeys.SessionCreated, metrics.Tags{metrickeys.Backend: s.dialect.Name}, 1)

	return &session{
		id:      id,
		tx:      tx,
		dialect: s.dialect,
		options: s.options,
		logger:  s.options.Logger.With(log.SessionIDKey, id),
	}, nil
}

func (s *Store) HasUserRole(ctx context.Context, userID, roleID int64) (bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT 1 FROM `user_roles` WHERE user_id = ? AND role_id = ? LIMIT 1", userID, roleID)

	var found int
	if err := row.Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}

		return false, fmt.Errorf("checking role membership: %w", err)
	}

	return true, nil
}

func (s *Store) GrantRole(ctx context.Context, userID, roleID int64) error {
	if _, err := s.db.ExecContext(
		ctx,
		s.dialect.InsertIgnore+" `user_roles` (user_id, role_id) VALUES (?, ?)",
		userID, roleID,
	); err != nil {
		return fmt.Errorf("granting role: %w", err)
	}

	return nil
}

func (s *Store) RevokeRole(ctx context.Context, userID, roleID int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM `user_roles` WHERE user_id = ? AND role_id = ?", userID, roleID); err != nil {
		return fmt.Errorf("revoking role: %w", err)
	}

	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []int64) []any {
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}

	return args
}

func stringArgs(ids []string) []any {
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}

	return args
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
