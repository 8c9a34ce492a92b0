package backend

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/cschleiden/go-workflow-tasks/core"
	"github.com/cschleiden/go-workflow-tasks/metrics"
)

var (
	ErrTaskNotFound     = errors.New("task instance not found")
	ErrSessionClosed    = errors.New("session is closed")
	ErrSessionCommitted = errors.New("session is already committed")

	// ErrConflict is returned on commit when a task instance loaded by the session was changed by someone else.
	ErrConflict = errors.New("task instance was modified concurrently")
)

type ErrNotSupported struct {
	Message string
}

func (e ErrNotSupported) Error() string {
	return fmt.Sprintf("not supported: %s", e.Message)
}

const TracerName = "go-workflow-tasks"

// Backend is the entry point into a workflow engine's task store. It hands out sessions, each of
// which is a single unit of work.
//
//go:generate mockery --name=Backend --inpackage
type Backend interface {
	// CreateSession opens a new unit of work. The caller must Close the session on every path.
	CreateSession(ctx context.Context) (Session, error)

	// Tracer returns the configured trace provider for the backend
	Tracer() trace.Tracer

	// Metrics returns the configured metrics client for the backend
	Metrics() metrics.Client

	// Options returns the configured options for the backend
	Options() *Options

	// Close closes any underlying resources
	Close() error
}

// Session is a unit of work against the task store. Sessions are not safe for concurrent use.
//
//go:generate mockery --name=Session --inpackage
type Session interface {
	// ID uniquely identifies the session, for logging and tracing
	ID() string

	// LoadTaskInstance loads the task instance with the given id. Returns ErrTaskNotFound if there is none.
	LoadTaskInstance(ctx context.Context, id int64) (*core.TaskInstance, error)

	// SaveTaskInstance persists the given task instance within the session. Task instances with a zero ID
	// are inserted and have their ID assigned.
	SaveTaskInstance(ctx context.Context, task *core.TaskInstance) error

	// FindTaskInstances returns the task instances matching the query, ordered and windowed as requested
	FindTaskInstances(ctx context.Context, query *TaskQuery) ([]*core.TaskInstance, error)

	// CountTaskInstances counts the task instances matching the query. Pagination is ignored.
	CountTaskInstances(ctx context.Context, query *TaskQuery) (int, error)

	// Commit makes all changes saved in this session durable
	Commit(ctx context.Context) error

	// Close releases the session. Uncommitted changes are discarded. Close is safe to call after Commit.
	Close() error
}
