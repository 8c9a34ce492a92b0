package taskmanager

import (
	"errors"
	"fmt"

	goerrors "github.com/go-errors/errors"
)

var (
	ErrNotAssignedToRole = errors.New("task has not been assigned to a role")
	ErrUserLacksRole     = errors.New("user does not hold the role the task is assigned to")
	ErrNotAssignedToUser = errors.New("task is not assigned to user")
)

// WorkflowError is returned by every failing Manager operation.
type WorkflowError struct {
	// TaskID is the task the operation was called for. Zero for operations not scoped to one task.
	TaskID int64

	Message string

	Cause error

	Stacktrace string
}

func (we *WorkflowError) Error() string {
	if we.Cause == nil {
		return we.Message
	}

	return fmt.Sprintf("%s: %v", we.Message, we.Cause)
}

func (we *WorkflowError) Unwrap() error {
	return we.Cause
}

func (we *WorkflowError) Stack() string {
	return we.Stacktrace
}

// newWorkflowError wraps err unless it already is a WorkflowError.
func newWorkflowError(taskID int64, message string, err error) error {
	if err == nil {
		return nil
	}

	var we *WorkflowError
	if errors.As(err, &we) {
		return err
	}

	return &WorkflowError{
		TaskID:     taskID,
		Message:    message,
		Cause:      err,
		Stacktrace: string(goerrors.Wrap(err, 2).Stack()),
	}
}

// notAssignedToUser builds the cause for operations restricted to the task's assignee.
func notAssignedToUser(taskID, userID int64) error {
	return fmt.Errorf("%w: workflow task %d is not assigned to user %d", ErrNotAssignedToUser, taskID, userID)
}
