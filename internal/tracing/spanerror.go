package tracing

import (
	"errors"

	"github.com/cschleiden/go-workflow-tasks/backend"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Error kinds recorded under ErrorKind.
const (
	ErrorKindConflict = "conflict"
	ErrorKindNotFound = "not_found"
	ErrorKindSession  = "session"
	ErrorKindOther    = "other"
)

// WithSpanError records err on the span, tagged with its kind, and marks the span as failed. It
// returns err unchanged.
func WithSpanError(span trace.Span, err error) error {
	if err == nil {
		return nil
	}

	span.RecordError(err, trace.WithAttributes(attribute.String(ErrorKind, errorKind(err))))
	span.SetStatus(codes.Error, err.Error())

	return err
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, backend.ErrConflict):
		return ErrorKindConflict
	case errors.Is(err, backend.ErrTaskNotFound):
		return ErrorKindNotFound
	case errors.Is(err, backend.ErrSessionClosed), errors.Is(err, backend.ErrSessionCommitted):
		return ErrorKindSession
	default:
		return ErrorKindOther
	}
}
