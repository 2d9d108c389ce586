package types

import (
	"errors"
	"fmt"
)

// ErrInvalidWeight is returned for non-positive edge weights.
var ErrInvalidWeight = errors.New("edge weight must be positive")

// ErrorKind partitions failures into the categories the coordinator and
// callers branch on. Step-level errors are recorded on the AgentResult as an
// (kind, message) pair and never escape the step boundary.
type ErrorKind string

const (
	// KindConfiguration covers invalid workflow definitions: cyclic
	// dependencies, unknown agents, malformed steps.
	KindConfiguration ErrorKind = "configuration"
	// KindRetrieval covers vector-store failures and malformed search data.
	KindRetrieval ErrorKind = "retrieval"
	// KindTimeout marks a step that exceeded its time budget.
	KindTimeout ErrorKind = "timeout"
	// KindExtraction covers malformed or unparseable chunks.
	KindExtraction ErrorKind = "entity_extraction"
	// KindPartialFailure is the workflow-level summary state when some but
	// not all steps failed.
	KindPartialFailure ErrorKind = "partial_failure"
	// KindInternal is the fallback for errors outside the taxonomy.
	KindInternal ErrorKind = "internal"
)

// Error is a classified error. It wraps an underlying cause when one exists
// and matches errors.Is against any *Error of the same kind.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same kind, so
// errors.Is(err, &Error{Kind: KindTimeout}) works through wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// NewError creates a classified error without a cause.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError classifies an underlying error.
func WrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from an error chain, defaulting to KindInternal
// for unclassified errors and "" for nil.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}
