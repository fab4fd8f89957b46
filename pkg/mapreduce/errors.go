package mapreduce

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrAlreadyRun         = errors.New("orchestrator already used")
	ErrRunTimeout         = errors.New("run timeout exceeded")
)

// ErrorKind classifies why a run was aborted.
type ErrorKind string

const (
	KindTransientProvider ErrorKind = "TransientProviderError"
	KindPermanentProvider ErrorKind = "PermanentProviderError"
	KindRetrieval         ErrorKind = "RetrievalError"
	KindRunTimeout        ErrorKind = "RunTimeoutExceeded"
	KindCanceled          ErrorKind = "Canceled"
	KindInvalidInput      ErrorKind = "InvalidInput"
	KindInvariant         ErrorKind = "InvariantViolation"
)

// RunError is returned for aborted runs. State is the furthest state reached
// before the run failed.
type RunError struct {
	RunID string
	State State
	Kind  ErrorKind
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %s failed in %s (%s): %v", e.RunID, e.State, e.Kind, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a *RunError anywhere in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var re *RunError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}
