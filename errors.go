package txsim

import (
	"errors"
	"fmt"
)

// ErrUnresolvedOutput is reported by Resolution.Err when at least one input
// could not be matched against the fetched chain data.
var ErrUnresolvedOutput = errors.New("unresolved output")

// FormatError reports malformed hex, CBOR or credential text.
type FormatError struct {
	Msg string
	Err error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// StructuralError reports a transaction draft whose body is missing required
// elements or carries mis-shaped ones.
type StructuralError struct {
	Msg string
}

func (e *StructuralError) Error() string {
	return e.Msg
}

func newStructuralError(format string, args ...any) *StructuralError {
	return &StructuralError{Msg: fmt.Sprintf(format, args...)}
}

type EvaluationError struct {
	EvalError EvalError
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("Evaluation failed: %s", e.EvalError.ErrorType)
}
