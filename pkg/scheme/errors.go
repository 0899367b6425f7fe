package scheme

import (
	"errors"
	"fmt"
)

// Code classifies a scheme failure.
type Code int

const (
	CodeNotFound         Code = iota // referenced block or port does not exist
	CodeAlreadyConnected             // producer already feeds a consumer
	CodeInvalidTarget                // target cannot accept the connection
	CodeTypeMismatch                 // type tags differ across a connection
	CodeNotConnected                 // required port or slot is missing
	CodeCycleDetected                // evaluation did not reach every block
	CodeBadFile                      // persisted data is malformed
	CodeInternal                     // invariant violation
	CodeIO                           // reading or writing a file failed
)

func (c Code) String() string {
	switch c {
	case CodeNotFound:
		return "not found"
	case CodeAlreadyConnected:
		return "already connected"
	case CodeInvalidTarget:
		return "invalid target"
	case CodeTypeMismatch:
		return "type mismatch"
	case CodeNotConnected:
		return "not connected"
	case CodeCycleDetected:
		return "cycle detected"
	case CodeBadFile:
		return "bad file"
	case CodeInternal:
		return "internal"
	case CodeIO:
		return "io"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// Error is returned by every failing scheme operation.
type Error struct {
	Code Code
	Op   string // operation that failed, e.g. "connect"
	Msg  string
	Err  error // underlying cause, if any
}

func (e *Error) Error() string {
	msg := e.Code.String()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Code, so the sentinels below work
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Op == "" && t.Msg == "" && t.Err == nil
}

// Sentinels for errors.Is.
var (
	ErrNotFound         = &Error{Code: CodeNotFound}
	ErrAlreadyConnected = &Error{Code: CodeAlreadyConnected}
	ErrInvalidTarget    = &Error{Code: CodeInvalidTarget}
	ErrTypeMismatch     = &Error{Code: CodeTypeMismatch}
	ErrNotConnected     = &Error{Code: CodeNotConnected}
	ErrCycleDetected    = &Error{Code: CodeCycleDetected}
	ErrBadFile          = &Error{Code: CodeBadFile}
	ErrInternal         = &Error{Code: CodeInternal}
	ErrIO               = &Error{Code: CodeIO}
)

func newError(code Code, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func wrapError(code Code, op string, err error, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf returns the Code carried by err, or CodeInternal and false when
// err is not a scheme error.
func CodeOf(err error) (Code, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Code, true
	}
	return CodeInternal, false
}

// CycleError is returned by Run when some blocks never became computable.
type CycleError struct {
	Blocks []BlockID // blocks left unvisited, in scheme order
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%d block(s) never became computable: %v", len(e.Blocks), e.Blocks)
}
