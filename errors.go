package rethinkdb

import (
	"fmt"
	"strings"

	"github.com/rethinkdb/rethinkdb-go/internal/wire"
	"github.com/rethinkdb/rethinkdb-go/pkg/proto"
)

// ReqlError is the root of the error taxonomy. Server-raised errors carry
// the originating term and the backtrace frames blaming a sub-term; both
// feed the caret-annotated rendering in Error.
type ReqlError struct {
	msg    string
	term   *Term
	frames []wire.Frame
}

func (e ReqlError) Error() string {
	if e.term == nil || e.frames == nil {
		return e.msg
	}
	printer := newQueryPrinter(e.term, e.frames)
	return fmt.Sprintf("%s in:\n%s\n%s", strings.TrimRight(e.msg, "."), printer.Query(), printer.Carets())
}

// Message returns the bare server or driver message without the query
// rendering.
func (e ReqlError) Message() string { return e.msg }

// Term returns the term the failed query was built from, if any.
func (e ReqlError) Term() *Term { return e.term }

// Backtrace returns the raw backtrace frames, if any.
func (e ReqlError) Backtrace() []wire.Frame { return e.frames }

func (e ReqlError) Is(target error) bool {
	_, ok := target.(*ReqlError)
	return ok
}

// ReqlCompileError covers both client- and server-side query compilation
// failures.
type ReqlCompileError struct {
	ReqlError
}

func (e ReqlCompileError) Is(target error) bool {
	switch target.(type) {
	case *ReqlCompileError, *ReqlError:
		return true
	}
	return false
}

// ReqlDriverCompileError reports a value the builder cannot convert into a
// term.
type ReqlDriverCompileError struct {
	ReqlCompileError
}

func (e ReqlDriverCompileError) Is(target error) bool {
	switch target.(type) {
	case *ReqlDriverCompileError, *ReqlCompileError, *ReqlError:
		return true
	}
	return false
}

// ReqlServerCompileError reports a term the server refused to compile.
type ReqlServerCompileError struct {
	ReqlCompileError
}

func (e ReqlServerCompileError) Is(target error) bool {
	switch target.(type) {
	case *ReqlServerCompileError, *ReqlCompileError, *ReqlError:
		return true
	}
	return false
}

// ReqlRuntimeError is the base of all server runtime failures.
type ReqlRuntimeError struct {
	ReqlError
}

func (e ReqlRuntimeError) Is(target error) bool {
	switch target.(type) {
	case *ReqlRuntimeError, *ReqlError:
		return true
	}
	return false
}

// ReqlQueryLogicError reports a query that is well-formed but logically
// invalid.
type ReqlQueryLogicError struct {
	ReqlRuntimeError
}

func (e ReqlQueryLogicError) Is(target error) bool {
	switch target.(type) {
	case *ReqlQueryLogicError, *ReqlRuntimeError, *ReqlError:
		return true
	}
	return false
}

// ReqlNonExistenceError reports the absence of an expected value.
type ReqlNonExistenceError struct {
	ReqlQueryLogicError
}

func (e ReqlNonExistenceError) Is(target error) bool {
	switch target.(type) {
	case *ReqlNonExistenceError, *ReqlQueryLogicError, *ReqlRuntimeError, *ReqlError:
		return true
	}
	return false
}

// ReqlOpFailedError reports an operation that failed due to availability.
type ReqlOpFailedError struct {
	ReqlRuntimeError
}

func (e ReqlOpFailedError) Is(target error) bool {
	switch target.(type) {
	case *ReqlOpFailedError, *ReqlRuntimeError, *ReqlError:
		return true
	}
	return false
}

// ReqlOpIndeterminateError reports an operation whose outcome is unknown.
type ReqlOpIndeterminateError struct {
	ReqlRuntimeError
}

func (e ReqlOpIndeterminateError) Is(target error) bool {
	switch target.(type) {
	case *ReqlOpIndeterminateError, *ReqlRuntimeError, *ReqlError:
		return true
	}
	return false
}

// ReqlUserError reports an error raised by the query itself via Error.
type ReqlUserError struct {
	ReqlRuntimeError
}

func (e ReqlUserError) Is(target error) bool {
	switch target.(type) {
	case *ReqlUserError, *ReqlRuntimeError, *ReqlError:
		return true
	}
	return false
}

// ReqlInternalError reports an internal failure on the server.
type ReqlInternalError struct {
	ReqlRuntimeError
}

func (e ReqlInternalError) Is(target error) bool {
	switch target.(type) {
	case *ReqlInternalError, *ReqlRuntimeError, *ReqlError:
		return true
	}
	return false
}

// ReqlPermissionError reports insufficient permissions for the query.
type ReqlPermissionError struct {
	ReqlRuntimeError
}

func (e ReqlPermissionError) Is(target error) bool {
	switch target.(type) {
	case *ReqlPermissionError, *ReqlRuntimeError, *ReqlError:
		return true
	}
	return false
}

// ReqlResourceLimitError reports an exceeded server resource limit.
type ReqlResourceLimitError struct {
	ReqlRuntimeError
}

func (e ReqlResourceLimitError) Is(target error) bool {
	switch target.(type) {
	case *ReqlResourceLimitError, *ReqlRuntimeError, *ReqlError:
		return true
	}
	return false
}

// ReqlDriverError reports a failure in the driver rather than the server:
// closed connections, socket errors, token exhaustion.
type ReqlDriverError struct {
	ReqlError
}

func (e ReqlDriverError) Is(target error) bool {
	switch target.(type) {
	case *ReqlDriverError, *ReqlError:
		return true
	}
	return false
}

// ReqlAuthError reports a failed connection handshake: bad credentials,
// unsupported protocol version, or a server signature mismatch.
type ReqlAuthError struct {
	ReqlDriverError
}

func (e ReqlAuthError) Is(target error) bool {
	switch target.(type) {
	case *ReqlAuthError, *ReqlDriverError, *ReqlError:
		return true
	}
	return false
}

// ReqlTimeoutError reports an expired deadline during connect or while
// awaiting a response.
type ReqlTimeoutError struct {
	ReqlDriverError
}

func (e ReqlTimeoutError) Is(target error) bool {
	switch target.(type) {
	case *ReqlTimeoutError, *ReqlDriverError, *ReqlError:
		return true
	}
	return false
}

// InvalidHandshakeStateError reports that the handshake machine was driven
// past completion.
type InvalidHandshakeStateError struct {
	ReqlDriverError
}

func (e InvalidHandshakeStateError) Is(target error) bool {
	switch target.(type) {
	case *InvalidHandshakeStateError, *ReqlDriverError, *ReqlError:
		return true
	}
	return false
}

// ReqlCursorEmpty signals that a cursor has delivered every value the
// server sent. It is a stream terminator, not a failure.
type ReqlCursorEmpty struct{}

func (e ReqlCursorEmpty) Error() string { return "Cursor is empty." }

func (e ReqlCursorEmpty) Is(target error) bool {
	_, ok := target.(*ReqlCursorEmpty)
	return ok
}

// ErrCursorEmpty is the value cursors return at end of stream; compare
// with errors.Is.
var ErrCursorEmpty = &ReqlCursorEmpty{}

func newDriverError(msg string) *ReqlDriverError {
	return &ReqlDriverError{ReqlError{msg: msg}}
}

func newTimeoutError(host string, port int) *ReqlTimeoutError {
	msg := "Operation timed out."
	if host != "" {
		msg = fmt.Sprintf("Could not connect to %s:%d, %s", host, port, msg)
	}
	return &ReqlTimeoutError{ReqlDriverError{ReqlError{msg: msg}}}
}

func newAuthError(msg string) *ReqlAuthError {
	return &ReqlAuthError{ReqlDriverError{ReqlError{msg: msg}}}
}

func newDriverCompileError(msg string) *ReqlDriverCompileError {
	return &ReqlDriverCompileError{ReqlCompileError{ReqlError{msg: msg}}}
}

// responseError converts an error response envelope into the matching
// taxonomy member, attaching the originating term and backtrace.
func responseError(env *wire.Response, term *Term) error {
	msg := "Unknown error"
	if len(env.Results) > 0 {
		var s string
		if err := jsonUnmarshal(env.Results[0], &s); err == nil {
			msg = s
		}
	}
	base := ReqlError{msg: msg, term: term, frames: env.Backtrace}

	switch env.Type {
	case proto.ResponseClientError:
		return &ReqlDriverError{base}
	case proto.ResponseCompileError:
		return &ReqlServerCompileError{ReqlCompileError{base}}
	case proto.ResponseRuntimeError:
		runtime := ReqlRuntimeError{base}
		switch env.ErrorType {
		case proto.ErrorInternal:
			return &ReqlInternalError{runtime}
		case proto.ErrorResourceLimit:
			return &ReqlResourceLimitError{runtime}
		case proto.ErrorQueryLogic:
			return &ReqlQueryLogicError{runtime}
		case proto.ErrorNonExistence:
			return &ReqlNonExistenceError{ReqlQueryLogicError{runtime}}
		case proto.ErrorOpFailed:
			return &ReqlOpFailedError{runtime}
		case proto.ErrorOpIndeterminate:
			return &ReqlOpIndeterminateError{runtime}
		case proto.ErrorUser:
			return &ReqlUserError{runtime}
		case proto.ErrorPermission:
			return &ReqlPermissionError{runtime}
		}
		return &runtime
	}
	return newDriverError(fmt.Sprintf("Unknown response type %d encountered in a response.", env.Type))
}
