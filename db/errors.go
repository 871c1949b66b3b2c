package db

import (
	"errors"
	"fmt"

	"zombiezen.com/go/sqlite"
)

// Kind classifies facade errors. Callers branch on the kind, not on concrete
// error types.
type Kind int

const (
	// KindUnknown is reported by KindOf for errors not produced by this package.
	KindUnknown Kind = iota
	// KindSQL covers malformed SQL, constraint violations, type mismatches and
	// function arity or evaluation failures.
	KindSQL
	// KindBind is an unknown parameter index or name, or an unbindable value.
	KindBind
	// KindScope is an out-of-order scope exit or a transaction state that no
	// longer matches the scope depth.
	KindScope
	// KindStorage is an I/O failure of the storage backend or the engine's
	// file layer.
	KindStorage
	// KindMisuse is an operation on a finalized statement or closed connection.
	KindMisuse
)

func (k Kind) String() string {
	switch k {
	case KindSQL:
		return "SqlError"
	case KindBind:
		return "BindError"
	case KindScope:
		return "ScopeError"
	case KindStorage:
		return "StorageError"
	case KindMisuse:
		return "MisuseError"
	}
	return "UnknownError"
}

// Error is the error value returned by every facade operation.
type Error struct {
	Kind Kind
	// Code is the engine result code, or 0 when the error did not come from
	// the engine.
	Code int
	// Op names the facade operation, e.g. "prepare" or "bind".
	Op string
	// SQL is the statement text involved, if any.
	SQL string
	Err error

	counted bool
}

func (e *Error) Error() string {
	msg := e.Op + ": "
	if e.Err != nil {
		msg += e.Err.Error()
	} else {
		msg += e.Kind.String()
	}
	if e.SQL != "" {
		msg += " [" + e.SQL + "]"
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is a facade error of kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// ErrFinalized is wrapped by misuse errors on finalized statements.
var ErrFinalized = errors.New("statement is finalized")

// ErrClosed is wrapped by misuse errors on closed connections.
var ErrClosed = errors.New("connection is closed")

func newError(kind Kind, op, sql string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, SQL: sql, Err: fmt.Errorf(format, args...)}
}

// engineError wraps an error reported by the engine, classifying it by its
// primary result code. Facade errors pass through untouched so that callback
// and function errors keep their identity.
func engineError(op, sql string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	code := sqlite.ErrCode(err)
	return &Error{Kind: kindForCode(code), Code: int(code), Op: op, SQL: sql, Err: err}
}

func kindForCode(code sqlite.ResultCode) Kind {
	switch code.ToPrimary() {
	case sqlite.ResultIOErr, sqlite.ResultCantOpen, sqlite.ResultFull,
		sqlite.ResultCorrupt, sqlite.ResultNotADB, sqlite.ResultReadOnly:
		return KindStorage
	case sqlite.ResultRange:
		return KindBind
	case sqlite.ResultMisuse:
		return KindMisuse
	}
	return KindSQL
}
