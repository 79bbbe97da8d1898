// Package ec defines the error taxonomy shared by all eventidx packages.
//
// Every error produced by the indexing core wraps exactly one of the kind
// sentinels below, so callers can branch with errors.Is:
//
//	if errors.Is(err, ec.ErrLogic) {
//	    // a buffered synopsis reached persistence without being shrunk
//	}
//
// Errors that refer to a concrete column or file are reported as *Error,
// which carries the file path and column identity for diagnostics.
package ec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrConstruction indicates that an index or synopsis could not be built,
	// e.g. because the declared column type is not indexable.
	ErrConstruction = errors.New("construction error")

	// ErrPersistence indicates an I/O or decoding failure while loading or
	// saving persistent state.
	ErrPersistence = errors.New("persistence error")

	// ErrPrecondition indicates a caller contract breach, such as a lookup
	// against a column index whose value index was never constructed.
	ErrPrecondition = errors.New("precondition violation")

	// ErrLogic indicates an operation that is invalid for the object's
	// current form, such as serializing a buffered synopsis.
	ErrLogic = errors.New("logic error")

	// ErrDegraded indicates that a partial result is missing because its
	// source could not respond. It is never fatal to a query.
	ErrDegraded = errors.New("degraded response")

	// ErrSyntax indicates a malformed attribute or option value.
	ErrSyntax = errors.New("syntax error")
)

// Error describes a failure that concerns a specific column or file.
//
// The kind sentinel can be matched with errors.Is; the original cause is
// available via errors.Unwrap.
type Error struct {
	Kind   error  // one of the Err* sentinels
	Op     string // operation, e.g. "load", "flush"
	Path   string // file path, if any
	Column int    // column ordinal, -1 if unknown
	Err    error  // underlying cause
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.Error())
	if e.Op != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Op)
	}
	if e.Path != "" {
		sb.WriteString(" ")
		sb.WriteString(strconv.Quote(e.Path))
	}
	if e.Column >= 0 {
		sb.WriteString(" column ")
		sb.WriteString(strconv.Itoa(e.Column))
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns both the kind sentinel and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New returns an error of the given kind with a formatted message.
func New(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// Wrap annotates err with kind and operation. It returns nil if err is nil
// and leaves err untouched if it already carries the kind.
func Wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", kind, op, err)
}

// Column returns an *Error for a column-scoped failure.
func Column(kind error, op, path string, column int, err error) error {
	return &Error{Kind: kind, Op: op, Path: path, Column: column, Err: err}
}

var kinds = []error{ErrConstruction, ErrPersistence, ErrPrecondition, ErrLogic, ErrDegraded, ErrSyntax}

// KindOf returns the kind sentinel carried by err, or nil if err carries
// none of them.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
