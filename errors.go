package eventidx

import (
	"errors"
	"fmt"

	"github.com/hupe1980/eventidx/ec"
	"github.com/hupe1980/eventidx/types"
)

var (
	// ErrClosed is returned by operations on a closed index.
	ErrClosed = errors.New("eventidx: index closed")

	// ErrEmptySlice is returned when adding a slice without rows.
	ErrEmptySlice = fmt.Errorf("%w: table slice has no rows", ec.ErrPrecondition)
)

// ErrLayoutMismatch indicates a slice whose layout differs from the
// layout of the index.
//
// It matches ec.ErrPrecondition with errors.Is.
type ErrLayoutMismatch struct {
	Expected types.Type
	Actual   types.Type
}

func (e *ErrLayoutMismatch) Error() string {
	return fmt.Sprintf("layout mismatch: expected %s, got %s", e.Expected, e.Actual)
}

func (e *ErrLayoutMismatch) Unwrap() error { return ec.ErrPrecondition }

// ErrInvalidLayout indicates a layout that is not a record type.
//
// It matches ec.ErrPrecondition with errors.Is.
type ErrInvalidLayout struct {
	Layout types.Type
}

func (e *ErrInvalidLayout) Error() string {
	return fmt.Sprintf("invalid layout: %s is not a record", e.Layout)
}

func (e *ErrInvalidLayout) Unwrap() error { return ec.ErrPrecondition }
