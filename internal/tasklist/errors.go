// Package tasklist keeps an in-memory ordered list of to-do items consistent
// with a RemoteStore. It holds the list model, the sync engine that turns
// user commands into remote calls, and the drag-and-drop reorder controller.
package tasklist

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrLoad         = errors.New("load failed")
	ErrNotFound     = errors.New("item not found")
	ErrInvalidState = errors.New("invalid state")
	ErrRemoteCall   = errors.New("remote call failed")
)

// Error describes a failed list operation.
type Error struct {
	Kind   error
	Op     string
	ItemID string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.ItemID != "" {
		msg += fmt.Sprintf(" (item %s)", e.ItemID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is the kind of this error.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func notFound(op, id string) error {
	return &Error{Kind: ErrNotFound, Op: op, ItemID: id}
}

func invalidState(op, id, reason string) error {
	return &Error{Kind: ErrInvalidState, Op: op, ItemID: id, Err: errors.New(reason)}
}

func remoteCall(op, id string, err error) error {
	return &Error{Kind: ErrRemoteCall, Op: op, ItemID: id, Err: err}
}
