package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrRecordNotFound is returned by Read for a name the container does
	// not hold.
	ErrRecordNotFound = errors.New("storage: record not found")
	// ErrClosed is returned by every operation on a closed container.
	ErrClosed = errors.New("storage: container is closed")
	// ErrReadOnly is returned by Append on a container opened ReadOnly.
	ErrReadOnly = errors.New("storage: container is read-only")
	// ErrNotContainer is returned by Open when the file header is not an
	// OEF header.
	ErrNotContainer = errors.New("storage: not an OEF container")
)

// StructureError reports a stored group that lacks an expected attribute or
// dataset, or whose dataset has the wrong shape. It affects only that group.
type StructureError struct {
	Group  string
	Reason string
	Err    error
}

func (e *StructureError) Error() string {
	msg := fmt.Sprintf("storage: group %q: %s", e.Group, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StructureError) Unwrap() error { return e.Err }

// NamingConflictError is returned by Append when the container already
// holds a group with the requested name.
type NamingConflictError struct {
	Name string
}

func (e *NamingConflictError) Error() string {
	return fmt.Sprintf("storage: a record named %q already exists", e.Name)
}

func structErr(group, reason string, args ...any) error {
	return &StructureError{Group: group, Reason: fmt.Sprintf(reason, args...)}
}
