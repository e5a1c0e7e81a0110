package storage

import "errors"

// ErrClosed is returned by drivers after Close.
var ErrClosed = errors.New("storage is closed")

// NotFoundError is returned when a record does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "record"
	}
	if e.ID == "" {
		return kind + " not found"
	}
	return kind + " not found: " + e.ID
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// ConflictError is returned when a write no longer applies to the current
// state of a record, e.g. resolving an approval that is not pending.
type ConflictError struct {
	Kind   string
	ID     string
	Reason string
}

func (e ConflictError) Error() string {
	return e.Kind + " " + e.Reason + ": " + e.ID
}

// DuplicateError is returned when a record with the same id already exists.
type DuplicateError struct {
	Kind string
	ID   string
}

func (e DuplicateError) Error() string {
	return e.Kind + " already exists: " + e.ID
}
