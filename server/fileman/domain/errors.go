package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers both a missing id and a record the caller cannot
	// see; the two are deliberately indistinguishable.
	ErrNotFound = errors.New("file not found")
	// ErrForbidden is returned when the caller can see a record but the
	// operation needs ownership.
	ErrForbidden = errors.New("operation requires file ownership")

	ErrUserNotFound = errors.New("user not found")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ObjectWriteError means the binary write failed and no metadata exists.
type ObjectWriteError struct {
	Key string
	Err error
}

func (e *ObjectWriteError) Error() string {
	return fmt.Sprintf("write object %s: %v", e.Key, e.Err)
}

func (e *ObjectWriteError) Unwrap() error { return e.Err }

// ObjectDeleteError is non-fatal for a record delete: the record is gone and
// the object is queued for reconciliation.
type ObjectDeleteError struct {
	Key string
	Err error
}

func (e *ObjectDeleteError) Error() string {
	return fmt.Sprintf("delete object %s: %v", e.Key, e.Err)
}

func (e *ObjectDeleteError) Unwrap() error { return e.Err }

type MetadataWriteError struct {
	Op  string
	Err error
}

func (e *MetadataWriteError) Error() string {
	return fmt.Sprintf("metadata %s: %v", e.Op, e.Err)
}

func (e *MetadataWriteError) Unwrap() error { return e.Err }
