package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrInvalidState = errors.New("invalid state")
	ErrNotFound     = errors.New("not found")
	ErrStore        = errors.New("store error")
)

// ValidationError reports malformed input: non-positive amounts, missing dates,
// unknown enum names.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// InvalidStateError is returned when a settlement targets a paid record.
type InvalidStateError struct {
	ID     string
	Status string
	Action string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("payment %s is %s: cannot %s", e.ID, e.Status, e.Action)
}

func (e *InvalidStateError) Is(target error) bool { return target == ErrInvalidState }

// NotFoundError reports a missing record. Kind defaults to "payment".
type NotFoundError struct {
	ID   string
	Kind string
}

func (e *NotFoundError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "payment"
	}
	return fmt.Sprintf("%s %s not found", kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// StoreError wraps an adapter failure. Created counts the records written by a
// multi-record operation before it failed.
type StoreError struct {
	Op      string
	Created int
	Err     error
}

func (e *StoreError) Error() string {
	if e.Created > 0 {
		return fmt.Sprintf("store %s (created %d before failure): %v", e.Op, e.Created, e.Err)
	}
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }

func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
