package faults

import "errors"

// LookupError marks threshold lookup failures ("we don't know").
// Params: wrapped store root cause.
// Returns: error kind distinct from "nothing to check"; retryable.
type LookupError struct {
	Err error
}

// Error returns wrapped error message.
// Params: none.
// Returns: string representation.
func (e LookupError) Error() string {
	if e.Err == nil {
		return "threshold lookup failed"
	}
	return "threshold lookup failed: " + e.Err.Error()
}

// Unwrap exposes wrapped cause for errors.Is/errors.As.
// Params: none.
// Returns: wrapped error.
func (e LookupError) Unwrap() error {
	return e.Err
}

// PersistError marks alert persistence failures after retries exhaust.
// Params: wrapped store root cause.
// Returns: error kind surfaced to the caller, never swallowed.
type PersistError struct {
	Err error
}

// Error returns wrapped error message.
// Params: none.
// Returns: string representation.
func (e PersistError) Error() string {
	if e.Err == nil {
		return "alert persistence failed"
	}
	return "alert persistence failed: " + e.Err.Error()
}

// Unwrap exposes wrapped cause for errors.Is/errors.As.
// Params: none.
// Returns: wrapped error.
func (e PersistError) Unwrap() error {
	return e.Err
}

// MarkLookup wraps error as threshold lookup failure.
// Params: source error.
// Returns: wrapped lookup error or nil.
func MarkLookup(err error) error {
	if err == nil {
		return nil
	}
	return LookupError{Err: err}
}

// MarkPersist wraps error as alert persistence failure.
// Params: source error.
// Returns: wrapped persistence error or nil.
func MarkPersist(err error) error {
	if err == nil {
		return nil
	}
	return PersistError{Err: err}
}

// IsLookup reports whether error carries the lookup failure marker.
// Params: candidate error.
// Returns: true when the caller should retry the observation.
func IsLookup(err error) bool {
	var marker LookupError
	return errors.As(err, &marker)
}

// IsPersist reports whether error carries the persistence failure marker.
// Params: candidate error.
// Returns: true when the alert record was not durably written.
func IsPersist(err error) bool {
	var marker PersistError
	return errors.As(err, &marker)
}
