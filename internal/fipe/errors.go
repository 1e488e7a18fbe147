package fipe

import (
	"errors"
	"fmt"
)

// TransientError marks a failure worth retrying: network faults, timeouts,
// rate-limit responses and upstream 5xx.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure that retrying cannot fix: malformed
// parameters, non-rate-limit 4xx and schema violations on a single record.
type PermanentError struct {
	Op  string
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent: %s: %v", e.Op, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// UnitFailure records a work unit that could not complete even after the
// client exhausted its retries. It is collected, never propagated as fatal.
type UnitFailure struct {
	UnitID string
	Err    error
}

func (e *UnitFailure) Error() string {
	return fmt.Sprintf("unit %s failed: %v", e.UnitID, e.Err)
}

func (e *UnitFailure) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsPermanent reports whether err is (or wraps) a PermanentError.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

// Transient wraps err as retryable under the given operation name.
func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// Permanent wraps err as non-retryable under the given operation name.
func Permanent(op string, err error) error {
	return &PermanentError{Op: op, Err: err}
}
