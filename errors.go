package ociadapt

import (
	"errors"
	"fmt"

	"github.com/DamienR91/ociadapt/oci"
)

// Standard sentinel errors for common operations.
var (
	// ErrClosed is returned when an operation is attempted on a released
	// statement.
	ErrClosed = errors.New("ociadapt: statement closed")
)

// UnsupportedError is returned when an unrecognized fetch mode or binding
// discipline is requested.
type UnsupportedError struct {
	Op     string
	Detail string
}

// Error returns the error string.
func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("ociadapt: %s: unsupported: %s", e.Op, e.Detail)
}

// Is reports whether the target matches errors.ErrUnsupported, so callers
// can test with the standard sentinel.
func (e *UnsupportedError) Is(err error) bool {
	return err == errors.ErrUnsupported
}

// IsUnsupported returns true if the error is an UnsupportedError.
func IsUnsupported(err error) bool {
	if err == nil {
		return false
	}
	var e *UnsupportedError
	return errors.As(err, &e) || errors.Is(err, errors.ErrUnsupported)
}

// InvalidArgumentError is returned when a required mode or binding argument
// is missing or has an unusable type.
type InvalidArgumentError struct {
	Op     string
	Reason string
}

// Error returns the error string.
func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("ociadapt: %s: invalid argument: %s", e.Op, e.Reason)
}

// IsInvalidArgument returns true if the error is an InvalidArgumentError.
func IsInvalidArgument(err error) bool {
	if err == nil {
		return false
	}
	var e *InvalidArgumentError
	return errors.As(err, &e)
}

// DriverError wraps the native client's error descriptor together with the
// operation that triggered it. It is never retried by this package; retry
// policy belongs to the caller.
type DriverError struct {
	Op  string
	Err error
}

// Error returns the error string.
func (e *DriverError) Error() string {
	return fmt.Sprintf("ociadapt: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying native error.
func (e *DriverError) Unwrap() error {
	return e.Err
}

// Code returns the native error code, or 0 when the descriptor carries none.
func (e *DriverError) Code() int {
	var ne *oci.Error
	if errors.As(e.Err, &ne) {
		return ne.Code
	}
	return 0
}

// IsDriverError returns true if the error wraps a native client failure.
func IsDriverError(err error) bool {
	if err == nil {
		return false
	}
	var e *DriverError
	return errors.As(err, &e)
}

func driverErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DriverError{Op: op, Err: err}
}
