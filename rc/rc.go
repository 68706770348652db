// Package rc defines the SMP wire result codes and the mapping from the
// internal error taxonomy to them. There is no finer-grained wire
// taxonomy than this set of integers: every handler error, whatever its
// origin, collapses to one of these before it reaches the peer.
package rc

import (
	"errors"
	"fmt"

	"github.com/openenterprise/smpboot/flash"
)

// Result codes, per the SMP wire format.
const (
	OK       = 0
	UNKNOWN  = 1
	NOMEM    = 2
	EINVAL   = 3
	ENOENT   = 5
	ENOTSUP  = 8
	EBUSY    = 10
)

// Sentinel errors shared across handler packages that don't have a more
// specific taxonomy of their own.
var (
	ErrInvalidRequest  = errors.New("rc: invalid request")
	ErrNotFound        = errors.New("rc: not found")
	ErrUnsupported     = errors.New("rc: unsupported")
	ErrBusy            = errors.New("rc: busy")
	ErrNoMemory        = errors.New("rc: no memory")
	ErrValidationFailed = errors.New("rc: validation failed")
)

// String renders a result code the way smpctl prints it in error
// output; codes outside the known set render as their bare number.
func String(code int) string {
	switch code {
	case OK:
		return "OK"
	case UNKNOWN:
		return "UNKNOWN"
	case NOMEM:
		return "NOMEM"
	case EINVAL:
		return "EINVAL"
	case ENOENT:
		return "ENOENT"
	case ENOTSUP:
		return "ENOTSUP"
	case EBUSY:
		return "EBUSY"
	default:
		return fmt.Sprintf("rc=%d", code)
	}
}

// FromError maps an internal error to a wire result code. A flash area
// that cannot be found maps to ENOENT; the other flash errors have no
// dedicated wire code, so they map to EINVAL, same as any other
// malformed-request condition.
func FromError(err error) int {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, ErrNotFound), errors.Is(err, flash.ErrNotFound):
		return ENOENT
	case errors.Is(err, ErrUnsupported):
		return ENOTSUP
	case errors.Is(err, ErrBusy):
		return EBUSY
	case errors.Is(err, ErrNoMemory):
		return NOMEM
	case errors.Is(err, flash.ErrOutOfBounds),
		errors.Is(err, flash.ErrMisaligned),
		errors.Is(err, flash.ErrIO),
		errors.Is(err, flash.ErrBadSlot),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrValidationFailed):
		return EINVAL
	default:
		return UNKNOWN
	}
}
