package dispatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/harrison/dupescan/internal/models"
)

// ErrAllTiersFailed is matched by errors.Is for every AllTiersFailedError.
var ErrAllTiersFailed = errors.New("all backend tiers failed")

// errUnavailable marks a tier that was skipped because probing failed.
var errUnavailable = errors.New("backend unavailable")

// TierError records why one backend tier could not serve a request.
type TierError struct {
	Backend string
	Kind    models.BackendKind
	// Skipped is true when the tier was never invoked because it probed unavailable.
	Skipped bool
	Err     error
}

// Error implements the error interface for TierError.
func (e TierError) Error() string {
	if e.Skipped {
		return fmt.Sprintf("%s (%s): skipped: %v", e.Backend, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Backend, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e TierError) Unwrap() error {
	return e.Err
}

// AllTiersFailedError is returned when no backend could serve a request.
// Tiers holds one entry per registered backend in the order they were tried.
type AllTiersFailedError struct {
	Operation string
	Tiers     []TierError
}

// Error implements the error interface for AllTiersFailedError.
func (e *AllTiersFailedError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: all %d backend tiers failed", e.Operation, len(e.Tiers)))
	if len(e.Tiers) > 0 {
		sb.WriteString(":")
		for _, t := range e.Tiers {
			sb.WriteString("\n  - ")
			sb.WriteString(t.Error())
		}
	}
	return sb.String()
}

// Is lets errors.Is(err, ErrAllTiersFailed) match.
func (e *AllTiersFailedError) Is(target error) bool {
	return target == ErrAllTiersFailed
}

// PermanentError wraps an item-level failure that every tier would report
// identically, such as the input file not existing. The dispatcher returns
// it without trying lower tiers.
type PermanentError struct {
	Err error
}

// Permanent wraps err so that the dispatcher stops the tier cascade.
// A nil err returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Error implements the error interface for PermanentError.
func (e *PermanentError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the wrapped error.
func (e *PermanentError) Unwrap() error {
	return e.Err
}
