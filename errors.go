package variantcache

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidTestContext is returned for a context naming a test with
	// neither a variant nor an exclusion (or both).
	ErrInvalidTestContext = errors.New("variantcache: invalid test context")

	// ErrNoAssignmentStore is returned when a request reaches a partitioned
	// page without an AssignmentStore to resolve the visitor.
	ErrNoAssignmentStore = errors.New("variantcache: request has no assignment store")
)

// WriteError reports a failed partitioned write. The pointer and variant
// writes are independent, so either may have succeeded.
type WriteError struct {
	BaseKey    string
	PointerErr error
	VariantErr error
}

func (e *WriteError) Error() string {
	switch {
	case e.PointerErr != nil && e.VariantErr != nil:
		return fmt.Sprintf("store %q failed: pointer=%v; variant=%v", e.BaseKey, e.PointerErr, e.VariantErr)
	case e.PointerErr != nil:
		return fmt.Sprintf("store %q: pointer write failed: %v", e.BaseKey, e.PointerErr)
	case e.VariantErr != nil:
		return fmt.Sprintf("store %q: variant write failed: %v", e.BaseKey, e.VariantErr)
	default:
		return fmt.Sprintf("store %q: unknown error", e.BaseKey)
	}
}

func (e *WriteError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.PointerErr != nil {
		errs = append(errs, e.PointerErr)
	}
	if e.VariantErr != nil {
		errs = append(errs, e.VariantErr)
	}
	return errs
}

// InvalidateError lists the tags whose generation could not be bumped.
// Entries depending on them may still be served until they expire.
type InvalidateError struct {
	Tags []string
	Errs []error
}

func (e *InvalidateError) Error() string {
	return fmt.Sprintf("invalidate %s: %d tag bump(s) failed: %v",
		strings.Join(e.Tags, ","), len(e.Errs), errors.Join(e.Errs...))
}

func (e *InvalidateError) Unwrap() []error { return e.Errs }

// AssignmentError wraps a Visitor Assignment Store failure. It is fatal to
// the request: guessing "no test" could show a visitor inconsistent variants.
type AssignmentError struct {
	Test string
	Op   string // "get", "set_variant", "set_excluded"
	Err  error
}

func (e *AssignmentError) Error() string {
	return fmt.Sprintf("variantcache: assignment %s for test %q: %v", e.Op, e.Test, e.Err)
}

func (e *AssignmentError) Unwrap() error { return e.Err }
