package store

import "fmt"

// DimensionError indicates an embedding length inconsistent with the
// corpus. It signals an upstream embedding capability change and is
// never silently coerced.
type DimensionError struct {
	Expected int
	Actual   int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ValidationError rejects malformed enrollment input before any state
// changes.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
