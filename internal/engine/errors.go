package engine

import "fmt"

// ValidationError reports a malformed request field. It is safe to show to
// the caller.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// UnhandledError is any other orchestration failure. No partial
// recommendation accompanies it.
type UnhandledError struct {
	Err error
}

func (e *UnhandledError) Error() string { return e.Err.Error() }
func (e *UnhandledError) Unwrap() error { return e.Err }
