package errors

import "fmt"

// ErrValidation signals malformed input. It is always returned before any
// state mutation.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return e.Field + ": " + e.Message
}

// ErrInvalidState signals a transition attempted from a state that does not
// permit it, e.g. deciding an action that is no longer pending. It carries the
// state that blocked the transition so a UI can explain the failure.
type ErrInvalidState struct {
	ID       string
	Status   string
	Op       string
	Expected string
}

func (e *ErrInvalidState) Error() string {
	return fmt.Sprintf("%s %s: status is %q, expected %q", e.Op, e.ID, e.Status, e.Expected)
}

// ErrNotFound signals an unknown action or rule id.
type ErrNotFound struct {
	Entity string
	ID     string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ErrIntegrity signals a violated internal invariant, e.g. a defined success
// rate alongside a zero trigger counter. It indicates a bug, not a normal
// runtime condition, and callers log it at error level.
type ErrIntegrity struct {
	Entity  string
	ID      string
	Message string
}

func (e *ErrIntegrity) Error() string {
	return fmt.Sprintf("integrity violation on %s %s: %s", e.Entity, e.ID, e.Message)
}
