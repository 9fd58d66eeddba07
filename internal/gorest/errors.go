package gorest

import "fmt"

// Op names the intent of a failed call.
type Op string

const (
	OpFetch  Op = "fetch"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Error is the only failure shape callers see. The underlying transport
// or decode error is logged at the call site, not carried here: callers
// get the intended operation and its target, nothing else.
type Error struct {
	Op     Op
	Target string
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to %s %s", e.Op, e.Target)
}

func opErr(op Op, target string) *Error {
	return &Error{Op: op, Target: target}
}
