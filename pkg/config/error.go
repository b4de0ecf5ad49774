package config

import "fmt"

// Error is a fatal configuration fault: both target sources supplied, an
// unresolvable root, a mixed-device set, a bad pattern. Nothing has been
// enumerated or mutated when one is raised, and the CLI exits with code 2.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an Error from a format string.
func Errorf(format string, args ...interface{}) *Error {
	return &Error{Reason: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a new Error.
func Wrap(err error, format string, args ...interface{}) *Error {
	return &Error{Reason: fmt.Sprintf(format, args...), Err: err}
}
