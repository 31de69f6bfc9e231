package host

import (
	"fmt"
	"reflect"
)

// LookupError reports that a module or a name inside it cannot be resolved.
type LookupError struct {
	Module string
	Name   string
	Err    error
}

func (e *LookupError) Error() string {
	if e.Module == "" {
		return fmt.Sprintf("cannot resolve %s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("cannot resolve %s.%s: %v", e.Module, e.Name, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// SetupError reports a declaration, setup statement or argument expression
// the host refused to evaluate.
type SetupError struct {
	Stmt string
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup %q failed: %v", e.Stmt, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// ArityError reports a call with the wrong number of arguments. Its message
// uses the phrasings the arity classifier understands.
type ArityError struct {
	Label    string
	Want     int
	Got      int
	Variadic bool
}

func (e *ArityError) Error() string {
	switch {
	case e.Variadic:
		return fmt.Sprintf("%s() takes at least %d arguments (%d given)", e.Label, e.Want, e.Got)
	case e.Want == 0:
		return fmt.Sprintf("%s() takes no arguments (%d given)", e.Label, e.Got)
	case e.Want == 1:
		return fmt.Sprintf("%s() takes exactly one argument (%d given)", e.Label, e.Got)
	}
	return fmt.Sprintf("%s() takes exactly %d arguments (%d given)", e.Label, e.Want, e.Got)
}

// ArgumentError reports an argument that cannot be converted to the
// parameter type.
type ArgumentError struct {
	Label string
	Index int
	Want  reflect.Type
	Got   reflect.Type
}

func (e *ArgumentError) Error() string {
	got := "nil"
	if e.Got != nil {
		got = e.Got.String()
	}
	return fmt.Sprintf("%s() argument %d must be %s, not %s", e.Label, e.Index+1, e.Want, got)
}

// ReturnedError is a non-nil error returned by the callee.
type ReturnedError struct {
	Label string
	Err   error
}

func (e *ReturnedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Label, e.Err)
}

func (e *ReturnedError) Unwrap() error { return e.Err }

// PanicError is a panic recovered from the callee.
type PanicError struct {
	Label string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Label, e.Value)
}
