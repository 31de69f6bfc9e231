package host

import (
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

var errNoHandle = errors.New("no value to call a method on")

// Dispatch calls fn with args through reflection and returns the call's
// handle: the first result, or the zero Value when fn returns nothing but an
// error. A trailing non-nil error result is returned as *ReturnedError
// together with the handle. Panics are recovered as *PanicError.
func Dispatch(label string, fn reflect.Value, args []reflect.Value) (handle reflect.Value, err error) {
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return reflect.Value{}, &LookupError{Name: label, Err: fmt.Errorf("not a function")}
	}
	if fn.IsNil() {
		return reflect.Value{}, &LookupError{Name: label, Err: fmt.Errorf("nil function")}
	}

	ft := fn.Type()
	in, err := coerceArgs(label, ft, args)
	if err != nil {
		return reflect.Value{}, err
	}

	defer func() {
		if r := recover(); r != nil {
			handle = reflect.Value{}
			err = &PanicError{Label: label, Value: r, Stack: debug.Stack()}
		}
	}()

	out := fn.Call(in)
	return splitResults(label, ft, out)
}

func coerceArgs(label string, ft reflect.Type, args []reflect.Value) ([]reflect.Value, error) {
	n := ft.NumIn()
	if ft.IsVariadic() {
		if len(args) < n-1 {
			return nil, &ArityError{Label: label, Want: n - 1, Got: len(args), Variadic: true}
		}
	} else if len(args) != n {
		return nil, &ArityError{Label: label, Want: n, Got: len(args)}
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		pt := paramType(ft, i)
		v, ok := coerce(arg, pt)
		if !ok {
			var got reflect.Type
			if arg.IsValid() {
				got = arg.Type()
			}
			return nil, &ArgumentError{Label: label, Index: i, Want: pt, Got: got}
		}
		in[i] = v
	}
	return in, nil
}

func paramType(ft reflect.Type, i int) reflect.Type {
	n := ft.NumIn()
	if ft.IsVariadic() && i >= n-1 {
		return ft.In(n - 1).Elem()
	}
	return ft.In(i)
}

// coerce converts arg to t the way an untyped constant would be converted by
// the compiler, plus string/byte-slice conversions and nil to any nillable type.
func coerce(arg reflect.Value, t reflect.Type) (reflect.Value, bool) {
	if !arg.IsValid() {
		if nillable(t.Kind()) {
			return reflect.Zero(t), true
		}
		return reflect.Value{}, false
	}
	if arg.Kind() == reflect.Interface && !arg.IsNil() {
		arg = arg.Elem()
	}

	at := arg.Type()
	switch {
	case at.AssignableTo(t):
		return arg, true
	case numeric(at.Kind()) && numeric(t.Kind()):
		return arg.Convert(t), true
	case stringLike(at, t) && arg.CanConvert(t):
		return arg.Convert(t), true
	}
	return reflect.Value{}, false
}

func nillable(k reflect.Kind) bool {
	switch k {
	case reflect.Ptr, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface, reflect.UnsafePointer:
		return true
	}
	return false
}

func numeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func stringLike(a, b reflect.Type) bool {
	return (a.Kind() == reflect.String && b.Kind() == reflect.Slice) ||
		(a.Kind() == reflect.Slice && b.Kind() == reflect.String)
}

func splitResults(label string, ft reflect.Type, out []reflect.Value) (reflect.Value, error) {
	if len(out) == 0 {
		return reflect.Value{}, nil
	}

	last := ft.NumOut() - 1
	if ft.Out(last) == errorType {
		var err error
		if !out[last].IsNil() {
			err = &ReturnedError{Label: label, Err: out[last].Interface().(error)}
		}
		if last == 0 {
			return reflect.Value{}, err
		}
		return out[0], err
	}
	return out[0], nil
}

// =============================================================================
// METHODS AND CAPABILITIES
// =============================================================================

// Method returns the bound method name of recv. Methods declared on the
// pointer receiver are found for non-pointer values too.
func Method(recv reflect.Value, name string) (reflect.Value, error) {
	recv = indirectInterface(recv)
	if !recv.IsValid() {
		return reflect.Value{}, &LookupError{Name: name, Err: errNoHandle}
	}

	if m := recv.MethodByName(name); m.IsValid() {
		return m, nil
	}
	if recv.Kind() != reflect.Ptr {
		p := reflect.New(recv.Type())
		p.Elem().Set(recv)
		if m := p.MethodByName(name); m.IsValid() {
			return m, nil
		}
	}
	return reflect.Value{}, &LookupError{
		Module: recv.Type().String(),
		Name:   name,
		Err:    fmt.Errorf("no such method"),
	}
}

// Supports reports whether v has every named method.
func Supports(v reflect.Value, ops ...string) bool {
	v = indirectInterface(v)
	if !v.IsValid() {
		return false
	}
	for _, op := range ops {
		if _, err := Method(v, op); err != nil {
			return false
		}
	}
	return true
}

func indirectInterface(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}
