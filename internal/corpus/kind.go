package corpus

import "strings"

// Kind is the coarse type of a parameter slot.
type Kind string

const (
	KindUnknown       Kind = "unknown"
	KindBytes         Kind = "bytes"
	KindInteger       Kind = "integer"
	KindAny           Kind = "any"
	KindDouble        Kind = "double"
	KindBoolean       Kind = "boolean"
	KindString        Kind = "string"
	KindException     Kind = "exception"
	KindExceptionType Kind = "exception type"
	KindTraceback     Kind = "traceback"
)

// ParseKind maps a manifest spelling to a Kind. Unrecognised names map to
// KindUnknown.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bytes", "byte-like object", "[]byte":
		return KindBytes
	case "integer", "int":
		return KindInteger
	case "any", "object", "interface{}":
		return KindAny
	case "double", "float", "float64":
		return KindDouble
	case "boolean", "bool":
		return KindBoolean
	case "string", "str":
		return KindString
	case "exception", "error":
		return KindException
	case "exception type", "exception_type", "error type":
		return KindExceptionType
	case "traceback", "stack":
		return KindTraceback
	}
	return KindUnknown
}

// String returns the kind name.
func (k Kind) String() string {
	return string(k)
}

// DefaultValue returns the value guessed for a slot of this kind before
// anything better is known.
func (k Kind) DefaultValue() Value {
	switch k {
	case KindBytes:
		return Literal("[]byte{}")
	case KindInteger:
		return Literal("1")
	case KindAny:
		return Literal("struct{}{}")
	case KindDouble:
		return Literal("4.2")
	case KindBoolean:
		return Literal("true")
	case KindString:
		return Literal(`"string"`)
	case KindException:
		return Import(`errors.New("exception")`, "errors")
	case KindExceptionType:
		return Import("reflect.TypeOf((*error)(nil)).Elem()", "reflect")
	case KindTraceback:
		return Literal("[]uintptr{}")
	}
	return Literal("[]int{1, 2, 3}")
}
