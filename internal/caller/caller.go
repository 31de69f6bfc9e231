// Package caller binds targets to concrete argument values and composes them
// into runnable invocations.
//
// Callers are layered: a ConstructorCaller produces an object, a MethodCaller
// calls a method on the object produced by its ConstructorCaller, and a
// FollowUpCaller calls a method on whatever its base caller produced. Each
// layer composes the layer below it first and merges its declarations and
// setup statements before adding its own.
package caller

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"callfuzz/internal/corpus"
	"callfuzz/internal/target"
)

// ErrComposition marks internal contract violations of the caller model.
var ErrComposition = errors.New("composition error")

// ShapeMismatchError is returned by Compose when the number of assigned
// values does not match the number of slots.
type ShapeMismatchError struct {
	Label  string
	Slots  int
	Values int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s: %d values assigned to %d slots", e.Label, e.Values, e.Slots)
}

func (e *ShapeMismatchError) Is(target error) bool {
	return target == ErrComposition
}

// Key identifies the dump location of a caller's reproductions.
type Key struct {
	Dir  string
	Name string
}

func (k Key) String() string {
	if k.Dir == "" {
		return k.Name
	}
	return k.Dir + "/" + k.Name
}

// Caller is a target bound to one value per slot.
type Caller interface {
	// Compose rebuilds the invocation from the current values.
	Compose() error
	// SetValue replaces the value of a slot and recomposes.
	SetValue(slot int, v corpus.Value) error
	Value(slot int) corpus.Value
	Values() []corpus.Value
	NumSlots() int
	// Clone returns an independent copy, including every layer below.
	Clone() Caller
	// Invocation returns a copy of the last composed invocation.
	Invocation() Invocation
	Key() Key
	Label() string
}

// Discoverable is a caller whose target shape the discovery search may
// change.
type Discoverable interface {
	Caller
	Target() target.Callable
	// Reshape rebuilds the target with n slots and resets the values.
	Reshape(n int) error
	// Reset assigns every slot its default guess and recomposes.
	Reset() error
}

// =============================================================================
// SHARED LAYER STATE
// =============================================================================

// layer holds the values of one call and composes that call.
type layer struct {
	values []corpus.Value
	inv    Invocation
}

func (l *layer) Value(slot int) corpus.Value { return l.values[slot] }
func (l *layer) NumSlots() int               { return len(l.values) }

func (l *layer) Values() []corpus.Value {
	return append([]corpus.Value(nil), l.values...)
}

func (l *layer) Invocation() Invocation { return l.inv.Clone() }

func (l *layer) set(label string, slot int, v corpus.Value) error {
	if slot < 0 || slot >= len(l.values) {
		return fmt.Errorf("%s: slot %d out of range [0,%d): %w", label, slot, len(l.values), ErrComposition)
	}
	l.values[slot] = v
	return nil
}

func (l *layer) cloneValues() []corpus.Value {
	if l.values == nil {
		return nil
	}
	return append(make([]corpus.Value, 0, len(l.values)), l.values...)
}

// call builds the call for this layer and merges the values' declarations
// and setup into base.
func (l *layer) call(base Invocation, c Call, prefix string) Invocation {
	inv := base.Clone()

	for i, v := range l.values {
		inv.Declarations = inv.Declarations.With(v.Decls...)
		inv.Setup = inv.Setup.With(v.Setup...)
		c.Args = append(c.Args, Arg{Name: prefix + strconv.Itoa(i+1), Expr: v.Expr})
	}
	inv.Calls = append(inv.Calls, c)
	return inv
}

// defaults returns the default guess of every slot.
func defaults(t target.Callable) []corpus.Value {
	values := make([]corpus.Value, t.NumParams())
	for i, slot := range t.Slots() {
		if def, ok := slot.Default(); ok {
			values[i] = def
			continue
		}
		values[i] = slot.Kind().DefaultValue()
	}
	return values
}

func checkShape(label string, slots, values int) error {
	if slots != values {
		return &ShapeMismatchError{Label: label, Slots: slots, Values: values}
	}
	return nil
}

var keyReplacer = strings.NewReplacer(".", "_", "/", "_")

func keyName(qualified string) string {
	return keyReplacer.Replace(qualified)
}

func importDecls(module string) []string {
	if module == "" || module == "main" {
		return nil
	}
	return []string{corpus.ImportDecl(module)}
}
