// Package target describes the callables the fuzz engine exercises: free
// functions, classes (Go named types with a constructor function) and their
// methods. A target's parameter shape may be unknown until the discovery
// search confirms it.
package target

import (
	"errors"
	"fmt"
	"strings"

	"callfuzz/internal/corpus"
)

// ErrShapeLocked is returned when reshaping a target whose arity is known.
var ErrShapeLocked = errors.New("target shape is locked")

// Slot is a single parameter position.
type Slot struct {
	kind corpus.Kind
	def  *corpus.Value
}

// NewSlot creates a slot. A nil default means the slot has none.
func NewSlot(kind corpus.Kind, def *corpus.Value) Slot {
	s := Slot{kind: kind}
	if def != nil {
		v := *def
		s.def = &v
	}
	return s
}

// Kind returns the slot kind.
func (s Slot) Kind() corpus.Kind { return s.kind }

// Default returns the slot default value, if any.
func (s Slot) Default() (corpus.Value, bool) {
	if s.def == nil {
		return corpus.Value{}, false
	}
	return *s.def, true
}

// Callable is the shape-bearing part of a function or method.
type Callable interface {
	Filename() string
	Module() string
	Name() string
	QualifiedName() string

	Unknown() bool
	NumParams() int
	NumRequired() int
	Slots() []Slot
	Slot(i int) Slot

	// Reshape discards the slots and creates n slots of KindAny without
	// defaults. It fails unless the shape is unknown.
	Reshape(n int) error
	// MarkUnknown unlocks a declared shape that the runtime contradicted.
	MarkUnknown()
	// Confirm locks the current shape.
	Confirm()
}

// signature implements Callable and is embedded by Function and Method.
type signature struct {
	filename string
	module   string
	name     string
	unknown  bool
	slots    []Slot
}

func (s *signature) Filename() string { return s.filename }
func (s *signature) Module() string   { return s.module }
func (s *signature) Name() string     { return s.name }
func (s *signature) Unknown() bool    { return s.unknown }
func (s *signature) NumParams() int   { return len(s.slots) }

func (s *signature) NumRequired() int {
	n := 0
	for _, slot := range s.slots {
		if slot.def == nil {
			n++
		}
	}
	return n
}

func (s *signature) Slots() []Slot {
	out := make([]Slot, len(s.slots))
	copy(out, s.slots)
	return out
}

func (s *signature) Slot(i int) Slot { return s.slots[i] }

func (s *signature) Reshape(n int) error {
	if !s.unknown {
		return fmt.Errorf("reshape %s to %d: %w", s.name, n, ErrShapeLocked)
	}
	if n < 0 {
		return fmt.Errorf("reshape %s: negative parameter count %d", s.name, n)
	}
	s.slots = make([]Slot, n)
	for i := range s.slots {
		s.slots[i] = Slot{kind: corpus.KindAny}
	}
	return nil
}

func (s *signature) MarkUnknown() { s.unknown = true }
func (s *signature) Confirm()     { s.unknown = false }

// AddParam appends a slot and marks the shape as known. Defaults can only be
// set here.
func (s *signature) AddParam(kind corpus.Kind, def *corpus.Value) {
	s.slots = append(s.slots, NewSlot(kind, def))
	s.unknown = false
}

// =============================================================================
// FUNCTIONS
// =============================================================================

// Function is a free function exported by a module.
type Function struct {
	signature
}

// NewFunction creates a function target with an unknown shape.
func NewFunction(filename, module, name string) *Function {
	return &Function{signature{filename: filename, module: module, name: name, unknown: true}}
}

// QualifiedName returns module.name.
func (f *Function) QualifiedName() string {
	return f.module + "." + f.name
}

// =============================================================================
// CLASSES AND METHODS
// =============================================================================

// Method is a callable scoped to a class. The constructor of a class is a
// Method too, although it is called as a module-level function.
type Method struct {
	signature
	class *Class
}

// Class returns the owning class.
func (m *Method) Class() *Class { return m.class }

// QualifiedName returns module.Class.name.
func (m *Method) QualifiedName() string {
	return m.module + "." + m.class.name + "." + m.name
}

// IsConstructor reports whether the method is its class's constructor.
func (m *Method) IsConstructor() bool {
	return m.class.Constructor() == m
}

// Class is a named type owning methods. Exactly one method is distinguished
// as the constructor.
type Class struct {
	filename    string
	module      string
	name        string
	constructor string
	methods     map[string]*Method
	order       []string
}

// NewClass creates an empty class.
func NewClass(filename, module, name string) *Class {
	return &Class{
		filename: filename,
		module:   module,
		name:     name,
		methods:  make(map[string]*Method),
	}
}

func (c *Class) Filename() string { return c.filename }
func (c *Class) Module() string   { return c.module }
func (c *Class) Name() string     { return c.name }

// QualifiedName returns module.Class.
func (c *Class) QualifiedName() string {
	return c.module + "." + c.name
}

// AddMethod creates a method with an unknown shape. Method names are unique.
func (c *Class) AddMethod(name string) (*Method, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("class %s: empty method name", c.name)
	}
	if _, exists := c.methods[name]; exists {
		return nil, fmt.Errorf("class %s: duplicate method %s", c.name, name)
	}
	m := &Method{
		signature: signature{filename: c.filename, module: c.module, name: name, unknown: true},
		class:     c,
	}
	c.methods[name] = m
	c.order = append(c.order, name)
	return m, nil
}

// Method returns a method by name.
func (c *Class) Method(name string) (*Method, bool) {
	m, ok := c.methods[name]
	return m, ok
}

// Methods returns the methods in declaration order.
func (c *Class) Methods() []*Method {
	out := make([]*Method, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.methods[name])
	}
	return out
}

// SetConstructor names the constructor explicitly.
func (c *Class) SetConstructor(name string) {
	c.constructor = name
}

// Constructor returns the distinguished constructor: the explicitly named
// method, else New<Class>, else New. It returns nil when none exists.
func (c *Class) Constructor() *Method {
	for _, name := range []string{c.constructor, "New" + c.name, "New"} {
		if name == "" {
			continue
		}
		if m, ok := c.methods[name]; ok {
			return m
		}
	}
	return nil
}

// HasConstructor reports whether the class can be instantiated.
func (c *Class) HasConstructor() bool {
	return c.Constructor() != nil
}

// =============================================================================
// TARGET SETS
// =============================================================================

// Set is what a target supplier hands to the engine.
type Set struct {
	Functions []*Function
	Classes   []*Class
}

// Len returns the number of top-level targets.
func (s *Set) Len() int {
	return len(s.Functions) + len(s.Classes)
}
