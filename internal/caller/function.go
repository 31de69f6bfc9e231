package caller

import (
	"fmt"

	"callfuzz/internal/corpus"
	"callfuzz/internal/target"
)

// Result bindings and argument prefixes of each layer.
const (
	bindResult = "r"
	bindObject = "object"
	bindFollow = "f"

	prefixFunction = "p"
	prefixMethod   = "m"
	prefixFollowUp = "a"
)

// =============================================================================
// FUNCTION CALLER
// =============================================================================

// FunctionCaller calls a free function.
type FunctionCaller struct {
	layer
	fn *target.Function
}

// NewFunctionCaller binds fn to its default guesses.
func NewFunctionCaller(fn *target.Function) *FunctionCaller {
	c := &FunctionCaller{fn: fn}
	c.values = defaults(fn)
	_ = c.Compose()
	return c
}

func (c *FunctionCaller) Compose() error {
	if err := checkShape(c.Label(), c.fn.NumParams(), len(c.values)); err != nil {
		return err
	}
	inv := c.call(Invocation{}, Call{
		Kind:   KindFunction,
		Module: c.fn.Module(),
		Name:   c.fn.Name(),
		Bind:   bindResult,
	}, prefixFunction)
	inv.Declarations = inv.Declarations.With(importDecls(c.fn.Module())...)
	c.inv = inv
	return nil
}

func (c *FunctionCaller) SetValue(slot int, v corpus.Value) error {
	if err := c.set(c.Label(), slot, v); err != nil {
		return err
	}
	return c.Compose()
}

func (c *FunctionCaller) Clone() Caller {
	return &FunctionCaller{
		layer: layer{values: c.cloneValues(), inv: c.inv.Clone()},
		fn:    c.fn,
	}
}

func (c *FunctionCaller) Key() Key {
	return Key{Dir: c.fn.Module(), Name: keyName(c.fn.QualifiedName())}
}

func (c *FunctionCaller) Label() string           { return c.fn.QualifiedName() }
func (c *FunctionCaller) Target() target.Callable { return c.fn }

func (c *FunctionCaller) Reshape(n int) error {
	if err := c.fn.Reshape(n); err != nil {
		return err
	}
	return c.Reset()
}

func (c *FunctionCaller) Reset() error {
	c.values = defaults(c.fn)
	return c.Compose()
}

// =============================================================================
// CONSTRUCTOR CALLER
// =============================================================================

// ConstructorCaller instantiates a class through its constructor.
type ConstructorCaller struct {
	layer
	class *target.Class
	ctor  *target.Method
}

// NewConstructorCaller binds the class constructor to its default guesses.
func NewConstructorCaller(cls *target.Class) (*ConstructorCaller, error) {
	ctor := cls.Constructor()
	if ctor == nil {
		return nil, fmt.Errorf("class %s has no constructor", cls.QualifiedName())
	}
	c := &ConstructorCaller{class: cls, ctor: ctor}
	c.values = defaults(ctor)
	_ = c.Compose()
	return c, nil
}

// Compose builds the constructor call the way a function call is built and
// then declares the class's module.
func (c *ConstructorCaller) Compose() error {
	if err := checkShape(c.Label(), c.ctor.NumParams(), len(c.values)); err != nil {
		return err
	}
	inv := c.call(Invocation{}, Call{
		Kind:   KindConstructor,
		Module: c.class.Module(),
		Name:   c.ctor.Name(),
		Bind:   bindObject,
	}, prefixFunction)
	inv.Declarations = inv.Declarations.With(importDecls(c.class.Module())...)
	c.inv = inv
	return nil
}

func (c *ConstructorCaller) SetValue(slot int, v corpus.Value) error {
	if err := c.set(c.Label(), slot, v); err != nil {
		return err
	}
	return c.Compose()
}

func (c *ConstructorCaller) Clone() Caller {
	return c.clone()
}

func (c *ConstructorCaller) clone() *ConstructorCaller {
	return &ConstructorCaller{
		layer: layer{values: c.cloneValues(), inv: c.inv.Clone()},
		class: c.class,
		ctor:  c.ctor,
	}
}

func (c *ConstructorCaller) Key() Key {
	return Key{Dir: classDir(c.class), Name: keyName(c.ctor.QualifiedName())}
}

func (c *ConstructorCaller) Label() string           { return c.ctor.QualifiedName() }
func (c *ConstructorCaller) Target() target.Callable { return c.ctor }
func (c *ConstructorCaller) Class() *target.Class    { return c.class }

func (c *ConstructorCaller) Reshape(n int) error {
	if err := c.ctor.Reshape(n); err != nil {
		return err
	}
	return c.Reset()
}

func (c *ConstructorCaller) Reset() error {
	c.values = defaults(c.ctor)
	return c.Compose()
}

func classDir(cls *target.Class) string {
	if cls.Module() == "" {
		return cls.Name()
	}
	return cls.Module() + "/" + cls.Name()
}
