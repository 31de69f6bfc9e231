package caller

import (
	"fmt"

	"callfuzz/internal/corpus"
	"callfuzz/internal/target"
)

// =============================================================================
// METHOD CALLER
// =============================================================================

// MethodCaller calls a method on the object produced by its constructor
// caller. The constructor caller is owned: cloning a MethodCaller clones it.
type MethodCaller struct {
	layer
	method *target.Method
	ctor   *ConstructorCaller
}

// NewMethodCaller binds m to its default guesses on top of ctor. The caller
// takes ownership of ctor.
func NewMethodCaller(m *target.Method, ctor *ConstructorCaller) *MethodCaller {
	c := &MethodCaller{method: m, ctor: ctor}
	c.values = defaults(m)
	_ = c.Compose()
	return c
}

func (c *MethodCaller) Compose() error {
	if err := checkShape(c.Label(), c.method.NumParams(), len(c.values)); err != nil {
		return err
	}
	if err := c.ctor.Compose(); err != nil {
		return fmt.Errorf("%s: constructor: %w", c.Label(), err)
	}
	c.inv = c.call(c.ctor.inv, Call{
		Kind:   KindMethod,
		Module: c.method.Module(),
		Name:   c.method.Name(),
		Recv:   bindObject,
		Bind:   bindResult,
	}, prefixMethod)
	return nil
}

func (c *MethodCaller) SetValue(slot int, v corpus.Value) error {
	if err := c.set(c.Label(), slot, v); err != nil {
		return err
	}
	return c.Compose()
}

func (c *MethodCaller) Clone() Caller {
	return &MethodCaller{
		layer:  layer{values: c.cloneValues(), inv: c.inv.Clone()},
		method: c.method,
		ctor:   c.ctor.clone(),
	}
}

// Constructor returns the owned constructor caller.
func (c *MethodCaller) Constructor() *ConstructorCaller { return c.ctor }

func (c *MethodCaller) Key() Key {
	return Key{Dir: classDir(c.method.Class()), Name: keyName(c.method.QualifiedName())}
}

func (c *MethodCaller) Label() string           { return c.method.QualifiedName() }
func (c *MethodCaller) Target() target.Callable { return c.method }

func (c *MethodCaller) Reshape(n int) error {
	if err := c.method.Reshape(n); err != nil {
		return err
	}
	return c.Reset()
}

func (c *MethodCaller) Reset() error {
	c.values = defaults(c.method)
	return c.Compose()
}

// =============================================================================
// FOLLOW-UP CALLER
// =============================================================================

// FollowUpCaller calls a method on the result of a base caller's invocation.
type FollowUpCaller struct {
	layer
	base   Caller
	method string
}

// NewFollowUp chains method onto a copy of base. Each kind adds one slot
// holding its default guess.
func NewFollowUp(base Caller, method string, kinds ...corpus.Kind) *FollowUpCaller {
	c := &FollowUpCaller{base: base.Clone(), method: method}
	c.values = make([]corpus.Value, len(kinds))
	for i, k := range kinds {
		c.values[i] = k.DefaultValue()
	}
	_ = c.Compose()
	return c
}

func (c *FollowUpCaller) Compose() error {
	if err := c.base.Compose(); err != nil {
		return fmt.Errorf("%s: base: %w", c.Label(), err)
	}
	base := c.base.Invocation()
	last, ok := base.Last()
	if !ok {
		return fmt.Errorf("%s: base has no call to follow: %w", c.Label(), ErrComposition)
	}
	c.inv = c.call(base, Call{
		Kind: KindFollowUp,
		Name: c.method,
		Recv: last.Bind,
		Bind: bindFollow,
	}, prefixFollowUp)
	return nil
}

func (c *FollowUpCaller) SetValue(slot int, v corpus.Value) error {
	if err := c.set(c.Label(), slot, v); err != nil {
		return err
	}
	return c.Compose()
}

func (c *FollowUpCaller) Clone() Caller {
	return &FollowUpCaller{
		layer:  layer{values: c.cloneValues(), inv: c.inv.Clone()},
		base:   c.base.Clone(),
		method: c.method,
	}
}

// Method returns the chained method name.
func (c *FollowUpCaller) Method() string { return c.method }

// Base returns the caller whose result is followed.
func (c *FollowUpCaller) Base() Caller { return c.base }

func (c *FollowUpCaller) Key() Key {
	k := c.base.Key()
	k.Name += "_" + c.method
	return k
}

func (c *FollowUpCaller) Label() string {
	return c.base.Label() + "." + c.method
}
