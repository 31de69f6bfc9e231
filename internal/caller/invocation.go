package caller

import (
	"fmt"
	"strings"

	"callfuzz/internal/host"
)

// OrderedSet is an insertion-ordered list without duplicates.
type OrderedSet []string

// With returns a new set holding s followed by the items not already in it.
// The result is nil when it would be empty.
func (s OrderedSet) With(items ...string) OrderedSet {
	var out OrderedSet
	if len(s) > 0 {
		out = append(make(OrderedSet, 0, len(s)+len(items)), s...)
	}
	for _, item := range items {
		if item == "" || out.Contains(item) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// Contains reports whether item is in the set.
func (s OrderedSet) Contains(item string) bool {
	for _, x := range s {
		if x == item {
			return true
		}
	}
	return false
}

// CallKind is the kind of one invocation layer.
type CallKind string

const (
	KindFunction    CallKind = "function"
	KindConstructor CallKind = "constructor"
	KindMethod      CallKind = "method"
	KindFollowUp    CallKind = "followup"
)

// Arg is a named argument expression.
type Arg struct {
	Name string `yaml:"name"`
	Expr string `yaml:"expr"`
}

// Call is one layer of an invocation. Function and constructor calls name a
// module-level callee; method and follow-up calls are made on Recv, the
// binding of an earlier layer's result.
type Call struct {
	Kind   CallKind `yaml:"kind"`
	Module string   `yaml:"module,omitempty"`
	Name   string   `yaml:"name"`
	Recv   string   `yaml:"recv,omitempty"`
	Bind   string   `yaml:"bind"`
	Args   []Arg    `yaml:"args,omitempty"`
}

// Label returns the dotted callee name used in messages.
func (c Call) Label() string {
	switch {
	case c.Recv != "":
		return c.Recv + "." + c.Name
	case c.Module != "":
		return c.Module + "." + c.Name
	}
	return c.Name
}

// Invocation is a composed, runnable call unit.
type Invocation struct {
	Declarations OrderedSet `yaml:"declarations,omitempty"`
	Setup        OrderedSet `yaml:"setup,omitempty"`
	Calls        []Call     `yaml:"calls"`
}

// Clone returns a deep copy.
func (inv Invocation) Clone() Invocation {
	out := Invocation{
		Declarations: inv.Declarations.clone(),
		Setup:        inv.Setup.clone(),
	}
	if inv.Calls != nil {
		out.Calls = make([]Call, len(inv.Calls))
		for i, c := range inv.Calls {
			if c.Args != nil {
				c.Args = append(make([]Arg, 0, len(c.Args)), c.Args...)
			}
			out.Calls[i] = c
		}
	}
	return out
}

func (s OrderedSet) clone() OrderedSet {
	if s == nil {
		return nil
	}
	return append(make(OrderedSet, 0, len(s)), s...)
}

// Last returns the outermost call.
func (inv Invocation) Last() (Call, bool) {
	if len(inv.Calls) == 0 {
		return Call{}, false
	}
	return inv.Calls[len(inv.Calls)-1], true
}

// Source renders the invocation as Go-like statements for reading a case.
// Every call is written as a single-value assignment whatever the callee
// returns, so the text is informational; replay executes the structured
// Calls.
func (inv Invocation) Source() string {
	var b strings.Builder

	for _, d := range inv.Declarations {
		b.WriteString(d)
		b.WriteByte('\n')
	}
	if len(inv.Declarations) > 0 {
		b.WriteByte('\n')
	}
	for _, s := range inv.Setup {
		b.WriteString(s)
		b.WriteByte('\n')
	}
	if len(inv.Setup) > 0 {
		b.WriteByte('\n')
	}

	declared := map[string]bool{}
	assign := func(name string) string {
		if declared[name] {
			return " = "
		}
		declared[name] = true
		return " := "
	}

	for _, c := range inv.Calls {
		names := make([]string, len(c.Args))
		for i, a := range c.Args {
			b.WriteString(a.Name + assign(a.Name) + a.Expr + "\n")
			names[i] = a.Name
		}
		fmt.Fprintf(&b, "%s%s%s(%s)\n", c.Bind, assign(c.Bind), c.callee(), strings.Join(names, ", "))
	}
	return b.String()
}

func (c Call) callee() string {
	switch {
	case c.Recv != "":
		return c.Recv + "." + c.Name
	case c.Module == "" || c.Module == "main":
		return c.Name
	}
	return host.PackageName(c.Module) + "." + c.Name
}
