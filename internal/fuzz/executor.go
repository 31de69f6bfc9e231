package fuzz

import (
	"fmt"
	"reflect"

	"callfuzz/internal/caller"
	"callfuzz/internal/classify"
	"callfuzz/internal/host"
	"callfuzz/internal/logging"
)

// Result is the outcome of one executor run.
type Result struct {
	Outcome classify.Outcome
	// Handle is the value produced by the outermost call, or the zero Value
	// when it produced none.
	Handle reflect.Value
	// Nested is set when the outcome was raised by a call below the
	// outermost one, such as the constructor of a method's receiver.
	Nested bool
}

// Executor runs composed invocations against the session's host exactly
// once each.
type Executor struct {
	s *Session

	lastFailure classify.Outcome
}

// NewExecutor creates an executor for s.
func NewExecutor(s *Session) *Executor {
	return &Executor{s: s, lastFailure: classify.Outcome{Class: classify.Success, Arity: -1}}
}

// Run composes c and executes its invocation. Conditions raised by the
// target are classified into the result; only a composition error is
// returned.
func (e *Executor) Run(c caller.Caller) (Result, error) {
	if err := c.Compose(); err != nil {
		return Result{}, fmt.Errorf("compose %s: %w", c.Label(), err)
	}

	inv := c.Invocation()
	res := e.Execute(inv)

	e.s.record(c, inv, res.Outcome)
	if res.Outcome.Failed() {
		e.lastFailure = res.Outcome
		logging.ExecutorDebug("%s: %s: %v", c.Label(), res.Outcome.Class, res.Outcome.Err)
	} else {
		logging.ExecutorDebug("%s: success", c.Label())
	}
	return res, nil
}

// LastFailure returns the outcome of the most recent failed run.
func (e *Executor) LastFailure() classify.Outcome { return e.lastFailure }

// Execute runs inv without counting it. Declarations and setup statements
// are evaluated first, then every call in order with its arguments
// evaluated just before the call.
func (e *Executor) Execute(inv caller.Invocation) Result {
	h := e.s.Host

	for _, decl := range inv.Declarations {
		if err := h.Declare(decl); err != nil {
			return e.fail(err)
		}
	}
	for _, stmt := range inv.Setup {
		if err := h.Setup(stmt); err != nil {
			return e.fail(err)
		}
	}

	binds := make(map[string]reflect.Value, len(inv.Calls))
	var handle reflect.Value
	for n, call := range inv.Calls {
		nested := n < len(inv.Calls)-1

		fn, err := e.callee(call, binds)
		if err != nil {
			res := e.fail(err)
			res.Nested = nested
			return res
		}

		args := make([]reflect.Value, len(call.Args))
		for i, a := range call.Args {
			v, err := h.Eval(a.Expr)
			if err != nil {
				res := e.fail(err)
				res.Nested = nested
				return res
			}
			args[i] = v
		}

		handle, err = host.Dispatch(call.Label(), fn, args)
		if err != nil {
			res := e.fail(err)
			res.Handle = handle
			res.Nested = nested
			return res
		}
		binds[call.Bind] = handle
	}

	return Result{Outcome: e.s.Classifier.Classify(nil), Handle: handle}
}

func (e *Executor) callee(call caller.Call, binds map[string]reflect.Value) (reflect.Value, error) {
	switch call.Kind {
	case caller.KindFunction, caller.KindConstructor:
		return e.s.Host.Resolve(call.Module, call.Name)
	case caller.KindMethod, caller.KindFollowUp:
		recv, ok := binds[call.Recv]
		if !ok {
			return reflect.Value{}, &host.LookupError{Name: call.Label(), Err: fmt.Errorf("unbound receiver %q", call.Recv)}
		}
		return host.Method(recv, call.Name)
	}
	return reflect.Value{}, &host.LookupError{Name: call.Label(), Err: fmt.Errorf("unknown call kind %q", call.Kind)}
}

func (e *Executor) fail(err error) Result {
	return Result{Outcome: e.s.Classifier.Classify(err)}
}
