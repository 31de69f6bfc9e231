package fuzz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"callfuzz/internal/caller"
	"callfuzz/internal/classify"
	"callfuzz/internal/logging"
	"callfuzz/internal/target"
	"callfuzz/internal/telemetry"
)

// ErrDump is returned when a reproduction could not be stored. The run stops
// rather than execute something it cannot reproduce.
var ErrDump = errors.New("dump failed")

// errAbandon stops a sweep whose target stopped resolving.
var errAbandon = errors.New("target abandoned")

// Engine fuzzes target sets.
type Engine struct {
	s        *Session
	exec     *Executor
	search   *Search
	strategy Strategy
	explorer *Explorer
}

// NewEngine wires an engine around s.
func NewEngine(s *Session) (*Engine, error) {
	strategy, err := NewStrategy(s.Options.Strategy, s.Options.MaxInvocations)
	if err != nil {
		return nil, err
	}

	e := &Engine{s: s, exec: NewExecutor(s), strategy: strategy}
	e.search = NewSearch(s, func(c caller.Caller) (Result, error) {
		return e.invoke(context.Background(), c, false)
	})
	e.explorer = NewExplorer(s, func(c caller.Caller, explore bool) (Result, error) {
		return e.invoke(context.Background(), c, explore)
	})
	return e, nil
}

// Session returns the engine's session.
func (e *Engine) Session() *Session { return e.s }

// Executor returns the engine's executor.
func (e *Engine) Executor() *Executor { return e.exec }

// Run fuzzes every function and class in set. Target failures are recorded;
// only a composition error, a dump error or ctx ending the run is returned.
func (e *Engine) Run(ctx context.Context, set *target.Set) error {
	timer := logging.StartTimer(logging.CategorySession, "fuzz run")
	defer timer.StopWithInfo()

	logging.Session("session %s: %d targets, strategy=%s", e.s.ID, set.Len(), e.strategy.Name())

	for _, fn := range set.Functions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !e.selected(fn.QualifiedName()) {
			e.s.finish(telemetry.StatusExcluded)
			continue
		}
		if _, err := e.Fuzz(ctx, caller.NewFunctionCaller(fn)); err != nil {
			return err
		}
	}

	for _, cls := range set.Classes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.fuzzClass(ctx, cls); err != nil {
			return err
		}
	}

	stats := e.s.Stats()
	logging.Session("session %s: %d invocations, %d findings", e.s.ID, stats.Runs, len(stats.Findings))
	return nil
}

func (e *Engine) fuzzClass(ctx context.Context, cls *target.Class) error {
	ctor, err := caller.NewConstructorCaller(cls)
	if err != nil {
		logging.FuzzWarn("skipping %s: %v", cls.QualifiedName(), err)
		for range cls.Methods() {
			e.s.finish(telemetry.StatusSkipped)
		}
		return nil
	}

	methods := false
	for _, m := range cls.Methods() {
		if !m.IsConstructor() && e.selected(m.QualifiedName()) {
			methods = true
			break
		}
	}

	// A filtered constructor is not swept, but its methods still need a
	// receiver built with an accepted shape.
	verdict := Found
	switch {
	case e.selected(ctor.Label()):
		if verdict, err = e.Fuzz(ctx, ctor); err != nil {
			return err
		}
	case methods:
		e.s.finish(telemetry.StatusExcluded)
		if verdict, err = e.search.Discover(ctx, ctor); err != nil {
			return err
		}
		logging.FuzzDebug("%s: excluded, receiver shape %s", ctor.Label(), verdict)
	default:
		e.s.finish(telemetry.StatusExcluded)
	}

	for _, m := range cls.Methods() {
		if m.IsConstructor() {
			continue
		}
		if !e.selected(m.QualifiedName()) {
			e.s.finish(telemetry.StatusExcluded)
			continue
		}
		if verdict != Found {
			e.s.finish(telemetry.StatusSkipped)
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		mc := caller.NewMethodCaller(m, ctor.Clone().(*caller.ConstructorCaller))
		if _, err := e.Fuzz(ctx, mc); err != nil {
			return err
		}
	}
	return nil
}

// Fuzz discovers a shape for c and sweeps the fuzz corpus over it.
func (e *Engine) Fuzz(ctx context.Context, c caller.Discoverable) (Verdict, error) {
	verdict, err := e.search.Discover(ctx, c)
	if err != nil {
		return verdict, err
	}

	switch verdict {
	case Abandoned:
		e.s.finish(telemetry.StatusAbandoned)
		return verdict, nil
	case NoShape:
		e.s.finish(telemetry.StatusNoShape)
		return verdict, nil
	}

	var lookup error
	runs, err := e.strategy.Sweep(ctx, c, e.s.Corpora.Fuzz, func(mutant caller.Caller) error {
		res, err := e.invoke(ctx, mutant, e.s.Options.FollowUps)
		if err != nil {
			return err
		}
		if res.Outcome.Class == classify.Lookup {
			lookup = res.Outcome.Err
			return errAbandon
		}
		return nil
	})
	if errors.Is(err, errAbandon) {
		logging.FuzzWarn("%s: abandoned after %d invocations: %v", c.Label(), runs+1, lookup)
		e.s.finish(telemetry.StatusAbandoned)
		return Abandoned, nil
	}
	if err != nil {
		return verdict, err
	}

	logging.Fuzz("%s: %d parameters, %d invocations", c.Label(), c.NumSlots(), runs)
	e.s.finish(telemetry.StatusFuzzed)
	return verdict, nil
}

// invoke stores c, executes it and explores its result.
func (e *Engine) invoke(ctx context.Context, c caller.Caller, explore bool) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if err := c.Compose(); err != nil {
		return Result{}, fmt.Errorf("compose %s: %w", c.Label(), err)
	}

	ref, err := e.s.Sink.Store(c)
	if err != nil {
		logging.DumpError("%s: %v", c.Label(), err)
		return Result{}, fmt.Errorf("%w: %s: %v", ErrDump, c.Label(), err)
	}
	logging.DumpDebug("stored %s", ref.Name())

	res, err := e.exec.Run(c)
	if err != nil {
		return res, err
	}

	if explore && res.Handle.IsValid() {
		if err := e.explorer.Explore(ctx, c, res.Handle); err != nil {
			return res, err
		}
	}
	return res, nil
}

// selected applies the include and exclude filters to a qualified name.
func (e *Engine) selected(name string) bool {
	for _, ex := range e.s.Options.Exclude {
		if ex != "" && strings.Contains(name, ex) {
			logging.FuzzDebug("excluding %s (matches %q)", name, ex)
			return false
		}
	}
	if len(e.s.Options.Include) == 0 {
		return true
	}
	for _, in := range e.s.Options.Include {
		if strings.Contains(name, in) {
			return true
		}
	}
	return false
}
