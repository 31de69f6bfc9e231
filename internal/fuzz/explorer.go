package fuzz

import (
	"context"
	"reflect"

	"callfuzz/internal/caller"
	"callfuzz/internal/corpus"
	"callfuzz/internal/host"
	"callfuzz/internal/logging"
)

// Operations of a resumable handle.
const (
	OpClose = "Close"
	OpSend  = "Send"
	OpThrow = "Throw"
)

// Explorer chains Close, Send and Throw onto handles that support all three.
type Explorer struct {
	s     *Session
	sweep Strategy
	run   func(c caller.Caller, explore bool) (Result, error)

	// Runs counts the follow-up invocations made so far.
	Runs int
}

// NewExplorer creates an explorer that executes follow-ups through run.
func NewExplorer(s *Session, run func(c caller.Caller, explore bool) (Result, error)) *Explorer {
	return &Explorer{s: s, sweep: SingleSweep{}, run: run}
}

// Capable reports whether handle supports the resumable operations.
func Capable(handle reflect.Value) bool {
	return host.Supports(handle, OpClose, OpSend, OpThrow)
}

// Explore fuzzes the follow-ups of base when handle is capable. Follow-ups
// it generates are not explored again.
func (x *Explorer) Explore(ctx context.Context, base caller.Caller, handle reflect.Value) error {
	if f, ok := base.(*caller.FollowUpCaller); ok {
		logging.FollowUpDebug("not exploring the %s result of %s", f.Method(), f.Base().Label())
		return nil
	}
	if !Capable(handle) {
		return nil
	}
	logging.FollowUp("%s: result supports %s/%s/%s", base.Label(), OpClose, OpSend, OpThrow)

	run := func(c caller.Caller) error {
		_, err := x.run(c, false)
		if err == nil {
			x.Runs++
		}
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := run(caller.NewFollowUp(base, OpClose)); err != nil {
		return err
	}

	send := caller.NewFollowUp(base, OpSend, corpus.KindAny)
	if _, err := x.sweep.Sweep(ctx, send, x.s.Corpora.Fuzz, run); err != nil {
		return err
	}

	throw := caller.NewFollowUp(base, OpThrow, corpus.KindExceptionType, corpus.KindException, corpus.KindTraceback)
	if _, err := x.sweep.Sweep(ctx, throw, x.s.Corpora.Exceptions, run); err != nil {
		return err
	}

	logging.FollowUpDebug("%s: %d follow-up invocations", base.Label(), x.Runs)
	return nil
}
