package fuzz

import (
	"context"
	"fmt"

	"callfuzz/internal/caller"
	"callfuzz/internal/classify"
	"callfuzz/internal/logging"
)

// Verdict is the result of arity discovery for one target.
type Verdict int

const (
	// Found means the caller holds an assignment whose shape the target
	// accepted.
	Found Verdict = iota
	// NoShape means no candidate shape was accepted.
	NoShape
	// Abandoned means the target could not be resolved.
	Abandoned
)

func (v Verdict) String() string {
	switch v {
	case Found:
		return "found"
	case NoShape:
		return "no_shape"
	case Abandoned:
		return "abandoned"
	}
	return fmt.Sprintf("verdict(%d)", int(v))
}

// step is what one probe or one level of the search tells its parent.
type step int

const (
	stepExhausted step = iota // keep trying values
	stepFound                 // shape accepted
	stepReshape               // runtime named another arity
	stepAbandon               // lookup failure
)

// Probe executes one discovery attempt.
type Probe func(c caller.Caller) (Result, error)

// Search is the backtracking arity discovery over the general corpus.
type Search struct {
	s     *Session
	probe Probe

	// Probes counts the attempts made by the last Discover.
	Probes int

	lastLookup error
}

// NewSearch creates a search that executes attempts through probe.
func NewSearch(s *Session, probe Probe) *Search {
	return &Search{s: s, probe: probe}
}

// Discover looks for an assignment the target accepts, reshaping the target
// when its shape is unknown or the runtime contradicts it. On Found the
// target's shape is confirmed and c holds the accepted assignment.
func (d *Search) Discover(ctx context.Context, c caller.Discoverable) (Verdict, error) {
	t := c.Target()
	d.Probes = 0

	if !t.Unknown() && t.NumParams() == 1 {
		if err := c.Reset(); err != nil {
			return NoShape, err
		}
		if err := d.resolve(c); err != nil {
			d.lastLookup = err
			logging.DiscoveryWarn("%s: abandoned: %v", c.Label(), err)
			return Abandoned, nil
		}
		t.Confirm()
		logging.DiscoveryDebug("%s: single parameter, using baseline", c.Label())
		return Found, nil
	}

	var pending []int
	if t.Unknown() {
		for n := 1; n <= d.s.Options.maxGuess(); n++ {
			pending = append(pending, n)
		}
	} else {
		pending = []int{t.NumParams()}
	}

	tried := make(map[int]bool)
	reshapes := 0
	for len(pending) > 0 {
		n := pending[0]
		pending = pending[1:]
		if tried[n] {
			continue
		}
		tried[n] = true

		if err := d.shape(c, n); err != nil {
			return NoShape, err
		}

		logging.DiscoveryDebug("%s: trying %d parameters", c.Label(), n)
		st, arity, err := d.search(ctx, c, 0)
		if err != nil {
			return NoShape, err
		}

		switch st {
		case stepFound:
			t.Confirm()
			logging.Discovery("%s: accepted %d parameters after %d probes", c.Label(), n, d.Probes)
			return Found, nil
		case stepAbandon:
			logging.DiscoveryWarn("%s: abandoned: %v", c.Label(), d.lastLookup)
			return Abandoned, nil
		case stepReshape:
			reshapes++
			if reshapes > d.s.Options.maxReshapes() {
				logging.DiscoveryWarn("%s: gave up after %d reshapes", c.Label(), reshapes-1)
				return NoShape, nil
			}
			if !t.Unknown() {
				t.MarkUnknown()
			}
			logging.Discovery("%s: runtime wants %d parameters, reshaping from %d", c.Label(), arity, n)
			pending = append([]int{arity}, pending...)
		}
	}

	logging.DiscoveryWarn("%s: no accepted shape after %d probes", c.Label(), d.Probes)
	return NoShape, nil
}

// resolve looks up every module-level callee of c without calling it.
// Methods are only found on a live receiver and are left to the sweep.
func (d *Search) resolve(c caller.Caller) error {
	for _, call := range c.Invocation().Calls {
		if call.Kind != caller.KindFunction && call.Kind != caller.KindConstructor {
			continue
		}
		if _, err := d.s.Host.Resolve(call.Module, call.Name); err != nil {
			return err
		}
	}
	return nil
}

// shape gives c n slots holding their default guesses.
func (d *Search) shape(c caller.Discoverable, n int) error {
	t := c.Target()
	if t.Unknown() {
		return c.Reshape(n)
	}
	if t.NumParams() != n {
		return fmt.Errorf("%s: shape is locked at %d, cannot try %d: %w", c.Label(), t.NumParams(), n, caller.ErrComposition)
	}
	return c.Reset()
}

// search assigns slot pos and everything after it, probing once every slot
// holds a value.
func (d *Search) search(ctx context.Context, c caller.Discoverable, pos int) (step, int, error) {
	if pos == c.NumSlots() {
		return d.attempt(ctx, c)
	}

	if def, ok := c.Target().Slot(pos).Default(); ok {
		if err := c.SetValue(pos, def); err != nil {
			return stepExhausted, 0, err
		}
		return d.search(ctx, c, pos+1)
	}

	general := d.s.Corpora.General
	for i := 0; i < general.Len(); i++ {
		if err := c.SetValue(pos, general.At(i)); err != nil {
			return stepExhausted, 0, err
		}
		st, arity, err := d.search(ctx, c, pos+1)
		if err != nil || st != stepExhausted {
			return st, arity, err
		}
	}
	return stepExhausted, 0, nil
}

func (d *Search) attempt(ctx context.Context, c caller.Discoverable) (step, int, error) {
	if err := ctx.Err(); err != nil {
		return stepExhausted, 0, err
	}

	d.Probes++
	res, err := d.probe(c)
	if err != nil {
		return stepExhausted, 0, err
	}

	o := res.Outcome
	switch o.Class {
	case classify.Lookup:
		d.lastLookup = o.Err
		return stepAbandon, 0, nil
	case classify.Setup:
		return stepExhausted, 0, nil
	case classify.Structural:
		// An arity named by the receiver's constructor says nothing about
		// this target.
		if res.Nested {
			return stepExhausted, 0, nil
		}
		if o.ArityKnown() && o.Arity != c.NumSlots() {
			return stepReshape, o.Arity, nil
		}
		return stepExhausted, 0, nil
	}
	return stepFound, 0, nil
}
