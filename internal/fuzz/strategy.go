package fuzz

import (
	"context"
	"fmt"

	"callfuzz/internal/caller"
	"callfuzz/internal/config"
	"callfuzz/internal/corpus"
	"callfuzz/internal/logging"
)

// RunFunc executes one built caller.
type RunFunc func(c caller.Caller) error

// Strategy mutates the values of a baseline caller and hands every mutant to
// run. Strategies never change a target's shape.
type Strategy interface {
	Name() string
	Sweep(ctx context.Context, base caller.Caller, values *corpus.Corpus, run RunFunc) (int, error)
}

// NewStrategy returns the strategy registered under name.
func NewStrategy(name string, maxInvocations int) (Strategy, error) {
	switch name {
	case "", config.StrategySingle:
		return SingleSweep{}, nil
	case config.StrategyCombination:
		return CombinationSweep{Max: maxInvocations}, nil
	}
	return nil, fmt.Errorf("unknown strategy %q", name)
}

// =============================================================================
// SINGLE-SUBSTITUTION SWEEP
// =============================================================================

// SingleSweep substitutes one slot at a time with every corpus value while
// the other slots keep their baseline values. It runs slots×|corpus|
// invocations.
type SingleSweep struct{}

func (SingleSweep) Name() string { return config.StrategySingle }

func (SingleSweep) Sweep(ctx context.Context, base caller.Caller, values *corpus.Corpus, run RunFunc) (int, error) {
	runs := 0
	for slot := 0; slot < base.NumSlots(); slot++ {
		for i := 0; i < values.Len(); i++ {
			if err := ctx.Err(); err != nil {
				return runs, err
			}
			mutant := base.Clone()
			if err := mutant.SetValue(slot, values.At(i)); err != nil {
				return runs, err
			}
			if err := run(mutant); err != nil {
				return runs, err
			}
			runs++
		}
	}
	return runs, nil
}

// =============================================================================
// FULL-COMBINATION SWEEP
// =============================================================================

// CombinationSweep runs every assignment of corpus values to slots,
// |corpus|^slots invocations, stopping early only at Max when Max > 0.
// Assignments are expanded from an explicit work stack of corpus index
// vectors in lexicographic order.
type CombinationSweep struct {
	Max int
}

func (CombinationSweep) Name() string { return config.StrategyCombination }

func (s CombinationSweep) Sweep(ctx context.Context, base caller.Caller, values *corpus.Corpus, run RunFunc) (int, error) {
	slots := base.NumSlots()
	if slots > 0 && values.Len() == 0 {
		return 0, nil
	}

	runs := 0
	stack := [][]int{{}}
	for len(stack) > 0 {
		prefix := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if len(prefix) < slots {
			for i := values.Len() - 1; i >= 0; i-- {
				next := make([]int, len(prefix)+1)
				copy(next, prefix)
				next[len(prefix)] = i
				stack = append(stack, next)
			}
			continue
		}

		if s.Max > 0 && runs >= s.Max {
			logging.FuzzWarn("%s: combination sweep stopped at %d invocations", base.Label(), s.Max)
			return runs, nil
		}
		if err := ctx.Err(); err != nil {
			return runs, err
		}

		mutant := base.Clone()
		for slot, idx := range prefix {
			if err := mutant.SetValue(slot, values.At(idx)); err != nil {
				return runs, err
			}
		}
		if err := run(mutant); err != nil {
			return runs, err
		}
		runs++
	}
	return runs, nil
}
