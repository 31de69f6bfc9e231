// Package classify maps invocation failures to the classes the fuzz engine
// acts on.
//
// Recovering an arity from a failure message is heuristic and specific to the
// runtime that produced it. The Classifier interface keeps that heuristic
// replaceable; Phrases is the adapter for the messages produced by the host
// package's dispatcher.
package classify

import (
	"errors"
	"regexp"
	"strconv"

	"callfuzz/internal/host"
)

// Class is the engine-facing category of an invocation outcome.
type Class int

const (
	// Success means the invocation completed without a condition.
	Success Class = iota
	// Structural means the call shape was rejected. Arity may say how many
	// arguments the callee wants.
	Structural
	// Lookup means the module or name could not be resolved.
	Lookup
	// Domain is any other condition raised by a call whose shape was accepted.
	Domain
	// Panic is a recovered panic.
	Panic
	// Setup means a declaration, setup statement or argument failed to
	// evaluate before the call was made.
	Setup
)

var classNames = map[Class]string{
	Success:    "success",
	Structural: "structural",
	Lookup:     "lookup",
	Domain:     "domain",
	Panic:      "panic",
	Setup:      "setup",
}

func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return "class(" + strconv.Itoa(int(c)) + ")"
}

// Classes lists every class in order.
func Classes() []Class {
	return []Class{Success, Structural, Lookup, Domain, Panic, Setup}
}

// Outcome is a classified invocation result.
type Outcome struct {
	Class Class
	// Arity is the parameter count recovered from a structural failure, or
	// -1 when the failure did not say.
	Arity int
	Err   error
}

// Failed reports whether the invocation raised a condition.
func (o Outcome) Failed() bool { return o.Class != Success }

// ArityKnown reports whether a structural failure named an arity.
func (o Outcome) ArityKnown() bool { return o.Class == Structural && o.Arity >= 0 }

// Classifier classifies invocation errors.
type Classifier interface {
	Classify(err error) Outcome
}

// =============================================================================
// PHRASE CLASSIFIER
// =============================================================================

// Pattern maps a failure phrasing to an arity. Fixed is used when the
// expression has no capture group.
type Pattern struct {
	Expr  *regexp.Regexp
	Fixed int
}

// DefaultPatterns are the wrong-number-of-arguments phrasings understood by
// default.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{Expr: regexp.MustCompile(`(?i)takes no arguments`), Fixed: 0},
		{Expr: regexp.MustCompile(`(?i)takes exactly one argument`), Fixed: 1},
		{Expr: regexp.MustCompile(`(?i)takes exactly (\d+) arguments?`)},
		{Expr: regexp.MustCompile(`(?i)takes at most (\d+) arguments?`)},
		{Expr: regexp.MustCompile(`(?i)expected at most (\d+) arguments?`)},
		{Expr: regexp.MustCompile(`(?i)takes at least (\d+) arguments?`)},
	}
}

// Phrases classifies by error type first and then by matching the message
// against arity phrasings.
type Phrases struct {
	Patterns []Pattern
}

// NewPhrases returns a classifier with the default patterns.
func NewPhrases() *Phrases {
	return &Phrases{Patterns: DefaultPatterns()}
}

func (p *Phrases) Classify(err error) Outcome {
	if err == nil {
		return Outcome{Class: Success, Arity: -1}
	}

	var (
		lookup *host.LookupError
		setup  *host.SetupError
		pe     *host.PanicError
		arg    *host.ArgumentError
	)
	switch {
	case errors.As(err, &lookup):
		return Outcome{Class: Lookup, Arity: -1, Err: err}
	case errors.As(err, &setup):
		return Outcome{Class: Setup, Arity: -1, Err: err}
	case errors.As(err, &pe):
		return Outcome{Class: Panic, Arity: -1, Err: err}
	}

	if n, ok := p.Arity(err.Error()); ok {
		return Outcome{Class: Structural, Arity: n, Err: err}
	}
	if errors.As(err, &arg) {
		return Outcome{Class: Structural, Arity: -1, Err: err}
	}
	return Outcome{Class: Domain, Arity: -1, Err: err}
}

// Arity extracts the parameter count from a failure message.
func (p *Phrases) Arity(msg string) (int, bool) {
	for _, pat := range p.Patterns {
		m := pat.Expr.FindStringSubmatch(msg)
		if m == nil {
			continue
		}
		if len(m) < 2 {
			return pat.Fixed, true
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		return n, true
	}
	return 0, false
}
