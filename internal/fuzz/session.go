// Package fuzz drives targets through arity discovery, mutation sweeps and
// protocol follow-ups.
//
// Everything a run needs is carried by a Session: the host that performs the
// calls, the classifier that interprets failures, the corpora, the dump sink
// and the telemetry sink. The engine is strictly sequential. Every
// invocation completes before the next one is built, and nothing interrupts
// an invocation once it has started.
package fuzz

import (
	"sync"

	"callfuzz/internal/caller"
	"callfuzz/internal/classify"
	"callfuzz/internal/config"
	"callfuzz/internal/corpus"
	"callfuzz/internal/dump"
	"callfuzz/internal/host"
	"callfuzz/internal/logging"
	"callfuzz/internal/telemetry"

	"github.com/google/uuid"
)

// Options bounds a fuzz run.
type Options struct {
	Strategy       string
	MaxParamGuess  int
	MaxReshapes    int
	MaxInvocations int
	FollowUps      bool
	Exclude        []string
	Include        []string
}

// DefaultOptions mirrors config.DefaultFuzzConfig.
func DefaultOptions() Options {
	return OptionsFromConfig(config.DefaultFuzzConfig())
}

// OptionsFromConfig copies the engine settings out of the fuzz config.
func OptionsFromConfig(cfg config.FuzzConfig) Options {
	return Options{
		Strategy:       cfg.Strategy,
		MaxParamGuess:  cfg.MaxParamGuess,
		MaxReshapes:    cfg.MaxReshapes,
		MaxInvocations: cfg.MaxInvocations,
		FollowUps:      cfg.FollowUps,
		Exclude:        append([]string(nil), cfg.Exclude...),
		Include:        append([]string(nil), cfg.Include...),
	}
}

func (o Options) maxReshapes() int {
	if o.MaxReshapes > 0 {
		return o.MaxReshapes
	}
	if o.MaxParamGuess > 0 {
		return o.MaxParamGuess
	}
	return 3
}

func (o Options) maxGuess() int {
	if o.MaxParamGuess > 0 {
		return o.MaxParamGuess
	}
	return 3
}

// Finding is an invocation whose outcome deserves a look: a recovered panic.
type Finding struct {
	Key    string
	Target string
	Class  classify.Class
	Err    string
	Source string
}

// Stats is a snapshot of a session's counters.
type Stats struct {
	Runs     int
	ByClass  map[classify.Class]int
	Targets  map[string]int
	Findings []Finding
}

// Session owns the collaborators and counters of one fuzz run.
type Session struct {
	ID         string
	Options    Options
	Host       host.Host
	Classifier classify.Classifier
	Corpora    corpus.Set
	Sink       dump.Sink
	Telemetry  telemetry.Sink

	mu    sync.Mutex
	stats Stats
}

// NewSession creates a session over h. The classifier, corpora and sinks
// default to the phrase classifier, the built-in corpora and no-op sinks;
// set the fields to replace them before the first run.
func NewSession(h host.Host, opts Options) *Session {
	s := &Session{
		ID:         uuid.New().String(),
		Options:    opts,
		Host:       h,
		Classifier: classify.NewPhrases(),
		Corpora:    corpus.DefaultSet(),
		Sink:       &dump.Nop{},
		Telemetry:  telemetry.Nop{},
		stats: Stats{
			ByClass: make(map[classify.Class]int),
			Targets: make(map[string]int),
		},
	}
	logging.SessionDebug("session %s: strategy=%q max guess=%d follow-ups=%v", s.ID, opts.Strategy, opts.maxGuess(), opts.FollowUps)
	return s
}

// record counts one completed executor run.
func (s *Session) record(c caller.Caller, inv caller.Invocation, o classify.Outcome) {
	s.mu.Lock()
	s.stats.Runs++
	s.stats.ByClass[o.Class]++
	if o.Class == classify.Panic {
		s.stats.Findings = append(s.stats.Findings, Finding{
			Key:    c.Key().String(),
			Target: c.Label(),
			Class:  o.Class,
			Err:    o.Err.Error(),
			Source: inv.Source(),
		})
		logging.SessionWarn("finding in %s: %v", c.Key(), o.Err)
	}
	s.mu.Unlock()

	s.Telemetry.Invocation(c.Label(), o.Class.String())
}

// finish counts one finished target.
func (s *Session) finish(status string) {
	s.mu.Lock()
	s.stats.Targets[status]++
	s.mu.Unlock()

	s.Telemetry.Target(status)
}

// Stats returns a copy of the counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Stats{
		Runs:     s.stats.Runs,
		ByClass:  make(map[classify.Class]int, len(s.stats.ByClass)),
		Targets:  make(map[string]int, len(s.stats.Targets)),
		Findings: append([]Finding(nil), s.stats.Findings...),
	}
	for k, v := range s.stats.ByClass {
		out.ByClass[k] = v
	}
	for k, v := range s.stats.Targets {
		out.Targets[k] = v
	}
	return out
}
