// Package dump persists a replayable reproduction of every invocation the
// fuzz engine attempts. Each store is keyed by the caller's dump key and gets
// the next sequence number for that key, so stores never overwrite each
// other.
package dump

import (
	"errors"
	"fmt"
	"sync"

	"callfuzz/internal/caller"
	"gopkg.in/yaml.v3"
)

// Ref identifies a stored case.
type Ref struct {
	Key      string
	Seq      int
	Location string
}

// Name returns the key and sequence joined the way case files are named.
func (r Ref) Name() string {
	return fmt.Sprintf("%s_%d", r.Key, r.Seq)
}

// Sink receives every caller before it is executed.
type Sink interface {
	Store(c caller.Caller) (Ref, error)
	Close() error
}

// Case is the stored form of one invocation.
type Case struct {
	Key        string            `yaml:"key"`
	Seq        int               `yaml:"seq"`
	Session    string            `yaml:"session,omitempty"`
	Target     string            `yaml:"target"`
	Invocation caller.Invocation `yaml:",inline"`
	Source     string            `yaml:"source"`
}

// NewCase builds the case for c. Seq is assigned by the sink.
func NewCase(session string, c caller.Caller) Case {
	inv := c.Invocation()
	return Case{
		Key:        c.Key().String(),
		Session:    session,
		Target:     c.Label(),
		Invocation: inv,
		Source:     inv.Source(),
	}
}

// Marshal renders the case as YAML.
func (c Case) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// UnmarshalCase parses a YAML case.
func UnmarshalCase(data []byte) (Case, error) {
	var c Case
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Case{}, fmt.Errorf("failed to parse case: %w", err)
	}
	if len(c.Invocation.Calls) == 0 {
		return Case{}, fmt.Errorf("case %s_%d has no calls", c.Key, c.Seq)
	}
	return c, nil
}

// =============================================================================
// FAN-OUT AND NO-OP SINKS
// =============================================================================

// Nop discards every case.
type Nop struct {
	mu   sync.Mutex
	next map[string]int
}

func (n *Nop) Store(c caller.Caller) (Ref, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.next == nil {
		n.next = make(map[string]int)
	}
	key := c.Key().String()
	seq := n.next[key]
	n.next[key] = seq + 1
	return Ref{Key: key, Seq: seq}, nil
}

func (n *Nop) Close() error { return nil }

// Tee stores every case in each sink. The first sink's Ref is returned.
type Tee []Sink

func (t Tee) Store(c caller.Caller) (Ref, error) {
	var first Ref
	for i, s := range t {
		ref, err := s.Store(c)
		if err != nil {
			return Ref{}, err
		}
		if i == 0 {
			first = ref
		}
	}
	return first, nil
}

func (t Tee) Close() error {
	var errs []error
	for _, s := range t {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
