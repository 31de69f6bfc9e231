package fuzz

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"callfuzz/internal/caller"
	"callfuzz/internal/corpus"
	"callfuzz/internal/dump"
	"callfuzz/internal/host"
	"callfuzz/internal/target"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeHost resolves registered Go funcs and evaluates a small literal
// language: ints, floats, quoted strings, booleans (either case), nil and a
// few composite literals.
type fakeHost struct {
	funcs    map[string]interface{}
	declared []string
	setup    []string
	resolved []string
}

func newFakeHost() *fakeHost {
	return &fakeHost{funcs: make(map[string]interface{})}
}

func (h *fakeHost) add(module, name string, fn interface{}) {
	h.funcs[module+"."+name] = fn
}

func (h *fakeHost) Declare(decl string) error {
	h.declared = append(h.declared, decl)
	return nil
}

func (h *fakeHost) Setup(stmt string) error {
	if strings.Contains(stmt, "broken") {
		return &host.SetupError{Stmt: stmt, Err: errors.New("syntax error")}
	}
	h.setup = append(h.setup, stmt)
	return nil
}

func (h *fakeHost) Resolve(module, name string) (reflect.Value, error) {
	key := module + "." + name
	h.resolved = append(h.resolved, key)
	fn, ok := h.funcs[key]
	if !ok {
		return reflect.Value{}, &host.LookupError{Module: module, Name: name, Err: errors.New("undefined")}
	}
	return reflect.ValueOf(fn), nil
}

func (h *fakeHost) Eval(expr string) (reflect.Value, error) {
	expr = strings.TrimSpace(expr)
	switch expr {
	case "nil":
		return reflect.Value{}, nil
	case "true", "True":
		return reflect.ValueOf(true), nil
	case "false", "False":
		return reflect.ValueOf(false), nil
	case "struct{}{}":
		return reflect.ValueOf(struct{}{}), nil
	case "[]byte{}":
		return reflect.ValueOf([]byte{}), nil
	case "[]uintptr{}":
		return reflect.ValueOf([]uintptr{}), nil
	case `errors.New("exception")`:
		return reflect.ValueOf(errors.New("exception")), nil
	case "reflect.TypeOf((*error)(nil)).Elem()":
		return reflect.ValueOf(reflect.TypeOf((*error)(nil)).Elem()), nil
	}
	if n, err := strconv.Atoi(expr); err == nil {
		return reflect.ValueOf(n), nil
	}
	if f, err := strconv.ParseFloat(expr, 64); err == nil {
		return reflect.ValueOf(f), nil
	}
	if s, err := strconv.Unquote(expr); err == nil {
		return reflect.ValueOf(s), nil
	}
	return reflect.Value{}, &host.SetupError{Stmt: expr, Err: fmt.Errorf("cannot evaluate %q", expr)}
}

// recordingSink numbers cases like dump.Nop and keeps their refs.
type recordingSink struct {
	dump.Nop
	refs    []dump.Ref
	sources []string
	fail    error
}

func (r *recordingSink) Store(c caller.Caller) (dump.Ref, error) {
	if r.fail != nil {
		return dump.Ref{}, r.fail
	}
	ref, err := r.Nop.Store(c)
	if err != nil {
		return ref, err
	}
	r.refs = append(r.refs, ref)
	r.sources = append(r.sources, c.Invocation().Source())
	return ref, nil
}

func (r *recordingSink) names() []string {
	out := make([]string, len(r.refs))
	for i, ref := range r.refs {
		out[i] = ref.Name()
	}
	return out
}

func (r *recordingSink) countSuffix(suffix string) int {
	n := 0
	for _, ref := range r.refs {
		if strings.HasSuffix(ref.Key, suffix) {
			n++
		}
	}
	return n
}

// generator supports the resumable operations.
type generator struct {
	closed int
	sent   []interface{}
	thrown int
}

func (g *generator) Close() error {
	g.closed++
	return nil
}

func (g *generator) Send(v interface{}) (interface{}, error) {
	g.sent = append(g.sent, v)
	return v, nil
}

func (g *generator) Throw(typ, exc, tb interface{}) error {
	g.thrown++
	return errors.New("thrown")
}

// loopGenerator hands itself back from Send, so every Send result can be
// explored again.
type loopGenerator struct{ generator }

func (g *loopGenerator) Send(v interface{}) (interface{}, error) {
	g.sent = append(g.sent, v)
	return g, nil
}

type counter struct{ n int }

func newCounter(start int) *counter { return &counter{n: start} }

func (c *counter) Add(n int) int {
	c.n += n
	return c.n
}

type pair struct{ base int }

func newPair(n int) *pair { return &pair{base: n} }

func (p *pair) Add(a, b int) int { return p.base + a + b }

func newTestSession(t *testing.T, h host.Host, opts Options) (*Session, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	s := NewSession(h, opts)
	s.Sink = sink
	s.Corpora = corpus.Set{
		General:    corpus.Literals("general", "42", "True"),
		Fuzz:       corpus.Literals("fuzz", "-1", "0", "4"),
		Exceptions: corpus.Literals("exceptions", "nil"),
	}
	return s, sink
}

func newTestEngine(t *testing.T, h host.Host, opts Options) (*Engine, *recordingSink) {
	t.Helper()
	s, sink := newTestSession(t, h, opts)
	e, err := NewEngine(s)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e, sink
}

// knownFunction returns a function target with n integer parameters.
func knownFunction(module, name string, n int) *target.Function {
	fn := target.NewFunction(module+".go", module, name)
	if n == 0 {
		_ = fn.Reshape(0)
		fn.Confirm()
	}
	for i := 0; i < n; i++ {
		fn.AddParam(corpus.KindInteger, nil)
	}
	return fn
}
