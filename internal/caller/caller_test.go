package caller

import (
	"errors"
	"testing"

	"callfuzz/internal/corpus"
	"callfuzz/internal/target"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFunction(t *testing.T, module, name string, kinds ...corpus.Kind) *target.Function {
	t.Helper()
	fn := target.NewFunction("", module, name)
	for _, k := range kinds {
		fn.AddParam(k, nil)
	}
	fn.Confirm()
	return fn
}

func newBuffer(t *testing.T) *target.Class {
	t.Helper()
	cls := target.NewClass("", "bytes", "Buffer")
	ctor, err := cls.AddMethod("NewBufferString")
	require.NoError(t, err)
	seed := corpus.Literal(`"seed"`)
	ctor.AddParam(corpus.KindString, &seed)
	cls.SetConstructor("NewBufferString")

	trunc, err := cls.AddMethod("Truncate")
	require.NoError(t, err)
	trunc.AddParam(corpus.KindInteger, nil)
	return cls
}

func TestFunctionCallerDefaults(t *testing.T) {
	c := NewFunctionCaller(newFunction(t, "strings", "Repeat", corpus.KindString, corpus.KindInteger))

	inv := c.Invocation()
	want := Invocation{
		Declarations: OrderedSet{`import "strings"`},
		Calls: []Call{{
			Kind:   KindFunction,
			Module: "strings",
			Name:   "Repeat",
			Bind:   "r",
			Args:   []Arg{{Name: "p1", Expr: `"string"`}, {Name: "p2", Expr: "1"}},
		}},
	}
	if diff := cmp.Diff(want, inv); diff != "" {
		t.Errorf("Invocation() mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, Key{Dir: "strings", Name: "strings_Repeat"}, c.Key())
	assert.Equal(t, "strings.Repeat", c.Label())
}

func TestComposeIsIdempotent(t *testing.T) {
	c := NewFunctionCaller(newFunction(t, "math", "Pow", corpus.KindDouble, corpus.KindDouble))
	require.NoError(t, c.SetValue(0, corpus.Import("math.NaN()", "math")))

	first := c.Invocation()
	require.NoError(t, c.Compose())
	require.NoError(t, c.Compose())

	if diff := cmp.Diff(first, c.Invocation()); diff != "" {
		t.Errorf("recompose changed the invocation (-first +now):\n%s", diff)
	}
	assert.Equal(t, OrderedSet{`import "math"`}, first.Declarations)
}

func TestCloneIsIndependent(t *testing.T) {
	orig := NewFunctionCaller(newFunction(t, "strings", "Repeat", corpus.KindString, corpus.KindInteger))
	before := orig.Invocation().Source()

	clone := orig.Clone()
	require.NoError(t, clone.SetValue(1, corpus.Fixture("fuzzT{}", []string{"type fuzzT struct{}"}, corpus.ImportDecl("fmt"))))

	require.NoError(t, orig.Compose())
	if diff := cmp.Diff(before, orig.Invocation().Source()); diff != "" {
		t.Errorf("original changed after mutating clone (-before +after):\n%s", diff)
	}
	assert.NotEqual(t, before, clone.Invocation().Source())
	assert.Equal(t, "1", orig.Value(1).Expr)
}

func TestMethodCloneOwnsConstructor(t *testing.T) {
	cls := newBuffer(t)
	ctor, err := NewConstructorCaller(cls)
	require.NoError(t, err)

	trunc, _ := cls.Method("Truncate")
	orig := NewMethodCaller(trunc, ctor)
	before := orig.Invocation()

	clone := orig.Clone().(*MethodCaller)
	require.NoError(t, clone.Constructor().SetValue(0, corpus.Literal(`"other"`)))
	require.NoError(t, clone.Compose())

	require.NoError(t, orig.Compose())
	if diff := cmp.Diff(before, orig.Invocation()); diff != "" {
		t.Errorf("original changed after mutating clone's constructor (-before +after):\n%s", diff)
	}
	assert.Equal(t, `"other"`, clone.Invocation().Calls[0].Args[0].Expr)
}

func TestMethodCallerMergesLayers(t *testing.T) {
	cls := newBuffer(t)
	ctor, err := NewConstructorCaller(cls)
	require.NoError(t, err)
	require.NoError(t, ctor.SetValue(0, corpus.Fixture("s", []string{`s := "abc"`}, corpus.ImportDecl("strings"))))

	trunc, _ := cls.Method("Truncate")
	c := NewMethodCaller(trunc, ctor)
	require.NoError(t, c.SetValue(0, corpus.Fixture("n", []string{`s := "abc"`, "n := len(s)"}, corpus.ImportDecl("bytes"))))

	inv := c.Invocation()
	assert.Equal(t, OrderedSet{`import "strings"`, `import "bytes"`}, inv.Declarations)
	assert.Equal(t, OrderedSet{`s := "abc"`, "n := len(s)"}, inv.Setup)
	require.Len(t, inv.Calls, 2)
	assert.Equal(t, KindConstructor, inv.Calls[0].Kind)
	assert.Equal(t, "object", inv.Calls[0].Bind)
	assert.Equal(t, KindMethod, inv.Calls[1].Kind)
	assert.Equal(t, "object", inv.Calls[1].Recv)
	assert.Equal(t, []Arg{{Name: "m1", Expr: "n"}}, inv.Calls[1].Args)

	assert.Equal(t, Key{Dir: "bytes/Buffer", Name: "bytes_Buffer_Truncate"}, c.Key())
	assert.Equal(t, Key{Dir: "bytes/Buffer", Name: "bytes_Buffer_NewBufferString"}, ctor.Key())
}

func TestConstructorRequiresConstructor(t *testing.T) {
	cls := target.NewClass("", "bytes", "Reader")
	_, err := cls.AddMethod("Len")
	require.NoError(t, err)

	_, err = NewConstructorCaller(cls)
	assert.Error(t, err)
}

func TestFollowUp(t *testing.T) {
	base := NewFunctionCaller(newFunction(t, "main", "Counter"))
	f := NewFollowUp(base, "Throw", corpus.KindExceptionType, corpus.KindException, corpus.KindTraceback)

	assert.Equal(t, 3, f.NumSlots())
	assert.Equal(t, Key{Dir: "main", Name: "main_Counter_Throw"}, f.Key())
	assert.Equal(t, "main.Counter.Throw", f.Label())

	inv := f.Invocation()
	require.Len(t, inv.Calls, 2)
	last, _ := inv.Last()
	assert.Equal(t, KindFollowUp, last.Kind)
	assert.Equal(t, "r", last.Recv)
	assert.Equal(t, "a3", last.Args[2].Name)
	assert.Equal(t, OrderedSet{`import "reflect"`, `import "errors"`}, inv.Declarations)

	assert.Equal(t, "main.Counter", base.Label())
	assert.Len(t, base.Invocation().Calls, 1)
}

func TestShapeMismatch(t *testing.T) {
	fn := target.NewFunction("", "strings", "Fields")
	c := NewFunctionCaller(fn)
	assert.Equal(t, 0, c.NumSlots())

	require.NoError(t, fn.Reshape(2))
	err := c.Compose()
	assert.True(t, errors.Is(err, ErrComposition))
	var shape *ShapeMismatchError
	require.True(t, errors.As(err, &shape))
	assert.Equal(t, 2, shape.Slots)
	assert.Equal(t, 0, shape.Values)

	err = c.SetValue(5, corpus.Literal("1"))
	assert.True(t, errors.Is(err, ErrComposition))

	require.NoError(t, c.Reset())
	assert.Equal(t, 2, c.NumSlots())
}

func TestReshapeResetsValues(t *testing.T) {
	fn := target.NewFunction("", "strings", "Fields")
	c := NewFunctionCaller(fn)

	require.NoError(t, c.Reshape(3))
	assert.Equal(t, 3, c.NumSlots())
	for _, v := range c.Values() {
		assert.Equal(t, corpus.KindAny.DefaultValue(), v)
	}

	fn.Confirm()
	assert.Error(t, c.Reshape(1))
}

func TestSource(t *testing.T) {
	cls := newBuffer(t)
	ctor, err := NewConstructorCaller(cls)
	require.NoError(t, err)
	trunc, _ := cls.Method("Truncate")
	m := NewMethodCaller(trunc, ctor)
	f := NewFollowUp(m, "Send", corpus.KindAny)
	require.NoError(t, f.SetValue(0, corpus.Fixture("fuzzT{}", []string{"type fuzzT struct{}"})))

	want := `import "bytes"

type fuzzT struct{}

p1 := "seed"
object := bytes.NewBufferString(p1)
m1 := 1
r := object.Truncate(m1)
a1 := fuzzT{}
f := r.Send(a1)
`
	if diff := cmp.Diff(want, f.Invocation().Source()); diff != "" {
		t.Errorf("Source() mismatch (-want +got):\n%s", diff)
	}
}

func TestSourceReassignsRepeatedNames(t *testing.T) {
	inv := Invocation{Calls: []Call{
		{Kind: KindFunction, Module: "main", Name: "Gen", Bind: "r"},
		{Kind: KindFollowUp, Name: "Send", Recv: "r", Bind: "f", Args: []Arg{{Name: "a1", Expr: "1"}}},
		{Kind: KindFollowUp, Name: "Send", Recv: "f", Bind: "f", Args: []Arg{{Name: "a1", Expr: "2"}}},
	}}

	want := "r := Gen()\na1 := 1\nf := r.Send(a1)\na1 = 2\nf = f.Send(a1)\n"
	assert.Equal(t, want, inv.Source())
}

func TestOrderedSet(t *testing.T) {
	var s OrderedSet
	s = s.With("b", "a", "b", "", "c")
	assert.Equal(t, OrderedSet{"b", "a", "c"}, s)

	t2 := s.With("a", "d")
	assert.Equal(t, OrderedSet{"b", "a", "c"}, s)
	assert.Equal(t, OrderedSet{"b", "a", "c", "d"}, t2)
}

func TestCallCallee(t *testing.T) {
	assert.Equal(t, "rand.IntN", Call{Module: "math/rand/v2", Name: "IntN"}.callee())
	assert.Equal(t, "Helper", Call{Module: "main", Name: "Helper"}.callee())
	assert.Equal(t, "object.Len", Call{Recv: "object", Name: "Len"}.callee())
}
