package host

import (
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"callfuzz/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func values(args ...any) []reflect.Value {
	out := make([]reflect.Value, len(args))
	for i, a := range args {
		if a == nil {
			continue
		}
		out[i] = reflect.ValueOf(a)
	}
	return out
}

// =============================================================================
// DISPATCH
// =============================================================================

func TestDispatchArityMessages(t *testing.T) {
	tests := []struct {
		name string
		fn   any
		args []reflect.Value
		want string
	}{
		{"none", func() {}, values(1), "f() takes no arguments (1 given)"},
		{"one", func(int) {}, values(), "f() takes exactly one argument (0 given)"},
		{"many", func(int, int) {}, values(1), "f() takes exactly 2 arguments (1 given)"},
		{"variadic", func(string, ...int) {}, values(), "f() takes at least 1 arguments (0 given)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Dispatch("f", reflect.ValueOf(tt.fn), tt.args)
			var arity *ArityError
			require.True(t, errors.As(err, &arity))
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestDispatchCoercion(t *testing.T) {
	h, err := Dispatch("math.Sqrt", reflect.ValueOf(math.Sqrt), values(4))
	require.NoError(t, err)
	assert.Equal(t, 2.0, h.Float())

	h, err = Dispatch("strings.ToUpper", reflect.ValueOf(strings.ToUpper), values([]byte("abc")))
	require.NoError(t, err)
	assert.Equal(t, "ABC", h.String())

	h, err = Dispatch("len", reflect.ValueOf(func(b []byte) int { return len(b) }), values(nil))
	require.NoError(t, err)
	assert.Equal(t, int64(0), h.Int())

	h, err = Dispatch("sum", reflect.ValueOf(func(xs ...int) int { return len(xs) }), values(1, 2.5, 3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), h.Int())
}

func TestDispatchArgumentError(t *testing.T) {
	_, err := Dispatch("math.Sqrt", reflect.ValueOf(math.Sqrt), values("four"))
	var argErr *ArgumentError
	require.True(t, errors.As(err, &argErr))
	assert.Equal(t, 0, argErr.Index)
	assert.Equal(t, "math.Sqrt() argument 1 must be float64, not string", err.Error())

	_, err = Dispatch("math.Sqrt", reflect.ValueOf(math.Sqrt), values(nil))
	require.True(t, errors.As(err, &argErr))
	assert.Contains(t, err.Error(), "not nil")
}

func TestDispatchReturnedError(t *testing.T) {
	fn := func(s string) (int, error) {
		if s == "" {
			return -1, io.EOF
		}
		return len(s), nil
	}

	h, err := Dispatch("f", reflect.ValueOf(fn), values(""))
	var ret *ReturnedError
	require.True(t, errors.As(err, &ret))
	assert.True(t, errors.Is(err, io.EOF))
	assert.Equal(t, int64(-1), h.Int())

	_, err = Dispatch("close", reflect.ValueOf(func() error { return io.EOF }), nil)
	assert.True(t, errors.Is(err, io.EOF))
}

func TestDispatchRecoversPanic(t *testing.T) {
	fn := func(xs []int, i int) int { return xs[i] }

	h, err := Dispatch("index", reflect.ValueOf(fn), values([]int{}, 3))
	var p *PanicError
	require.True(t, errors.As(err, &p))
	assert.False(t, h.IsValid())
	assert.NotEmpty(t, p.Stack)
	assert.Contains(t, err.Error(), "panic in index")
}

func TestDispatchRejectsNonFunction(t *testing.T) {
	_, err := Dispatch("x", reflect.ValueOf(42), nil)
	var lookup *LookupError
	assert.True(t, errors.As(err, &lookup))
}

// =============================================================================
// METHODS AND CAPABILITIES
// =============================================================================

type generator struct{ n int }

func (g *generator) Close() error   { return nil }
func (g *generator) Send(v any) any { g.n++; return v }
func (g generator) Throw(typ, val, tb any) error {
	return errors.New("thrown")
}

type closer struct{}

func (closer) Close() error { return nil }

func TestMethodFindsPointerReceivers(t *testing.T) {
	m, err := Method(reflect.ValueOf(generator{}), "Send")
	require.NoError(t, err)
	out := m.Call(values(7))
	assert.Equal(t, 7, out[0].Interface())

	_, err = Method(reflect.ValueOf(&generator{}), "Missing")
	var lookup *LookupError
	assert.True(t, errors.As(err, &lookup))

	_, err = Method(reflect.Value{}, "Close")
	assert.True(t, errors.As(err, &lookup))
}

func TestSupports(t *testing.T) {
	ops := []string{"Close", "Send", "Throw"}

	assert.True(t, Supports(reflect.ValueOf(&generator{}), ops...))
	assert.True(t, Supports(reflect.ValueOf(generator{}), ops...))
	assert.False(t, Supports(reflect.ValueOf(closer{}), ops...))
	assert.False(t, Supports(reflect.ValueOf(42), ops...))
	assert.False(t, Supports(reflect.Value{}, ops...))

	var iface io.Closer = closer{}
	assert.True(t, Supports(reflect.ValueOf(&iface).Elem(), "Close"))
}

// =============================================================================
// INTERPRETER
// =============================================================================

func TestInterpreterResolvesStdlib(t *testing.T) {
	h, err := NewInterpreter(Options{Packages: []string{"math", "strings"}})
	require.NoError(t, err)

	fn, err := h.Resolve("math", "Sqrt")
	require.NoError(t, err)

	arg, err := h.Eval("16")
	require.NoError(t, err)

	out, err := Dispatch("math.Sqrt", fn, []reflect.Value{arg})
	require.NoError(t, err)
	assert.Equal(t, 4.0, out.Float())

	again, err := h.Resolve("math", "Sqrt")
	require.NoError(t, err)
	assert.Equal(t, fn.Pointer(), again.Pointer())
}

func TestInterpreterLogsBootAndResolution(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logging.SetLogger(zap.New(core))
	t.Cleanup(func() { logging.SetLogger(nil) })

	h, err := NewInterpreter(Options{Packages: []string{"strings"}})
	require.NoError(t, err)
	_, err = h.Resolve("strings", "Repeat")
	require.NoError(t, err)
	_, err = h.Resolve("strings", "Nope")
	require.Error(t, err)

	boot := logs.FilterLoggerName("boot").All()
	require.Len(t, boot, 1)
	assert.Equal(t, "interpreter ready: 1 packages, 0 sources", boot[0].Message)

	resolved := logs.FilterLoggerName("host").FilterMessageSnippet("resolved strings.Repeat").All()
	require.Len(t, resolved, 1)
	assert.Equal(t, zapcore.DebugLevel, resolved[0].Level)
	assert.Equal(t, 1, logs.FilterLoggerName("host").FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestInterpreterLookupFailures(t *testing.T) {
	h, err := NewInterpreter(Options{Packages: []string{"math"}})
	require.NoError(t, err)

	var lookup *LookupError

	_, err = h.Resolve("math", "NoSuchFunction")
	assert.True(t, errors.As(err, &lookup))

	_, err = h.Resolve("os", "Getpid")
	assert.True(t, errors.As(err, &lookup))

	_, err = h.Resolve("math", "Pi")
	assert.True(t, errors.As(err, &lookup))

	assert.True(t, h.Allowed("math"))
	assert.False(t, h.Allowed("os"))
}

func TestInterpreterEval(t *testing.T) {
	h, err := NewInterpreter(Options{Packages: []string{"errors"}})
	require.NoError(t, err)

	v, err := h.Eval("nil")
	require.NoError(t, err)
	assert.False(t, v.IsValid())

	require.NoError(t, h.Declare(`import "errors"`))
	require.NoError(t, h.Declare(`import "errors"`))

	v, err = h.Eval(`errors.New("boom")`)
	require.NoError(t, err)
	assert.EqualError(t, v.Interface().(error), "boom")

	require.NoError(t, h.Setup("type fuzzT struct{ A int }"))
	require.NoError(t, h.Setup("type fuzzT struct{ A int }"))

	_, err = h.Eval("undefinedIdentifier")
	var setup *SetupError
	assert.True(t, errors.As(err, &setup))
}

func TestInterpreterSources(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "target.go")
	code := `package main

func Double(x int) int { return x * 2 }
`
	require.NoError(t, os.WriteFile(src, []byte(code), 0644))

	h, err := NewInterpreter(Options{Packages: []string{"fmt"}, Sources: []string{src}})
	require.NoError(t, err)

	fn, err := h.Resolve("main", "Double")
	require.NoError(t, err)

	out, err := Dispatch("main.Double", fn, values(21))
	require.NoError(t, err)
	assert.Equal(t, int64(42), out.Int())
}

func TestPackageName(t *testing.T) {
	assert.Equal(t, "json", PackageName("encoding/json"))
	assert.Equal(t, "rand", PackageName("math/rand/v2"))
	assert.Equal(t, "math/rand/v2/rand", symbolKey("math/rand/v2"))
	assert.Equal(t, "encoding/json", importPathOf("encoding/json/json"))
}

// =============================================================================
// CATALOG
// =============================================================================

func TestCatalogBytes(t *testing.T) {
	set, err := Catalog("bytes")
	require.NoError(t, err)

	var buffer bool
	for _, cls := range set.Classes {
		if cls.Name() != "Buffer" {
			continue
		}
		buffer = true
		ctor := cls.Constructor()
		require.NotNil(t, ctor)
		assert.Equal(t, "NewBuffer", ctor.Name())
		assert.Equal(t, 1, ctor.NumParams())

		trunc, ok := cls.Method("Truncate")
		require.True(t, ok)
		assert.False(t, trunc.Unknown())
		assert.Equal(t, 1, trunc.NumParams())
	}
	assert.True(t, buffer)

	for _, fn := range set.Functions {
		assert.NotEqual(t, "NewBuffer", fn.Name())
		if fn.Name() == "Repeat" {
			assert.Equal(t, 2, fn.NumParams())
		}
	}

	_, err = Catalog("no/such/package")
	assert.Error(t, err)
}
