package corpus

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Corpus is a named, ordered collection of values.
type Corpus struct {
	name   string
	values []Value
}

// New creates a corpus from the given values, preserving their order.
func New(name string, values ...Value) *Corpus {
	c := &Corpus{name: name, values: make([]Value, len(values))}
	copy(c.values, values)
	return c
}

// Literals creates a corpus of plain expressions.
func Literals(name string, exprs ...string) *Corpus {
	values := make([]Value, len(exprs))
	for i, e := range exprs {
		values[i] = Literal(e)
	}
	return &Corpus{name: name, values: values}
}

// Name returns the corpus name.
func (c *Corpus) Name() string { return c.name }

// Len returns the number of values.
func (c *Corpus) Len() int { return len(c.values) }

// At returns the i-th value.
func (c *Corpus) At(i int) Value { return c.values[i] }

// Values returns a copy of the values.
func (c *Corpus) Values() []Value {
	out := make([]Value, len(c.values))
	copy(out, c.values)
	return out
}

// =============================================================================
// BUILT-IN CORPORA
// =============================================================================

// General returns the corpus used while probing for a valid call shape.
// Values are plain and well-formed so that a rejection says something about
// the shape of the call rather than about the value.
func General() *Corpus {
	return New("general",
		Literal("42"),
		Literal("true"),
		Literal(`"string"`),
		Literal("4.2"),
		Literal(`[]byte("bytes")`),
		Literal("struct{}{}"),
	)
}

// Fuzz returns the adversarial corpus used by the mutation strategies.
func Fuzz() *Corpus {
	return New("fuzz",
		Literal("0"),
		Literal("-1"),
		Literal("1 << 62"),
		Literal("-1 << 63"),
		Import("math.MaxInt64", "math"),
		Import("math.MaxUint32", "math"),
		Import("math.NaN()", "math"),
		Import("math.Inf(1)", "math"),
		Import("math.Inf(-1)", "math"),
		Literal("-4.2"),
		Literal("1e308"),
		Literal(`""`),
		Literal(`"\x00"`),
		Literal(`"\xff\xfe\xfd"`),
		Literal(`"%s%n%x%d"`),
		Literal(`"../../../../etc/passwd"`),
		Import(`strings.Repeat("A", 1 << 16)`, "strings"),
		Literal("nil"),
		Literal("[]byte{}"),
		Literal("[]byte(nil)"),
		Literal("make([]byte, 1 << 20)"),
		Literal("[]int{}"),
		Literal("map[string]int{}"),
		Literal("new(int)"),
		Literal("make(chan int)"),
		Literal("func() {}"),
		Literal("struct{}{}"),
		Literal("true"),
		Import(`errors.New("fuzz")`, "errors"),
		Fixture("fuzzT{A: -1}", []string{"type fuzzT struct{ A int }"}),
	)
}

// Exceptions returns the error-flavoured corpus used for Throw follow-ups.
func Exceptions() *Corpus {
	return New("exceptions",
		Literal("nil"),
		Import(`errors.New("fuzz")`, "errors"),
		Import("io.EOF", "io"),
		Import("context.Canceled", "context"),
		Fixture(`fmt.Errorf("wrapped: %w", io.ErrUnexpectedEOF)`, nil, ImportDecl("fmt"), ImportDecl("io")),
		Import("reflect.TypeOf((*error)(nil)).Elem()", "reflect"),
		Literal("42"),
		Literal(`"exception"`),
		Literal("[]uintptr{}"),
	)
}

// =============================================================================
// CORPUS FILES
// =============================================================================

// Set groups the three corpora a fuzz session works with.
type Set struct {
	General    *Corpus
	Fuzz       *Corpus
	Exceptions *Corpus
}

// DefaultSet returns the built-in corpora.
func DefaultSet() Set {
	return Set{
		General:    General(),
		Fuzz:       Fuzz(),
		Exceptions: Exceptions(),
	}
}

// file mirrors the YAML layout of a corpus file.
type file struct {
	General    []Value `yaml:"general"`
	Fuzz       []Value `yaml:"fuzz"`
	Exceptions []Value `yaml:"exceptions"`
}

// Load reads a corpus file. Lists that are missing from the file keep the
// built-in values.
func Load(path string) (Set, error) {
	set := DefaultSet()

	data, err := os.ReadFile(path)
	if err != nil {
		return set, fmt.Errorf("failed to read corpus: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return set, fmt.Errorf("failed to parse corpus: %w", err)
	}

	if len(f.General) > 0 {
		set.General = New("general", normalize(f.General)...)
	}
	if len(f.Fuzz) > 0 {
		set.Fuzz = New("fuzz", normalize(f.Fuzz)...)
	}
	if len(f.Exceptions) > 0 {
		set.Exceptions = New("exceptions", normalize(f.Exceptions)...)
	}
	return set, nil
}

func normalize(values []Value) []Value {
	out := make([]Value, 0, len(values))
	for _, v := range values {
		if v.Expr == "" {
			continue
		}
		out = append(out, Fixture(v.Expr, v.Setup, v.Decls...))
	}
	return out
}
