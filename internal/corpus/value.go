// Package corpus holds the candidate argument values used by the fuzz engine.
//
// A Value is either a literal Go expression ("42", `"string"`, "nil") or a
// fixture: an expression plus the setup statements and import declarations it
// needs before it can be evaluated by the host interpreter.
package corpus

import "strings"

// Value is a single candidate argument.
// Values are immutable once built; copying a Value never shares mutable state.
type Value struct {
	Expr  string   `yaml:"expr" json:"expr"`
	Setup []string `yaml:"setup,omitempty" json:"setup,omitempty"`
	Decls []string `yaml:"imports,omitempty" json:"imports,omitempty"`
}

// Literal returns a plain expression value.
func Literal(expr string) Value {
	return Value{Expr: expr}
}

// Fixture returns a composite value. Empty setup statements and declarations
// are dropped.
func Fixture(expr string, setup []string, decls ...string) Value {
	return Value{
		Expr:  expr,
		Setup: compact(setup),
		Decls: compact(decls),
	}
}

// Import is a shorthand for a fixture whose only requirement is one import.
func Import(expr, importPath string) Value {
	return Fixture(expr, nil, ImportDecl(importPath))
}

// ImportDecl renders the declaration that brings a package into scope.
func ImportDecl(importPath string) string {
	return `import "` + importPath + `"`
}

// IsFixture reports whether the value carries setup or declarations.
func (v Value) IsFixture() bool {
	return len(v.Setup) > 0 || len(v.Decls) > 0
}

// String returns the expression.
func (v Value) String() string {
	return v.Expr
}

// Equal compares two values field by field.
func (v Value) Equal(o Value) bool {
	return v.Expr == o.Expr && equalStrings(v.Setup, o.Setup) && equalStrings(v.Decls, o.Decls)
}

func compact(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
