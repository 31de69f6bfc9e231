// Package host is the call surface the fuzz engine drives: an embedded Go
// interpreter that resolves targets by name, evaluates argument expressions
// and dispatches calls through reflection.
package host

import (
	"fmt"
	"io"
	"os"
	"path"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"callfuzz/internal/logging"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// Host is what the executor needs from the call surface.
type Host interface {
	// Declare evaluates a top-level declaration such as an import. Repeated
	// declarations of the same text are no-ops.
	Declare(decl string) error
	// Setup evaluates a setup statement once per text.
	Setup(stmt string) error
	// Resolve returns a callable handle for module.name.
	Resolve(module, name string) (reflect.Value, error)
	// Eval evaluates an argument expression. "nil" yields the zero Value.
	Eval(expr string) (reflect.Value, error)
}

// Options configures an Interpreter.
type Options struct {
	// Packages restricts the natively compiled standard library symbols to
	// the listed import paths. Empty means all of them.
	Packages []string
	// Sources are interpreted Go files (package main) whose functions become
	// targets in module "main".
	Sources []string
	GoPath  string
	Stdout  io.Writer
	Stderr  io.Writer
}

// Interpreter is a yaegi-backed Host.
type Interpreter struct {
	mu sync.Mutex

	interp          *interp.Interpreter
	allowedPackages map[string]bool

	declared map[string]bool
	setup    map[string]bool
	handles  map[string]reflect.Value
}

// NewInterpreter creates an interpreter loaded with the allowed standard
// library packages and the given sources.
func NewInterpreter(opts Options) (*Interpreter, error) {
	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	h := &Interpreter{
		interp: interp.New(interp.Options{
			GoPath: opts.GoPath,
			Stdout: stdout,
			Stderr: stderr,
		}),
		allowedPackages: make(map[string]bool, len(opts.Packages)),
		declared:        make(map[string]bool),
		setup:           make(map[string]bool),
		handles:         make(map[string]reflect.Value),
	}
	for _, p := range opts.Packages {
		h.allowedPackages[strings.TrimSpace(p)] = true
	}

	syms := h.symbols()
	if err := h.interp.Use(syms); err != nil {
		logging.BootError("failed to load stdlib symbols: %v", err)
		return nil, fmt.Errorf("failed to load stdlib: %w", err)
	}

	for _, src := range opts.Sources {
		code, err := os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("failed to read source %s: %w", src, err)
		}
		if _, err := h.interp.Eval(string(code)); err != nil {
			logging.BootError("source %s: %v", src, err)
			return nil, fmt.Errorf("source %s evaluation failed: %w", src, err)
		}
		logging.BootDebug("interpreted %s (%d bytes)", src, len(code))
	}

	logging.Boot("interpreter ready: %d packages, %d sources", len(syms), len(opts.Sources))
	return h, nil
}

// symbols returns the stdlib symbol table filtered by the allowlist.
func (h *Interpreter) symbols() interp.Exports {
	if len(h.allowedPackages) == 0 {
		return stdlib.Symbols
	}
	out := interp.Exports{}
	for key, syms := range stdlib.Symbols {
		if h.allowedPackages[importPathOf(key)] {
			out[key] = syms
		}
	}
	return out
}

// Allowed reports whether importPath can be imported.
func (h *Interpreter) Allowed(importPath string) bool {
	if len(h.allowedPackages) > 0 {
		return h.allowedPackages[importPath]
	}
	_, ok := stdlib.Symbols[symbolKey(importPath)]
	return ok
}

func (h *Interpreter) Declare(decl string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.declareLocked(decl)
}

func (h *Interpreter) declareLocked(decl string) error {
	decl = strings.TrimSpace(decl)
	if decl == "" || h.declared[decl] {
		return nil
	}
	if _, err := h.interp.Eval(decl); err != nil {
		return &SetupError{Stmt: decl, Err: err}
	}
	h.declared[decl] = true
	return nil
}

func (h *Interpreter) Setup(stmt string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	stmt = strings.TrimSpace(stmt)
	if stmt == "" || h.setup[stmt] {
		return nil
	}
	if _, err := h.interp.Eval(stmt); err != nil {
		return &SetupError{Stmt: stmt, Err: err}
	}
	h.setup[stmt] = true
	return nil
}

func (h *Interpreter) Resolve(module, name string) (reflect.Value, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := module + "\x00" + name
	if v, ok := h.handles[key]; ok {
		return v, nil
	}

	expr := name
	switch module {
	case "", "main":
		expr = "main." + name
	default:
		if err := h.declareLocked(`import "` + module + `"`); err != nil {
			return reflect.Value{}, &LookupError{Module: module, Name: name, Err: err}
		}
		expr = PackageName(module) + "." + name
	}

	v, err := h.interp.Eval(expr)
	if err != nil {
		logging.HostWarn("cannot resolve %s: %v", expr, err)
		return reflect.Value{}, &LookupError{Module: module, Name: name, Err: err}
	}
	if !v.IsValid() || v.Kind() != reflect.Func {
		logging.HostWarn("%s is not a function", expr)
		return reflect.Value{}, &LookupError{Module: module, Name: name, Err: fmt.Errorf("not a function")}
	}

	logging.HostDebug("resolved %s as %s", expr, v.Type())
	h.handles[key] = v
	return v, nil
}

func (h *Interpreter) Eval(expr string) (reflect.Value, error) {
	expr = strings.TrimSpace(expr)
	if expr == "nil" {
		return reflect.Value{}, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	v, err := h.interp.Eval(expr)
	if err != nil {
		return reflect.Value{}, &SetupError{Stmt: expr, Err: err}
	}
	return v, nil
}

// =============================================================================
// IMPORT PATHS
// =============================================================================

var majorVersion = regexp.MustCompile(`^v[0-9]+$`)

// packageName returns the identifier an import path is referred to by.
func PackageName(importPath string) string {
	base := path.Base(importPath)
	if majorVersion.MatchString(base) {
		return path.Base(path.Dir(importPath))
	}
	return base
}

// symbolKey is the key yaegi uses for an import path in its symbol tables.
func symbolKey(importPath string) string {
	return importPath + "/" + PackageName(importPath)
}

func importPathOf(key string) string {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[:i]
	}
	return key
}
