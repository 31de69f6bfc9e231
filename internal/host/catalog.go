package host

import (
	"fmt"
	"reflect"
	"sort"
	"unicode"

	"callfuzz/internal/corpus"
	"callfuzz/internal/logging"
	"callfuzz/internal/target"
	"github.com/traefik/yaegi/stdlib"
)

// Catalog lists the exported functions and types of a natively compiled
// standard library package as targets. Parameter shapes come from the
// reflected signatures; variadic functions are left unknown. A type becomes a
// class when the package has a New<Type> function, which is then used as its
// constructor instead of being listed as a free function.
func Catalog(importPath string) (*target.Set, error) {
	syms, ok := stdlib.Symbols[symbolKey(importPath)]
	if !ok {
		return nil, &LookupError{Module: importPath, Name: "*", Err: fmt.Errorf("unknown package")}
	}

	names := make([]string, 0, len(syms))
	for name := range syms {
		names = append(names, name)
	}
	sort.Strings(names)

	funcs := map[string]reflect.Type{}
	types := map[string]reflect.Type{}
	for _, name := range names {
		if !exported(name) {
			continue
		}
		v := syms[name]
		switch {
		case v.Kind() == reflect.Func:
			funcs[name] = v.Type()
		case v.Kind() == reflect.Ptr && v.IsNil() && v.Type().Elem().Kind() != reflect.Interface:
			types[name] = v.Type().Elem()
		}
	}

	set := &target.Set{}
	claimed := map[string]bool{}

	for _, name := range names {
		t, ok := types[name]
		if !ok {
			continue
		}
		ctorType, ok := funcs["New"+name]
		if !ok {
			continue
		}
		cls := target.NewClass("", importPath, name)
		ctor, err := cls.AddMethod("New" + name)
		if err != nil {
			return nil, err
		}
		describe(ctor, ctorType, 0)
		claimed["New"+name] = true

		pt := reflect.PointerTo(t)
		for i := 0; i < pt.NumMethod(); i++ {
			m := pt.Method(i)
			if m.Name == ctor.Name() {
				continue
			}
			method, err := cls.AddMethod(m.Name)
			if err != nil {
				return nil, err
			}
			describe(method, m.Type, 1)
		}
		set.Classes = append(set.Classes, cls)
	}

	for _, name := range names {
		ft, ok := funcs[name]
		if !ok || claimed[name] {
			continue
		}
		fn := target.NewFunction("", importPath, name)
		describe(fn, ft, 0)
		set.Functions = append(set.Functions, fn)
	}

	logging.Host("cataloged %s: %d functions, %d classes", importPath, len(set.Functions), len(set.Classes))
	return set, nil
}

type describable interface {
	AddParam(kind corpus.Kind, def *corpus.Value)
	Confirm()
}

// describe installs the slots of ft starting at parameter skip.
func describe(c describable, ft reflect.Type, skip int) {
	if ft.IsVariadic() {
		return
	}
	for i := skip; i < ft.NumIn(); i++ {
		c.AddParam(kindOf(ft.In(i)), nil)
	}
	c.Confirm()
}

func kindOf(t reflect.Type) corpus.Kind {
	switch t.Kind() {
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return corpus.KindBytes
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return corpus.KindInteger
	case reflect.Float32, reflect.Float64:
		return corpus.KindDouble
	case reflect.Bool:
		return corpus.KindBoolean
	case reflect.String:
		return corpus.KindString
	case reflect.Interface:
		if t == errorType {
			return corpus.KindException
		}
	}
	return corpus.KindAny
}

func exported(name string) bool {
	for _, r := range name {
		return unicode.IsUpper(r)
	}
	return false
}
