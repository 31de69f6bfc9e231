package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"callfuzz/internal/caller"
	"callfuzz/internal/classify"
	"callfuzz/internal/config"
	"callfuzz/internal/corpus"
	"callfuzz/internal/dump"
	"callfuzz/internal/fuzz"
	"callfuzz/internal/target"

	"github.com/spf13/cobra"
)

func TestApplyRunFlags(t *testing.T) {
	c := config.DefaultConfig()
	cmd := &cobra.Command{}
	cmd.Flags().String("strategy", "", "")
	cmd.Flags().StringSlice("exclude", nil, "")
	if err := cmd.Flags().Set("strategy", "combination"); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Flags().Set("exclude", ""); err != nil {
		t.Fatal(err)
	}

	applyRunFlags(cmd, c, runFlags{
		strategy:    "combination",
		noFollowUps: true,
		packages:    []string{"math"},
		database:    "cases.db",
	})

	if c.Fuzz.Strategy != "combination" {
		t.Errorf("expected strategy override, got %s", c.Fuzz.Strategy)
	}
	if c.Fuzz.FollowUps {
		t.Error("expected follow-ups to be disabled")
	}
	if len(c.Fuzz.Exclude) != 0 {
		t.Errorf("expected exclude list to be cleared, got %v", c.Fuzz.Exclude)
	}
	if c.Fuzz.MaxParamGuess != 3 {
		t.Errorf("unset flag must keep the config value, got %d", c.Fuzz.MaxParamGuess)
	}
	if len(c.Fuzz.Packages) != 1 || c.Fuzz.Packages[0] != "math" {
		t.Errorf("unexpected packages: %v", c.Fuzz.Packages)
	}
	if c.Dump.Database != "cases.db" {
		t.Errorf("expected database override, got %s", c.Dump.Database)
	}
}

func TestLoadTargets(t *testing.T) {
	c := config.DefaultConfig()
	if _, err := loadTargets(c); err == nil {
		t.Fatal("expected an error for an empty target set")
	}

	c.Fuzz.Packages = []string{"strings"}
	set, err := loadTargets(c)
	if err != nil {
		t.Fatalf("loadTargets failed: %v", err)
	}
	if set.Len() == 0 {
		t.Fatal("expected targets from the strings package")
	}

	c.Fuzz.Packages = []string{"no/such/package"}
	if _, err := loadTargets(c); err == nil {
		t.Fatal("expected an error for an unknown package")
	}
}

func TestOpenSinks(t *testing.T) {
	c := config.DefaultConfig()

	c.Dump.Dir = ""
	sink, err := openSinks(c, "s")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := sink.(*dump.Nop); !ok {
		t.Errorf("expected Nop sink, got %T", sink)
	}

	c.Dump.Dir = t.TempDir()
	sink, err = openSinks(c, "s")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := sink.(*dump.DirSink); !ok {
		t.Errorf("expected DirSink, got %T", sink)
	}

	c.Dump.Database = filepath.Join(t.TempDir(), "cases.db")
	sink, err = openSinks(c, "s")
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()
	if tee, ok := sink.(dump.Tee); !ok || len(tee) != 2 {
		t.Errorf("expected Tee of two sinks, got %T", sink)
	}
}

func TestWriteTargets(t *testing.T) {
	fn := target.NewFunction("", "math", "Sqrt")
	fn.AddParam(corpus.KindDouble, nil)
	unknown := target.NewFunction("lib.go", "pkg", "Mystery")

	cls := target.NewClass("", "bytes", "Buffer")
	if _, err := cls.AddMethod("NewBuffer"); err != nil {
		t.Fatal(err)
	}
	if _, err := cls.AddMethod("Len"); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	writeTargets(&buf, &target.Set{Functions: []*target.Function{fn, unknown}, Classes: []*target.Class{cls}})
	out := buf.String()

	for _, want := range []string{
		"func   math.Sqrt(double)",
		"func   pkg.Mystery(?)  lib.go",
		"ctor   bytes.Buffer.NewBuffer(?)",
		"method bytes.Buffer.Len(?)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestPrintSummaryPlain(t *testing.T) {
	stats := fuzz.Stats{
		Runs:    5,
		ByClass: map[classify.Class]int{classify.Success: 3, classify.Panic: 2},
		Targets: map[string]int{"fuzzed": 1},
		Findings: []fuzz.Finding{
			{Key: "pkg/pkg_f", Err: "panic in pkg.f: boom\nstack"},
		},
	}

	var buf bytes.Buffer
	printSummary(&buf, "abc", stats, 1500*time.Millisecond)
	out := buf.String()

	for _, want := range []string{"callfuzz session abc", "invocations 5 in 1.5s", "panic 2", "targets/fuzzed 1", "1 findings", "pkg/pkg_f: panic in pkg.f: boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in summary:\n%s", want, out)
		}
	}
	if strings.Contains(out, "stack") {
		t.Error("findings should only show the first line")
	}
}

func TestReplayExecutesCases(t *testing.T) {
	cfg = config.DefaultConfig()
	h, err := newHost(cfg)
	if err != nil {
		t.Fatalf("newHost failed: %v", err)
	}
	s := fuzz.NewSession(h, fuzz.DefaultOptions())

	cases := []dump.Case{
		{Key: "strings/strings_Repeat", Seq: 0, Invocation: caller.Invocation{
			Declarations: caller.OrderedSet{`import "strings"`},
			Calls: []caller.Call{{
				Kind: caller.KindFunction, Module: "strings", Name: "Repeat", Bind: "r",
				Args: []caller.Arg{{Name: "p1", Expr: `"ab"`}, {Name: "p2", Expr: "-1"}},
			}},
		}},
		{Key: "strings/strings_Repeat", Seq: 1, Invocation: caller.Invocation{
			Declarations: caller.OrderedSet{`import "strings"`},
			Calls: []caller.Call{{
				Kind: caller.KindFunction, Module: "strings", Name: "Repeat", Bind: "r",
				Args: []caller.Arg{{Name: "p1", Expr: `"ab"`}, {Name: "p2", Expr: "2"}},
			}},
		}},
	}

	var buf bytes.Buffer
	counts := replay(context.Background(), &buf, fuzz.NewExecutor(s), cases)

	if counts[classify.Panic] != 1 || counts[classify.Success] != 1 {
		t.Fatalf("unexpected outcome counts: %v\n%s", counts, buf.String())
	}
	if !strings.Contains(buf.String(), "strings/strings_Repeat_1\tsuccess") {
		t.Errorf("unexpected replay output:\n%s", buf.String())
	}
}
