package main

import (
	"fmt"
	"io"

	"callfuzz/internal/target"

	"github.com/spf13/cobra"
)

var (
	targetsFile     string
	targetsPackages []string
)

// targetsCmd lists a target set without running it
var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List the targets a run would fuzz",
	Long: `Prints every function, constructor and method of the target set with
its parameter kinds, or "?" when the shape is unknown.

Example:
  callfuzz targets --package bytes`,
	RunE: listTargets,
}

func init() {
	targetsCmd.Flags().StringVarP(&targetsFile, "targets", "t", "", "Target manifest (YAML)")
	targetsCmd.Flags().StringSliceVarP(&targetsPackages, "package", "p", nil, "Standard library package to catalog")
}

func listTargets(cmd *cobra.Command, args []string) error {
	if targetsFile != "" {
		cfg.Fuzz.TargetsFile = targetsFile
	}
	if len(targetsPackages) > 0 {
		cfg.Fuzz.Packages = targetsPackages
	}

	set, err := loadTargets(cfg)
	if err != nil {
		return err
	}
	writeTargets(cmd.OutOrStdout(), set)
	return nil
}

func writeTargets(w io.Writer, set *target.Set) {
	for _, fn := range set.Functions {
		fmt.Fprintf(w, "func   %s%s%s\n", fn.QualifiedName(), shape(fn), origin(fn))
	}
	for _, cls := range set.Classes {
		ctor := cls.Constructor()
		for _, m := range cls.Methods() {
			kind := "method"
			if m == ctor {
				kind = "ctor"
			}
			fmt.Fprintf(w, "%-6s %s%s%s\n", kind, m.QualifiedName(), shape(m), origin(m))
		}
	}
}

func origin(c target.Callable) string {
	if c.Filename() == "" {
		return ""
	}
	return "  " + c.Filename()
}

func shape(c target.Callable) string {
	if c.Unknown() {
		return "(?)"
	}
	s := "("
	for i, slot := range c.Slots() {
		if i > 0 {
			s += ", "
		}
		s += slot.Kind().String()
	}
	return s + ")"
}
