package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"callfuzz/internal/classify"
	"callfuzz/internal/fuzz"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Width(12)
	findingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Bold(true)
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// styled reports whether w is a terminal.
func styled(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// printSummary writes the session counters, styled when w is a terminal.
func printSummary(w io.Writer, session string, stats fuzz.Stats, elapsed time.Duration) {
	var b strings.Builder
	pretty := styled(w)

	title := "callfuzz session " + session
	label := func(s string) string { return s }
	if pretty {
		title = titleStyle.Render(title)
		label = func(s string) string { return labelStyle.Render(s) }
	}

	fmt.Fprintf(&b, "%s\n", title)
	fmt.Fprintf(&b, "%s %d in %s\n", label("invocations"), stats.Runs, elapsed.Round(time.Millisecond))
	for _, class := range classify.Classes() {
		if n := stats.ByClass[class]; n > 0 {
			fmt.Fprintf(&b, "%s %d\n", label(class.String()), n)
		}
	}

	statuses := make([]string, 0, len(stats.Targets))
	for status := range stats.Targets {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		fmt.Fprintf(&b, "%s %d\n", label("targets/"+status), stats.Targets[status])
	}

	if len(stats.Findings) > 0 {
		heading := fmt.Sprintf("%d findings", len(stats.Findings))
		if pretty {
			heading = findingStyle.Render(heading)
		}
		fmt.Fprintf(&b, "\n%s\n", heading)
		for _, f := range stats.Findings {
			fmt.Fprintf(&b, "  %s: %s\n", f.Key, firstLine(f.Err))
		}
	}

	out := strings.TrimRight(b.String(), "\n")
	if pretty {
		out = boxStyle.Render(out)
	}
	fmt.Fprintln(w, out)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
