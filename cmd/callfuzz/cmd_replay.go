package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"callfuzz/internal/classify"
	"callfuzz/internal/dump"
	"callfuzz/internal/fuzz"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	replayDir     string
	replayDB      string
	replaySession string
	replayMatch   string
)

// replayCmd re-executes stored cases
var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-execute stored cases once each",
	Long: `Loads cases from a dump directory or database and executes each one
exactly once, printing the outcome. Use it to reproduce a crash after a run
was killed.

Examples:
  callfuzz replay --dir dumps
  callfuzz replay --db cases.db --session 3f0c... --match strings_Repeat`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayDir, "dir", "", "Dump directory")
	replayCmd.Flags().StringVar(&replayDB, "db", "", "Dump database")
	replayCmd.Flags().StringVar(&replaySession, "session", "", "Only cases from this session (database only)")
	replayCmd.Flags().StringVar(&replayMatch, "match", "", "Only cases whose key contains this")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cases, err := loadCases()
	if err != nil {
		return err
	}
	if replayMatch != "" {
		filtered := cases[:0]
		for _, c := range cases {
			if strings.Contains(c.Key, replayMatch) {
				filtered = append(filtered, c)
			}
		}
		cases = filtered
	}
	if len(cases) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No cases to replay")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := newHost(cfg)
	if err != nil {
		return err
	}
	s := fuzz.NewSession(h, fuzz.OptionsFromConfig(cfg.Fuzz))
	logger.Info("Replaying cases", zap.Int("cases", len(cases)), zap.String("session", s.ID))

	counts := replay(ctx, cmd.OutOrStdout(), fuzz.NewExecutor(s), cases)
	for _, class := range classify.Classes() {
		if n := counts[class]; n > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%-10s %d\n", class, n)
		}
	}
	return ctx.Err()
}

func loadCases() ([]dump.Case, error) {
	switch {
	case replayDB != "":
		db, err := dump.NewSQLiteSink(replayDB, cfg.Dump.Driver, "")
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return db.Load(replaySession)
	case replayDir != "":
		return dump.LoadDir(replayDir)
	case cfg.Dump.Dir != "":
		return dump.LoadDir(cfg.Dump.Dir)
	}
	return nil, fmt.Errorf("nothing to replay: use --dir or --db")
}

// replay executes each case once and reports every outcome on w.
func replay(ctx context.Context, w io.Writer, exec *fuzz.Executor, cases []dump.Case) map[classify.Class]int {
	counts := make(map[classify.Class]int)
	for _, c := range cases {
		if ctx.Err() != nil {
			break
		}
		res := exec.Execute(c.Invocation)
		counts[res.Outcome.Class]++
		if res.Outcome.Err != nil {
			fmt.Fprintf(w, "%s_%d\t%s\t%v\n", c.Key, c.Seq, res.Outcome.Class, res.Outcome.Err)
		} else {
			fmt.Fprintf(w, "%s_%d\t%s\n", c.Key, c.Seq, res.Outcome.Class)
		}
	}
	return counts
}
