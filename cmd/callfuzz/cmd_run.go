package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callfuzz/internal/config"
	"callfuzz/internal/corpus"
	"callfuzz/internal/dump"
	"callfuzz/internal/fuzz"
	"callfuzz/internal/host"
	"callfuzz/internal/target"
	"callfuzz/internal/telemetry"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// runFlags are the command-line overrides of the run command.
type runFlags struct {
	strategy       string
	maxParamGuess  int
	maxInvocations int
	noFollowUps    bool
	exclude        []string
	include        []string
	targetsFile    string
	packages       []string
	sources        []string
	corpusFile     string
	dumpDir        string
	database       string
	driver         string
	metricsAddr    string
}

var runOpts runFlags

// runCmd fuzzes a target set
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Discover call shapes and fuzz every target",
	Long: `Builds the target set from a manifest and/or standard library packages,
then runs arity discovery and the configured mutation sweep on each target.

Examples:
  callfuzz run --package strings --package bytes
  callfuzz run --targets targets.yaml --source lib.go --strategy combination
  callfuzz run --package math --db cases.db --metrics-addr :9464`,
	RunE: runFuzz,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.strategy, "strategy", "", "Mutation strategy: single or combination")
	f.IntVar(&runOpts.maxParamGuess, "max-param-guess", 0, "Largest arity tried for unknown targets")
	f.IntVar(&runOpts.maxInvocations, "max-invocations", 0, "Combination sweep ceiling per target")
	f.BoolVar(&runOpts.noFollowUps, "no-follow-ups", false, "Do not probe results for Close/Send/Throw")
	f.StringSliceVar(&runOpts.exclude, "exclude", nil, "Skip targets whose qualified name contains this")
	f.StringSliceVar(&runOpts.include, "include", nil, "Only fuzz targets whose qualified name contains this")
	f.StringVarP(&runOpts.targetsFile, "targets", "t", "", "Target manifest (YAML)")
	f.StringSliceVarP(&runOpts.packages, "package", "p", nil, "Standard library package to catalog as targets")
	f.StringSliceVar(&runOpts.sources, "source", nil, "Go source file (package main) to interpret")
	f.StringVar(&runOpts.corpusFile, "corpus", "", "Corpus file (YAML)")
	f.StringVar(&runOpts.dumpDir, "dump-dir", "", "Directory for case files")
	f.StringVar(&runOpts.database, "db", "", "SQLite database for cases")
	f.StringVar(&runOpts.driver, "driver", "", "SQLite driver: sqlite or sqlite3")
	f.StringVar(&runOpts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
}

// applyRunFlags copies the flags that were set onto cfg.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, o runFlags) {
	f := cmd.Flags()
	if f.Changed("strategy") {
		cfg.Fuzz.Strategy = o.strategy
	}
	if f.Changed("max-param-guess") {
		cfg.Fuzz.MaxParamGuess = o.maxParamGuess
	}
	if f.Changed("max-invocations") {
		cfg.Fuzz.MaxInvocations = o.maxInvocations
	}
	if o.noFollowUps {
		cfg.Fuzz.FollowUps = false
	}
	if f.Changed("exclude") {
		cfg.Fuzz.Exclude = o.exclude
	}
	if f.Changed("include") {
		cfg.Fuzz.Include = o.include
	}
	if o.targetsFile != "" {
		cfg.Fuzz.TargetsFile = o.targetsFile
	}
	if len(o.packages) > 0 {
		cfg.Fuzz.Packages = o.packages
	}
	if len(o.sources) > 0 {
		cfg.Host.Sources = o.sources
	}
	if o.corpusFile != "" {
		cfg.Corpus.File = o.corpusFile
	}
	if f.Changed("dump-dir") {
		cfg.Dump.Dir = o.dumpDir
	}
	if o.database != "" {
		cfg.Dump.Database = o.database
	}
	if o.driver != "" {
		cfg.Dump.Driver = o.driver
	}
	if o.metricsAddr != "" {
		cfg.Telemetry.MetricsAddr = o.metricsAddr
	}
}

func runFuzz(cmd *cobra.Command, args []string) error {
	applyRunFlags(cmd, cfg, runOpts)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := newHost(cfg)
	if err != nil {
		return err
	}

	set, err := loadTargets(cfg)
	if err != nil {
		return err
	}

	corpora := corpus.DefaultSet()
	if cfg.Corpus.File != "" {
		if corpora, err = corpus.Load(cfg.Corpus.File); err != nil {
			return err
		}
	}

	metrics := telemetry.NewPrometheus(cfg.Telemetry.Namespace)
	s := fuzz.NewSession(h, fuzz.OptionsFromConfig(cfg.Fuzz))
	s.Corpora = corpora
	s.Telemetry = metrics

	sink, err := openSinks(cfg, s.ID)
	if err != nil {
		return err
	}
	defer sink.Close()
	s.Sink = sink

	engine, err := fuzz.NewEngine(s)
	if err != nil {
		return err
	}

	logger.Info("Starting fuzz session",
		zap.String("session", s.ID),
		zap.Int("targets", set.Len()),
		zap.String("strategy", cfg.Fuzz.Strategy))

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	runCtx, finished := context.WithCancel(gctx)
	defer finished()

	g.Go(func() error {
		defer finished()
		return engine.Run(runCtx, set)
	})
	if cfg.Telemetry.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.Telemetry.MetricsAddr, Handler: metricsMux(metrics)}
		g.Go(func() error {
			logger.Info("Serving metrics", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-runCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	runErr := g.Wait()
	printSummary(cmd.OutOrStdout(), s.ID, s.Stats(), time.Since(start))

	if errors.Is(runErr, context.Canceled) && ctx.Err() != nil {
		logger.Warn("Fuzz session interrupted", zap.String("session", s.ID))
		return nil
	}
	return runErr
}

func metricsMux(p *telemetry.Prometheus) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())
	return mux
}

func newHost(cfg *config.Config) (*host.Interpreter, error) {
	h, err := host.NewInterpreter(host.Options{
		Packages: cfg.Host.Packages,
		Sources:  cfg.Host.Sources,
		GoPath:   cfg.Host.GoPath,
		Stdout:   os.Stderr,
		Stderr:   os.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start interpreter: %w", err)
	}
	return h, nil
}

// loadTargets merges the manifest targets with the cataloged packages.
func loadTargets(cfg *config.Config) (*target.Set, error) {
	set := &target.Set{}

	if cfg.Fuzz.TargetsFile != "" {
		m, err := target.LoadManifest(cfg.Fuzz.TargetsFile)
		if err != nil {
			return nil, err
		}
		set.Functions = append(set.Functions, m.Functions...)
		set.Classes = append(set.Classes, m.Classes...)
	}

	for _, pkg := range cfg.Fuzz.Packages {
		cat, err := host.Catalog(pkg)
		if err != nil {
			return nil, err
		}
		set.Functions = append(set.Functions, cat.Functions...)
		set.Classes = append(set.Classes, cat.Classes...)
	}

	if set.Len() == 0 {
		return nil, fmt.Errorf("no targets: use --targets or --package")
	}
	return set, nil
}

// openSinks opens every configured dump sink.
func openSinks(cfg *config.Config, session string) (dump.Sink, error) {
	var sinks dump.Tee

	if cfg.Dump.Dir != "" {
		d, err := dump.NewDirSink(cfg.Dump.Dir, session)
		if err != nil {
			return nil, err
		}
		logger.Info("Writing cases to directory", zap.String("dir", d.Root()))
		sinks = append(sinks, d)
	}
	if cfg.Dump.Database != "" {
		db, err := dump.NewSQLiteSink(cfg.Dump.Database, cfg.Dump.Driver, session)
		if err != nil {
			_ = sinks.Close()
			return nil, err
		}
		logger.Info("Writing cases to database", zap.String("path", db.Path()))
		sinks = append(sinks, db)
	}

	switch len(sinks) {
	case 0:
		logger.Warn("No dump sink configured; cases will not be reproducible")
		return &dump.Nop{}, nil
	case 1:
		return sinks[0], nil
	}
	return sinks, nil
}
