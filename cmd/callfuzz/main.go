package main

import (
	"fmt"
	"os"

	"callfuzz/internal/config"
	"callfuzz/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose    bool
	configPath string
	logFormat  string

	cfg *config.Config

	// Logger
	logger = zap.NewNop()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "callfuzz",
	Short: "callfuzz - black-box fuzzer for callables with unknown signatures",
	Long: `callfuzz drives functions, constructors and methods it knows only by name.

For every target it first searches for a call shape the target accepts,
reshaping the parameter list when the runtime reports a different arity,
then sweeps an adversarial corpus over the accepted shape. Results that
behave like resumable handles are probed with Close, Send and Throw.

Every invocation is written to a dump before it runs, so a crash can be
reproduced with "callfuzz replay".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		if logFormat != "" {
			cfg.Logging.Format = logFormat
		}

		if err := logging.Initialize(cfg.Logging.ToLogging()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = logging.Base().Named("cli")
		logger.Debug("configuration loaded", zap.String("path", configPath))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "callfuzz.yaml", "Configuration file")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log encoding: console or json")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(targetsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
