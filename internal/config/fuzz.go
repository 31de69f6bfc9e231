package config

import "fmt"

// Strategy names.
const (
	StrategySingle      = "single"
	StrategyCombination = "combination"
)

// FuzzConfig configures discovery and the mutation sweeps.
type FuzzConfig struct {
	Strategy       string   `yaml:"strategy"`        // single, combination
	MaxParamGuess  int      `yaml:"max_param_guess"` // upper bound for unknown arities
	MaxReshapes    int      `yaml:"max_reshapes"`    // 0 = max_param_guess
	MaxInvocations int      `yaml:"max_invocations"` // combination sweep ceiling per target, 0 = unbounded
	FollowUps      bool     `yaml:"follow_ups"`      // explore Close/Send/Throw on results
	Exclude        []string `yaml:"exclude"`         // substrings of qualified names to skip
	Include        []string `yaml:"include"`         // if set, only matching qualified names run
	TargetsFile    string   `yaml:"targets_file"`    // YAML manifest
	Packages       []string `yaml:"packages"`        // stdlib packages to catalog as targets
}

// HostConfig configures the embedded interpreter.
type HostConfig struct {
	Packages []string `yaml:"packages"` // stdlib allowlist, empty = all
	Sources  []string `yaml:"sources"`  // interpreted package main files
	GoPath   string   `yaml:"gopath"`
}

// DefaultFuzzConfig returns the default fuzz settings.
func DefaultFuzzConfig() FuzzConfig {
	return FuzzConfig{
		Strategy:       StrategySingle,
		MaxParamGuess:  3,
		MaxInvocations: 100000,
		FollowUps:      true,
		Exclude: []string{
			"os.",
			"os/exec.",
			"os/signal.",
			"syscall.",
			"unsafe.",
			"runtime.",
			"plugin.",
		},
	}
}

// Validate checks the fuzz settings.
func (c *FuzzConfig) Validate() error {
	switch c.Strategy {
	case StrategySingle, StrategyCombination:
	default:
		return fmt.Errorf("invalid strategy: %s (valid: %s, %s)", c.Strategy, StrategySingle, StrategyCombination)
	}
	if c.MaxParamGuess < 1 {
		return fmt.Errorf("max_param_guess must be at least 1, got %d", c.MaxParamGuess)
	}
	if c.MaxReshapes < 0 {
		return fmt.Errorf("max_reshapes must not be negative, got %d", c.MaxReshapes)
	}
	if c.MaxInvocations < 0 {
		return fmt.Errorf("max_invocations must not be negative, got %d", c.MaxInvocations)
	}
	return nil
}
