package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all callfuzz configuration.
type Config struct {
	// Fuzzing strategy and bounds
	Fuzz FuzzConfig `yaml:"fuzz"`

	// Interpreter that hosts the targets
	Host HostConfig `yaml:"host"`

	// Corpus overrides
	Corpus CorpusConfig `yaml:"corpus"`

	// Reproduction sinks
	Dump DumpConfig `yaml:"dump"`

	// Metrics endpoint
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// CorpusConfig points at a corpus file.
type CorpusConfig struct {
	File string `yaml:"file"` // general/fuzz/exceptions lists; empty = built-ins
}

// DumpConfig configures where reproductions are stored. Both sinks may be
// enabled at once.
type DumpConfig struct {
	Dir      string `yaml:"dir"`
	Database string `yaml:"database"`
	Driver   string `yaml:"driver"` // sqlite (modernc) or sqlite3 (cgo)
}

// TelemetryConfig configures the Prometheus endpoint.
type TelemetryConfig struct {
	MetricsAddr string `yaml:"metrics_addr"` // empty = no endpoint
	Namespace   string `yaml:"namespace"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Fuzz: DefaultFuzzConfig(),

		Host: HostConfig{},

		Dump: DumpConfig{
			Dir:    "dumps",
			Driver: "sqlite",
		},

		Telemetry: TelemetryConfig{
			Namespace: "callfuzz",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if s := os.Getenv("CALLFUZZ_STRATEGY"); s != "" {
		c.Fuzz.Strategy = s
	}
	if n, ok := envInt("CALLFUZZ_MAX_PARAM_GUESS"); ok {
		c.Fuzz.MaxParamGuess = n
	}
	if n, ok := envInt("CALLFUZZ_MAX_INVOCATIONS"); ok {
		c.Fuzz.MaxInvocations = n
	}
	if s := os.Getenv("CALLFUZZ_EXCLUDE"); s != "" {
		c.Fuzz.Exclude = splitList(s)
	}
	if s := os.Getenv("CALLFUZZ_PACKAGES"); s != "" {
		c.Host.Packages = splitList(s)
	}

	if dir := os.Getenv("CALLFUZZ_DUMP_DIR"); dir != "" {
		c.Dump.Dir = dir
	}
	if db := os.Getenv("CALLFUZZ_DB"); db != "" {
		c.Dump.Database = db
	}
	if addr := os.Getenv("CALLFUZZ_METRICS_ADDR"); addr != "" {
		c.Telemetry.MetricsAddr = addr
	}
	if level := os.Getenv("CALLFUZZ_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

func envInt(name string) (int, bool) {
	s := os.Getenv(name)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ValidDrivers lists the supported SQLite drivers.
var ValidDrivers = []string{"sqlite", "sqlite3"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Fuzz.Validate(); err != nil {
		return err
	}

	if c.Dump.Database != "" {
		valid := false
		for _, d := range ValidDrivers {
			if c.Dump.Driver == d {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid dump driver: %s (valid: %v)", c.Dump.Driver, ValidDrivers)
		}
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid log format: %s (valid: console, json)", c.Logging.Format)
	}

	return nil
}
