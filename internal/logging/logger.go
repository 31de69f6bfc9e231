// Package logging provides categorized logging for callfuzz on top of zap.
// Every subsystem logs through its category; categories can be switched off
// individually in the logging config.
package logging

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup, config, host loading
	CategorySession   Category = "session"   // Fuzz session lifecycle and summaries
	CategoryDiscovery Category = "discovery" // Arity discovery search
	CategoryFuzz      Category = "fuzz"      // Mutation sweeps
	CategoryExecutor  Category = "executor"  // Individual invocations
	CategoryFollowUp  Category = "followup"  // Close/Send/Throw exploration
	CategoryDump      Category = "dump"      // Reproduction sinks
	CategoryHost      Category = "host"      // Interpreter and target resolution
)

// Config mirrors config.LoggingConfig to avoid circular imports.
type Config struct {
	Level      string          `yaml:"level"`
	Format     string          `yaml:"format"` // console or json
	File       string          `yaml:"file"`
	Categories map[string]bool `yaml:"categories"`
}

// Logger logs for one category. The zero Logger discards everything.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	base      = zap.NewNop()
	config    Config
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
)

// Initialize builds a zap logger from cfg and installs it.
func Initialize(cfg Config) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}

	var zc zap.Config
	switch strings.ToLower(cfg.Format) {
	case "", "console":
		zc = zap.NewDevelopmentConfig()
		zc.Development = false
	case "json":
		zc = zap.NewProductionConfig()
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableStacktrace = true
	if cfg.File != "" {
		zc.OutputPaths = []string{cfg.File}
	} else {
		zc.OutputPaths = []string{"stderr"}
	}

	l, err := zc.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	loggersMu.Lock()
	config = cfg
	loggersMu.Unlock()
	SetLogger(l)

	boot := Get(CategoryBoot)
	boot.Debug("logging initialized: level=%s format=%s", level, zc.Encoding)
	if len(cfg.Categories) > 0 {
		enabled := 0
		for _, on := range cfg.Categories {
			if on {
				enabled++
			}
		}
		boot.Debug("enabled categories: %d/%d", enabled, len(cfg.Categories))
	}
	return nil
}

// ParseLevel maps a level name to a zap level. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// SetLogger installs l as the base logger and drops cached category loggers.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	loggersMu.Lock()
	defer loggersMu.Unlock()
	base = l
	loggers = make(map[Category]*Logger)
}

// SetCategories replaces the category filter.
func SetCategories(categories map[string]bool) {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	config.Categories = categories
	loggers = make(map[Category]*Logger)
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	loggersMu.RLock()
	defer loggersMu.RUnlock()
	return categoryEnabled(category)
}

func categoryEnabled(category Category) bool {
	if config.Categories == nil {
		return true
	}
	enabled, exists := config.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if the category is disabled.
func Get(category Category) *Logger {
	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	if l, ok := loggers[category]; ok {
		return l
	}

	l := &Logger{category: category}
	if categoryEnabled(category) {
		l.sugar = base.Named(string(category)).Sugar()
	}
	loggers[category] = l
	return l
}

// Base returns the installed zap logger.
func Base() *zap.Logger {
	loggersMu.RLock()
	defer loggersMu.RUnlock()
	return base
}

// Sync flushes the base logger.
func Sync() error {
	loggersMu.RLock()
	defer loggersMu.RUnlock()
	return base.Sync()
}

func (l *Logger) Debug(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Debugf(format, args...)
	}
}

func (l *Logger) Info(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Infof(format, args...)
	}
}

func (l *Logger) Warn(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Warnf(format, args...)
	}
}

func (l *Logger) Error(format string, args ...interface{}) {
	if l.sugar != nil {
		l.sugar.Errorf(format, args...)
	}
}

// With returns a logger that adds the key/value pairs to every entry.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	if l.sugar == nil {
		return l
	}
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// Enabled reports whether the logger writes anything.
func (l *Logger) Enabled() bool { return l.sugar != nil }

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }
func BootError(format string, args ...interface{}) { Get(CategoryBoot).Error(format, args...) }

func Session(format string, args ...interface{})      { Get(CategorySession).Info(format, args...) }
func SessionDebug(format string, args ...interface{}) { Get(CategorySession).Debug(format, args...) }
func SessionWarn(format string, args ...interface{})  { Get(CategorySession).Warn(format, args...) }

func Discovery(format string, args ...interface{})      { Get(CategoryDiscovery).Info(format, args...) }
func DiscoveryDebug(format string, args ...interface{}) { Get(CategoryDiscovery).Debug(format, args...) }
func DiscoveryWarn(format string, args ...interface{})  { Get(CategoryDiscovery).Warn(format, args...) }

func Fuzz(format string, args ...interface{})      { Get(CategoryFuzz).Info(format, args...) }
func FuzzDebug(format string, args ...interface{}) { Get(CategoryFuzz).Debug(format, args...) }
func FuzzWarn(format string, args ...interface{})  { Get(CategoryFuzz).Warn(format, args...) }

func Executor(format string, args ...interface{})      { Get(CategoryExecutor).Info(format, args...) }
func ExecutorDebug(format string, args ...interface{}) { Get(CategoryExecutor).Debug(format, args...) }

func FollowUp(format string, args ...interface{})      { Get(CategoryFollowUp).Info(format, args...) }
func FollowUpDebug(format string, args ...interface{}) { Get(CategoryFollowUp).Debug(format, args...) }

func Dump(format string, args ...interface{})      { Get(CategoryDump).Info(format, args...) }
func DumpDebug(format string, args ...interface{}) { Get(CategoryDump).Debug(format, args...) }
func DumpError(format string, args ...interface{}) { Get(CategoryDump).Error(format, args...) }

func Host(format string, args ...interface{})      { Get(CategoryHost).Info(format, args...) }
func HostDebug(format string, args ...interface{}) { Get(CategoryHost).Debug(format, args...) }
func HostWarn(format string, args ...interface{})  { Get(CategoryHost).Warn(format, args...) }

// =============================================================================
// TIMERS
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithInfo ends the timer and logs at info level
func (t *Timer) StopWithInfo() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Info("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
