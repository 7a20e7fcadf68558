// Package logging provides config-driven categorized logging for the MAML toolchain.
// Every subsystem logs through a category. In debug mode each category gets its own
// file under <workspace>/.maml/logs/; otherwise all categories share one zap core
// writing to stderr (or the writer handed to Initialize).
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot      Category = "boot"      // Boot/initialization
	CategoryAPI       Category = "api"       // LLM transport calls
	CategoryKnowledge Category = "knowledge" // Typed oracle queries
	CategoryBuilder   Category = "builder"   // MAML graph construction passes
	CategorySimulator Category = "simulator" // TEA simulators and the run agent
	CategoryStore     Category = "store"     // Document stores and ledgers
	CategoryPaper     Category = "paper"     // Paper loading, parsing, analysis
	CategoryRender    Category = "render"    // Worksheets, reports, artifact sinks
)

// AllCategories lists every category in a stable order.
var AllCategories = []Category{
	CategoryBoot, CategoryAPI, CategoryKnowledge, CategoryBuilder,
	CategorySimulator, CategoryStore, CategoryPaper, CategoryRender,
}

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	Level      string
	Format     string // json, console
	DebugMode  bool   // per-category files under Dir
	Dir        string
	Categories map[string]bool
}

// Logger is a category-scoped sugared zap logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	opts      Options
	level     = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	shared    zapcore.Core
	optsMu    sync.RWMutex
)

// Initialize configures logging. Must be called once at startup; calling it again
// closes any open category files and starts over. An optional writer replaces stderr
// for the shared core (tests use this).
func Initialize(o Options, w ...io.Writer) error {
	CloseAll()

	optsMu.Lock()
	defer optsMu.Unlock()

	opts = o
	lvl, err := parseLevel(o.Level)
	if err != nil {
		return err
	}
	level.SetLevel(lvl)

	if o.DebugMode {
		if o.Dir == "" {
			return fmt.Errorf("logging: debug mode requires a log directory")
		}
		if err := os.MkdirAll(o.Dir, 0755); err != nil {
			return fmt.Errorf("failed to create logs directory: %w", err)
		}
		shared = nil
		return nil
	}

	var out io.Writer = os.Stderr
	if len(w) > 0 && w[0] != nil {
		out = w[0]
	}
	shared = zapcore.NewCore(newEncoder(o.Format), zapcore.AddSync(out), level)
	return nil
}

func parseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("logging: unknown level %q", s)
	}
}

func newEncoder(format string) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "json" {
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

// IsDebugMode returns whether per-category file logging is on.
func IsDebugMode() bool {
	optsMu.RLock()
	defer optsMu.RUnlock()
	return opts.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled.
// Categories missing from the toggle map are enabled.
func IsCategoryEnabled(category Category) bool {
	optsMu.RLock()
	defer optsMu.RUnlock()

	if opts.Categories == nil {
		return true
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) the logger for a category.
// Returns a no-op logger when the category is disabled or logging is uninitialized.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category, sugar: zap.NewNop().Sugar()}
	}

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

	l := newLogger(category)
	loggers[category] = l
	return l
}

func newLogger(category Category) *Logger {
	optsMu.RLock()
	defer optsMu.RUnlock()

	if !opts.DebugMode {
		if shared == nil {
			return &Logger{category: category, sugar: zap.NewNop().Sugar()}
		}
		return &Logger{
			category: category,
			sugar:    zap.New(shared).Named(string(category)).Sugar(),
		}
	}

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(opts.Dir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category, sugar: zap.NewNop().Sugar()}
	}
	core := zapcore.NewCore(newEncoder(opts.Format), zapcore.AddSync(file), level)
	return &Logger{
		category: category,
		sugar:    zap.New(core).Named(string(category)).Sugar(),
		file:     file,
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) { l.sugar.Infof(format, args...) }

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) { l.sugar.Warnf(format, args...) }

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// With returns a logger carrying structured key-value context.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// Category returns the category this logger writes to.
func (l *Logger) Category() Category { return l.category }

// CloseAll flushes and closes every category logger (call at shutdown).
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	for _, l := range loggers {
		_ = l.sugar.Sync()
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS - no-ops when the category is disabled
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) { Get(CategoryBoot).Info(format, args...) }

// BootWarn logs warning to the boot category
func BootWarn(format string, args ...interface{}) { Get(CategoryBoot).Warn(format, args...) }

// API logs to the api category
func API(format string, args ...interface{}) { Get(CategoryAPI).Info(format, args...) }

// APIDebug logs debug to the api category
func APIDebug(format string, args ...interface{}) { Get(CategoryAPI).Debug(format, args...) }

// APIWarn logs warning to the api category
func APIWarn(format string, args ...interface{}) { Get(CategoryAPI).Warn(format, args...) }

// APIError logs error to the api category
func APIError(format string, args ...interface{}) { Get(CategoryAPI).Error(format, args...) }

// Knowledge logs to the knowledge category
func Knowledge(format string, args ...interface{}) { Get(CategoryKnowledge).Info(format, args...) }

// KnowledgeDebug logs debug to the knowledge category
func KnowledgeDebug(format string, args ...interface{}) {
	Get(CategoryKnowledge).Debug(format, args...)
}

// KnowledgeWarn logs warning to the knowledge category
func KnowledgeWarn(format string, args ...interface{}) {
	Get(CategoryKnowledge).Warn(format, args...)
}

// Builder logs to the builder category
func Builder(format string, args ...interface{}) { Get(CategoryBuilder).Info(format, args...) }

// BuilderDebug logs debug to the builder category
func BuilderDebug(format string, args ...interface{}) { Get(CategoryBuilder).Debug(format, args...) }

// BuilderWarn logs warning to the builder category
func BuilderWarn(format string, args ...interface{}) { Get(CategoryBuilder).Warn(format, args...) }

// Simulator logs to the simulator category
func Simulator(format string, args ...interface{}) { Get(CategorySimulator).Info(format, args...) }

// SimulatorDebug logs debug to the simulator category
func SimulatorDebug(format string, args ...interface{}) {
	Get(CategorySimulator).Debug(format, args...)
}

// SimulatorError logs error to the simulator category
func SimulatorError(format string, args ...interface{}) {
	Get(CategorySimulator).Error(format, args...)
}

// Store logs to the store category
func Store(format string, args ...interface{}) { Get(CategoryStore).Info(format, args...) }

// StoreDebug logs debug to the store category
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }

// Paper logs to the paper category
func Paper(format string, args ...interface{}) { Get(CategoryPaper).Info(format, args...) }

// PaperDebug logs debug to the paper category
func PaperDebug(format string, args ...interface{}) { Get(CategoryPaper).Debug(format, args...) }

// PaperWarn logs warning to the paper category
func PaperWarn(format string, args ...interface{}) { Get(CategoryPaper).Warn(format, args...) }

// Render logs to the render category
func Render(format string, args ...interface{}) { Get(CategoryRender).Info(format, args...) }

// RenderWarn logs warning to the render category
func RenderWarn(format string, args ...interface{}) { Get(CategoryRender).Warn(format, args...) }

// =============================================================================
// TIMING
// =============================================================================

// Timer measures one operation and logs its duration on Stop.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level
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
