// Package logging provides categorized, debug-gated file logging for GitSmart.
// Logs are written to <workspace>/.gitsmart/logs/ with one file per category.
// When debug mode is off, all calls are silent no-ops.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot     Category = "boot"     // Startup and shutdown
	CategoryGit      Category = "git"      // Repository mutations, diff retrieval
	CategoryAnalyzer Category = "analyzer" // Diff analysis and chunking
	CategoryPipeline Category = "pipeline" // Observe/Classify/Compose/Merge stages
	CategoryLLM      Category = "llm"      // Generation service calls
	CategoryServer   Category = "server"   // Tool server requests
	CategoryEvents   Category = "events"   // Broadcaster and subscribers
	CategoryStore    Category = "store"    // Registry database
	CategoryTUI      Category = "tui"      // Interactive menu
)

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Logger wraps a standard logger bound to one category file.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	enabled   bool
	logLevel  = LevelInfo
)

// Initialize sets up the logging directory. Should be called once at startup
// with the workspace path and the logging config values. With debug false the
// package stays silent and creates nothing.
func Initialize(workspace string, debug bool, level string) error {
	if !debug {
		enabled = false
		return nil
	}
	if workspace == "" {
		return fmt.Errorf("workspace path required")
	}

	logsDir = filepath.Join(workspace, ".gitsmart", "logs")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	enabled = true
	logLevel = parseLevel(level)

	boot := Get(CategoryBoot)
	boot.Info("=== GitSmart logging initialized ===")
	boot.Info("Logs directory: %s", logsDir)
	boot.Info("Log level: %s", level)
	return nil
}

func parseLevel(level string) int {
	switch level {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Get returns the logger for a category, creating it on first use.
func Get(category Category) *Logger {
	loggersMu.RLock()
	l, ok := loggers[category]
	loggersMu.RUnlock()
	if ok {
		return l
	}

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	l = &Logger{category: category}
	if enabled {
		path := filepath.Join(logsDir, string(category)+".log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			l.file = f
			l.logger = log.New(f, "", log.LstdFlags|log.Lmicroseconds)
		}
	}
	loggers[category] = l
	return l
}

// Close flushes and closes all category log files.
func Close() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

func (l *Logger) write(level int, prefix, format string, args ...any) {
	if !enabled || l.logger == nil || level < logLevel {
		return
	}
	l.logger.Printf("[%s] %s", prefix, fmt.Sprintf(format, args...))
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...any) {
	l.write(LevelDebug, "DEBUG", format, args...)
}

// Info logs an info message.
func (l *Logger) Info(format string, args ...any) {
	l.write(LevelInfo, "INFO", format, args...)
}

// Warn logs a warning.
func (l *Logger) Warn(format string, args ...any) {
	l.write(LevelWarn, "WARN", format, args...)
}

// Error logs an error.
func (l *Logger) Error(format string, args ...any) {
	l.write(LevelError, "ERROR", format, args...)
}

// Category convenience helpers, mirroring call sites across the codebase.

func GitDebug(format string, args ...any)      { Get(CategoryGit).Debug(format, args...) }
func GitInfo(format string, args ...any)       { Get(CategoryGit).Info(format, args...) }
func GitError(format string, args ...any)      { Get(CategoryGit).Error(format, args...) }
func AnalyzerDebug(format string, args ...any) { Get(CategoryAnalyzer).Debug(format, args...) }
func PipelineDebug(format string, args ...any) { Get(CategoryPipeline).Debug(format, args...) }
func PipelineInfo(format string, args ...any)  { Get(CategoryPipeline).Info(format, args...) }
func PipelineError(format string, args ...any) { Get(CategoryPipeline).Error(format, args...) }
func LLMDebug(format string, args ...any)      { Get(CategoryLLM).Debug(format, args...) }
func LLMWarn(format string, args ...any)       { Get(CategoryLLM).Warn(format, args...) }
func LLMError(format string, args ...any)      { Get(CategoryLLM).Error(format, args...) }
func ServerDebug(format string, args ...any)   { Get(CategoryServer).Debug(format, args...) }
func ServerInfo(format string, args ...any)    { Get(CategoryServer).Info(format, args...) }
func ServerWarn(format string, args ...any)    { Get(CategoryServer).Warn(format, args...) }
func EventsDebug(format string, args ...any)   { Get(CategoryEvents).Debug(format, args...) }
func EventsWarn(format string, args ...any)    { Get(CategoryEvents).Warn(format, args...) }
func StoreDebug(format string, args ...any)    { Get(CategoryStore).Debug(format, args...) }
