// Package logging provides categorized file-based logging for the PO agent.
// Logs are written to a configured directory with one file per category and
// day. When logging is disabled every call is a silent no-op, so the hot
// dialogue path carries no cost in production.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup and wiring
	CategorySession Category = "session" // Session lifecycle
	CategoryAgent   Category = "agent"   // State machine transitions
	CategoryCatalog Category = "catalog" // SupplierX gateway calls
	CategoryNLU     Category = "nlu"     // Advisory LLM extraction
	CategoryListing Category = "listing" // Direct listing shortcuts
	CategoryServer  Category = "server"  // HTTP transport
)

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Logger wraps a standard logger with category and file output.
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

// Initialize sets up the logging directory and level. Should be called once
// at startup. With enable false, all loggers returned by Get are no-ops.
func Initialize(dir, level string, enable bool) error {
	enabled = enable
	logsDir = dir

	switch level {
	case "debug":
		logLevel = LevelDebug
	case "info", "":
		logLevel = LevelInfo
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}

	if !enabled {
		return nil
	}
	if logsDir == "" {
		return fmt.Errorf("log directory required when logging is enabled")
	}
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	Get(CategoryBoot).Info("logging initialized, dir=%s level=%s", logsDir, level)
	return nil
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger when logging is disabled.
func Get(category Category) *Logger {
	if !enabled || logsDir == "" {
		return &Logger{category: category}
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

	// Date prefix keeps rotation a matter of deleting old files.
	filename := fmt.Sprintf("%s_%s.log", time.Now().Format("2006-01-02"), category)
	file, err := os.OpenFile(filepath.Join(logsDir, filename), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file for %s: %v\n", category, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

// Debug logs a debug message (only if level <= debug).
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelDebug {
		return
	}
	l.logger.Printf("[DEBUG] %s", fmt.Sprintf(format, args...))
}

// Info logs an informational message (only if level <= info).
func (l *Logger) Info(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelInfo {
		return
	}
	l.logger.Printf("[INFO] %s", fmt.Sprintf(format, args...))
}

// Warn logs a warning message (only if level <= warn).
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelWarn {
		return
	}
	l.logger.Printf("[WARN] %s", fmt.Sprintf(format, args...))
}

// Error logs an error message (always logged if the logger exists).
func (l *Logger) Error(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[ERROR] %s", fmt.Sprintf(format, args...))
}

// CloseAll closes all open log files (call at shutdown).
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// Convenience functions for the common categories. No-ops when disabled.

// Agent logs to the agent category.
func Agent(format string, args ...interface{}) { Get(CategoryAgent).Info(format, args...) }

// AgentDebug logs debug to the agent category.
func AgentDebug(format string, args ...interface{}) { Get(CategoryAgent).Debug(format, args...) }

// Catalog logs to the catalog category.
func Catalog(format string, args ...interface{}) { Get(CategoryCatalog).Info(format, args...) }

// CatalogWarn logs warning to the catalog category.
func CatalogWarn(format string, args ...interface{}) { Get(CategoryCatalog).Warn(format, args...) }

// NLU logs to the nlu category.
func NLU(format string, args ...interface{}) { Get(CategoryNLU).Info(format, args...) }

// NLUWarn logs warning to the nlu category.
func NLUWarn(format string, args ...interface{}) { Get(CategoryNLU).Warn(format, args...) }

// Session logs to the session category.
func Session(format string, args ...interface{}) { Get(CategorySession).Info(format, args...) }

// Listing logs to the listing category.
func Listing(format string, args ...interface{}) { Get(CategoryListing).Info(format, args...) }
