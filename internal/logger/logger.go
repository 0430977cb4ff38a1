package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the logging level
type LogLevel int

const (
	LevelError LogLevel = iota
	LevelInfo
	LevelDebug
)

// LogEntry represents a single log entry in memory
type LogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	Component string // build dir a log line came from, empty for workspace-level lines
	Message   string
}

// Logger interface for logging messages
type Logger interface {
	Error(format string, args ...interface{})
	Info(format string, args ...interface{})
	Debug(format string, args ...interface{})
	GetLogs(minLevel LogLevel) string

	// WithComponent returns a Logger whose lines are tagged with
	// component (normally a build directory), so a workspace running
	// several ComponentSessions concurrently can tell which clangd
	// instance a line came from without threading a prefix through every
	// call site.
	WithComponent(component string) Logger
}

// FileLogger implements Logger with file output and in-memory storage
type FileLogger struct {
	file      *os.File
	fileLevel LogLevel // Minimum level to write to file
	mu        sync.Mutex
	maxSize   int64
	filePath  string

	// In-memory storage for all logs
	memoryLogs []LogEntry
	maxMemory  int // Maximum number of entries to keep in memory
}

// NewFileLogger creates a new file logger
func NewFileLogger(logPath string, fileLevel LogLevel) (*FileLogger, error) {
	// Create log directory if needed
	logDir := filepath.Dir(logPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}

	// Check if log file is too large and rotate if needed
	maxSize := int64(1024 * 1024) // 1MB
	if info, err := os.Stat(logPath); err == nil && info.Size() > maxSize {
		// Delete old log file if it's too large
		os.Remove(logPath)
	}

	// Open log file in append mode
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}

	return &FileLogger{
		file:       file,
		fileLevel:  fileLevel,
		maxSize:    maxSize,
		filePath:   logPath,
		memoryLogs: make([]LogEntry, 0, 10000),
		maxMemory:  10000, // Keep last 10000 log entries in memory
	}, nil
}

// log adds an entry to memory and optionally to file. component is
// normally empty at this layer; componentLogger supplies it via
// logTagged for per-build-dir attribution.
func (l *FileLogger) log(level LogLevel, format string, args ...interface{}) {
	l.logTagged(level, "", format, args...)
}

func (l *FileLogger) logTagged(level LogLevel, component, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Create log entry
	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Component: component,
		Message:   fmt.Sprintf(format, args...),
	}

	// Always add to memory (ring buffer)
	if len(l.memoryLogs) >= l.maxMemory {
		// Remove oldest entry if at capacity
		l.memoryLogs = l.memoryLogs[1:]
	}
	l.memoryLogs = append(l.memoryLogs, entry)

	// Write to file if level meets threshold
	if level <= l.fileLevel {
		levelStr := "INFO"
		switch level {
		case LevelError:
			levelStr = "ERROR"
		case LevelDebug:
			levelStr = "DEBUG"
		}
		tag := ""
		if entry.Component != "" {
			tag = fmt.Sprintf(" [%s]", entry.Component)
		}
		formatted := fmt.Sprintf("[%s] [%s]%s %s\n",
			entry.Timestamp.Format("2006-01-02 15:04:05.000"),
			levelStr,
			tag,
			entry.Message)
		l.file.WriteString(formatted)
	}
}

// Error logs an error message
func (l *FileLogger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

// Info logs an info message
func (l *FileLogger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

// Debug logs a debug message
func (l *FileLogger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

// WithComponent returns a Logger that tags every line with component.
func (l *FileLogger) WithComponent(component string) Logger {
	return &componentLogger{base: l, component: component}
}

// Close closes the log file
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// GetLogs returns filtered logs from memory
func (l *FileLogger) GetLogs(minLevel LogLevel) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var result []string
	for _, entry := range l.memoryLogs {
		if entry.Level <= minLevel {
			levelStr := "INFO"
			switch entry.Level {
			case LevelError:
				levelStr = "ERROR"
			case LevelDebug:
				levelStr = "DEBUG"
			}
			tag := ""
			if entry.Component != "" {
				tag = fmt.Sprintf(" [%s]", entry.Component)
			}
			formatted := fmt.Sprintf("[%s] [%s]%s %s",
				entry.Timestamp.Format("2006-01-02 15:04:05.000"),
				levelStr,
				tag,
				entry.Message)
			result = append(result, formatted)
		}
	}
	return strings.Join(result, "\n")
}

// componentLogger tags every line written through it with a fixed
// component (build directory), so a WorkspaceSession running several
// ComponentSessions concurrently produces attributable log output from
// one shared FileLogger instead of needing one log file per component.
type componentLogger struct {
	base      *FileLogger
	component string
}

func (c *componentLogger) Error(format string, args ...interface{}) {
	c.base.logTagged(LevelError, c.component, format, args...)
}

func (c *componentLogger) Info(format string, args ...interface{}) {
	c.base.logTagged(LevelInfo, c.component, format, args...)
}

func (c *componentLogger) Debug(format string, args ...interface{}) {
	c.base.logTagged(LevelDebug, c.component, format, args...)
}

func (c *componentLogger) GetLogs(minLevel LogLevel) string {
	return c.base.GetLogs(minLevel)
}

func (c *componentLogger) WithComponent(component string) Logger {
	return &componentLogger{base: c.base, component: component}
}

// NullLogger is a logger that discards all messages
type NullLogger struct{}

func (n *NullLogger) Error(format string, args ...interface{}) {}
func (n *NullLogger) Info(format string, args ...interface{})  {}
func (n *NullLogger) Debug(format string, args ...interface{}) {}
func (n *NullLogger) GetLogs(minLevel LogLevel) string         { return "" }
func (n *NullLogger) WithComponent(component string) Logger    { return n }