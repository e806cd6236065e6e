package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mkonda/probemux/internal/config"
)

// LogLevel represents the severity level of a log entry
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LogEntry represents a single log entry
type LogEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Component string         `json:"component,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Error     string         `json:"error,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Logger provides structured logging for the supervisor
type Logger struct {
	level      LogLevel
	format     string
	output     io.Writer
	mu         sync.Mutex
	component  string
	sessionID  string
	fileHandle *os.File
}

// NewLogger creates a new logger from configuration
func NewLogger(cfg *config.LoggingConfig, component string) (*Logger, error) {
	var output io.Writer
	var fileHandle *os.File

	switch cfg.Output {
	case "stderr", "":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", cfg.Output, err)
		}
		output = file
		fileHandle = file
	}

	return &Logger{
		level:      parseLogLevel(cfg.Level),
		format:     cfg.Format,
		output:     output,
		component:  component,
		fileHandle: fileHandle,
	}, nil
}

// NewTestLogger creates a logger writing to the given writer, for tests
func NewTestLogger(w io.Writer) *Logger {
	return &Logger{level: DEBUG, format: "json", output: w, component: "test"}
}

// Close closes any open file handle
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fileHandle != nil {
		err := l.fileHandle.Close()
		l.fileHandle = nil
		return err
	}
	return nil
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = parseLogLevel(level)
}

// WithSession returns a logger that stamps every entry with a session id
func (l *Logger) WithSession(sessionID string) *Logger {
	return &Logger{
		level:     l.level,
		format:    l.format,
		output:    l.output,
		component: l.component,
		sessionID: sessionID,
	}
}

// WithComponent returns a logger with a different component name
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		level:     l.level,
		format:    l.format,
		output:    l.output,
		component: component,
		sessionID: l.sessionID,
	}
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields ...map[string]any) {
	l.log(DEBUG, message, "", fields...)
}

// Info logs an info message
func (l *Logger) Info(message string, fields ...map[string]any) {
	l.log(INFO, message, "", fields...)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields ...map[string]any) {
	l.log(WARN, message, "", fields...)
}

// Error logs an error message
func (l *Logger) Error(message string, err error, fields ...map[string]any) {
	errorStr := ""
	if err != nil {
		errorStr = err.Error()
	}
	l.log(ERROR, message, errorStr, fields...)
}

// LogSessionEvent logs a session lifecycle event
func (l *Logger) LogSessionEvent(event, sessionID, client string, fields ...map[string]any) {
	eventFields := map[string]any{
		"event":      event,
		"session_id": sessionID,
		"client":     client,
	}
	if len(fields) > 0 {
		for k, v := range fields[0] {
			eventFields[k] = v
		}
	}
	l.Info(fmt.Sprintf("Session %s", event), eventFields)
}

// LogFinding logs a classified finding
func (l *Logger) LogFinding(sessionID, plugin, target string) {
	l.Info("Finding recorded", map[string]any{
		"session_id": sessionID,
		"plugin":     plugin,
		"target":     target,
	})
}

// log is the internal logging method
func (l *Logger) log(level LogLevel, message, errorStr string, fields ...map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   message,
		Component: l.component,
		SessionID: l.sessionID,
		Error:     errorStr,
	}

	if len(fields) > 0 && len(fields[0]) > 0 {
		entry.Fields = make(map[string]any, len(fields[0]))
		for k, v := range fields[0] {
			if k == "session_id" {
				entry.SessionID = fmt.Sprintf("%v", v)
				continue
			}
			entry.Fields[k] = v
		}
		if len(entry.Fields) == 0 {
			entry.Fields = nil
		}
	}

	var output string
	if l.format == "json" {
		data, _ := json.Marshal(entry)
		output = string(data) + "\n"
	} else {
		output = formatTextEntry(entry)
	}

	l.output.Write([]byte(output))
}

// formatTextEntry formats a log entry as human-readable text
func formatTextEntry(entry LogEntry) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("[%s] %s", entry.Timestamp[:19], entry.Level))

	if entry.Component != "" {
		parts = append(parts, fmt.Sprintf("[%s]", entry.Component))
	}
	if entry.SessionID != "" {
		id := entry.SessionID
		if len(id) > 8 {
			id = id[:8]
		}
		parts = append(parts, fmt.Sprintf("[session:%s]", id))
	}

	parts = append(parts, entry.Message)

	if entry.Error != "" {
		parts = append(parts, fmt.Sprintf("error=%s", entry.Error))
	}

	if entry.Fields != nil {
		keys := make([]string, 0, len(entry.Fields))
		for k := range entry.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, entry.Fields[k]))
		}
	}

	return strings.Join(parts, " ") + "\n"
}

// parseLogLevel converts a string to LogLevel
func parseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}
