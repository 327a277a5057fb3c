package pkg

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Component identifies a subsystem for log filtering.
type Component string

// Storage stack component identifiers.
const (
	ComponentSD      Component = "sd"
	ComponentEMMC    Component = "emmc"
	ComponentSession Component = "session"
	ComponentGPT     Component = "gpt"
	ComponentFS      Component = "fs"
	ComponentHAL     Component = "hal"
)

// Components lists every storage stack component.
var Components = []Component{
	ComponentSD,
	ComponentEMMC,
	ComponentSession,
	ComponentGPT,
	ComponentFS,
	ComponentHAL,
}

// ParseComponent returns the component named s.
func ParseComponent(s string) (Component, error) {
	for _, c := range Components {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown log component %q", ErrInvalidParameter, s)
}

// LogFormat specifies the output format for logging.
type LogFormat int

// Log format options.
const (
	LogFormatText LogFormat = iota // Text format (default)
	LogFormatJSON                  // JSON format
)

var (
	// DefaultLogger is the default logger used by the storage stack.
	DefaultLogger *slog.Logger

	// logLevel is the level for components without an override.
	logLevel = slog.LevelWarn

	// componentLevels overrides logLevel per component.
	componentLevels = map[Component]slog.Level{}

	// logMutex protects logger configuration.
	logMutex sync.RWMutex
)

// floorLevel is the handler level of loggers built here: the lowest level
// any component logs at. Per-component filtering happens before a record
// reaches the handler.
type floorLevel struct{}

func (floorLevel) Level() slog.Level {
	logMutex.RLock()
	defer logMutex.RUnlock()

	level := logLevel
	for _, l := range componentLevels {
		level = min(level, l)
	}
	return level
}

func init() {
	DefaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: floorLevel{},
	}))
}

// SetLogLevel sets the minimum log level for components without an
// override.
func SetLogLevel(level slog.Level) {
	logMutex.Lock()
	defer logMutex.Unlock()
	logLevel = level
}

// GetLogLevel returns the minimum log level for components without an
// override.
func GetLogLevel() slog.Level {
	logMutex.RLock()
	defer logMutex.RUnlock()
	return logLevel
}

// SetComponentLevel sets the minimum log level of one component, e.g. to
// trace GPT parsing at debug level while the rest of the stack logs
// warnings only.
func SetComponentLevel(component Component, level slog.Level) {
	logMutex.Lock()
	defer logMutex.Unlock()
	componentLevels[component] = level
}

// TraceComponents sets every component in the comma-separated list, e.g.
// "gpt,fs", to debug level. Nothing changes if any name is unknown.
func TraceComponents(list string) error {
	var components []Component
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		c, err := ParseComponent(name)
		if err != nil {
			return err
		}
		components = append(components, c)
	}

	for _, c := range components {
		SetComponentLevel(c, slog.LevelDebug)
	}
	return nil
}

// ClearComponentLevels removes every per-component override.
func ClearComponentLevels() {
	logMutex.Lock()
	defer logMutex.Unlock()
	clear(componentLevels)
}

// ComponentLevel returns the minimum log level in effect for component.
func ComponentLevel(component Component) slog.Level {
	logMutex.RLock()
	defer logMutex.RUnlock()
	return componentLevel(component)
}

func componentLevel(component Component) slog.Level {
	if level, ok := componentLevels[component]; ok {
		return level
	}
	return logLevel
}

// SetLogger replaces the default logger with a custom logger.
func SetLogger(logger *slog.Logger) {
	logMutex.Lock()
	defer logMutex.Unlock()
	DefaultLogger = logger
}

// SetLogFormat configures the default logger to write the specified format
// to os.Stderr.
func SetLogFormat(format LogFormat) {
	logger := newLogger(os.Stderr, nil, format)

	logMutex.Lock()
	defer logMutex.Unlock()
	DefaultLogger = logger
}

// NewLogger creates a text logger writing to w. With nil opts the logger
// follows the package log levels.
func NewLogger(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	return newLogger(w, opts, LogFormatText)
}

// NewJSONLogger creates a JSON logger writing to w. With nil opts the
// logger follows the package log levels.
func NewJSONLogger(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	return newLogger(w, opts, LogFormatJSON)
}

func newLogger(w io.Writer, opts *slog.HandlerOptions, format LogFormat) *slog.Logger {
	if opts == nil {
		opts = &slog.HandlerOptions{Level: floorLevel{}}
	}
	if format == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// logAt writes one record tagged with component if component logs at level.
func logAt(component Component, level slog.Level, msg string, args []any) {
	logMutex.RLock()
	logger := DefaultLogger
	skip := level < componentLevel(component)
	logMutex.RUnlock()

	if skip {
		return
	}
	logger.Log(context.Background(), level, msg, append([]any{"component", string(component)}, args...)...)
}

// LogDebug logs a debug message with the given component.
func LogDebug(component Component, msg string, args ...any) {
	logAt(component, slog.LevelDebug, msg, args)
}

// LogInfo logs an info message with the given component.
func LogInfo(component Component, msg string, args ...any) {
	logAt(component, slog.LevelInfo, msg, args)
}

// LogWarn logs a warning message with the given component.
func LogWarn(component Component, msg string, args ...any) {
	logAt(component, slog.LevelWarn, msg, args)
}

// LogError logs an error message with the given component.
func LogError(component Component, msg string, args ...any) {
	logAt(component, slog.LevelError, msg, args)
}
