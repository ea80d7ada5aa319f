// Package logger provides the process-wide leveled logger.
//
// Call sites use printf-style helpers (Infof, Warnf, ...) with a bracketed
// component prefix, e.g. logger.Infof("[router] registered %s", name).
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is the verbosity threshold used by the logger.
//
// Lower values are more verbose.
type Level int32

const (
	// LevelTrace enables extremely verbose logs (gateway events, reconciliation steps).
	LevelTrace Level = iota
	// LevelDebug enables verbose logs intended for debugging.
	LevelDebug
	// LevelInfo enables informational logs (default).
	LevelInfo
	// LevelWarn enables only warnings and errors.
	LevelWarn
	// LevelError enables only error logs.
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int32(l))
	}
}

// ParseLevel parses a log level string into a Level.
func ParseLevel(raw string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", raw)
	}
}

var (
	level atomic.Int32

	mu      sync.Mutex
	out     io.Writer = os.Stderr
	json    bool
	sugared *zap.SugaredLogger
)

func init() {
	level.Store(int32(LevelInfo))
	rebuild()
}

// rebuild recreates the zap core. Callers other than init must hold mu.
func rebuild() {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var enc zapcore.Encoder
	if json {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	// Level filtering happens in Enabled so trace can ride on zap's debug level.
	core := zapcore.NewCore(enc, zapcore.AddSync(out), zapcore.DebugLevel)
	sugared = zap.New(core).Sugar()
}

// SetOutput replaces the writer used by the global logger.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	rebuild()
}

// SetJSON switches between the JSON and console encoders.
func SetJSON(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	json = enabled
	rebuild()
}

// SetLevel sets the global log level threshold.
func SetLevel(l Level) {
	level.Store(int32(l))
}

// Enabled reports whether a level would be emitted by the current configuration.
func Enabled(l Level) bool {
	return int32(l) >= level.Load()
}

// Sync flushes buffered log entries.
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	_ = sugared.Sync()
}

func current() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	return sugared
}

// Tracef logs at TRACE level.
func Tracef(format string, args ...any) {
	if !Enabled(LevelTrace) {
		return
	}
	current().With("trace", true).Debugf(format, args...)
}

// Debugf logs at DEBUG level.
func Debugf(format string, args ...any) {
	if !Enabled(LevelDebug) {
		return
	}
	current().Debugf(format, args...)
}

// Infof logs at INFO level.
func Infof(format string, args ...any) {
	if !Enabled(LevelInfo) {
		return
	}
	current().Infof(format, args...)
}

// Warnf logs at WARN level.
func Warnf(format string, args ...any) {
	if !Enabled(LevelWarn) {
		return
	}
	current().Warnf(format, args...)
}

// Errorf logs at ERROR level.
func Errorf(format string, args ...any) {
	if !Enabled(LevelError) {
		return
	}
	current().Errorf(format, args...)
}
