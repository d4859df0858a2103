// Package logger is the process-wide slog front end: printf-style helpers
// for operational logs plus named business channels (see channel.go).
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Format selects the slog handler used for the base output.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

var (
	levelVar   slog.LevelVar
	loggerMu   sync.RWMutex
	output     io.Writer = os.Stdout
	outFormat  Format    = FormatText
	baseLogger *slog.Logger
	channels   = map[Channel]*slog.Logger{}
)

func init() {
	levelVar.Set(slog.LevelInfo)
	baseLogger = build(output, outFormat)
}

func build(w io.Writer, f Format) *slog.Logger {
	opts := &slog.HandlerOptions{Level: &levelVar}
	if f == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SetOutput redirects the base logger. A nil writer means stdout.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	loggerMu.Lock()
	defer loggerMu.Unlock()
	output = w
	baseLogger = build(output, outFormat)
}

// SetFormat switches between text and JSON records; unknown values fall
// back to text.
func SetFormat(f string) {
	next := FormatText
	if Format(strings.ToLower(strings.TrimSpace(f))) == FormatJSON {
		next = FormatJSON
	}
	loggerMu.Lock()
	defer loggerMu.Unlock()
	outFormat = next
	baseLogger = build(output, outFormat)
}

// ParseLevel maps a config string to a slog level. ok is false for unknown
// names, in which case info is returned.
func ParseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

func SetLevel(level string) {
	lvl, _ := ParseLevel(level)
	levelVar.Set(lvl)
}

func activeLogger() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return baseLogger
}

// logf skips formatting when the level is disabled.
func logf(level slog.Level, format string, v []any) {
	l := activeLogger()
	if !l.Enabled(context.Background(), level) {
		return
	}
	l.Log(context.Background(), level, fmt.Sprintf(format, v...))
}

func Debugf(format string, v ...any) { logf(slog.LevelDebug, format, v) }

func Infof(format string, v ...any) { logf(slog.LevelInfo, format, v) }

func Warnf(format string, v ...any) { logf(slog.LevelWarn, format, v) }

func Errorf(format string, v ...any) { logf(slog.LevelError, format, v) }
