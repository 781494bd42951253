// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging provides the structured logger shared by every dnsflow
// component. It wraps charmbracelet/log so call sites use the same
// key-value style regardless of whether output goes to a terminal, a
// plain file, or a syslog relay.
package logging

import (
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// Logger is the logger handle passed into every component constructor.
type Logger struct {
	inner *charmlog.Logger
}

// Config controls logger construction.
type Config struct {
	Level      string // debug, info, warn, error
	JSON       bool
	Output     io.Writer // defaults to os.Stderr
	ReportTime bool
	Syslog     SyslogConfig
}

// DefaultConfig returns the logger defaults used when no flags override them.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		JSON:       false,
		ReportTime: true,
		Syslog:     DefaultSyslogConfig(),
	}
}

// New builds a Logger from cfg. A syslog writer is attached as a second
// sink when cfg.Syslog.Enabled, so operators get both local and centralized
// logs without changing call sites.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	writers := []io.Writer{out}
	if cfg.Syslog.Enabled {
		if w, err := NewSyslogWriter(cfg.Syslog); err == nil {
			writers = append(writers, w)
		}
	}
	var w io.Writer = out
	if len(writers) > 1 {
		w = io.MultiWriter(writers...)
	}

	opts := charmlog.Options{
		ReportTimestamp: cfg.ReportTime,
	}
	if cfg.JSON {
		opts.Formatter = charmlog.JSONFormatter
	}

	l := charmlog.NewWithOptions(w, opts)
	l.SetLevel(parseLevel(cfg.Level))

	return &Logger{inner: l}
}

func parseLevel(s string) charmlog.Level {
	switch s {
	case "debug":
		return charmlog.DebugLevel
	case "warn", "warning":
		return charmlog.WarnLevel
	case "error":
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.inner.Debug(msg, kv...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.inner.Info(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.inner.Warn(msg, kv...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.inner.Error(msg, kv...) }

// With returns a Logger that always includes the given key-value pairs,
// e.g. the worker index.
func (l *Logger) With(kv ...interface{}) *Logger {
	return &Logger{inner: l.inner.With(kv...)}
}
