// logger.go: Labelled leveled logging on top of log/slog
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package psa

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	goerrors "github.com/agilira/go-errors"
)

// Logger is the logging surface used by the engine. Key material and payloads
// are never passed to it; keys appear only as fingerprints.
type Logger interface {
	SetLogLabel(label string)
	GetLogLabel() string
	LogV(verboseLevel int32) bool
	Info(verboseLevel int32, args ...interface{})
	Infof(verboseLevel int32, format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
}

// logVerbosity is the process-wide verbose threshold. Level 0 always logs.
var logVerbosity atomic.Int32

// logger writes through slog.Default at the time of each call, so an
// application's slog.SetDefault also redirects the engine.
type logger struct {
	logLabel string
}

// NewLogger creates a Logger whose entries carry a "component" attribute
// set to label.
func NewLogger(label string) Logger {
	l := &logger{}
	l.SetLogLabel(label)
	return l
}

func (l *logger) SetLogLabel(label string) {
	l.logLabel = label
}

func (l *logger) GetLogLabel() string {
	return l.logLabel
}

func (l *logger) emit(level slog.Level, msg string, attrs ...any) {
	if l.logLabel != "" {
		attrs = append(attrs, "component", l.logLabel)
	}
	slog.Default().Log(context.Background(), level, msg, attrs...)
}

// LogV reports whether logging is enabled at verboseLevel.
func (l *logger) LogV(verboseLevel int32) bool {
	return verboseLevel <= logVerbosity.Load()
}

// Info logs at slog.LevelInfo.
//
// Verbose levels:
//  0. lifecycle events (engine open and close)
//  1. key lifecycle and instance resets
//  2. driver errors as they are mapped
func (l *logger) Info(verboseLevel int32, args ...interface{}) {
	if verboseLevel == 0 || l.LogV(verboseLevel) {
		l.emit(slog.LevelInfo, fmt.Sprint(args...), "v", verboseLevel)
	}
}

func (l *logger) Infof(verboseLevel int32, format string, args ...interface{}) {
	if verboseLevel == 0 || l.LogV(verboseLevel) {
		l.emit(slog.LevelInfo, fmt.Sprintf(format, args...), "v", verboseLevel)
	}
}

func (l *logger) Warn(args ...interface{}) {
	l.emit(slog.LevelWarn, fmt.Sprint(args...))
}

func (l *logger) Warnf(format string, args ...interface{}) {
	l.emit(slog.LevelWarn, fmt.Sprintf(format, args...))
}

func (l *logger) Error(args ...interface{}) {
	l.emit(slog.LevelError, fmt.Sprint(args...))
}

func (l *logger) Errorf(format string, args ...interface{}) {
	l.emit(slog.LevelError, fmt.Sprintf(format, args...))
}

// SetLogVerbosity sets the process-wide verbose threshold.
func SetLogVerbosity(level int) error {
	if level < 0 {
		return goerrors.New(ErrCodeConfig, fmt.Sprintf("log verbosity %d must not be negative", level))
	}
	logVerbosity.Store(int32(level))
	return nil
}
