// Copyright 2025 The Amalgamate Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package clog provides context aware logging.
// It can attach the input position being amalgamated (file and line of the
// source header under traversal) to each log entry automatically, so
// verbose logs of deeply inlined includes stay attributable.
//
// It uses cloud logging.Entry severities for uniform formatting but logs
// locally with glog.
package clog

import (
	"context"
	"fmt"

	"cloud.google.com/go/logging"
	"github.com/golang/glog"
)

type contextKeyType int

var contextKey contextKeyType

// defaultFormatter prefixes the entry payload with the input position
// label when one is set.
var defaultFormatter = func(e logging.Entry) string {
	if pos := e.Labels["pos"]; pos != "" {
		return fmt.Sprintf("%s: %v", pos, e.Payload)
	}
	return fmt.Sprintf("%v", e.Payload)
}

// Logger carries the input position labels of the context.
type Logger struct {
	// Formatter generates the glog line for an entry.
	// Defaults to "pos: payload".
	Formatter func(e logging.Entry) string

	labels map[string]string
}

// New creates a new Logger.
func New(ctx context.Context) *Logger {
	return &Logger{Formatter: defaultFormatter}
}

// NewContext sets the given logger to the context.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey, logger)
}

// WithPos returns a context whose logger tags entries with the given
// input position ("path:line").
func WithPos(ctx context.Context, path string, lineno int) context.Context {
	l := FromContext(ctx)
	return NewContext(ctx, &Logger{
		Formatter: l.Formatter,
		labels:    map[string]string{"pos": fmt.Sprintf("%s:%d", path, lineno)},
	})
}

// FromContext returns the logger in the context, or a default logger if
// none is set.
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(contextKey).(*Logger)
	if !ok {
		return &Logger{Formatter: defaultFormatter}
	}
	return logger
}

func (l *Logger) log(e logging.Entry) {
	msg := l.Formatter(e)
	switch e.Severity {
	case logging.Info:
		glog.InfoDepth(3, msg)
	case logging.Warning:
		glog.WarningDepth(3, msg)
	case logging.Error:
		glog.ErrorDepth(3, msg)
	case logging.Critical:
		glog.FatalDepth(3, msg)
	default:
		glog.InfoDepth(3, fmt.Sprintf("%s %s", e.Severity, msg))
	}
}

// Entry creates a new log entry for the given severity.
func (l *Logger) Entry(severity logging.Severity, payload any) logging.Entry {
	return logging.Entry{
		Severity: severity,
		Payload:  payload,
		Labels:   l.labels,
	}
}

// Infof logs at info log level in the manner of fmt.Printf.
func Infof(ctx context.Context, format string, args ...any) {
	logger := FromContext(ctx)
	logger.log(logger.Entry(logging.Info, fmt.Sprintf(format, args...)))
}

// Warningf logs at warning log level in the manner of fmt.Printf.
func Warningf(ctx context.Context, format string, args ...any) {
	logger := FromContext(ctx)
	logger.log(logger.Entry(logging.Warning, fmt.Sprintf(format, args...)))
}

// Errorf logs at error log level in the manner of fmt.Printf.
func Errorf(ctx context.Context, format string, args ...any) {
	logger := FromContext(ctx)
	logger.log(logger.Entry(logging.Error, fmt.Sprintf(format, args...)))
}

// Fatalf logs at fatal log level in the manner of fmt.Printf with a
// stacktrace, and exits.
func Fatalf(ctx context.Context, format string, args ...any) {
	logger := FromContext(ctx)
	logger.log(logger.Entry(logging.Critical, fmt.Sprintf(format, args...)))
}

// V checks at verbose log level.
func (l *Logger) V(level int) bool {
	return bool(glog.V(glog.Level(level)))
}

// Close flushes buffered log entries.
func (l *Logger) Close() {
	glog.Flush()
}
