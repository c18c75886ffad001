// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured JSON logging
// with configurable log levels, plus context helpers so stores and the job
// processor can log with tick-scoped attributes.
package logger
