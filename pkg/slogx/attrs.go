// Package slogx holds the slog attribute keys shared across chorus packages.
package slogx

import (
	"fmt"
	"log/slog"
	"time"
)

const (
	KeyLoggerName = "logger"
	KeyModel      = "model"
	KeyAttempt    = "attempt"
	KeyJob        = "job"
	KeyRun        = "run"
)

// Error returns an "error" attribute holding the error's message.
// A nil error is rendered as an empty string.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// Panic formats a recovered panic value.
func Panic(v any) slog.Attr {
	return slog.String("panic", fmt.Sprint(v))
}

// Stringer renders value with its String method.
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}

func LoggerName(name string) slog.Attr {
	return slog.String(KeyLoggerName, name)
}

func Model(id string) slog.Attr {
	return slog.String(KeyModel, id)
}

func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

func Job(id fmt.Stringer) slog.Attr {
	return Stringer(KeyJob, id)
}

func Run(id fmt.Stringer) slog.Attr {
	return Stringer(KeyRun, id)
}

// Elapsed records a duration in milliseconds under key.
func Elapsed(key string, d time.Duration) slog.Attr {
	return slog.Int64(key, d.Milliseconds())
}
