package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"terrarium_jobs/internal/domain"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// reportError prints err for the operator. Failed sync runs have already
// shown their user-facing message and logged the cause.
func reportError(w io.Writer, err error) {
	var failed *domain.SyncFailedError
	if errors.As(err, &failed) {
		return
	}
	fmt.Fprintln(w, "error:", err)
}

// setupLogger writes JSON records to w, keeping stdout free for command
// output.
func setupLogger(w io.Writer, level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel})
	return slog.New(handler).With("service", "job-syncer")
}
