package main

import (
	"context"
	"testing"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap/zapcore"
)

// TestAppGraphValidity checks that there are no missing or cyclic
// dependencies in the fx graph without actually starting the daemon.
func TestAppGraphValidity(t *testing.T) {
	if err := fx.ValidateApp(appOptions("", "", false)); err != nil {
		t.Fatalf("dependency graph is invalid: %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger(false)
	if err != nil {
		t.Fatalf("production logger: %v", err)
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("production logger should not log at debug level")
	}

	logger, err = newLogger(true)
	if err != nil {
		t.Fatalf("development logger: %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("verbose logger should log at debug level")
	}
}

// TestEndToEndStartup boots the full application with no player running.
// The stream client must come up, fail to connect, and still shut down
// cleanly when asked.
func TestEndToEndStartup(t *testing.T) {
	t.Setenv("LYRICWATCH_OUTPUT_DIR", t.TempDir())

	app := fx.New(appOptions("", "http://127.0.0.1:1/stream", false), fx.NopLogger)

	startCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
