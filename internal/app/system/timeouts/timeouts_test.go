package timeouts

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDefaults(t *testing.T) {
	Reset()
	if Ping() != DefaultPing || Short() != DefaultShort || Medium() != DefaultMedium ||
		Long() != DefaultLong || Lock() != DefaultLock {
		t.Fatalf("unexpected defaults: %+v", Current())
	}
}

func TestConfigure_IgnoresZeroValues(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	Configure(Config{Short: 7 * time.Second, Lock: time.Second})

	if Short() != 7*time.Second {
		t.Errorf("Short() = %v, want 7s", Short())
	}
	if Lock() != time.Second {
		t.Errorf("Lock() = %v, want 1s", Lock())
	}
	if Medium() != DefaultMedium {
		t.Errorf("Medium() = %v, want default %v", Medium(), DefaultMedium)
	}
}

func TestWithTimeout_LogsDeadline(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	log := zap.New(core)

	ctx, cancel := WithTimeout(context.Background(), time.Millisecond, log, "slow op")
	<-ctx.Done()
	cancel()

	if logs.Len() != 1 {
		t.Fatalf("expected 1 warning, got %d", logs.Len())
	}
	entry := logs.All()[0]
	if entry.Message != "operation timed out" {
		t.Errorf("message = %q", entry.Message)
	}
	if got := entry.ContextMap()["operation"]; got != "slow op" {
		t.Errorf("operation field = %v", got)
	}
}

func TestWithTimeout_NoLogWhenCanceledEarly(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	_, cancel := WithTimeout(context.Background(), time.Minute, zap.New(core), "fast op")
	cancel()

	if logs.Len() != 0 {
		t.Errorf("expected no warnings, got %d", logs.Len())
	}
}
