package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kargonusa/freight-core/internal/pkg/config"
	"github.com/kargonusa/freight-core/pkg/logger"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Env:      "test",
		LogLevel: "error",
		Storage:  config.StorageMemory,
		Billing:  config.BillingConfig{DueDays: 30, Timezone: "UTC"},
		Coordination: config.CoordinationConfig{
			LockTTL:          time.Second,
			LockRetries:      3,
			LockRetryDelay:   time.Millisecond,
			DedupTTL:         time.Hour,
			ResourceClaimTTL: time.Hour,
			EventWorkers:     1,
		},
	}
}

func testFactory(cfg *config.Config) CommandFactory {
	return CommandFactory{Load: func(context.Context) (*config.Config, error) { return cfg, nil }}
}

func TestSweepOverdue_MemoryStorage(t *testing.T) {
	logger.Reset()
	t.Cleanup(logger.Reset)

	root := testFactory(memoryConfig()).CreateRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"sweep-overdue", "--as-of", "2026-11-20"})

	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "0 invoice(s) overdue as of 2026-11-20T23:59:59Z") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestSweepOverdue_BadDate(t *testing.T) {
	logger.Reset()
	t.Cleanup(logger.Reset)

	root := testFactory(memoryConfig()).CreateRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"sweep-overdue", "--as-of", "20/11/2026"})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected error for malformed date")
	}
}

func TestEnsureIndexes_RequiresMongo(t *testing.T) {
	logger.Reset()
	t.Cleanup(logger.Reset)

	root := testFactory(memoryConfig()).CreateRootCommand()
	root.SetArgs([]string{"ensure-indexes"})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "STORAGE=mongo") {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestServe_RequiresJWTSecret(t *testing.T) {
	logger.Reset()
	t.Cleanup(logger.Reset)

	root := testFactory(memoryConfig()).CreateRootCommand()
	root.SetArgs([]string{"serve"})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("expected missing secret error, got %v", err)
	}
}

func TestBuildApp_Memory(t *testing.T) {
	logger.Reset()
	t.Cleanup(logger.Reset)

	cfg := memoryConfig()
	a, err := buildApp(context.Background(), cfg, logger.Init(logger.Options{Level: "error"}))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(a.readiness) != 0 {
		t.Fatalf("memory mode has no external dependencies, got %v", a.readiness)
	}
	if a.deps.Retry.Attempts != 3 {
		t.Fatalf("retry policy not taken from config: %+v", a.deps.Retry)
	}
	if err := a.close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
}
