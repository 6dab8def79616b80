package cli

import (
	"context"
	"errors"
	"io"
	"testing"

	"paybot/internal/config"
	applog "paybot/internal/log"
)

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Output: io.Discard})
}

func stubExit(t *testing.T) *int {
	t.Helper()
	code := -1
	exit = func(c int) { code = c }
	t.Cleanup(func() { exit = defaultExit })
	return &code
}

var defaultExit = exit

func TestMustValidate(t *testing.T) {
	code := stubExit(t)

	calls := 0
	ok := func() error { calls++; return nil }
	MustValidate(quietLogger(), ok, ok)
	if *code != -1 || calls != 2 {
		t.Fatalf("code=%d calls=%d", *code, calls)
	}

	calls = 0
	MustValidate(quietLogger(), func() error { return errors.New("missing token") }, ok)
	if *code != 1 || calls != 0 {
		t.Fatalf("expected exit(1) before later checks, code=%d calls=%d", *code, calls)
	}
}

func TestInitBackend(t *testing.T) {
	code := stubExit(t)
	cfg := &config.Config{DataBackend: "memory", Timezone: "UTC", StoreConcurrency: 2}

	_, bcfg, res := InitBackend(context.Background(), quietLogger(), cfg)
	if *code != -1 || res == nil {
		t.Fatalf("code=%d res=%v", *code, res)
	}
	defer res.Cleanup()
	if bcfg.Type != "memory" {
		t.Fatalf("type = %s", bcfg.Type)
	}

	cfg.DataBackend = "postgres"
	if _, _, res := InitBackend(context.Background(), quietLogger(), cfg); res != nil || *code != 1 {
		t.Fatalf("unknown backend should exit, code=%d", *code)
	}
}

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger(&config.Config{LogLevel: "debug", LogFormat: "json"})
	if !logger.Enabled(context.Background(), -4) {
		t.Fatal("debug level should be enabled")
	}
}

func TestCleanup(t *testing.T) {
	var order []string
	step := func(name string, err error) func(context.Context) error {
		return func(context.Context) error {
			order = append(order, name)
			return err
		}
	}
	boom := errors.New("boom")

	err := Cleanup(quietLogger(), step("bot", nil), nil, step("store", boom), Close(func() error { order = append(order, "redis"); return nil }))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if len(order) != 3 || order[0] != "bot" || order[2] != "redis" {
		t.Fatalf("order = %v", order)
	}
	if Close(nil) != nil {
		t.Fatal("Close(nil) should be nil")
	}
}
