package backend

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"paybot/internal/config"
	"paybot/internal/core"
	applog "paybot/internal/log"
	"paybot/internal/sheets"
	"paybot/internal/wizard"
)

func quietFactory() Factory {
	return NewFactory(applog.New(applog.Config{Output: io.Discard}))
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("nil config must fail")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Fatal("unknown backend must fail")
	}

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:      "sqlite",
		SQLiteDBPath:     "x.db",
		StoreConcurrency: 3,
		Timezone:         "UTC",
		SessionBackend:   "redis",
		RedisAddr:        "redis:6379",
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Type != SQLiteBackend || cfg.Concurrency != 3 || cfg.Location != time.UTC || cfg.RedisAddr != "redis:6379" {
		t.Fatalf("unexpected backend config: %+v", cfg)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"mongo without uri", Config{Type: MongoBackend, MongoDatabase: "d", MongoCollection: "c"}, true},
		{"mongo complete", Config{Type: MongoBackend, MongoURI: "mongodb://x", MongoDatabase: "d", MongoCollection: "c"}, false},
		{"unknown", Config{Type: "sheets"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	for _, typ := range []BackendType{MemoryBackend, SQLiteBackend} {
		t.Run(typ.String(), func(t *testing.T) {
			res, err := quietFactory().CreateBackend(ctx, Config{
				Type:         typ,
				Location:     time.UTC,
				Concurrency:  2,
				SQLiteDBPath: filepath.Join(t.TempDir(), "paybot.db"),
			})
			if err != nil {
				t.Fatal(err)
			}
			defer res.Cleanup()

			_, err = res.Store.Append(ctx, core.Transaction{
				ChatID:     9,
				Amount:     decimal.RequireFromString("3"),
				Currency:   core.USD,
				OccurredAt: time.Date(2025, 5, 6, 7, 8, 0, 0, time.UTC),
				RawText:    "Received 3 USD",
			})
			if err != nil {
				t.Fatal(err)
			}
			years, err := res.Store.DistinctYears(ctx, 9)
			if err != nil || len(years) != 1 || years[0] != "2025" {
				t.Fatalf("years = %v err = %v", years, err)
			}
			if res.Labels.Size() != 1 {
				t.Fatalf("labels should be cached, size = %d", res.Labels.Size())
			}
			if err := res.Store.Ping(ctx); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestCreateSessionStore(t *testing.T) {
	ctx := context.Background()
	f := quietFactory()

	s, cleanup, err := f.CreateSessionStore(ctx, Config{SessionBackend: "memory", SessionTTL: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()
	if _, ok := s.(*wizard.MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", s)
	}

	if _, _, err := f.CreateSessionStore(ctx, Config{SessionBackend: "etcd"}); err == nil {
		t.Fatal("unknown session backend must fail")
	}
}

func TestCreateBackup_Disabled(t *testing.T) {
	b, cleanup, err := quietFactory().CreateBackup(context.Background(), Config{})
	if err != nil || b != nil {
		t.Fatalf("backup = %v err = %v", b, err)
	}
	if err := cleanup(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateBackup_CSV(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "backup", "rows.csv")

	b, cleanup, err := quietFactory().CreateBackup(ctx, Config{BackupCSVPath: path})
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()
	row := sheets.Row{Date: "2025-11-19", Time: "08:08:00", Amount: "29.00", Currency: "USD", ChatID: "-100", RawText: "Received 29.00 USD"}
	if _, err := b.AppendRow(ctx, row); err != nil {
		t.Fatal(err)
	}

	// Reopen without running cleanup, as after a crash.

	again, _, err := quietFactory().CreateBackup(ctx, Config{BackupCSVPath: path})
	if err != nil {
		t.Fatal(err)
	}
	rows, _ := again.ReadRows(ctx)
	if len(rows) != 1 || rows[0] != row {
		t.Fatalf("reloaded rows = %+v", rows)
	}
}
