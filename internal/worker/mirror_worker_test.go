package worker

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"paybot/internal/amqp"
	"paybot/internal/core"
	applog "paybot/internal/log"
	"paybot/internal/sheets"
	sheetsmem "paybot/internal/sheets/memory"
	"paybot/internal/store/memory"
)

var phnomPenh = time.FixedZone("ICT", 7*3600)

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Output: io.Discard})
}

func sampleTx(day int) core.Transaction {
	return core.Transaction{
		ChatID:     -100,
		Amount:     decimal.RequireFromString("12.5"),
		Currency:   core.USD,
		OccurredAt: time.Date(2025, 11, day, 8, 8, 0, 0, phnomPenh),
		RawText:    "Received 12.50 USD",
	}
}

type failingSheet struct{ calls int }

func (f *failingSheet) AppendRow(context.Context, sheets.Row) (string, error) {
	f.calls++
	return "", errors.New("quota exceeded")
}

func TestMirrorWorker_ProcessPending(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore(phnomPenh)
	for d := 1; d <= 3; d++ {
		if _, err := st.Append(ctx, sampleTx(d)); err != nil {
			t.Fatal(err)
		}
	}
	backup := sheetsmem.New()
	w := NewMirrorWorker(st, backup, phnomPenh, 2, quietLogger())

	n, err := w.ProcessPending(ctx)
	if err != nil || n != 2 {
		t.Fatalf("first batch: n=%d err=%v", n, err)
	}
	n, _ = w.ProcessPending(ctx)
	if n != 1 {
		t.Fatalf("second batch: n=%d", n)
	}
	if n, _ := w.ProcessPending(ctx); n != 0 {
		t.Fatalf("nothing should be pending, got %d", n)
	}

	rows, _ := backup.ReadRows(ctx)
	if len(rows) != 3 {
		t.Fatalf("sheet rows = %d", len(rows))
	}
	if rows[0].Date != "2025-11-01" || rows[0].Time != "08:08:00" || rows[0].Amount != "12.5" {
		t.Fatalf("unexpected row: %+v", rows[0])
	}
}

func TestMirrorWorker_FailureKeepsPending(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore(phnomPenh)
	_, _ = st.Append(ctx, sampleTx(1))

	sheet := &failingSheet{}
	w := NewMirrorWorker(st, sheet, phnomPenh, 10, quietLogger())

	n, err := w.ProcessPending(ctx)
	if err != nil || n != 0 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if err := w.StartupSyncCheck(ctx); err != nil {
		t.Fatal(err)
	}
	if sheet.calls != 2 {
		t.Fatalf("row should be retried on every scan, calls=%d", sheet.calls)
	}
	if pending, _ := st.PendingMirror(ctx, 0); len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
}

func TestMirrorWorker_HandleMirrorMessage(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore(phnomPenh)
	id, _ := st.Append(ctx, sampleTx(5))
	tx := sampleTx(5)
	tx.ID = id

	backup := sheetsmem.New()
	w := NewMirrorWorker(st, backup, phnomPenh, 10, quietLogger())

	if err := w.HandleMirrorMessage(ctx, amqp.NewMirrorMessage(tx)); err != nil {
		t.Fatal(err)
	}
	if pending, _ := st.PendingMirror(ctx, 0); len(pending) != 0 {
		t.Fatal("handled message should mark the row mirrored")
	}

	bad := &amqp.MirrorMessage{TransactionID: "x", Amount: "nope", Currency: "USD"}
	if err := w.HandleMirrorMessage(ctx, bad); err != nil {
		t.Fatalf("malformed message must not be requeued: %v", err)
	}
	if rows, _ := backup.ReadRows(ctx); len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
}

func TestMirrorWorker_SkipsAlreadyMirrored(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore(phnomPenh)
	id, _ := st.Append(ctx, sampleTx(7))
	tx := sampleTx(7)
	tx.ID = id

	backup := sheetsmem.New()
	w := NewMirrorWorker(st, backup, phnomPenh, 10, quietLogger())

	if n, err := w.ProcessPending(ctx); err != nil || n != 1 {
		t.Fatalf("scan: n=%d err=%v", n, err)
	}
	// The queued message for the same row arrives after the scan mirrored it.
	if err := w.HandleMirrorMessage(ctx, amqp.NewMirrorMessage(tx)); err != nil {
		t.Fatal(err)
	}
	if err := w.Mirror(ctx, tx); err != nil {
		t.Fatal(err)
	}
	if rows, _ := backup.ReadRows(ctx); len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}

	unknown := sampleTx(8)
	unknown.ID = "999"
	if err := w.HandleMirrorMessage(ctx, amqp.NewMirrorMessage(unknown)); err != nil {
		t.Fatalf("unknown transaction should be dropped: %v", err)
	}
	if rows, _ := backup.ReadRows(ctx); len(rows) != 1 {
		t.Fatalf("unknown transaction was mirrored")
	}
}

func TestMirrorWorker_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	st := memory.NewStore(phnomPenh)
	_, _ = st.Append(ctx, sampleTx(2))
	backup := sheetsmem.New()
	w := NewMirrorWorker(st, backup, phnomPenh, 10, quietLogger())

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, 5*time.Millisecond) }()

	deadline := time.After(2 * time.Second)
	for {
		if rows, _ := backup.ReadRows(context.Background()); len(rows) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("Run never mirrored the pending row")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
}
