package services

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"paybot/internal/core"
	applog "paybot/internal/log"
	"paybot/internal/period"
	"paybot/internal/sheets"
	sheetsmem "paybot/internal/sheets/memory"
	"paybot/internal/store/memory"
)

var ict = time.FixedZone("ICT", 7*3600)

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Output: io.Discard})
}

type recordingPublisher struct {
	sent []core.Transaction
	err  error
}

func (p *recordingPublisher) PublishMirror(_ context.Context, tx core.Transaction) error {
	p.sent = append(p.sent, tx)
	return p.err
}

type recordingMirror struct{ got []core.Transaction }

func (m *recordingMirror) Mirror(_ context.Context, tx core.Transaction) error {
	m.got = append(m.got, tx)
	return nil
}

type failingAppender struct{}

func (failingAppender) Append(context.Context, core.Transaction) (string, error) {
	return "", errors.New("disk full")
}

func TestIngestService_Ingest(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore(ict)
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewIngestService(core.NewParser(ict), st, quietLogger(), WithPublisher(pub))

	tx, ok, err := svc.Ingest(ctx, -42, "Received 29.00 USD from X, ABA Bank by KHQR, on 19-Nov-2025 08:08AM")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if tx.ID == "" || tx.ChatID != -42 {
		t.Fatalf("stored tx = %+v", tx)
	}
	if len(pub.sent) != 1 {
		t.Fatal("transaction should be published even when publishing fails")
	}

	_, ok, err = svc.Ingest(ctx, -42, "good morning")
	if err != nil || ok {
		t.Fatalf("non-matching text: ok=%v err=%v", ok, err)
	}

	totals, _ := st.QueryRange(ctx, -42, time.Date(2025, 11, 19, 0, 0, 0, 0, ict), time.Date(2025, 11, 19, 23, 59, 59, 0, ict))
	if totals.Count != 1 || !totals.Sum(core.USD).Equal(decimal.RequireFromString("29")) {
		t.Fatalf("totals = %+v", totals)
	}
}

func TestIngestService_InlineMirror(t *testing.T) {
	m := &recordingMirror{}
	svc := NewIngestService(core.NewParser(ict), memory.NewStore(ict), quietLogger(), WithInlineMirror(m))

	if _, ok, _ := svc.Ingest(context.Background(), 1, "Received 5,000 KHR from Y, on 01-Feb-2024 11:59PM"); !ok {
		t.Fatal("expected a recorded transaction")
	}
	if len(m.got) != 1 || m.got[0].Currency != core.KHR {
		t.Fatalf("inline mirror got %+v", m.got)
	}
}

func TestIngestService_StoreFailure(t *testing.T) {
	svc := NewIngestService(core.NewParser(ict), failingAppender{}, quietLogger())
	_, ok, err := svc.Ingest(context.Background(), 1, "Received 1 USD, on 01-Feb-2024 11:59PM")
	if err == nil || ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
}

func TestSummaryService_Summarize(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore(ict)
	for _, a := range []string{"10", "0.5"} {
		_, _ = st.Append(ctx, core.Transaction{
			ChatID: 3, Amount: decimal.RequireFromString(a), Currency: core.USD,
			OccurredAt: time.Date(2025, 3, 1, 10, 0, 0, 0, ict), RawText: "r",
		})
	}
	svc := NewSummaryService(st, quietLogger())

	iv := period.Interval{
		Start: time.Date(2025, 3, 1, 0, 0, 0, 0, ict),
		End:   time.Date(2025, 3, 1, 10, 0, 0, 0, ict),
	}
	totals, err := svc.Summarize(ctx, 3, iv, "test")
	if err != nil {
		t.Fatal(err)
	}
	if !totals.Sum(core.USD).Equal(decimal.RequireFromString("10.5")) || totals.Count != 2 {
		t.Fatalf("end bound must be inclusive, totals = %+v", totals)
	}

	other, _ := svc.Summarize(ctx, 4, iv, "test")
	if other.Count != 0 {
		t.Fatal("chats must not see each other's transactions")
	}
}

func backupRows() []sheets.Row {
	return []sheets.Row{
		{Date: "2025-11-19", Time: "08:08:00", Amount: "29", Currency: "USD", ChatID: "-42", RawText: "a"},
		{Date: "2025-11-19", Time: "09:00:00", Amount: "5000", Currency: "KHR", ChatID: "-42", RawText: "b"},
		{Date: "2025-11-19", Time: "09:00:00", Amount: "5000", Currency: "KHR", ChatID: "-42", RawText: "b again"},
		{Date: "bad", Time: "09:00:00", Amount: "1", Currency: "USD", ChatID: "-42", RawText: "c"},
	}
}

func TestRestoreService_Idempotent(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore(ict)
	svc := NewRestoreService(sheetsmem.New(backupRows()...), st, ict, quietLogger())

	res, err := svc.Restore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 2 || res.Skipped != 1 || res.Invalid != 1 || res.Status == "" {
		t.Fatalf("first restore = %+v", res)
	}

	res, _ = svc.Restore(ctx)
	if res.Inserted != 0 || res.Skipped != 3 {
		t.Fatalf("second restore = %+v", res)
	}
	if n, _ := st.Count(ctx); n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
	if pending, _ := st.PendingMirror(ctx, 0); len(pending) != 0 {
		t.Fatal("restored rows must not be mirrored back")
	}
}

func TestRestoreService_AutoRestoreIfEmpty(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore(ict)
	svc := NewRestoreService(sheetsmem.New(backupRows()...), st, ict, quietLogger())

	_, ran, err := svc.AutoRestoreIfEmpty(ctx)
	if err != nil || !ran {
		t.Fatalf("ran=%v err=%v", ran, err)
	}
	_, ran, _ = svc.AutoRestoreIfEmpty(ctx)
	if ran {
		t.Fatal("non-empty store must not be restored again")
	}
}

type brokenReader struct{}

func (brokenReader) ReadRows(context.Context) ([]sheets.Row, error) {
	return nil, errors.New("403")
}

func TestRestoreService_ReadFailure(t *testing.T) {
	svc := NewRestoreService(brokenReader{}, memory.NewStore(ict), ict, quietLogger())
	res, err := svc.Restore(context.Background())
	if err == nil || res.Status == "" {
		t.Fatalf("res=%+v err=%v", res, err)
	}
}
