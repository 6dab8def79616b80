package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"paybot/internal/core"
	applog "paybot/internal/log"
	"paybot/internal/period"
	"paybot/internal/services"
	"paybot/internal/sheets"
	sheetsmem "paybot/internal/sheets/memory"
	"paybot/internal/store/memory"
	"paybot/internal/wizard"
)

var ict = time.FixedZone("ICT", 7*3600)

const chatID = -1001

var (
	alice = Conversation{ChatID: chatID, UserID: 1, ChatTitle: "Shop"}
	bob   = Conversation{ChatID: chatID, UserID: 2, ChatTitle: "Shop"}
)

type fixture struct {
	h        *Handler
	store    *memory.Store
	sessions *wizard.MemoryStore
}

func newFixture(t *testing.T, restorer Restorer) *fixture {
	t.Helper()
	logger := applog.New(applog.Config{Output: io.Discard})
	now := time.Date(2025, 11, 19, 14, 30, 0, 0, ict)
	resolver := period.NewResolver(ict, func() time.Time { return now })
	st := memory.NewStore(ict)
	sessions := wizard.NewMemoryStore(time.Minute)

	h := NewHandler(Deps{
		Ingester:   services.NewIngestService(core.NewParser(ict), st, logger),
		Summarizer: services.NewSummaryService(st, logger),
		Restorer:   restorer,
		Navigator:  st,
		Sessions:   sessions,
		Resolver:   resolver,
		Logger:     logger,
	})

	for _, msg := range []string{
		"Received 29.00 USD from X, ABA Bank by KHQR, on 19-Nov-2025 08:08AM",
		"Received 1.00 USD from Z, on 19-Nov-2025 09:05AM",
		"Received 5,000 KHR from Y, on 19-Nov-2025 09:15AM",
		"Received 3.00 USD from W, on 01-Feb-2024 11:59PM",
	} {
		if r := h.HandleText(context.Background(), alice, msg); r == nil || !strings.Contains(r.Text, "Recorded") {
			t.Fatalf("seed %q: reply %+v", msg, r)
		}
	}
	return &fixture{h: h, store: st, sessions: sessions}
}

func buttons(r *Reply) map[string]string {
	out := map[string]string{}
	for _, row := range r.Keyboard {
		for _, b := range row {
			out[b.Data] = b.Label
		}
	}
	return out
}

func assertClose(t *testing.T, r *Reply) {
	t.Helper()
	last := r.Keyboard[len(r.Keyboard)-1]
	if len(last) != 1 || last[0].Data != closeData {
		t.Fatalf("reply should end with the close row: %+v", r.Keyboard)
	}
}

func TestHandleText_RecordsNotification(t *testing.T) {
	f := newFixture(t, nil)
	r := f.h.HandleText(context.Background(), bob, "Received 12.50 USD from Q, on 18-Nov-2025 10:00PM")
	if r == nil || !strings.Contains(r.Text, "12.50 USD") || !strings.Contains(r.Text, "18-Nov-2025 10:00PM") {
		t.Fatalf("reply = %+v", r)
	}
	assertClose(t, r)

	if r := f.h.HandleText(context.Background(), bob, "thanks!"); r != nil {
		t.Fatalf("ordinary chatter must be ignored, got %+v", r)
	}
}

func TestCommands(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	r := f.h.HandleCommand(ctx, alice, "start", "")
	if !strings.Contains(r.Text, "in Shop and") {
		t.Fatalf("menu should name the chat: %q", r.Text)
	}
	b := buttons(r)
	for _, data := range []string{dataToday, dataMonth, dataAskDay, dataAskMonth, dataAskRange, dataAskTime, dataNavYear, dataHelp} {
		if _, ok := b[data]; !ok {
			t.Errorf("main menu lacks %q", data)
		}
	}
	assertClose(t, r)

	r = f.h.HandleCommand(ctx, alice, "sum", "2025-11")
	if !strings.Contains(r.Text, "30.00 USD") || !strings.Contains(r.Text, "5,000.00 KHR") || !strings.Contains(r.Text, "`3`") {
		t.Fatalf("/sum month: %q", r.Text)
	}

	r = f.h.HandleCommand(ctx, alice, "sum", "yesterday")
	if !strings.Contains(r.Text, "Usage") {
		t.Fatalf("bad period should show usage: %q", r.Text)
	}

	r = f.h.HandleCommand(ctx, alice, "sum", "2025-11-20 to 2025-11-19")
	if r.Text != msgOrder {
		t.Fatalf("reversed period: %q", r.Text)
	}

	if r := f.h.HandleCommand(ctx, alice, "restore", ""); !strings.Contains(r.Text, "No backup") {
		t.Fatalf("restore without backup: %q", r.Text)
	}
	if r := f.h.HandleCommand(ctx, alice, "unknown", ""); r != nil {
		t.Fatalf("unknown command should be ignored, got %+v", r)
	}
}

func TestCallbacks_Summaries(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	r := f.h.HandleCallback(ctx, alice, dataToday)
	if !r.Edit || !strings.Contains(r.Text, "19-Nov-2025") || !strings.Contains(r.Text, "30.00 USD") || !strings.Contains(r.Text, "5,000.00 KHR") {
		t.Fatalf("today: %+v", r)
	}
	assertClose(t, r)

	r = f.h.HandleCallback(ctx, alice, dataMonth)
	if !strings.Contains(r.Text, "November-2025") || !strings.Contains(r.Text, "`3`") {
		t.Fatalf("month: %q", r.Text)
	}

	if r := f.h.HandleCallback(ctx, alice, closeData); !r.Delete {
		t.Fatal("close should delete the message")
	}
}

func TestWizard_RangeFlow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	r := f.h.HandleCallback(ctx, alice, dataAskRange)
	if !strings.Contains(r.Text, "*start*") {
		t.Fatalf("prompt: %q", r.Text)
	}

	if r := f.h.HandleText(ctx, bob, "2025-11-19 08:00"); r != nil {
		t.Fatal("another user's text must not drive alice's wizard")
	}

	r = f.h.HandleText(ctx, alice, "2025-11-19 08:00")
	if !strings.Contains(r.Text, "*end*") {
		t.Fatalf("end prompt: %q", r.Text)
	}

	r = f.h.HandleText(ctx, alice, "later")
	if !strings.Contains(r.Text, "Invalid format") || !strings.Contains(r.Text, "*end*") {
		t.Fatalf("malformed end should re-prompt: %q", r.Text)
	}

	r = f.h.HandleText(ctx, alice, "Received 2.00 USD from V, on 19-Nov-2025 08:30AM")
	if !strings.Contains(r.Text, "Recorded") {
		t.Fatalf("notifications are recorded even mid-wizard: %q", r.Text)
	}

	r = f.h.HandleText(ctx, alice, "2025-11-19 09:10")
	if !strings.Contains(r.Text, "32.00 USD") || !strings.Contains(r.Text, "`3`") {
		t.Fatalf("range total: %q", r.Text)
	}
	if s, _ := f.sessions.Load(ctx, key(alice)); s.Active() {
		t.Fatal("session should end after the result")
	}
}

func TestWizard_ResetAndCancel(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.h.HandleCallback(ctx, alice, dataAskTime)
	f.h.HandleText(ctx, alice, "12:00")
	r := f.h.HandleText(ctx, alice, "08:00")
	if !strings.HasPrefix(r.Text, msgOrder) {
		t.Fatalf("reversed times should reset to the menu: %q", r.Text)
	}
	if _, ok := buttons(r)[dataToday]; !ok {
		t.Fatal("reset should show the main menu")
	}

	f.h.HandleCallback(ctx, alice, dataAskDay)
	if r := f.h.HandleCommand(ctx, alice, "cancel", ""); r.Text != msgCanceled {
		t.Fatalf("cancel: %q", r.Text)
	}
	if r := f.h.HandleText(ctx, alice, "2025-11-19"); r != nil {
		t.Fatal("cancelled wizard must not consume text")
	}

	f.h.HandleCallback(ctx, alice, dataAskMonth)
	f.h.HandleCallback(ctx, alice, dataToday)
	if s, _ := f.sessions.Load(ctx, key(alice)); s.Active() {
		t.Fatal("pressing another button abandons the wizard")
	}
}

func TestDrillDown(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	r := f.h.HandleCallback(ctx, alice, dataNavYear)
	b := buttons(r)
	if b["nav_month:2024"] != "Year 2024" || b["nav_month:2025"] != "Year 2025" {
		t.Fatalf("years: %+v", b)
	}

	r = f.h.HandleCallback(ctx, alice, "nav_month:2025")
	if buttons(r)["nav_day:2025:11"] != "Nov" {
		t.Fatalf("months: %+v", buttons(r))
	}

	r = f.h.HandleCallback(ctx, alice, "nav_sh:2025:11:19")
	b = buttons(r)
	if _, ok := b["nav_sm:2025:11:19:08"]; !ok {
		t.Fatalf("start hours: %+v", b)
	}
	if _, ok := b["nav_sm:2025:11:19:09"]; !ok {
		t.Fatalf("start hours: %+v", b)
	}

	r = f.h.HandleCallback(ctx, alice, "nav_eh:2025:11:19:09:05")
	b = buttons(r)
	if _, ok := b["nav_em:2025:11:19:09:05:08"]; ok {
		t.Fatal("end hours before the start hour must be hidden")
	}
	if _, ok := b["nav_em:2025:11:19:09:05:09"]; !ok {
		t.Fatalf("end hours: %+v", b)
	}

	r = f.h.HandleCallback(ctx, alice, "nav_em:2025:11:19:09:15:09")
	b = buttons(r)
	if _, ok := b["calc:2025:11:19:09:15:09:05"]; ok {
		t.Fatal("end minutes before the start minute must be hidden")
	}
	if _, ok := b["calc:2025:11:19:09:15:09:15"]; !ok {
		t.Fatalf("end minutes: %+v", b)
	}
	if _, ok := b["calc_now:2025:11:19:09:15"]; !ok {
		t.Fatal("until now is always offered")
	}

	r = f.h.HandleCallback(ctx, alice, "calc:2025:11:19:09:05:09:05")
	if !strings.Contains(r.Text, "1.00 USD") || !strings.Contains(r.Text, "`1`") {
		t.Fatalf("end minute should be inclusive: %q", r.Text)
	}

	r = f.h.HandleCallback(ctx, alice, "calc_now:2025:11:19:08:00")
	if !strings.Contains(r.Text, "to `now`") || !strings.Contains(r.Text, "`3`") {
		t.Fatalf("calc now: %q", r.Text)
	}

	r = f.h.HandleCallback(ctx, alice, "calc_now:2024:02:01:23:00")
	if !strings.Contains(r.Text, "3.00 USD") {
		t.Fatalf("past day should run through 23:59: %q", r.Text)
	}
}

func TestDrillDown_MalformedCallbacks(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, data := range []string{"nav_day:2025", "nav_sh:2025:11:x9", "calc:2025:13:19:09:05:09:05", "calc:2025:11:19:10:00:09:00", "bogus"} {
		r := f.h.HandleCallback(ctx, alice, data)
		if r.Text != msgExpired && r.Text != msgOrder {
			t.Errorf("%q: unexpected reply %q", data, r.Text)
		}
	}

	empty := Conversation{ChatID: 777, UserID: 1}
	if r := f.h.HandleCallback(ctx, empty, dataNavYear); r.Text != msgNoData {
		t.Fatalf("empty chat: %q", r.Text)
	}
}

func TestRestoreCommand(t *testing.T) {
	backup := sheetsmem.New(
		sheets.Row{Date: "2025-10-01", Time: "10:00:00", Amount: "7", Currency: "USD", ChatID: "-1001", RawText: "x"},
		sheets.Row{Date: "2025-11-19", Time: "08:08:00", Amount: "29", Currency: "USD", ChatID: "-1001", RawText: "dup"},
	)
	logger := applog.New(applog.Config{Output: io.Discard})

	f := newFixture(t, nil)
	f.h.restore = services.NewRestoreService(backup, f.store, ict, logger)

	r := f.h.HandleCommand(context.Background(), alice, "restore", "")
	if !strings.Contains(r.Text, "Imported *1*") || !strings.Contains(r.Text, "1 already present") {
		t.Fatalf("restore: %q", r.Text)
	}

	r = f.h.HandleCommand(context.Background(), alice, "restore", "")
	if !strings.Contains(r.Text, "Nothing was restored") || !strings.Contains(r.Text, "restored 0 of 2 rows") {
		t.Fatalf("second restore should report the status: %q", r.Text)
	}
}

func TestMainMenu_EscapesTitle(t *testing.T) {
	f := newFixture(t, nil)
	tests := []struct {
		title string
		want  string
	}{
		{"cash_flow", `in cash\_flow and`},
		{"*VIP* [shop]", `in \*VIP\* \[shop] and`},
		{"`code`", "in \\`code\\` and"},
		{"", "in this chat and"},
	}
	for _, tt := range tests {
		c := Conversation{ChatID: chatID, UserID: 1, ChatTitle: tt.title}
		r := f.h.HandleCommand(context.Background(), c, "start", "")
		if !strings.Contains(r.Text, tt.want) {
			t.Errorf("title %q: menu text %q lacks %q", tt.title, r.Text, tt.want)
		}
	}
}

type brokenSummarizer struct{}

func (brokenSummarizer) Summarize(context.Context, int64, period.Interval, string) (core.Totals, error) {
	return core.Totals{}, errors.New("connection reset")
}

func TestBackendFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.h.summary = brokenSummarizer{}
	r := f.h.HandleCallback(context.Background(), alice, dataToday)
	if r.Text != msgFailed {
		t.Fatalf("backend failure should give the generic reply: %q", r.Text)
	}
	assertClose(t, r)
}
