package chat

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"paybot/internal/core"
	"paybot/internal/period"
	"paybot/internal/wizard"
)

const (
	dataMenu     = "menu"
	dataHelp     = "help"
	dataToday    = "sum_today"
	dataMonth    = "sum_month"
	dataAskDay   = "ask_day"
	dataAskMonth = "ask_month"
	dataAskRange = "ask_range"
	dataAskTime  = "ask_time"
)

const (
	msgFailed   = "⚠️ The operation failed, please try again later."
	msgExpired  = "⌛ This button is no longer valid."
	msgNoData   = "❌ *No data yet.*"
	msgCanceled = "Cancelled. Send /start to begin again."
	msgUsage    = "Usage: `/sum 2025-11-19`, `/sum 2025-11`, `/sum 2025-11-01 to 2025-11-15` or `/sum 2025-11-19 08:00 to 2025-11-19 18:00`"
	msgOrder    = "⚠️ The start must be before the end. Start again from the menu."
)

var backButton = Button{Label: "🔙 Back", Data: dataMenu}

func mainMenu(title string) *Reply {
	if title == "" {
		title = "this chat"
	}
	// Legacy Markdown cannot escape inside an entity, so the title stays plain.
	title = tgbotapi.EscapeText(tgbotapi.ModeMarkdown, title)
	text := fmt.Sprintf("Hello! I record payments received (USD & KHR) in %s and add them up for you. 💸\n\nChoose an option below 👇", title)
	return &Reply{
		Text: text,
		Keyboard: withClose(
			[]Button{{Label: "☀️ Today", Data: dataToday}, {Label: "🗓️ This month", Data: dataMonth}},
			[]Button{{Label: "📅 A day", Data: dataAskDay}, {Label: "📆 A month", Data: dataAskMonth}},
			[]Button{{Label: "⏱️ Date range", Data: dataAskRange}, {Label: "🕒 Hours today", Data: dataAskTime}},
			[]Button{{Label: "🔍 Detailed search", Data: dataNavYear}},
			[]Button{{Label: "❓ Help", Data: dataHelp}},
		),
	}
}

func helpReply() *Reply {
	text := strings.Join([]string{
		"📖 *How it works*",
		"",
		"Every message like `Received 29.00 USD ... on 19-Nov-2025 08:08AM` is recorded automatically.",
		"",
		"*/sum* opens the menu; `/sum <period>` answers directly.",
		"*/restore* reloads transactions from the backup sheet.",
		"*/cancel* abandons a question in progress.",
		"🗑️ *Close* deletes the message it belongs to.",
	}, "\n")
	return &Reply{Text: text, Keyboard: withClose([]Button{backButton})}
}

// prompts for each wizard field, with an example of the expected shape.
var prompts = map[wizard.State]string{
	wizard.StateAwaitDay:       "📅 Send the day as `YYYY-MM-DD`, e.g. `2025-11-19`.",
	wizard.StateAwaitMonth:     "📆 Send the month as `YYYY-MM`, e.g. `2025-11`.",
	wizard.StateAwaitRangeFrom: "⏱️ Send the *start* as `YYYY-MM-DD HH:MM`, e.g. `2025-11-19 08:00`.",
	wizard.StateAwaitRangeTo:   "⏱️ Send the *end* as `YYYY-MM-DD HH:MM`.",
	wizard.StateAwaitTimeFrom:  "🕒 Send the *start* time today as `HH:MM`, e.g. `08:00`.",
	wizard.StateAwaitTimeTo:    "🕒 Send the *end* time today as `HH:MM`.",
}

func promptReply(s wizard.State, invalid bool, edit bool) *Reply {
	text := prompts[s]
	if invalid {
		text = "❗ Invalid format.\n" + text
	}
	return &Reply{Text: text + "\n\nSend /cancel to stop.", Keyboard: withClose([]Button{backButton}), Edit: edit}
}

func recordedReply(tx core.Transaction, loc *time.Location) *Reply {
	return &Reply{
		Text: fmt.Sprintf("✅ *Recorded!*\n💰 `%s %s`\n📅 `%s`",
			core.FormatAmount(tx.Amount), tx.Currency, tx.OccurredAt.In(loc).Format("02-Jan-2006 03:04PM")),
		Keyboard: withClose(),
	}
}

// totalsText renders a summary block: heading, one line per visible
// currency and the transaction count.
func totalsText(heading string, t core.Totals) string {
	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n\n")
	for _, line := range core.FormatTotals(t) {
		b.WriteString("💵 `")
		b.WriteString(line)
		b.WriteString("`\n")
	}
	fmt.Fprintf(&b, "\n📝 Transactions: `%d`", t.Count)
	return b.String()
}

func intervalHeading(iv period.Interval) string {
	return fmt.Sprintf("📊 *Total*\n🕒 `%s` to `%s`",
		iv.Start.Format(period.DateTimeLayout), iv.End.Format(period.DateTimeLayout))
}
