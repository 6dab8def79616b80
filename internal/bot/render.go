package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"paybot/internal/chat"
)

func markup(rows [][]chat.Button) tgbotapi.InlineKeyboardMarkup {
	kb := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		r := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			r = append(r, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		kb = append(kb, r)
	}
	return tgbotapi.NewInlineKeyboardMarkup(kb...)
}

// render converts a reply into the Telegram request that carries it.
// messageID is the message owning the pressed button, zero for new messages.
func render(chatID int64, messageID int, r *chat.Reply) tgbotapi.Chattable {
	switch {
	case r.Delete && messageID != 0:
		return tgbotapi.NewDeleteMessage(chatID, messageID)
	case r.Edit && messageID != 0:
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, r.Text, markup(r.Keyboard))
		edit.ParseMode = tgbotapi.ModeMarkdown
		return edit
	default:
		msg := tgbotapi.NewMessage(chatID, r.Text)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if len(r.Keyboard) > 0 {
			msg.ReplyMarkup = markup(r.Keyboard)
		}
		return msg
	}
}
