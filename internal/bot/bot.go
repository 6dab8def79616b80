// Package bot is the Telegram transport: it receives updates, fans them out
// to per-chat workers and renders chat replies.
package bot

import (
	"context"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"paybot/internal/chat"
	applog "paybot/internal/log"
)

// Sender is the subset of *tgbotapi.BotAPI used to deliver replies.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Handler is the conversation logic driven by updates.
type Handler interface {
	HandleCommand(ctx context.Context, c chat.Conversation, cmd, args string) *chat.Reply
	HandleText(ctx context.Context, c chat.Conversation, text string) *chat.Reply
	HandleCallback(ctx context.Context, c chat.Conversation, data string) *chat.Reply
}

type Bot struct {
	api     *tgbotapi.BotAPI
	sender  Sender
	handler Handler
	workers int
	timeout time.Duration
	logger  *applog.Logger
}

// New authorizes token against the Bot API.
func New(token string, handler Handler, workers int, logger *applog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	b := NewWithSender(api, handler, workers, logger)
	b.api = api
	b.logger.Info("Bot authorized", "username", api.Self.UserName)
	return b, nil
}

// NewWithSender builds a bot that only dispatches; Run needs New.
func NewWithSender(sender Sender, handler Handler, workers int, logger *applog.Logger) *Bot {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Bot{
		sender:  sender,
		handler: handler,
		workers: workers,
		timeout: 30 * time.Second,
		logger:  logger.WithComponent(applog.ComponentBot),
	}
}

// Run polls for updates until ctx is done. Updates of one chat are handled
// in order by the same worker; different chats proceed in parallel.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	g, gctx := errgroup.WithContext(ctx)
	shards := make([]chan tgbotapi.Update, b.workers)
	for i := range shards {
		ch := make(chan tgbotapi.Update, 16)
		shards[i] = ch
		g.Go(func() error {
			for upd := range ch {
				b.Dispatch(gctx, upd)
			}
			return nil
		})
	}

	b.logger.Info("Starting update loop", "workers", b.workers)
	g.Go(func() error {
		defer func() {
			for _, ch := range shards {
				close(ch)
			}
		}()
		for {
			select {
			case <-gctx.Done():
				b.api.StopReceivingUpdates()
				return nil
			case upd, ok := <-updates:
				if !ok {
					return nil
				}
				select {
				case shards[shard(chatOf(upd), b.workers)] <- upd:
				case <-gctx.Done():
					b.api.StopReceivingUpdates()
					return nil
				}
			}
		}
	})
	return g.Wait()
}

func shard(chatID int64, n int) int {
	i := int(chatID % int64(n))
	if i < 0 {
		i += n
	}
	return i
}

func chatOf(u tgbotapi.Update) int64 {
	switch {
	case u.Message != nil && u.Message.Chat != nil:
		return u.Message.Chat.ID
	case u.ChannelPost != nil && u.ChannelPost.Chat != nil:
		return u.ChannelPost.Chat.ID
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil && u.CallbackQuery.Message.Chat != nil:
		return u.CallbackQuery.Message.Chat.ID
	case u.MyChatMember != nil:
		return u.MyChatMember.Chat.ID
	default:
		return 0
	}
}

// Dispatch handles one update synchronously.
func (b *Bot) Dispatch(ctx context.Context, u tgbotapi.Update) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	switch {
	case u.MyChatMember != nil:
		b.onMembership(ctx, u.MyChatMember)
	case u.CallbackQuery != nil:
		b.onCallback(ctx, u.CallbackQuery)
	case u.Message != nil:
		b.onMessage(ctx, u.Message)
	case u.ChannelPost != nil:
		b.onMessage(ctx, u.ChannelPost)
	}
}

func (b *Bot) onMembership(ctx context.Context, m *tgbotapi.ChatMemberUpdated) {
	switch m.NewChatMember.Status {
	case "member", "administrator":
		b.logger.InfoContext(ctx, "Bot joined chat",
			applog.FieldChatID, m.Chat.ID,
			"title", m.Chat.Title,
			"status", m.NewChatMember.Status)
	case "left", "kicked":
		b.logger.InfoContext(ctx, "Bot removed from chat", applog.FieldChatID, m.Chat.ID)
	}
}

func conversation(msg *tgbotapi.Message, from *tgbotapi.User) chat.Conversation {
	c := chat.Conversation{ChatID: msg.Chat.ID, ChatTitle: msg.Chat.Title}
	if from != nil {
		c.UserID = from.ID
	}
	return c
}

func (b *Bot) onMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil || strings.TrimSpace(msg.Text) == "" {
		return
	}
	c := conversation(msg, msg.From)

	var reply *chat.Reply
	if msg.IsCommand() {
		reply = b.handler.HandleCommand(ctx, c, msg.Command(), msg.CommandArguments())
	} else {
		reply = b.handler.HandleText(ctx, c, msg.Text)
	}
	if reply != nil {
		b.deliver(ctx, c.ChatID, 0, reply)
	}
}

func (b *Bot) onCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if _, err := b.sender.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		b.logger.WarnContext(ctx, "Failed to answer callback", applog.FieldError, err)
	}
	if q.Message == nil || q.Message.Chat == nil {
		return
	}
	c := conversation(q.Message, q.From)
	if reply := b.handler.HandleCallback(ctx, c, q.Data); reply != nil {
		b.deliver(ctx, c.ChatID, q.Message.MessageID, reply)
	}
}

func (b *Bot) deliver(ctx context.Context, chatID int64, messageID int, r *chat.Reply) {
	req := render(chatID, messageID, r)

	var err error
	switch req.(type) {
	case tgbotapi.MessageConfig:
		_, err = b.sender.Send(req)
	default:
		_, err = b.sender.Request(req)
	}
	if err != nil && !strings.Contains(err.Error(), "message is not modified") {
		b.logger.ErrorContext(ctx, "Failed to deliver reply",
			applog.FieldChatID, chatID,
			applog.FieldError, err)
	}
}
