package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"paybot/internal/core"
	applog "paybot/internal/log"
	"paybot/internal/period"
	"paybot/internal/services"
	"paybot/internal/store"
	"paybot/internal/wizard"
)

type (
	Ingester interface {
		Ingest(ctx context.Context, chatID int64, text string) (core.Transaction, bool, error)
	}

	Summarizer interface {
		Summarize(ctx context.Context, chatID int64, iv period.Interval, source string) (core.Totals, error)
	}

	Restorer interface {
		Restore(ctx context.Context) (services.RestoreResult, error)
	}
)

// Deps are the collaborators of a Handler. Restorer may be nil when no
// backup is configured.
type Deps struct {
	Ingester   Ingester
	Summarizer Summarizer
	Restorer   Restorer
	Navigator  store.Navigator
	Sessions   wizard.SessionStore
	Resolver   *period.Resolver
	Logger     *applog.Logger
}

type Handler struct {
	ingest   Ingester
	summary  Summarizer
	restore  Restorer
	nav      store.Navigator
	sessions wizard.SessionStore
	machine  *wizard.Machine
	resolver *period.Resolver
	logger   *applog.Logger
}

func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Handler{
		ingest:   d.Ingester,
		summary:  d.Summarizer,
		restore:  d.Restorer,
		nav:      d.Navigator,
		sessions: d.Sessions,
		machine:  wizard.NewMachine(d.Resolver),
		resolver: d.Resolver,
		logger:   logger.WithComponent(applog.ComponentChat),
	}
}

func key(c Conversation) wizard.Key {
	return wizard.Key{ChatID: c.ChatID, UserID: c.UserID}
}

func (h *Handler) fail(ctx context.Context, c Conversation, op string, err error) *Reply {
	h.logger.ErrorContext(ctx, "Chat operation failed",
		applog.FieldChatID, c.ChatID,
		applog.FieldOperation, op,
		applog.FieldError, err)
	return &Reply{Text: msgFailed, Keyboard: withClose()}
}

// HandleCommand answers a slash command. cmd has no leading slash.
func (h *Handler) HandleCommand(ctx context.Context, c Conversation, cmd, args string) *Reply {
	switch strings.ToLower(cmd) {
	case "start":
		h.discard(ctx, c)
		return mainMenu(c.ChatTitle)
	case "sum":
		h.discard(ctx, c)
		if strings.TrimSpace(args) == "" {
			return mainMenu(c.ChatTitle)
		}
		return h.sumArgs(ctx, c, args)
	case "restore":
		return h.runRestore(ctx, c)
	case "cancel":
		h.discard(ctx, c)
		return &Reply{Text: msgCanceled, Keyboard: withClose()}
	case "help":
		return helpReply()
	default:
		return nil
	}
}

func (h *Handler) sumArgs(ctx context.Context, c Conversation, args string) *Reply {
	iv, err := h.resolver.Parse(args)
	switch {
	case errors.Is(err, period.ErrStartNotBefore):
		return &Reply{Text: msgOrder, Keyboard: withClose()}
	case err != nil:
		return &Reply{Text: "❗ Invalid period.\n" + msgUsage, Keyboard: withClose()}
	}
	return h.summarize(ctx, c, iv, intervalHeading(iv), "command", false, nil)
}

func (h *Handler) runRestore(ctx context.Context, c Conversation) *Reply {
	if h.restore == nil {
		return &Reply{Text: "⚠️ No backup sheet is configured.", Keyboard: withClose()}
	}
	res, err := h.restore.Restore(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "Restore failed", applog.FieldChatID, c.ChatID, applog.FieldError, err)
		return &Reply{Text: fmt.Sprintf("⚠️ *Restore failed*\n%s", res.Status), Keyboard: withClose()}
	}
	if res.Inserted == 0 {
		return &Reply{Text: fmt.Sprintf("⚠️ *Nothing was restored*\n%s", res.Status), Keyboard: withClose()}
	}
	return &Reply{
		Text: fmt.Sprintf("✅ *Restore complete!*\nImported *%d* transactions (%d already present).",
			res.Inserted, res.Skipped),
		Keyboard: withClose(),
	}
}

// HandleText processes a plain message. Payment notifications are always
// recorded first; anything else feeds the sender's wizard if one is active.
// A nil reply means stay silent.
func (h *Handler) HandleText(ctx context.Context, c Conversation, text string) *Reply {
	tx, recorded, err := h.ingest.Ingest(ctx, c.ChatID, text)
	if err != nil {
		return h.fail(ctx, c, applog.OpAppend, err)
	}
	if recorded {
		return recordedReply(tx, h.resolver.Location())
	}

	sess, err := h.sessions.Load(ctx, key(c))
	if err != nil {
		return h.fail(ctx, c, "session_load", err)
	}
	if !sess.Active() {
		return nil
	}

	step := h.machine.Advance(sess, strings.TrimSpace(text))
	switch step.Outcome {
	case wizard.Await:
		if err := h.sessions.Save(ctx, key(c), step.Session); err != nil {
			return h.fail(ctx, c, "session_save", err)
		}
		return promptReply(step.Session.State, step.Err != nil, false)
	case wizard.Done:
		h.discard(ctx, c)
		return h.summarize(ctx, c, step.Interval, intervalHeading(step.Interval), "wizard", false, nil)
	default:
		h.discard(ctx, c)
		r := mainMenu(c.ChatTitle)
		if errors.Is(step.Err, period.ErrStartNotBefore) {
			r.Text = msgOrder + "\n\n" + r.Text
		}
		return r
	}
}

// HandleCallback answers an inline button press. Pressing anything other
// than a wizard entry abandons the sender's wizard.
func (h *Handler) HandleCallback(ctx context.Context, c Conversation, data string) *Reply {
	if data == closeData {
		h.discard(ctx, c)
		return &Reply{Delete: true}
	}

	action, params, _ := strings.Cut(data, ":")
	if flow, ok := askFlows[action]; ok {
		return h.beginWizard(ctx, c, flow)
	}
	h.discard(ctx, c)

	switch action {
	case dataMenu:
		return edit(mainMenu(c.ChatTitle))
	case dataHelp:
		return edit(helpReply())
	case dataToday:
		iv := h.resolver.Today()
		heading := fmt.Sprintf("☀️ *Today (%s)*", iv.Start.Format("02-Jan-2006"))
		return h.summarize(ctx, c, iv, heading, "today", true, []Button{backButton})
	case dataMonth:
		iv := h.resolver.ThisMonth()
		heading := fmt.Sprintf("🗓️ *This month (%s)*", iv.Start.Format("January-2006"))
		return h.summarize(ctx, c, iv, heading, "month", true, []Button{backButton})
	}

	r := h.navigate(ctx, c, action, splitParams(params))
	if r == nil {
		return &Reply{Text: msgExpired, Keyboard: withClose([]Button{backButton}), Edit: true}
	}
	return r
}

var askFlows = map[string]wizard.Flow{
	dataAskDay:   wizard.FlowDay,
	dataAskMonth: wizard.FlowMonth,
	dataAskRange: wizard.FlowRange,
	dataAskTime:  wizard.FlowTime,
}

func (h *Handler) beginWizard(ctx context.Context, c Conversation, flow wizard.Flow) *Reply {
	step, err := h.machine.Begin(flow)
	if err != nil {
		return h.fail(ctx, c, "wizard_begin", err)
	}
	if err := h.sessions.Save(ctx, key(c), step.Session); err != nil {
		return h.fail(ctx, c, "session_save", err)
	}
	return promptReply(step.Session.State, false, true)
}

func (h *Handler) discard(ctx context.Context, c Conversation) {
	if err := h.sessions.Discard(ctx, key(c)); err != nil {
		h.logger.WarnContext(ctx, "Failed to discard wizard session",
			applog.FieldChatID, c.ChatID, applog.FieldError, err)
	}
}

func (h *Handler) summarize(ctx context.Context, c Conversation, iv period.Interval, heading, source string, editMsg bool, nav []Button) *Reply {
	totals, err := h.summary.Summarize(ctx, c.ChatID, iv, source)
	if err != nil {
		return h.fail(ctx, c, applog.OpQuery, err)
	}
	return &Reply{Text: totalsText(heading, totals), Keyboard: withClose(nav), Edit: editMsg}
}

func edit(r *Reply) *Reply {
	r.Edit = true
	return r
}

func splitParams(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ":")
}
